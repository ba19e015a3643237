package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/weave/internal/ast"
)

// Unindent removes common leading whitespace from a multi-line string,
// allowing for readable, indented YAML snippets in Go tests.
func Unindent(s string) string {
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return ""
	}

	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent <= 0 {
		return strings.Join(lines, "\n")
	}

	for i, line := range lines {
		if len(line) >= minIndent {
			lines[i] = line[minIndent:]
		} else {
			lines[i] = strings.TrimSpace(line)
		}
	}
	return strings.Join(lines, "\n")
}

// ComponentYAML decodes an indented YAML snippet into a component.
func ComponentYAML(t *testing.T, src string) *ast.Component {
	t.Helper()
	raw, err := ast.ParseYAML([]byte(Unindent(src)))
	require.NoError(t, err)
	c, err := ast.DecodeComponent(raw)
	require.NoError(t, err)
	return c
}

// FormulaYAML decodes an indented YAML snippet into a formula.
func FormulaYAML(t *testing.T, src string) ast.Formula {
	t.Helper()
	raw, err := ast.ParseYAML([]byte(Unindent(src)))
	require.NoError(t, err)
	f, err := ast.DecodeFormula(raw)
	require.NoError(t, err)
	return f
}

// ActionsYAML decodes an indented YAML snippet into an action list.
func ActionsYAML(t *testing.T, src string) []ast.Action {
	t.Helper()
	raw, err := ast.ParseYAML([]byte(Unindent(src)))
	require.NoError(t, err)
	actions, err := ast.DecodeActions(raw)
	require.NoError(t, err)
	return actions
}
