package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/weave/internal/app"
	"github.com/vk/weave/internal/testutil"
)

const cartPackage = `
	name: shop
	components:
	  Cart:
	    variables:
	      total:
	        initialValue: {type: value, value: 0}
	    workflows:
	      add:
	        parameters: [{name: amount}]
	        actions:
	          - type: SetVariable
	            variable: total
	            data: {type: path, path: [Parameters, amount]}
	          - type: TriggerEvent
	            event: added
	            data: {type: path, path: [Variables, total]}
	          - name: track
	            package: analytics
`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr testutil.SafeBuffer
	err := Execute(args, &stdout, &stderr)
	if os.Getenv("WEAVE_TEST_LOGS") == "true" {
		t.Logf("stderr:\n%s", stderr.String())
	}
	return stdout.String(), stderr.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected an ExitError, got %v", err)
	return exitErr.Code
}

func decode(t *testing.T, out string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	return v
}

func TestEval_Inline(t *testing.T) {
	out, _, err := execute(t, "eval", "-e",
		`{type: function, name: add, arguments: [{formula: {type: value, value: 1}}, {formula: {type: value, value: 2}}]}`)
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

func TestEval_FileWithData(t *testing.T) {
	dir := t.TempDir()
	formulaPath := filepath.Join(dir, "greeting.yaml")
	require.NoError(t, os.WriteFile(formulaPath, []byte(testutil.Unindent(`
		type: function
		package: cty
		name: upper
		arguments:
		  - formula: {type: path, path: [Variables, name]}
	`)), 0o644))
	dataPath := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(dataPath, []byte(`{"Variables": {"name": "ada"}}`), 0o644))

	out, _, err := execute(t, "eval", formulaPath, "--data", "@"+dataPath)
	require.NoError(t, err)
	assert.Equal(t, "\"ADA\"\n", out)
}

func TestEval_DataFromStdin(t *testing.T) {
	var stdout, stderr testutil.SafeBuffer
	root := NewRootCommand()
	root.SetArgs([]string{"eval", "-e", `{type: path, path: [Variables, name]}`, "--data", "@-"})
	root.SetIn(strings.NewReader(`{"Variables": {"name": "ada"}}`))
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	require.NoError(t, root.Execute())
	assert.Equal(t, "\"ada\"\n", stdout.String())
}

func TestEval_SoftFailures(t *testing.T) {
	expr := `{type: function, name: nope}`

	out, stderr, err := execute(t, "eval", "-e", expr)
	require.NoError(t, err)
	assert.Equal(t, "null\n", out)
	assert.Contains(t, stderr, "1 soft failure(s) reported")

	_, _, err = execute(t, "eval", "--strict", "-e", expr)
	assert.Equal(t, 1, exitCode(t, err))
}

func TestRun(t *testing.T) {
	dir := app.WritePackages(t, map[string]string{"shop.yaml": cartPackage})

	out, stderr, err := execute(t, "run", "shop/Cart", "-p", dir, "--workflow", "add", "--params", "{amount: 5}")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"variables": map[string]any{"total": 5.0},
		"events":    []any{map[string]any{"name": "added", "data": 5.0}},
		"url":       map[string]any{},
	}, decode(t, out))
	assert.Contains(t, stderr, "1 soft failure(s) reported", "the custom action is not registered")
}

func TestRefs(t *testing.T) {
	dir := app.WritePackages(t, map[string]string{"shop.yaml": cartPackage})

	out, _, err := execute(t, "refs", "shop", "-p", dir, "--json")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"functions": []any{},
		"actions":   []any{"analytics/track"},
	}, decode(t, out))

	out, _, err = execute(t, "refs", "-p", dir)
	require.NoError(t, err)
	assert.Equal(t, "action   analytics/track\n", out)
}

func TestDeps(t *testing.T) {
	dir := app.WritePackages(t, map[string]string{"shop.yaml": cartPackage})

	out, _, err := execute(t, "deps", "-p", dir)
	require.NoError(t, err)
	assert.Equal(t, "analytics\nshop\n", out)

	out, _, err = execute(t, "deps", "shop", "-p", dir)
	require.NoError(t, err)
	assert.Equal(t, "analytics\n", out)
}

func TestConfigFileAndLimitFlag(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "weave.hcl")
	require.NoError(t, os.WriteFile(configPath, []byte(testutil.Unindent(`
		log_level = "debug"
		limits {
		  formula {
		    max_depth = 1
		  }
		}
	`)), 0o644))
	nested := `{type: array, arguments: [{formula: {type: array, arguments: [{formula: {type: value, value: 1}}]}}]}`

	out, stderr, err := execute(t, "eval", "-c", configPath, "-e", nested)
	require.NoError(t, err)
	assert.Equal(t, "[\n  null\n]\n", out, "the inner array is past the ceiling")
	assert.Contains(t, stderr, "Logger configured successfully.")

	out, _, err = execute(t, "eval", "-c", configPath, "--limit", "formula.maxDepth=8", "-e", nested)
	require.NoError(t, err)
	assert.Equal(t, "[\n  [\n    1\n  ]\n]\n", out)
}

func TestUsageErrors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"explode"}},
		{"unknown flag", []string{"eval", "--nope"}},
		{"too many arguments", []string{"run", "a", "b"}},
		{"eval without input", []string{"eval"}},
		{"invalid log level", []string{"eval", "--log-level", "loud", "-e", "{type: value, value: 1}"}},
		{"invalid limit key", []string{"eval", "--limit", "maxDepth=3", "-e", "{type: value, value: 1}"}},
		{"missing config file", []string{"deps", "-c", filepath.Join(t.TempDir(), "missing.hcl")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := execute(t, tc.args...)
			assert.Equal(t, 2, exitCode(t, err))
		})
	}
}
