package walk

import (
	"strconv"
	"strings"

	"github.com/vk/weave/internal/ast"
)

// Path is a structural route from a walk root.
type Path []string

// String joins the segments with ".".
func (p Path) String() string { return strings.Join(p, ".") }

// With returns a new path extended by segs. The receiver is never aliased.
func (p Path) With(segs ...string) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

// FormulaVisit is one formula node reached by a walk.
type FormulaVisit struct {
	Path    Path
	Formula ast.Formula
	Package string
}

// ActionVisit is one action node reached by a walk.
type ActionVisit struct {
	Path    Path
	Action  ast.Action
	Package string
}

func index(i int) string { return strconv.Itoa(i) }
