package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/weave/internal/ctxlog"
)

// splitQualified reverses ast.QualifiedName.
func splitQualified(qualified string) (pkg, name string) {
	if i := strings.LastIndex(qualified, "/"); i >= 0 {
		return qualified[:i], qualified[i+1:]
	}
	return "", qualified
}

// Validate checks that every referenced formula function and custom action
// resolves. Names are package-qualified as produced by ast.QualifiedName.
// Unresolved names evaluate to null at runtime, so this is a static aid
// rather than a precondition.
func (r *Registry) Validate(ctx context.Context, functions, actions []string) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	for _, q := range functions {
		pkg, name := splitQualified(q)
		if _, ok := r.ResolveFormula(name, pkg); !ok {
			logger.Warn("Formula function does not resolve.", "function", q)
			errs = append(errs, fmt.Sprintf("formula '%s' is not registered", q))
		}
	}
	for _, q := range actions {
		pkg, name := splitQualified(q)
		if _, ok := r.ResolveAction(name, pkg); !ok {
			logger.Warn("Custom action does not resolve.", "action", q)
			errs = append(errs, fmt.Sprintf("action '%s' is not registered", q))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
