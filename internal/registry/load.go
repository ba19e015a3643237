package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/weave/internal/ast"
	"github.com/vk/weave/internal/ctxlog"
	"github.com/vk/weave/internal/fsutil"
)

// LoadPackagesRecursively decodes every .json, .yaml and .yml file under
// path as a package and adds it. Two files declaring the same package name
// are an error.
func (r *Registry) LoadPackagesRecursively(ctx context.Context, path string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Registry loading packages from path...", "path", path)

	filePaths, err := fsutil.FindFilesByExtension(path, ".json", ".yaml", ".yml")
	if err != nil {
		logger.Error("Failed to walk packages path", "path", path, "error", err)
		return err
	}

	if len(filePaths) == 0 {
		logger.Warn("No package files found in path", "path", path)
		return nil
	}

	logger.Debug("Found package files to load", "files", filePaths)

	seen := make(map[string]string)
	for _, filePath := range filePaths {
		p, err := ReadPackageFile(filePath)
		if err != nil {
			return err
		}
		if prev, dup := seen[p.Name]; dup {
			return fmt.Errorf("package %q declared in both %s and %s", p.Name, prev, filePath)
		}
		seen[p.Name] = filePath
		r.AddPackage(p)
		logger.Debug("Successfully loaded package", "file", filePath, "package", p.Name)
	}

	logger.Info("Registry loaded successfully.", "packages_loaded", len(seen))
	return nil
}

// ReadPackageFile decodes one package file. The format is chosen by
// extension.
func ReadPackageFile(filePath string) (*ast.Package, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read package file %s: %w", filePath, err)
	}

	var raw any
	switch filepath.Ext(filePath) {
	case ".yaml", ".yml":
		raw, err = ast.ParseYAML(data)
	default:
		raw, err = ast.ParseJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse package file %s: %w", filePath, err)
	}

	p, err := ast.DecodePackage(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode package file %s: %w", filePath, err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("package file %s has no name", filePath)
	}
	return p, nil
}
