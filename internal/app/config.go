package app

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/weave/internal/limits"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PackagesPath string // .json/.yaml package files

	LogFormat string
	LogLevel  string

	// Strict turns unresolved function and action references into a
	// startup error instead of a warning.
	Strict bool

	// Limits overrides ceilings by category and name.
	Limits map[string]map[string]int64
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, errors.New("invalid log format: must be 'text' or 'json'")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	for category, values := range cfg.Limits {
		for name, v := range values {
			if v <= 0 {
				return nil, fmt.Errorf("invalid limit %s.%s: must be positive, got %d", category, name, v)
			}
		}
	}
	return &cfg, nil
}

// FileConfig is the shape of a weave.hcl configuration file. Every field
// is optional; command line flags override what the file sets.
type FileConfig struct {
	Packages  string       `hcl:"packages,optional"`
	LogLevel  string       `hcl:"log_level,optional"`
	LogFormat string       `hcl:"log_format,optional"`
	Strict    *bool        `hcl:"strict,optional"`
	Limits    *limitsBlock `hcl:"limits,block"`
}

type limitsBlock struct {
	Formula   *formulaLimits `hcl:"formula,block"`
	Action    *actionLimits  `hcl:"action,block"`
	Workflow  *depthLimit    `hcl:"workflow,block"`
	Component *depthLimit    `hcl:"component,block"`
	Time      *timeLimits    `hcl:"time,block"`
}

type formulaLimits struct {
	MaxDepth     *int64 `hcl:"max_depth,optional"`
	MaxArguments *int64 `hcl:"max_arguments,optional"`
}

type actionLimits struct {
	MaxDepth      *int64 `hcl:"max_depth,optional"`
	MaxListLength *int64 `hcl:"max_list_length,optional"`
}

type depthLimit struct {
	MaxDepth *int64 `hcl:"max_depth,optional"`
}

type timeLimits struct {
	FormulaBudgetMs *int64 `hcl:"formula_budget_ms,optional"`
	ActionBudgetMs  *int64 `hcl:"action_budget_ms,optional"`
}

// LoadFile parses and decodes a configuration file.
func LoadFile(filePath string) (*FileConfig, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(filePath)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filePath, diags)
	}

	var cfg FileConfig
	diags = gohcl.DecodeBody(hclFile.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filePath, diags)
	}
	return &cfg, nil
}

// LimitOverrides flattens the limits block into the category/name form
// limits.Table.Override takes. Unset attributes are omitted.
func (f *FileConfig) LimitOverrides() map[string]map[string]int64 {
	out := make(map[string]map[string]int64)
	if f == nil || f.Limits == nil {
		return out
	}
	set := func(category, name string, v *int64) {
		if v == nil {
			return
		}
		if out[category] == nil {
			out[category] = make(map[string]int64)
		}
		out[category][name] = *v
	}

	l := f.Limits
	if l.Formula != nil {
		set(limits.CategoryFormula, limits.MaxDepth, l.Formula.MaxDepth)
		set(limits.CategoryFormula, limits.MaxArguments, l.Formula.MaxArguments)
	}
	if l.Action != nil {
		set(limits.CategoryAction, limits.MaxDepth, l.Action.MaxDepth)
		set(limits.CategoryAction, limits.MaxListLength, l.Action.MaxListLength)
	}
	if l.Workflow != nil {
		set(limits.CategoryWorkflow, limits.MaxDepth, l.Workflow.MaxDepth)
	}
	if l.Component != nil {
		set(limits.CategoryComponent, limits.MaxDepth, l.Component.MaxDepth)
	}
	if l.Time != nil {
		set(limits.CategoryTime, limits.FormulaBudgetMs, l.Time.FormulaBudgetMs)
		set(limits.CategoryTime, limits.ActionBudgetMs, l.Time.ActionBudgetMs)
	}
	return out
}

// Merge returns cfg with every value the file sets and cfg leaves at its
// zero value filled in. Limits from cfg win over limits from the file.
func (f *FileConfig) Merge(cfg Config) Config {
	if f == nil {
		return cfg
	}
	if cfg.PackagesPath == "" {
		cfg.PackagesPath = f.Packages
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = f.LogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = f.LogFormat
	}
	if !cfg.Strict && f.Strict != nil {
		cfg.Strict = *f.Strict
	}

	merged := f.LimitOverrides()
	for category, values := range cfg.Limits {
		if merged[category] == nil {
			merged[category] = make(map[string]int64)
		}
		for name, v := range values {
			merged[category][name] = v
		}
	}
	cfg.Limits = merged
	return cfg
}
