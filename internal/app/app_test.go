package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/weave/internal/limits"
	"github.com/vk/weave/internal/testutil"
)

const shopPackage = `
	name: shop
	components:
	  Cart:
	    variables:
	      total:
	        initialValue: {type: value, value: 0}
	      greeting:
	        initialValue:
	          type: function
	          package: cty
	          name: upper
	          arguments:
	            - formula: {type: path, path: [Attributes, name]}
	    workflows:
	      add:
	        parameters: [{name: amount}]
	        actions:
	          - type: SetVariable
	            variable: total
	            data:
	              type: function
	              name: add
	              arguments:
	                - formula: {type: path, path: [Variables, total]}
	                - formula: {type: path, path: [Parameters, amount]}
	          - type: TriggerEvent
	            event: added
	            data: {type: path, path: [Variables, total]}
	          - type: SetURLParameter
	            parameter: total
	            data: {type: path, path: [Variables, total]}
	    onLoad:
	      actions:
	        - {type: TriggerEvent, event: loaded}
	formulas:
	  double:
	    arguments: [{name: n}]
	    formula:
	      type: function
	      name: add
	      arguments:
	        - formula: {type: path, path: [Args, n]}
	        - formula: {type: path, path: [Args, n]}
`

const webPackage = `
	name: web
	components:
	  Page:
	    variables:
	      doubled:
	        initialValue:
	          type: function
	          package: shop
	          name: double
	          arguments:
	            - name: n
	              formula: {type: value, value: 21}
`

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(Config{})
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)

	_, err = NewConfig(Config{LogFormat: "xml"})
	assert.ErrorContains(t, err, "log format")

	_, err = NewConfig(Config{LogLevel: "loud"})
	assert.ErrorContains(t, err, "log level")

	_, err = NewConfig(Config{Limits: map[string]map[string]int64{"formula": {"maxDepth": 0}}})
	assert.ErrorContains(t, err, "formula.maxDepth")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weave.hcl")
	require.NoError(t, os.WriteFile(path, []byte(testutil.Unindent(`
		packages   = "./packages"
		log_level  = "debug"
		strict     = true

		limits {
		  formula {
		    max_depth = 40
		  }
		  action {
		    max_list_length = 10
		  }
		  workflow {
		    max_depth = 4
		  }
		}
	`)), 0o644))

	file, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "./packages", file.Packages)
	assert.Equal(t, map[string]map[string]int64{
		limits.CategoryFormula:  {limits.MaxDepth: 40},
		limits.CategoryAction:   {limits.MaxListLength: 10},
		limits.CategoryWorkflow: {limits.MaxDepth: 4},
	}, file.LimitOverrides())

	merged := file.Merge(Config{
		LogLevel: "warn",
		Limits:   map[string]map[string]int64{limits.CategoryFormula: {limits.MaxDepth: 50}},
	})
	assert.Equal(t, "./packages", merged.PackagesPath)
	assert.Equal(t, "warn", merged.LogLevel, "flags win over the file")
	assert.True(t, merged.Strict)
	assert.Equal(t, int64(50), merged.Limits[limits.CategoryFormula][limits.MaxDepth])
	assert.Equal(t, int64(4), merged.Limits[limits.CategoryWorkflow][limits.MaxDepth])
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weave.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`unknown_attribute = 1`), 0o644))
	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "failed to decode")

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}

func TestNewApp_LimitsApplied(t *testing.T) {
	a, _ := SetupAppTest(t, &Config{Limits: map[string]map[string]int64{
		limits.CategoryFormula: {limits.MaxDepth: 7},
	}})
	assert.Equal(t, int64(7), a.Limits().MustGet(limits.CategoryFormula, limits.MaxDepth))
	assert.Equal(t, int64(64), a.Limits().MustGet(limits.CategoryAction, limits.MaxDepth))
}

func TestRun(t *testing.T) {
	dir := WritePackages(t, map[string]string{"shop.yaml": shopPackage})
	a, logs := SetupAppTest(t, &Config{PackagesPath: dir})

	result, err := a.Run(context.Background(), RunRequest{
		Component:  "shop/Cart",
		Attributes: map[string]any{"name": "ada"},
		Workflow:   "add",
		Parameters: map[string]any{"amount": 5.0},
	})
	require.NoError(t, err)
	assert.Empty(t, a.Errors())

	assert.Equal(t, map[string]any{"total": 5.0, "greeting": "ADA"}, result.Variables)
	assert.Equal(t, []EmittedEvent{{Name: "loaded"}, {Name: "added", Data: 5.0}}, result.Events)
	assert.Equal(t, map[string]any{"total": 5.0}, result.URL)
	assert.Contains(t, logs.String(), "Packages loaded successfully.")
}

func TestRun_UnknownComponent(t *testing.T) {
	a, _ := SetupAppTest(t, &Config{})
	_, err := a.Run(context.Background(), RunRequest{Component: "shop/Missing"})
	assert.ErrorContains(t, err, "is not loaded")
}

func TestRun_SoftFailuresAreCollected(t *testing.T) {
	dir := WritePackages(t, map[string]string{"shop.yaml": shopPackage})
	a, _ := SetupAppTest(t, &Config{PackagesPath: dir})

	_, err := a.Run(context.Background(), RunRequest{Component: "shop/Cart", Workflow: "missing"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.Errors())

	a.ResetErrors()
	assert.Empty(t, a.Errors())
}

func TestCrossPackageDefinition(t *testing.T) {
	dir := WritePackages(t, map[string]string{
		"shop.yaml":     shopPackage,
		"web/page.yaml": webPackage,
	})
	a, _ := SetupAppTest(t, &Config{PackagesPath: dir})

	result, err := a.Run(context.Background(), RunRequest{Component: "web/Page"})
	require.NoError(t, err)
	assert.Equal(t, 42.0, result.Variables["doubled"])

	order, err := a.PackageOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"cty", "shop", "web"}, order)

	deps, err := a.PackageDependencies("web")
	require.NoError(t, err)
	assert.Equal(t, []string{"shop"}, deps)
}

func TestLoadPackages_CycleIsFatal(t *testing.T) {
	dir := WritePackages(t, map[string]string{
		"a.yaml": `
			name: a
			formulas:
			  f:
			    formula: {type: function, package: b, name: g}
		`,
		"b.yaml": `
			name: b
			formulas:
			  g:
			    formula: {type: function, package: a, name: f}
		`,
	})
	_, err := NewApp(&testutil.SafeBuffer{}, &Config{PackagesPath: dir})
	var cycle *limits.CycleError
	assert.ErrorAs(t, err, &cycle)
}

func TestLoadPackages_Strict(t *testing.T) {
	dir := WritePackages(t, map[string]string{"app.yaml": `
		name: app
		formulas:
		  broken:
		    formula: {type: function, name: nope}
	`})

	a, logs := SetupAppTest(t, &Config{PackagesPath: dir})
	assert.NotNil(t, a)
	assert.Contains(t, logs.String(), "Some references do not resolve")

	_, err := NewApp(&testutil.SafeBuffer{}, &Config{PackagesPath: dir, Strict: true})
	assert.ErrorContains(t, err, "formula 'nope' is not registered")
}

func TestReferences(t *testing.T) {
	dir := WritePackages(t, map[string]string{
		"shop.yaml":     shopPackage,
		"web/page.yaml": webPackage,
	})
	a, _ := SetupAppTest(t, &Config{PackagesPath: dir})

	shop, err := a.References("shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"add", "cty/upper"}, shop.Functions())

	page, err := a.References("web/Page")
	require.NoError(t, err)
	assert.Equal(t, []string{"shop/double"}, page.Functions())

	all, err := a.References("")
	require.NoError(t, err)
	assert.Equal(t, []string{"add", "cty/upper", "shop/double"}, all.Functions())

	_, err = a.References("nowhere")
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	a, _ := SetupAppTest(t, &Config{})
	f := testutil.FormulaYAML(t, `
		type: function
		name: concatenate
		arguments:
		  - formula: {type: value, value: "hello "}
		  - formula: {type: path, path: [Variables, who]}
	`)
	got := a.Evaluate(context.Background(), f, map[string]any{"Variables": map[string]any{"who": "world"}})
	assert.Equal(t, "hello world", got)
}

func TestEvaluate_FormulaBudget(t *testing.T) {
	slow := &testutil.SimpleModule{
		FormulaName: "slow",
		Formula: func(context.Context, map[string]any) (any, error) {
			time.Sleep(20 * time.Millisecond)
			return true, nil
		},
	}
	a, _ := SetupAppTest(t, &Config{Limits: map[string]map[string]int64{
		limits.CategoryTime: {limits.FormulaBudgetMs: 5},
	}}, slow)

	got := a.Evaluate(context.Background(), testutil.FormulaYAML(t, `
		type: array
		arguments:
		  - formula: {type: function, name: slow}
		  - formula: {type: function, name: slow}
	`), nil)

	assert.Equal(t, []any{true, nil}, got)
	require.NotEmpty(t, a.Errors())
	assert.ErrorIs(t, a.Errors()[0], context.DeadlineExceeded)
}
