package ast

import "fmt"

// DecodeComponent builds a Component from its generic representation.
func DecodeComponent(v any) (*Component, error) {
	m, err := object(v)
	if err != nil {
		return nil, fmt.Errorf("component: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("component must not be null")
	}

	c := &Component{
		Name:      str(m, "name"),
		Package:   str(m, "package"),
		Variables: make(map[string]*Variable),
		Formulas:  make(map[string]*ComponentFormula),
		Workflows: make(map[string]*Workflow),
		APIs:      make(map[string]*API),
		Nodes:     make(map[string]Node),
	}

	if err := eachObject(m["variables"], func(name string, v map[string]any) error {
		initial, err := DecodeFormula(v["initialValue"])
		if err != nil {
			return err
		}
		c.Variables[name] = &Variable{InitialValue: initial}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("component %q variables: %w", c.Name, err)
	}

	if err := eachObject(m["formulas"], func(name string, v map[string]any) error {
		body, err := DecodeFormula(v["formula"])
		if err != nil {
			return err
		}
		memoize, _ := v["memoize"].(bool)
		expose, _ := v["exposeInContext"].(bool)
		c.Formulas[name] = &ComponentFormula{
			Name:            name,
			Arguments:       decodeParameters(v["arguments"]),
			Memoize:         memoize,
			ExposeInContext: expose,
			Formula:         body,
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("component %q formulas: %w", c.Name, err)
	}

	if err := eachObject(m["workflows"], func(name string, v map[string]any) error {
		actions, err := DecodeActions(v["actions"])
		if err != nil {
			return err
		}
		expose, _ := v["exposeInContext"].(bool)
		c.Workflows[name] = &Workflow{
			Name:            name,
			Parameters:      decodeParameters(v["parameters"]),
			Callbacks:       decodeParameters(v["callbacks"]),
			Actions:         actions,
			ExposeInContext: expose,
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("component %q workflows: %w", c.Name, err)
	}

	if err := eachObject(m["apis"], func(name string, v map[string]any) error {
		api, err := decodeAPI(name, v)
		if err != nil {
			return err
		}
		c.APIs[name] = api
		return nil
	}); err != nil {
		return nil, fmt.Errorf("component %q apis: %w", c.Name, err)
	}

	if err := eachObject(m["nodes"], func(id string, v map[string]any) error {
		n, err := DecodeNode(v)
		if err != nil {
			return err
		}
		c.Nodes[id] = n
		return nil
	}); err != nil {
		return nil, fmt.Errorf("component %q nodes: %w", c.Name, err)
	}

	if c.OnLoad, err = decodeActionBody(m["onLoad"]); err != nil {
		return nil, fmt.Errorf("component %q onLoad: %w", c.Name, err)
	}
	if c.OnAttributeChange, err = decodeActionBody(m["onAttributeChange"]); err != nil {
		return nil, fmt.Errorf("component %q onAttributeChange: %w", c.Name, err)
	}
	return c, nil
}

func decodeAPI(name string, m map[string]any) (*API, error) {
	inputs, err := decodeFormulaMap(m["inputs"], true)
	if err != nil {
		return nil, fmt.Errorf("inputs: %w", err)
	}
	headers, err := decodeFormulaMap(m["headers"], true)
	if err != nil {
		return nil, fmt.Errorf("headers: %w", err)
	}
	api := &API{Name: name, Method: str(m, "method"), Inputs: inputs, Headers: headers}
	for key, target := range map[string]*Formula{"url": &api.URL, "body": &api.Body, "autoFetch": &api.AutoFetch} {
		if *target, err = DecodeFormula(m[key]); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	client, err := object(m["client"])
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	if client != nil {
		if api.OnCompleted, err = decodeActionBody(client["onCompleted"]); err != nil {
			return nil, fmt.Errorf("onCompleted: %w", err)
		}
		if api.OnFailed, err = decodeActionBody(client["onFailed"]); err != nil {
			return nil, fmt.Errorf("onFailed: %w", err)
		}
	}
	return api, nil
}

// DecodeNode builds a component tree Node.
func DecodeNode(m map[string]any) (Node, error) {
	var (
		common struct{ condition, repeat, repeatKey Formula }
		err    error
	)
	if common.condition, err = DecodeFormula(m["condition"]); err != nil {
		return nil, fmt.Errorf("condition: %w", err)
	}
	if common.repeat, err = DecodeFormula(m["repeat"]); err != nil {
		return nil, fmt.Errorf("repeat: %w", err)
	}
	if common.repeatKey, err = DecodeFormula(m["repeatKey"]); err != nil {
		return nil, fmt.Errorf("repeatKey: %w", err)
	}

	switch kind := str(m, "type"); kind {
	case NodeText:
		value, err := DecodeFormula(m["value"])
		if err != nil {
			return nil, fmt.Errorf("text value: %w", err)
		}
		return &Text{Value: value, Condition: common.condition, Repeat: common.repeat, RepeatKey: common.repeatKey}, nil
	case NodeSlot:
		return &Slot{Name: str(m, "name"), Children: decodeChildren(m["children"]), Condition: common.condition}, nil
	case NodeElement, NodeComponent:
		attrs, err := decodeFormulaMap(m["attrs"], false)
		if err != nil {
			return nil, fmt.Errorf("attrs: %w", err)
		}
		events, err := decodeEvents(m["events"])
		if err != nil {
			return nil, fmt.Errorf("events: %w", err)
		}
		if kind == NodeComponent {
			return &ComponentNode{
				Name:      str(m, "name"),
				Package:   str(m, "package"),
				Attrs:     attrs,
				Events:    events,
				Children:  decodeChildren(m["children"]),
				Condition: common.condition,
				Repeat:    common.repeat,
				RepeatKey: common.repeatKey,
			}, nil
		}
		classes, err := decodeFormulaMap(m["classes"], true)
		if err != nil {
			return nil, fmt.Errorf("classes: %w", err)
		}
		return &Element{
			Tag:       str(m, "tag"),
			Attrs:     attrs,
			Classes:   classes,
			Events:    events,
			Children:  decodeChildren(m["children"]),
			Condition: common.condition,
			Repeat:    common.repeat,
			RepeatKey: common.repeatKey,
		}, nil
	default:
		return nil, fmt.Errorf("unknown node type %q", kind)
	}
}

func decodeEvents(v any) (map[string]*EventHandler, error) {
	out := make(map[string]*EventHandler)
	err := eachObject(v, func(name string, e map[string]any) error {
		actions, err := DecodeActions(e["actions"])
		if err != nil {
			return err
		}
		out[name] = &EventHandler{Trigger: str(e, "trigger"), Actions: actions}
		return nil
	})
	return out, err
}

func decodeChildren(v any) []string {
	items, _ := list(v)
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func decodeParameters(v any) []Parameter {
	items, _ := list(v)
	var out []Parameter
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Parameter{Name: str(m, "name")})
		}
	}
	return out
}

// DecodePackage builds a Package with its components and formula
// definitions. Components without a package inherit the package name.
func DecodePackage(v any) (*Package, error) {
	m, err := object(v)
	if err != nil {
		return nil, fmt.Errorf("package: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("package must not be null")
	}
	p := &Package{
		Name:       str(m, "name"),
		Components: make(map[string]*Component),
		Formulas:   make(map[string]*FormulaDefinition),
	}

	if err := eachObject(m["components"], func(name string, v map[string]any) error {
		c, err := DecodeComponent(v)
		if err != nil {
			return err
		}
		if c.Name == "" {
			c.Name = name
		}
		if c.Package == "" {
			c.Package = p.Name
		}
		p.Components[name] = c
		return nil
	}); err != nil {
		return nil, fmt.Errorf("package %q: %w", p.Name, err)
	}

	if err := eachObject(m["formulas"], func(name string, v map[string]any) error {
		body, err := DecodeFormula(v["formula"])
		if err != nil {
			return err
		}
		p.Formulas[name] = &FormulaDefinition{
			Name:      name,
			Package:   p.Name,
			Arguments: decodeParameters(v["arguments"]),
			Formula:   body,
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("package %q formulas: %w", p.Name, err)
	}
	return p, nil
}

// eachObject calls fn for every object-valued entry of v in key order.
func eachObject(v any, fn func(name string, m map[string]any) error) error {
	m, err := object(v)
	if err != nil || m == nil {
		return err
	}
	for _, name := range sortedKeys(m) {
		entry, err := object(m[name])
		if err != nil {
			return fmt.Errorf("%q: %w", name, err)
		}
		if entry == nil {
			continue
		}
		if err := fn(name, entry); err != nil {
			return fmt.Errorf("%q: %w", name, err)
		}
	}
	return nil
}
