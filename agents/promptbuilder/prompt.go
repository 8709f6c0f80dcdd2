/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package promptbuilder assembles model prompts from templates with
// {{name}} placeholders. Each placeholder must be bound exactly once, either
// to a developer-supplied literal or to structured data rendered as JSON,
// YAML or XML, before the prompt can be built.
package promptbuilder

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

// stringLiteral only accepts untyped constants at call sites, which keeps
// request data out of the template itself.
type stringLiteral string

// Prompt is an immutable template plus its bindings. Bind methods return a
// copy so a package-level prompt can be shared across requests.
type Prompt struct {
	template string
	bindings map[string]binding
}

// binding renders the text substituted for a placeholder. A nil binding marks
// a placeholder that has not been bound yet.
type binding func() (string, error)

// NewPrompt parses the template and records every placeholder it names.
func NewPrompt(template stringLiteral) (*Prompt, error) {
	bindings := make(map[string]binding)
	if _, err := walk(string(template), func(name string) (string, error) {
		bindings[name] = nil
		return "", nil
	}); err != nil {
		return nil, err
	}
	return &Prompt{template: string(template), bindings: bindings}, nil
}

// MustNewPrompt is NewPrompt for package-level variables; it panics on a
// malformed template.
func MustNewPrompt(template stringLiteral) *Prompt {
	p, err := NewPrompt(template)
	if err != nil {
		panic(err)
	}
	return p
}

// Bindings returns the placeholder names in sorted order.
func (p *Prompt) Bindings() []string {
	return slices.Sorted(maps.Keys(p.bindings))
}

// BindLiteral binds a developer-supplied constant.
func (p *Prompt) BindLiteral(name string, value stringLiteral) (*Prompt, error) {
	return p.bind(name, func() (string, error) { return string(value), nil })
}

// BindJSON binds data rendered as indented JSON.
func (p *Prompt) BindJSON(name string, data any) (*Prompt, error) {
	return p.bind(name, func() (string, error) {
		b, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling %s as JSON: %w", name, err)
		}
		return string(b), nil
	})
}

// BindYAML binds data rendered as YAML.
func (p *Prompt) BindYAML(name string, data any) (*Prompt, error) {
	return p.bind(name, func() (string, error) {
		b, err := yaml.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("marshaling %s as YAML: %w", name, err)
		}
		return string(b), nil
	})
}

// BindXML binds data rendered as indented XML. Request types use xml struct
// tags so the model sees clearly delimited sections.
func (p *Prompt) BindXML(name string, data any) (*Prompt, error) {
	return p.bind(name, func() (string, error) {
		b, err := xml.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling %s as XML: %w", name, err)
		}
		return string(b), nil
	})
}

func (p *Prompt) bind(name string, b binding) (*Prompt, error) {
	existing, ok := p.bindings[name]
	switch {
	case !ok:
		return nil, fmt.Errorf("binding %q not found in template", name)
	case existing != nil:
		return nil, fmt.Errorf("binding %q already bound", name)
	}
	next := &Prompt{template: p.template, bindings: maps.Clone(p.bindings)}
	next.bindings[name] = b
	return next, nil
}

// Build renders the prompt. It fails if any placeholder is still unbound or a
// binding cannot be rendered.
func (p *Prompt) Build() (string, error) {
	values := make(map[string]string, len(p.bindings))
	for _, name := range p.Bindings() {
		b := p.bindings[name]
		if b == nil {
			return "", fmt.Errorf("unbound placeholder: %s", name)
		}
		v, err := b()
		if err != nil {
			return "", err
		}
		values[name] = v
	}
	return walk(p.template, func(name string) (string, error) {
		return values[name], nil
	})
}
