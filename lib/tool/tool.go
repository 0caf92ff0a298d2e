// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// Annotations are behavioral hints for clients. Nil pointers are omitted
// so the client applies its own defaults.
type Annotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    *bool  `json:"readOnlyHint,omitempty"`
	DestructiveHint *bool  `json:"destructiveHint,omitempty"`
	IdempotentHint  *bool  `json:"idempotentHint,omitempty"`
	OpenWorldHint   *bool  `json:"openWorldHint,omitempty"`
}

// Spec is the static description of a tool.
type Spec struct {
	Name        string
	Title       string
	Description string
	Annotations *Annotations
}

// Tool is a validated, typed capability. Build one with Define.
type Tool struct {
	Spec
	InputSchema  *Schema
	OutputSchema *Schema

	run func(ctx context.Context, arguments map[string]json.RawMessage) (any, error)
}

// Define builds a Tool whose parameters decode into P and whose result
// is R. Define panics if P or R cannot be described by a schema; tool
// catalogues are fixed at build time, so that is a programming error.
func Define[P, R any](spec Spec, run func(ctx context.Context, params P) (R, error)) *Tool {
	if spec.Name == "" {
		panic("tool: Define requires a name")
	}
	input, err := ParamsSchema(reflect.TypeFor[P]())
	if err != nil {
		panic(fmt.Sprintf("tool %s: input schema: %v", spec.Name, err))
	}
	output, err := OutputSchema(reflect.TypeFor[R]())
	if err != nil {
		panic(fmt.Sprintf("tool %s: output schema: %v", spec.Name, err))
	}

	return &Tool{
		Spec:         spec,
		InputSchema:  input,
		OutputSchema: output,
		run: func(ctx context.Context, arguments map[string]json.RawMessage) (any, error) {
			encoded, err := json.Marshal(arguments)
			if err != nil {
				return nil, Internal("re-encoding arguments: %w", err)
			}
			var params P
			if err := json.Unmarshal(encoded, &params); err != nil {
				var typeErr *json.UnmarshalTypeError
				if errors.As(err, &typeErr) {
					return nil, Validation(typeErr.Field, "argument %q: %v", typeErr.Field, err)
				}
				return nil, Validation("", "decoding arguments: %v", err)
			}
			return run(ctx, params)
		},
	}
}

// Call validates raw arguments and runs the tool. Validation failures
// return before the tool body runs.
func (t *Tool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	arguments, err := Validate(t.InputSchema, raw)
	if err != nil {
		return nil, err
	}
	return t.run(ctx, arguments)
}

// ErrUnknownTool is returned by Registry.Call for names not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Registry holds tools in registration order.
type Registry struct {
	tools    []*Tool
	byName   map[string]*Tool
	classify Classifier
}

// NewRegistry returns a registry containing tools. It returns an error
// if two tools share a name.
func NewRegistry(tools ...*Tool) (*Registry, error) {
	registry := &Registry{byName: make(map[string]*Tool, len(tools))}
	for _, tool := range tools {
		if _, exists := registry.byName[tool.Name]; exists {
			return nil, fmt.Errorf("tool: duplicate tool name %q", tool.Name)
		}
		registry.byName[tool.Name] = tool
		registry.tools = append(registry.tools, tool)
	}
	return registry, nil
}

// SetClassifier installs the domain mapping consulted by Classify
// before the generic fallback.
func (r *Registry) SetClassifier(classify Classifier) {
	r.classify = classify
}

// Classify maps a failure returned by one of the registry's tools onto a
// ToolError. A *ToolError in the chain wins, then the installed
// Classifier, then the package-level [Classify].
func (r *Registry) Classify(err error) *ToolError {
	if err == nil {
		return nil
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}
	if r.classify != nil {
		if classified := r.classify(err); classified != nil {
			return classified
		}
	}
	return Classify(err)
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []*Tool {
	return r.tools
}

// Lookup returns the tool with the given name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	tool, ok := r.byName[name]
	return tool, ok
}

// Call looks up name and calls it with raw arguments.
func (r *Registry) Call(ctx context.Context, name string, raw json.RawMessage) (any, error) {
	tool, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return tool.Call(ctx, raw)
}
