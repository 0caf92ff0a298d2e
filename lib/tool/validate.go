// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Validate checks raw arguments against an object schema and returns
// them as a property map with defaults applied and explicit nulls on
// optional properties removed. Absent or null raw arguments are treated
// as an empty object. Every failure is a KindValidation *ToolError
// naming the offending property.
func Validate(schema *Schema, raw json.RawMessage) (map[string]json.RawMessage, error) {
	arguments := make(map[string]json.RawMessage)
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if trimmed[0] != '{' {
			return nil, Validation("", "arguments must be a JSON object")
		}
		if err := json.Unmarshal(trimmed, &arguments); err != nil {
			return nil, Validation("", "arguments must be a JSON object: %v", err)
		}
	}

	// Unknown properties first, in a stable order.
	names := make([]string, 0, len(arguments))
	for name := range arguments {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, declared := schema.Properties[name]; !declared {
			return nil, Validation(name, "unknown argument %q", name)
		}
	}

	for _, name := range schema.Required {
		value, present := arguments[name]
		if !present || isNull(value) {
			return nil, Validation(name, "missing required argument %q", name)
		}
	}

	for _, name := range names {
		value := arguments[name]
		if isNull(value) {
			delete(arguments, name)
			continue
		}
		if err := checkKind(name, schema.Properties[name], value); err != nil {
			return nil, err
		}
	}

	for name, property := range schema.Properties {
		if _, present := arguments[name]; present || property.Default == nil {
			continue
		}
		encoded, err := json.Marshal(property.Default)
		if err != nil {
			return nil, Internal("encoding default for %q: %w", name, err)
		}
		arguments[name] = encoded
	}

	return arguments, nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

// checkKind verifies value has the JSON type schema declares.
func checkKind(name string, schema *Schema, value json.RawMessage) error {
	decoder := json.NewDecoder(bytes.NewReader(value))
	decoder.UseNumber()
	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		return Validation(name, "argument %q is not valid JSON: %v", name, err)
	}
	if err := checkValue(name, schema, decoded); err != nil {
		return err
	}
	return nil
}

func checkValue(name string, schema *Schema, value any) *ToolError {
	if schema == nil || schema.Type == "" {
		return nil
	}
	switch schema.Type {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "integer":
		if number, ok := value.(json.Number); ok {
			if _, err := number.Int64(); err == nil {
				return nil
			}
		}
	case "number":
		if _, ok := value.(json.Number); ok {
			return nil
		}
	case "object":
		if _, ok := value.(map[string]any); ok {
			return nil
		}
	case "array":
		items, ok := value.([]any)
		if !ok {
			break
		}
		for index, item := range items {
			if err := checkValue(fmt.Sprintf("%s[%d]", name, index), schema.Items, item); err != nil {
				err.Field = name
				return err
			}
		}
		return nil
	default:
		return nil
	}
	return Validation(name, "argument %q must be %s, got %s", name, describe(schema), jsonKind(value))
}

func describe(schema *Schema) string {
	switch schema.Type {
	case "array":
		if schema.Items != nil && schema.Items.Type != "" {
			return "an array of " + schema.Items.Type + "s"
		}
		return "an array"
	case "integer", "object":
		return "an " + schema.Type
	default:
		return "a " + schema.Type
	}
}

func jsonKind(value any) string {
	switch value := value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		if strings.ContainsAny(value.String(), ".eE") {
			return "number"
		}
		return "integer"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", value)
	}
}
