// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Schema is the subset of JSON Schema used for tool inputSchema and
// outputSchema.
type Schema struct {
	// Type is "object", "string", "boolean", "integer", "number", or
	// "array". Empty means any JSON value.
	Type string `json:"type,omitempty"`

	// Description comes from the desc struct tag.
	Description string `json:"description,omitempty"`

	// Properties maps property names to their schemas for objects.
	Properties map[string]*Schema `json:"properties,omitempty"`

	// Required lists property names that must be present and non-null,
	// in struct field order.
	Required []string `json:"required,omitempty"`

	// Default is parsed from the default struct tag into the field's
	// JSON type.
	Default any `json:"default,omitempty"`

	// Items describes array elements.
	Items *Schema `json:"items,omitempty"`

	// AdditionalProperties describes values of map-typed objects.
	AdditionalProperties *Schema `json:"additionalProperties,omitempty"`

	// Format is a hint such as "date-time" or "byte".
	Format string `json:"format,omitempty"`
}

// ParamsSchema builds an object schema from a parameter struct type.
// Property names come from json tags (fields without one are skipped),
// descriptions from desc tags, defaults from default tags. A field is
// required when tagged required:"true" and has no default.
func ParamsSchema(structType reflect.Type) (*Schema, error) {
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("parameters must be a struct, got %s", structType)
	}
	schema, err := buildObjectSchema(structType)
	if err != nil {
		return nil, err
	}
	// Tool inputs are always objects, even with no parameters.
	if schema.Properties == nil {
		schema.Properties = map[string]*Schema{}
	}
	return schema, nil
}

// OutputSchema builds a schema for a result type: structs, slices,
// maps, and primitives.
func OutputSchema(resultType reflect.Type) (*Schema, error) {
	if resultType.Kind() == reflect.Pointer {
		resultType = resultType.Elem()
	}
	return schemaForType(resultType)
}

func buildObjectSchema(structType reflect.Type) (*Schema, error) {
	schema := &Schema{
		Type:       "object",
		Properties: make(map[string]*Schema),
	}

	for i := range structType.NumField() {
		field := structType.Field(i)

		// Embedded structs merge their properties into the parent.
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			embedded, err := buildObjectSchema(field.Type)
			if err != nil {
				return nil, fmt.Errorf("embedded %s: %w", field.Name, err)
			}
			for name, property := range embedded.Properties {
				schema.Properties[name] = property
			}
			schema.Required = append(schema.Required, embedded.Required...)
			continue
		}

		if !field.IsExported() {
			continue
		}

		propertyName := jsonPropertyName(field)
		if propertyName == "" || propertyName == "-" {
			continue
		}

		property, err := fieldSchema(field)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		schema.Properties[propertyName] = property

		if field.Tag.Get("required") == "true" && field.Tag.Get("default") == "" {
			schema.Required = append(schema.Required, propertyName)
		}
	}

	if len(schema.Properties) == 0 {
		schema.Properties = nil
	}
	return schema, nil
}

// jsonPropertyName returns the name from the json tag, "" when there is
// no tag, or "-" when the field is excluded.
func jsonPropertyName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}

// fieldSchema handles primitives and string slices directly, with desc
// and default tags, and delegates compound types to schemaForType.
func fieldSchema(field reflect.StructField) (*Schema, error) {
	description := field.Tag.Get("desc")

	fieldType := field.Type
	if fieldType.Kind() == reflect.Pointer {
		fieldType = fieldType.Elem()
	}

	switch fieldType.Kind() {
	case reflect.String:
		return withDefault(&Schema{Type: "string", Description: description}, fieldType, field)
	case reflect.Bool:
		return withDefault(&Schema{Type: "boolean", Description: description}, fieldType, field)
	case reflect.Int, reflect.Int32, reflect.Int64:
		return withDefault(&Schema{Type: "integer", Description: description}, fieldType, field)
	case reflect.Float64:
		return withDefault(&Schema{Type: "number", Description: description}, fieldType, field)
	case reflect.Slice:
		if fieldType.Elem().Kind() == reflect.String {
			return withDefault(&Schema{Type: "array", Items: &Schema{Type: "string"}, Description: description}, fieldType, field)
		}
	}

	schema, err := schemaForType(fieldType)
	if err != nil {
		return nil, err
	}
	schema.Description = description
	return schema, nil
}

func withDefault(schema *Schema, fieldType reflect.Type, field reflect.StructField) (*Schema, error) {
	if text := field.Tag.Get("default"); text != "" {
		value, err := parseDefault(fieldType, text)
		if err != nil {
			return nil, fmt.Errorf("default %q: %w", text, err)
		}
		schema.Default = value
	}
	return schema, nil
}

// parseDefault converts a default tag into a value that marshals to the
// field's JSON type.
func parseDefault(fieldType reflect.Type, value string) (any, error) {
	switch fieldType.Kind() {
	case reflect.String:
		return value, nil
	case reflect.Bool:
		return strconv.ParseBool(value)
	case reflect.Int, reflect.Int32, reflect.Int64:
		return strconv.ParseInt(value, 10, 64)
	case reflect.Float64:
		return strconv.ParseFloat(value, 64)
	case reflect.Slice:
		if fieldType.Elem().Kind() == reflect.String {
			return strings.Split(value, ","), nil
		}
	}
	return nil, fmt.Errorf("unsupported default for type %s", fieldType)
}

var (
	timeType       = reflect.TypeOf(time.Time{})
	rawMessageType = reflect.TypeOf(json.RawMessage{})
	byteSliceType  = reflect.TypeOf([]byte{})
)

func schemaForType(typ reflect.Type) (*Schema, error) {
	switch typ {
	case timeType:
		return &Schema{Type: "string", Format: "date-time"}, nil
	case rawMessageType:
		return &Schema{}, nil
	case byteSliceType:
		return &Schema{Type: "string", Format: "byte"}, nil
	}

	switch typ.Kind() {
	case reflect.Struct:
		return buildObjectSchema(typ)
	case reflect.Slice, reflect.Array:
		items, err := schemaForType(typ.Elem())
		if err != nil {
			return nil, fmt.Errorf("array element: %w", err)
		}
		return &Schema{Type: "array", Items: items}, nil
	case reflect.Pointer:
		return schemaForType(typ.Elem())
	case reflect.String:
		return &Schema{Type: "string"}, nil
	case reflect.Bool:
		return &Schema{Type: "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}, nil
	case reflect.Map:
		if typ.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type %s", typ.Key())
		}
		if typ.Elem().Kind() == reflect.Interface {
			return &Schema{Type: "object"}, nil
		}
		values, err := schemaForType(typ.Elem())
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "object", AdditionalProperties: values}, nil
	case reflect.Interface:
		return &Schema{}, nil
	default:
		return nil, fmt.Errorf("unsupported type %s (%s)", typ, typ.Kind())
	}
}
