// Package schema provides helpers for building the JSON schemas that
// describe tool parameters to the model.
package schema

import (
	jsonschema "github.com/swaggest/jsonschema-go"
)

// String creates a JSON schema for a string field.
func String(description string) *jsonschema.Schema {
	strType := jsonschema.SimpleType("string")
	return &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &strType},
		Description: &description,
	}
}

// StringEnum creates a JSON schema for a string field restricted to the
// given values.
func StringEnum(description string, values []string) *jsonschema.Schema {
	strType := jsonschema.SimpleType("string")
	enum := make([]interface{}, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &strType},
		Description: &description,
		Enum:        enum,
	}
}

// Integer creates a JSON schema for an integer field.
func Integer(description string) *jsonschema.Schema {
	intType := jsonschema.SimpleType("integer")
	return &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &intType},
		Description: &description,
	}
}

// Number creates a JSON schema for a numeric field with a default value.
func Number(description string, defaultValue float64) *jsonschema.Schema {
	numType := jsonschema.SimpleType("number")
	defVal := interface{}(defaultValue)
	return &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &numType},
		Description: &description,
		Default:     &defVal,
	}
}

// StringArray creates a JSON schema for an array-of-strings field.
func StringArray(description string) *jsonschema.Schema {
	arrType := jsonschema.SimpleType("array")
	strType := jsonschema.SimpleType("string")
	return &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &arrType},
		Description: &description,
		Items: &jsonschema.Items{
			SchemaOrBool: &jsonschema.SchemaOrBool{
				TypeObject: &jsonschema.Schema{Type: &jsonschema.Type{SimpleTypes: &strType}},
			},
		},
	}
}

// Map creates a JSON schema for a free-form object field with no declared
// properties.
func Map(description string) *jsonschema.Schema {
	objType := jsonschema.SimpleType("object")
	return &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &objType},
		Description: &description,
	}
}

// WithDefault sets a default value on a schema and returns it.
func WithDefault(s *jsonschema.Schema, value interface{}) *jsonschema.Schema {
	s.Default = &value
	return s
}

// Object creates a JSON schema for an object with properties and required
// fields.
func Object(properties map[string]*jsonschema.Schema, required []string) *jsonschema.Schema {
	schemaProps := make(map[string]jsonschema.SchemaOrBool)
	for name, prop := range properties {
		schemaProps[name] = jsonschema.SchemaOrBool{TypeObject: prop}
	}

	objType := jsonschema.SimpleType("object")
	return &jsonschema.Schema{
		Type:       &jsonschema.Type{SimpleTypes: &objType},
		Properties: schemaProps,
		Required:   required,
	}
}
