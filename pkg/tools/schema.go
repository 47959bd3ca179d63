// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

package tools

// ParamType enumerates the parameter value types a schema may declare.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
	TypeArray   ParamType = "array"
)

// Param declares one parameter: its type, whether it is required, and any
// constraints. Object parameters nest Fields; array parameters declare the
// element schema in Items.
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`

	// Numeric constraints.
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`

	// String constraints.
	MinLength *int   `json:"min_length,omitempty"`
	MaxLength *int   `json:"max_length,omitempty"`
	Pattern   string `json:"pattern,omitempty"`

	// Enum restricts the value to the listed members.
	Enum []any `json:"enum,omitempty"`

	// Items is the element schema for array parameters.
	Items *Param `json:"items,omitempty"`

	// Fields is the ordered field list for object parameters.
	Fields []Param `json:"fields,omitempty"`
}

// Schema is the ordered parameter list a tool declares.
type Schema struct {
	Params []Param `json:"params"`
}

// Float64Ptr is a convenience for building numeric constraints.
func Float64Ptr(v float64) *float64 { return &v }

// IntPtr is a convenience for building length constraints.
func IntPtr(v int) *int { return &v }

// JSONSchema renders the schema as a JSON-Schema-shaped map for wire
// surfaces like MCP.
func (s Schema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Params))
	var required []string
	for _, p := range s.Params {
		properties[p.Name] = p.jsonSchema()
		if p.Required {
			required = append(required, p.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func (p Param) jsonSchema() map[string]any {
	out := map[string]any{"type": jsonType(p.Type)}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if p.Min != nil {
		out["minimum"] = *p.Min
	}
	if p.Max != nil {
		out["maximum"] = *p.Max
	}
	if p.MinLength != nil {
		out["minLength"] = *p.MinLength
	}
	if p.MaxLength != nil {
		out["maxLength"] = *p.MaxLength
	}
	if p.Pattern != "" {
		out["pattern"] = p.Pattern
	}
	if len(p.Enum) > 0 {
		out["enum"] = p.Enum
	}
	if p.Type == TypeArray && p.Items != nil {
		out["items"] = p.Items.jsonSchema()
	}
	if p.Type == TypeObject && len(p.Fields) > 0 {
		properties := make(map[string]any, len(p.Fields))
		var required []string
		for _, f := range p.Fields {
			properties[f.Name] = f.jsonSchema()
			if f.Required {
				required = append(required, f.Name)
			}
		}
		out["properties"] = properties
		if len(required) > 0 {
			out["required"] = required
		}
	}
	return out
}

func jsonType(t ParamType) string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	default:
		return "string"
	}
}
