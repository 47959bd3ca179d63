// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"fmt"
	"regexp"
)

// Validation error codes.
const (
	ValidationRequired  = "required"
	ValidationType      = "type"
	ValidationMin       = "min"
	ValidationMax       = "max"
	ValidationMinLength = "min_length"
	ValidationMaxLength = "max_length"
	ValidationPattern   = "pattern"
	ValidationEnum      = "enum"
)

// ValidationError describes one constraint violation.
type ValidationError struct {
	Code    string `json:"code"`
	Param   string `json:"param"`
	Message string `json:"message"`
}

// ValidationResult reports all violations and warnings for a parameter set.
// Validation never mutates the input and never returns partial success: a
// single error invalidates the whole set.
type ValidationResult struct {
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Valid reports whether no errors were found.
func (vr ValidationResult) Valid() bool {
	return len(vr.Errors) == 0
}

func (vr *ValidationResult) addError(code, param, format string, args ...any) {
	vr.Errors = append(vr.Errors, ValidationError{
		Code:    code,
		Param:   param,
		Message: fmt.Sprintf(format, args...),
	})
}

// Validate checks params against schema. Missing required parameters, type
// mismatches, and range/length/pattern/enum violations each produce a
// distinct error code; unknown parameters produce a warning. Nested object
// and array schemas recurse with dotted paths.
func Validate(params map[string]any, schema Schema) ValidationResult {
	var vr ValidationResult
	validateObject(params, schema.Params, "", &vr)

	declared := make(map[string]bool, len(schema.Params))
	for _, p := range schema.Params {
		declared[p.Name] = true
	}
	for name := range params {
		if !declared[name] {
			vr.Warnings = append(vr.Warnings, fmt.Sprintf("unknown parameter %q ignored", name))
		}
	}
	return vr
}

func validateObject(values map[string]any, fields []Param, path string, vr *ValidationResult) {
	for _, field := range fields {
		fieldPath := field.Name
		if path != "" {
			fieldPath = path + "." + field.Name
		}

		value, present := values[field.Name]
		if !present || value == nil {
			if field.Required {
				vr.addError(ValidationRequired, fieldPath, "parameter %q is required", fieldPath)
			}
			continue
		}

		validateValue(value, field, fieldPath, vr)
	}
}

func validateValue(value any, p Param, path string, vr *ValidationResult) {
	switch p.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			vr.addError(ValidationType, path, "parameter %q must be a string, got %T", path, value)
			return
		}
		if p.MinLength != nil && len(s) < *p.MinLength {
			vr.addError(ValidationMinLength, path, "parameter %q must be at least %d characters", path, *p.MinLength)
		}
		if p.MaxLength != nil && len(s) > *p.MaxLength {
			vr.addError(ValidationMaxLength, path, "parameter %q must be at most %d characters", path, *p.MaxLength)
		}
		if p.Pattern != "" {
			re, err := regexp.Compile(p.Pattern)
			if err != nil {
				vr.addError(ValidationPattern, path, "parameter %q has an invalid pattern: %v", path, err)
			} else if !re.MatchString(s) {
				vr.addError(ValidationPattern, path, "parameter %q does not match pattern %s", path, p.Pattern)
			}
		}
		checkEnum(s, p, path, vr)

	case TypeNumber:
		n, ok := asFloat(value)
		if !ok {
			vr.addError(ValidationType, path, "parameter %q must be a number, got %T", path, value)
			return
		}
		if p.Min != nil && n < *p.Min {
			vr.addError(ValidationMin, path, "parameter %q must be >= %v", path, *p.Min)
		}
		if p.Max != nil && n > *p.Max {
			vr.addError(ValidationMax, path, "parameter %q must be <= %v", path, *p.Max)
		}
		checkEnum(n, p, path, vr)

	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			vr.addError(ValidationType, path, "parameter %q must be a boolean, got %T", path, value)
		}

	case TypeArray:
		items, ok := value.([]any)
		if !ok {
			vr.addError(ValidationType, path, "parameter %q must be an array, got %T", path, value)
			return
		}
		if p.Items != nil {
			for i, item := range items {
				validateValue(item, *p.Items, fmt.Sprintf("%s[%d]", path, i), vr)
			}
		}

	case TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			vr.addError(ValidationType, path, "parameter %q must be an object, got %T", path, value)
			return
		}
		validateObject(obj, p.Fields, path, vr)

	default:
		// Unconstrained type: accept anything.
	}
}

func checkEnum(value any, p Param, path string, vr *ValidationResult) {
	if len(p.Enum) == 0 {
		return
	}
	for _, member := range p.Enum {
		if enumEqual(value, member) {
			return
		}
	}
	vr.addError(ValidationEnum, path, "parameter %q must be one of %v", path, p.Enum)
}

// enumEqual compares an input value to an enum member, treating all numeric
// representations as float64 the way decoded JSON does.
func enumEqual(value, member any) bool {
	if vf, ok := asFloat(value); ok {
		if mf, ok := asFloat(member); ok {
			return vf == mf
		}
		return false
	}
	return value == member
}

func asFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
