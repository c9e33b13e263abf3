// Package schema declares per-table validation schemas and table descriptors
// for the CRM data layer. Schemas are data, not code: each table maps field
// names to rule descriptors, and the generic repository interprets them at
// write time.
package schema

import (
	"fmt"
	"math"
	"time"

	"github.com/fulqrun/crmstore/errors"
)

// FieldType enumerates the value types a schema rule can require.
type FieldType string

// Supported field types. Records are JSON documents, so "number" accepts any
// JSON number while "integer" additionally requires a whole value.
const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBool    FieldType = "bool"
	TypeTime    FieldType = "time"
	TypeStrings FieldType = "strings" // slice of strings (tags)
	TypeObject  FieldType = "object"  // nested map, stored opaquely
)

// Rule describes the validation constraints for one field.
type Rule struct {
	Type     FieldType
	Required bool
	Enum     []string // valid only for string fields; empty means unrestricted
	Min      *float64 // valid only for numeric fields
	Max      *float64
}

// Float returns a pointer suitable for Rule.Min/Max.
func Float(v float64) *float64 { return &v }

// Schema maps field names (JSON names) to their rules.
type Schema map[string]Rule

// CheckDefinition verifies the schema itself is well formed. A malformed
// schema is a programmer error and fatal at startup.
func (s Schema) CheckDefinition() error {
	for field, rule := range s {
		if field == "" {
			return fmt.Errorf("schema has rule with empty field name")
		}
		switch rule.Type {
		case TypeString, TypeNumber, TypeInteger, TypeBool, TypeTime, TypeStrings, TypeObject:
		default:
			return fmt.Errorf("field %q has unknown type %q", field, rule.Type)
		}
		if len(rule.Enum) > 0 && rule.Type != TypeString {
			return fmt.Errorf("field %q declares an enum but is not a string field", field)
		}
		if (rule.Min != nil || rule.Max != nil) &&
			rule.Type != TypeNumber && rule.Type != TypeInteger {
			return fmt.Errorf("field %q declares numeric bounds but is not numeric", field)
		}
		if rule.Min != nil && rule.Max != nil && *rule.Min > *rule.Max {
			return fmt.Errorf("field %q has Min > Max", field)
		}
	}
	return nil
}

// Validate checks a candidate record against the schema. It returns the full
// list of field violations; an empty result means the record is valid.
// Validate never fails for well-formed input; unknown fields pass through
// untouched, missing optional fields are fine.
func (s Schema) Validate(record map[string]any) []errors.FieldError {
	var fieldErrs []errors.FieldError

	for field, rule := range s {
		value, present := record[field]
		if !present || value == nil {
			if rule.Required {
				fieldErrs = append(fieldErrs, errors.FieldError{
					Field: field, Message: "is required",
				})
			}
			continue
		}

		if msg := checkValue(rule, value); msg != "" {
			fieldErrs = append(fieldErrs, errors.FieldError{Field: field, Message: msg})
		}
	}

	return fieldErrs
}

// checkValue applies a single rule to a present, non-nil value and returns a
// violation message, or "" when the value passes.
func checkValue(rule Rule, value any) string {
	switch rule.Type {
	case TypeString:
		str, ok := value.(string)
		if !ok {
			return fmt.Sprintf("must be a string, got %T", value)
		}
		if rule.Required && str == "" {
			return "is required"
		}
		if len(rule.Enum) > 0 && str != "" && !inEnum(rule.Enum, str) {
			return fmt.Sprintf("must be one of %v, got %q", rule.Enum, str)
		}

	case TypeNumber, TypeInteger:
		num, ok := asFloat(value)
		if !ok {
			return fmt.Sprintf("must be a number, got %T", value)
		}
		if rule.Type == TypeInteger && num != math.Trunc(num) {
			return fmt.Sprintf("must be an integer, got %v", num)
		}
		if rule.Min != nil && num < *rule.Min {
			return fmt.Sprintf("must be >= %v, got %v", *rule.Min, num)
		}
		if rule.Max != nil && num > *rule.Max {
			return fmt.Sprintf("must be <= %v, got %v", *rule.Max, num)
		}

	case TypeBool:
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("must be a boolean, got %T", value)
		}

	case TypeTime:
		switch v := value.(type) {
		case time.Time:
		case string:
			if _, err := time.Parse(time.RFC3339, v); err != nil {
				return fmt.Sprintf("must be an RFC3339 timestamp, got %q", v)
			}
		default:
			return fmt.Sprintf("must be a timestamp, got %T", value)
		}

	case TypeStrings:
		switch v := value.(type) {
		case []string:
		case []any:
			for _, item := range v {
				if _, ok := item.(string); !ok {
					return fmt.Sprintf("must contain only strings, got %T", item)
				}
			}
		default:
			return fmt.Sprintf("must be a string list, got %T", value)
		}

	case TypeObject:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Sprintf("must be an object, got %T", value)
		}
	}

	return ""
}

// asFloat normalizes the numeric types JSON decoding and direct construction
// can produce.
func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func inEnum(enum []string, value string) bool {
	for _, e := range enum {
		if e == value {
			return true
		}
	}
	return false
}
