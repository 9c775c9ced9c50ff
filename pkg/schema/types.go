package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type converts a value to one representation, or reports why it cannot.
type Type interface {
	// Name returns the name used in action files, e.g. "int".
	Name() string
	// Coerce returns value in the type's representation.
	Coerce(value any) (any, error)
}

// StringType accepts text, and formats numbers and booleans as text.
type StringType struct{}

func (t *StringType) Name() string { return "string" }

func (t *StringType) Coerce(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(v), nil
	default:
		return nil, fmt.Errorf("expected string, got %T", value)
	}
}

// IntType coerces to int64. Floats must be whole numbers.
type IntType struct{}

func (t *IntType) Name() string { return "int" }

func (t *IntType) Coerce(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float32:
		return wholeFloat(float64(v))
	case float64:
		return wholeFloat(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected int, got %q", v)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("expected int, got %T", value)
	}
}

func wholeFloat(f float64) (any, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("expected int, got float (not a whole number)")
	}
	return int64(f), nil
}

// FloatType coerces to float64.
type FloatType struct{}

func (t *FloatType) Name() string { return "float" }

func (t *FloatType) Coerce(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("expected float, got %q", v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("expected float, got %T", value)
	}
}

// BoolType accepts booleans and the spellings strconv.ParseBool knows.
type BoolType struct{}

func (t *BoolType) Name() string { return "bool" }

func (t *BoolType) Coerce(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("expected bool, got %q", v)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("expected bool, got %T", value)
	}
}

// String creates a string type.
func String() Type { return &StringType{} }

// Int creates an integer type.
func Int() Type { return &IntType{} }

// Float creates a float type.
func Float() Type { return &FloatType{} }

// Bool creates a boolean type.
func Bool() Type { return &BoolType{} }

// ParseType converts a type name to a Type.
func ParseType(name string) (Type, error) {
	switch strings.TrimSpace(name) {
	case "string", "text":
		return String(), nil
	case "int", "integer":
		return Int(), nil
	case "float", "real":
		return Float(), nil
	case "bool", "boolean":
		return Bool(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", name)
	}
}

// ParseTypeMap converts a map of field names to type names into a Schema.
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	result := make(Schema, len(typeMap))
	for key, name := range typeMap {
		t, err := ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		result[key] = t
	}
	return result, nil
}
