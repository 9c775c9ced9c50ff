package schema

import "sort"

// Schema is a map of field names to their declared types.
type Schema map[string]Type

// Coerce returns a copy of data with every declared field that is present
// converted to its type. Missing and nil fields stay missing, undeclared
// fields are copied unchanged. All failures are reported together.
func Coerce(schema Schema, data map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	if len(schema) == 0 {
		return out, nil
	}

	fields := make([]string, 0, len(schema))
	for f := range schema {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var errs []error
	for _, field := range fields {
		value, ok := data[field]
		if !ok || value == nil {
			continue
		}
		coerced, err := schema[field].Coerce(value)
		if err != nil {
			errs = append(errs, &ValidationError{Key: field, Reason: err.Error(), Value: value})
			continue
		}
		out[field] = coerced
	}

	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}
	return out, nil
}
