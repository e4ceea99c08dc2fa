package schema

import (
	"reflect"
	"sort"
)

// Schema is a map of field names to their expected types.
// Fields are required unless wrapped with Optional.
type Schema map[string]Type

// Fields returns the field names in sorted order.
func (s Schema) Fields() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks if data conforms to the schema.
// Fields are visited in sorted order so that errors come out in a stable order.
// Keys absent from the schema are accepted as opaque payload.
func Validate(schema Schema, data map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	var errs []error
	for _, fieldName := range schema.Fields() {
		fieldType := schema[fieldName]
		value, exists := data[fieldName]
		if !exists {
			if IsOptional(fieldType) {
				continue
			}
			errs = append(errs, &ValidationError{Key: fieldName, Reason: "required"})
			continue
		}
		if err := fieldType.Validate(value); err != nil {
			errs = append(errs, &ValidationError{
				Key:    fieldName,
				Reason: err.Error(),
				Value:  value,
			})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// ValidateField checks a single value against the schema.
// Unknown fields pass.
func ValidateField(schema Schema, key string, value any) error {
	fieldType, ok := schema[key]
	if !ok {
		return nil
	}
	if err := fieldType.Validate(value); err != nil {
		return &ValidationError{Key: key, Reason: err.Error(), Value: value}
	}
	return nil
}

// Symbols collects every symbol value referenced by data, in field order.
// Values that do not have the declared shape are skipped.
func Symbols(schema Schema, data map[string]any) []string {
	var out []string
	for _, fieldName := range schema.Fields() {
		value, ok := data[fieldName]
		if !ok {
			continue
		}
		out = appendSymbols(out, Base(schema[fieldName]), value)
	}
	return out
}

func appendSymbols(out []string, t Type, value any) []string {
	switch tt := t.(type) {
	case *SymbolType:
		if s, ok := value.(string); ok && s != "" {
			out = append(out, s)
		}
	case *SliceType:
		rv := reflect.ValueOf(value)
		if rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
			for i := 0; i < rv.Len(); i++ {
				out = appendSymbols(out, tt.Elem(), rv.Index(i).Interface())
			}
		}
	}
	return out
}
