package tool

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Type is the primitive JSON type of a [Field].
type Type int

const (
	String Type = iota
	Integer
	StringArray
	Array
)

// String returns the JSON Schema name of the type.
func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Integer:
		return "integer"
	case StringArray:
		return "array of strings"
	case Array:
		return "array"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Field declares one named argument.
type Field struct {
	Name        string
	Type        Type
	Description string

	// Required fields must be present and non-null.
	Required bool

	// Default replaces an absent optional field. A nil Default leaves the
	// field absent.
	Default any

	// Min and Max bound Integer fields. Zero means no bound beyond the
	// int64 range.
	Min, Max int64
}

// Schema is the ordered list of arguments a tool accepts. Fields not
// declared here are ignored.
type Schema struct {
	Fields []Field
}

// Validate decodes raw as a JSON object and checks it against s. Empty or
// null input is treated as an empty object.
//
// On success the returned [Args] holds every present field converted to its
// Go form (string, int64, []string, []any) plus the defaults
// of absent optional fields. On failure the error is a [*ValidationError]
// listing every offending field.
func (s Schema) Validate(raw json.RawMessage) (Args, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, &ValidationError{Problems: []FieldError{{Problem: err.Error()}}}
	}

	args := make(Args, len(s.Fields))
	var problems []FieldError
	for _, f := range s.Fields {
		v, present := obj[f.Name]
		if !present || v == nil {
			if f.Required {
				problems = append(problems, FieldError{Field: f.Name, Problem: "required field missing"})
				continue
			}
			if f.Default != nil {
				args[f.Name] = f.Default
			}
			continue
		}
		conv, err := convert(f.Type, v)
		if n, ok := conv.(int64); ok && err == nil {
			err = f.checkRange(n)
		}
		if err != nil {
			problems = append(problems, FieldError{Field: f.Name, Problem: err.Error()})
			continue
		}
		args[f.Name] = conv
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return args, nil
}

// JSONSchema renders s as a JSON Schema object for tool discovery.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := []string{}
	for _, f := range s.Fields {
		p := map[string]any{}
		switch f.Type {
		case StringArray:
			p["type"] = "array"
			p["items"] = map[string]any{"type": "string"}
		case Array:
			p["type"] = "array"
			p["items"] = map[string]any{}
		default:
			p["type"] = f.Type.String()
		}
		if f.Description != "" {
			p["description"] = f.Description
		}
		if f.Default != nil {
			p["default"] = f.Default
		}
		if f.Min != 0 {
			p["minimum"] = f.Min
		}
		if f.Max != 0 {
			p["maximum"] = f.Max
		}
		props[f.Name] = p
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func (f Field) checkRange(n int64) error {
	switch {
	case f.Min != 0 && n < f.Min:
		return fmt.Errorf("must be at least %d, got %d", f.Min, n)
	case f.Max != 0 && n > f.Max:
		return fmt.Errorf("must be at most %d, got %d", f.Max, n)
	}
	return nil
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}
	if trimmed[0] != '{' {
		return nil, errors.New("arguments must be a JSON object")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	return obj, nil
}

func convert(t Type, v any) (any, error) {
	switch t {
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Integer:
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				return i, nil
			}
			// 5.0 is still an integer. A plain literal that failed Int64 is
			// out of range; float64 would round it back inside. float64(MaxInt64)
			// rounds up to 2^63, so the upper bound is exclusive.
			if !strings.ContainsAny(n.String(), ".eE") {
				return nil, fmt.Errorf("expected integer, got %s", n)
			}
			if f, err := n.Float64(); err == nil && f == math.Trunc(f) && f >= -(1<<63) && f < (1<<63) {
				return int64(f), nil
			}
			return nil, fmt.Errorf("expected integer, got %s", n)
		}
	case StringArray:
		if list, ok := v.([]any); ok {
			out := make([]string, len(list))
			for i, e := range list {
				s, ok := e.(string)
				if !ok {
					return nil, fmt.Errorf("element %d: expected string, got %s", i, jsonKind(e))
				}
				out[i] = s
			}
			return out, nil
		}
	case Array:
		if list, ok := v.([]any); ok {
			out := make([]any, len(list))
			for i, e := range list {
				out[i] = plain(e)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %s", t, jsonKind(v))
}

// plain replaces json.Number inside free-form values with int64 when
// integral and float64 otherwise.
func plain(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = plain(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = plain(x[k])
		}
		return x
	default:
		return v
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// FieldError describes why one field was rejected. Field is empty for
// problems with the argument object as a whole.
type FieldError struct {
	Field   string
	Problem string
}

// ValidationError is returned when call arguments do not satisfy a tool's
// [Schema]. The handler is never invoked for such a call.
type ValidationError struct {
	// Tool is filled in by the bridge.
	Tool     string
	Problems []FieldError
}

// Error implements error.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		if p.Field == "" {
			parts[i] = p.Problem
			continue
		}
		parts[i] = p.Field + ": " + p.Problem
	}
	prefix := "tool: invalid arguments"
	if e.Tool != "" {
		prefix += " for " + e.Tool
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

// Fields returns the names of the offending fields in schema order.
func (e *ValidationError) Fields() []string {
	var out []string
	for _, p := range e.Problems {
		if p.Field != "" {
			out = append(out, p.Field)
		}
	}
	return out
}
