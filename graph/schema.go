package graph

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Policy controls how a field written by a node is reconciled with the value
// already present in the state.
type Policy int

const (
	// Overwrite replaces the current value with the written one.
	Overwrite Policy = iota
	// Append concatenates the written value onto the current one.
	// Strings are joined and slices are extended; a scalar written to a slice
	// field is pushed as a single element.
	Append
)

func (p Policy) String() string {
	switch p {
	case Overwrite:
		return "overwrite"
	case Append:
		return "append"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Field declares one state channel.
type Field struct {
	// Name is the state key.
	Name string
	// Type is the JSON schema every value of the field must satisfy.
	// A nil Type accepts any value.
	Type *jsonschema.Schema
	// Policy is the merge policy applied when the field is written.
	Policy Policy
	// Default is used when the initial state omits the field. When nil, the zero
	// value of the field's JSON type is used.
	Default any
}

// Schema is the immutable set of state channels of a graph.
type Schema struct {
	fields   []Field
	index    map[string]int
	resolved map[string]*jsonschema.Resolved
}

// NewSchema validates the field declarations and returns a Schema.
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{
		fields:   make([]Field, 0, len(fields)),
		index:    make(map[string]int, len(fields)),
		resolved: make(map[string]*jsonschema.Resolved, len(fields)),
	}
	var errs []error
	for _, f := range fields {
		if f.Name == "" {
			errs = append(errs, errors.New("field name must not be empty"))
			continue
		}
		if _, ok := s.index[f.Name]; ok {
			errs = append(errs, fmt.Errorf("duplicate field %q", f.Name))
			continue
		}
		if f.Policy != Overwrite && f.Policy != Append {
			errs = append(errs, fmt.Errorf("field %q: unsupported policy %s", f.Name, f.Policy))
			continue
		}
		if f.Type != nil {
			rs, err := f.Type.Resolve(nil)
			if err != nil {
				errs = append(errs, fmt.Errorf("field %q: %w", f.Name, err))
				continue
			}
			s.resolved[f.Name] = rs
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	if len(errs) > 0 {
		return nil, &GraphValidationError{Reason: fmt.Sprintf("invalid schema: %v", errors.Join(errs...))}
	}
	for _, f := range s.fields {
		if f.Default == nil {
			continue
		}
		if err := s.check(f.Name, f.Default); err != nil {
			return nil, &GraphValidationError{Reason: fmt.Sprintf("invalid schema: default of field %q: %v", f.Name, err)}
		}
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error.
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []Field {
	if s == nil {
		return nil
	}
	return append([]Field(nil), s.fields...)
}

// Lookup returns the declaration of the named field.
func (s *Schema) Lookup(name string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

func (s *Schema) policy(name string) Policy {
	f, ok := s.Lookup(name)
	if !ok {
		return Overwrite
	}
	return f.Policy
}

// Defaults returns a fresh state holding the default value of every field.
func (s *Schema) Defaults() State {
	state := State{}
	if s == nil {
		return state
	}
	for _, f := range s.fields {
		if f.Default != nil {
			state[f.Name] = f.Default
			continue
		}
		if v, ok := zeroValue(f.Type); ok {
			state[f.Name] = v
		}
	}
	return state
}

// check verifies that value may be stored under name.
func (s *Schema) check(name string, value any) error {
	if s == nil {
		return nil
	}
	if _, ok := s.index[name]; !ok {
		return errors.New("field is not declared in the schema")
	}
	rs, ok := s.resolved[name]
	if !ok {
		return nil
	}
	instance, err := jsonValue(value)
	if err != nil {
		return err
	}
	return rs.Validate(instance)
}

// jsonValue converts a Go value into its generic JSON form so it can be
// validated against a JSON schema.
func jsonValue(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("value is not JSON encodable: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func zeroValue(t *jsonschema.Schema) (any, bool) {
	if t == nil {
		return nil, false
	}
	typ := t.Type
	if typ == "" && len(t.Types) > 0 {
		typ = t.Types[0]
	}
	switch typ {
	case "string":
		return "", true
	case "boolean":
		return false, true
	case "number":
		return float64(0), true
	case "integer":
		return 0, true
	case "array":
		return []any{}, true
	case "object":
		return map[string]any{}, true
	default:
		return nil, false
	}
}
