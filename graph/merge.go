package graph

import (
	"fmt"
	"reflect"
	"slices"
)

// ApplyDelta reconciles delta into state using the merge policy of each field
// and returns the result. state is never modified; fields absent from delta are
// carried over untouched. A nil schema treats every field as Overwrite.
func ApplyDelta(schema *Schema, state, delta State) (State, error) {
	out := state.Clone()
	keys := make([]string, 0, len(delta))
	for k := range delta {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v := delta[k]
		if schema != nil {
			if _, ok := schema.Lookup(k); !ok {
				return nil, &FieldError{Field: k, Err: fmt.Errorf("field is not declared in the schema")}
			}
		}
		cur, exists := out[k]
		switch {
		case schema.policy(k) == Append && exists && cur != nil:
			merged, err := appendValue(cur, v)
			if err != nil {
				return nil, &FieldError{Field: k, Err: err}
			}
			out[k] = merged
		default:
			out[k] = copySlice(v)
		}
		if err := schema.check(k, out[k]); err != nil {
			return nil, &FieldError{Field: k, Err: err}
		}
	}
	return out, nil
}

// appendValue concatenates add onto cur without aliasing either operand.
func appendValue(cur, add any) (any, error) {
	if add == nil {
		return cur, nil
	}
	if s, ok := cur.(string); ok {
		a, ok := add.(string)
		if !ok {
			return nil, fmt.Errorf("cannot append %T to string", add)
		}
		return s + a, nil
	}
	cv := reflect.ValueOf(cur)
	if cv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("append is not supported for %T", cur)
	}
	elem := cv.Type().Elem()
	av := reflect.ValueOf(add)
	var items []reflect.Value
	if av.Kind() == reflect.Slice && !(elem.Kind() == reflect.Slice && av.Type().AssignableTo(elem)) {
		for i := 0; i < av.Len(); i++ {
			items = append(items, av.Index(i))
		}
	} else {
		items = []reflect.Value{av}
	}
	out := reflect.MakeSlice(cv.Type(), cv.Len(), cv.Len()+len(items))
	reflect.Copy(out, cv)
	for _, item := range items {
		if item.Kind() == reflect.Interface && !item.IsNil() {
			item = item.Elem()
		}
		if !item.IsValid() {
			out = reflect.Append(out, reflect.Zero(elem))
			continue
		}
		if !item.Type().AssignableTo(elem) {
			return nil, fmt.Errorf("cannot append %s to %T", item.Type(), cur)
		}
		out = reflect.Append(out, item)
	}
	return out.Interface(), nil
}

func copySlice(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.IsNil() {
		return v
	}
	out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	reflect.Copy(out, rv)
	return out.Interface()
}
