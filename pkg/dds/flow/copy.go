package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// deepCopy copies decoded JSON values. Trees only hold maps, slices and scalars.
func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[k] = deepCopy(item)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, item := range val {
			s[i] = deepCopy(item)
		}
		return s
	default:
		return val
	}
}

// normalizeValue converts an arbitrary Go value into its decoded JSON form, so that the tree
// never aliases caller owned maps or slices.
func normalizeValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return out, nil
}
