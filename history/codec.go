package history

import (
	"encoding/json"
	"fmt"

	"github.com/go-kratos/stepgraph/graph"
)

// EncodeState serializes a state as JSON. A nil state encodes to nil.
func EncodeState(s graph.State) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("history: encode state: %w", err)
	}
	return data, nil
}

// DecodeState parses a state produced by EncodeState. Values come back in
// their generic JSON form: numbers as float64, arrays as []any.
func DecodeState(data []byte) (graph.State, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var s graph.State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("history: decode state: %w", err)
	}
	return s, nil
}
