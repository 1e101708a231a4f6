package graph

import "maps"

// State represents the data that flows through the graph.
// It is implemented as a map of string keys to arbitrary values.
// Handlers receive a private copy of the current state and return a partial
// State holding only the fields they write.
type State map[string]any

// Clone performs a shallow copy using maps.Clone so callers can mutate without
// affecting the original map (nested references are shared intentionally).
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	return State(maps.Clone(map[string]any(s)))
}
