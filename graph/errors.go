package graph

import (
	"fmt"
	"strings"
	"time"
)

// DuplicateNodeError is returned by AddNode when the name is already registered.
type DuplicateNodeError struct {
	Node string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("graph: node %s already exists", e.Node)
}

// UnknownNodeError is returned when an edge or the entry point references a node
// that was never added.
type UnknownNodeError struct {
	Node string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("graph: unknown node: %s", e.Node)
}

// GraphValidationError reports a structural problem found while building or
// compiling a graph.
type GraphValidationError struct {
	Node   string
	Reason string
}

func (e *GraphValidationError) Error() string {
	if e.Node == "" {
		return "graph: " + e.Reason
	}
	return fmt.Sprintf("graph: node %s: %s", e.Node, e.Reason)
}

// UnmatchedForkError is returned by Compile when the members of a fan-out
// cohort share no common successor to join on.
type UnmatchedForkError struct {
	Fork    string
	Members []string
}

func (e *UnmatchedForkError) Error() string {
	return fmt.Sprintf("graph: fork %s has no common join for branches [%s]", e.Fork, strings.Join(e.Members, ", "))
}

// RoutingError is returned when a router yields a label that has no declared target.
type RoutingError struct {
	Node  string
	Label string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("graph: node %s: router returned undeclared label %q", e.Node, e.Label)
}

// NodeExecutionError wraps an error returned by a node handler.
// Fork is set when the node ran inside a fan-out cohort.
type NodeExecutionError struct {
	Node string
	Fork string
	Err  error
}

func (e *NodeExecutionError) Error() string {
	if e.Fork != "" {
		return fmt.Sprintf("graph: node %s (cohort of %s): %v", e.Node, e.Fork, e.Err)
	}
	return fmt.Sprintf("graph: node %s: %v", e.Node, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned when a run exceeds its deadline.
type TimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("graph: run exceeded timeout of %s", e.Timeout)
	}
	return "graph: run exceeded its deadline"
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// FieldError reports a state value that does not conform to the schema.
// Node is empty when the value came from the initial state.
type FieldError struct {
	Node  string
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("graph: field %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("graph: node %s: field %s: %v", e.Node, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
