// Package perr defines the failure-kind sentinels of spec §7 and the
// diagnostic wrapper every planner stage returns them through.
package perr

import (
	"errors"
	"fmt"
)

// Sentinel errors for each failure kind in spec §7. Classify an error
// from this package with errors.Is against one of these, never by
// string-matching the message.
var (
	// ErrSchema covers unsupported storage types, duplicate table
	// registration, and unresolved model/field references.
	ErrSchema = errors.New("schema error")

	// ErrStatement covers primary-key update attempts, unsupported
	// features (nested embedded assignment, unimplemented composite FK
	// paths), and ambiguous relation mutations.
	ErrStatement = errors.New("statement error")

	// ErrLowering covers un-pre-lowered insert targets, invalid nesting
	// depths, and invalid casts.
	ErrLowering = errors.New("lowering error")

	// ErrCapability covers a statement that requires SQL support the
	// driver lacks, with no applicable KV strategy.
	ErrCapability = errors.New("capability error")

	// ErrCondition is the distinct recoverable error surfaced when a
	// ReadModifyWrite's read step finds the row no longer matches its
	// Condition (spec §7 "execution time").
	ErrCondition = errors.New("condition failed")
)

// NodeRef identifies the HIR or MIR node a PlanError is attached to, for
// diagnostics (spec §7: "the offending statement node attached").
type NodeRef struct {
	Kind string // "hir" or "mir"
	ID   int
}

func (r NodeRef) String() string {
	if r.Kind == "" {
		return "<no node>"
	}
	return fmt.Sprintf("%s#%d", r.Kind, r.ID)
}

// PlanError wraps one of the sentinels above with the node it was raised
// against and a human-readable detail message.
type PlanError struct {
	Kind   error
	Node   NodeRef
	Detail string
}

func (e *PlanError) Error() string {
	if e.Node.Kind == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %s (at %s)", e.Kind, e.Detail, e.Node)
}

func (e *PlanError) Unwrap() error { return e.Kind }

// New builds a PlanError with no attached node, for errors raised before
// a statement has been allocated into the HIR/MIR arena.
func New(kind error, format string, args ...any) *PlanError {
	return &PlanError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// AtHIR builds a PlanError attached to an HIR node.
func AtHIR(kind error, id int, format string, args ...any) *PlanError {
	return &PlanError{Kind: kind, Node: NodeRef{Kind: "hir", ID: id}, Detail: fmt.Sprintf(format, args...)}
}

// AtMIR builds a PlanError attached to a MIR node.
func AtMIR(kind error, id int, format string, args ...any) *PlanError {
	return &PlanError{Kind: kind, Node: NodeRef{Kind: "mir", ID: id}, Detail: fmt.Sprintf(format, args...)}
}
