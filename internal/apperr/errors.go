// Package apperr defines the error taxonomy surfaced by the placement and
// calibration engines. Every failure carries a stable Kind plus the context
// (session, item, field) a caller needs to render an actionable message.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindState      Kind = "state"
	KindExhausted  Kind = "resource_exhausted"
	KindInternal   Kind = "internal"
)

// Error is the concrete error type returned by the domain packages.
type Error struct {
	Kind      Kind
	Op        string // operation that failed, e.g. "placement.submit"
	Field     string // offending input field (validation only)
	SessionID string
	ItemID    int64
	Msg       string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	var ctx []string
	if e.Field != "" {
		ctx = append(ctx, "field="+e.Field)
	}
	if e.SessionID != "" {
		ctx = append(ctx, "session="+e.SessionID)
	}
	if e.ItemID != 0 {
		ctx = append(ctx, fmt.Sprintf("item=%d", e.ItemID))
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, " "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// WithSession returns a copy of e tagged with a session ID.
func (e *Error) WithSession(id string) *Error {
	c := *e
	c.SessionID = id
	return &c
}

// WithItem returns a copy of e tagged with an item ID.
func (e *Error) WithItem(id int64) *Error {
	c := *e
	c.ItemID = id
	return &c
}

// Validation reports malformed or out-of-range input on field.
func Validation(op, field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports an unknown session, item or question reference.
func NotFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Conflict reports a uniqueness or no-op violation.
func Conflict(op, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// State reports an operation attempted in the wrong lifecycle state.
func State(op, format string, args ...any) *Error {
	return &Error{Kind: KindState, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Exhausted reports that the item bank cannot satisfy a request.
func Exhausted(op, format string, args ...any) *Error {
	return &Error{Kind: KindExhausted, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or KindInternal for foreign errors and
// "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
func IsState(err error) bool      { return KindOf(err) == KindState }
func IsExhausted(err error) bool  { return KindOf(err) == KindExhausted }
