package rag

import (
	"errors"
	"fmt"
)

// Kind classifies a workflow failure so callers can tell an index that was
// never built apart from a collaborator that fell over.
type Kind int

const (
	KindUnknown Kind = iota
	KindIngestion
	KindUninitialized
	KindRetrieval
	KindGeneration
)

// ErrUninitialized is returned when a chat arrives before any index has been
// created or persisted.
var ErrUninitialized = errors.New("rag: no vector store initialized")

// Error wraps a failure with the operation that produced it and its kind.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("rag.%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf reports the kind of err, or KindUnknown for errors that did not come
// out of this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrUninitialized) {
		return KindUninitialized
	}
	return KindUnknown
}
