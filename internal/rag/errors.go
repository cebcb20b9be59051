package rag

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure so the boundary can map it to a status code.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindExtraction
	KindEmbedding
	KindIndex
	KindGeneration
	KindNoDocument
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindExtraction:
		return "extraction"
	case KindEmbedding:
		return "embedding"
	case KindIndex:
		return "index"
	case KindGeneration:
		return "generation"
	case KindNoDocument:
		return "no_document"
	default:
		return "unknown"
	}
}

// ErrNoDocument is returned by flows that need an uploaded document.
var ErrNoDocument = errors.New("no document uploaded")

// Error wraps a failure of one pipeline step.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// InvalidInput builds a KindInvalidInput error for request validation.
func InvalidInput(format string, args ...any) error {
	return newError(KindInvalidInput, "", fmt.Errorf(format, args...))
}
