// Package apperr classifies failures so the HTTP layer can branch on the kind
// of error instead of parsing message text.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is the failure category of an error.
type Kind int

const (
	// KindInternal is any failure not classified below.
	KindInternal Kind = iota
	// KindUnsupportedFormat means the uploaded file extension has no reader.
	KindUnsupportedFormat
	// KindExtraction means a reader could not turn the file into text.
	KindExtraction
	// KindRemoteService means the embedding/generation provider or the vector database failed.
	KindRemoteService
	// KindInvalidInput means a request was missing a required field.
	KindInvalidInput
)

// ErrUnsupportedFormat is returned for any file extension without a reader.
// Its message is part of the HTTP contract.
var ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat, Op: "extract", Err: errors.New("Unsupported file type.")}

// String returns the wire name of the kind, used in JSON error payloads.
func (k Kind) String() string {
	switch k {
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindExtraction:
		return "extraction_failure"
	case KindRemoteService:
		return "remote_service_failure"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "internal"
	}
}

// HTTPStatus maps the kind to a response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnsupportedFormat:
		return http.StatusBadRequest
	case KindInvalidInput:
		return http.StatusUnprocessableEntity
	case KindRemoteService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	if e.Kind == KindUnsupportedFormat {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a kind and operation name. Returns nil when err is nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Remote wraps err as a remote service failure.
func Remote(op string, err error) error {
	return New(KindRemoteService, op, err)
}

// Extraction wraps err as an extraction failure.
func Extraction(op string, err error) error {
	return New(KindExtraction, op, err)
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or KindInternal when none is classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsUnsupportedFormat reports whether err is (or wraps) an unsupported format error.
func IsUnsupportedFormat(err error) bool {
	return KindOf(err) == KindUnsupportedFormat
}
