package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Topaz-Oz/Lience-Plate-Detect/plate"
)

type Kind string

const (
	KindAuthentication Kind = "AUTHENTICATION_FAILURE"
	KindForbidden      Kind = "FORBIDDEN"
	KindValidation     Kind = "VALIDATION_FAILURE"
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindDetection      Kind = "DETECTION_FAILURE"
	KindPersistence    Kind = "PERSISTENCE_FAILURE"
	KindInternal       Kind = "INTERNAL_ERROR"
)

// Detection failure reasons.
const (
	ReasonInvalidResult    = "INVALID_RESULT"
	ReasonLowConfidence    = "LOW_CONFIDENCE"
	ReasonMalformedPlate   = "MALFORMED_PLATE"
	ReasonRecognizerFailed = "RECOGNIZER_FAILED"
	ReasonMalformedOutput  = "MALFORMED_OUTPUT"
)

// Error is the tagged error returned across the service boundary. Handlers
// map Kind to a status code and clients branch on Kind, never on the text.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

func ValidationError(format string, args ...any) *Error {
	return newError(KindValidation, "", fmt.Errorf(format, args...))
}

func NotFoundError(format string, args ...any) *Error {
	return newError(KindNotFound, "", fmt.Errorf(format, args...))
}

func PersistenceError(err error) *Error {
	return newError(KindPersistence, "", err)
}

// Status maps a Kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation, KindDetection:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// KindOf returns the Kind carried by err, or KindInternal for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// DetectionError tags a recognizer or validation failure with its reason.
// An already tagged error is returned as is.
func DetectionError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	reason := ReasonRecognizerFailed
	switch {
	case errors.Is(err, plate.ErrInvalidResult):
		reason = ReasonInvalidResult
	case errors.Is(err, plate.ErrLowConfidence):
		reason = ReasonLowConfidence
	case errors.Is(err, plate.ErrMalformedPlate):
		reason = ReasonMalformedPlate
	case errors.Is(err, ErrMalformedOutput):
		reason = ReasonMalformedOutput
	}
	return newError(KindDetection, reason, err)
}
