// Package errors provides a structured error type with wrapping and metadata
package errors

// Always import the project errors package as perr (platform/errors)

import (
	stderrs "errors"
	"fmt"
	"net/http"
)

// ErrorCode defines supported error codes used across services
// Values are stable for wire compatibility; add sparingly
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for unclassified errors
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodePanic is for panics recovered by middleware
	ErrorCodePanic

	// ErrorCodeUnavailable is for transient errors where retry may succeed
	ErrorCodeUnavailable

	// ErrorCodeInvalidArgument is for bad input parameters
	ErrorCodeInvalidArgument

	// ErrorCodeValidation is for validation failures (input data)
	ErrorCodeValidation

	// ErrorCodeJSON is for JSON parsing/validation errors
	ErrorCodeJSON

	// ErrorCodeNotFound is for missing resources
	ErrorCodeNotFound

	// ErrorCodeDB is for general database errors
	ErrorCodeDB

	// ErrorCodeIO is for artifact filesystem failures
	ErrorCodeIO

	// ErrorCodeInsufficientData is for training sets below the row floor
	ErrorCodeInsufficientData

	// ErrorCodeSingleClass is for training targets with one distinct value
	ErrorCodeSingleClass

	// ErrorCodeNoModel is for predictions with nothing trained; an expected state
	ErrorCodeNoModel

	// ErrorCodeCorruptArtifact is for registry blobs that fail to decode
	ErrorCodeCorruptArtifact

	// ErrorCodeCapabilityUnavailable is for a disabled ML backend
	ErrorCodeCapabilityUnavailable
)

// Reason returns the machine-facing reason string for a code, used in
// structured ML results ("status"/"reason" fields on the wire)
func Reason(c ErrorCode) string {
	switch c {
	case ErrorCodeInsufficientData:
		return "insufficient_data"
	case ErrorCodeSingleClass:
		return "single_class"
	case ErrorCodeNoModel:
		return "no_model"
	case ErrorCodeCorruptArtifact:
		return "corrupt_artifact"
	case ErrorCodeCapabilityUnavailable:
		return "capability_unavailable"
	case ErrorCodeValidation, ErrorCodeJSON, ErrorCodeInvalidArgument:
		return "invalid_input"
	case ErrorCodeNotFound:
		return "not_found"
	case ErrorCodeDB:
		return "db_error"
	case ErrorCodeIO:
		return "io_error"
	default:
		return "error"
	}
}

// HTTPStatusCode turns an ErrorCode into an http status code
func HTTPStatusCode(c ErrorCode) int {
	switch c {
	case ErrorCodeNotFound, ErrorCodeNoModel:
		return http.StatusNotFound
	case ErrorCodeInvalidArgument, ErrorCodeInsufficientData, ErrorCodeSingleClass:
		return http.StatusUnprocessableEntity
	case ErrorCodeValidation, ErrorCodeJSON:
		return http.StatusBadRequest
	case ErrorCodeUnavailable, ErrorCodeCapabilityUnavailable:
		return http.StatusServiceUnavailable
	case ErrorCodeDB, ErrorCodeIO, ErrorCodeCorruptArtifact, ErrorCodePanic, ErrorCodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is the structured error type with wrapping and metadata
// msg is human/developer facing; code is machine facing
// field is optional (for validation); op is optional operation tag
// orig is the wrapped cause
type Error struct {
	orig  error
	msg   string
	code  ErrorCode
	field string
	op    string
}

// Wire is the JSON-serializable form returned by the API
type Wire struct {
	Code    ErrorCode `json:"code"`
	Reason  string    `json:"reason"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Field returns the offending field, if any
func (e *Error) Field() string { return e.field }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// ToWire converts an *Error to a Wire payload
func (e *Error) ToWire() Wire {
	return Wire{Code: e.code, Reason: Reason(e.code), Message: e.msg, Field: e.field}
}

// WireFrom converts any error into a Wire payload with best-effort mapping
// If err is nil, returns the zero-value Wire (no error)
func WireFrom(err error) Wire {
	if err == nil {
		return Wire{}
	}
	if e, ok := As(err); ok {
		return e.ToWire()
	}
	return Wire{Code: ErrorCodeUnknown, Reason: Reason(ErrorCodeUnknown), Message: err.Error()}
}

// CodeOf extracts an ErrorCode from any error, defaulting to Unknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err has the given code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// HTTPStatus returns the mapped HTTP status for any error
func HTTPStatus(err error) int { return HTTPStatusCode(CodeOf(err)) }

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Mutators (copy-on-write)

// WithField attaches a field to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithField(err error, field string) error {
	if e, ok := As(err); ok {
		c := *e
		c.field = field
		return &c
	}
	return err
}

// WithOp attaches an operation label to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// Constructors

// New returns a new *Error with the given code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns a new *Error with code and formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with code and message
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with code and formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// Sugar

// InsufficientDataf returns an insufficient data error
func InsufficientDataf(format string, a ...any) error { return Newf(ErrorCodeInsufficientData, format, a...) }

// SingleClassf returns a single class error
func SingleClassf(format string, a ...any) error { return Newf(ErrorCodeSingleClass, format, a...) }

// NoModelf returns a no model error
func NoModelf(format string, a ...any) error { return Newf(ErrorCodeNoModel, format, a...) }

// CorruptArtifactf returns a corrupt artifact error
func CorruptArtifactf(format string, a ...any) error { return Newf(ErrorCodeCorruptArtifact, format, a...) }

// CapabilityUnavailablef returns a capability unavailable error
func CapabilityUnavailablef(format string, a ...any) error {
	return Newf(ErrorCodeCapabilityUnavailable, format, a...)
}

// InvalidArgf returns an invalid argument error
func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }

// NotFoundf returns a not found error
func NotFoundf(format string, a ...any) error { return Newf(ErrorCodeNotFound, format, a...) }

// DBf returns a general database error
func DBf(format string, a ...any) error { return Newf(ErrorCodeDB, format, a...) }

// IOf returns an artifact filesystem error
func IOf(format string, a ...any) error { return Newf(ErrorCodeIO, format, a...) }

// JSONErrf returns a JSON error
func JSONErrf(format string, a ...any) error { return Newf(ErrorCodeJSON, format, a...) }

// PanicErrf returns a panic error
func PanicErrf(format string, a ...any) error { return Newf(ErrorCodePanic, format, a...) }

// HTTP bundles status + wire in one shot (nice for handlers)
func HTTP(err error) (int, Wire) {
	if err == nil {
		return http.StatusOK, Wire{}
	}
	return HTTPStatus(err), WireFrom(err)
}
