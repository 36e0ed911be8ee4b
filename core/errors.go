package core

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// API error codes.
const (
	CodeNetwork          = "network_error"
	CodeValidation       = "validation_failed"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeServer           = "server_error"
	CodeUnexpectedStatus = "unexpected_status"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// FieldErrors maps a field (JSON name) to a human readable message.
type FieldErrors map[string]string

// Merge copies all entries of other into fe.
func (fe FieldErrors) Merge(other FieldErrors) {
	for k, v := range other {
		fe[k] = v
	}
}

// Keys returns the fields of fe in alphabetical order.
func (fe FieldErrors) Keys() []string {
	keys := make([]string, 0, len(fe))
	for f := range fe {
		keys = append(keys, f)
	}
	sort.Strings(keys)
	return keys
}

// ToError returns a *ValidationError holding fe sorted by field, or nil when fe is empty.
func (fe FieldErrors) ToError(err error) error {
	if len(fe) == 0 {
		return nil
	}
	flds := make([]FieldError, 0, len(fe))
	for _, f := range fe.Keys() {
		flds = append(flds, FieldError{Field: f, Error: fe[f]})
	}
	return NewValidationError(err, flds...)
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err *ValidationError) Unwrap() error { return err.Err }

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return fmt.Sprintf("%s: %s", err.Fields[0].Field, err.Fields[0].Error)
		}
		return "validation failed"
	}
	return err.Err.Error()
}

// FieldErrors returns the field errors as a map.
func (err ValidationError) FieldErrors() FieldErrors {
	fe := make(FieldErrors, len(err.Fields))
	for _, f := range err.Fields {
		fe[f.Field] = f.Error
	}
	return fe
}

// FieldErrorsOf extracts field errors from validator.ValidationErrors, *ValidationError or *APIError.
// ok is false when err carries no field information.
func FieldErrorsOf(err error) (fe FieldErrors, ok bool) {
	switch origErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		fe = make(FieldErrors, len(origErr))
		for _, vErr := range origErr {
			if _, exists := fe[vErr.Field()]; !exists { // keep the first failure per field
				fe[vErr.Field()] = vErr.Translate(Translator)
			}
		}
		return fe, true
	case *ValidationError:
		if len(origErr.Fields) == 0 {
			return nil, false
		}
		return origErr.FieldErrors(), true
	case *APIError:
		if len(origErr.Fields) == 0 {
			return nil, false
		}
		fe = make(FieldErrors, len(origErr.Fields))
		fe.Merge(origErr.Fields)
		return fe, true
	}
	return nil, false
}

// APIError is the typed failure of a remote call: any non-2xx response or a transport error.
type APIError struct {
	Status  int         // 0 for transport errors
	Code    string      // machine-readable
	Message string      // human-readable
	Fields  FieldErrors // set on validation failures when the response carries them
	Details map[string]string
	Err     error // underlying transport error, if any
}

func NewNetworkError(err error) *APIError {
	return &APIError{Code: CodeNetwork, Message: "the server could not be reached, please try again", Err: err}
}

func NewAPIError(status int, msg string, fields FieldErrors) *APIError {
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Code: CodeForStatus(status), Message: msg, Fields: fields}
}

func (err *APIError) Error() string {
	if err.Status == 0 {
		if err.Err != nil {
			return fmt.Sprintf("%s: %s: %v", err.Code, err.Message, err.Err)
		}
		return fmt.Sprintf("%s: %s", err.Code, err.Message)
	}
	return fmt.Sprintf("%s (%d): %s", err.Code, err.Status, err.Message)
}

func (err *APIError) Unwrap() error { return err.Err }

// Retryable reports whether re-invoking the same action may succeed.
func (err *APIError) Retryable() bool {
	return err.Code == CodeNetwork || err.Status >= http.StatusInternalServerError
}

// CodeForStatus maps an HTTP status to an API error code.
func CodeForStatus(status int) string {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return CodeValidation
	case status == http.StatusUnauthorized:
		return CodeUnauthorized
	case status == http.StatusForbidden:
		return CodeForbidden
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusConflict:
		return CodeConflict
	case status >= http.StatusInternalServerError:
		return CodeServer
	default:
		return CodeUnexpectedStatus
	}
}

// AsAPIError returns the *APIError at the root of err, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsCode reports whether err is an *APIError with the given code.
func IsCode(err error, code string) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Code == code
}

// IsRetryable reports whether err is a transient API failure.
func IsRetryable(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Retryable()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
