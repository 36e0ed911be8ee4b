package core

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name          string
		err           *APIError
		wantCode      string
		wantStr       string
		wantRetryable bool
	}{
		{
			name:     "not found",
			err:      NewAPIError(http.StatusNotFound, "", nil),
			wantCode: CodeNotFound,
			wantStr:  "not_found (404): Not Found",
		},
		{
			name:     "validation",
			err:      NewAPIError(http.StatusUnprocessableEntity, "some fields are invalid", nil),
			wantCode: CodeValidation,
			wantStr:  "validation_failed (422): some fields are invalid",
		},
		{
			name:          "server",
			err:           NewAPIError(http.StatusBadGateway, "", nil),
			wantCode:      CodeServer,
			wantStr:       "server_error (502): Bad Gateway",
			wantRetryable: true,
		},
		{
			name:     "teapot",
			err:      NewAPIError(http.StatusTeapot, "", nil),
			wantCode: CodeUnexpectedStatus,
			wantStr:  "unexpected_status (418): I'm a teapot",
		},
		{
			name:          "network",
			err:           NewNetworkError(errors.New("connection refused")),
			wantCode:      CodeNetwork,
			wantStr:       "network_error: the server could not be reached, please try again: connection refused",
			wantRetryable: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStr, tt.err.Error())

			wrapped := errors.Wrap(tt.err, "calling the api")
			assert.Equal(t, tt.wantRetryable, IsRetryable(wrapped))
			assert.True(t, IsCode(wrapped, tt.wantCode))
			apiErr, ok := AsAPIError(wrapped)
			assert.True(t, ok)
			assert.Same(t, tt.err, apiErr)
		})
	}

	assert.False(t, IsCode(errors.New("lol"), CodeNotFound))
	assert.False(t, IsRetryable(nil))
}

func TestFieldErrorsOf(t *testing.T) {
	type form struct {
		Name  string `json:"name" validate:"required"`
		Phone string `json:"phone" validate:"omitempty,digits"`
	}

	tests := []struct {
		name   string
		err    error
		want   FieldErrors
		wantOk bool
	}{
		{name: "plain error", err: errors.New("lol")},
		{
			name:   "validator errors",
			err:    Validate.Struct(form{Phone: "08-1234"}),
			want:   FieldErrors{"name": requiredText, "phone": digitsText},
			wantOk: true,
		},
		{
			name:   "validation error",
			err:    errors.Wrap(NewValidationError(nil, FieldError{Field: "email", Error: "taken"}), "creating user"),
			want:   FieldErrors{"email": "taken"},
			wantOk: true,
		},
		{name: "validation error without fields", err: NewValidationError(errors.New("invalid"))},
		{
			name:   "api error",
			err:    NewAPIError(http.StatusBadRequest, "", FieldErrors{"phone": "only digits are allowed"}),
			want:   FieldErrors{"phone": "only digits are allowed"},
			wantOk: true,
		},
		{name: "api error without fields", err: NewAPIError(http.StatusBadRequest, "", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe, ok := FieldErrorsOf(tt.err)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, fe)
		})
	}
}

func TestFieldErrors_ToError(t *testing.T) {
	assert.NoError(t, FieldErrors{}.ToError(nil))

	fe := FieldErrors{"phone": "p", "email": "e"}
	assert.Equal(t, []string{"email", "phone"}, fe.Keys())

	err := fe.ToError(nil)
	assert.Equal(t, "email: e", err.Error())
	vErr, ok := err.(*ValidationError)
	if assert.True(t, ok) {
		assert.Equal(t, []FieldError{{"email", "e"}, {"phone", "p"}}, vErr.Fields)
	}

	other := FieldErrors{"name": "n"}
	other.Merge(fe)
	assert.Len(t, other, 3)
}

func TestValidationError_Unwrap(t *testing.T) {
	errInvalid := errors.New("invalid step")
	err := errors.Wrap(NewValidationError(errInvalid, FieldError{Field: "email", Error: "e"}), "next")
	assert.True(t, errors.Is(err, errInvalid))
	assert.Equal(t, "next: invalid step", err.Error())

	assert.NoError(t, errors.Unwrap(NewValidationError(nil)))
}

func TestShutdownError(t *testing.T) {
	err := errors.Wrap(NewShutdownError("integrity issue"), "handling request")
	assert.True(t, IsShutdown(err))
	assert.False(t, IsShutdown(errors.New("integrity issue")))
}
