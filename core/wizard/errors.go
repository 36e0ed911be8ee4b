package wizard

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/project"
)

var (
	ErrStepInvalid         = errors.New("please correct the highlighted fields before continuing")
	ErrWrongStep           = errors.New("this action is not available at the current step")
	ErrConsentRequired     = errors.New("you must confirm that the information provided is accurate")
	ErrSubmissionInFlight  = errors.New("the project is being submitted, please wait")
	ErrSubmissionDiscarded = errors.New("the form was reset while the project was being submitted")
	ErrResetNotConfirmed   = errors.New("resetting the form must be confirmed")
	ErrAlreadySubmitted    = errors.New("the project has already been submitted")
	ErrAbandoned           = errors.New("the submission was abandoned")
)

// RetryableError is returned by Submit when the gateway failed for a transient reason
// (network or server error). Submitting again may succeed.
type RetryableError struct {
	Err error
}

func (err *RetryableError) Error() string {
	return "the project could not be submitted, please try again"
}

func (err *RetryableError) Unwrap() error { return err.Err }

// PendingProjectError is returned when the submitter already has a project awaiting approval.
// Front-ends redirect to that project instead of showing the form.
type PendingProjectError struct {
	ProjectID string
	Project   *project.Project // nil when only the id is known
}

func (err *PendingProjectError) Error() string {
	return fmt.Sprintf("you already have a project awaiting approval (%s)", err.ProjectID)
}

// IsPending reports whether err is a *PendingProjectError.
func IsPending(err error) (*PendingProjectError, bool) {
	var pErr *PendingProjectError
	if errors.As(err, &pErr) {
		return pErr, true
	}
	return nil, false
}
