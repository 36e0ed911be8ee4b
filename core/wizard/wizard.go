// Package wizard sequences the project submission form:
// project info (1), user info (2) and review (3), then the terminal Submitted state.
package wizard

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/project"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/submitter"
)

type Step int

const (
	StepProjectInfo Step = iota + 1
	StepUserInfo
	StepReview
	StepSubmitted
)

func (s Step) String() string {
	switch s {
	case StepProjectInfo:
		return "project info"
	case StepUserInfo:
		return "user info"
	case StepReview:
		return "review"
	case StepSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Gateway is the part of the remote API the wizard needs.
type Gateway interface {
	ListOwnProjects(ctx context.Context) ([]project.Project, error)
	GetLatestOwnProject(ctx context.Context) (project.Project, error)
	SubmitProject(ctx context.Context, draft project.Draft, profile submitter.Profile) (project.Project, error)
}

// Wizard owns one Draft and one Profile for the duration of one submission attempt.
// It is safe for concurrent use; the lock is never held across a gateway call.
type Wizard struct {
	gw          Gateway
	log         core.Logger
	maxFileSize int64

	mu         sync.Mutex
	step       Step
	draft      project.Draft
	profile    submitter.Profile
	draftErrs  core.FieldErrors
	profErrs   core.FieldErrors
	touched    map[string]bool // draft fields and "submitter."-prefixed profile fields
	consent    bool
	submitting bool
	generation uint64 // bumped by Reset and Abandon to discard in-flight results
	abandoned  bool
	own        []project.Project
	submitted  *project.Project
	lastErr    error
}

type Option func(*Wizard)

func WithLogger(log core.Logger) Option {
	return func(w *Wizard) {
		if log != nil {
			w.log = log
		}
	}
}

// WithMaxFileSize overrides the description file size limit.
func WithMaxFileSize(n int64) Option {
	return func(w *Wizard) {
		if n > 0 {
			w.maxFileSize = n
		}
	}
}

func New(gw Gateway, opts ...Option) *Wizard {
	w := &Wizard{
		gw:          gw,
		log:         core.NopLogger{},
		maxFileSize: core.MaxDescriptionFileSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.reset()
	return w
}

func (w *Wizard) reset() {
	w.step = StepProjectInfo
	w.draft = project.NewDraft()
	w.profile = submitter.NewProfile()
	w.draftErrs = make(core.FieldErrors)
	w.profErrs = make(core.FieldErrors)
	w.touched = make(map[string]bool)
	w.consent = false
	w.submitting = false
	w.submitted = nil
	w.lastErr = nil
}

// Begin loads the projects of the submitter, used to pick and check a parent project.
// It fails with a *PendingProjectError when the latest one still awaits approval.
func (w *Wizard) Begin(ctx context.Context) error {
	if err := w.checkOpen(); err != nil {
		return err
	}

	latest, err := w.gw.GetLatestOwnProject(ctx)
	switch {
	case err == nil:
		if latest.Status().Pending() {
			return &PendingProjectError{ProjectID: latest.ID, Project: &latest}
		}
	case core.IsCode(err, core.CodeNotFound):
		// first submission
	default:
		return errors.Wrap(err, "fetching latest project")
	}

	own, err := w.gw.ListOwnProjects(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching own projects")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.own = own
	return nil
}

func (w *Wizard) checkOpen() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.abandoned {
		return ErrAbandoned
	}
	return nil
}

// checkEditable must be called with the lock held.
func (w *Wizard) checkEditable(step Step) error {
	switch {
	case w.abandoned:
		return ErrAbandoned
	case w.step == StepSubmitted:
		return ErrAlreadySubmitted
	case w.submitting:
		return ErrSubmissionInFlight
	case w.step != step:
		return ErrWrongStep
	}
	return nil
}

// UpdateDraft applies fn to the draft and re-runs the validators.
// Errors are kept for the fields touched so far.
func (w *Wizard) UpdateDraft(fn func(d *project.Draft)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkEditable(StepProjectInfo); err != nil {
		return err
	}

	before := w.draft
	fn(&w.draft)
	for _, f := range changedDraftFields(before, w.draft) {
		w.touched[f] = true
	}
	w.validateDraft(false)
	return nil
}

// UpdateProfile applies fn to the submitter profile and re-runs the validators.
func (w *Wizard) UpdateProfile(fn func(p *submitter.Profile)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkEditable(StepUserInfo); err != nil {
		return err
	}

	before := w.profile
	fn(&w.profile)
	for _, f := range changedProfileFields(before, w.profile) {
		w.touched[profilePrefix+f] = true
	}
	w.validateProfile(false)
	return nil
}

// AttachDescriptionFile loads, checks and encodes the file at path.
// An oversized file is refused immediately with a *project.FileTooLargeError
// and leaves the draft without a file.
func (w *Wizard) AttachDescriptionFile(path string) error {
	w.mu.Lock()
	limit := w.maxFileSize
	w.mu.Unlock()

	name, encoded, err := project.LoadDescriptionFile(path, limit)
	return w.attach(name, encoded, err)
}

// AttachDescription encodes the content of r as the description file.
func (w *Wizard) AttachDescription(name string, r io.Reader) error {
	w.mu.Lock()
	limit := w.maxFileSize
	w.mu.Unlock()

	encoded, err := project.EncodeDescriptionFile(r, limit)
	return w.attach(name, encoded, err)
}

func (w *Wizard) attach(name, encoded string, err error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if eErr := w.checkEditable(StepProjectInfo); eErr != nil {
		return eErr
	}

	w.touched[project.FieldDescriptionFile] = true
	if err != nil {
		if errors.Is(err, project.ErrFileTooLarge) {
			w.draft.DescriptionFile = ""
			w.draft.DescriptionFileName = ""
		}
		w.validateDraft(false)
		w.draftErrs[project.FieldDescriptionFile] = err.Error()
		return err
	}
	w.draft.DescriptionFile = encoded
	w.draft.DescriptionFileName = name
	w.validateDraft(false)
	return nil
}

// validateDraft must be called with the lock held.
func (w *Wizard) validateDraft(all bool) core.FieldErrors {
	fe := project.Validate(w.draft)
	if _, ok := fe[project.FieldParentProjectID]; !ok {
		if msg := project.ValidateParent(w.draft, "", w.own); msg != "" {
			fe[project.FieldParentProjectID] = msg
		}
	}

	w.draftErrs = make(core.FieldErrors, len(fe))
	for f, msg := range fe {
		if all || w.touched[f] {
			w.draftErrs[f] = msg
			w.touched[f] = true
		}
	}
	return fe
}

// validateProfile must be called with the lock held.
func (w *Wizard) validateProfile(all bool) core.FieldErrors {
	fe := submitter.Validate(w.profile)
	w.profErrs = make(core.FieldErrors, len(fe))
	for f, msg := range fe {
		if all || w.touched[profilePrefix+f] {
			w.profErrs[f] = msg
			w.touched[profilePrefix+f] = true
		}
	}
	return fe
}

// Next advances to the following step when every validator of the current one passes.
// Otherwise the step is kept and every failing field is reported through a *core.ValidationError.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkEditable(w.step); err != nil {
		return err
	}

	switch w.step {
	case StepProjectInfo:
		if fe := w.validateDraft(true); len(fe) > 0 {
			return stepError(fe, project.Fields)
		}
		w.step = StepUserInfo
	case StepUserInfo:
		if fe := w.validateProfile(true); len(fe) > 0 {
			return stepError(fe, submitter.Fields)
		}
		w.step = StepReview
	default:
		return ErrWrongStep
	}
	return nil
}

func stepError(fe core.FieldErrors, order []string) error {
	flds := make([]core.FieldError, 0, len(fe))
	for _, f := range order {
		if msg, ok := fe[f]; ok {
			flds = append(flds, core.FieldError{Field: f, Error: msg})
		}
	}
	return core.NewValidationError(ErrStepInvalid, flds...)
}

// Back returns to the previous step without validation. It is a no-op on the first step.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkEditable(w.step); err != nil {
		return err
	}
	if w.step > StepProjectInfo {
		w.step--
	}
	return nil
}

// SetConsent records the acknowledgement required to submit.
func (w *Wizard) SetConsent(consent bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkEditable(StepReview); err != nil {
		return err
	}
	w.consent = consent
	return nil
}

// Submit sends the draft and the profile. Only one call may be in flight: others fail with
// ErrSubmissionInFlight without reaching the gateway. On failure the wizard stays at review.
func (w *Wizard) Submit(ctx context.Context) (project.Project, error) {
	w.mu.Lock()
	if err := w.checkEditable(StepReview); err != nil {
		w.mu.Unlock()
		return project.Project{}, err
	}
	if !w.consent {
		w.mu.Unlock()
		return project.Project{}, ErrConsentRequired
	}
	w.submitting = true
	w.lastErr = nil
	gen := w.generation
	draft, profile := w.draft, w.profile
	w.mu.Unlock()

	p, err := w.gw.SubmitProject(ctx, draft, profile)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation {
		w.log.Info("discarding result of a reset submission", map[string]interface{}{"project_id": p.ID})
		return project.Project{}, ErrSubmissionDiscarded
	}
	w.submitting = false

	if err != nil {
		err = w.submitError(err)
		w.lastErr = err
		return project.Project{}, err
	}

	w.step = StepSubmitted
	w.submitted = &p
	w.log.Info("project submitted", map[string]interface{}{"project_id": p.ID})
	return p, nil
}

// submitError maps a gateway failure. It must be called with the lock held.
func (w *Wizard) submitError(err error) error {
	if errors.Cause(err) == session.ErrSessionExpired || errors.Cause(err) == session.ErrNotAuthenticated {
		return errors.Cause(err)
	}

	apiErr, ok := core.AsAPIError(err)
	if !ok {
		w.log.Error("submitting project", err)
		return errors.Wrap(err, "submitting project")
	}

	switch {
	case apiErr.Retryable():
		w.log.Warn("submitting project", err)
		return &RetryableError{Err: apiErr}
	case apiErr.Code == core.CodeConflict && apiErr.Details["project_id"] != "":
		pErr := &PendingProjectError{ProjectID: apiErr.Details["project_id"]}
		for i := range w.own {
			if w.own[i].ID == pErr.ProjectID {
				p := w.own[i]
				pErr.Project = &p
			}
		}
		return pErr
	case len(apiErr.Fields) > 0:
		w.mergeServerErrors(apiErr.Fields)
	}
	return apiErr
}

const profilePrefix = "submitter."

// mergeServerErrors routes server field errors to the model they belong to.
func (w *Wizard) mergeServerErrors(fe core.FieldErrors) {
	for f, msg := range fe {
		switch {
		case strings.HasPrefix(f, profilePrefix):
			w.profErrs[strings.TrimPrefix(f, profilePrefix)] = msg
			w.touched[f] = true
		default:
			f = strings.TrimPrefix(f, "project.")
			w.draftErrs[f] = msg
			w.touched[f] = true
		}
	}
}

// Reset clears both models to their defaults and returns to the first step.
// Calling it again yields the same state. A submission in flight is discarded.
func (w *Wizard) Reset(confirmed bool) error {
	if !confirmed {
		return ErrResetNotConfirmed
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.abandoned {
		return ErrAbandoned
	}
	if w.submitting {
		w.generation++
	}
	w.reset()
	return nil
}

// Abandon discards the wizard. A request already sent is not cancelled but its result is dropped.
func (w *Wizard) Abandon() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.generation++
	w.reset()
	w.own = nil
	w.abandoned = true
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Draft() project.Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

func (w *Wizard) Profile() submitter.Profile {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.profile
}

// DraftErrors returns the errors of the touched draft fields.
func (w *Wizard) DraftErrors() core.FieldErrors {
	w.mu.Lock()
	defer w.mu.Unlock()
	fe := make(core.FieldErrors, len(w.draftErrs))
	fe.Merge(w.draftErrs)
	return fe
}

// ProfileErrors returns the errors of the touched profile fields.
func (w *Wizard) ProfileErrors() core.FieldErrors {
	w.mu.Lock()
	defer w.mu.Unlock()
	fe := make(core.FieldErrors, len(w.profErrs))
	fe.Merge(w.profErrs)
	return fe
}

// CanAdvance reports whether Next would leave the current step.
func (w *Wizard) CanAdvance() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.step {
	case StepProjectInfo:
		return project.CanAdvance(w.draft) && project.ValidateParent(w.draft, "", w.own) == ""
	case StepUserInfo:
		return submitter.CanAdvance(w.profile)
	default:
		return false
	}
}

func (w *Wizard) Consent() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.consent
}

// Submitting reports whether a submission is in flight. Front-ends disable the confirm action meanwhile.
func (w *Wizard) Submitting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitting
}

// Submitted returns the project created by a successful submission.
func (w *Wizard) Submitted() (project.Project, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitted == nil {
		return project.Project{}, false
	}
	return *w.submitted, true
}

// LastError returns the error of the last failed submission, cleared by the next attempt.
func (w *Wizard) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// OwnProjects returns the projects loaded by Begin, the candidates for a parent project.
func (w *Wizard) OwnProjects() []project.Project {
	w.mu.Lock()
	defer w.mu.Unlock()
	own := make([]project.Project, len(w.own))
	copy(own, w.own)
	return own
}

func changedDraftFields(a, b project.Draft) []string {
	var flds []string
	add := func(changed bool, f string) {
		if changed {
			flds = append(flds, f)
		}
	}
	add(a.ThaiName != b.ThaiName, project.FieldThaiName)
	add(a.EnglishName != b.EnglishName, project.FieldEnglishName)
	add(a.Summary != b.Summary, project.FieldSummary)
	add(!a.StartDate.Equal(b.StartDate), project.FieldStartDate)
	// the end date rule depends on both dates
	add(!a.EndDate.Equal(b.EndDate) || (!a.StartDate.Equal(b.StartDate) && !b.EndDate.IsZero()), project.FieldEndDate)
	add(a.SDGType != b.SDGType, project.FieldSDGType)
	add(a.ProjectType != b.ProjectType, project.FieldProjectType)
	add(a.DescriptionFile != b.DescriptionFile, project.FieldDescriptionFile)
	add(a.ParentProjectID != b.ParentProjectID, project.FieldParentProjectID)
	return flds
}

func changedProfileFields(a, b submitter.Profile) []string {
	var flds []string
	add := func(changed bool, f string) {
		if changed {
			flds = append(flds, f)
		}
	}
	add(a.NamePrefix != b.NamePrefix, submitter.FieldNamePrefix)
	add(a.FirstName != b.FirstName, submitter.FieldFirstName)
	add(a.LastName != b.LastName, submitter.FieldLastName)
	add(a.Gender != b.Gender, submitter.FieldGender)
	add(!a.BirthDate.Equal(b.BirthDate), submitter.FieldBirthDate)
	add(a.EducationLevel != b.EducationLevel, submitter.FieldEducationLevel)
	add(a.Email != b.Email, submitter.FieldEmail)
	add(a.Phone != b.Phone, submitter.FieldPhone)
	return flds
}
