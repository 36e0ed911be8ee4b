package wizard_test

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/project"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/submitter"
	"github.com/trezcool/masomo-portal/core/wizard"
	"github.com/trezcool/masomo-portal/tests"
)

type gateway struct {
	latest    *project.Project
	own       []project.Project
	submitErr error
	release   chan struct{} // blocks SubmitProject until closed, when set

	mu    sync.Mutex
	calls []project.Submission
}

func (gw *gateway) ListOwnProjects(context.Context) ([]project.Project, error) {
	return gw.own, nil
}

func (gw *gateway) GetLatestOwnProject(context.Context) (project.Project, error) {
	if gw.latest == nil {
		return project.Project{}, core.NewAPIError(http.StatusNotFound, "project not found", nil)
	}
	return *gw.latest, nil
}

func (gw *gateway) SubmitProject(_ context.Context, d project.Draft, p submitter.Profile) (project.Project, error) {
	gw.mu.Lock()
	gw.calls = append(gw.calls, project.NewSubmission(d, p))
	gw.mu.Unlock()

	if gw.release != nil {
		<-gw.release
	}
	if gw.submitErr != nil {
		return project.Project{}, gw.submitErr
	}
	return project.FromSubmission("p1", "u1", project.NewSubmission(d, p), time.Now()), nil
}

func (gw *gateway) callCount() int {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return len(gw.calls)
}

func decided(id, parentID string) project.Project {
	now := time.Now()
	return project.Project{ID: id, OwnerID: "u1", ParentProjectID: parentID, RejectedAt: &now}
}

func begin(t *testing.T, gw *gateway, opts ...wizard.Option) *wizard.Wizard {
	wz := wizard.New(gw, opts...)
	require.NoError(t, wz.Begin(context.Background()))
	return wz
}

// toReview fills both steps with valid data and consents.
func toReview(t *testing.T, wz *wizard.Wizard) {
	require.NoError(t, wz.UpdateDraft(func(d *project.Draft) { *d = testutil.ValidDraft() }))
	require.NoError(t, wz.Next())
	require.NoError(t, wz.UpdateProfile(func(p *submitter.Profile) { *p = testutil.ValidProfile() }))
	require.NoError(t, wz.Next())
	require.NoError(t, wz.SetConsent(true))
}

func TestWizard_submit(t *testing.T) {
	gw := new(gateway)
	wz := begin(t, gw)
	assert.Equal(t, wizard.StepProjectInfo, wz.Step())
	assert.Equal(t, project.NewDraft(), wz.Draft())
	assert.False(t, wz.CanAdvance())

	toReview(t, wz)
	assert.Equal(t, wizard.StepReview, wz.Step())

	p, err := wz.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, wizard.StepSubmitted, wz.Step())
	assert.Equal(t, 1, gw.callCount())
	assert.Equal(t, project.NewSubmission(testutil.ValidDraft(), testutil.ValidProfile()), gw.calls[0])

	got, ok := wz.Submitted()
	require.True(t, ok)
	assert.Equal(t, p, got)

	_, err = wz.Submit(context.Background())
	assert.Equal(t, wizard.ErrAlreadySubmitted, err)
	assert.Equal(t, wizard.ErrAlreadySubmitted, wz.UpdateDraft(func(d *project.Draft) {}))
	assert.Equal(t, 1, gw.callCount())
}

func TestWizard_Begin(t *testing.T) {
	t.Run("pending latest project", func(t *testing.T) {
		pending := project.Project{ID: "p0", OwnerID: "u1"}
		wz := wizard.New(&gateway{latest: &pending})
		err := wz.Begin(context.Background())
		pErr, ok := wizard.IsPending(err)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, "p0", pErr.ProjectID)
		require.NotNil(t, pErr.Project)
	})

	t.Run("decided latest project", func(t *testing.T) {
		last := decided("p0", "")
		wz := begin(t, &gateway{latest: &last, own: []project.Project{last}})
		assert.Len(t, wz.OwnProjects(), 1)
	})

	t.Run("gateway failure", func(t *testing.T) {
		gw := &gateway{}
		wz := wizard.New(failingLatest{gw})
		err := wz.Begin(context.Background())
		assert.True(t, core.IsCode(err, core.CodeServer))
	})
}

type failingLatest struct{ *gateway }

func (failingLatest) GetLatestOwnProject(context.Context) (project.Project, error) {
	return project.Project{}, core.NewAPIError(http.StatusInternalServerError, "", nil)
}

func TestWizard_Next(t *testing.T) {
	wz := begin(t, new(gateway))

	err := wz.Next()
	assert.Equal(t, wizard.ErrStepInvalid, errors.Cause(err).(*core.ValidationError).Err)
	assert.True(t, errors.Is(err, wizard.ErrStepInvalid))
	assert.Equal(t, wizard.StepProjectInfo, wz.Step())
	fe := wz.DraftErrors()
	for _, f := range []string{project.FieldThaiName, project.FieldEnglishName, project.FieldSummary, project.FieldStartDate, project.FieldDescriptionFile} {
		assert.Contains(t, fe, f)
	}

	// the description file is required on its own
	require.NoError(t, wz.UpdateDraft(func(d *project.Draft) {
		*d = testutil.ValidDraft()
		d.DescriptionFile, d.DescriptionFileName = "", ""
	}))
	assert.False(t, wz.CanAdvance())
	err = wz.Next()
	fields, _ := core.FieldErrorsOf(err)
	assert.Equal(t, []string{project.FieldDescriptionFile}, fields.Keys())

	require.NoError(t, wz.AttachDescription("description.pdf", strings.NewReader("%PDF-1.4\n")))
	assert.True(t, wz.CanAdvance())
	require.NoError(t, wz.Next())
	assert.Equal(t, wizard.StepUserInfo, wz.Step())

	// actions of other steps are refused
	assert.Equal(t, wizard.ErrWrongStep, wz.UpdateDraft(func(d *project.Draft) {}))
	assert.Equal(t, wizard.ErrWrongStep, wz.SetConsent(true))

	// going back keeps the data
	require.NoError(t, wz.UpdateProfile(func(p *submitter.Profile) { p.FirstName = "สมชาย" }))
	require.NoError(t, wz.Back())
	assert.Equal(t, wizard.StepProjectInfo, wz.Step())
	require.NoError(t, wz.Back())
	assert.Equal(t, wizard.StepProjectInfo, wz.Step())
	require.NoError(t, wz.Next())
	assert.Equal(t, "สมชาย", wz.Profile().FirstName)
}

func TestWizard_touchedErrors(t *testing.T) {
	wz := begin(t, new(gateway))

	require.NoError(t, wz.UpdateDraft(func(d *project.Draft) { d.ThaiName = "   " }))
	fe := wz.DraftErrors()
	assert.Equal(t, []string{project.FieldThaiName}, fe.Keys(), "only touched fields report errors")

	require.NoError(t, wz.UpdateDraft(func(d *project.Draft) {
		d.StartDate = testutil.Date(2024, 6, 1)
		d.EndDate = testutil.Date(2024, 5, 1)
	}))
	assert.Contains(t, wz.DraftErrors(), project.FieldEndDate)

	require.NoError(t, wz.UpdateDraft(func(d *project.Draft) { d.StartDate = testutil.Date(2024, 4, 1) }))
	assert.NotContains(t, wz.DraftErrors(), project.FieldEndDate, "moving the start date re-checks the end date")
}

func TestWizard_parentProject(t *testing.T) {
	own := []project.Project{decided("a", "b"), decided("b", "a"), decided("c", "")}
	wz := begin(t, &gateway{own: own})

	tests := []struct {
		parentID string
		wantErr  string
	}{
		{parentID: ""},
		{parentID: "c"},
		{parentID: "zzz", wantErr: project.ErrParentNotFound.Error()},
		{parentID: "a", wantErr: project.ErrLineageCycle.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.parentID, func(t *testing.T) {
			require.NoError(t, wz.UpdateDraft(func(d *project.Draft) {
				*d = testutil.ValidDraft()
				d.ParentProjectID = tt.parentID
			}))
			assert.Equal(t, tt.wantErr, wz.DraftErrors()[project.FieldParentProjectID])
			assert.Equal(t, tt.wantErr == "", wz.CanAdvance())
		})
	}
}

func TestWizard_oversizedFile(t *testing.T) {
	wz := begin(t, new(gateway), wizard.WithMaxFileSize(1024))
	require.NoError(t, wz.AttachDescription("small.pdf", strings.NewReader("%PDF")))

	err := wz.AttachDescription("big.pdf", strings.NewReader(strings.Repeat("x", 2048)))
	assert.True(t, errors.Is(err, project.ErrFileTooLarge))
	d := wz.Draft()
	assert.Empty(t, d.DescriptionFile, "an oversized file clears the previous one")
	assert.Empty(t, d.DescriptionFileName)
	assert.Equal(t, err.Error(), wz.DraftErrors()[project.FieldDescriptionFile])
}

func TestWizard_attachFailureKeepsFile(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(dir, "missing.pdf")},
		{name: "directory", path: dir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wz := begin(t, new(gateway))
			require.NoError(t, wz.AttachDescription("small.pdf", strings.NewReader("%PDF")))
			want := wz.Draft()

			err := wz.AttachDescriptionFile(tt.path)
			require.Error(t, err)
			assert.False(t, errors.Is(err, project.ErrFileTooLarge))
			d := wz.Draft()
			assert.Equal(t, want.DescriptionFile, d.DescriptionFile)
			assert.Equal(t, "small.pdf", d.DescriptionFileName)
			assert.Equal(t, err.Error(), wz.DraftErrors()[project.FieldDescriptionFile])
		})
	}
}

func TestWizard_consent(t *testing.T) {
	gw := new(gateway)
	wz := begin(t, gw)
	toReview(t, wz)
	require.NoError(t, wz.SetConsent(false))

	_, err := wz.Submit(context.Background())
	assert.Equal(t, wizard.ErrConsentRequired, err)
	assert.Equal(t, 0, gw.callCount())
}

func TestWizard_singleSubmission(t *testing.T) {
	gw := &gateway{release: make(chan struct{})}
	wz := begin(t, gw)
	toReview(t, wz)

	done := make(chan error, 1)
	go func() {
		_, err := wz.Submit(context.Background())
		done <- err
	}()
	require.Eventually(t, wz.Submitting, time.Second, time.Millisecond)

	for i := 0; i < 3; i++ {
		_, err := wz.Submit(context.Background())
		assert.Equal(t, wizard.ErrSubmissionInFlight, err)
	}
	assert.Equal(t, wizard.ErrSubmissionInFlight, wz.Back())

	close(gw.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, gw.callCount())
	assert.False(t, wz.Submitting())
}

func TestWizard_submitFailures(t *testing.T) {
	own := []project.Project{{ID: "p0", OwnerID: "u1"}}
	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, wz *wizard.Wizard, err error)
	}{
		{
			name: "network",
			err:  core.NewNetworkError(errors.New("connection refused")),
			check: func(t *testing.T, wz *wizard.Wizard, err error) {
				var rErr *wizard.RetryableError
				assert.True(t, errors.As(err, &rErr))
			},
		},
		{
			name: "pending project",
			err:  &core.APIError{Status: http.StatusConflict, Code: core.CodeConflict, Message: "pending", Details: map[string]string{"project_id": "p0"}},
			check: func(t *testing.T, wz *wizard.Wizard, err error) {
				pErr, ok := wizard.IsPending(err)
				require.True(t, ok)
				require.NotNil(t, pErr.Project, "the project is known from the own projects")
				assert.Equal(t, "p0", pErr.Project.ID)
			},
		},
		{
			name: "server field errors",
			err: core.NewAPIError(http.StatusBadRequest, "some fields are invalid", core.FieldErrors{
				"project.thai_name": "already used",
				"submitter.phone":   "unknown number",
			}),
			check: func(t *testing.T, wz *wizard.Wizard, err error) {
				assert.True(t, core.IsCode(err, core.CodeValidation))
				assert.Equal(t, "already used", wz.DraftErrors()[project.FieldThaiName])
				assert.Equal(t, "unknown number", wz.ProfileErrors()[submitter.FieldPhone])
			},
		},
		{
			name: "session expired",
			err:  errors.Wrap(session.ErrSessionExpired, "submitting"),
			check: func(t *testing.T, wz *wizard.Wizard, err error) {
				assert.Equal(t, session.ErrSessionExpired, err)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &gateway{own: own, submitErr: tt.err}
			wz := begin(t, gw)
			toReview(t, wz)

			_, err := wz.Submit(context.Background())
			require.Error(t, err)
			assert.Equal(t, wizard.StepReview, wz.Step(), "failures keep the review step")
			assert.Equal(t, err, wz.LastError())
			assert.True(t, wz.Consent())
			tt.check(t, wz, err)
		})
	}
}

func TestWizard_Reset(t *testing.T) {
	wz := begin(t, new(gateway))
	require.NoError(t, wz.UpdateDraft(func(d *project.Draft) { *d = testutil.ValidDraft() }))
	require.NoError(t, wz.Next())

	assert.Equal(t, wizard.ErrResetNotConfirmed, wz.Reset(false))
	assert.Equal(t, wizard.StepUserInfo, wz.Step())

	for i := 0; i < 2; i++ {
		require.NoError(t, wz.Reset(true))
		assert.Equal(t, wizard.StepProjectInfo, wz.Step())
		assert.Equal(t, project.NewDraft(), wz.Draft())
		assert.Equal(t, submitter.NewProfile(), wz.Profile())
		assert.Empty(t, wz.DraftErrors())
		assert.False(t, wz.Consent())
	}
}

func TestWizard_resetDuringSubmission(t *testing.T) {
	gw := &gateway{release: make(chan struct{})}
	wz := begin(t, gw)
	toReview(t, wz)

	done := make(chan error, 1)
	go func() {
		_, err := wz.Submit(context.Background())
		done <- err
	}()
	require.Eventually(t, wz.Submitting, time.Second, time.Millisecond)

	require.NoError(t, wz.Reset(true))
	assert.False(t, wz.Submitting())
	close(gw.release)

	assert.Equal(t, wizard.ErrSubmissionDiscarded, <-done)
	assert.Equal(t, wizard.StepProjectInfo, wz.Step())
	_, ok := wz.Submitted()
	assert.False(t, ok)
}

func TestWizard_Abandon(t *testing.T) {
	gw := &gateway{release: make(chan struct{})}
	wz := begin(t, gw)
	toReview(t, wz)

	done := make(chan error, 1)
	go func() {
		_, err := wz.Submit(context.Background())
		done <- err
	}()
	require.Eventually(t, wz.Submitting, time.Second, time.Millisecond)

	wz.Abandon()
	close(gw.release)
	assert.Equal(t, wizard.ErrSubmissionDiscarded, <-done)

	assert.Equal(t, wizard.ErrAbandoned, wz.Begin(context.Background()))
	assert.Equal(t, wizard.ErrAbandoned, wz.Reset(true))
	assert.Equal(t, wizard.ErrAbandoned, wz.UpdateDraft(func(d *project.Draft) {}))
	assert.Empty(t, wz.OwnProjects())
}
