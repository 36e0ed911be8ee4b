package client_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/client"
	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/content"
	"github.com/trezcool/masomo-portal/core/project"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/tests"
)

type fixture struct {
	api *testutil.DevAPI
	c   *client.Client
}

func newFixture(t *testing.T) *fixture {
	api := testutil.NewDevAPI(t)
	testutil.CreateUser(t, api.UserRepo, "Somchai", "somchai", "somchai@test.th", testutil.Password, user.LearnerRoles, true)
	testutil.CreateUser(t, api.UserRepo, "Malee", "malee1", "malee@test.th", testutil.Password, user.LearnerRoles, true)
	testutil.CreateUser(t, api.UserRepo, "Approver", "approver1", "approver@test.th", testutil.Password, []string{user.RoleApprover}, true)
	testutil.CreateUser(t, api.UserRepo, "Admin", "administrator", "admin@test.th", testutil.Password, user.AdminRoles, true)
	testutil.CreateUser(t, api.UserRepo, "Gone", "deactivated", "gone@test.th", testutil.Password, user.LearnerRoles, false)
	return &fixture{api: api, c: client.New(api.BaseURL())}
}

// as returns a client authenticated as uname, with its session.
func (f *fixture) as(t *testing.T, uname string) (*client.Client, *session.Session) {
	sess := session.New(f.c.Authenticator(), nil)
	_, err := sess.Login(context.Background(), uname, testutil.Password)
	require.NoError(t, err)
	return f.c.WithSession(sess), sess
}

func TestClient_auth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		uname, pwd string
		wantErrStr string
	}{
		{name: "wrong password", uname: "somchai", pwd: "lol", wantErrStr: "unauthorized (401): invalid credentials"},
		{name: "unknown user", uname: "nobody", pwd: testutil.Password, wantErrStr: "unauthorized (401): invalid credentials"},
		{name: "deactivated", uname: "deactivated", pwd: testutil.Password, wantErrStr: "forbidden (403): account deactivated"},
		{name: "by email", uname: "somchai@test.th", pwd: testutil.Password},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := f.c.Login(ctx, tt.uname, tt.pwd)
			if tt.wantErrStr != "" {
				assert.EqualError(t, err, tt.wantErrStr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, tokens.Access)
			assert.NotEmpty(t, tokens.Refresh)
		})
	}

	_, err := f.c.Login(ctx, "", "")
	fe, ok := core.FieldErrorsOf(err)
	require.True(t, ok, "got %v", err)
	assert.ElementsMatch(t, []string{"username", "password"}, fe.Keys())

	tokens, err := f.c.Login(ctx, "somchai", testutil.Password)
	require.NoError(t, err)

	v, err := f.c.Verify(ctx, tokens.Refresh)
	require.NoError(t, err)
	assert.Equal(t, client.VerifyResponse{Valid: true, TokenType: session.TokenRefresh, Subject: v.Subject}, v)

	refreshed, err := f.c.RefreshTokens(ctx, tokens.Refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.Access)
	assert.Empty(t, refreshed.Refresh, "the refresh token is not rotated")

	_, err = f.c.RefreshTokens(ctx, tokens.Access)
	assert.EqualError(t, err, "unauthorized (401): invalid refresh token")

	require.NoError(t, f.c.Logout(ctx, tokens.Refresh))
	_, err = f.c.RefreshTokens(ctx, tokens.Refresh)
	assert.True(t, core.IsCode(err, core.CodeUnauthorized))
	v, err = f.c.Verify(ctx, tokens.Refresh)
	require.NoError(t, err)
	assert.False(t, v.Valid)
}

func TestClient_notAuthenticated(t *testing.T) {
	f := newFixture(t)
	_, err := f.c.ListOwnProjects(context.Background())
	assert.Equal(t, session.ErrNotAuthenticated, err)
}

func TestClient_networkError(t *testing.T) {
	c := client.New("http://127.0.0.1:1/v1")
	_, err := c.Login(context.Background(), "somchai", testutil.Password)
	assert.True(t, core.IsCode(err, core.CodeNetwork), "got %v", err)
	assert.True(t, core.IsRetryable(err))
}

// staleSession restores a session whose access token the server rejects.
func staleSession(t *testing.T, f *fixture, refresh string) *session.Session {
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(session.State{Tokens: session.Tokens{Access: "stale", Refresh: refresh}}))
	sess := session.New(f.c.Authenticator(), store)
	require.NoError(t, sess.Restore())
	return sess
}

func TestClient_refreshOnUnauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tokens, err := f.c.Login(ctx, "somchai", testutil.Password)
	require.NoError(t, err)

	sess := staleSession(t, f, tokens.Refresh)
	projects, err := f.c.WithSession(sess).ListOwnProjects(ctx)
	require.NoError(t, err, "the call is retried once after a refresh")
	assert.Empty(t, projects)
	assert.NotEqual(t, "stale", sess.AccessToken())
	assert.False(t, sess.Expired())

	// a rejected refresh ends the session
	require.NoError(t, f.c.Logout(ctx, tokens.Refresh))
	sess = staleSession(t, f, tokens.Refresh)
	_, err = f.c.WithSession(sess).ListOwnProjects(ctx)
	assert.Equal(t, session.ErrSessionExpired, err)
	assert.True(t, sess.Expired())
	assert.False(t, sess.Authenticated())
}

func TestClient_projects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	learner, _ := f.as(t, "somchai")
	other, _ := f.as(t, "malee1")
	approver, _ := f.as(t, "approver1")

	_, err := learner.GetLatestOwnProject(ctx)
	assert.True(t, core.IsCode(err, core.CodeNotFound), "got %v", err)

	// invalid submission
	d := testutil.ValidDraft()
	d.DescriptionFile = ""
	_, err = learner.SubmitProject(ctx, d, testutil.ValidProfile())
	fe, ok := core.FieldErrorsOf(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, []string{project.FieldDescriptionFile}, fe.Keys())

	p, err := learner.SubmitProject(ctx, testutil.ValidDraft(), testutil.ValidProfile())
	require.NoError(t, err)
	assert.Equal(t, "System A", p.EnglishName)
	assert.Equal(t, project.AwaitingFirstApproval, p.Status().Kind)
	assert.Equal(t, testutil.ValidProfile(), p.Submitter)

	latest, err := learner.GetLatestOwnProject(ctx)
	require.NoError(t, err)
	assert.Equal(t, p.ID, latest.ID)

	// one pending project at a time
	_, err = learner.SubmitProject(ctx, testutil.ValidDraft(), testutil.ValidProfile())
	apiErr, ok := core.AsAPIError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, p.ID, apiErr.Details["project_id"])

	// approvers cannot submit, learners cannot review
	_, err = approver.SubmitProject(ctx, testutil.ValidDraft(), testutil.ValidProfile())
	assert.EqualError(t, err, "forbidden (403): permission denied")
	_, err = learner.ListProjects(ctx, project.QueryFilter{})
	assert.EqualError(t, err, "forbidden (403): permission denied")
	_, err = learner.UpdateProjectStatus(ctx, p.ID, project.ActionApprove, "")
	assert.EqualError(t, err, "forbidden (403): permission denied")

	// projects of others are hidden
	_, err = other.GetProject(ctx, p.ID)
	assert.EqualError(t, err, "not_found (404): not found")

	all, err := approver.ListProjects(ctx, project.QueryFilter{Status: "awaiting_first"})
	require.NoError(t, err)
	require.Len(t, all, 1)

	for _, want := range []project.StatusKind{project.AwaitingSecondApproval, project.AwaitingThirdApproval, project.FullyApproved} {
		p, err = approver.UpdateProjectStatus(ctx, p.ID, project.ActionApprove, "")
		require.NoError(t, err)
		assert.Equal(t, want, p.Status().Kind)
	}
	_, err = approver.UpdateProjectStatus(ctx, p.ID, project.ActionReject, "too late")
	assert.EqualError(t, err, "conflict (409): the project has already been decided")

	// decided projects may be continued
	d = testutil.ValidDraft()
	d.ParentProjectID = p.ID
	next, err := learner.SubmitProject(ctx, d, testutil.ValidProfile())
	require.NoError(t, err)
	assert.True(t, next.IsContinuation)

	own, err := learner.ListOwnProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, own, 2)

	sum, err := approver.ProjectSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.ByStatus["approved"])
	assert.Equal(t, 1, sum.ByStatus["awaiting_first"])

	_, err = approver.EnrollmentSummary(ctx)
	assert.True(t, core.IsCode(err, core.CodeForbidden))
}

func TestClient_contents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, _ := f.as(t, "administrator")
	learner, _ := f.as(t, "somchai")

	_, err := learner.CreateContent(ctx, content.NewContent{Title: "Intro"})
	assert.True(t, core.IsCode(err, core.CodeForbidden))

	intro, err := admin.CreateContent(ctx, content.NewContent{Title: "Intro to SDGs", IsPublished: true})
	require.NoError(t, err)
	hidden, err := admin.CreateContent(ctx, content.NewContent{Title: "Drafting"})
	require.NoError(t, err)

	contents, err := learner.ListContents(ctx)
	require.NoError(t, err)
	require.Len(t, contents, 1, "learners only see published contents")
	assert.Equal(t, intro.ID, contents[0].ID)

	_, err = learner.Enroll(ctx, hidden.ID)
	assert.True(t, core.IsCode(err, core.CodeNotFound), "got %v", err)

	e, err := learner.Enroll(ctx, intro.ID)
	require.NoError(t, err)
	again, err := learner.Enroll(ctx, intro.ID)
	require.NoError(t, err)
	assert.True(t, e.EnrolledAt.Equal(again.EnrolledAt))

	enrollments, err := learner.ListEnrollments(ctx)
	require.NoError(t, err)
	assert.Len(t, enrollments, 1)

	sum, err := admin.EnrollmentSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Total)

	require.NoError(t, admin.DeleteContent(ctx, hidden.ID))
	_, err = admin.GetContent(ctx, hidden.ID)
	assert.True(t, core.IsCode(err, core.CodeNotFound))
}

func TestClient_users(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, _ := f.as(t, "administrator")
	learner, sess := f.as(t, "somchai")

	me, err := learner.Me(ctx)
	require.NoError(t, err)
	usr, _ := sess.User()
	assert.Equal(t, usr.ID, me.ID)

	_, err = learner.ListUsers(ctx, user.QueryFilter{})
	assert.True(t, core.IsCode(err, core.CodeForbidden))

	_, err = admin.CreateUser(ctx, user.NewUser{Name: "New", Username: "somchai", Password: testutil.Password, PasswordConfirm: testutil.Password})
	fe, ok := core.FieldErrorsOf(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, user.ErrUsernameExists.Error(), fe["username"])

	created, err := admin.CreateUser(ctx, user.NewUser{
		Name:            "New Approver",
		Username:        "newapprover",
		Password:        testutil.Password,
		PasswordConfirm: testutil.Password,
		Roles:           []string{user.RoleApproverSecond},
	})
	require.NoError(t, err)

	approvers, err := admin.ListUsers(ctx, user.QueryFilter{Roles: []string{user.RoleApprover}})
	require.NoError(t, err)
	assert.Len(t, approvers, 2)

	roles, err := admin.ListRoles(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.Roles, roles)

	require.NoError(t, admin.DeleteUser(ctx, created.ID))
	_, err = admin.GetUser(ctx, created.ID)
	assert.True(t, core.IsCode(err, core.CodeNotFound))
}
