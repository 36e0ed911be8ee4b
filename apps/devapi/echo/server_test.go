package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/masomo-portal/apps/devapi/echo"
	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/content"
	"github.com/trezcool/masomo-portal/core/project"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
	inmemdb "github.com/trezcool/masomo-portal/storage/inmem"
	"github.com/trezcool/masomo-portal/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
	wantData interface{} // compared as JSON when set
	wantKeys []string    // keys of the JSON object when set
}

type testServer struct {
	conf       *core.Config
	app        echoapi.Server
	usrRepo    user.Repository
	projectSvc *project.Service
}

func newTestServer(t *testing.T) *testServer {
	conf := testutil.Config()
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	ts := &testServer{
		conf:       conf,
		usrRepo:    usrRepo,
		projectSvc: project.NewService(inmemdb.NewProjectRepository(db)),
	}
	ts.app = echoapi.NewServer(&echoapi.Deps{
		Conf:       conf,
		Logger:     core.NopLogger{},
		UserSvc:    user.NewService(usrRepo),
		ProjectSvc: ts.projectSvc,
		ContentSvc: content.NewService(inmemdb.NewContentRepository(db)),
	})
	return ts
}

func (ts *testServer) token(t *testing.T, usr user.User, tokenType ...string) string {
	typ := session.TokenAccess
	if len(tokenType) > 0 {
		typ = tokenType[0]
	}
	claims := session.NewClaims(usr, typ, ts.conf.AppName, time.Minute)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(ts.conf.Server.SecretKey))
	require.NoError(t, err)
	return token
}

func (ts *testServer) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body bytes.Buffer
			if tt.body != nil {
				require.NoError(t, json.NewEncoder(&body).Encode(tt.body))
			}
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req := httptest.NewRequest(method, tt.path, &body)
			req.Header.Set("Content-Type", "application/json")
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			ts.app.ServeHTTP(rec, req)

			wantCode := tt.wantCode
			if wantCode == 0 {
				wantCode = http.StatusOK
			}
			assert.Equal(t, wantCode, rec.Code, rec.Body.String())
			if tt.wantData != nil {
				want, err := json.Marshal(tt.wantData)
				require.NoError(t, err)
				assert.JSONEq(t, string(want), rec.Body.String())
			}
			if tt.wantKeys != nil {
				var got map[string]interface{}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				keys := make([]string, 0, len(got))
				for k := range got {
					keys = append(keys, k)
				}
				assert.ElementsMatch(t, tt.wantKeys, keys)
			}
		})
	}
}

func Test_home(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ts.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Masomo Portal API!", rec.Body.String())
}

func Test_authApi(t *testing.T) {
	ts := newTestServer(t)
	learner := testutil.CreateUser(t, ts.usrRepo, "Somchai", "somchai", "somchai@test.th", testutil.Password, user.LearnerRoles, true)
	gone := testutil.CreateUser(t, ts.usrRepo, "Gone", "deactivated", "gone@test.th", testutil.Password, user.LearnerRoles, false)

	ts.run(t, []httpTest{
		{name: "auth required", path: "/v1/auth/me", wantCode: http.StatusUnauthorized, wantData: errMissingToken},
		{
			name: "refresh tokens are refused", path: "/v1/auth/me", token: ts.token(t, learner, session.TokenRefresh),
			wantCode: http.StatusUnauthorized, wantData: httpErr{Error: "invalid or expired jwt"},
		},
		{
			name: "deactivated user", path: "/v1/auth/me", token: ts.token(t, gone),
			wantCode: http.StatusForbidden, wantData: httpErr{Error: "account deactivated"},
		},
		{name: "me", path: "/v1/auth/me", token: ts.token(t, learner), wantData: learner},
		{
			name: "login (missing fields)", method: http.MethodPost, path: "/v1/auth/login", body: echoapi.LoginRequest{},
			wantCode: http.StatusBadRequest, wantKeys: []string{"username", "password"},
		},
		{
			name: "login", method: http.MethodPost, path: "/v1/auth/login",
			body:     echoapi.LoginRequest{Username: " SOMCHAI ", Password: testutil.Password},
			wantKeys: []string{"access", "refresh"},
		},
		{
			name: "verify (garbage)", method: http.MethodPost, path: "/v1/auth/verify", body: echoapi.VerifyRequest{Token: "lol"},
			wantData: echoapi.VerifyResponse{Valid: false},
		},
		{name: "unknown route", path: "/v1/lol", wantCode: http.StatusNotFound, wantKeys: []string{"error"}},
	})
}

func Test_projectApi(t *testing.T) {
	ts := newTestServer(t)
	learner := testutil.CreateUser(t, ts.usrRepo, "Somchai", "somchai", "somchai@test.th", testutil.Password, user.LearnerRoles, true)
	first := testutil.CreateUser(t, ts.usrRepo, "First", "approver1", "first@test.th", testutil.Password, []string{user.RoleApproverFirst}, true)
	admin := testutil.CreateUser(t, ts.usrRepo, "Admin", "administrator", "admin@test.th", testutil.Password, user.AdminRoles, true)

	p, err := ts.projectSvc.Submit(learner.ID, project.NewSubmission(testutil.ValidDraft(), testutil.ValidProfile()))
	require.NoError(t, err)
	statusPath := "/v1/projects/" + p.ID + "/status"
	approve := project.StatusUpdate{Action: project.ActionApprove}

	ts.run(t, []httpTest{
		{
			name: "submit while pending", method: http.MethodPost, path: "/v1/projects/submit", token: ts.token(t, learner),
			body:     project.NewSubmission(testutil.ValidDraft(), testutil.ValidProfile()),
			wantCode: http.StatusConflict, wantData: map[string]string{"error": (&project.PendingError{Project: p}).Error(), "project_id": p.ID},
		},
		{
			name: "invalid submission", method: http.MethodPost, path: "/v1/projects/submit", token: ts.token(t, admin),
			body:     project.Submission{Project: project.NewDraft(), Submitter: testutil.ValidProfile()},
			wantCode: http.StatusBadRequest,
			wantKeys: []string{"thai_name", "english_name", "summary", "start_date", "end_date", "description_file"},
		},
		{
			name: "approvers only", path: "/v1/projects", token: ts.token(t, learner),
			wantCode: http.StatusForbidden, wantData: httpErr{Error: "permission denied"},
		},
		{
			name: "unknown project", method: http.MethodPatch, path: "/v1/projects/lol/status", token: ts.token(t, first), body: approve,
			wantCode: http.StatusNotFound, wantData: httpErr{Error: "not found"},
		},
		{
			name: "invalid action", method: http.MethodPatch, path: statusPath, token: ts.token(t, first),
			body: project.StatusUpdate{Action: "maybe"}, wantCode: http.StatusBadRequest, wantKeys: []string{"action"},
		},
		{name: "first stage", method: http.MethodPatch, path: statusPath, token: ts.token(t, first), body: approve},
		{
			name: "second stage needs another approver", method: http.MethodPatch, path: statusPath, token: ts.token(t, first), body: approve,
			wantCode: http.StatusForbidden, wantData: httpErr{Error: project.ErrStageNotAllowed.Error()},
		},
		{
			name: "admins decide any stage", method: http.MethodPatch, path: statusPath, token: ts.token(t, admin),
			body: project.StatusUpdate{Action: project.ActionReject, Reason: "out of scope"},
		},
		{
			name: "decided", method: http.MethodPatch, path: statusPath, token: ts.token(t, admin), body: approve,
			wantCode: http.StatusConflict, wantData: httpErr{Error: project.ErrDecided.Error()},
		},
	})

	got, err := ts.projectSvc.GetByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, project.Rejected, got.Status().Kind)
	assert.Equal(t, 1, got.Status().RejectedStage)
	assert.Equal(t, "out of scope", got.RejectionReason)
}

func Test_userApi(t *testing.T) {
	ts := newTestServer(t)
	learner := testutil.CreateUser(t, ts.usrRepo, "Somchai", "somchai", "somchai@test.th", testutil.Password, user.LearnerRoles, true)
	other := testutil.CreateUser(t, ts.usrRepo, "Malee", "malee1", "malee@test.th", testutil.Password, user.LearnerRoles, true)
	approver := testutil.CreateUser(t, ts.usrRepo, "Approver", "approver1", "approver@test.th", testutil.Password, []string{user.RoleApprover}, true)
	admin := testutil.CreateUser(t, ts.usrRepo, "Admin", "administrator", "admin@test.th", testutil.Password, user.AdminRoles, true)

	ts.run(t, []httpTest{
		{
			name: "admin required", path: "/v1/users", token: ts.token(t, learner),
			wantCode: http.StatusForbidden, wantData: httpErr{Error: "permission denied"},
		},
		{name: "roles", path: "/v1/users/roles", token: ts.token(t, admin), wantData: user.Roles},
		{
			name: "update self", method: http.MethodPut, path: "/v1/users/" + learner.ID, token: ts.token(t, learner),
			body: user.UpdateUser{Name: "Somchai Jaidee"}, wantKeys: []string{"id", "name", "username", "email", "is_active", "roles", "created_at", "updated_at", "last_login"},
		},
		{
			name: "roles are set by admins", method: http.MethodPut, path: "/v1/users/" + learner.ID, token: ts.token(t, learner),
			body: user.UpdateUser{Roles: []string{user.RoleAdmin}}, wantCode: http.StatusForbidden, wantData: httpErr{Error: "permission denied"},
		},
		{
			name: "other users are hidden", path: "/v1/users/" + other.ID, token: ts.token(t, learner),
			wantCode: http.StatusNotFound, wantData: httpErr{Error: "not found"},
		},
		{
			name: "no escalation", method: http.MethodPost, path: "/v1/users", token: ts.token(t, approver),
			body:     user.NewUser{Name: "X", Username: "xxxxxx", Password: testutil.Password, PasswordConfirm: testutil.Password},
			wantCode: http.StatusForbidden,
		},
		{
			name: "weak password", method: http.MethodPost, path: "/v1/users", token: ts.token(t, admin),
			body:     user.NewUser{Name: "New", Username: "newuser", Password: "password", PasswordConfirm: "password"},
			wantCode: http.StatusBadRequest, wantKeys: []string{"password"},
		},
		{
			name: "admins cannot delete themselves", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: ts.token(t, admin),
			wantCode: http.StatusForbidden,
		},
		{name: "delete", method: http.MethodDelete, path: "/v1/users/" + other.ID, token: ts.token(t, admin), wantCode: http.StatusNoContent},
	})
}
