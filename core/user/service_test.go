package user_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
	inmemdb "github.com/trezcool/masomo-portal/storage/inmem"
	"github.com/trezcool/masomo-portal/tests"
)

func TestService(t *testing.T) {
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	svc := user.NewService(repo)

	usr, err := svc.Create(user.NewUser{
		Name:            "Somchai",
		Username:        "somchai",
		Email:           "somchai@test.th",
		Password:        testutil.Password,
		PasswordConfirm: testutil.Password,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleLearner}, usr.Roles, "learner by default")
	assert.True(t, usr.IsActive)

	_, err = svc.Create(user.NewUser{Name: "Other", Username: "somchai", Password: testutil.Password, PasswordConfirm: testutil.Password})
	fe, ok := core.FieldErrorsOf(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, user.ErrUsernameExists.Error(), fe["username"])

	got, err := svc.Authenticate("somchai@test.th", testutil.Password)
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
	_, err = svc.Authenticate("somchai", "lol")
	assert.Equal(t, user.ErrNotFound, err)

	got, err = svc.SetLastLogin(got)
	require.NoError(t, err)
	assert.False(t, got.LastLogin.IsZero())

	inactive := false
	uu := user.UpdateUser{Name: "Somchai Jaidee", IsActive: &inactive, Roles: []string{user.RoleApproverFirst}}
	require.NoError(t, uu.Validate(got))
	got, err = svc.Update(got, uu)
	require.NoError(t, err)
	assert.Equal(t, "Somchai Jaidee", got.Name)
	assert.False(t, got.IsActive)
	assert.False(t, got.LastLogin.IsZero(), "the last login is kept")

	users, err := svc.Filter(user.QueryFilter{Search: "JAIDEE", Roles: []string{user.RoleApprover}, IsActive: &inactive})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, svc.Delete(usr.ID))
	_, err = svc.GetByID(usr.ID)
	assert.Equal(t, user.ErrNotFound, err)
}
