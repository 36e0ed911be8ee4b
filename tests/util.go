package testutil

import (
	"net/http/httptest"
	"testing"
	"time"

	echoapi "github.com/trezcool/masomo-portal/apps/devapi/echo"
	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/content"
	"github.com/trezcool/masomo-portal/core/project"
	"github.com/trezcool/masomo-portal/core/submitter"
	"github.com/trezcool/masomo-portal/core/user"
	inmemdb "github.com/trezcool/masomo-portal/storage/inmem"
)

// Password satisfies the password policy of every test user.
const Password = "Sup3r-s3cret!"

// DevAPI is a development API server backed by a fresh in-memory store.
type DevAPI struct {
	*httptest.Server
	Conf       *core.Config
	UserRepo   user.Repository
	UserSvc    *user.Service
	ProjectSvc *project.Service
	ContentSvc *content.Service
}

// BaseURL returns the root of the versioned API.
func (api *DevAPI) BaseURL() string {
	return api.URL + "/v1"
}

func Config() *core.Config {
	return &core.Config{
		Env:      "TEST",
		TestMode: true,
		AppName:  "Masomo Portal",
		Build:    "test",
		API: core.APIConfig{
			Timeout:         5 * time.Second,
			RefreshInterval: time.Minute,
		},
		Upload: core.UploadConfig{MaxFileSize: core.MaxDescriptionFileSize},
		Server: core.ServerConfig{
			Host:                      "localhost",
			SecretKey:                 "test-secret-key",
			JWTExpirationDelta:        15 * time.Minute,
			JWTRefreshExpirationDelta: 7 * 24 * time.Hour,
		},
	}
}

// NewDevAPI starts a development API server closed at the end of the test.
func NewDevAPI(t *testing.T, conf ...*core.Config) *DevAPI {
	c := Config()
	if len(conf) > 0 {
		c = conf[0]
	}

	db := inmemdb.Open()
	api := &DevAPI{
		Conf:       c,
		UserRepo:   inmemdb.NewUserRepository(db),
		ProjectSvc: project.NewService(inmemdb.NewProjectRepository(db)),
		ContentSvc: content.NewService(inmemdb.NewContentRepository(db)),
	}
	api.UserSvc = user.NewService(api.UserRepo)

	srv := echoapi.NewServer(&echoapi.Deps{
		Conf:       c,
		Logger:     core.NopLogger{},
		UserSvc:    api.UserSvc,
		ProjectSvc: api.ProjectSvc,
		ContentSvc: api.ContentSvc,
	})
	api.Server = httptest.NewServer(srv)
	t.Cleanup(api.Server.Close)
	return api
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ValidDraft returns a draft passing every validator.
func ValidDraft() project.Draft {
	d := project.NewDraft()
	d.ThaiName = "ระบบ A"
	d.EnglishName = "System A"
	d.Summary = "A system for the community"
	d.StartDate = Date(2024, time.January, 1)
	d.EndDate = Date(2024, time.June, 30)
	d.DescriptionFile = "JVBERi0xLjQK" // %PDF-1.4
	d.DescriptionFileName = "description.pdf"
	return d
}

// ValidProfile returns a submitter profile passing every validator.
func ValidProfile() submitter.Profile {
	p := submitter.NewProfile()
	p.FirstName = "สมชาย"
	p.LastName = "ใจดี"
	p.BirthDate = Date(1990, time.March, 15)
	p.Email = "a@b.co"
	p.Phone = "0812345678"
	return p
}
