package content

import (
	"errors"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-portal/core"
)

var (
	// errors
	ErrNotFound = errors.New("content not found")

	newIDFunc = func() string { return uuid.New().String() } // mockable
)

type (
	Repository interface {
		CreateContent(c Content) (Content, error)
		QueryAllContents() ([]Content, error)
		GetContentByID(id string) (Content, error)
		UpdateContent(c Content) (Content, error)
		DeleteContentsByID(ids ...string) error

		// Enroll records e unless the user is already enrolled; the stored enrollment is returned.
		Enroll(e Enrollment) (Enrollment, error)
		QueryEnrollments(userID string) ([]Enrollment, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(authorID string, nc NewContent) (Content, error) {
	if err := nc.Validate(); err != nil {
		return Content{}, err
	}
	now := core.NowFunc().UTC()
	return svc.repo.CreateContent(Content{
		ID:          newIDFunc(),
		Title:       nc.Title,
		Description: nc.Description,
		Body:        nc.Body,
		AuthorID:    authorID,
		IsPublished: nc.IsPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// List returns every content, or only the published ones.
func (svc *Service) List(publishedOnly bool) ([]Content, error) {
	all, err := svc.repo.QueryAllContents()
	if err != nil || !publishedOnly {
		return all, err
	}
	published := make([]Content, 0, len(all))
	for _, c := range all {
		if c.IsPublished {
			published = append(published, c)
		}
	}
	return published, nil
}

func (svc *Service) GetByID(id string) (Content, error) {
	return svc.repo.GetContentByID(id)
}

func (svc *Service) Update(orig Content, uc UpdateContent) (Content, error) {
	if err := uc.Validate(); err != nil {
		return Content{}, err
	}
	c := uc.Apply(orig)
	c.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateContent(c)
}

func (svc *Service) Delete(ids ...string) error {
	return svc.repo.DeleteContentsByID(ids...)
}

// Enroll enrolls userID in c. Enrolling twice returns the first enrollment.
func (svc *Service) Enroll(c Content, userID string) (Enrollment, error) {
	if !c.IsPublished {
		return Enrollment{}, ErrNotFound
	}
	return svc.repo.Enroll(Enrollment{ContentID: c.ID, UserID: userID, EnrolledAt: core.NowFunc().UTC()})
}

func (svc *Service) Enrollments(userID string) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(userID)
}

// AllEnrollments returns the enrollments of every user.
func (svc *Service) AllEnrollments() ([]Enrollment, error) {
	return svc.repo.QueryEnrollments("")
}
