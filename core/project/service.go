package project

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("project not found")
	ErrInvalid         = errors.New("the submission is invalid")
	ErrDecided         = errors.New("the project has already been decided")
	ErrStageNotAllowed = errors.New("you are not allowed to decide this approval stage")

	newIDFunc = func() string { return uuid.New().String() } // mockable
)

// PendingError is returned when the owner of a new submission already has a project awaiting approval.
type PendingError struct {
	Project Project
}

func (err *PendingError) Error() string {
	return fmt.Sprintf("project %s is still awaiting approval", err.Project.ID)
}

type (
	Repository interface {
		CreateProject(p Project) (Project, error)
		GetProjectByID(id string) (Project, error)
		// QueryProjects returns the projects matching filter, oldest submission first.
		QueryProjects(filter QueryFilter) ([]Project, error)
		UpdateProject(p Project) (Project, error)
		DeleteProjectsByID(ids ...string) error
	}

	// Service holds the approval workflow of the development API server.
	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Submit records a new project for ownerID.
// The owner may not have another pending project and the parent must be one of their projects.
func (svc *Service) Submit(ownerID string, s Submission) (Project, error) {
	s = NewSubmission(s.Project, s.Submitter)
	if err := s.Validate().ToError(ErrInvalid); err != nil {
		return Project{}, err
	}

	own, err := svc.repo.QueryProjects(QueryFilter{OwnerID: ownerID})
	if err != nil {
		return Project{}, err
	}
	for _, p := range own {
		if p.Status().Pending() {
			return Project{}, &PendingError{Project: p}
		}
	}
	if err := CheckParent(s.Project.ParentProjectID, ownerID, own); err != nil {
		return Project{}, core.NewValidationError(err, core.FieldError{Field: FieldParentProjectID, Error: err.Error()})
	}

	p := FromSubmission(newIDFunc(), ownerID, s, core.NowFunc().UTC())
	return svc.repo.CreateProject(p)
}

func (svc *Service) GetByID(id string) (Project, error) {
	return svc.repo.GetProjectByID(id)
}

func (svc *Service) Filter(filter QueryFilter) ([]Project, error) {
	filter.Clean()
	return svc.repo.QueryProjects(filter)
}

// Latest returns the last project submitted by ownerID.
func (svc *Service) Latest(ownerID string) (Project, error) {
	own, err := svc.repo.QueryProjects(QueryFilter{OwnerID: ownerID})
	if err != nil {
		return Project{}, err
	}
	if len(own) == 0 {
		return Project{}, ErrNotFound
	}
	sort.SliceStable(own, func(i, j int) bool { return own[i].SubmittedAt.Before(own[j].SubmittedAt) })
	return own[len(own)-1], nil
}

// UpdateStatus approves the stage p is waiting for, or rejects p.
func (svc *Service) UpdateStatus(p Project, approver user.User, upd StatusUpdate) (Project, error) {
	upd.Reason = core.CleanString(upd.Reason)
	if err := core.Validate.Struct(upd); err != nil {
		return Project{}, err
	}

	stage := p.NextStage()
	if stage == 0 {
		return Project{}, ErrDecided
	}
	if !approver.CanApproveStage(stage) {
		return Project{}, ErrStageNotAllowed
	}

	now := core.NowFunc().UTC()
	switch upd.Action {
	case ActionApprove:
		switch stage {
		case 1:
			p.FirstApprovedAt = &now
		case 2:
			p.SecondApprovedAt = &now
		case 3:
			p.ThirdApprovedAt = &now
		}
	case ActionReject:
		p.RejectedAt = &now
		p.RejectionReason = upd.Reason
	}
	return svc.repo.UpdateProject(p)
}

func (svc *Service) Delete(ids ...string) error {
	return svc.repo.DeleteProjectsByID(ids...)
}
