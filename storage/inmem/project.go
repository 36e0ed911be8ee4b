package inmemdb

import (
	"sort"

	"github.com/trezcool/masomo-portal/core/project"
)

type projectRepository struct {
	db *projectTable
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *DB) project.Repository {
	return &projectRepository{db: db.project}
}

func (repo *projectRepository) CreateProject(p project.Project) (project.Project, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[p.ID] = &p
	return p, nil
}

func (repo *projectRepository) GetProjectByID(id string) (project.Project, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.table[id]; ok {
		return *p, nil
	}
	return project.Project{}, project.ErrNotFound
}

func (repo *projectRepository) QueryProjects(filter project.QueryFilter) ([]project.Project, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	projects := make([]project.Project, 0)
	for _, p := range repo.db.table {
		if filter.Matches(*p) {
			projects = append(projects, *p)
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].SubmittedAt.Equal(projects[j].SubmittedAt) {
			return projects[i].ID < projects[j].ID
		}
		return projects[i].SubmittedAt.Before(projects[j].SubmittedAt)
	})
	return projects, nil
}

func (repo *projectRepository) UpdateProject(p project.Project) (project.Project, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[p.ID]; !ok {
		return project.Project{}, project.ErrNotFound
	}
	repo.db.table[p.ID] = &p
	return p, nil
}

func (repo *projectRepository) DeleteProjectsByID(ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
