package inmemdb

import (
	"sort"

	"github.com/trezcool/masomo-portal/core/content"
)

type contentRepository struct {
	db          *contentTable
	enrollments *enrollmentTable
}

var _ content.Repository = (*contentRepository)(nil) // interface compliance check

func NewContentRepository(db *DB) content.Repository {
	return &contentRepository{db: db.content, enrollments: db.enrollment}
}

func (repo *contentRepository) CreateContent(c content.Content) (content.Content, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[c.ID] = &c
	return c, nil
}

func (repo *contentRepository) QueryAllContents() ([]content.Content, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	contents := make([]content.Content, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		contents = append(contents, *c)
	}
	sort.Slice(contents, func(i, j int) bool {
		if contents[i].CreatedAt.Equal(contents[j].CreatedAt) {
			return contents[i].ID < contents[j].ID
		}
		return contents[i].CreatedAt.Before(contents[j].CreatedAt)
	})
	return contents, nil
}

func (repo *contentRepository) GetContentByID(id string) (content.Content, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.table[id]; ok {
		return *c, nil
	}
	return content.Content{}, content.ErrNotFound
}

func (repo *contentRepository) UpdateContent(c content.Content) (content.Content, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[c.ID]; !ok {
		return content.Content{}, content.ErrNotFound
	}
	repo.db.table[c.ID] = &c
	return c, nil
}

// DeleteContentsByID also drops the enrollments of the deleted contents.
func (repo *contentRepository) DeleteContentsByID(ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.enrollments.Lock()
	defer repo.enrollments.Unlock()

	deleted := make(map[string]bool, len(ids))
	for _, id := range ids {
		delete(repo.db.table, id)
		deleted[id] = true
	}
	kept := repo.enrollments.rows[:0]
	for _, e := range repo.enrollments.rows {
		if !deleted[e.ContentID] {
			kept = append(kept, e)
		}
	}
	repo.enrollments.rows = kept
	return nil
}

func (repo *contentRepository) Enroll(e content.Enrollment) (content.Enrollment, error) {
	repo.enrollments.Lock()
	defer repo.enrollments.Unlock()

	for _, existing := range repo.enrollments.rows {
		if existing.ContentID == e.ContentID && existing.UserID == e.UserID {
			return existing, nil
		}
	}
	repo.enrollments.rows = append(repo.enrollments.rows, e)
	return e, nil
}

func (repo *contentRepository) QueryEnrollments(userID string) ([]content.Enrollment, error) {
	repo.enrollments.RLock()
	defer repo.enrollments.RUnlock()

	enrollments := make([]content.Enrollment, 0)
	for _, e := range repo.enrollments.rows {
		if userID == "" || e.UserID == userID {
			enrollments = append(enrollments, e)
		}
	}
	return enrollments, nil
}
