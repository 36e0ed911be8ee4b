package inmemdb

import (
	"sync"

	"github.com/trezcool/masomo-portal/core/content"
	"github.com/trezcool/masomo-portal/core/project"
	"github.com/trezcool/masomo-portal/core/user"
)

type (
	// DB keeps the records of the development API server in process memory.
	DB struct {
		user       *userTable
		project    *projectTable
		content    *contentTable
		enrollment *enrollmentTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	projectTable struct {
		sync.RWMutex
		table map[string]*project.Project
	}

	contentTable struct {
		sync.RWMutex
		table map[string]*content.Content
	}

	enrollmentTable struct {
		sync.RWMutex
		rows []content.Enrollment
	}
)

func Open() *DB {
	return &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		project:    &projectTable{table: make(map[string]*project.Project)},
		content:    &contentTable{table: make(map[string]*content.Content)},
		enrollment: &enrollmentTable{},
	}
}
