package content

import (
	"time"

	"github.com/trezcool/masomo-portal/core"
)

// Content is a learning unit learners can enroll in.
type Content struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Body        string    `json:"body,omitempty"`
	AuthorID    string    `json:"author_id"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// NewContent contains information needed to create a new Content.
type NewContent struct {
	Title       string `json:"title" validate:"required,notblank,max=255"`
	Description string `json:"description" validate:"max=1000"`
	Body        string `json:"body"`
	IsPublished bool   `json:"is_published"`
}

func (nc *NewContent) Validate() error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	return core.Validate.Struct(nc)
}

// UpdateContent defines what information may be provided to modify an existing Content.
type UpdateContent struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,notblank,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	Body        *string `json:"body,omitempty"`
	IsPublished *bool   `json:"is_published,omitempty"`
}

func (uc *UpdateContent) Validate() error {
	if uc.Title != nil {
		t := core.CleanString(*uc.Title)
		uc.Title = &t
	}
	return core.Validate.Struct(uc)
}

// Apply returns c with the set fields of uc.
func (uc UpdateContent) Apply(c Content) Content {
	if uc.Title != nil {
		c.Title = *uc.Title
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	if uc.Body != nil {
		c.Body = *uc.Body
	}
	if uc.IsPublished != nil {
		c.IsPublished = *uc.IsPublished
	}
	return c
}

// Enrollment records a learner following a Content.
type Enrollment struct {
	ContentID  string    `json:"content_id"`
	UserID     string    `json:"user_id"`
	EnrolledAt time.Time `json:"enrolled_at"` // UTC
}
