package project

import (
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
)

var (
	ErrParentNotFound = errors.New("the parent project must be one of your own projects")
	ErrLineageCycle   = errors.New("the parent project lineage contains a cycle")
)

// CheckParent validates the parent reference of a draft against the projects the submitter owns.
// ownerID may be empty when own is already restricted to the submitter.
// The ancestors of the parent are walked so a corrupted lineage is reported instead of looping.
func CheckParent(parentID, ownerID string, own []Project) error {
	parentID = core.CleanString(parentID)
	if parentID == "" {
		return nil
	}

	byID := make(map[string]Project, len(own))
	for _, p := range own {
		if ownerID == "" || p.OwnerID == ownerID {
			byID[p.ID] = p
		}
	}
	if _, ok := byID[parentID]; !ok {
		return ErrParentNotFound
	}

	visited := make(map[string]bool, len(byID))
	for id := parentID; id != ""; {
		if visited[id] {
			return ErrLineageCycle
		}
		visited[id] = true
		p, ok := byID[id]
		if !ok {
			break // ancestors outside the submitter's list are the server's concern
		}
		id = p.ParentProjectID
	}
	return nil
}

// ValidateParent returns the field error message for the parent reference of d, or "".
func ValidateParent(d Draft, ownerID string, own []Project) string {
	if err := CheckParent(d.ParentProjectID, ownerID, own); err != nil {
		return err.Error()
	}
	return ""
}
