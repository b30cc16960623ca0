package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FilterSpec is a named, owned, shareable saved criteria set.
type FilterSpec struct {
	ID         uuid.UUID   `json:"id"`
	Title      string      `json:"title"`
	EntityType string      `json:"entity_type"`
	Criteria   CriteriaSet `json:"criteria"`
	Predicate  Predicate   `json:"predicate"`
	OwnerID    string      `json:"owner_id"`
	IsPublic   bool        `json:"is_public"`
	SharedWith []string    `json:"shared_with"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	// ReadOnly is set on reads by anyone other than the owner. Never stored.
	ReadOnly bool `json:"read_only"`
}

// NewFilterSpec creates a spec owned by owner. The owner is always part of
// the share list.
func NewFilterSpec(title, entityType string, criteria CriteriaSet, owner string, isPublic bool, sharedWith []string) FilterSpec {
	now := time.Now().UTC()
	return FilterSpec{
		ID:         uuid.New(),
		Title:      strings.TrimSpace(title),
		EntityType: entityType,
		Criteria:   criteria,
		OwnerID:    owner,
		IsPublic:   isPublic,
		SharedWith: NormalizeShares(owner, sharedWith),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsOwnedBy reports whether user owns the spec.
func (f FilterSpec) IsOwnedBy(user string) bool {
	return user != "" && f.OwnerID == user
}

// IsSharedWith reports whether user is on the explicit share list.
func (f FilterSpec) IsSharedWith(user string) bool {
	return user != "" && slices.Contains(f.SharedWith, user)
}

// VisibleTo applies the union rule: owner OR public OR shared.
func (f FilterSpec) VisibleTo(user string) bool {
	return f.IsOwnedBy(user) || f.IsPublic || f.IsSharedWith(user)
}

// FilterSpecPatch carries optional updates; nil fields are left unchanged.
type FilterSpecPatch struct {
	Title      *string      `json:"title,omitempty"`
	Criteria   *CriteriaSet `json:"criteria,omitempty"`
	IsPublic   *bool        `json:"is_public,omitempty"`
	SharedWith *[]string    `json:"shared_with,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p FilterSpecPatch) IsEmpty() bool {
	return p.Title == nil && p.Criteria == nil && p.IsPublic == nil && p.SharedWith == nil
}

// DeleteResult reports a bulk delete. Records the actor may not delete are
// skipped, unknown ids are reported as missing.
type DeleteResult struct {
	Deleted    int         `json:"deleted"`
	Skipped    int         `json:"skipped"`
	Missing    int         `json:"missing"`
	DeletedIDs []uuid.UUID `json:"deleted_ids"`
	SkippedIDs []uuid.UUID `json:"skipped_ids"`
}

// NormalizeShares trims, de-duplicates and sorts a share list, adding owner.
func NormalizeShares(owner string, users []string) []string {
	seen := make(map[string]struct{}, len(users)+1)
	out := make([]string, 0, len(users)+1)
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	add(owner)
	for _, u := range users {
		add(u)
	}
	slices.Sort(out)
	return out
}

// Messages renders the outcome for the acting user.
func (r DeleteResult) Messages() []string {
	msgs := make([]string, 0, 2)
	if r.Deleted > 0 {
		msgs = append(msgs, fmt.Sprintf("Successfully deleted %d filters.", r.Deleted))
	}
	if r.Skipped > 0 {
		msgs = append(msgs, fmt.Sprintf("Could not delete %d filters as they do not belong to the current user.", r.Skipped))
	}
	return msgs
}
