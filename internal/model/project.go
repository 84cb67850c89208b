package model

import (
	"slices"
	"strings"
	"time"
)

// Project status labels used by the dashboard.
const (
	ProjectPlanning   = "Planning"
	ProjectInProgress = "In Progress"
	ProjectOnHold     = "On Hold"
	ProjectCompleted  = "Completed"
)

// Project groups tasks and the users allowed to work on them.
type Project struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	StartDate   time.Time `json:"start_date" db:"start_date"`
	EndDate     time.Time `json:"end_date" db:"end_date"`
	Status      string    `json:"status" db:"status"`
	Progress    int       `json:"progress" db:"progress"`
	ManagerID   string    `json:"manager_id,omitempty" db:"manager_id"`
	Members     []string  `json:"members" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

func (p Project) GetID() string { return p.ID }

func (p Project) WithID(id string) Project {
	p.ID = id
	return p
}

// Clone returns a copy whose member list is not shared with p.
func (p Project) Clone() Project {
	p.Members = slices.Clone(p.Members)
	return p
}

// HasMember reports whether userID is listed in the project's members.
func (p Project) HasMember(userID string) bool {
	return slices.Contains(p.Members, userID)
}

// Involves reports whether userID manages or belongs to the project.
func (p Project) Involves(userID string) bool {
	if userID == "" {
		return false
	}
	return p.ManagerID == userID || p.HasMember(userID)
}

// Normalize deduplicates members and makes sure the manager is one of them.
func (p *Project) Normalize() {
	seen := make(map[string]bool, len(p.Members)+1)
	members := make([]string, 0, len(p.Members)+1)
	for _, m := range p.Members {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		members = append(members, m)
	}
	if p.ManagerID != "" && !seen[p.ManagerID] {
		members = append(members, p.ManagerID)
	}
	p.Members = members
	if p.Status == "" {
		p.Status = ProjectPlanning
	}
}

// Validate checks the project's invariants.
func (p Project) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return invalid("project", "title", "must not be empty")
	}
	if !p.StartDate.IsZero() && !p.EndDate.IsZero() && p.EndDate.Before(p.StartDate) {
		return invalid("project", "end_date", "must not be before start date")
	}
	if p.Progress < 0 || p.Progress > 100 {
		return invalid("project", "progress", "must be between 0 and 100, got %d", p.Progress)
	}
	if len(p.Members) == 0 {
		return invalid("project", "members", "must not be empty")
	}
	return nil
}
