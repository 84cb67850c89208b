// Package policy decides which roles may perform which actions.
package policy

import (
	"errors"
	"fmt"

	"github.com/nhle/taskhub/internal/model"
)

// Action is a permission-checked operation.
type Action string

const (
	CreateProject    Action = "createProject"
	EditProject      Action = "editProject"
	DeleteProject    Action = "deleteProject"
	ViewProject      Action = "viewProject"
	ManageUsers      Action = "manageUsers"
	ManageTasks      Action = "manageTasks"
	UpdateTaskStatus Action = "updateTaskStatus"
)

// Actions lists every known action.
var Actions = []Action{
	CreateProject,
	EditProject,
	DeleteProject,
	ViewProject,
	ManageUsers,
	ManageTasks,
	UpdateTaskStatus,
}

// Ownership describes the acting user's relation to the target project.
// The zero value means "no relation" (or no project).
type Ownership struct {
	IsManager bool
	IsMember  bool
}

func (o Ownership) owns() bool {
	return o.IsManager || o.IsMember
}

// OwnershipOf computes the relation between user and project.
func OwnershipOf(user model.User, project model.Project) Ownership {
	if user.ID == "" {
		return Ownership{}
	}
	return Ownership{
		IsManager: project.ManagerID == user.ID,
		IsMember:  project.HasMember(user.ID),
	}
}

type grant int

const (
	deny grant = iota
	always
	ifOwner
)

var rules = map[model.Role]map[Action]grant{
	model.RoleAdmin: {
		CreateProject:    always,
		EditProject:      always,
		DeleteProject:    always,
		ViewProject:      always,
		ManageUsers:      always,
		ManageTasks:      always,
		UpdateTaskStatus: always,
	},
	model.RoleProjectManager: {
		CreateProject:    always,
		EditProject:      always,
		DeleteProject:    always,
		ViewProject:      always,
		ManageTasks:      always,
		UpdateTaskStatus: always,
	},
	model.RoleMember: {
		ViewProject:      ifOwner,
		UpdateTaskStatus: ifOwner,
	},
	model.RoleViewer: {
		ViewProject: ifOwner,
	},
}

// Allowed reports whether role may perform action given the ownership
// context. Roles outside the known set are treated as viewers and unknown
// actions are always denied.
func Allowed(role model.Role, action Action, own Ownership) bool {
	table, ok := rules[role]
	if !ok {
		table = rules[model.RoleViewer]
	}
	switch table[action] {
	case always:
		return true
	case ifOwner:
		return own.owns()
	}
	return false
}

// PermissionError is returned when a role may not perform an action.
type PermissionError struct {
	Role   model.Role
	Action Action
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s may not %s", e.Role, e.Action)
}

// IsPermissionError reports whether err (or any error in its chain) is a PermissionError.
func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// Check is Allowed returning a *PermissionError on denial.
func Check(role model.Role, action Action, own Ownership) error {
	if Allowed(role, action, own) {
		return nil
	}
	return &PermissionError{Role: role, Action: action}
}
