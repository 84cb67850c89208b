package help

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/taskhub/internal/keys"
	"github.com/nhle/taskhub/internal/model"
)

func TestPermissions(t *testing.T) {
	admin := Permissions(model.RoleAdmin)
	assert.Contains(t, admin, "manage users")
	assert.NotContains(t, admin, "you belong to")

	pm := Permissions(model.RoleProjectManager)
	assert.Contains(t, pm, "delete projects")
	assert.NotContains(t, pm, "manage users")

	member := Permissions(model.RoleMember)
	assert.Contains(t, member, "move tasks between columns in projects you belong to")
	assert.NotContains(t, member, "create projects")

	viewer := Permissions(model.RoleViewer)
	assert.Contains(t, viewer, "view boards in projects you belong to")
	assert.NotContains(t, viewer, "move tasks")
}

func TestView(t *testing.T) {
	m := New(keys.DefaultKeyMap(), model.RoleMember, 140, 60)

	out := m.View()
	assert.Contains(t, out, "Keyboard Shortcuts")
	assert.Contains(t, out, "read-all")
	assert.Contains(t, out, "As member you can")
}
