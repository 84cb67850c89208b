package taskform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskhub/internal/model"
)

func TestBindingsRoundTrip(t *testing.T) {
	due := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	in := model.Task{
		Title:       "Design",
		Description: "wireframes",
		Priority:    model.PriorityHigh,
		Status:      model.StatusBlocked,
		ProjectID:   "1",
		AssigneeID:  "3",
		DueDate:     &due,
	}

	var fb formBindings
	fb.load(in)
	assert.Equal(t, "2024-05-01", fb.dueDate)

	out := fb.task()
	require.NotNil(t, out.DueDate)
	assert.True(t, due.Equal(*out.DueDate))
	out.DueDate = in.DueDate
	assert.Equal(t, in, out)
}

func TestTask_TrimsAndIgnoresEmptyDate(t *testing.T) {
	fb := formBindings{title: "  Ship  ", priority: model.PriorityLow, status: model.StatusBacklog, projectID: "2"}

	got := fb.task()
	assert.Equal(t, "Ship", got.Title)
	assert.Nil(t, got.DueDate)
}

func TestAssigneeOptions(t *testing.T) {
	projects := []model.Project{
		{ID: "1", Title: "Apollo", ManagerID: "2", Members: []string{"2", "3"}},
		{ID: "2", Title: "Zeus", ManagerID: "2", Members: []string{"2"}},
	}
	users := []model.User{{ID: "1", Name: "Ada"}, {ID: "2", Name: "Pam"}, {ID: "3", Name: "Bob"}}

	keys := func(projectID string) []string {
		var out []string
		for _, o := range AssigneeOptions(projectID, projects, users) {
			out = append(out, o.Key)
		}
		return out
	}

	assert.Equal(t, []string{"Unassigned", "Pam", "Bob"}, keys("1"))
	assert.Equal(t, []string{"Unassigned", "Pam"}, keys("2"))
	assert.Equal(t, []string{"Unassigned"}, keys("missing"))
}

func TestValidators(t *testing.T) {
	assert.Error(t, validateRequired("Title")("   "))
	assert.NoError(t, validateRequired("Title")("x"))

	assert.NoError(t, validateOptionalDate(""))
	assert.NoError(t, validateOptionalDate("2024-02-29"))
	assert.Error(t, validateOptionalDate("29/02/2024"))
}

func TestSubmit(t *testing.T) {
	m := New(80, 24)
	m.fb.title = "Docs"
	m.fb.projectID = "1"

	msg := m.submit()()
	created, ok := msg.(TaskCreatedMsg)
	require.True(t, ok)
	assert.Equal(t, "Docs", created.Task.Title)
	assert.Equal(t, model.StatusBacklog, created.Task.Status)

	existing := model.Task{ID: "7", Title: "Old", ProjectID: "1", CreatedAt: time.Unix(100, 0)}
	m.editing = &existing
	m.fb.load(existing)
	m.fb.title = "New"

	msg = m.submit()()
	updated, ok := msg.(TaskUpdatedMsg)
	require.True(t, ok)
	assert.Equal(t, "7", updated.Task.ID)
	assert.Equal(t, "New", updated.Task.Title)
	assert.Equal(t, existing.CreatedAt, updated.Task.CreatedAt)
}

func TestFields_StatusOnlyWhenEditing(t *testing.T) {
	fb := &formBindings{}
	projects := []model.Project{{ID: "1", Title: "Apollo"}}

	assert.Len(t, fields(fb, projects, nil, false), 6)
	assert.Len(t, fields(fb, projects, nil, true), 7)
	assert.Len(t, fields(fb, nil, nil, false), 5)
}
