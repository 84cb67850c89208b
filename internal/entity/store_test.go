package entity

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	ID    string
	Text  string
	Email string
	Tags  []string
}

func (n note) GetID() string { return n.ID }

func (n note) WithID(id string) note {
	n.ID = id
	return n
}

func (n note) Clone() note {
	n.Tags = append([]string(nil), n.Tags...)
	return n
}

var errEmptyText = errors.New("text must not be empty")

func newNoteStore() *Store[note] {
	return New(Config[note]{
		Kind: "note",
		Validate: func(n note) error {
			if strings.TrimSpace(n.Text) == "" {
				return errEmptyText
			}
			return nil
		},
		Unique: []Index[note]{{
			Name: "email",
			Key:  func(n note) string { return strings.ToLower(n.Email) },
		}},
	})
}

func ids(notes []note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func TestCreate_AssignsSequentialIDs(t *testing.T) {
	s := newNoteStore()

	id1, err := s.Create(note{Text: "a"})
	require.NoError(t, err)
	id2, err := s.Create(note{Text: "b"})
	require.NoError(t, err)

	assert.Equal(t, "1", id1)
	assert.Equal(t, "2", id2)
	assert.Equal(t, []string{"1", "2"}, ids(s.GetAll()))
}

func TestCreate_MaxPlusOneSkipsCallerIDs(t *testing.T) {
	s := newNoteStore()
	_, err := s.Create(note{ID: "41", Text: "a"})
	require.NoError(t, err)

	id, err := s.Create(note{Text: "b"})
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestCreate_DeletedIDsAreNotReissued(t *testing.T) {
	s := newNoteStore()
	_, _ = s.Create(note{Text: "a"})
	id2, _ := s.Create(note{Text: "b"})
	require.NoError(t, s.Remove(id2))

	id3, err := s.Create(note{Text: "c"})
	require.NoError(t, err)
	assert.Equal(t, "3", id3)
}

func TestCreate_UUIDGenerator(t *testing.T) {
	s := New(Config[note]{Kind: "note", IDs: UUIDs()})
	id, err := s.Create(note{Text: "a"})
	require.NoError(t, err)
	assert.Len(t, id, 36)
}

func TestCreate_DuplicateID(t *testing.T) {
	s := newNoteStore()
	_, err := s.Create(note{ID: "7", Text: "a"})
	require.NoError(t, err)

	_, err = s.Create(note{ID: "7", Text: "b"})
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))
	assert.Equal(t, 1, s.Len())
}

func TestCreate_UniqueIndexIsCaseInsensitive(t *testing.T) {
	s := newNoteStore()
	_, err := s.Create(note{Text: "a", Email: "ana@example.com"})
	require.NoError(t, err)

	_, err = s.Create(note{Text: "b", Email: "ANA@example.com"})
	var dk *DuplicateKeyError
	require.ErrorAs(t, err, &dk)
	assert.Equal(t, "email", dk.Field)
}

func TestCreate_ValidationErrorIsReturnedUnchanged(t *testing.T) {
	s := newNoteStore()
	_, err := s.Create(note{Text: " "})
	assert.ErrorIs(t, err, errEmptyText)
	assert.Zero(t, s.Len())
	assert.Zero(t, s.Revision())
}

func TestCreate_RoundTrip(t *testing.T) {
	s := newNoteStore()
	id, err := s.Create(note{Text: "hello", Tags: []string{"x"}})
	require.NoError(t, err)

	all := s.GetAll()
	var matches int
	for _, n := range all {
		if n.Text == "hello" {
			matches++
			assert.Equal(t, id, n.ID)
			assert.Equal(t, []string{"x"}, n.Tags)
		}
	}
	assert.Equal(t, 1, matches)

	require.NoError(t, s.Remove(id))
	assert.NotContains(t, ids(s.GetAll()), id)
}

func TestStore_DoesNotShareSlices(t *testing.T) {
	s := newNoteStore()
	tags := []string{"a"}
	id, _ := s.Create(note{Text: "t", Tags: tags})
	tags[0] = "mutated"

	got, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Tags[0])

	got.Tags[0] = "mutated again"
	again, _ := s.Get(id)
	assert.Equal(t, "a", again.Tags[0])
}

func TestUpdate_MergesPatch(t *testing.T) {
	s := newNoteStore()
	id, _ := s.Create(note{Text: "a", Email: "a@example.com"})

	updated, err := s.Update(id, func(n *note) { n.Text = "b" })
	require.NoError(t, err)
	assert.Equal(t, "b", updated.Text)
	assert.Equal(t, "a@example.com", updated.Email)
}

func TestUpdate_CannotChangeID(t *testing.T) {
	s := newNoteStore()
	id, _ := s.Create(note{Text: "a"})

	updated, err := s.Update(id, func(n *note) { n.ID = "99" })
	require.NoError(t, err)
	assert.Equal(t, id, updated.ID)
	_, err = s.Get("99")
	assert.True(t, IsNotFound(err))
}

func TestUpdate_NotFound(t *testing.T) {
	s := newNoteStore()
	_, err := s.Update("nope", func(n *note) {})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "note nope not found", nf.Error())
}

func TestUpdate_InvalidPatchLeavesRecord(t *testing.T) {
	s := newNoteStore()
	id, _ := s.Create(note{Text: "a"})
	rev := s.Revision()

	_, err := s.Update(id, func(n *note) { n.Text = "" })
	require.ErrorIs(t, err, errEmptyText)

	got, _ := s.Get(id)
	assert.Equal(t, "a", got.Text)
	assert.Equal(t, rev, s.Revision())
}

func TestUpdate_ReindexesUniqueKey(t *testing.T) {
	s := newNoteStore()
	id, _ := s.Create(note{Text: "a", Email: "old@example.com"})
	_, err := s.Update(id, func(n *note) { n.Email = "new@example.com" })
	require.NoError(t, err)

	_, err = s.Create(note{Text: "b", Email: "old@example.com"})
	assert.NoError(t, err, "old key should be released")
	_, err = s.Create(note{Text: "c", Email: "new@example.com"})
	assert.True(t, IsDuplicateKey(err))
}

func TestUpdateMany_AllOrNothing(t *testing.T) {
	s := newNoteStore()
	id1, _ := s.Create(note{Text: "a"})
	id2, _ := s.Create(note{Text: "b"})

	calls := 0
	_, err := s.UpdateMany([]string{id1, id2}, func(n *note) {
		calls++
		if n.ID == id2 {
			n.Text = ""
		} else {
			n.Text = "changed"
		}
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)

	got, _ := s.Get(id1)
	assert.Equal(t, "a", got.Text, "first record must not be applied when the second fails")
}

func TestUpdateMany_NotifiesAfterWholeBatch(t *testing.T) {
	s := newNoteStore()
	id1, _ := s.Create(note{Text: "a"})
	id2, _ := s.Create(note{Text: "b"})

	var observed [][]string
	s.Subscribe(func(ev Event) {
		var texts []string
		for _, n := range s.GetAll() {
			texts = append(texts, n.Text)
		}
		observed = append(observed, texts)
	})

	_, err := s.UpdateMany([]string{id1, id2}, func(n *note) { n.Text = "done" })
	require.NoError(t, err)

	require.Len(t, observed, 2)
	for _, texts := range observed {
		assert.Equal(t, []string{"done", "done"}, texts)
	}
}

func TestRemove_NotFound(t *testing.T) {
	s := newNoteStore()
	assert.True(t, IsNotFound(s.Remove("1")))
}

func TestRestore_KeepsInsertionOrder(t *testing.T) {
	s := newNoteStore()
	for _, text := range []string{"a", "b", "c", "d"} {
		_, err := s.Create(note{Text: text})
		require.NoError(t, err)
	}

	for _, id := range []string{"1", "3"} {
		pos := s.Position(id)
		prev, err := s.Get(id)
		require.NoError(t, err)
		require.NoError(t, s.Remove(id))
		require.NoError(t, s.Restore(prev, pos))
		assert.Equal(t, []string{"1", "2", "3", "4"}, ids(s.GetAll()))
	}

	assert.Equal(t, -1, s.Position("9"))
	require.NoError(t, s.Restore(note{ID: "9", Text: "e"}, 99))
	assert.Equal(t, []string{"1", "2", "3", "4", "9"}, ids(s.GetAll()))
}

func TestRestore_RejectsLiveID(t *testing.T) {
	s := newNoteStore()
	_, _ = s.Create(note{Text: "a"})

	err := s.Restore(note{ID: "1", Text: "again"}, 0)
	assert.True(t, IsDuplicateKey(err))
	assert.Equal(t, 1, s.Len())
}

func TestStoreID_IsPerInstance(t *testing.T) {
	a, b := newNoteStore(), newNoteStore()
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, a.ID(), a.ID())
}

func TestReplace_SwapsContents(t *testing.T) {
	s := newNoteStore()
	_, _ = s.Create(note{Text: "old"})

	var events []Event
	s.Subscribe(func(ev Event) { events = append(events, ev) })

	err := s.Replace([]note{{ID: "10", Text: "x"}, {ID: "11", Text: "y"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "11"}, ids(s.GetAll()))
	require.Len(t, events, 1)
	assert.Equal(t, EventReset, events[0].Type)

	id, err := s.Create(note{Text: "z"})
	require.NoError(t, err)
	assert.Equal(t, "12", id)
}

func TestReplace_RejectsCollisionsAndKeepsState(t *testing.T) {
	s := newNoteStore()
	_, _ = s.Create(note{Text: "keep"})

	err := s.Replace([]note{{ID: "1", Text: "x"}, {ID: "1", Text: "y"}})
	assert.True(t, IsDuplicateKey(err))

	err = s.Replace([]note{{Text: "x", Email: "a@b.c"}, {Text: "y", Email: "A@b.c"}})
	assert.True(t, IsDuplicateKey(err))

	all := s.GetAll()
	require.Len(t, all, 1)
	assert.Equal(t, "keep", all[0].Text)
}

func TestSubscribe_ReceivesEventsAfterApply(t *testing.T) {
	s := newNoteStore()

	var events []Event
	var lens []int
	s.Subscribe(func(ev Event) {
		events = append(events, ev)
		lens = append(lens, s.Len())
	})

	id, _ := s.Create(note{Text: "a"})
	_, _ = s.Update(id, func(n *note) { n.Text = "b" })
	_ = s.Remove(id)

	require.Len(t, events, 3)
	assert.Equal(t, EventCreate, events[0].Type)
	assert.Equal(t, EventUpdate, events[1].Type)
	assert.Equal(t, Event{Type: EventDelete, ID: id, Revision: 3}, events[2])
	assert.Equal(t, []int{1, 1, 0}, lens)
}

func TestSubscribe_ReentrantMutationDoesNotDeadlock(t *testing.T) {
	s := newNoteStore()

	s.Subscribe(func(ev Event) {
		if ev.Type != EventCreate {
			return
		}
		_, err := s.Update(ev.ID, func(n *note) { n.Text += "!" })
		assert.NoError(t, err)
	})

	id, err := s.Create(note{Text: "hi"})
	require.NoError(t, err)
	got, _ := s.Get(id)
	assert.Equal(t, "hi!", got.Text)
}

func TestSubscribe_UnsubscribeDuringNotification(t *testing.T) {
	s := newNoteStore()

	var firstCalls, secondCalls int
	var unsubSecond func()
	s.Subscribe(func(Event) {
		firstCalls++
		unsubSecond()
	})
	unsubSecond = s.Subscribe(func(Event) { secondCalls++ })

	_, _ = s.Create(note{Text: "a"})
	assert.Equal(t, 1, firstCalls)
	assert.Equal(t, 1, secondCalls, "removal takes effect from the next mutation")

	_, _ = s.Create(note{Text: "b"})
	assert.Equal(t, 2, firstCalls)
	assert.Equal(t, 1, secondCalls)

	assert.NotPanics(t, unsubSecond, "unsubscribe is idempotent")
}

func TestFailedMutationsDoNotNotify(t *testing.T) {
	s := newNoteStore()
	var events int
	s.Subscribe(func(Event) { events++ })

	_, _ = s.Create(note{Text: ""})
	_ = s.Remove("404")
	_, _ = s.Update("404", func(*note) {})
	assert.Zero(t, events)
}

func TestVersion_TracksLastWrite(t *testing.T) {
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	s := New(Config[note]{Kind: "note", Now: func() time.Time { return clock }})

	id, _ := s.Create(note{Text: "a"})
	v1, ok := s.Version(id)
	require.True(t, ok)
	assert.Equal(t, clock, v1)

	clock = clock.Add(time.Minute)
	_, _ = s.Update(id, func(n *note) { n.Text = "b" })
	v2, _ := s.Version(id)
	assert.Equal(t, clock, v2)

	_ = s.Remove(id)
	_, ok = s.Version(id)
	assert.False(t, ok)
}

func TestFind(t *testing.T) {
	s := newNoteStore()
	_, _ = s.Create(note{Text: "a", Email: "a@x.io"})
	_, _ = s.Create(note{Text: "b", Email: "b@x.io"})

	got, ok := s.Find(func(n note) bool { return n.Email == "b@x.io" })
	require.True(t, ok)
	assert.Equal(t, "b", got.Text)

	_, ok = s.Find(func(n note) bool { return false })
	assert.False(t, ok)
}

// The number of records always equals successful creates minus
// successful deletes, whatever the mix of operations.
func TestLenMatchesCreatesMinusDeletes(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := newNoteStore()

	creates, deletes := 0, 0
	for i := 0; i < 500; i++ {
		switch rng.Intn(4) {
		case 0, 1:
			text := "n"
			if rng.Intn(5) == 0 {
				text = ""
			}
			if _, err := s.Create(note{Text: text}); err == nil {
				creates++
			}
		case 2:
			all := s.GetAll()
			target := "missing"
			if len(all) > 0 && rng.Intn(3) > 0 {
				target = all[rng.Intn(len(all))].ID
			}
			if err := s.Remove(target); err == nil {
				deletes++
			}
		case 3:
			all := s.GetAll()
			if len(all) > 0 {
				_, _ = s.Update(all[rng.Intn(len(all))].ID, func(n *note) { n.Text += "x" })
			}
		}
		require.Equal(t, creates-deletes, len(s.GetAll()))
	}
}
