// Package testutil holds helpers shared by tests across packages.
package testutil

import (
	"testing"
	"time"

	"github.com/nhle/taskhub/internal/source"
	"github.com/nhle/taskhub/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// Epoch is the fixed instant returned by Clock.
var Epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// Clock returns a clock that starts at Epoch and advances one second per call.
func Clock() func() time.Time {
	t := Epoch
	return func() time.Time {
		now := t
		t = t.Add(time.Second)
		return now
	}
}

// FastPasswords lowers the bcrypt cost for the duration of the test.
func FastPasswords(t *testing.T) {
	t.Helper()
	prev := source.PasswordCost
	source.PasswordCost = bcrypt.MinCost
	t.Cleanup(func() { source.PasswordCost = prev })
}

// NewTestStore creates an in-memory SQLiteStore with all migrations applied
// and a deterministic clock. It closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	FastPasswords(t)

	s, err := store.NewSQLiteStore(store.MemoryPath)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	s.SetClock(Clock())

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}
