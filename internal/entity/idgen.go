package entity

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator assigns ids to records created without one.
type IDGenerator interface {
	// NextID returns an id that does not appear in existing.
	NextID(existing []string) string
}

type sequential struct {
	mu   sync.Mutex
	high int64
}

// Sequential returns a generator producing "1", "2", ... as max existing
// numeric id + 1. The high-water mark survives deletes, so ids of removed
// records are never reissued. Non-numeric ids are ignored.
func Sequential() IDGenerator {
	return &sequential{}
}

func (g *sequential) NextID(existing []string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range existing {
		n, err := strconv.ParseInt(id, 10, 64)
		if err == nil && n > g.high {
			g.high = n
		}
	}
	g.high++
	return strconv.FormatInt(g.high, 10)
}

type uuids struct{}

// UUIDs returns a generator producing random UUIDv4 strings.
func UUIDs() IDGenerator {
	return uuids{}
}

func (uuids) NextID([]string) string {
	return uuid.New().String()
}
