// Package entity provides a generic in-memory keyed collection with CRUD
// operations and synchronous change subscriptions.
package entity

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is implemented by every type held in a Store. WithID returns a
// copy of the record carrying the given id.
type Record[T any] interface {
	GetID() string
	WithID(id string) T
}

// cloner is implemented by records holding slices or pointers. The store
// clones on the way in and on the way out so callers never share memory
// with stored state.
type cloner[T any] interface {
	Clone() T
}

// EventType identifies the kind of mutation that produced an Event.
type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
	EventReset  EventType = "reset"
)

// Event is delivered to subscribers after a mutation has been applied.
// ID is empty for EventReset.
type Event struct {
	Type     EventType
	ID       string
	Revision uint64
}

// Index declares a unique secondary key. Records whose Key is empty are
// not indexed.
type Index[T any] struct {
	Name string
	Key  func(T) string
}

// Config configures a Store.
type Config[T any] struct {
	// Kind names the entity in errors ("task", "user").
	Kind string

	// IDs assigns ids to records created without one. Defaults to Sequential.
	IDs IDGenerator

	// Validate, if set, is run on every record before it is stored.
	Validate func(T) error

	// Unique lists secondary keys that must not collide.
	Unique []Index[T]

	// Now supplies version timestamps. Defaults to time.Now.
	Now func() time.Time
}

type subscriber struct {
	id uint64
	fn func(Event)
}

// Store is a keyed collection of records of one type. All methods are
// safe for concurrent use. Mutations are applied in full before any
// subscriber runs, and subscribers run without the store lock held, so a
// callback may read or mutate the store again.
type Store[T Record[T]] struct {
	cfg Config[T]
	id  string

	mu       sync.RWMutex
	order    []string
	items    map[string]T
	versions map[string]time.Time
	indexes  []map[string]string
	revision uint64

	subMu   sync.Mutex
	subs    []subscriber
	nextSub uint64
}

// New creates an empty store.
func New[T Record[T]](cfg Config[T]) *Store[T] {
	if cfg.Kind == "" {
		cfg.Kind = "entity"
	}
	if cfg.IDs == nil {
		cfg.IDs = Sequential()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	indexes := make([]map[string]string, len(cfg.Unique))
	for i := range indexes {
		indexes[i] = make(map[string]string)
	}
	return &Store[T]{
		cfg:      cfg,
		id:       uuid.NewString(),
		items:    make(map[string]T),
		versions: make(map[string]time.Time),
		indexes:  indexes,
	}
}

// Kind returns the entity name the store was configured with.
func (s *Store[T]) Kind() string {
	return s.cfg.Kind
}

// ID identifies this store instance. It is never reused, unlike the
// store's address.
func (s *Store[T]) ID() string {
	return s.id
}

// Create inserts v and returns its id. If v has no id one is assigned;
// a caller-supplied id that is already present yields a DuplicateKeyError.
func (s *Store[T]) Create(v T) (string, error) {
	if err := s.validate(v); err != nil {
		return "", err
	}

	s.mu.Lock()
	id := v.GetID()
	if id == "" {
		id = s.cfg.IDs.NextID(s.order)
		v = v.WithID(id)
	} else if _, exists := s.items[id]; exists {
		s.mu.Unlock()
		return "", &DuplicateKeyError{Kind: s.cfg.Kind, Field: "id", Value: id}
	}
	if err := s.checkUnique(v, ""); err != nil {
		s.mu.Unlock()
		return "", err
	}

	s.items[id] = s.clone(v)
	s.order = append(s.order, id)
	s.versions[id] = s.cfg.Now()
	s.indexAdd(v)
	ev := s.bump(EventCreate, id)
	s.mu.Unlock()

	s.emit(ev)
	return id, nil
}

// Get returns the record with the given id.
func (s *Store[T]) Get(id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[id]
	if !ok {
		var zero T
		return zero, &NotFoundError{Kind: s.cfg.Kind, ID: id}
	}
	return s.clone(v), nil
}

// Update applies patch to a copy of the record, re-validates it and
// stores the result. The patch runs under the store lock and must not
// call back into the store. The id cannot be changed by the patch.
func (s *Store[T]) Update(id string, patch func(*T)) (T, error) {
	s.mu.Lock()
	cur, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		var zero T
		return zero, &NotFoundError{Kind: s.cfg.Kind, ID: id}
	}

	next := s.clone(cur)
	patch(&next)
	next = next.WithID(id)

	if err := s.validate(next); err != nil {
		s.mu.Unlock()
		var zero T
		return zero, err
	}
	if err := s.checkUnique(next, id); err != nil {
		s.mu.Unlock()
		var zero T
		return zero, err
	}

	s.indexRemove(cur)
	s.indexAdd(next)
	s.items[id] = s.clone(next)
	s.versions[id] = s.cfg.Now()
	ev := s.bump(EventUpdate, id)
	s.mu.Unlock()

	s.emit(ev)
	return next, nil
}

// UpdateMany applies patch to every listed record. Either all records are
// updated or none are: every patched record is validated before the first
// one is stored. Subscribers receive one EventUpdate per id once the whole
// batch is in place.
func (s *Store[T]) UpdateMany(ids []string, patch func(*T)) ([]T, error) {
	s.mu.Lock()

	olds := make([]T, len(ids))
	nexts := make([]T, len(ids))
	seen := make([]map[string]string, len(s.cfg.Unique))
	for i := range seen {
		seen[i] = make(map[string]string)
	}

	for i, id := range ids {
		cur, ok := s.items[id]
		if !ok {
			s.mu.Unlock()
			return nil, &NotFoundError{Kind: s.cfg.Kind, ID: id}
		}
		next := s.clone(cur)
		patch(&next)
		next = next.WithID(id)

		if err := s.validate(next); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if err := s.checkUnique(next, ids...); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		for j, idx := range s.cfg.Unique {
			key := idx.Key(next)
			if key == "" {
				continue
			}
			if other, dup := seen[j][key]; dup && other != id {
				s.mu.Unlock()
				return nil, &DuplicateKeyError{Kind: s.cfg.Kind, Field: idx.Name, Value: key}
			}
			seen[j][key] = id
		}
		olds[i], nexts[i] = cur, next
	}

	now := s.cfg.Now()
	events := make([]Event, 0, len(ids))
	for i := range ids {
		s.indexRemove(olds[i])
	}
	for i, id := range ids {
		s.indexAdd(nexts[i])
		s.items[id] = s.clone(nexts[i])
		s.versions[id] = now
		events = append(events, s.bump(EventUpdate, id))
	}
	s.mu.Unlock()

	s.emit(events...)
	return nexts, nil
}

// Remove deletes the record with the given id.
func (s *Store[T]) Remove(id string) error {
	s.mu.Lock()
	cur, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return &NotFoundError{Kind: s.cfg.Kind, ID: id}
	}

	s.indexRemove(cur)
	delete(s.items, id)
	delete(s.versions, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	ev := s.bump(EventDelete, id)
	s.mu.Unlock()

	s.emit(ev)
	return nil
}

// Position returns the index of id in insertion order, or -1.
func (s *Store[T]) Position(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Index(s.order, id)
}

// Restore puts v back at index in insertion order, as when undoing a
// Remove. An index out of range appends.
func (s *Store[T]) Restore(v T, index int) error {
	if err := s.validate(v); err != nil {
		return err
	}

	s.mu.Lock()
	id := v.GetID()
	if id == "" {
		id = s.cfg.IDs.NextID(s.order)
		v = v.WithID(id)
	} else if _, exists := s.items[id]; exists {
		s.mu.Unlock()
		return &DuplicateKeyError{Kind: s.cfg.Kind, Field: "id", Value: id}
	}
	if err := s.checkUnique(v, ""); err != nil {
		s.mu.Unlock()
		return err
	}

	if index < 0 || index > len(s.order) {
		index = len(s.order)
	}
	s.items[id] = s.clone(v)
	s.order = slices.Insert(s.order, index, id)
	s.versions[id] = s.cfg.Now()
	s.indexAdd(v)
	ev := s.bump(EventCreate, id)
	s.mu.Unlock()

	s.emit(ev)
	return nil
}

// Replace swaps the store contents for items, keeping their order. Records
// without an id are assigned one. The store is left untouched if any record
// is invalid or two records collide.
func (s *Store[T]) Replace(items []T) error {
	for _, v := range items {
		if err := s.validate(v); err != nil {
			return err
		}
	}

	s.mu.Lock()
	order := make([]string, 0, len(items))
	byID := make(map[string]T, len(items))
	indexes := make([]map[string]string, len(s.cfg.Unique))
	for i := range indexes {
		indexes[i] = make(map[string]string)
	}

	for _, v := range items {
		id := v.GetID()
		if id == "" {
			id = s.cfg.IDs.NextID(order)
			v = v.WithID(id)
		}
		if _, dup := byID[id]; dup {
			s.mu.Unlock()
			return &DuplicateKeyError{Kind: s.cfg.Kind, Field: "id", Value: id}
		}
		for j, idx := range s.cfg.Unique {
			key := idx.Key(v)
			if key == "" {
				continue
			}
			if _, dup := indexes[j][key]; dup {
				s.mu.Unlock()
				return &DuplicateKeyError{Kind: s.cfg.Kind, Field: idx.Name, Value: key}
			}
			indexes[j][key] = id
		}
		byID[id] = s.clone(v)
		order = append(order, id)
	}

	now := s.cfg.Now()
	versions := make(map[string]time.Time, len(order))
	for _, id := range order {
		versions[id] = now
	}

	s.items = byID
	s.order = order
	s.versions = versions
	s.indexes = indexes
	ev := s.bump(EventReset, "")
	s.mu.Unlock()

	s.emit(ev)
	return nil
}

// GetAll returns every record in insertion order.
func (s *Store[T]) GetAll() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.clone(s.items[id]))
	}
	return out
}

// Find returns the first record, in insertion order, for which match
// returns true.
func (s *Store[T]) Find(match func(T) bool) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if v := s.items[id]; match(v) {
			return s.clone(v), true
		}
	}
	var zero T
	return zero, false
}

// Len returns the number of records held.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Version returns the last-write time of the record with the given id.
func (s *Store[T]) Version(id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.versions[id]
	return t, ok
}

// Revision returns a counter incremented by every successful mutation.
func (s *Store[T]) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Subscribe registers fn to be called after every successful mutation and
// returns a function that removes it. Removing a subscriber while an event
// is being delivered takes effect from the next mutation.
func (s *Store[T]) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			s.subs = slices.DeleteFunc(s.subs, func(sub subscriber) bool {
				return sub.id == id
			})
		})
	}
}

func (s *Store[T]) emit(events ...Event) {
	s.subMu.Lock()
	subs := slices.Clone(s.subs)
	s.subMu.Unlock()

	for _, ev := range events {
		for _, sub := range subs {
			sub.fn(ev)
		}
	}
}

// bump must be called with mu held.
func (s *Store[T]) bump(t EventType, id string) Event {
	s.revision++
	return Event{Type: t, ID: id, Revision: s.revision}
}

func (s *Store[T]) validate(v T) error {
	if s.cfg.Validate == nil {
		return nil
	}
	return s.cfg.Validate(v)
}

// checkUnique must be called with mu held. Collisions with any of the
// owners ids are ignored.
func (s *Store[T]) checkUnique(v T, owners ...string) error {
	for i, idx := range s.cfg.Unique {
		key := idx.Key(v)
		if key == "" {
			continue
		}
		if holder, taken := s.indexes[i][key]; taken && !slices.Contains(owners, holder) {
			return &DuplicateKeyError{Kind: s.cfg.Kind, Field: idx.Name, Value: key}
		}
	}
	return nil
}

func (s *Store[T]) indexAdd(v T) {
	for i, idx := range s.cfg.Unique {
		if key := idx.Key(v); key != "" {
			s.indexes[i][key] = v.GetID()
		}
	}
}

func (s *Store[T]) indexRemove(v T) {
	for i, idx := range s.cfg.Unique {
		key := idx.Key(v)
		if key != "" && s.indexes[i][key] == v.GetID() {
			delete(s.indexes[i], key)
		}
	}
}

func (s *Store[T]) clone(v T) T {
	if c, ok := any(v).(cloner[T]); ok {
		return c.Clone()
	}
	return v
}
