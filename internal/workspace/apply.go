package workspace

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/taskhub/internal/entity"
	"github.com/nhle/taskhub/internal/source"
)

// provisionalPrefix marks records created locally and not yet confirmed.
const provisionalPrefix = "pending-"

// IsProvisional reports whether id belongs to a record awaiting backend
// confirmation.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, provisionalPrefix)
}

// applyCreate shows v under a provisional id while confirm runs, then
// swaps in the confirmed record. On failure the provisional record is
// removed again.
func applyCreate[T entity.Record[T]](w *Workspace, s *entity.Store[T], op string, v T, confirm func(T) (T, error)) (T, error) {
	var zero T
	tmp := provisionalPrefix + uuid.NewString()
	if _, err := s.Create(v.WithID(tmp)); err != nil {
		return zero, err
	}

	got, err := confirm(v)
	_ = s.Remove(tmp)
	if err != nil {
		w.reverted(op, tmp, err)
		return zero, source.Wrap(op, err)
	}
	return got, upsert(s, got)
}

// applyUpdate stores next in place of the record with id, then confirms
// it. On failure the previous record is put back.
func applyUpdate[T entity.Record[T]](w *Workspace, s *entity.Store[T], op, id string, next T, confirm func(T) (T, error)) (T, error) {
	var zero T
	prev, err := s.Get(id)
	if err != nil {
		return zero, err
	}
	if _, err := s.Update(id, func(cur *T) { *cur = next }); err != nil {
		return zero, err
	}

	got, err := confirm(next)
	if err != nil {
		_, _ = s.Update(id, func(cur *T) { *cur = prev })
		w.reverted(op, id, err)
		return zero, source.Wrap(op, err)
	}
	return got, upsert(s, got)
}

// applyRemove removes the record with id, then confirms. On failure the
// record is restored at its old position.
func applyRemove[T entity.Record[T]](w *Workspace, s *entity.Store[T], op, id string, confirm func() error) (T, error) {
	var zero T
	prev, err := s.Get(id)
	if err != nil {
		return zero, err
	}
	pos := s.Position(id)
	if err := s.Remove(id); err != nil {
		return zero, err
	}

	if err := confirm(); err != nil {
		restore(w, s, []removed[T]{{v: prev, pos: pos}})
		w.reverted(op, id, err)
		return zero, source.Wrap(op, err)
	}
	return prev, nil
}

// removed is a record taken out of a store and where it stood.
type removed[T any] struct {
	v   T
	pos int
}

// removeWhere removes every record matching match and returns them with
// their positions, in store order.
func removeWhere[T entity.Record[T]](s *entity.Store[T], match func(T) bool) []removed[T] {
	var out []removed[T]
	for i, v := range s.GetAll() {
		if match(v) {
			out = append(out, removed[T]{v: v, pos: i})
		}
	}
	for _, r := range out {
		_ = s.Remove(r.v.GetID())
	}
	return out
}

// restore puts records back in ascending position order so each index
// refers to the order as it was before any of them were removed.
func restore[T entity.Record[T]](w *Workspace, s *entity.Store[T], rs []removed[T]) {
	for _, r := range rs {
		if err := s.Restore(r.v, r.pos); err != nil {
			w.log.Error("restoring removed record",
				zap.String("kind", s.Kind()),
				zap.String("id", r.v.GetID()),
				zap.Error(err))
		}
	}
}

// upsert stores v under its own id, replacing any record already there.
func upsert[T entity.Record[T]](s *entity.Store[T], v T) error {
	if _, err := s.Get(v.GetID()); err == nil {
		_, err := s.Update(v.GetID(), func(cur *T) { *cur = v })
		return err
	}
	_, err := s.Create(v)
	return err
}

func (w *Workspace) reverted(op, id string, err error) {
	w.log.Warn("backend rejected change, local change reverted",
		zap.String("op", op),
		zap.String("id", id),
		zap.Error(err))
}
