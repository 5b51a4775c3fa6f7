package savestate

import (
	"fmt"
	"time"

	"github.com/zeusync/savestate/internal/core/chunk"
)

// Writer is handed to type serializers during capture. It embeds the chunk,
// so scalar writes go straight through.
type Writer struct {
	*chunk.Chunk
	include []bool
}

// Included reports whether entities of type id are part of this capture.
func (w *Writer) Included(id TypeID) bool {
	return id >= 0 && int(id) < len(w.include) && w.include[id]
}

// WriteTime writes a timestamp on the simulation clock. Restore shifts it by
// the clock delta so that remaining durations are preserved.
func (w *Writer) WriteTime(t time.Duration) {
	w.WriteInt64(int64(t))
}

// refID picks the encoding for one reference: the target id, NoRef for nil,
// or ExcludedRef when the target will not be reconstructed by this snapshot.
func (w *Writer) refID(e Entity) EntityID {
	if isSecondary(e) || !w.Included(e.TypeID()) {
		return ExcludedRef
	}
	return e.EntityID()
}

// WriteRef encodes a single reference field.
func WriteRef[T Ref](w *Writer, target T) {
	var zero T
	if target == zero {
		w.WriteInt32(int32(NoRef))
		return
	}
	w.WriteInt32(int32(w.refID(target)))
}

// WriteRefs encodes a list-typed reference field as a counted array of ids.
func WriteRefs[T Ref](w *Writer, list []T) {
	w.WriteLen(len(list))
	for _, target := range list {
		WriteRef(w, target)
	}
}

// Reader is handed to type serializers during restore.
type Reader struct {
	*chunk.Chunk
	session *Session
}

// ReadTime reads a timestamp written by WriteTime, shifted onto the present
// clock.
func (r *Reader) ReadTime() time.Duration {
	return time.Duration(r.ReadInt64()) + r.session.dt
}

// Fail aborts the restore in progress with err. Serializers call it when a
// payload decodes but makes no sense (e.g. an RNG state that will not
// unmarshal). The restore returns err wrapped in ErrCorruptSnapshot.
func (r *Reader) Fail(err error) {
	panic(readFailure{err: fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)})
}

type readFailure struct{ err error }

// Dt is the clock delta applied by this restore.
func (r *Reader) Dt() time.Duration { return r.session.dt }

// ReadRef reads a reference id and defers binding it into *dst until every
// record has been read. An ExcludedRef leaves *dst untouched.
func ReadRef[T Ref](r *Reader, dst *T) {
	id := EntityID(r.ReadInt32())
	r.session.enqueue(id, func(e Entity) bool {
		var zero T
		if e == nil {
			*dst = zero
			return true
		}
		typed, ok := e.(T)
		if !ok {
			*dst = zero
			return false
		}
		*dst = typed
		return true
	})
}

// ReadRefs reads a list written by WriteRefs. The slice is resized to the
// recorded count now and each slot is bound later.
func ReadRefs[T Ref](r *Reader, dst *[]T) {
	n := r.ReadLen(4)
	list := *dst
	if cap(list) < n {
		grown := make([]T, n)
		copy(grown, list)
		list = grown
	} else if n > len(list) {
		clear(list[len(list):n])
	}
	list = list[:n]
	*dst = list
	for i := 0; i < n; i++ {
		ReadRef(r, &list[i])
	}
}

type pendingRef struct {
	id    EntityID
	apply func(Entity) bool
}

// Session is the transient state of one restore: the id lookup table being
// built, the queue of deferred reference bindings and the reconciliation
// bookkeeping. A new Session is made for every restore.
type Session struct {
	dt      time.Duration
	lookup  map[EntityID]Entity
	pending []pendingRef
	fixed   map[Entity]struct{}
	claimed map[EntityID]struct{}
}

func newSession(dt time.Duration) *Session {
	return &Session{
		dt:      dt,
		lookup:  make(map[EntityID]Entity),
		fixed:   make(map[Entity]struct{}),
		claimed: make(map[EntityID]struct{}),
	}
}

func (s *Session) enqueue(id EntityID, apply func(Entity) bool) {
	s.pending = append(s.pending, pendingRef{id: id, apply: apply})
}

// register binds a recorded id to the live entity now holding it, and pins
// that id against renumbering. It reports false if the id was already taken
// in this snapshot.
func (s *Session) register(id EntityID, e Entity) bool {
	if _, dup := s.lookup[id]; dup {
		return false
	}
	s.lookup[id] = e
	s.fixed[e] = struct{}{}
	s.claimed[id] = struct{}{}
	return true
}

func (s *Session) isFixed(e Entity) bool {
	_, ok := s.fixed[e]
	return ok
}

func (s *Session) isClaimed(id EntityID) bool {
	_, ok := s.claimed[id]
	return ok
}

type resolveStats struct {
	resolved   int
	cleared    int
	skipped    int
	unresolved int
}

// resolve drains the pending queue once, in capture order.
func (s *Session) resolve() resolveStats {
	var st resolveStats
	for _, p := range s.pending {
		switch p.id {
		case ExcludedRef:
			st.skipped++
		case NoRef:
			p.apply(nil)
			st.cleared++
		default:
			target, ok := s.lookup[p.id]
			if !ok {
				p.apply(nil)
				st.unresolved++
				continue
			}
			if p.apply(target) {
				st.resolved++
			} else {
				st.unresolved++
			}
		}
	}
	s.pending = nil
	return st
}
