package savestate

import (
	"iter"
	"slices"
	"time"
)

const (
	typeHero TypeID = iota
	typeMob
	typeBullet
)

type testHero struct {
	id    EntityID
	HP    int32
	Focus *testMob
}

func (h *testHero) EntityID() EntityID      { return h.id }
func (h *testHero) SetEntityID(id EntityID) { h.id = id }
func (*testHero) TypeID() TypeID            { return typeHero }

type testMob struct {
	id      EntityID
	HP      int32
	Owner   *testMob
	Pack    []*testMob
	ReadyAt time.Duration
	Remote  bool
}

func (m *testMob) EntityID() EntityID      { return m.id }
func (m *testMob) SetEntityID(id EntityID) { m.id = id }
func (*testMob) TypeID() TypeID            { return typeMob }
func (m *testMob) SecondaryOwned() bool    { return m.Remote }

type testBullet struct {
	id      EntityID
	Shooter *testMob
	Speed   float64
}

func (b *testBullet) EntityID() EntityID      { return b.id }
func (b *testBullet) SetEntityID(id EntityID) { b.id = id }
func (*testBullet) TypeID() TypeID            { return typeBullet }

type testWorld struct {
	ents    []Entity
	now     time.Duration
	next    EntityID
	Counter int64
	Boss    *testMob
}

func (w *testWorld) spawn(e Entity) Entity {
	e.SetEntityID(w.next)
	w.next++
	w.ents = append(w.ents, e)
	return e
}

func (w *testWorld) Entities() iter.Seq[Entity] { return slices.Values(w.ents) }
func (w *testWorld) Add(e Entity)               { w.ents = append(w.ents, e) }
func (w *testWorld) Remove(e Entity) {
	if i := slices.Index(w.ents, e); i >= 0 {
		w.ents = slices.Delete(w.ents, i, i+1)
	}
}
func (w *testWorld) Now() time.Duration     { return w.now }
func (w *testWorld) SetNow(t time.Duration) { w.now = t }
func (w *testWorld) SetNextID(id EntityID)  { w.next = id }
func (w *testWorld) WriteGlobals(wr *Writer) {
	wr.WriteInt64(w.Counter)
	WriteRef(wr, w.Boss)
}
func (w *testWorld) ReadGlobals(r *Reader) {
	w.Counter = r.ReadInt64()
	ReadRef(r, &w.Boss)
}

func (w *testWorld) byID(id EntityID) Entity {
	for _, e := range w.ents {
		if e.EntityID() == id {
			return e
		}
	}
	return nil
}

func mobs(w *testWorld) []*testMob {
	var out []*testMob
	for _, e := range w.ents {
		if m, ok := e.(*testMob); ok {
			out = append(out, m)
		}
	}
	return out
}

func newTestRegistry() *Registry {
	reg := NewRegistry()
	must := func(_ TypeID, err error) {
		if err != nil {
			panic(err)
		}
	}
	must(Register(reg, "hero",
		func(w *Writer, h *testHero) {
			w.WriteInt32(h.HP)
			WriteRef(w, h.Focus)
		},
		func(r *Reader, h *testHero) {
			h.HP = r.ReadInt32()
			ReadRef(r, &h.Focus)
		},
		nil,
	))
	must(Schema[*testMob]{
		Name: "mob",
		Fields: []Field[*testMob]{
			Int32("hp", func(m *testMob) *int32 { return &m.HP }),
			Reference("owner", func(m *testMob) **testMob { return &m.Owner }),
			References("pack", func(m *testMob) *[]*testMob { return &m.Pack }),
			Time("ready_at", func(m *testMob) *time.Duration { return &m.ReadyAt }),
		},
		Spawn: func() *testMob { return &testMob{} },
	}.Register(reg))
	must(Register(reg, "bullet",
		func(w *Writer, b *testBullet) {
			WriteRef(w, b.Shooter)
			w.WriteFloat64(b.Speed)
		},
		func(r *Reader, b *testBullet) {
			ReadRef(r, &b.Shooter)
			b.Speed = r.ReadFloat64()
		},
		func() *testBullet { return &testBullet{} },
	))
	return reg
}

// entityState is a comparable dump of one entity with references flattened
// to ids.
type entityState struct {
	Type    TypeID
	ID      EntityID
	HP      int32
	Ref     EntityID
	Pack    string
	ReadyAt time.Duration
	Speed   float64
}

func refID[T Ref](e T) EntityID {
	var zero T
	if e == zero {
		return NoRef
	}
	return e.EntityID()
}

func dump(w *testWorld) []entityState {
	out := make([]entityState, 0, len(w.ents))
	for _, e := range w.ents {
		s := entityState{Type: e.TypeID(), ID: e.EntityID()}
		switch v := e.(type) {
		case *testHero:
			s.HP, s.Ref = v.HP, refID(v.Focus)
		case *testMob:
			s.HP, s.Ref, s.ReadyAt = v.HP, refID(v.Owner), v.ReadyAt
			for _, p := range v.Pack {
				s.Pack += string(rune('A' + refID(p)))
			}
		case *testBullet:
			s.Ref, s.Speed = refID(v.Shooter), v.Speed
		}
		out = append(out, s)
	}
	return out
}
