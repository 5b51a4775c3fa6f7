package savestate

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Descriptor is one row of the type table. Write and Read must consume
// exactly the same bytes in the same order. Spawn is optional; types without
// it must exist for the whole life of the world.
type Descriptor struct {
	ID   TypeID
	Name string
	// Fields names the payload layout in order, when the type was declared
	// with a Schema. It only feeds the fingerprint.
	Fields []string
	Write  func(w *Writer, e Entity)
	Read   func(r *Reader, e Entity)
	Spawn  func() Entity
}

// Registry is the closed, ordered table of entity types. It is built once at
// startup and sealed when an Engine takes it.
type Registry struct {
	types  []Descriptor
	byName map[string]TypeID
	sealed bool
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]TypeID)}
}

// Add appends a descriptor and assigns its TypeID. The ID field of d is
// ignored.
func (r *Registry) Add(d Descriptor) (TypeID, error) {
	if r.sealed {
		return 0, fmt.Errorf("%w: %s", ErrRegistrySealed, d.Name)
	}
	if d.Name == "" || d.Write == nil || d.Read == nil {
		return 0, fmt.Errorf("%w: %q needs a name, a writer and a reader", ErrInvalidType, d.Name)
	}
	if _, ok := r.byName[d.Name]; ok {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateType, d.Name)
	}
	d.ID = TypeID(len(r.types))
	r.types = append(r.types, d)
	r.byName[d.Name] = d.ID
	return d.ID, nil
}

// Register adds a type whose serializers work on the concrete entity type T.
// spawn may be nil.
func Register[T Entity](r *Registry, name string, write func(*Writer, T), read func(*Reader, T), spawn func() T) (TypeID, error) {
	if write == nil || read == nil {
		return 0, fmt.Errorf("%w: %q needs a writer and a reader", ErrInvalidType, name)
	}
	d := Descriptor{
		Name:  name,
		Write: func(w *Writer, e Entity) { write(w, e.(T)) },
		Read:  func(rd *Reader, e Entity) { read(rd, e.(T)) },
	}
	if spawn != nil {
		d.Spawn = func() Entity { return spawn() }
	}
	return r.Add(d)
}

// Seal forbids further registrations.
func (r *Registry) Seal() { r.sealed = true }

func (r *Registry) Sealed() bool { return r.sealed }

func (r *Registry) Len() int { return len(r.types) }

func (r *Registry) Lookup(id TypeID) (Descriptor, bool) {
	if id < 0 || int(id) >= len(r.types) {
		return Descriptor{}, false
	}
	return r.types[id], true
}

func (r *Registry) ByName(name string) (Descriptor, bool) {
	id, ok := r.byName[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.types[id], true
}

// Descriptors returns the table in TypeID order.
func (r *Registry) Descriptors() []Descriptor {
	return append([]Descriptor(nil), r.types...)
}

// Fingerprint hashes the ordered type names and their declared field names.
// Persisted snapshots carry it next to the bytes so a loader can refuse a
// snapshot written under a different table.
func (r *Registry) Fingerprint() uint64 {
	h := xxhash.New()
	for _, d := range r.types {
		_, _ = h.WriteString(d.Name)
		_, _ = h.Write([]byte{0})
		for _, f := range d.Fields {
			_, _ = h.WriteString(f)
			_, _ = h.Write([]byte{1})
		}
		_, _ = h.Write([]byte{2})
	}
	return h.Sum64()
}
