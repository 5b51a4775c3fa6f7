package savestate

import "time"

// Field is one named, ordered member of an entity type's layout. Write and
// Read must mirror each other.
type Field[T Entity] struct {
	Name  string
	Write func(w *Writer, e T)
	Read  func(r *Reader, e T)
}

// Schema declares an entity type as an explicit list of fields serialized in
// declaration order. Reordering, adding or removing fields changes the
// registry fingerprint.
type Schema[T Entity] struct {
	Name   string
	Fields []Field[T]
	// Spawn builds a fresh instance when a restore needs more live entities
	// than exist. Leave nil for types that always exist.
	Spawn func() T
}

// Register adds the schema to reg.
func (s Schema[T]) Register(reg *Registry) (TypeID, error) {
	fields := append([]Field[T](nil), s.Fields...)
	d := Descriptor{
		Name:   s.Name,
		Fields: make([]string, len(fields)),
		Write: func(w *Writer, e Entity) {
			t := e.(T)
			for _, f := range fields {
				f.Write(w, t)
			}
		},
		Read: func(r *Reader, e Entity) {
			t := e.(T)
			for _, f := range fields {
				f.Read(r, t)
			}
		},
	}
	for i, f := range fields {
		if f.Name == "" || f.Write == nil || f.Read == nil {
			return 0, ErrInvalidType
		}
		d.Fields[i] = f.Name
	}
	if s.Spawn != nil {
		spawn := s.Spawn
		d.Spawn = func() Entity { return spawn() }
	}
	return reg.Add(d)
}

func Int32[T Entity](name string, at func(T) *int32) Field[T] {
	return Field[T]{
		Name:  name,
		Write: func(w *Writer, e T) { w.WriteInt32(*at(e)) },
		Read:  func(r *Reader, e T) { *at(e) = r.ReadInt32() },
	}
}

func Int64[T Entity](name string, at func(T) *int64) Field[T] {
	return Field[T]{
		Name:  name,
		Write: func(w *Writer, e T) { w.WriteInt64(*at(e)) },
		Read:  func(r *Reader, e T) { *at(e) = r.ReadInt64() },
	}
}

func Float64[T Entity](name string, at func(T) *float64) Field[T] {
	return Field[T]{
		Name:  name,
		Write: func(w *Writer, e T) { w.WriteFloat64(*at(e)) },
		Read:  func(r *Reader, e T) { *at(e) = r.ReadFloat64() },
	}
}

func Bool[T Entity](name string, at func(T) *bool) Field[T] {
	return Field[T]{
		Name:  name,
		Write: func(w *Writer, e T) { w.WriteBool(*at(e)) },
		Read:  func(r *Reader, e T) { *at(e) = r.ReadBool() },
	}
}

func String[T Entity](name string, at func(T) *string) Field[T] {
	return Field[T]{
		Name:  name,
		Write: func(w *Writer, e T) { w.WriteString(*at(e)) },
		Read:  func(r *Reader, e T) { *at(e) = r.ReadString() },
	}
}

// Enum stores a small enumeration as one byte.
func Enum[T Entity, E ~uint8](name string, at func(T) *E) Field[T] {
	return Field[T]{
		Name:  name,
		Write: func(w *Writer, e T) { w.WriteUint8(uint8(*at(e))) },
		Read:  func(r *Reader, e T) { *at(e) = E(r.ReadUint8()) },
	}
}

// Time stores a timestamp on the simulation clock; restore shifts it by the
// clock delta.
func Time[T Entity](name string, at func(T) *time.Duration) Field[T] {
	return Field[T]{
		Name:  name,
		Write: func(w *Writer, e T) { w.WriteTime(*at(e)) },
		Read:  func(r *Reader, e T) { *at(e) = r.ReadTime() },
	}
}

// Reference stores a pointer to another entity.
func Reference[T Entity, R Ref](name string, at func(T) *R) Field[T] {
	return Field[T]{
		Name:  name,
		Write: func(w *Writer, e T) { WriteRef(w, *at(e)) },
		Read:  func(r *Reader, e T) { ReadRef(r, at(e)) },
	}
}

// References stores a list of pointers to other entities.
func References[T Entity, R Ref](name string, at func(T) *[]R) Field[T] {
	return Field[T]{
		Name:  name,
		Write: func(w *Writer, e T) { WriteRefs(w, *at(e)) },
		Read:  func(r *Reader, e T) { ReadRefs(r, at(e)) },
	}
}

// Custom wraps hand-written serializers, e.g. for owned sub-records.
func Custom[T Entity](name string, write func(*Writer, T), read func(*Reader, T)) Field[T] {
	return Field[T]{Name: name, Write: write, Read: read}
}
