// Package savestate captures the mutable state of a running simulation into a
// chunk and restores it later, even when the live entity population has
// changed shape in between.
//
// A snapshot is laid out as
//
//	[timestamp int64][include bits, one per registered type]
//	[type_id int32][entity_id int32][payload] ...
//	[type_id = -1]
//	[globals tail]
//
// There are no field tags, checksums or version markers inside a snapshot.
// Payload layouts are owned by the Write/Read pair registered for each type.
package savestate

import (
	"errors"
	"iter"
	"time"
)

// EntityID is the process-unique identity of a live entity.
type EntityID int32

// TypeID is the stable numeric id of a registered entity type. Ids follow
// registration order and are part of the snapshot format.
type TypeID int32

const (
	// NoRef encodes a reference to nothing.
	NoRef EntityID = -1
	// ExcludedRef encodes a reference whose target was deliberately left out
	// of the capture. It is never resolved; the live link is kept.
	ExcludedRef EntityID = -2

	// EndOfRecords terminates the entity record stream.
	EndOfRecords TypeID = -1
)

// Entity is a live simulation object the engine can serialize.
type Entity interface {
	EntityID() EntityID
	SetEntityID(EntityID)
	TypeID() TypeID
}

// Ref is satisfied by entity pointer types. Reference helpers are generic over
// it so typed nil pointers encode as NoRef.
type Ref interface {
	Entity
	comparable
}

// SecondaryOwned is implemented by entities that may belong to another
// participant of a shared session. Those entities are skipped by capture and
// reconciliation.
type SecondaryOwned interface {
	SecondaryOwned() bool
}

// World is the simulation side of the contract.
type World interface {
	// Entities yields every live entity in natural simulation order.
	Entities() iter.Seq[Entity]
	// Add appends an entity spawned by a type factory.
	Add(Entity)
	// Remove destroys a surplus entity.
	Remove(Entity)

	Now() time.Duration
	SetNow(time.Duration)
	// SetNextID tells the world the lowest id it may hand out to the next
	// spawn. It runs after ReadGlobals.
	SetNextID(EntityID)

	// WriteGlobals and ReadGlobals serialize process-wide state (camera, RNG,
	// global timers) into the fixed tail of a snapshot.
	WriteGlobals(w *Writer)
	ReadGlobals(r *Reader)
}

// Event types published on the bus.
const (
	EventCaptured = "savestate.captured"
	EventRestored = "savestate.restored"
)

var (
	// Registry errors

	ErrDuplicateType  = errors.New("savestate: duplicate entity type")
	ErrRegistrySealed = errors.New("savestate: registry is sealed")
	ErrInvalidType    = errors.New("savestate: invalid type descriptor")
	ErrUnknownType    = errors.New("savestate: unknown entity type")

	// Restore errors. Both are terminal for the restore call and leave the
	// world undefined.

	ErrMissingFactory  = errors.New("savestate: no spawn factory for required type")
	ErrCorruptSnapshot = errors.New("savestate: corrupt snapshot")
)

func isSecondary(e Entity) bool {
	so, ok := e.(SecondaryOwned)
	return ok && so.SecondaryOwned()
}
