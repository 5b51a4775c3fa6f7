// Package sim is a small deterministic fixed-step world. It exists to give
// the savestate engine real entity types to capture: a player that always
// exists, enemies and projectiles that come and go, pickups that are owned by
// the player's inventory, and process-wide globals.
package sim

import (
	"time"

	"github.com/zeusync/savestate/internal/core/savestate"
	"github.com/zeusync/savestate/internal/core/systems/physics"
)

// Type ids follow registration order in Register.
const (
	TypePlayer savestate.TypeID = iota
	TypeEnemy
	TypeProjectile
	TypePickup
)

type Facing uint8

const (
	FacingRight Facing = iota
	FacingLeft
	FacingUp
	FacingDown
)

// Dir is the unit vector for a facing.
func (f Facing) Dir() physics.Vec2 {
	switch f {
	case FacingLeft:
		return physics.V(-1, 0)
	case FacingUp:
		return physics.V(0, -1)
	case FacingDown:
		return physics.V(0, 1)
	default:
		return physics.V(1, 0)
	}
}

type PickupKind uint8

const (
	PickupCoin PickupKind = iota
	PickupHeart
	PickupGem
)

type base struct {
	id savestate.EntityID
}

func (b *base) EntityID() savestate.EntityID      { return b.id }
func (b *base) SetEntityID(id savestate.EntityID) { b.id = id }

type Player struct {
	base
	Pos         physics.Vec2
	Vel         physics.Vec2
	HP          int32
	Facing      Facing
	FireReadyAt time.Duration
	Target      *Enemy
	Inventory   []*Pickup
}

func (*Player) TypeID() savestate.TypeID { return TypePlayer }

// Sprite is visual state owned by an enemy and serialized inline with it.
type Sprite struct {
	Frame   uint16
	Tint    uint32
	Visible bool
}

type Enemy struct {
	base
	Pos           physics.Vec2
	Vel           physics.Vec2
	HP            int32
	Sprite        Sprite
	Target        *Player
	AttackReadyAt time.Duration
}

func (*Enemy) TypeID() savestate.TypeID { return TypeEnemy }

type Projectile struct {
	base
	Pos       physics.Vec2
	Vel       physics.Vec2
	Damage    int32
	ExpiresAt time.Duration
	// Owner is whoever fired it.
	Owner savestate.Entity
	// Remote marks projectiles spawned by another participant; they are not
	// ours to capture.
	Remote bool
}

func (*Projectile) TypeID() savestate.TypeID { return TypeProjectile }

func (p *Projectile) SecondaryOwned() bool { return p.Remote }

type Pickup struct {
	base
	Pos    physics.Vec2
	Kind   PickupKind
	Holder *Player
}

func (*Pickup) TypeID() savestate.TypeID { return TypePickup }

// Camera is part of the global tail.
type Camera struct {
	Pos    physics.Vec2
	Zoom   float64
	Follow *Player
}
