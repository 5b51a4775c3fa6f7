package sim

import (
	"fmt"
	"time"

	"github.com/zeusync/savestate/internal/core/savestate"
	"github.com/zeusync/savestate/internal/core/systems/physics"
)

func vec[T savestate.Entity](name string, at func(T) *physics.Vec2) savestate.Field[T] {
	return savestate.Custom(name,
		func(w *savestate.Writer, e T) {
			v := at(e)
			w.WriteFloat64(v.Xv)
			w.WriteFloat64(v.Yv)
		},
		func(r *savestate.Reader, e T) {
			v := at(e)
			v.Xv = r.ReadFloat64()
			v.Yv = r.ReadFloat64()
		},
	)
}

var playerSchema = savestate.Schema[*Player]{
	Name: "player",
	Fields: []savestate.Field[*Player]{
		vec("pos", func(p *Player) *physics.Vec2 { return &p.Pos }),
		vec("vel", func(p *Player) *physics.Vec2 { return &p.Vel }),
		savestate.Int32("hp", func(p *Player) *int32 { return &p.HP }),
		savestate.Enum("facing", func(p *Player) *Facing { return &p.Facing }),
		savestate.Time("fire_ready_at", func(p *Player) *time.Duration { return &p.FireReadyAt }),
		savestate.Reference("target", func(p *Player) **Enemy { return &p.Target }),
		savestate.References("inventory", func(p *Player) *[]*Pickup { return &p.Inventory }),
	},
}

var enemySchema = savestate.Schema[*Enemy]{
	Name: "enemy",
	Fields: []savestate.Field[*Enemy]{
		vec("pos", func(e *Enemy) *physics.Vec2 { return &e.Pos }),
		vec("vel", func(e *Enemy) *physics.Vec2 { return &e.Vel }),
		savestate.Int32("hp", func(e *Enemy) *int32 { return &e.HP }),
		savestate.Custom("sprite",
			func(w *savestate.Writer, e *Enemy) {
				w.WriteUint16(e.Sprite.Frame)
				w.WriteUint32(e.Sprite.Tint)
				w.WriteBool(e.Sprite.Visible)
			},
			func(r *savestate.Reader, e *Enemy) {
				e.Sprite.Frame = r.ReadUint16()
				e.Sprite.Tint = r.ReadUint32()
				e.Sprite.Visible = r.ReadBool()
			},
		),
		savestate.Reference("target", func(e *Enemy) **Player { return &e.Target }),
		savestate.Time("attack_ready_at", func(e *Enemy) *time.Duration { return &e.AttackReadyAt }),
	},
	Spawn: func() *Enemy { return &Enemy{} },
}

var projectileSchema = savestate.Schema[*Projectile]{
	Name: "projectile",
	Fields: []savestate.Field[*Projectile]{
		vec("pos", func(p *Projectile) *physics.Vec2 { return &p.Pos }),
		vec("vel", func(p *Projectile) *physics.Vec2 { return &p.Vel }),
		savestate.Int32("damage", func(p *Projectile) *int32 { return &p.Damage }),
		savestate.Time("expires_at", func(p *Projectile) *time.Duration { return &p.ExpiresAt }),
		savestate.Reference("owner", func(p *Projectile) *savestate.Entity { return &p.Owner }),
	},
	Spawn: func() *Projectile { return &Projectile{} },
}

var pickupSchema = savestate.Schema[*Pickup]{
	Name: "pickup",
	Fields: []savestate.Field[*Pickup]{
		vec("pos", func(p *Pickup) *physics.Vec2 { return &p.Pos }),
		savestate.Enum("kind", func(p *Pickup) *PickupKind { return &p.Kind }),
		savestate.Reference("holder", func(p *Pickup) **Player { return &p.Holder }),
	},
	Spawn: func() *Pickup { return &Pickup{} },
}

// Register adds the simulation's entity types to reg in format order.
func Register(reg *savestate.Registry) error {
	steps := []struct {
		want savestate.TypeID
		add  func(*savestate.Registry) (savestate.TypeID, error)
	}{
		{TypePlayer, playerSchema.Register},
		{TypeEnemy, enemySchema.Register},
		{TypeProjectile, projectileSchema.Register},
		{TypePickup, pickupSchema.Register},
	}
	for _, s := range steps {
		got, err := s.add(reg)
		if err != nil {
			return err
		}
		if got != s.want {
			return fmt.Errorf("sim: type registered as %d, want %d", got, s.want)
		}
	}
	return nil
}

// NewRegistry returns a registry holding exactly the simulation's types.
func NewRegistry() (*savestate.Registry, error) {
	reg := savestate.NewRegistry()
	if err := Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}
