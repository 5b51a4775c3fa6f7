package sim

import (
	"time"

	"github.com/zeusync/savestate/internal/core/savestate"
	"github.com/zeusync/savestate/internal/core/systems/physics"
)

const (
	playerSpeed      = 6.0
	enemySpeed       = 2.5
	projectileSpeed  = 14.0
	fireCooldown     = 250 * time.Millisecond
	attackCooldown   = 500 * time.Millisecond
	projectileLife   = 1500 * time.Millisecond
	projectileDamage = 25
	enemyHP          = 50
	hitRadius        = 0.75
	pickupRadius     = 1.5
	cameraLag        = 0.2
)

// Input is one tick of player intent.
type Input struct {
	Move   physics.Vec2
	Fire   bool
	Pickup bool
}

// Step advances the world by one fixed tick.
func (w *World) Step(in Input) {
	dt := w.step.Seconds()
	w.tick++
	w.now += w.step

	player := w.Player()
	if player != nil {
		w.stepPlayer(player, in, dt)
	}

	dead := make(map[savestate.Entity]struct{})
	for _, e := range OfType[*Enemy](w) {
		w.stepEnemy(e, dt)
	}
	for _, p := range OfType[*Projectile](w) {
		w.stepProjectile(p, dt, dead)
	}
	if player != nil && in.Pickup {
		w.collect(player)
	}
	w.reap(dead)

	if w.now >= w.WaveAt && player != nil {
		w.spawnEnemy(player)
		w.WaveAt = w.now + w.cfg.WaveInterval
	}
	if player != nil {
		player.Target = w.nearestEnemy(player.Pos)
	}
	if w.Camera.Follow != nil {
		w.Camera.Pos = w.Camera.Pos.Lerp(w.Camera.Follow.Pos, cameraLag)
	}
}

func (w *World) stepPlayer(p *Player, in Input, dt float64) {
	p.Vel = in.Move.Normalize().Scale(playerSpeed)
	p.Pos = w.clamp(physics.Integrate(p.Pos, p.Vel, dt))
	switch {
	case in.Move.Xv > 0:
		p.Facing = FacingRight
	case in.Move.Xv < 0:
		p.Facing = FacingLeft
	case in.Move.Yv < 0:
		p.Facing = FacingUp
	case in.Move.Yv > 0:
		p.Facing = FacingDown
	}
	if in.Fire && w.now >= p.FireReadyAt {
		w.Spawn(&Projectile{
			Pos:       p.Pos,
			Vel:       p.Facing.Dir().Scale(projectileSpeed),
			Damage:    projectileDamage,
			ExpiresAt: w.now + projectileLife,
			Owner:     p,
		})
		p.FireReadyAt = w.now + fireCooldown
	}
}

func (w *World) stepEnemy(e *Enemy, dt float64) {
	e.Sprite.Frame = (e.Sprite.Frame + 1) % 8
	if e.Target == nil {
		e.Vel = physics.Vec2{}
		return
	}
	e.Vel = physics.Seek(e.Pos, e.Target.Pos, enemySpeed, dt)
	e.Pos = physics.Integrate(e.Pos, e.Vel, dt)
	if physics.DistanceT(e.Pos, e.Target.Pos) <= hitRadius && w.now >= e.AttackReadyAt {
		e.Target.HP--
		e.AttackReadyAt = w.now + attackCooldown
	}
}

func (w *World) stepProjectile(p *Projectile, dt float64, dead map[savestate.Entity]struct{}) {
	if p.Remote {
		p.Pos = physics.Integrate(p.Pos, p.Vel, dt)
		return
	}
	if w.now >= p.ExpiresAt {
		dead[p] = struct{}{}
		return
	}
	p.Pos = physics.Integrate(p.Pos, p.Vel, dt)
	for _, e := range OfType[*Enemy](w) {
		if _, gone := dead[e]; gone {
			continue
		}
		if physics.DistanceT(p.Pos, e.Pos) > hitRadius {
			continue
		}
		e.HP -= p.Damage
		e.Sprite.Tint = 0xFF0000FF
		dead[p] = struct{}{}
		if e.HP <= 0 {
			dead[e] = struct{}{}
			w.Score++
			w.Spawn(&Pickup{Pos: e.Pos, Kind: PickupKind(w.rng.IntN(3))})
		}
		return
	}
}

func (w *World) collect(p *Player) {
	for _, item := range OfType[*Pickup](w) {
		if item.Holder != nil || physics.DistanceT(p.Pos, item.Pos) > pickupRadius {
			continue
		}
		item.Holder = p
		p.Inventory = append(p.Inventory, item)
		if item.Kind == PickupHeart {
			p.HP += 10
		}
	}
}

// reap removes dead entities and clears links that pointed at them.
func (w *World) reap(dead map[savestate.Entity]struct{}) {
	if len(dead) == 0 {
		return
	}
	kept := w.entities[:0]
	for _, e := range w.entities {
		if _, gone := dead[e]; !gone {
			kept = append(kept, e)
		}
	}
	clear(w.entities[len(kept):])
	w.entities = kept

	for _, e := range w.entities {
		switch v := e.(type) {
		case *Player:
			if _, gone := dead[v.Target]; v.Target != nil && gone {
				v.Target = nil
			}
		case *Projectile:
			if _, gone := dead[v.Owner]; v.Owner != nil && gone {
				v.Owner = nil
			}
		}
	}
}

func (w *World) spawnEnemy(target *Player) {
	half := w.cfg.ArenaSize / 2
	pos := physics.V(w.rng.Float64()*w.cfg.ArenaSize-half, w.rng.Float64()*w.cfg.ArenaSize-half)
	w.Spawn(&Enemy{
		Pos:    pos,
		HP:     enemyHP,
		Target: target,
		Sprite: Sprite{Tint: w.rng.Uint32(), Visible: true},
	})
}

func (w *World) nearestEnemy(from physics.Vec2) *Enemy {
	var best *Enemy
	bestDist := 0.0
	for _, e := range OfType[*Enemy](w) {
		d := physics.DistanceT(from, e.Pos)
		if best == nil || d < bestDist {
			best, bestDist = e, d
		}
	}
	return best
}

func (w *World) clamp(v physics.Vec2) physics.Vec2 {
	half := w.cfg.ArenaSize / 2
	return physics.V(min(max(v.Xv, -half), half), min(max(v.Yv, -half), half))
}
