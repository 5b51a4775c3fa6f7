// Package physics holds the small amount of vector math the simulation needs.
// All operations are plain float64 arithmetic in a fixed order so that two
// runs over the same inputs produce identical bits.
package physics

import "math"

type Vec2 struct{ Xv, Yv float64 }

func V(x, y float64) Vec2 { return Vec2{Xv: x, Yv: y} }

func (v Vec2) X() float64 { return v.Xv }
func (v Vec2) Y() float64 { return v.Yv }

func (v Vec2) Position2() (x, y float64) { return v.Xv, v.Yv }

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{v.Xv + o.Xv, v.Yv + o.Yv} }
func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{v.Xv - o.Xv, v.Yv - o.Yv} }
func (v Vec2) Scale(f float64) Vec2 { return Vec2{v.Xv * f, v.Yv * f} }
func (v Vec2) Len() float64         { return math.Hypot(v.Xv, v.Yv) }
func (v Vec2) IsZero() bool         { return v.Xv == 0 && v.Yv == 0 }
func (v Vec2) Dot(o Vec2) float64   { return v.Xv*o.Xv + v.Yv*o.Yv }
func (v Vec2) Lerp(o Vec2, t float64) Vec2 {
	return Vec2{v.Xv + (o.Xv-v.Xv)*t, v.Yv + (o.Yv-v.Yv)*t}
}

// Normalize returns the unit vector in v's direction, or the zero vector.
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.Xv / l, v.Yv / l}
}

// Distance2 computes Euclidean distance between two 2D points.
func Distance2(x1, y1, x2, y2 float64) float64 { return math.Hypot(x2-x1, y2-y1) }

// Distance2V computes distance between two vectors.
func Distance2V(a, b Vector2) float64 { return math.Hypot(b.X()-a.X(), b.Y()-a.Y()) }

// DistanceT computes distance between two transforms.
func DistanceT(a, b Transform) float64 {
	x1, y1 := a.Position2()
	x2, y2 := b.Position2()
	return Distance2(x1, y1, x2, y2)
}

// Integrate advances a position by velocity over dt seconds.
func Integrate(pos, vel Vec2, dt float64) Vec2 {
	return pos.Add(vel.Scale(dt))
}

// Seek returns a velocity of the given speed pointing from pos to target,
// clamped so a single step of dt seconds does not overshoot.
func Seek(pos, target Vec2, speed, dt float64) Vec2 {
	delta := target.Sub(pos)
	dist := delta.Len()
	if dist == 0 || dt <= 0 {
		return Vec2{}
	}
	if speed*dt > dist {
		speed = dist / dt
	}
	return delta.Scale(speed / dist)
}
