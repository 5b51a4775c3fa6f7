package physics

// Vector2 represents a 2D vector.
type Vector2 interface {
	X() float64
	Y() float64
}

// Transform provides spatial information.
type Transform interface {
	Position2() (x, y float64)
}
