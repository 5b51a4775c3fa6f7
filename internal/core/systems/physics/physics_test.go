package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec2_Ops(t *testing.T) {
	a := V(3, 4)
	assert.Equal(t, 5.0, a.Len())
	assert.Equal(t, V(4, 6), a.Add(V(1, 2)))
	assert.Equal(t, V(6, 8), a.Scale(2))
	assert.Equal(t, V(0.6, 0.8), a.Normalize())
	assert.True(t, Vec2{}.Normalize().IsZero())
	assert.Equal(t, 5.0, DistanceT(V(0, 0), a))
}

func TestSeek_DoesNotOvershoot(t *testing.T) {
	vel := Seek(V(0, 0), V(1, 0), 10, 1)
	assert.Equal(t, V(1, 0), vel)

	vel = Seek(V(0, 0), V(10, 0), 2, 1)
	assert.Equal(t, V(2, 0), vel)

	assert.True(t, Seek(V(1, 1), V(1, 1), 5, 1).IsZero())
}
