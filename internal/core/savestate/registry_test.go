package savestate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AssignsIdsInOrder(t *testing.T) {
	reg := newTestRegistry()
	require.Equal(t, 3, reg.Len())

	for i, name := range []string{"hero", "mob", "bullet"} {
		d, ok := reg.ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, TypeID(i), d.ID)
		byID, ok := reg.Lookup(TypeID(i))
		require.True(t, ok)
		assert.Equal(t, name, byID.Name)
	}

	_, ok := reg.Lookup(EndOfRecords)
	assert.False(t, ok)
	_, ok = reg.Lookup(3)
	assert.False(t, ok)

	hero, _ := reg.ByName("hero")
	mob, _ := reg.ByName("mob")
	assert.Nil(t, hero.Spawn)
	assert.NotNil(t, mob.Spawn)
	assert.Equal(t, []string{"hp", "owner", "pack", "ready_at"}, mob.Fields)
}

func TestRegistry_Rejections(t *testing.T) {
	reg := newTestRegistry()

	_, err := Register(reg, "mob",
		func(*Writer, *testMob) {}, func(*Reader, *testMob) {}, nil)
	assert.ErrorIs(t, err, ErrDuplicateType)

	_, err = reg.Add(Descriptor{Name: "broken"})
	assert.ErrorIs(t, err, ErrInvalidType)

	reg.Seal()
	assert.True(t, reg.Sealed())
	_, err = Register(reg, "late",
		func(*Writer, *testBullet) {}, func(*Reader, *testBullet) {}, nil)
	assert.ErrorIs(t, err, ErrRegistrySealed)
	assert.Equal(t, 3, reg.Len())
}

func TestRegistry_EngineSealsRegistry(t *testing.T) {
	reg := newTestRegistry()
	NewEngine(reg, &testWorld{}, nil, nil)
	assert.True(t, reg.Sealed())
}

func TestRegistry_FingerprintTracksLayout(t *testing.T) {
	a := newTestRegistry()
	b := newTestRegistry()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	_, err := Register(b, "extra",
		func(*Writer, *testBullet) {}, func(*Reader, *testBullet) {}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	c := NewRegistry()
	_, err = Schema[*testMob]{
		Name:   "mob",
		Fields: []Field[*testMob]{Int32("hp", func(m *testMob) *int32 { return &m.HP })},
	}.Register(c)
	require.NoError(t, err)
	d := NewRegistry()
	_, err = Schema[*testMob]{
		Name:   "mob",
		Fields: []Field[*testMob]{Int32("health", func(m *testMob) *int32 { return &m.HP })},
	}.Register(d)
	require.NoError(t, err)
	assert.NotEqual(t, c.Fingerprint(), d.Fingerprint())
}

func TestFilter_Bits(t *testing.T) {
	assert.Equal(t, []bool{true, true, true}, All().Bits(3))
	assert.Equal(t, []bool{false, true, false}, Include(typeMob, 7).Bits(3))
	assert.Equal(t, []bool{true, true, false}, Exclude(typeBullet, -4).Bits(3))
	assert.Empty(t, Include().Bits(0))
}
