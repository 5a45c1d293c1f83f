package world

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestParseGrid(t *testing.T) {
	g, err := ParseGrid([]string{
		"#####",
		"#.~.#",
		"#####",
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, g.Width)
	assert.Equal(t, 3, g.Height)
	assert.Equal(t, CellWall, g.At(0, 0))
	assert.Equal(t, CellShadow, g.At(2, 1))
	assert.Equal(t, CellWall, g.At(-1, 1), "outside is wall")
	assert.True(t, g.InShadow(r3.Vec{X: 5, Y: 3}))
	assert.True(t, g.Blocked(r3.Vec{X: 1, Y: 1}))

	_, err = ParseGrid([]string{"##", "#"}, 1)
	assert.ErrorIs(t, err, ErrBadGrid)
	_, err = ParseGrid(nil, 1)
	assert.ErrorIs(t, err, ErrBadGrid)
}

func TestGridRaycast(t *testing.T) {
	g := NewGrid(10, 10, 1)
	g.Set(5, 2, CellWall)

	hit, ok := g.Raycast(r3.Vec{X: 1.5, Y: 2.5}, r3.Vec{X: 8.5, Y: 2.5})
	require.True(t, ok)
	assert.InDelta(t, 5, hit.Point.X, 1e-9)
	assert.InDelta(t, 3.5, hit.Distance, 1e-9)
	assert.Zero(t, hit.Candidate)

	_, ok = g.Raycast(r3.Vec{X: 1.5, Y: 3.5}, r3.Vec{X: 8.5, Y: 3.5})
	assert.False(t, ok, "row above the wall is clear")

	_, ok = g.Raycast(r3.Vec{X: 1.5, Y: 2.5}, r3.Vec{X: 4.5, Y: 2.5})
	assert.False(t, ok, "target short of the wall")

	hit, ok = g.Raycast(r3.Vec{X: 5.5, Y: 0.5}, r3.Vec{X: 5.5, Y: 6.5})
	require.True(t, ok)
	assert.InDelta(t, 1.5, hit.Distance, 1e-9)

	_, ok = g.Raycast(r3.Vec{X: 5.5, Y: 2.5}, r3.Vec{X: 8.5, Y: 2.5})
	assert.False(t, ok, "the starting tile never blocks")

	_, ok = g.Raycast(r3.Vec{X: 1, Y: 1}, r3.Vec{X: 1, Y: 1, Z: 4})
	assert.False(t, ok)
}

func TestGridRaycast_Diagonal(t *testing.T) {
	g := NewGrid(10, 10, 1)
	g.Set(3, 3, CellWall)
	hit, ok := g.Raycast(r3.Vec{X: 0.5, Y: 0.5}, r3.Vec{X: 6.5, Y: 6.5})
	require.True(t, ok)
	assert.InDelta(t, 3, hit.Point.X, 1e-9)
	assert.InDelta(t, 3, hit.Point.Y, 1e-9)
}

func TestWalledRandomOpen(t *testing.T) {
	g := Walled(4, 4, 1)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		p, ok := g.RandomOpen(rng)
		require.True(t, ok)
		assert.False(t, g.Blocked(p))
	}
	_, ok := Walled(2, 2, 1).RandomOpen(rng)
	assert.False(t, ok)
}
