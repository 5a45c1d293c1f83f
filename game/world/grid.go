package world

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/kasuganosora/npcsensor/game/sensor"
	"gonum.org/v1/gonum/spatial/r3"
)

// Cell is one tile of a Grid.
type Cell uint8

const (
	CellFloor  Cell = iota
	CellWall        // blocks movement and sight
	CellShadow      // walkable, candidates standing here are in shadow
)

var ErrBadGrid = errors.New("world: bad grid")

// Grid is a tile map in the XY plane. Tile (x, y) covers
// [x*CellSize, (x+1)*CellSize) x [y*CellSize, (y+1)*CellSize).
type Grid struct {
	Width    int
	Height   int
	CellSize float64
	cells    []Cell
}

// NewGrid returns an all-floor grid.
func NewGrid(width, height int, cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &Grid{
		Width:    width,
		Height:   height,
		CellSize: cellSize,
		cells:    make([]Cell, width*height),
	}
}

// ParseGrid reads rows top to bottom: '#' wall, '~' shadow, anything else floor.
// Row 0 is y = 0.
func ParseGrid(rows []string, cellSize float64) (*Grid, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrBadGrid)
	}
	w := len(rows[0])
	g := NewGrid(w, len(rows), cellSize)
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrBadGrid, y, len(row), w)
		}
		for x, ch := range row {
			switch ch {
			case '#':
				g.Set(x, y, CellWall)
			case '~':
				g.Set(x, y, CellShadow)
			}
		}
	}
	return g, nil
}

// Walled returns a width x height grid with a solid border.
func Walled(width, height int, cellSize float64) *Grid {
	g := NewGrid(width, height, cellSize)
	for x := 0; x < width; x++ {
		g.Set(x, 0, CellWall)
		g.Set(x, height-1, CellWall)
	}
	for y := 0; y < height; y++ {
		g.Set(0, y, CellWall)
		g.Set(width-1, y, CellWall)
	}
	return g
}

func (g *Grid) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Width && y < g.Height
}

func (g *Grid) Set(x, y int, c Cell) {
	if g.inBounds(x, y) {
		g.cells[y*g.Width+x] = c
	}
}

// At returns the tile at (x, y). Everything outside the grid is wall.
func (g *Grid) At(x, y int) Cell {
	if !g.inBounds(x, y) {
		return CellWall
	}
	return g.cells[y*g.Width+x]
}

// CellOf returns the tile coordinates containing p.
func (g *Grid) CellOf(p r3.Vec) (int, int) {
	return int(math.Floor(p.X / g.CellSize)), int(math.Floor(p.Y / g.CellSize))
}

func (g *Grid) Blocked(p r3.Vec) bool {
	x, y := g.CellOf(p)
	return g.At(x, y) == CellWall
}

func (g *Grid) InShadow(p r3.Vec) bool {
	x, y := g.CellOf(p)
	return g.At(x, y) == CellShadow
}

// Center returns the world position of the middle of tile (x, y).
func (g *Grid) Center(x, y int) r3.Vec {
	return r3.Vec{X: (float64(x) + 0.5) * g.CellSize, Y: (float64(y) + 0.5) * g.CellSize}
}

// RandomOpen returns the center of a random non-wall tile.
func (g *Grid) RandomOpen(rng *rand.Rand) (r3.Vec, bool) {
	var open []int
	for i, c := range g.cells {
		if c != CellWall {
			open = append(open, i)
		}
	}
	if len(open) == 0 {
		return r3.Vec{}, false
	}
	i := open[rng.Intn(len(open))]
	return g.Center(i%g.Width, i/g.Width), true
}

// Raycast walks the tiles between from and to with a DDA traversal and
// reports the first wall crossed. Heights are ignored for the walk but the
// hit distance is measured along the full 3D segment. The tile containing
// from never blocks.
func (g *Grid) Raycast(from, to r3.Vec) (sensor.Hit, bool) {
	d := r3.Sub(to, from)
	if math.Hypot(d.X, d.Y) < 1e-12 {
		return sensor.Hit{}, false
	}
	cx, cy := g.CellOf(from)
	stepX, tMaxX, tDeltaX := ddaAxis(from.X, d.X, cx, g.CellSize)
	stepY, tMaxY, tDeltaY := ddaAxis(from.Y, d.Y, cy, g.CellSize)

	length := r3.Norm(d)
	for {
		var t float64
		if tMaxX < tMaxY {
			cx += stepX
			t = tMaxX
			tMaxX += tDeltaX
		} else {
			cy += stepY
			t = tMaxY
			tMaxY += tDeltaY
		}
		if t >= 1 {
			return sensor.Hit{}, false
		}
		if g.At(cx, cy) == CellWall {
			return sensor.Hit{
				Point:    r3.Add(from, r3.Scale(t, d)),
				Distance: t * length,
			}, true
		}
	}
}

// ddaAxis returns the step direction, the ray parameter of the first tile
// boundary and the parameter spacing between boundaries along one axis.
func ddaAxis(origin, delta float64, cell int, size float64) (int, float64, float64) {
	switch {
	case delta > 0:
		return 1, (float64(cell+1)*size - origin) / delta, size / delta
	case delta < 0:
		return -1, (float64(cell)*size - origin) / delta, -size / delta
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
}
