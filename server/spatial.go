package main

import "math"

// EntityRef identifies an entity in the grid
type EntityRef struct {
	Kind byte // 'b'=blob, 'p'=pellet
	Idx  int  // index into the corresponding flat list
}

const (
	KindBlob   = 'b'
	KindPellet = 'p'
)

// SpatialGrid is a uniform grid for broad-phase collision queries. Callers
// rebuild it every tick (Clear + Insert) because entities move every tick;
// there are no incremental updates.
type SpatialGrid struct {
	cellSize float64
	cols     int
	rows     int
	cells    [][]EntityRef
}

// NewSpatialGrid sizes a grid to cover a world of the given dimensions.
func NewSpatialGrid(worldW, worldH, cellSize float64) *SpatialGrid {
	cols := int(math.Ceil(worldW/cellSize)) + 1
	rows := int(math.Ceil(worldH/cellSize)) + 1
	return &SpatialGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		cells:    make([][]EntityRef, cols*rows),
	}
}

// Clear resets all cells (keeps allocated capacity)
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

func (g *SpatialGrid) cellCoords(x, y float64) (int, int) {
	cx := int(x / g.cellSize)
	cy := int(y / g.cellSize)
	if cx < 0 {
		cx = 0
	} else if cx >= g.cols {
		cx = g.cols - 1
	}
	if cy < 0 {
		cy = 0
	} else if cy >= g.rows {
		cy = g.rows - 1
	}
	return cx, cy
}

// Insert adds an entity reference at the given position
func (g *SpatialGrid) Insert(x, y float64, ref EntityRef) {
	cx, cy := g.cellCoords(x, y)
	idx := cy*g.cols + cx
	g.cells[idx] = append(g.cells[idx], ref)
}

// QueryNear returns every entity in the 3x3 block of cells around the
// position. Entities near a cell boundary are still found without
// radius-aware bucketing; entities whose radius spans more than one cell
// beyond their own can be missed, which is acceptable because the maximum
// entity radius is bounded relative to the cell size.
func (g *SpatialGrid) QueryNear(x, y float64) []EntityRef {
	return g.QueryNearBuf(x, y, nil)
}

// QueryNearBuf appends results to buf and returns the extended slice,
// avoiding per-call allocation in the tick loop.
func (g *SpatialGrid) QueryNearBuf(x, y float64, buf []EntityRef) []EntityRef {
	cx, cy := g.cellCoords(x, y)
	minCX, maxCX := cx-1, cx+1
	minCY, maxCY := cy-1, cy+1
	if minCX < 0 {
		minCX = 0
	}
	if maxCX >= g.cols {
		maxCX = g.cols - 1
	}
	if minCY < 0 {
		minCY = 0
	}
	if maxCY >= g.rows {
		maxCY = g.rows - 1
	}
	for y := minCY; y <= maxCY; y++ {
		for x := minCX; x <= maxCX; x++ {
			buf = append(buf, g.cells[y*g.cols+x]...)
		}
	}
	return buf
}
