package nav

import (
	"fmt"
	"math"
)

// Cell identifies a grid cell by integer column/row indices.
type Cell struct {
	X int
	Y int
}

// Vec2 is a world-space point on the ground plane.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AABB is an axis-aligned rectangle in world XY.
type AABB struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Inflated grows the rectangle by r on all four sides.
func (b AABB) Inflated(r float64) AABB {
	return AABB{MinX: b.MinX - r, MinY: b.MinY - r, MaxX: b.MaxX + r, MaxY: b.MaxY + r}
}

// Contains reports whether the point lies inside the rectangle (borders included).
func (b AABB) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Intersects reports whether the two rectangles overlap, using a separating
// axis test that counts shared edges as overlap.
func (b AABB) Intersects(o AABB) bool {
	if b.MaxX < o.MinX || b.MinX > o.MaxX {
		return false
	}
	if b.MaxY < o.MinY || b.MinY > o.MaxY {
		return false
	}
	return true
}

// Grid is an immutable occupancy grid over a world rectangle with fixed-size
// square cells. A cell is blocked when its world rectangle intersects any
// inflated obstacle rectangle.
type Grid struct {
	minX, minY float64
	maxX, maxY float64
	cellSize   float64
	width      int
	height     int
	blocked    []bool
}

// Build rasterizes the inflated obstacle set onto a fresh grid. Cells are
// marked blocked when the obstacle intersects the cell area, not merely when
// it covers the cell center, so planned routes cannot clip obstacle corners.
func Build(minX, minY, maxX, maxY, cellSize float64, obstacles []AABB, inflate float64) (*Grid, error) {
	if maxX <= minX || maxY <= minY {
		return nil, fmt.Errorf("invalid grid bounds: (%v,%v)-(%v,%v)", minX, minY, maxX, maxY)
	}
	if cellSize <= 0 {
		return nil, fmt.Errorf("cell size must be > 0, got %v", cellSize)
	}

	width := int(math.Ceil((maxX - minX) / cellSize))
	height := int(math.Ceil((maxY - minY) / cellSize))

	inflated := make([]AABB, len(obstacles))
	for i, obs := range obstacles {
		inflated[i] = obs.Inflated(inflate)
	}

	grid := &Grid{
		minX:     minX,
		minY:     minY,
		maxX:     maxX,
		maxY:     maxY,
		cellSize: cellSize,
		width:    width,
		height:   height,
		blocked:  make([]bool, width*height),
	}

	for iy := 0; iy < height; iy++ {
		for ix := 0; ix < width; ix++ {
			cellRect := AABB{
				MinX: minX + float64(ix)*cellSize,
				MinY: minY + float64(iy)*cellSize,
				MaxX: minX + float64(ix+1)*cellSize,
				MaxY: minY + float64(iy+1)*cellSize,
			}
			for _, obs := range inflated {
				if cellRect.Intersects(obs) {
					grid.blocked[iy*width+ix] = true
					break
				}
			}
		}
	}

	return grid, nil
}

// Width reports the number of columns.
func (g *Grid) Width() int {
	if g == nil {
		return 0
	}
	return g.width
}

// Height reports the number of rows.
func (g *Grid) Height() int {
	if g == nil {
		return 0
	}
	return g.height
}

// CellSize reports the size of one cell in world units.
func (g *Grid) CellSize() float64 {
	if g == nil {
		return 0
	}
	return g.cellSize
}

// InBounds reports whether the cell index lies inside the grid.
func (g *Grid) InBounds(c Cell) bool {
	return g != nil && c.X >= 0 && c.Y >= 0 && c.X < g.width && c.Y < g.height
}

// IsBlocked reports whether the cell is blocked. Out-of-bounds cells count as
// blocked so callers cannot route through them.
func (g *Grid) IsBlocked(c Cell) bool {
	if !g.InBounds(c) {
		return true
	}
	return g.blocked[c.Y*g.width+c.X]
}

// WorldToCell converts a world point to a cell index, clamped into the valid
// range. Out-of-range points silently map to a boundary cell; callers that
// need exactness must additionally check IsBlocked.
func (g *Grid) WorldToCell(x, y float64) Cell {
	ix := int(math.Floor((x - g.minX) / g.cellSize))
	iy := int(math.Floor((y - g.minY) / g.cellSize))
	if ix < 0 {
		ix = 0
	}
	if ix > g.width-1 {
		ix = g.width - 1
	}
	if iy < 0 {
		iy = 0
	}
	if iy > g.height-1 {
		iy = g.height - 1
	}
	return Cell{X: ix, Y: iy}
}

// CellCenter reports the world-space center of a cell.
func (g *Grid) CellCenter(c Cell) Vec2 {
	return Vec2{
		X: g.minX + (float64(c.X)+0.5)*g.cellSize,
		Y: g.minY + (float64(c.Y)+0.5)*g.cellSize,
	}
}

var neighborOffsets4 = [4]Cell{{X: 1, Y: 0}, {X: -1, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: -1}}

// Neighbors4 returns the in-bounds, unblocked 4-connected neighbors of a cell.
func (g *Grid) Neighbors4(c Cell) []Cell {
	neighbors := make([]Cell, 0, 4)
	for _, delta := range neighborOffsets4 {
		n := Cell{X: c.X + delta.X, Y: c.Y + delta.Y}
		if g.InBounds(n) && !g.IsBlocked(n) {
			neighbors = append(neighbors, n)
		}
	}
	return neighbors
}
