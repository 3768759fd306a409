package nav

import "container/heap"

type pathNode struct {
	cell   Cell
	g      float64
	f      float64
	index  int
	parent *pathNode
}

type pathQueue []*pathNode

func (pq pathQueue) Len() int { return len(pq) }

func (pq pathQueue) Less(i, j int) bool { return pq[i].f < pq[j].f }

func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	n := len(*pq)
	item := x.(*pathNode)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// manhattan is the A* heuristic. It is admissible for 4-connected movement,
// so returned paths are optimal in cell count.
func manhattan(a, b Cell) float64 {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return float64(dx + dy)
}

// AStar runs 4-connected A* with unit edge cost over the grid. It returns the
// inclusive cell sequence from start to goal, or nil when either endpoint is
// out of bounds or blocked, or when no path exists.
func AStar(g *Grid, start, goal Cell) []Cell {
	if !g.InBounds(start) || !g.InBounds(goal) {
		return nil
	}
	if g.IsBlocked(start) || g.IsBlocked(goal) {
		return nil
	}

	open := &pathQueue{}
	heap.Init(open)
	heap.Push(open, &pathNode{cell: start, g: 0, f: manhattan(start, goal)})

	gScore := map[Cell]float64{start: 0}
	closed := make(map[Cell]struct{})

	for open.Len() > 0 {
		current := heap.Pop(open).(*pathNode)
		if _, seen := closed[current.cell]; seen {
			continue
		}
		closed[current.cell] = struct{}{}
		if current.cell == goal {
			return reconstructPath(current)
		}

		for _, nb := range g.Neighbors4(current.cell) {
			if _, seen := closed[nb]; seen {
				continue
			}
			tentative := current.g + 1
			if prev, ok := gScore[nb]; ok && tentative >= prev {
				continue
			}
			gScore[nb] = tentative
			heap.Push(open, &pathNode{
				cell:   nb,
				g:      tentative,
				f:      tentative + manhattan(nb, goal),
				parent: current,
			})
		}
	}
	return nil
}

func reconstructPath(end *pathNode) []Cell {
	if end == nil {
		return nil
	}
	path := make([]Cell, 0)
	for node := end; node != nil; node = node.parent {
		path = append(path, node.cell)
	}
	for i := 0; i < len(path)/2; i++ {
		j := len(path) - 1 - i
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// SimplifyPath drops interior cells whose incoming and outgoing step
// directions match, leaving only direction changes plus both endpoints. It
// never alters the traversed edges, so it cannot skip over a blocked cell.
// Paths of two cells or fewer are returned unchanged.
func SimplifyPath(path []Cell) []Cell {
	if len(path) <= 2 {
		return path
	}
	out := make([]Cell, 0, len(path))
	out = append(out, path[0])
	prevDir := Cell{X: path[1].X - path[0].X, Y: path[1].Y - path[0].Y}
	for i := 1; i < len(path)-1; i++ {
		dir := Cell{X: path[i+1].X - path[i].X, Y: path[i+1].Y - path[i].Y}
		if dir != prevDir {
			out = append(out, path[i])
		}
		prevDir = dir
	}
	out = append(out, path[len(path)-1])
	return out
}

// CellsToWaypoints maps each cell of a path to its world-space center, in order.
func CellsToWaypoints(g *Grid, path []Cell) []Vec2 {
	if len(path) == 0 {
		return nil
	}
	waypoints := make([]Vec2, len(path))
	for i, c := range path {
		waypoints[i] = g.CellCenter(c)
	}
	return waypoints
}
