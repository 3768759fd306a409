package actor

import (
	"math"
	"math/rand"

	"kiln/server/internal/nav"
	"kiln/server/internal/phys"
)

// Obstacle is one entry of the dynamic-obstacle snapshot taken at the start
// of a tick. All agents in the same tick decide against the same snapshot, so
// their decisions are order-independent.
type Obstacle struct {
	Entity phys.Entity
	X      float64
	Y      float64
}

// NPC is an autonomous agent: the shared actuator plus the roaming policy
// state (goal, waypoints, stuck detection, avoidance cascade).
type NPC struct {
	*Agent

	npcCfg NPCConfig
	rng    *rand.Rand
	grid   *nav.Grid

	goal      nav.Vec2
	hasGoal   bool
	planned   bool
	waypoints []nav.Vec2
	wpIndex   int

	prevGoalDist float64
	hasPrevDist  bool
	stuckCount   int

	avoidance []avoidanceStrategy
}

// NewNPC validates the configuration and wraps an existing backend entity in
// the roaming policy. The RNG is owned by the NPC; seeding it per agent keeps
// runs reproducible.
func NewNPC(id string, entity phys.Entity, cfg NPCConfig, caps phys.Capabilities, rng *rand.Rand) (*NPC, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	agent, err := NewAgent(id, entity, cfg.Config, caps)
	if err != nil {
		return nil, err
	}
	npc := &NPC{
		Agent:  agent,
		npcCfg: cfg,
		rng:    rng,
	}
	npc.avoidance = []avoidanceStrategy{avoidWithRays, avoidWithProximity}
	return npc, nil
}

// BindGrid attaches an occupancy grid. Goal sampling then plans waypoint
// routes through it instead of seeking goals directly.
func (n *NPC) BindGrid(g *nav.Grid) {
	n.grid = g
}

// SetRoamBounds replaces the goal sampling rectangle.
func (n *NPC) SetRoamBounds(min, max nav.Vec2) {
	n.npcCfg.RoamMin = min
	n.npcCfg.RoamMax = max
}

// Goal reports the current goal point, if one is set.
func (n *NPC) Goal() (nav.Vec2, bool) {
	return n.goal, n.hasGoal
}

// Waypoints returns the remaining planned waypoints.
func (n *NPC) Waypoints() []nav.Vec2 {
	if !n.planned || n.wpIndex >= len(n.waypoints) {
		return nil
	}
	return append([]nav.Vec2(nil), n.waypoints[n.wpIndex:]...)
}

func (n *NPC) randomTurn() Action {
	if n.rng.Float64() < 0.5 {
		return TurnLeft
	}
	return TurnRight
}

func (n *NPC) randomRoamPoint() nav.Vec2 {
	return nav.Vec2{
		X: n.npcCfg.RoamMin.X + n.rng.Float64()*(n.npcCfg.RoamMax.X-n.npcCfg.RoamMin.X),
		Y: n.npcCfg.RoamMin.Y + n.rng.Float64()*(n.npcCfg.RoamMax.Y-n.npcCfg.RoamMin.Y),
	}
}

// pickNewGoal samples a fresh roam goal. When a grid is bound it retries a
// bounded number of times to find a plannable goal cell; if every retry fails
// it falls back to an unplanned goal with no waypoints.
func (n *NPC) pickNewGoal(pos nav.Vec2) {
	n.stuckCount = 0
	n.hasPrevDist = false
	n.waypoints = nil
	n.wpIndex = 0
	n.planned = false

	if n.grid != nil {
		start := n.grid.WorldToCell(pos.X, pos.Y)
		for attempt := 0; attempt < n.npcCfg.GoalSampleRetries; attempt++ {
			candidate := n.randomRoamPoint()
			path := nav.AStar(n.grid, start, n.grid.WorldToCell(candidate.X, candidate.Y))
			if path == nil {
				continue
			}
			n.goal = candidate
			n.hasGoal = true
			n.waypoints = nav.CellsToWaypoints(n.grid, nav.SimplifyPath(path))
			n.planned = true
			return
		}
	}

	n.goal = n.randomRoamPoint()
	n.hasGoal = true
}

// replanToGoal re-runs A* from the current cell to the existing goal cell.
func (n *NPC) replanToGoal(pos nav.Vec2) bool {
	if n.grid == nil || !n.hasGoal {
		return false
	}
	start := n.grid.WorldToCell(pos.X, pos.Y)
	path := nav.AStar(n.grid, start, n.grid.WorldToCell(n.goal.X, n.goal.Y))
	if path == nil {
		return false
	}
	n.waypoints = nav.CellsToWaypoints(n.grid, nav.SimplifyPath(path))
	n.wpIndex = 0
	n.planned = true
	n.stuckCount = 0
	n.hasPrevDist = false
	return true
}

// PolicyStep runs the per-tick decision cascade and returns exactly one
// action. The first applicable rule wins: goal sampling, waypoint advance,
// stuck recovery, ray avoidance, proximity avoidance, then goal seeking.
func (n *NPC) PolicyStep(obstacles []Obstacle) Action {
	pos3, _ := n.Position()
	pos := nav.Vec2{X: pos3.X, Y: pos3.Y}

	if !n.hasGoal {
		n.pickNewGoal(pos)
	}

	var target nav.Vec2
	if n.planned {
		for n.wpIndex < len(n.waypoints) && planarDist(pos, n.waypoints[n.wpIndex]) <= n.npcCfg.GoalTolerance {
			n.wpIndex++
		}
		if n.wpIndex >= len(n.waypoints) {
			n.pickNewGoal(pos)
			return n.randomTurn()
		}
		target = n.waypoints[n.wpIndex]
	} else {
		if planarDist(pos, n.goal) <= n.npcCfg.GoalTolerance {
			n.pickNewGoal(pos)
			return n.randomTurn()
		}
		target = n.goal
	}

	// Stuck detection keys off goal-distance improvement only; a pure
	// rotation tick counts as no progress.
	goalDist := planarDist(pos, target)
	if n.hasPrevDist && goalDist >= n.prevGoalDist-n.npcCfg.ProgressEps {
		n.stuckCount++
	} else {
		n.stuckCount = 0
	}
	n.prevGoalDist = goalDist
	n.hasPrevDist = true

	if n.stuckCount >= n.npcCfg.StuckSteps {
		if !n.replanToGoal(pos) {
			n.pickNewGoal(pos)
		}
		return n.randomTurn()
	}

	for _, strategy := range n.avoidance {
		if action, ok := strategy(n, pos3, obstacles); ok {
			return action
		}
	}

	desiredYaw := math.Atan2(target.Y-pos.Y, target.X-pos.X)
	yawErr := wrapPi(desiredYaw - n.yaw)
	if math.Abs(yawErr) > n.npcCfg.HeadingThreshold {
		if yawErr > 0 {
			return TurnLeft
		}
		return TurnRight
	}

	if n.targetSpeed < n.npcCfg.CruiseSpeed {
		return Accelerate
	}
	return Decelerate
}

func planarDist(a, b nav.Vec2) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// wrapPi wraps an angle into [-pi, pi].
func wrapPi(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
