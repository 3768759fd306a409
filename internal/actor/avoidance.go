package actor

import (
	"math"

	"kiln/server/internal/phys"
)

// avoidanceStrategy is one local-avoidance rule. Strategies run in order and
// the first decisive result wins; a strategy with nothing to say returns
// ok=false so the next rule can decide.
type avoidanceStrategy func(n *NPC, pos phys.Vec3, obstacles []Obstacle) (Action, bool)

const rayOriginLift = 0.1

// avoidWithRays casts one forward ray and two side rays at a fixed half-angle.
// It contributes no decision when the backend cannot answer distance queries,
// when nothing is ahead, or when the forward hit is beyond the avoid distance.
func avoidWithRays(n *NPC, pos phys.Vec3, _ []Obstacle) (Action, bool) {
	if n.caps.Rays == nil {
		return 0, false
	}

	origin := phys.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z + rayOriginLift}
	fx := math.Cos(n.yaw)
	fy := math.Sin(n.yaw)

	rot := func(ang float64) phys.Vec3 {
		c, s := math.Cos(ang), math.Sin(ang)
		return phys.Vec3{X: c*fx - s*fy, Y: s*fx + c*fy}
	}

	forward := n.caps.Rays.Raycast(origin, phys.Vec3{X: fx, Y: fy}, n.npcCfg.RaycastLength)
	if !forward.Hit {
		return 0, false
	}
	// Without a measurable distance, let proximity/stuck logic take over
	// instead of turning forever.
	if !forward.HasDistance {
		return 0, false
	}
	if forward.Distance > n.npcCfg.AvoidDistance {
		return 0, false
	}
	if forward.Distance <= n.npcCfg.BrakeDistance {
		return Decelerate, true
	}

	left := n.caps.Rays.Raycast(origin, rot(+n.npcCfg.RaycastAngle), n.npcCfg.RaycastLength)
	right := n.caps.Rays.Raycast(origin, rot(-n.npcCfg.RaycastAngle), n.npcCfg.RaycastLength)

	leftBlocked := left.Hit && (!left.HasDistance || left.Distance <= n.npcCfg.AvoidDistance)
	rightBlocked := right.Hit && (!right.HasDistance || right.Distance <= n.npcCfg.AvoidDistance)

	if leftBlocked && !rightBlocked {
		return TurnRight, true
	}
	if rightBlocked && !leftBlocked {
		return TurnLeft, true
	}
	return n.randomTurn(), true
}

// avoidWithProximity scans the dynamic-obstacle snapshot for candidates ahead
// of the agent. Anything inside the emergency-brake radius forces an
// immediate brake; otherwise the single nearest candidate inside the avoid
// radius decides the turn by which side of the heading it sits on.
func avoidWithProximity(n *NPC, pos phys.Vec3, obstacles []Obstacle) (Action, bool) {
	if len(obstacles) == 0 {
		return 0, false
	}

	fx := math.Cos(n.yaw)
	fy := math.Sin(n.yaw)

	bestDist := -1.0
	bestCross := 0.0

	for _, obs := range obstacles {
		if obs.Entity == n.Entity {
			continue
		}
		dx := obs.X - pos.X
		dy := obs.Y - pos.Y
		dist := math.Hypot(dx, dy)
		if dist <= 1e-9 {
			continue
		}
		if dx*fx+dy*fy <= 0 {
			continue
		}
		if dist <= n.npcCfg.EmergencyBrakeRadius {
			return Decelerate, true
		}
		if dist <= n.npcCfg.AvoidRadius && (bestDist < 0 || dist < bestDist) {
			bestDist = dist
			bestCross = fx*dy - fy*dx
		}
	}

	if bestDist < 0 {
		return 0, false
	}
	// Obstacle to the left steers right, and vice versa.
	if bestCross > 0 {
		return TurnRight, true
	}
	return TurnLeft, true
}
