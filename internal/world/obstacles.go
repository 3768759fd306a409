package world

import (
	"math"
	"math/rand"

	"kiln/server/internal/nav"
)

const (
	obstacleMinSize     = 0.6
	obstacleMaxSize     = 2.4
	obstacleSpawnMargin = 1.0
	spawnSafeRadius     = 2.0
)

// generateObstacles scatters non-overlapping rectangles inside the world
// bounds, keeping a safe disc around the origin clear for agent spawns.
func generateObstacles(rng *rand.Rand, count int, width, height float64) []nav.AABB {
	if count <= 0 {
		return nil
	}

	halfW := width / 2
	halfH := height / 2

	obstacles := make([]nav.AABB, 0, count)
	attempts := 0
	maxAttempts := count * 20

	for len(obstacles) < count && attempts < maxAttempts {
		attempts++

		w := RandomDistance(rng, obstacleMinSize, obstacleMaxSize)
		h := RandomDistance(rng, obstacleMinSize, obstacleMaxSize)

		maxX := halfW - obstacleSpawnMargin - w
		maxY := halfH - obstacleSpawnMargin - h
		if maxX <= -halfW+obstacleSpawnMargin || maxY <= -halfH+obstacleSpawnMargin {
			break
		}

		x := RandomDistance(rng, -halfW+obstacleSpawnMargin, maxX)
		y := RandomDistance(rng, -halfH+obstacleSpawnMargin, maxY)

		candidate := nav.AABB{MinX: x, MinY: y, MaxX: x + w, MaxY: y + h}

		if circleRectOverlap(0, 0, spawnSafeRadius, candidate) {
			continue
		}

		overlaps := false
		for _, obs := range obstacles {
			if candidate.Inflated(obstacleSpawnMargin / 2).Intersects(obs) {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}

		obstacles = append(obstacles, candidate)
	}

	return obstacles
}

// circleRectOverlap reports whether a disc intersects an obstacle rectangle.
func circleRectOverlap(cx, cy, radius float64, obs nav.AABB) bool {
	closestX := clamp(cx, obs.MinX, obs.MaxX)
	closestY := clamp(cy, obs.MinY, obs.MaxY)
	dx := cx - closestX
	dy := cy - closestY
	return dx*dx+dy*dy < radius*radius
}

func clamp(value, min, max float64) float64 {
	return math.Max(min, math.Min(max, value))
}
