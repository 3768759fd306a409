package actor

import (
	"fmt"

	"kiln/server/internal/nav"
	"kiln/server/internal/phys"
)

// Config tunes one agent's rigid body and actuation.
type Config struct {
	Size Vec3Size
	Mass float64

	ControlMode ControlMode
	MaxSpeed    float64
	SpeedDelta  float64
	TurnRate    float64 // rad/s yaw-rate target

	// Force/torque mode magnitudes; unused in kinematic mode.
	Force  float64
	Torque float64

	InitialYaw float64
}

// Vec3Size is a box extent on each axis.
type Vec3Size struct {
	X float64
	Y float64
	Z float64
}

// DefaultConfig mirrors the stock car tuning.
func DefaultConfig() Config {
	return Config{
		Size:        Vec3Size{X: 1.0, Y: 0.5, Z: 0.3},
		Mass:        1.0,
		ControlMode: ModeKinematic,
		MaxSpeed:    5.0,
		SpeedDelta:  0.5,
		TurnRate:    1.5,
		Force:       30.0,
		Torque:      10.0,
	}
}

// Validate fails fast on configuration a constructor must not accept.
func (c Config) Validate() error {
	if _, err := ParseControlMode(string(c.ControlMode)); err != nil {
		return err
	}
	if c.Size.X <= 0 || c.Size.Y <= 0 || c.Size.Z <= 0 {
		return fmt.Errorf("agent size must be positive on all axes, got %+v", c.Size)
	}
	if c.MaxSpeed < 0 {
		return fmt.Errorf("max speed must be >= 0, got %v", c.MaxSpeed)
	}
	return nil
}

// NPCConfig extends Config with the roaming policy tuning.
type NPCConfig struct {
	Config

	RoamMin       nav.Vec2
	RoamMax       nav.Vec2
	GoalTolerance float64

	CruiseSpeed      float64
	HeadingThreshold float64 // rad

	// Ray-based avoidance.
	RaycastLength float64
	RaycastAngle  float64 // half-angle of the side rays, rad
	AvoidDistance float64
	BrakeDistance float64

	// Proximity-based avoidance.
	AvoidRadius          float64
	EmergencyBrakeRadius float64

	// Stuck detection.
	StuckSteps  int
	ProgressEps float64

	// Bounded retries for grid goal sampling.
	GoalSampleRetries int
}

// DefaultNPCConfig mirrors the stock NPC tuning.
func DefaultNPCConfig() NPCConfig {
	return NPCConfig{
		Config:               DefaultConfig(),
		RoamMin:              nav.Vec2{X: -5, Y: -5},
		RoamMax:              nav.Vec2{X: 5, Y: 5},
		GoalTolerance:        0.5,
		CruiseSpeed:          2.0,
		HeadingThreshold:     0.35,
		RaycastLength:        2.0,
		RaycastAngle:         0.45,
		AvoidDistance:        1.25,
		BrakeDistance:        0.5,
		AvoidRadius:          1.0,
		EmergencyBrakeRadius: 0.6,
		StuckSteps:           30,
		ProgressEps:          1e-3,
		GoalSampleRetries:    10,
	}
}

// Validate extends Config validation with policy constraints.
func (c NPCConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.RoamMax.X <= c.RoamMin.X || c.RoamMax.Y <= c.RoamMin.Y {
		return fmt.Errorf("invalid roam bounds: %+v - %+v", c.RoamMin, c.RoamMax)
	}
	if c.GoalTolerance <= 0 {
		return fmt.Errorf("goal tolerance must be > 0, got %v", c.GoalTolerance)
	}
	if c.StuckSteps <= 0 {
		return fmt.Errorf("stuck steps must be > 0, got %v", c.StuckSteps)
	}
	return nil
}

// SizeVec converts the configured extent into a backend vector.
func (c Config) SizeVec() phys.Vec3 {
	return phys.Vec3{X: c.Size.X, Y: c.Size.Y, Z: c.Size.Z}
}
