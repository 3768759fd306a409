// Package actor implements the controllable car and autonomous NPC agents:
// the discrete action space, the actuation modes that turn actions into
// physics commands, and the per-tick steering policy.
package actor

import "fmt"

// Action is the four-way discrete control space shared by every agent. There
// is intentionally no no-op action.
type Action int

const (
	Accelerate Action = iota
	Decelerate
	TurnLeft
	TurnRight
)

func (a Action) String() string {
	switch a {
	case Accelerate:
		return "accelerate"
	case Decelerate:
		return "decelerate"
	case TurnLeft:
		return "turn-left"
	case TurnRight:
		return "turn-right"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction resolves the wire name of an action.
func ParseAction(name string) (Action, bool) {
	switch name {
	case "accelerate":
		return Accelerate, true
	case "decelerate":
		return Decelerate, true
	case "turn-left":
		return TurnLeft, true
	case "turn-right":
		return TurnRight, true
	}
	return 0, false
}

// ControlMode selects how actions reach the rigid body. The mode is fixed at
// agent construction.
type ControlMode string

const (
	// ModeKinematic commands linear and angular velocity directly, bypassing
	// mass and inertia for exact, drift-free control.
	ModeKinematic ControlMode = "kinematic"
	// ModeForceTorque applies constant-magnitude forces and torques keyed off
	// the last action, with no feedback control.
	ModeForceTorque ControlMode = "force_torque"
)

// ParseControlMode validates a configured control mode string.
func ParseControlMode(raw string) (ControlMode, error) {
	switch ControlMode(raw) {
	case ModeKinematic:
		return ModeKinematic, nil
	case ModeForceTorque:
		return ModeForceTorque, nil
	}
	return "", fmt.Errorf("unknown control mode %q", raw)
}
