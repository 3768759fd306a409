package actor

import (
	"fmt"
	"math"

	"kiln/server/internal/collision"
	"kiln/server/internal/phys"
)

// State is an agent's kinematic snapshot for observation and broadcast.
type State struct {
	Position    phys.Vec3 `json:"position"`
	Yaw         float64   `json:"yaw"`
	TargetSpeed float64   `json:"targetSpeed"`
	YawRate     float64   `json:"yawRate"`
}

// Agent binds one rigid body to the discrete control policy. The agent owns
// its yaw estimate; yaw is integrated internally each control tick and never
// read back from the physics backend in either mode.
type Agent struct {
	ID     string
	Entity phys.Entity

	cfg  Config
	caps phys.Capabilities

	yaw           float64
	targetSpeed   float64
	targetYawRate float64
	lastAction    Action
	hasAction     bool

	tracker *collision.Tracker
}

// NewAgent validates the configuration and binds the agent to an existing
// backend entity. An unknown control mode is a programmer error and surfaces
// here, not at runtime.
func NewAgent(id string, entity phys.Entity, cfg Config, caps phys.Capabilities) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("agent %s: %w", id, err)
	}
	agent := &Agent{
		ID:     id,
		Entity: entity,
		cfg:    cfg,
		caps:   caps,
		yaw:    cfg.InitialYaw,
	}
	if start, end, ok := caps.GeomRangeFor(entity); ok {
		agent.tracker = collision.NewTracker(collision.Range{Start: start, End: end})
	}
	return agent, nil
}

// Config returns the agent's immutable tuning.
func (a *Agent) Config() Config {
	return a.cfg
}

// Yaw reports the agent's internal yaw estimate.
func (a *Agent) Yaw() float64 {
	return a.yaw
}

// TargetSpeed reports the current speed target.
func (a *Agent) TargetSpeed() float64 {
	return a.targetSpeed
}

// LastAction reports the most recently applied action.
func (a *Agent) LastAction() (Action, bool) {
	return a.lastAction, a.hasAction
}

// Position reads the agent's position from the backend.
func (a *Agent) Position() (phys.Vec3, error) {
	if a.caps.Positions == nil {
		return phys.Vec3{}, fmt.Errorf("agent %s: backend has no position source", a.ID)
	}
	return a.caps.Positions.Position(a.Entity)
}

// State assembles the observation snapshot. Position read failures leave the
// position zeroed rather than failing the snapshot.
func (a *Agent) State() State {
	pos, err := a.Position()
	if err != nil {
		pos = phys.Vec3{}
	}
	return State{
		Position:    pos,
		Yaw:         a.yaw,
		TargetSpeed: a.targetSpeed,
		YawRate:     a.targetYawRate,
	}
}

// ApplyAction updates the control targets for one action. Accelerate and
// decelerate adjust target speed by the configured delta, clamped to
// [0, MaxSpeed], and zero the yaw-rate target; turns set the yaw-rate target
// and leave speed untouched.
func (a *Agent) ApplyAction(action Action) {
	a.lastAction = action
	a.hasAction = true

	switch action {
	case Accelerate:
		a.targetSpeed = math.Min(a.cfg.MaxSpeed, a.targetSpeed+a.cfg.SpeedDelta)
		a.targetYawRate = 0
	case Decelerate:
		a.targetSpeed = math.Max(0, a.targetSpeed-a.cfg.SpeedDelta)
		a.targetYawRate = 0
	case TurnLeft:
		a.targetYawRate = +a.cfg.TurnRate
	case TurnRight:
		a.targetYawRate = -a.cfg.TurnRate
	}
}

// StepControl advances the actuator by one tick. Call once per agent per
// tick, after the policy decision and before the shared physics step.
func (a *Agent) StepControl(dt float64) {
	switch a.cfg.ControlMode {
	case ModeKinematic:
		a.stepKinematic(dt)
	case ModeForceTorque:
		a.stepForceTorque(dt)
	}
}

func (a *Agent) forward() (float64, float64) {
	return math.Cos(a.yaw), math.Sin(a.yaw)
}

func (a *Agent) stepKinematic(dt float64) {
	a.yaw += a.targetYawRate * dt

	if a.caps.Velocities == nil {
		return
	}
	fx, fy := a.forward()
	a.caps.Velocities.SetLinearAngularVelocity(
		a.Entity,
		phys.Vec3{X: a.targetSpeed * fx, Y: a.targetSpeed * fy},
		phys.Vec3{Z: a.targetYawRate},
	)
}

func (a *Agent) stepForceTorque(dt float64) {
	a.yaw += a.targetYawRate * dt

	if a.caps.Forces == nil {
		return
	}

	var forceMag float64
	if a.hasAction {
		switch a.lastAction {
		case Accelerate:
			forceMag = +a.cfg.Force
		case Decelerate:
			forceMag = -a.cfg.Force
		}
	}
	fx, fy := a.forward()
	a.caps.Forces.ApplyForce(a.Entity, phys.Vec3{X: forceMag * fx, Y: forceMag * fy})

	var torque float64
	if a.hasAction {
		switch a.lastAction {
		case TurnLeft:
			torque = +a.cfg.Torque
		case TurnRight:
			torque = -a.cfg.Torque
		}
	}
	a.caps.Forces.ApplyTorque(a.Entity, phys.Vec3{Z: torque})
}

// SetCollisionTargets configures which entities produce BEGIN/END events and
// which geometry ranges are ignored outright (typically the ground plane).
// Reconfiguring clears any active collision state.
func (a *Agent) SetCollisionTargets(tracked []phys.Entity, ignored []phys.Entity) {
	if a.tracker == nil {
		return
	}
	targets := make([]collision.Target, 0, len(tracked))
	for _, e := range tracked {
		if start, end, ok := a.caps.GeomRangeFor(e); ok {
			targets = append(targets, collision.Target{
				Entity: e,
				Geoms:  collision.Range{Start: start, End: end},
			})
		}
	}
	ranges := make([]collision.Range, 0, len(ignored))
	for _, e := range ignored {
		if start, end, ok := a.caps.GeomRangeFor(e); ok {
			ranges = append(ranges, collision.Range{Start: start, End: end})
		}
	}
	a.tracker.Configure(targets, ranges)
}

// RegisterCollisionHandler adds a callback invoked for each event emitted by
// PollCollisionEvents.
func (a *Agent) RegisterCollisionHandler(h collision.Handler) {
	if a.tracker == nil {
		return
	}
	a.tracker.RegisterHandler(h)
}

// PollCollisionEvents diffs the tick's contacts into BEGIN/END events. Call
// strictly after the physics step it reports on. Backends without contact
// introspection yield an empty list rather than an error.
func (a *Agent) PollCollisionEvents(tick uint64, minForce float64) []collision.Event {
	if a.tracker == nil || a.caps.Contacts == nil {
		return nil
	}
	return a.tracker.Poll(tick, a.caps.Contacts.Contacts(a.Entity), minForce)
}
