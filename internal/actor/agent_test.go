package actor

import (
	"math"
	"testing"

	"kiln/server/internal/collision"
	"kiln/server/internal/phys"
)

type fakePositioner struct {
	pos phys.Vec3
}

func (f *fakePositioner) Position(phys.Entity) (phys.Vec3, error) {
	return f.pos, nil
}

type recordingMover struct {
	linear  phys.Vec3
	angular phys.Vec3
	called  bool
}

func (m *recordingMover) SetLinearAngularVelocity(_ phys.Entity, linear, angular phys.Vec3) {
	m.linear = linear
	m.angular = angular
	m.called = true
}

type recordingForcer struct {
	force  phys.Vec3
	torque phys.Vec3
}

func (f *recordingForcer) ApplyForce(_ phys.Entity, force phys.Vec3) { f.force = force }

func (f *recordingForcer) ApplyTorque(_ phys.Entity, torque phys.Vec3) { f.torque = torque }

// fakeGeometry maps entity n to the geometry range [n, n+1).
type fakeGeometry struct{}

func (fakeGeometry) GeomRange(e phys.Entity) (int, int, bool) {
	return int(e), int(e) + 1, true
}

type fakeContacts struct {
	contacts []phys.Contact
}

func (f *fakeContacts) Contacts(phys.Entity) []phys.Contact { return f.contacts }

func mustAgent(t *testing.T, cfg Config, caps phys.Capabilities) *Agent {
	t.Helper()
	a, err := NewAgent("test", 1, cfg, caps)
	if err != nil {
		t.Fatalf("NewAgent failed: %v", err)
	}
	return a
}

func TestNewAgentRejectsUnknownControlMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlMode = "teleport"
	if _, err := NewAgent("bad", 1, cfg, phys.Capabilities{}); err == nil {
		t.Fatal("expected error for unknown control mode")
	}
}

func TestApplyActionSpeedClamping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSpeed = 1.0
	cfg.SpeedDelta = 0.4
	a := mustAgent(t, cfg, phys.Capabilities{})

	for i := 0; i < 5; i++ {
		a.ApplyAction(Accelerate)
	}
	if a.TargetSpeed() != 1.0 {
		t.Fatalf("expected speed clamped to 1.0, got %v", a.TargetSpeed())
	}

	for i := 0; i < 5; i++ {
		a.ApplyAction(Decelerate)
	}
	if a.TargetSpeed() != 0 {
		t.Fatalf("expected speed floored at 0, got %v", a.TargetSpeed())
	}
}

func TestApplyActionTurnAndSpeedInteraction(t *testing.T) {
	cfg := DefaultConfig()
	a := mustAgent(t, cfg, phys.Capabilities{})

	a.ApplyAction(Accelerate)
	speed := a.TargetSpeed()

	a.ApplyAction(TurnLeft)
	if a.TargetSpeed() != speed {
		t.Fatalf("turn must not change target speed: %v != %v", a.TargetSpeed(), speed)
	}
	if a.State().YawRate != cfg.TurnRate {
		t.Fatalf("expected yaw rate %v, got %v", cfg.TurnRate, a.State().YawRate)
	}

	a.ApplyAction(TurnRight)
	if a.State().YawRate != -cfg.TurnRate {
		t.Fatalf("expected yaw rate %v, got %v", -cfg.TurnRate, a.State().YawRate)
	}

	// Speed actions cancel an ongoing turn.
	a.ApplyAction(Accelerate)
	if a.State().YawRate != 0 {
		t.Fatalf("accelerate must zero the yaw-rate target, got %v", a.State().YawRate)
	}

	if action, ok := a.LastAction(); !ok || action != Accelerate {
		t.Fatalf("expected last action accelerate, got %v ok=%v", action, ok)
	}
}

func TestStepKinematicCommandsVelocity(t *testing.T) {
	mover := &recordingMover{}
	cfg := DefaultConfig()
	cfg.InitialYaw = math.Pi / 2
	a := mustAgent(t, cfg, phys.Capabilities{Velocities: mover})

	a.ApplyAction(Accelerate)
	a.StepControl(1.0 / 30)

	if !mover.called {
		t.Fatal("expected a velocity command")
	}
	// Heading is +Y at yaw pi/2.
	if math.Abs(mover.linear.X) > 1e-9 || math.Abs(mover.linear.Y-cfg.SpeedDelta) > 1e-9 {
		t.Fatalf("unexpected linear velocity %+v", mover.linear)
	}
	if mover.angular.Z != 0 {
		t.Fatalf("expected zero angular velocity, got %v", mover.angular.Z)
	}
}

func TestStepKinematicIntegratesYaw(t *testing.T) {
	mover := &recordingMover{}
	a := mustAgent(t, DefaultConfig(), phys.Capabilities{Velocities: mover})

	a.ApplyAction(TurnLeft)
	dt := 0.1
	a.StepControl(dt)

	want := a.Config().TurnRate * dt
	if math.Abs(a.Yaw()-want) > 1e-9 {
		t.Fatalf("expected yaw %v, got %v", want, a.Yaw())
	}
	if mover.angular.Z != a.Config().TurnRate {
		t.Fatalf("expected angular velocity %v, got %v", a.Config().TurnRate, mover.angular.Z)
	}
}

func TestStepForceTorque(t *testing.T) {
	cases := []struct {
		name       string
		action     Action
		wantForceX float64
		wantTorque float64
	}{
		{name: "accelerate pushes forward", action: Accelerate, wantForceX: +30},
		{name: "decelerate pushes backward", action: Decelerate, wantForceX: -30},
		{name: "turn left applies torque only", action: TurnLeft, wantTorque: +10},
		{name: "turn right applies torque only", action: TurnRight, wantTorque: -10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			forcer := &recordingForcer{}
			cfg := DefaultConfig()
			cfg.ControlMode = ModeForceTorque
			a := mustAgent(t, cfg, phys.Capabilities{Forces: forcer})

			a.ApplyAction(tc.action)
			a.StepControl(1.0 / 30)

			// Yaw starts at zero, so the heading is +X.
			if math.Abs(forcer.force.X-tc.wantForceX) > 1e-6 {
				t.Fatalf("force.X = %v, want %v", forcer.force.X, tc.wantForceX)
			}
			if math.Abs(forcer.torque.Z-tc.wantTorque) > 1e-9 {
				t.Fatalf("torque.Z = %v, want %v", forcer.torque.Z, tc.wantTorque)
			}
		})
	}
}

func TestStepForceTorqueBeforeAnyAction(t *testing.T) {
	forcer := &recordingForcer{force: phys.Vec3{X: 99}, torque: phys.Vec3{Z: 99}}
	cfg := DefaultConfig()
	cfg.ControlMode = ModeForceTorque
	a := mustAgent(t, cfg, phys.Capabilities{Forces: forcer})

	a.StepControl(1.0 / 30)
	if forcer.force != (phys.Vec3{}) || forcer.torque != (phys.Vec3{}) {
		t.Fatalf("expected zero actuation before any action: force=%+v torque=%+v", forcer.force, forcer.torque)
	}
}

func TestStateToleratesMissingPositionSource(t *testing.T) {
	a := mustAgent(t, DefaultConfig(), phys.Capabilities{})
	if _, err := a.Position(); err == nil {
		t.Fatal("expected error without a position source")
	}
	state := a.State()
	if state.Position != (phys.Vec3{}) {
		t.Fatalf("expected zero position, got %+v", state.Position)
	}
}

func TestCollisionEventWiring(t *testing.T) {
	contacts := &fakeContacts{}
	caps := phys.Capabilities{Geometry: fakeGeometry{}, Contacts: contacts}
	a := mustAgent(t, DefaultConfig(), caps)

	a.SetCollisionTargets([]phys.Entity{2, 3}, []phys.Entity{9})

	var handled []collision.Event
	a.RegisterCollisionHandler(func(ev collision.Event) { handled = append(handled, ev) })

	contacts.contacts = []phys.Contact{
		{GeomA: 1, GeomB: 2},
		{GeomA: 1, GeomB: 9}, // ignored range
	}
	events := a.PollCollisionEvents(1, 0)
	if len(events) != 1 || events[0].Phase != collision.PhaseBegin || events[0].Entity != 2 {
		t.Fatalf("expected BEGIN(2), got %v", events)
	}

	contacts.contacts = nil
	events = a.PollCollisionEvents(2, 0)
	if len(events) != 1 || events[0].Phase != collision.PhaseEnd || events[0].Entity != 2 {
		t.Fatalf("expected END(2), got %v", events)
	}

	if len(handled) != 2 {
		t.Fatalf("handler should have seen both events, got %d", len(handled))
	}
}

func TestPollCollisionEventsWithoutIntrospection(t *testing.T) {
	a := mustAgent(t, DefaultConfig(), phys.Capabilities{})
	if events := a.PollCollisionEvents(1, 0); events != nil {
		t.Fatalf("expected nil without contact introspection, got %v", events)
	}
}
