// Package phys defines the capability surface consumed from a physics backend
// and provides a deterministic planar reference backend for headless runs.
package phys

// Vec3 is a world-space vector. The ground plane is XY and +Z is up.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Entity is a stable integer handle owned by the backend.
type Entity int

// RaycastHit reports the outcome of a single ray query. Backends that can
// detect a hit but not measure it leave HasDistance false.
type RaycastHit struct {
	Hit         bool
	Distance    float64
	HasDistance bool
}

// Contact is one raw contact pair from the most recently completed step.
// Force is only meaningful when HasForce is set.
type Contact struct {
	GeomA    int
	GeomB    int
	Force    Vec3
	HasForce bool
}

// PositionSource reads entity positions.
type PositionSource interface {
	Position(e Entity) (Vec3, error)
}

// VelocityController drives an entity kinematically, bypassing mass and
// inertia.
type VelocityController interface {
	SetLinearAngularVelocity(e Entity, linear, angular Vec3)
}

// ForceApplier accumulates a force and torque on an entity for the next step.
type ForceApplier interface {
	ApplyForce(e Entity, force Vec3)
	ApplyTorque(e Entity, torque Vec3)
}

// Raycaster answers distance queries against the scene.
type Raycaster interface {
	Raycast(origin, direction Vec3, maxDistance float64) RaycastHit
}

// ContactSource exposes the raw contact pairs involving an entity from the
// most recently completed step.
type ContactSource interface {
	Contacts(e Entity) []Contact
}

// GeometrySource maps an entity to its contiguous geometry-index range
// [start, end).
type GeometrySource interface {
	GeomRange(e Entity) (start, end int, ok bool)
}

// Capabilities is the negotiation result for one backend, resolved exactly
// once at setup. A nil field means the backend lacks that capability and
// consumers degrade to "no information" instead of failing.
type Capabilities struct {
	Positions  PositionSource
	Velocities VelocityController
	Forces     ForceApplier
	Rays       Raycaster
	Contacts   ContactSource
	Geometry   GeometrySource
}

// GeomRangeFor resolves an entity's geometry range when the backend exposes
// geometry introspection.
func (c Capabilities) GeomRangeFor(e Entity) (start, end int, ok bool) {
	if c.Geometry == nil {
		return 0, 0, false
	}
	return c.Geometry.GeomRange(e)
}

// Negotiate probes the backend for each optional capability through a single
// round of interface assertions.
func Negotiate(backend any) Capabilities {
	caps := Capabilities{}
	if src, ok := backend.(PositionSource); ok {
		caps.Positions = src
	}
	if vel, ok := backend.(VelocityController); ok {
		caps.Velocities = vel
	}
	if fa, ok := backend.(ForceApplier); ok {
		caps.Forces = fa
	}
	if ray, ok := backend.(Raycaster); ok {
		caps.Rays = ray
	}
	if cs, ok := backend.(ContactSource); ok {
		caps.Contacts = cs
	}
	if gs, ok := backend.(GeometrySource); ok {
		caps.Geometry = gs
	}
	return caps
}
