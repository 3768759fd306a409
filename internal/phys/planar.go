package phys

import (
	"fmt"
	"math"
)

const (
	groundHalfExtent = 1e6
	contactStiffness = 1000.0
	contactSlop      = 1e-9
)

type body struct {
	halfX, halfY, halfZ float64
	mass                float64
	static              bool
	pos                 Vec3
	vel                 Vec3
	angVel              Vec3
	force               Vec3
	torque              Vec3
	geomStart           int
	geomEnd             int
}

// Planar is the built-in reference backend: rigid boxes on the XY plane with
// explicit velocity or force control, AABB contact detection, and 2D slab
// raycasts. It is deliberately simple; it exists to close the loop for
// headless runs and tests, not to be a physics engine.
type Planar struct {
	bodies   []*body
	nextGeom int
	contacts []Contact
}

// NewPlanar returns an empty scene.
func NewPlanar() *Planar {
	return &Planar{}
}

// AddGroundPlane spawns the static ground at z=0 and returns its handle.
func (p *Planar) AddGroundPlane() Entity {
	return p.addBody(&body{
		halfX:  groundHalfExtent,
		halfY:  groundHalfExtent,
		halfZ:  0,
		static: true,
		pos:    Vec3{},
	})
}

// AddBox spawns a box entity. A non-positive mass makes the box static.
func (p *Planar) AddBox(size Vec3, pos Vec3, mass float64) (Entity, error) {
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return 0, fmt.Errorf("box size must be positive on all axes, got %+v", size)
	}
	return p.addBody(&body{
		halfX:  size.X / 2,
		halfY:  size.Y / 2,
		halfZ:  size.Z / 2,
		mass:   mass,
		static: mass <= 0,
		pos:    pos,
	}), nil
}

func (p *Planar) addBody(b *body) Entity {
	b.geomStart = p.nextGeom
	b.geomEnd = p.nextGeom + 1
	p.nextGeom++
	p.bodies = append(p.bodies, b)
	return Entity(len(p.bodies) - 1)
}

func (p *Planar) body(e Entity) *body {
	if int(e) < 0 || int(e) >= len(p.bodies) {
		return nil
	}
	return p.bodies[e]
}

// Position implements PositionSource.
func (p *Planar) Position(e Entity) (Vec3, error) {
	b := p.body(e)
	if b == nil {
		return Vec3{}, fmt.Errorf("unknown entity %d", e)
	}
	return b.pos, nil
}

// SetLinearAngularVelocity implements VelocityController.
func (p *Planar) SetLinearAngularVelocity(e Entity, linear, angular Vec3) {
	b := p.body(e)
	if b == nil || b.static {
		return
	}
	b.vel = linear
	b.angVel = angular
}

// ApplyForce implements ForceApplier. The force acts during the next step only.
func (p *Planar) ApplyForce(e Entity, force Vec3) {
	b := p.body(e)
	if b == nil || b.static {
		return
	}
	b.force = force
}

// ApplyTorque implements ForceApplier.
func (p *Planar) ApplyTorque(e Entity, torque Vec3) {
	b := p.body(e)
	if b == nil || b.static {
		return
	}
	b.torque = torque
}

// GeomRange implements GeometrySource.
func (p *Planar) GeomRange(e Entity) (int, int, bool) {
	b := p.body(e)
	if b == nil {
		return 0, 0, false
	}
	return b.geomStart, b.geomEnd, true
}

// Step integrates one tick and rebuilds the contact set.
func (p *Planar) Step(dt float64) {
	for _, b := range p.bodies {
		if b.static {
			continue
		}
		if b.mass > 0 {
			b.vel.X += b.force.X / b.mass * dt
			b.vel.Y += b.force.Y / b.mass * dt
			inertia := b.mass * (b.halfX*b.halfX + b.halfY*b.halfY) / 3
			if inertia > 0 {
				b.angVel.Z += b.torque.Z / inertia * dt
			}
		}
		b.force = Vec3{}
		b.torque = Vec3{}
		b.pos.X += b.vel.X * dt
		b.pos.Y += b.vel.Y * dt
	}
	p.rebuildContacts()
}

func (p *Planar) rebuildContacts() {
	p.contacts = p.contacts[:0]
	for i := 0; i < len(p.bodies); i++ {
		for j := i + 1; j < len(p.bodies); j++ {
			a, b := p.bodies[i], p.bodies[j]
			if a.static && b.static {
				continue
			}
			depth, ok := overlapDepth(a, b)
			if !ok {
				continue
			}
			magnitude := depth * contactStiffness
			p.contacts = append(p.contacts, Contact{
				GeomA:    a.geomStart,
				GeomB:    b.geomStart,
				Force:    Vec3{Z: magnitude},
				HasForce: true,
			})
		}
	}
}

// overlapDepth reports the smallest separation depth between two boxes, or
// false when they do not touch. The ground plane counts as touching any body
// resting at or below its own half-height.
func overlapDepth(a, b *body) (float64, bool) {
	dx := a.halfX + b.halfX - math.Abs(a.pos.X-b.pos.X)
	if dx < -contactSlop {
		return 0, false
	}
	dy := a.halfY + b.halfY - math.Abs(a.pos.Y-b.pos.Y)
	if dy < -contactSlop {
		return 0, false
	}
	dz := a.halfZ + b.halfZ - math.Abs(a.pos.Z-b.pos.Z)
	if dz < -contactSlop {
		return 0, false
	}
	depth := math.Min(dx, dy)
	if depth < 0 {
		depth = 0
	}
	return depth, true
}

// Contacts implements ContactSource. It returns the pairs from the most
// recently completed step that involve the entity's geometry range.
func (p *Planar) Contacts(e Entity) []Contact {
	b := p.body(e)
	if b == nil {
		return nil
	}
	out := make([]Contact, 0, len(p.contacts))
	for _, c := range p.contacts {
		if (c.GeomA >= b.geomStart && c.GeomA < b.geomEnd) ||
			(c.GeomB >= b.geomStart && c.GeomB < b.geomEnd) {
			out = append(out, c)
		}
	}
	return out
}

// Raycast implements Raycaster with a 2D slab test against every box whose
// footprint does not already contain the origin.
func (p *Planar) Raycast(origin, direction Vec3, maxDistance float64) RaycastHit {
	dirLen := math.Hypot(direction.X, direction.Y)
	if dirLen == 0 || maxDistance <= 0 {
		return RaycastHit{}
	}
	dx := direction.X / dirLen
	dy := direction.Y / dirLen

	best := math.Inf(1)
	for _, b := range p.bodies {
		if b.halfX >= groundHalfExtent {
			continue
		}
		minX, maxX := b.pos.X-b.halfX, b.pos.X+b.halfX
		minY, maxY := b.pos.Y-b.halfY, b.pos.Y+b.halfY
		if origin.X >= minX && origin.X <= maxX && origin.Y >= minY && origin.Y <= maxY {
			continue
		}
		t, ok := raySlab2D(origin.X, origin.Y, dx, dy, minX, minY, maxX, maxY)
		if ok && t <= maxDistance && t < best {
			best = t
		}
	}
	if math.IsInf(best, 1) {
		return RaycastHit{}
	}
	return RaycastHit{Hit: true, Distance: best, HasDistance: true}
}

func raySlab2D(ox, oy, dx, dy, minX, minY, maxX, maxY float64) (float64, bool) {
	tMin := math.Inf(-1)
	tMax := math.Inf(1)

	if dx == 0 {
		if ox < minX || ox > maxX {
			return 0, false
		}
	} else {
		t1 := (minX - ox) / dx
		t2 := (maxX - ox) / dx
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
	}

	if dy == 0 {
		if oy < minY || oy > maxY {
			return 0, false
		}
	} else {
		t1 := (minY - oy) / dy
		t2 := (maxY - oy) / dy
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
	}

	if tMax < tMin || tMax < 0 {
		return 0, false
	}
	if tMin < 0 {
		tMin = 0
	}
	return tMin, true
}
