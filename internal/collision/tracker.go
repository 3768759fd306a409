// Package collision turns raw per-tick contact pairs into edge-triggered
// BEGIN/END events against a configured set of tracked entities.
package collision

import (
	"math"
	"sort"

	"kiln/server/internal/phys"
)

// Phase marks a transition in contact membership between ticks.
type Phase string

const (
	PhaseBegin Phase = "begin"
	PhaseEnd   Phase = "end"
)

// Range is a contiguous geometry-index interval [Start, End).
type Range struct {
	Start int
	End   int
}

func (r Range) contains(geom int) bool {
	return geom >= r.Start && geom < r.End
}

// Target associates a tracked entity with the geometry range it owns.
type Target struct {
	Entity phys.Entity
	Geoms  Range
}

// Event is one BEGIN or END transition for a tracked entity. MaxForce carries
// the peak contact-force magnitude of the episode so far and is only
// meaningful when HasForce is set. END events always report a zero
// ContactCount.
type Event struct {
	Tick         uint64      `json:"tick"`
	Phase        Phase       `json:"phase"`
	Entity       phys.Entity `json:"entity"`
	MaxForce     float64     `json:"maxForce,omitempty"`
	HasForce     bool        `json:"-"`
	ContactCount int         `json:"contactCount"`
}

// Handler receives each emitted event in order.
type Handler func(Event)

// Tracker diffs the contact set of one owning agent tick over tick. It is
// mutated only by Poll, once per tick, strictly after the physics step being
// reported on.
type Tracker struct {
	own      Range
	tracked  []Target
	ignored  []Range
	handlers []Handler

	active    map[phys.Entity]struct{}
	lastForce map[phys.Entity]float64
	hasForce  map[phys.Entity]bool
}

// NewTracker creates a tracker for an agent owning the given geometry range.
func NewTracker(own Range) *Tracker {
	return &Tracker{
		own:       own,
		active:    make(map[phys.Entity]struct{}),
		lastForce: make(map[phys.Entity]float64),
		hasForce:  make(map[phys.Entity]bool),
	}
}

// Configure replaces the tracked-target and ignored-range sets. Any active
// collision state is discarded.
func (t *Tracker) Configure(tracked []Target, ignored []Range) {
	t.tracked = append([]Target(nil), tracked...)
	t.ignored = append([]Range(nil), ignored...)
	t.active = make(map[phys.Entity]struct{})
	t.lastForce = make(map[phys.Entity]float64)
	t.hasForce = make(map[phys.Entity]bool)
}

// RegisterHandler adds a callback invoked for every event Poll emits.
func (t *Tracker) RegisterHandler(h Handler) {
	if h == nil {
		return
	}
	t.handlers = append(t.handlers, h)
}

func (t *Tracker) resolveTarget(geom int) (phys.Entity, bool) {
	for _, ig := range t.ignored {
		if ig.contains(geom) {
			return 0, false
		}
	}
	for _, target := range t.tracked {
		if target.Geoms.contains(geom) {
			return target.Entity, true
		}
	}
	return 0, false
}

// Poll consumes the tick's raw contact pairs and emits edge-triggered events:
// ids gained since the previous tick produce BEGIN, ids lost produce END.
// BEGIN events precede END events and each group is sorted by entity id, so
// output is independent of contact iteration order. Contacts whose force falls
// below minForce are excluded from the active set when force filtering is
// requested (minForce > 0); a nil contact list yields only END transitions.
func (t *Tracker) Poll(tick uint64, contacts []phys.Contact, minForce float64) []Event {
	currentIDs := make(map[phys.Entity]struct{})
	currentForce := make(map[phys.Entity]float64)
	currentHasForce := make(map[phys.Entity]bool)
	currentCounts := make(map[phys.Entity]int)

	for _, c := range contacts {
		inA := t.own.contains(c.GeomA)
		inB := t.own.contains(c.GeomB)
		if !inA && !inB {
			continue
		}
		other := c.GeomA
		if inA {
			other = c.GeomB
		}
		if t.own.contains(other) {
			continue
		}
		entity, ok := t.resolveTarget(other)
		if !ok {
			continue
		}
		if minForce > 0 && c.HasForce {
			f := math.Sqrt(c.Force.X*c.Force.X + c.Force.Y*c.Force.Y + c.Force.Z*c.Force.Z)
			if f < minForce {
				continue
			}
			if !currentHasForce[entity] || f > currentForce[entity] {
				currentForce[entity] = f
				currentHasForce[entity] = true
			}
		}
		currentIDs[entity] = struct{}{}
		currentCounts[entity]++
	}

	begins := make([]phys.Entity, 0, len(currentIDs))
	for id := range currentIDs {
		if _, active := t.active[id]; !active {
			begins = append(begins, id)
		}
	}
	ends := make([]phys.Entity, 0, len(t.active))
	for id := range t.active {
		if _, still := currentIDs[id]; !still {
			ends = append(ends, id)
		}
	}
	sort.Slice(begins, func(i, j int) bool { return begins[i] < begins[j] })
	sort.Slice(ends, func(i, j int) bool { return ends[i] < ends[j] })

	events := make([]Event, 0, len(begins)+len(ends))
	for _, id := range begins {
		events = append(events, Event{
			Tick:         tick,
			Phase:        PhaseBegin,
			Entity:       id,
			MaxForce:     currentForce[id],
			HasForce:     currentHasForce[id],
			ContactCount: currentCounts[id],
		})
	}
	for _, id := range ends {
		// END carries the peak force of the whole contact episode.
		events = append(events, Event{
			Tick:         tick,
			Phase:        PhaseEnd,
			Entity:       id,
			MaxForce:     t.lastForce[id],
			HasForce:     t.hasForce[id],
			ContactCount: 0,
		})
		delete(t.lastForce, id)
		delete(t.hasForce, id)
	}

	t.active = currentIDs
	for id, f := range currentForce {
		if !t.hasForce[id] || f > t.lastForce[id] {
			t.lastForce[id] = f
			t.hasForce[id] = true
		}
	}

	for _, ev := range events {
		for _, h := range t.handlers {
			h(ev)
		}
	}
	return events
}
