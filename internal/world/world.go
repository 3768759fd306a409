// Package world assembles the scenario: it owns the physics backend, the
// occupancy grid, the agents, and the per-tick pipeline that drives them.
package world

import (
	"fmt"
	"math/rand"

	"kiln/server/internal/actor"
	"kiln/server/internal/collision"
	"kiln/server/internal/nav"
	"kiln/server/internal/phys"
)

const (
	obstacleBoxHeight = 1.0
	npcSpawnAttempts  = 64
)

// AgentView is the broadcast-friendly projection of one agent.
type AgentView struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Yaw         float64 `json:"yaw"`
	TargetSpeed float64 `json:"targetSpeed"`
	LastAction  string  `json:"lastAction,omitempty"`
}

// Snapshot is the state copied out for broadcasting after a tick.
type Snapshot struct {
	Tick      uint64            `json:"tick"`
	Agents    []AgentView       `json:"agents"`
	Obstacles []nav.AABB        `json:"obstacles"`
	Events    []collision.Event `json:"events"`
}

// World owns the authoritative simulation state. All mutation happens on the
// tick pipeline; the hub serializes access.
type World struct {
	cfg       Config
	backend   *phys.Planar
	caps      phys.Capabilities
	grid      *nav.Grid
	obstacles []nav.AABB
	ground    phys.Entity

	car  *actor.Agent
	npcs []*actor.NPC

	tick             uint64
	lastEvents       []collision.Event
	pendingCarAction *actor.Action
}

// New builds the scenario: ground and obstacles in the backend, the occupancy
// grid over them, and the configured agents with collision tracking wired up.
// Configuration errors fail here, never later.
func New(cfg Config) (*World, error) {
	normalized := cfg.normalized()
	if err := normalized.Validate(); err != nil {
		return nil, err
	}

	backend := phys.NewPlanar()
	ground := backend.AddGroundPlane()

	obstacles := generateObstacles(
		NewDeterministicRNG(normalized.Seed, "obstacles"),
		obstacleCount(normalized),
		normalized.Width,
		normalized.Height,
	)
	for _, obs := range obstacles {
		size := phys.Vec3{X: obs.MaxX - obs.MinX, Y: obs.MaxY - obs.MinY, Z: obstacleBoxHeight}
		pos := phys.Vec3{
			X: (obs.MinX + obs.MaxX) / 2,
			Y: (obs.MinY + obs.MaxY) / 2,
			Z: obstacleBoxHeight / 2,
		}
		if _, err := backend.AddBox(size, pos, 0); err != nil {
			return nil, fmt.Errorf("spawn obstacle: %w", err)
		}
	}

	halfW := normalized.Width / 2
	halfH := normalized.Height / 2
	grid, err := nav.Build(-halfW, -halfH, halfW, halfH, normalized.CellSize, obstacles, normalized.Inflate)
	if err != nil {
		return nil, fmt.Errorf("build occupancy grid: %w", err)
	}

	w := &World{
		cfg:       normalized,
		backend:   backend,
		caps:      phys.Negotiate(backend),
		grid:      grid,
		obstacles: obstacles,
		ground:    ground,
	}

	if normalized.Car {
		if err := w.spawnCar(); err != nil {
			return nil, err
		}
	}
	if err := w.spawnNPCs(); err != nil {
		return nil, err
	}
	w.configureCollisionTracking()

	return w, nil
}

func obstacleCount(cfg Config) int {
	if !cfg.Obstacles {
		return 0
	}
	return cfg.ObstacleCount
}

func (w *World) spawnCar() error {
	cfg := actor.DefaultConfig()
	cfg.ControlMode = actor.ControlMode(w.cfg.ControlMode)

	entity, err := w.backend.AddBox(cfg.SizeVec(), phys.Vec3{Z: cfg.Size.Z / 2}, cfg.Mass)
	if err != nil {
		return fmt.Errorf("spawn car: %w", err)
	}
	car, err := actor.NewAgent("car", entity, cfg, w.caps)
	if err != nil {
		return err
	}
	w.car = car
	return nil
}

func (w *World) spawnNPCs() error {
	spawnRNG := NewDeterministicRNG(w.cfg.Seed, "npcs.spawn")
	halfW := w.cfg.Width / 2
	halfH := w.cfg.Height / 2
	inset := w.cfg.CellSize

	for i := 0; i < w.cfg.NPCCount; i++ {
		id := fmt.Sprintf("npc-%d", i+1)

		cfg := actor.DefaultNPCConfig()
		cfg.ControlMode = actor.ControlMode(w.cfg.ControlMode)
		cfg.RoamMin = nav.Vec2{X: -halfW + inset, Y: -halfH + inset}
		cfg.RoamMax = nav.Vec2{X: halfW - inset, Y: halfH - inset}
		cfg.InitialYaw = RandomAngle(spawnRNG)

		spawn := w.randomFreePoint(spawnRNG)
		entity, err := w.backend.AddBox(cfg.SizeVec(), phys.Vec3{X: spawn.X, Y: spawn.Y, Z: cfg.Size.Z / 2}, cfg.Mass)
		if err != nil {
			return fmt.Errorf("spawn %s: %w", id, err)
		}

		npc, err := actor.NewNPC(id, entity, cfg, w.caps, NewDeterministicRNG(w.cfg.Seed, id))
		if err != nil {
			return err
		}
		npc.BindGrid(w.grid)
		w.npcs = append(w.npcs, npc)
	}
	return nil
}

// randomFreePoint samples unblocked cell centers, falling back to the origin
// when every attempt lands on a blocked cell.
func (w *World) randomFreePoint(rng *rand.Rand) nav.Vec2 {
	halfW := w.cfg.Width / 2
	halfH := w.cfg.Height / 2
	for attempt := 0; attempt < npcSpawnAttempts; attempt++ {
		x := RandomDistance(rng, -halfW+w.cfg.CellSize, halfW-w.cfg.CellSize)
		y := RandomDistance(rng, -halfH+w.cfg.CellSize, halfH-w.cfg.CellSize)
		cell := w.grid.WorldToCell(x, y)
		if !w.grid.IsBlocked(cell) {
			return w.grid.CellCenter(cell)
		}
	}
	return nav.Vec2{}
}

// configureCollisionTracking makes every agent track every other agent and
// ignore the ground plane.
func (w *World) configureCollisionTracking() {
	entities := make([]phys.Entity, 0, len(w.npcs)+1)
	if w.car != nil {
		entities = append(entities, w.car.Entity)
	}
	for _, npc := range w.npcs {
		entities = append(entities, npc.Entity)
	}

	ignored := []phys.Entity{w.ground}
	configure := func(a *actor.Agent) {
		tracked := make([]phys.Entity, 0, len(entities)-1)
		for _, e := range entities {
			if e != a.Entity {
				tracked = append(tracked, e)
			}
		}
		a.SetCollisionTargets(tracked, ignored)
	}

	if w.car != nil {
		configure(w.car)
	}
	for _, npc := range w.npcs {
		configure(npc.Agent)
	}
}

// Car returns the controllable agent, if the scenario spawned one.
func (w *World) Car() *actor.Agent {
	return w.car
}

// NPCs returns the roaming agents.
func (w *World) NPCs() []*actor.NPC {
	return w.npcs
}

// Grid returns the occupancy grid.
func (w *World) Grid() *nav.Grid {
	return w.grid
}

// Tick reports the index of the most recently completed tick.
func (w *World) Tick() uint64 {
	return w.tick
}

// QueueCarAction stages one discrete action for the car, applied on the next
// tick. It reports whether a car exists to receive it.
func (w *World) QueueCarAction(a actor.Action) bool {
	if w.car == nil {
		return false
	}
	action := a
	w.pendingCarAction = &action
	return true
}

// snapshotObstaclePositions reads every agent position once, at the start of
// the tick, so all policy decisions within the tick share one consistent
// snapshot. An agent whose position cannot be read is treated as absent for
// the tick.
func (w *World) snapshotObstaclePositions() []actor.Obstacle {
	agents := make([]*actor.Agent, 0, len(w.npcs)+1)
	if w.car != nil {
		agents = append(agents, w.car)
	}
	for _, npc := range w.npcs {
		agents = append(agents, npc.Agent)
	}

	snapshot := make([]actor.Obstacle, 0, len(agents))
	for _, a := range agents {
		pos, err := a.Position()
		if err != nil {
			continue
		}
		snapshot = append(snapshot, actor.Obstacle{Entity: a.Entity, X: pos.X, Y: pos.Y})
	}
	return snapshot
}

// Step advances the world one tick: policy decisions against a shared
// snapshot, actuation, the physics step, then collision polling. It returns
// the collision events emitted for the completed tick.
func (w *World) Step(dt float64) []collision.Event {
	snapshot := w.snapshotObstaclePositions()

	for _, npc := range w.npcs {
		action := npc.PolicyStep(snapshot)
		npc.ApplyAction(action)
	}
	if w.car != nil && w.pendingCarAction != nil {
		w.car.ApplyAction(*w.pendingCarAction)
		w.pendingCarAction = nil
	}

	if w.car != nil {
		w.car.StepControl(dt)
	}
	for _, npc := range w.npcs {
		npc.StepControl(dt)
	}

	w.backend.Step(dt)
	w.tick++

	events := make([]collision.Event, 0)
	if w.car != nil {
		events = append(events, w.car.PollCollisionEvents(w.tick, w.cfg.MinForce)...)
	}
	for _, npc := range w.npcs {
		events = append(events, npc.PollCollisionEvents(w.tick, w.cfg.MinForce)...)
	}
	w.lastEvents = events
	return events
}

// Snapshot copies the current state into broadcast-friendly structs.
func (w *World) Snapshot() Snapshot {
	agents := make([]AgentView, 0, len(w.npcs)+1)
	if w.car != nil {
		agents = append(agents, agentView(w.car, "car"))
	}
	for _, npc := range w.npcs {
		agents = append(agents, agentView(npc.Agent, "npc"))
	}
	events := make([]collision.Event, len(w.lastEvents))
	copy(events, w.lastEvents)
	return Snapshot{
		Tick:      w.tick,
		Agents:    agents,
		Obstacles: append([]nav.AABB(nil), w.obstacles...),
		Events:    events,
	}
}

func agentView(a *actor.Agent, kind string) AgentView {
	state := a.State()
	view := AgentView{
		ID:          a.ID,
		Kind:        kind,
		X:           state.Position.X,
		Y:           state.Position.Y,
		Yaw:         state.Yaw,
		TargetSpeed: state.TargetSpeed,
	}
	if action, ok := a.LastAction(); ok {
		view.LastAction = action.String()
	}
	return view
}
