package main

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"kiln/server/internal/actor"
	"kiln/server/internal/world"
)

const (
	tickRate  = 30.0
	writeWait = 10 * time.Second
)

// subscriber is one websocket viewer. Writes are serialized per connection.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex

	lastHeartbeat atomic.Int64
	rttMillis     atomic.Int64
}

func (s *subscriber) send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub serializes access to the world and fans tick snapshots out to
// subscribers.
type Hub struct {
	mu          sync.Mutex
	world       *world.World
	subscribers map[string]*subscriber
	nextID      atomic.Uint64
	telemetry   *telemetryCounters
}

func newHub(w *world.World) *Hub {
	return &Hub{
		world:       w,
		subscribers: make(map[string]*subscriber),
		telemetry:   newTelemetryCounters(),
	}
}

// Join allocates a viewer id and returns the current state so the client can
// render before the first broadcast arrives.
func (h *Hub) Join() joinResponse {
	id := fmt.Sprintf("viewer-%d", h.nextID.Add(1))

	h.mu.Lock()
	defer h.mu.Unlock()

	resp := joinResponse{ID: id, State: h.world.Snapshot()}
	if car := h.world.Car(); car != nil {
		resp.CarID = car.ID
	}
	return resp
}

// Subscribe attaches a websocket connection to a viewer id, closing any
// previous connection held under the same id.
func (h *Hub) Subscribe(id string, conn *websocket.Conn) *subscriber {
	sub := &subscriber{conn: conn}
	sub.lastHeartbeat.Store(time.Now().UnixMilli())

	h.mu.Lock()
	prev, ok := h.subscribers[id]
	h.subscribers[id] = sub
	h.mu.Unlock()

	if ok && prev.conn != nil {
		prev.conn.Close()
	}
	return sub
}

// Disconnect drops a subscriber if the given connection is still the one
// registered under the id.
func (h *Hub) Disconnect(id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[id]; ok && sub.conn == conn {
		delete(h.subscribers, id)
	}
}

// DriveCar stages one discrete action for the controllable car. It reports
// whether the action name parsed and a car exists to receive it.
func (h *Hub) DriveCar(name string) bool {
	action, ok := actor.ParseAction(name)
	if !ok {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.QueueCarAction(action)
}

// RunSimulation owns the tick loop. Each pass advances the world with the
// wall-clock delta and broadcasts the resulting snapshot.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if dt <= 0 {
				dt = 1.0 / tickRate
			}

			start := time.Now()
			snapshot := h.advance(dt)
			h.broadcastState(snapshot)
			h.telemetry.RecordTick(len(snapshot.Events), time.Since(start))
		}
	}
}

func (h *Hub) advance(dt float64) world.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.world.Step(dt)
	return h.world.Snapshot()
}

func (h *Hub) broadcastState(snapshot world.Snapshot) {
	payload, err := json.Marshal(stateMessage{
		Type:       "state",
		ServerTime: time.Now().UnixMilli(),
		Snapshot:   snapshot,
	})
	if err != nil {
		log.Printf("failed to marshal state: %v", err)
		return
	}

	h.mu.Lock()
	subs := make(map[string]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs[id] = sub
	}
	h.mu.Unlock()

	h.telemetry.RecordBroadcast(len(payload)*len(subs), len(snapshot.Agents))

	for id, sub := range subs {
		if err := sub.send(payload); err != nil {
			log.Printf("dropping subscriber %s: %v", id, err)
			sub.conn.Close()
			h.Disconnect(id, sub.conn)
		}
	}
}

// RecordHeartbeat updates liveness bookkeeping for a subscriber and returns
// the ack payload.
func (h *Hub) RecordHeartbeat(sub *subscriber, clientTime int64) heartbeatMessage {
	now := time.Now().UnixMilli()
	sub.lastHeartbeat.Store(now)
	rtt := int64(0)
	if clientTime > 0 && now >= clientTime {
		rtt = now - clientTime
	}
	sub.rttMillis.Store(rtt)
	return heartbeatMessage{
		Type:       "heartbeat",
		ServerTime: now,
		ClientTime: clientTime,
		RTTMillis:  rtt,
	}
}

// Diagnostics reports tick progress, subscriber liveness, and telemetry
// counters for the ops endpoint.
func (h *Hub) Diagnostics() map[string]any {
	h.mu.Lock()
	tick := h.world.Tick()
	agents := len(h.world.NPCs())
	if h.world.Car() != nil {
		agents++
	}
	subs := make([]diagnosticsSubscriber, 0, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs = append(subs, diagnosticsSubscriber{
			ID:            id,
			LastHeartbeat: sub.lastHeartbeat.Load(),
			RTTMillis:     sub.rttMillis.Load(),
		})
	}
	h.mu.Unlock()

	return map[string]any{
		"tick":        tick,
		"agents":      agents,
		"subscribers": subs,
		"telemetry":   h.telemetry.Snapshot(),
	}
}
