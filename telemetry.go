package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

type telemetryCounters struct {
	ticks                 atomic.Uint64
	bytesSent             atomic.Uint64
	entitiesSent          atomic.Uint64
	collisionEvents       atomic.Uint64
	tickDurationMillis    atomic.Int64
	lastBroadcastBytes    atomic.Uint64
	lastBroadcastEntities atomic.Uint64
	debug                 bool
}

type telemetrySnapshot struct {
	Ticks           uint64 `json:"ticks"`
	BytesSent       uint64 `json:"bytesSent"`
	EntitiesSent    uint64 `json:"entitiesSent"`
	CollisionEvents uint64 `json:"collisionEvents"`
	TickDuration    int64  `json:"tickDurationMillis"`
}

func newTelemetryCounters() *telemetryCounters {
	t := &telemetryCounters{}
	if os.Getenv("DEBUG_TELEMETRY") == "1" {
		t.debug = true
	}
	return t
}

func (t *telemetryCounters) RecordBroadcast(bytes, entities int) {
	if bytes < 0 {
		bytes = 0
	}
	if entities < 0 {
		entities = 0
	}
	t.bytesSent.Add(uint64(bytes))
	t.entitiesSent.Add(uint64(entities))
	t.lastBroadcastBytes.Store(uint64(bytes))
	t.lastBroadcastEntities.Store(uint64(entities))
}

func (t *telemetryCounters) RecordTick(events int, duration time.Duration) {
	t.ticks.Add(1)
	if events > 0 {
		t.collisionEvents.Add(uint64(events))
	}
	millis := duration.Milliseconds()
	if millis < 0 {
		millis = 0
	}
	t.tickDurationMillis.Store(millis)
	if t.debug {
		fmt.Printf(
			"[telemetry] tick=%dms events=%d bytes=%d totalBytes=%d\n",
			millis,
			events,
			t.lastBroadcastBytes.Load(),
			t.bytesSent.Load(),
		)
	}
}

func (t *telemetryCounters) DebugEnabled() bool {
	return t.debug
}

func (t *telemetryCounters) Snapshot() telemetrySnapshot {
	return telemetrySnapshot{
		Ticks:           t.ticks.Load(),
		BytesSent:       t.bytesSent.Load(),
		EntitiesSent:    t.entitiesSent.Load(),
		CollisionEvents: t.collisionEvents.Load(),
		TickDuration:    t.tickDurationMillis.Load(),
	}
}
