package main

import (
	"testing"

	"kiln/server/internal/world"
)

func testHub(t *testing.T, cfg world.Config) *Hub {
	t.Helper()
	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world.New failed: %v", err)
	}
	return newHub(w)
}

func hubConfig() world.Config {
	cfg := world.DefaultConfig()
	cfg.Seed = "hub-test"
	cfg.Width = 20
	cfg.Height = 20
	cfg.ObstacleCount = 4
	cfg.NPCCount = 1
	return cfg
}

func TestJoinAllocatesDistinctViewers(t *testing.T) {
	hub := testHub(t, hubConfig())

	first := hub.Join()
	second := hub.Join()

	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("expected distinct viewer ids, got %q and %q", first.ID, second.ID)
	}
	if first.CarID != "car" {
		t.Fatalf("expected car id in join response, got %q", first.CarID)
	}
	if len(first.State.Agents) != 2 {
		t.Fatalf("expected car plus one NPC in join state, got %d agents", len(first.State.Agents))
	}
}

func TestJoinWithoutCarOmitsCarID(t *testing.T) {
	cfg := hubConfig()
	cfg.Car = false
	hub := testHub(t, cfg)

	if resp := hub.Join(); resp.CarID != "" {
		t.Fatalf("expected empty car id, got %q", resp.CarID)
	}
}

func TestDriveCar(t *testing.T) {
	hub := testHub(t, hubConfig())

	if !hub.DriveCar("accelerate") {
		t.Fatal("expected a valid action to be accepted")
	}
	if hub.DriveCar("warp") {
		t.Fatal("expected an unknown action to be rejected")
	}

	cfg := hubConfig()
	cfg.Car = false
	carless := testHub(t, cfg)
	if carless.DriveCar("accelerate") {
		t.Fatal("expected rejection without a car")
	}
}

func TestAdvanceStepsTheWorld(t *testing.T) {
	hub := testHub(t, hubConfig())

	snapshot := hub.advance(1.0 / tickRate)
	if snapshot.Tick != 1 {
		t.Fatalf("expected tick 1, got %d", snapshot.Tick)
	}
	snapshot = hub.advance(1.0 / tickRate)
	if snapshot.Tick != 2 {
		t.Fatalf("expected tick 2, got %d", snapshot.Tick)
	}
}

func TestDiagnosticsReportsHubState(t *testing.T) {
	hub := testHub(t, hubConfig())
	hub.advance(1.0 / tickRate)

	diag := hub.Diagnostics()
	if diag["tick"].(uint64) != 1 {
		t.Fatalf("expected tick 1 in diagnostics, got %v", diag["tick"])
	}
	if diag["agents"].(int) != 2 {
		t.Fatalf("expected 2 agents, got %v", diag["agents"])
	}
	if _, ok := diag["telemetry"].(telemetrySnapshot); !ok {
		t.Fatalf("expected telemetry snapshot, got %T", diag["telemetry"])
	}
}
