package main

import "kiln/server/internal/world"

// stateMessage is the per-tick broadcast payload.
type stateMessage struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	world.Snapshot
}

// joinResponse hands a new viewer its id, the drivable car id (empty when the
// scenario has none), and the latest snapshot.
type joinResponse struct {
	ID    string         `json:"id"`
	CarID string         `json:"carId,omitempty"`
	State world.Snapshot `json:"state"`
}

// clientMessage is what subscribers send: car actions and heartbeats.
type clientMessage struct {
	Type   string `json:"type"`
	Action string `json:"action,omitempty"`
	SentAt int64  `json:"sentAt,omitempty"`
}

type heartbeatMessage struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

type diagnosticsSubscriber struct {
	ID            string `json:"id"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rttMillis"`
}
