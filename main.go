package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"kiln/server/internal/world"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	addr := flag.String("addr", ":8080", "http listen address")
	configPath := flag.String("config", "", "optional scenario config file (YAML)")
	flag.Parse()

	cfg := world.DefaultConfig()
	if *configPath != "" {
		loaded, err := world.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	w, err := world.New(cfg)
	if err != nil {
		log.Fatalf("build world: %v", err)
	}

	hub := newHub(w)
	stop := make(chan struct{})
	go hub.RunSimulation(stop)
	defer close(stop)

	http.HandleFunc("/health", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("ok"))
	})

	http.HandleFunc("/diagnostics", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(rw).Encode(hub.Diagnostics()); err != nil {
			log.Printf("failed to encode diagnostics: %v", err)
		}
	})

	http.HandleFunc("/join", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(rw).Encode(hub.Join()); err != nil {
			log.Printf("failed to encode join response: %v", err)
		}
	})

	http.HandleFunc("/ws", func(rw http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(rw, "missing id", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}
		sub := hub.Subscribe(id, conn)
		go readLoop(hub, id, sub)
	})

	log.Printf("kiln server listening on %s (seed=%q)", *addr, cfg.Seed)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// readLoop consumes client messages until the connection drops. Car actions
// are staged for the next tick; heartbeats are acked immediately.
func readLoop(hub *Hub, id string, sub *subscriber) {
	defer func() {
		sub.conn.Close()
		hub.Disconnect(id, sub.conn)
	}()

	for {
		_, payload, err := sub.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Printf("subscriber %s sent malformed message: %v", id, err)
			continue
		}

		switch msg.Type {
		case "input":
			if !hub.DriveCar(msg.Action) {
				log.Printf("subscriber %s sent unusable action %q", id, msg.Action)
			}
		case "heartbeat":
			ack := hub.RecordHeartbeat(sub, msg.SentAt)
			out, err := json.Marshal(ack)
			if err != nil {
				continue
			}
			if err := sub.send(out); err != nil {
				return
			}
		default:
			log.Printf("subscriber %s sent unknown message type %q", id, msg.Type)
		}
	}
}
