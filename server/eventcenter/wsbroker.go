package eventcenter

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	dbmodel "github.com/grimm00/networking-learning-sub003/server/database/model"
)

// Event pushed to websocket subscribers.
type streamedEvent struct {
	Level     string                 `json:"level"`
	Text      string                 `json:"text"`
	Details   map[string]interface{} `json:"details,omitempty"`
	MachineID *int64                 `json:"machineId,omitempty"`
}

// WSBroker fans events out to connected websocket clients.
type WSBroker struct {
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[*websocket.Conn]bool
}

func NewWSBroker() *WSBroker {
	return &WSBroker{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		subscribers: map[*websocket.Conn]bool{},
	}
}

// Upgrades the request and keeps the connection registered until the
// client goes away.
func (broker *WSBroker) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := broker.upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Warnf("Problem upgrading event stream connection: %s", err)
		return
	}

	broker.mu.Lock()
	broker.subscribers[conn] = true
	count := len(broker.subscribers)
	broker.mu.Unlock()
	log.Printf("Event stream subscriber connected, %d connected in total", count)

	// Reads are discarded; the read loop only detects disconnection.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				broker.remove(conn)
				return
			}
		}
	}()
}

// Pushes an event to all subscribers. Connections that fail to accept
// the write are dropped.
func (broker *WSBroker) Dispatch(event *dbmodel.Event) {
	message := &streamedEvent{
		Level:     event.Level.String(),
		Text:      event.Text,
		Details:   event.Details,
		MachineID: event.MachineID,
	}

	broker.mu.Lock()
	defer broker.mu.Unlock()
	for conn := range broker.subscribers {
		if err := conn.WriteJSON(message); err != nil {
			log.Warnf("Dropping event stream subscriber: %s", err)
			conn.Close()
			delete(broker.subscribers, conn)
		}
	}
}

func (broker *WSBroker) remove(conn *websocket.Conn) {
	broker.mu.Lock()
	defer broker.mu.Unlock()
	if broker.subscribers[conn] {
		conn.Close()
		delete(broker.subscribers, conn)
	}
}

// Disconnects all subscribers.
func (broker *WSBroker) Shutdown() {
	broker.mu.Lock()
	defer broker.mu.Unlock()
	for conn := range broker.subscribers {
		conn.Close()
	}
	broker.subscribers = map[*websocket.Conn]bool{}
}
