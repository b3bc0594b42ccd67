package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/foldprep/api/internal/model"
)

// conn is the slice of *websocket.Conn the hub needs. The underlying
// connection tolerates only one concurrent writer, so every write goes
// through the Run goroutine.
type conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Hub maintains the set of active connections per job and broadcasts
// job events to the clients watching that job.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[conn]bool

	register   chan *subscription
	unregister chan *subscription
	broadcast  chan *broadcastMessage
	reply      chan *replyMessage
}

type subscription struct {
	jobID string
	conn  conn
}

type broadcastMessage struct {
	jobID string
	data  []byte
}

// replyMessage targets a single connection instead of a job's watchers.
type replyMessage struct {
	conn conn
	data []byte
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]map[conn]bool),
		register:    make(chan *subscription),
		unregister:  make(chan *subscription),
		broadcast:   make(chan *broadcastMessage, 64),
		reply:       make(chan *replyMessage, 16),
	}
}

// Run processes hub events. Call from a dedicated goroutine; it is the
// only goroutine that writes to connections.
func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			if h.connections[sub.jobID] == nil {
				h.connections[sub.jobID] = make(map[conn]bool)
			}
			h.connections[sub.jobID][sub.conn] = true
			h.mu.Unlock()

		case sub := <-h.unregister:
			h.mu.Lock()
			if conns := h.connections[sub.jobID]; conns != nil {
				delete(conns, sub.conn)
				if len(conns) == 0 {
					delete(h.connections, sub.jobID)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.connections[msg.jobID] {
				if err := c.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					log.Printf("websocket write failed for job %s: %v", msg.jobID, err)
				}
			}
			h.mu.RUnlock()

		case msg := <-h.reply:
			if err := msg.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				log.Printf("websocket reply failed: %v", err)
			}
		}
	}
}

// HandleConnection registers the connection for the job and blocks
// reading until the client disconnects.
func (h *Hub) HandleConnection(jobID string, c *websocket.Conn) {
	h.serve(jobID, c)
}

func (h *Hub) serve(jobID string, c conn) {
	sub := &subscription{jobID: jobID, conn: c}
	h.register <- sub
	defer func() {
		h.unregister <- sub
		c.Close()
	}()

	for {
		messageType, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		if messageType == websocket.TextMessage {
			var msg model.WSMessage
			if json.Unmarshal(data, &msg) == nil && msg.Type == model.WSMessageTypePing {
				h.sendReply(c, model.WSMessage{Type: model.WSMessageTypePong})
			}
		}
	}
}

// BroadcastProgress sends a progress update to all watchers of the job
func (h *Hub) BroadcastProgress(jobID string, progress int, status model.JobStatus, step string) {
	h.send(jobID, model.WSProgressMessage{
		Type:        model.WSMessageTypeProgress,
		JobID:       jobID,
		Progress:    progress,
		Status:      status,
		CurrentStep: step,
	})
}

// BroadcastComplete sends the final result to all watchers of the job
func (h *Hub) BroadcastComplete(jobID string, result interface{}) {
	h.send(jobID, model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		JobID:  jobID,
		Result: result,
	})
}

// BroadcastError sends an error to all watchers of the job
func (h *Hub) BroadcastError(jobID string, code, message string) {
	h.send(jobID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{Code: code, Message: message},
	})
}

func (h *Hub) send(jobID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal websocket message: %v", err)
		return
	}
	select {
	case h.broadcast <- &broadcastMessage{jobID: jobID, data: data}:
	default:
		log.Printf("websocket broadcast queue full, dropping message for job %s", jobID)
	}
}

func (h *Hub) sendReply(c conn, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal websocket message: %v", err)
		return
	}
	select {
	case h.reply <- &replyMessage{conn: c, data: data}:
	default:
		log.Printf("websocket reply queue full, dropping message")
	}
}
