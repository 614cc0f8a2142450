package transport

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"collabdoc/internal/session"
	"collabdoc/pkg/ot"
)

// snapshotUserID attributes the content-sync operation a client receives on
// connect. It never collides with a real participant.
const snapshotUserID = "__server__"

// Metrics counts server activity, logged periodically by the binary.
type Metrics struct {
	mu                sync.Mutex
	ActiveConnections int64
	MessagesReceived  int64
	MessagesSent      int64
}

// Snapshot returns a copy of the counters.
func (m *Metrics) Snapshot() (active, received, sent int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ActiveConnections, m.MessagesReceived, m.MessagesSent
}

// Server carries the message contract over WebSocket connections, one room
// per document, with the session store as the single authority.
type Server struct {
	hub      *Hub
	sessions *session.Store
	upgrader websocket.Upgrader
	metrics  *Metrics
}

// NewServer wires a server to the authoritative session store.
func NewServer(sessions *session.Store) *Server {
	return &Server{
		hub:      NewHub(),
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		metrics: &Metrics{},
	}
}

// Start runs the hub loop.
func (s *Server) Start() {
	go s.hub.Run()
}

// Shutdown closes every connection.
func (s *Server) Shutdown() {
	s.hub.Shutdown()
}

// Metrics exposes the server counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// HandleWebSocket upgrades a connection into a document room. The document
// comes from the route (`/ws/{docID}`); user identity from query params,
// generated when absent.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["docID"]
	if docID == "" {
		docID = r.URL.Query().Get("doc")
	}
	if docID == "" {
		http.Error(w, "missing document ID", http.StatusBadRequest)
		return
	}

	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = uuid.New().String()[:8]
	}
	userName := r.URL.Query().Get("name")
	if userName == "" {
		userName = "User-" + userID[:4]
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}

	client := &Client{
		userID:   userID,
		userName: userName,
		docID:    docID,
		hub:      s.hub,
		server:   s,
		conn:     conn,
		send:     make(chan []byte, 256),
	}

	s.hub.register <- client
	s.metrics.mu.Lock()
	s.metrics.ActiveConnections++
	s.metrics.mu.Unlock()

	go client.writePump()
	go client.readPump()

	s.sessions.Join(docID, userID, userName)
	s.sendSnapshot(client)
	s.broadcast(PresenceMessage(docID, userID, userName, PresenceJoined), nil)

	log.Printf("[WS] Client %s (%s) connected to document %s", userID, userName, docID)
}

// sendSnapshot syncs a fresh connection by sending the current content as a
// single insert. State is a fold of operations, so the snapshot rides the
// normal operation message.
func (s *Server) sendSnapshot(c *Client) {
	content, err := s.sessions.Content(c.docID)
	if err != nil || content == "" {
		return
	}
	op := ot.NewInsert(snapshotUserID, 0, content)
	data, err := json.Marshal(OperationMessage(c.docID, op))
	if err != nil {
		log.Printf("[WS] Failed to marshal snapshot: %v", err)
		return
	}
	c.enqueue(data)
}

// dispatch routes one validated inbound message.
func (s *Server) dispatch(c *Client, msg Message) {
	s.metrics.mu.Lock()
	s.metrics.MessagesReceived++
	s.metrics.mu.Unlock()

	switch msg.Type {
	case KindOperation:
		applied, err := s.sessions.Apply(msg.DocumentID, *msg.Operation)
		if err != nil {
			log.Printf("[WS] Dropping op from %s: %v", msg.UserID, err)
			return
		}
		// Everyone gets the transformed operation; the sender's copy is the
		// acknowledgement that clears its pending queue.
		s.broadcast(OperationMessage(msg.DocumentID, applied), nil)

	case KindCursor:
		if err := s.sessions.UpdateCursor(msg.DocumentID, msg.UserID, msg.Cursor.Position, msg.Cursor.Selection); err != nil {
			log.Printf("[WS] Dropping cursor from %s: %v", msg.UserID, err)
			return
		}
		s.broadcast(msg, c)

	case KindPresence:
		switch msg.Presence.Event {
		case PresenceJoined:
			s.sessions.Join(msg.DocumentID, msg.UserID, msg.Presence.UserName)
		case PresenceLeft:
			s.sessions.Leave(msg.DocumentID, msg.UserID)
		}
		s.broadcast(msg, c)
	}
}

// clientGone runs after the hub drops a connection.
func (s *Server) clientGone(c *Client) {
	s.sessions.Leave(c.docID, c.userID)
	s.broadcast(PresenceMessage(c.docID, c.userID, c.userName, PresenceLeft), c)

	s.metrics.mu.Lock()
	s.metrics.ActiveConnections--
	s.metrics.mu.Unlock()
}

func (s *Server) broadcast(msg Message, exclude *Client) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS] Failed to marshal %s message: %v", msg.Type, err)
		return
	}
	s.hub.broadcast <- roomMessage{docID: msg.DocumentID, data: data, exclude: exclude}

	s.metrics.mu.Lock()
	s.metrics.MessagesSent++
	s.metrics.mu.Unlock()
}
