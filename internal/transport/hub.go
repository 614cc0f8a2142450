package transport

import "log"

// roomMessage is raw bytes headed for one document room.
type roomMessage struct {
	docID   string
	data    []byte
	exclude *Client // nil broadcasts to everyone, sender included
}

// Hub tracks connected clients per document room and fans messages out to
// them.
type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	broadcast  chan roomMessage
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
}

// NewHub creates a hub; Run must be started on its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan roomMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case msg := <-h.broadcast:
			h.broadcastToRoom(msg)
		case <-h.quit:
			for client := range h.clients {
				close(client.send)
				client.conn.Close()
			}
			return
		}
	}
}

// Shutdown closes every client connection and stops the loop.
func (h *Hub) Shutdown() {
	close(h.quit)
}

func (h *Hub) handleRegister(client *Client) {
	h.clients[client] = true
	if h.rooms[client.docID] == nil {
		h.rooms[client.docID] = make(map[*Client]bool)
	}
	h.rooms[client.docID][client] = true
	log.Printf("[HUB] Client %s joined room %s (%d in room, %d total)",
		client.userID, client.docID, len(h.rooms[client.docID]), len(h.clients))
}

func (h *Hub) handleUnregister(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	if room := h.rooms[client.docID]; room != nil {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, client.docID)
		}
	}
	client.server.clientGone(client)
	log.Printf("[HUB] Client %s left room %s (%d total)", client.userID, client.docID, len(h.clients))
}

func (h *Hub) broadcastToRoom(msg roomMessage) {
	for client := range h.rooms[msg.docID] {
		if client == msg.exclude {
			continue
		}
		select {
		case client.send <- msg.data:
		default:
			// Slow consumer: drop the connection rather than the room.
			close(client.send)
			delete(h.clients, client)
			delete(h.rooms[msg.docID], client)
			log.Printf("[HUB] Dropping slow client %s from room %s", client.userID, client.docID)
			// The later unregister is now a no-op, so session teardown
			// happens here. Off the hub goroutine: clientGone broadcasts
			// a departure back through this loop.
			go client.server.clientGone(client)
		}
	}
}
