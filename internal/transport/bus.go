package transport

import (
	"errors"
	"log"
	"sync"
)

// ErrClosed is returned by Send on a closed endpoint.
var ErrClosed = errors.New("transport closed")

const endpointBuffer = 256

// Bus is an in-memory fan-out standing in for a real network channel. It is
// a test and demo fixture: production deployments put the WebSocket layer
// (or a broker) here instead.
type Bus struct {
	mu    sync.Mutex
	rooms map[string][]*Endpoint
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{rooms: make(map[string][]*Endpoint)}
}

// Endpoint joins the room for docID and returns a Transport bound to it.
func (b *Bus) Endpoint(docID string) *Endpoint {
	e := &Endpoint{
		bus:   b,
		docID: docID,
		ch:    make(chan Message, endpointBuffer),
	}
	b.mu.Lock()
	b.rooms[docID] = append(b.rooms[docID], e)
	b.mu.Unlock()
	return e
}

// Endpoint is one participant's connection to a bus room.
type Endpoint struct {
	bus    *Bus
	docID  string
	ch     chan Message
	closed bool
}

// Send validates msg and delivers it to every endpoint in the room, the
// sender included: a sender's own message echoes back, the way a broadcast
// channel would round-trip it. Fan-out happens under the bus lock, so
// messages from one sender arrive in send order everywhere.
func (e *Endpoint) Send(msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	for _, peer := range e.bus.rooms[e.docID] {
		if peer.closed {
			continue
		}
		select {
		case peer.ch <- msg:
		default:
			log.Printf("[BUS] Receiver buffer full in room %s, dropping %s message", e.docID, msg.Type)
		}
	}
	return nil
}

// Receive returns the inbound message stream.
func (e *Endpoint) Receive() <-chan Message {
	return e.ch
}

// Close leaves the room and closes the inbound stream.
func (e *Endpoint) Close() error {
	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	peers := e.bus.rooms[e.docID]
	for i, peer := range peers {
		if peer == e {
			e.bus.rooms[e.docID] = append(peers[:i], peers[i+1:]...)
			break
		}
	}
	if len(e.bus.rooms[e.docID]) == 0 {
		delete(e.bus.rooms, e.docID)
	}
	close(e.ch)
	return nil
}
