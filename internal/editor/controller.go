// Package editor bridges a raw editable-text surface to the collaborative
// session store, turning text changes into operations and keeping remote
// state flowing both ways over a transport.
package editor

import (
	"log"
	"sync"

	"collabdoc/internal/session"
	"collabdoc/internal/transport"
	"collabdoc/pkg/ot"
)

// Controller drives one user's view of one document. It computes diffs from
// text changes, applies them optimistically to the local session store,
// broadcasts them, and folds remote operations, cursors and presence back
// into the store.
type Controller struct {
	sessions *session.Store
	tp       transport.Transport
	docID    string
	userID   string
	userName string

	mu       sync.Mutex
	inflight map[string]bool // op IDs awaiting their echo
	done     chan struct{}
}

// NewController joins the document, announces presence, and starts
// consuming the transport's inbound stream.
func NewController(sessions *session.Store, tp transport.Transport, docID, userID, userName string) *Controller {
	c := &Controller{
		sessions: sessions,
		tp:       tp,
		docID:    docID,
		userID:   userID,
		userName: userName,
		inflight: make(map[string]bool),
		done:     make(chan struct{}),
	}
	c.sessions.Join(docID, userID, userName)
	if err := tp.Send(transport.PresenceMessage(docID, userID, userName, transport.PresenceJoined)); err != nil {
		log.Printf("[EDITOR] Failed to announce presence for %s: %v", userID, err)
	}
	go c.receiveLoop()
	return c
}

// HandleTextChange diffs the new content against the authoritative content,
// applies the resulting operation locally first, then broadcasts it. The
// local apply is optimistic: this layer never rolls a user's own edit back.
func (c *Controller) HandleTextChange(newContent string) error {
	oldContent, err := c.sessions.Content(c.docID)
	if err != nil {
		return err
	}
	op, ok := ot.Diff(oldContent, newContent, c.userID)
	if !ok {
		return nil
	}

	// ApplyLocal applies and appends to the pending queue in one critical
	// section; a remote operation delivered in between would otherwise miss
	// the transform against this op.
	if _, err := c.sessions.ApplyLocal(c.docID, op); err != nil {
		return err
	}

	c.mu.Lock()
	c.inflight[op.ID] = true
	c.mu.Unlock()

	if err := c.tp.Send(transport.OperationMessage(c.docID, op)); err != nil {
		log.Printf("[EDITOR] Broadcast failed for op %s: %v", op.ID, err)
		return err
	}
	return nil
}

// SetCursor records the local cursor and pushes it out, decoupled from
// content operations.
func (c *Controller) SetCursor(position int, selection *session.Selection) error {
	if err := c.sessions.UpdateCursor(c.docID, c.userID, position, selection); err != nil {
		return err
	}
	return c.tp.Send(transport.CursorMessage(c.docID, c.userID, position, selection))
}

// Content returns the current authoritative content.
func (c *Controller) Content() string {
	content, err := c.sessions.Content(c.docID)
	if err != nil {
		return ""
	}
	return content
}

// RemoteCursors returns every other participant's cursor for overlay
// rendering.
func (c *Controller) RemoteCursors() []session.Cursor {
	return c.sessions.Cursors(c.docID, c.userID)
}

// Collaborators returns the active participants.
func (c *Controller) Collaborators() []session.User {
	return c.sessions.Collaborators(c.docID)
}

// Close announces departure and stops the receive loop. In-flight remote
// operations already queued are still applied by whoever receives them;
// closing only stops further local mutation.
func (c *Controller) Close() error {
	if err := c.tp.Send(transport.PresenceMessage(c.docID, c.userID, c.userName, transport.PresenceLeft)); err != nil {
		log.Printf("[EDITOR] Failed to announce departure for %s: %v", c.userID, err)
	}
	c.sessions.Leave(c.docID, c.userID)
	err := c.tp.Close()
	<-c.done
	return err
}

func (c *Controller) receiveLoop() {
	defer close(c.done)
	for msg := range c.tp.Receive() {
		c.handle(msg)
	}
}

func (c *Controller) handle(msg transport.Message) {
	if msg.DocumentID != c.docID {
		return
	}
	switch msg.Type {
	case transport.KindOperation:
		c.handleOperation(msg)
	case transport.KindCursor:
		if msg.UserID == c.userID {
			return
		}
		if err := c.sessions.UpdateCursor(c.docID, msg.UserID, msg.Cursor.Position, msg.Cursor.Selection); err != nil {
			log.Printf("[EDITOR] Dropping cursor update from %s: %v", msg.UserID, err)
		}
	case transport.KindPresence:
		if msg.UserID == c.userID {
			return
		}
		switch msg.Presence.Event {
		case transport.PresenceJoined:
			known := c.knowsUser(msg.UserID)
			c.sessions.Join(c.docID, msg.UserID, msg.Presence.UserName)
			if !known {
				// A joiner who connected after our initial announcement has
				// never heard of us. Announce back; their Join is idempotent,
				// so the exchange terminates after one round trip.
				if err := c.tp.Send(transport.PresenceMessage(c.docID, c.userID, c.userName, transport.PresenceJoined)); err != nil {
					log.Printf("[EDITOR] Failed to re-announce presence to %s: %v", msg.UserID, err)
				}
			}
		case transport.PresenceLeft:
			c.sessions.Leave(c.docID, msg.UserID)
		}
	}
}

func (c *Controller) knowsUser(userID string) bool {
	for _, u := range c.sessions.Collaborators(c.docID) {
		if u.ID == userID {
			return true
		}
	}
	return false
}

func (c *Controller) handleOperation(msg transport.Message) {
	op := *msg.Operation
	if msg.UserID == c.userID {
		// Re-entrancy guard: a just-broadcast operation echoing back is
		// acknowledged, never re-applied.
		c.mu.Lock()
		wasInflight := c.inflight[op.ID]
		delete(c.inflight, op.ID)
		c.mu.Unlock()
		if wasInflight {
			c.sessions.AckPending(c.docID, op.ID)
		}
		return
	}
	if _, err := c.sessions.Apply(c.docID, op); err != nil {
		log.Printf("[EDITOR] Dropping remote op %s: %v", op.ID, err)
	}
}
