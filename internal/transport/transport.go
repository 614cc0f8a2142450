// Package transport defines the message contract the collaborative core
// exchanges with an external channel, plus two carriers: an in-memory bus
// for tests and demos, and a WebSocket delivery layer.
package transport

import (
	"fmt"

	"collabdoc/internal/session"
	"collabdoc/pkg/ot"
)

// Kind tags a message with its payload variant.
type Kind string

const (
	KindOperation Kind = "operation"
	KindCursor    Kind = "cursor"
	KindPresence  Kind = "presence"
)

// PresenceEvent says whether a user entered or left a document room.
type PresenceEvent string

const (
	PresenceJoined PresenceEvent = "joined"
	PresenceLeft   PresenceEvent = "left"
)

// CursorPayload carries a cursor move, decoupled from content operations.
type CursorPayload struct {
	Position  int                `json:"position"`
	Selection *session.Selection `json:"selection,omitempty"`
}

// PresencePayload carries a join/leave event.
type PresencePayload struct {
	Event    PresenceEvent `json:"event"`
	UserName string        `json:"userName,omitempty"`
}

// Message is the tagged union carried over any transport. Exactly one
// payload field is set, matching Type.
type Message struct {
	Type       Kind             `json:"type"`
	DocumentID string           `json:"documentId"`
	UserID     string           `json:"userId"`
	Operation  *ot.Operation    `json:"operation,omitempty"`
	Cursor     *CursorPayload   `json:"cursor,omitempty"`
	Presence   *PresencePayload `json:"presence,omitempty"`
}

// Validate checks the tag/payload pairing at the transport boundary.
func (m Message) Validate() error {
	if m.DocumentID == "" {
		return fmt.Errorf("message missing documentId")
	}
	if m.UserID == "" {
		return fmt.Errorf("message missing userId")
	}
	switch m.Type {
	case KindOperation:
		if m.Operation == nil || m.Cursor != nil || m.Presence != nil {
			return fmt.Errorf("operation message must carry exactly an operation payload")
		}
	case KindCursor:
		if m.Cursor == nil || m.Operation != nil || m.Presence != nil {
			return fmt.Errorf("cursor message must carry exactly a cursor payload")
		}
	case KindPresence:
		if m.Presence == nil || m.Operation != nil || m.Cursor != nil {
			return fmt.Errorf("presence message must carry exactly a presence payload")
		}
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}

// OperationMessage builds an operation message.
func OperationMessage(docID string, op ot.Operation) Message {
	return Message{
		Type:       KindOperation,
		DocumentID: docID,
		UserID:     op.UserID,
		Operation:  &op,
	}
}

// CursorMessage builds a cursor message.
func CursorMessage(docID, userID string, position int, selection *session.Selection) Message {
	return Message{
		Type:       KindCursor,
		DocumentID: docID,
		UserID:     userID,
		Cursor:     &CursorPayload{Position: position, Selection: selection},
	}
}

// PresenceMessage builds a presence message.
func PresenceMessage(docID, userID, userName string, event PresenceEvent) Message {
	return Message{
		Type:       KindPresence,
		DocumentID: docID,
		UserID:     userID,
		Presence:   &PresencePayload{Event: event, UserName: userName},
	}
}

// Transport is an asynchronous channel scoped to one document room.
// Messages from the same sender arrive in send order; no cross-sender
// ordering is guaranteed.
type Transport interface {
	Send(msg Message) error
	Receive() <-chan Message
	Close() error
}
