// Package ot implements operational transformation for real-time
// collaborative text editing.
package ot

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of edit an operation performs.
type Type string

const (
	Insert Type = "insert"
	Delete Type = "delete"
	Retain Type = "retain"
)

// Operation is a single edit against a document. Position is always
// relative to the document state before the operation is applied.
type Operation struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Position  int       `json:"position"`
	Content   string    `json:"content,omitempty"` // insert only
	Length    int       `json:"length,omitempty"`  // delete only
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
	Version   int       `json:"version"`
}

// NewInsert builds an insert operation at pos.
func NewInsert(userID string, pos int, content string) Operation {
	return Operation{
		ID:        uuid.New().String(),
		Type:      Insert,
		Position:  pos,
		Content:   content,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// NewDelete builds a delete operation removing length chars at pos.
func NewDelete(userID string, pos, length int) Operation {
	return Operation{
		ID:        uuid.New().String(),
		Type:      Delete,
		Position:  pos,
		Length:    length,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// IsNoop reports whether applying op leaves any document unchanged.
func (op Operation) IsNoop() bool {
	switch op.Type {
	case Insert:
		return op.Content == ""
	case Delete:
		return op.Length <= 0
	}
	return true
}

// Apply applies op to content. Out-of-range positions and lengths are
// clamped to the valid range instead of failing: concurrent operations can
// transiently shift bounds, and convergence is preferred over strict
// validation.
func Apply(content string, op Operation) string {
	switch op.Type {
	case Insert:
		pos := clamp(op.Position, 0, len(content))
		return content[:pos] + op.Content + content[pos:]
	case Delete:
		pos := clamp(op.Position, 0, len(content))
		n := op.Length
		if pos+n > len(content) {
			n = len(content) - pos
		}
		if n <= 0 {
			return content
		}
		return content[:pos] + content[pos+n:]
	}
	// Retain is identity.
	return content
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
