// Package session holds the live collaborative state for open documents:
// connected users, cursors, operation history, and the authoritative
// document content.
package session

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"collabdoc/pkg/ot"
)

// Permission is a user's access level on a document.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionAdmin Permission = "admin"
)

// User is a connected participant in a document session.
type User struct {
	ID       string    `json:"userId"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	IsActive bool      `json:"isActive"`
	LastSeen time.Time `json:"lastSeen"`
}

// Selection is an optional selected range accompanying a cursor.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Cursor is a user's position in a document, re-derived on every applied
// operation so it keeps pointing at the same logical character.
type Cursor struct {
	UserID    string     `json:"userId"`
	Position  int        `json:"position"`
	Selection *Selection `json:"selection,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Document is the authoritative copy of a collaborative document. Exactly
// one exists per document per process; all mutation goes through the store.
type Document struct {
	ID            string                `json:"id"`
	Title         string                `json:"title"`
	Content       string                `json:"content"`
	Version       int                   `json:"version"`
	LastModified  time.Time             `json:"lastModified"`
	Collaborators mapset.Set[string]    `json:"-"`
	Permissions   map[string]Permission `json:"-"`
}

// session is the live state for one open document. Created on first join,
// garbage once the last collaborator leaves.
type session struct {
	doc     *Document
	users   map[string]*User
	cursors map[string]*Cursor
	history []ot.Operation // append-only
	pending []ot.Operation // local sends awaiting their echo
}

func newSession(docID, title string) *session {
	return &session{
		doc: &Document{
			ID:            docID,
			Title:         title,
			LastModified:  time.Now(),
			Collaborators: mapset.NewSet[string](),
			Permissions:   make(map[string]Permission),
		},
		users:   make(map[string]*User),
		cursors: make(map[string]*Cursor),
	}
}
