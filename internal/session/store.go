package session

import (
	"errors"
	"log"
	"sync"
	"time"

	"collabdoc/pkg/ot"
)

// ErrSessionNotFound is returned for operations addressed to a document no
// one has joined. Callers drop the message; the originating side is expected
// to have joined first.
var ErrSessionNotFound = errors.New("session not found")

// ErrReadOnly is returned when a user with read permission sends a content
// operation.
var ErrReadOnly = errors.New("user has read-only access")

// Observer is notified after every applied operation. The comments store
// registers one to keep its anchors aligned with shifted text.
type Observer interface {
	OperationApplied(docID string, op ot.Operation)
}

// Display colors assigned round-robin; collisions are expected once
// participants exceed the palette.
var palette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4",
	"#FFEAA7", "#DDA0DD", "#98D8C8", "#FFA07A",
}

// Store owns every live document session in the process. It is the single
// serialization point: all content mutation funnels through Apply.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*session
	observers []Observer
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*session)}
}

// Subscribe registers an observer for applied operations.
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Join adds a user to a document session, creating the session on first
// join. Joining twice is an idempotent upsert: the color and join state are
// refreshed, nothing else changes. The first joiner administers the
// document; later joiners get write access.
func (s *Store) Join(docID, userID, userName string) User {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[docID]
	if !ok {
		sess = newSession(docID, docID)
		s.sessions[docID] = sess
		log.Printf("[SESSION] Created session for document %s", docID)
	}

	u, ok := sess.users[userID]
	if !ok {
		u = &User{
			ID:    userID,
			Name:  userName,
			Color: palette[len(sess.users)%len(palette)],
		}
		sess.users[userID] = u
	}
	u.IsActive = true
	u.LastSeen = time.Now()

	sess.doc.Collaborators.Add(userID)
	if _, ok := sess.doc.Permissions[userID]; !ok {
		if len(sess.doc.Permissions) == 0 {
			sess.doc.Permissions[userID] = PermissionAdmin
		} else {
			sess.doc.Permissions[userID] = PermissionWrite
		}
	}

	log.Printf("[SESSION] %s (%s) joined document %s (%d users)",
		userName, userID, docID, len(sess.users))
	return *u
}

// Leave removes a user's presence and cursor. Operation history is kept.
// The session itself is destroyed when the last collaborator leaves.
func (s *Store) Leave(docID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[docID]
	if !ok {
		return
	}
	delete(sess.users, userID)
	delete(sess.cursors, userID)
	sess.doc.Collaborators.Remove(userID)

	if sess.doc.Collaborators.Cardinality() == 0 {
		delete(s.sessions, docID)
		log.Printf("[SESSION] Last collaborator left, dropping session %s", docID)
		return
	}
	log.Printf("[SESSION] %s left document %s (%d users remain)",
		userID, docID, sess.doc.Collaborators.Cardinality())
}

// Apply transforms op against the pending queue, applies it to the
// authoritative content, shifts every live cursor, appends to history and
// bumps the version. It returns the transformed operation as applied.
func (s *Store) Apply(docID string, op ot.Operation) (ot.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(docID, op, false)
}

// ApplyLocal applies a locally-generated operation and records it in the
// pending queue inside the same critical section, so a concurrent remote
// Apply always sees it as pending and transforms against it.
func (s *Store) ApplyLocal(docID string, op ot.Operation) (ot.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(docID, op, true)
}

func (s *Store) applyLocked(docID string, op ot.Operation, local bool) (ot.Operation, error) {
	sess, ok := s.sessions[docID]
	if !ok {
		log.Printf("[SESSION] Dropping %s op for unknown document %s", op.Type, docID)
		return ot.Operation{}, ErrSessionNotFound
	}
	if sess.doc.Permissions[op.UserID] == PermissionRead {
		log.Printf("[SESSION] Dropping %s op from read-only user %s on %s", op.Type, op.UserID, docID)
		return ot.Operation{}, ErrReadOnly
	}
	if op.IsNoop() {
		return op, nil
	}

	transformed := ot.TransformAgainstPending(op, sess.pending)
	sess.doc.Content = ot.Apply(sess.doc.Content, transformed)

	for _, c := range sess.cursors {
		c.Position = ot.TransformCursor(c.Position, transformed)
		if c.Selection != nil {
			r := ot.TransformRange(ot.Range{Start: c.Selection.Start, End: c.Selection.End}, transformed)
			c.Selection.Start, c.Selection.End = r.Start, r.End
		}
	}

	sess.doc.Version++
	sess.doc.LastModified = time.Now()
	transformed.Version = sess.doc.Version
	sess.history = append(sess.history, transformed)
	if local {
		sess.pending = append(sess.pending, transformed)
	}

	if u, ok := sess.users[op.UserID]; ok {
		u.LastSeen = time.Now()
	}

	// Anchors shift in the same pass as cursors, still under the lock so
	// observers see operations in application order. Observers must not
	// call back into the store.
	for _, o := range s.observers {
		o.OperationApplied(docID, transformed)
	}
	return transformed, nil
}

// AddPending records a locally-sent operation awaiting its echo. Remote
// operations arriving before the ack are transformed against it. Local
// applies go through ApplyLocal instead, which appends atomically.
func (s *Store) AddPending(docID string, op ot.Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[docID]; ok {
		sess.pending = append(sess.pending, op)
	}
}

// AckPending drops a pending operation once its echo has round-tripped.
func (s *Store) AckPending(docID, opID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[docID]
	if !ok {
		return
	}
	for i, p := range sess.pending {
		if p.ID == opID {
			sess.pending = append(sess.pending[:i], sess.pending[i+1:]...)
			return
		}
	}
}

// UpdateCursor records a user's cursor. Pure state update; no OT.
func (s *Store) UpdateCursor(docID, userID string, position int, selection *Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[docID]
	if !ok {
		return ErrSessionNotFound
	}
	sess.cursors[userID] = &Cursor{
		UserID:    userID,
		Position:  position,
		Selection: selection,
		Timestamp: time.Now(),
	}
	return nil
}

// Cursors returns every cursor except the excluded user's own: callers
// render only other participants.
func (s *Store) Cursors(docID, excludeUserID string) []Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[docID]
	if !ok {
		return nil
	}
	var out []Cursor
	for id, c := range sess.cursors {
		if id != excludeUserID {
			out = append(out, *c)
		}
	}
	return out
}

// Collaborators returns the users currently in the session. Membership is
// the collaborator set; sess.users carries the display state per member.
func (s *Store) Collaborators(docID string) []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[docID]
	if !ok {
		return nil
	}
	out := make([]User, 0, sess.doc.Collaborators.Cardinality())
	sess.doc.Collaborators.Each(func(id string) bool {
		if u, ok := sess.users[id]; ok {
			out = append(out, *u)
		}
		return false
	})
	return out
}

// Content returns the authoritative document content.
func (s *Store) Content(docID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[docID]
	if !ok {
		return "", ErrSessionNotFound
	}
	return sess.doc.Content, nil
}

// Title returns the document title.
func (s *Store) Title(docID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[docID]
	if !ok {
		return "", ErrSessionNotFound
	}
	return sess.doc.Title, nil
}

// SetTitle renames a document.
func (s *Store) SetTitle(docID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[docID]
	if !ok {
		return ErrSessionNotFound
	}
	sess.doc.Title = title
	sess.doc.LastModified = time.Now()
	return nil
}

// Version returns the document's operation count.
func (s *Store) Version(docID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[docID]
	if !ok {
		return 0, ErrSessionNotFound
	}
	return sess.doc.Version, nil
}

// History returns a copy of the applied operations, oldest first.
func (s *Store) History(docID string) []ot.Operation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[docID]
	if !ok {
		return nil
	}
	out := make([]ot.Operation, len(sess.history))
	copy(out, sess.history)
	return out
}

// Permission returns a user's access level on a document.
func (s *Store) Permission(docID, userID string) (Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[docID]
	if !ok {
		return "", ErrSessionNotFound
	}
	p, ok := sess.doc.Permissions[userID]
	if !ok {
		return PermissionRead, nil
	}
	return p, nil
}

// SetPermission sets a user's access level.
func (s *Store) SetPermission(docID, userID string, p Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[docID]
	if !ok {
		return ErrSessionNotFound
	}
	sess.doc.Permissions[userID] = p
	return nil
}
