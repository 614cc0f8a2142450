// Package comments implements the comment and suggestion overlay: threads
// of feedback anchored to text ranges, kept positionally consistent as the
// document mutates, plus a full-text search engine over them.
package comments

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"collabdoc/pkg/ot"
)

// Status is the lifecycle state of a comment or suggestion. Comments move
// active -> resolved; suggestions move pending -> accepted|rejected. All
// three right-hand states are terminal.
type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

var (
	ErrNotFound       = errors.New("comment or suggestion not found")
	ErrThreadNotFound = errors.New("thread not found")
	ErrNotAuthor      = errors.New("only the author can resolve a comment")
	ErrTerminalStatus = errors.New("status is terminal")
)

// Reply is an immutable response on a comment or suggestion. Replies belong
// to exactly one parent and are never edited or deleted.
type Reply struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Comment is feedback anchored to a text range.
type Comment struct {
	ID           string    `json:"id"`
	ThreadID     string    `json:"threadId"`
	DocumentID   string    `json:"documentId"`
	AuthorID     string    `json:"authorId"`
	AuthorName   string    `json:"authorName"`
	Content      string    `json:"content"`
	Anchor       ot.Range  `json:"position"`
	SelectedText string    `json:"selectedText"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	Replies      []Reply   `json:"replies"`
}

// Suggestion is a proposed edit anchored to a text range. Accepting one is
// a policy action only; splicing the suggested text into the document is
// left to the caller.
type Suggestion struct {
	ID            string    `json:"id"`
	ThreadID      string    `json:"threadId"`
	DocumentID    string    `json:"documentId"`
	AuthorID      string    `json:"authorId"`
	AuthorName    string    `json:"authorName"`
	Content       string    `json:"content"`
	SuggestedText string    `json:"suggestedText"`
	Anchor        ot.Range  `json:"position"`
	SelectedText  string    `json:"selectedText"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	Replies       []Reply   `json:"replies"`
}

// Thread groups comments and suggestions sharing one discussion.
type Thread struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"documentId"`
	CommentIDs    []string  `json:"commentIds"`
	SuggestionIDs []string  `json:"suggestionIds"`
	CreatedAt     time.Time `json:"createdAt"`
}

// DocumentProvider supplies document content and titles for anchor context
// windows and search. The session store satisfies it.
type DocumentProvider interface {
	Content(docID string) (string, error)
	Title(docID string) (string, error)
}

// Store holds every comment, suggestion and thread in the process. It
// implements the session store's observer so anchors shift with every
// applied operation, in the same pass as live cursors.
type Store struct {
	mu          sync.RWMutex
	comments    map[string]*Comment
	suggestions map[string]*Suggestion
	threads     map[string]*Thread
	docs        DocumentProvider
}

// NewStore creates an empty comment store reading documents from docs.
func NewStore(docs DocumentProvider) *Store {
	return &Store{
		comments:    make(map[string]*Comment),
		suggestions: make(map[string]*Suggestion),
		threads:     make(map[string]*Thread),
		docs:        docs,
	}
}

// AddComment creates an active comment. An empty threadID starts a new
// thread; otherwise the comment joins the existing one.
func (s *Store) AddComment(docID, threadID, authorID, authorName, content, selectedText string, anchor ot.Range) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, err := s.threadLocked(docID, threadID)
	if err != nil {
		return Comment{}, err
	}
	c := &Comment{
		ID:           uuid.New().String(),
		ThreadID:     thread.ID,
		DocumentID:   docID,
		AuthorID:     authorID,
		AuthorName:   authorName,
		Content:      content,
		Anchor:       anchor,
		SelectedText: selectedText,
		Status:       StatusActive,
		CreatedAt:    time.Now(),
	}
	s.comments[c.ID] = c
	thread.CommentIDs = append(thread.CommentIDs, c.ID)
	return *c, nil
}

// AddSuggestion creates a pending suggestion. An empty threadID starts a
// new thread.
func (s *Store) AddSuggestion(docID, threadID, authorID, authorName, content, suggestedText, selectedText string, anchor ot.Range) (Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, err := s.threadLocked(docID, threadID)
	if err != nil {
		return Suggestion{}, err
	}
	sg := &Suggestion{
		ID:            uuid.New().String(),
		ThreadID:      thread.ID,
		DocumentID:    docID,
		AuthorID:      authorID,
		AuthorName:    authorName,
		Content:       content,
		SuggestedText: suggestedText,
		Anchor:        anchor,
		SelectedText:  selectedText,
		Status:        StatusPending,
		CreatedAt:     time.Now(),
	}
	s.suggestions[sg.ID] = sg
	thread.SuggestionIDs = append(thread.SuggestionIDs, sg.ID)
	return *sg, nil
}

func (s *Store) threadLocked(docID, threadID string) (*Thread, error) {
	if threadID == "" {
		t := &Thread{
			ID:         uuid.New().String(),
			DocumentID: docID,
			CreatedAt:  time.Now(),
		}
		s.threads[t.ID] = t
		return t, nil
	}
	t, ok := s.threads[threadID]
	if !ok {
		return nil, ErrThreadNotFound
	}
	return t, nil
}

// ReplyToComment appends an immutable reply to a comment.
func (s *Store) ReplyToComment(commentID, authorID, authorName, content string) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return Reply{}, ErrNotFound
	}
	r := newReply(authorID, authorName, content)
	c.Replies = append(c.Replies, r)
	return r, nil
}

// ReplyToSuggestion appends an immutable reply to a suggestion.
func (s *Store) ReplyToSuggestion(suggestionID, authorID, authorName, content string) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sg, ok := s.suggestions[suggestionID]
	if !ok {
		return Reply{}, ErrNotFound
	}
	r := newReply(authorID, authorName, content)
	sg.Replies = append(sg.Replies, r)
	return r, nil
}

func newReply(authorID, authorName, content string) Reply {
	return Reply{
		ID:         uuid.New().String(),
		AuthorID:   authorID,
		AuthorName: authorName,
		Content:    content,
		CreatedAt:  time.Now(),
	}
}

// ResolveComment moves a comment from active to resolved. Only the author
// may resolve, and a resolved comment never transitions again.
func (s *Store) ResolveComment(commentID, byUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return ErrNotFound
	}
	if c.AuthorID != byUserID {
		return ErrNotAuthor
	}
	if c.Status != StatusActive {
		return ErrTerminalStatus
	}
	c.Status = StatusResolved
	return nil
}

// AcceptSuggestion moves a pending suggestion to accepted.
func (s *Store) AcceptSuggestion(suggestionID string) error {
	return s.finishSuggestion(suggestionID, StatusAccepted)
}

// RejectSuggestion moves a pending suggestion to rejected.
func (s *Store) RejectSuggestion(suggestionID string) error {
	return s.finishSuggestion(suggestionID, StatusRejected)
}

func (s *Store) finishSuggestion(suggestionID string, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sg, ok := s.suggestions[suggestionID]
	if !ok {
		return ErrNotFound
	}
	if sg.Status != StatusPending {
		return ErrTerminalStatus
	}
	sg.Status = to
	return nil
}

// Comment returns a copy of a comment.
func (s *Store) Comment(commentID string) (Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[commentID]
	if !ok {
		return Comment{}, ErrNotFound
	}
	return *c, nil
}

// Suggestion returns a copy of a suggestion.
func (s *Store) Suggestion(suggestionID string) (Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sg, ok := s.suggestions[suggestionID]
	if !ok {
		return Suggestion{}, ErrNotFound
	}
	return *sg, nil
}

// Thread returns a copy of a thread.
func (s *Store) Thread(threadID string) (Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[threadID]
	if !ok {
		return Thread{}, ErrThreadNotFound
	}
	return *t, nil
}

// CommentsForDocument returns the document's comments, oldest first.
func (s *Store) CommentsForDocument(docID string) []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Comment
	for _, c := range s.comments {
		if c.DocumentID == docID {
			out = append(out, *c)
		}
	}
	sortByCreation(out, func(c Comment) time.Time { return c.CreatedAt })
	return out
}

// SuggestionsForDocument returns the document's suggestions, oldest first.
func (s *Store) SuggestionsForDocument(docID string) []Suggestion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Suggestion
	for _, sg := range s.suggestions {
		if sg.DocumentID == docID {
			out = append(out, *sg)
		}
	}
	sortByCreation(out, func(sg Suggestion) time.Time { return sg.CreatedAt })
	return out
}

func sortByCreation[T any](items []T, at func(T) time.Time) {
	sort.Slice(items, func(i, j int) bool { return at(items[i]).Before(at(items[j])) })
}

// OperationApplied shifts every anchor in the document by the applied
// operation. Skipping this is how highlights drift from their text; the
// session store calls it for each operation it applies.
func (s *Store) OperationApplied(docID string, op ot.Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.comments {
		if c.DocumentID == docID {
			c.Anchor = ot.TransformRange(c.Anchor, op)
		}
	}
	for _, sg := range s.suggestions {
		if sg.DocumentID == docID {
			sg.Anchor = ot.TransformRange(sg.Anchor, op)
		}
	}
}
