package comments

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabdoc/internal/session"
	"collabdoc/pkg/ot"
)

type fakeDocs struct {
	contents map[string]string
	titles   map[string]string
}

func (f *fakeDocs) Content(docID string) (string, error) {
	c, ok := f.contents[docID]
	if !ok {
		return "", errors.New("unknown document")
	}
	return c, nil
}

func (f *fakeDocs) Title(docID string) (string, error) {
	t, ok := f.titles[docID]
	if !ok {
		return "", errors.New("unknown document")
	}
	return t, nil
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{
		contents: map[string]string{"doc": "The quick brown fox jumps over the lazy dog"},
		titles:   map[string]string{"doc": "Fox Notes"},
	}
}

func TestAddCommentStartsThread(t *testing.T) {
	s := NewStore(newFakeDocs())

	c, err := s.AddComment("doc", "", "alice", "Alice", "typo here", "quick", ot.Range{Start: 4, End: 9})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, c.Status)
	assert.NotEmpty(t, c.ThreadID)

	thread, err := s.Thread(c.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, thread.CommentIDs)
}

func TestAddCommentJoinsExistingThread(t *testing.T) {
	s := NewStore(newFakeDocs())

	first, err := s.AddComment("doc", "", "alice", "Alice", "typo here", "quick", ot.Range{Start: 4, End: 9})
	require.NoError(t, err)
	second, err := s.AddComment("doc", first.ThreadID, "bob", "Bob", "agreed", "quick", ot.Range{Start: 4, End: 9})
	require.NoError(t, err)

	thread, err := s.Thread(first.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, thread.CommentIDs)

	_, err = s.AddComment("doc", "missing-thread", "bob", "Bob", "x", "", ot.Range{})
	assert.ErrorIs(t, err, ErrThreadNotFound)
}

func TestRepliesAppendToParent(t *testing.T) {
	s := NewStore(newFakeDocs())
	c, err := s.AddComment("doc", "", "alice", "Alice", "typo here", "quick", ot.Range{Start: 4, End: 9})
	require.NoError(t, err)

	r1, err := s.ReplyToComment(c.ID, "bob", "Bob", "fixed in next pass")
	require.NoError(t, err)
	r2, err := s.ReplyToComment(c.ID, "alice", "Alice", "thanks")
	require.NoError(t, err)

	got, err := s.Comment(c.ID)
	require.NoError(t, err)
	require.Len(t, got.Replies, 2)
	assert.Equal(t, r1.ID, got.Replies[0].ID)
	assert.Equal(t, r2.ID, got.Replies[1].ID)

	_, err = s.ReplyToComment("missing", "bob", "Bob", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveCommentAuthorOnly(t *testing.T) {
	s := NewStore(newFakeDocs())
	c, err := s.AddComment("doc", "", "alice", "Alice", "typo here", "quick", ot.Range{Start: 4, End: 9})
	require.NoError(t, err)

	assert.ErrorIs(t, s.ResolveComment(c.ID, "bob"), ErrNotAuthor)
	require.NoError(t, s.ResolveComment(c.ID, "alice"))

	got, _ := s.Comment(c.ID)
	assert.Equal(t, StatusResolved, got.Status)

	// Resolved is terminal.
	assert.ErrorIs(t, s.ResolveComment(c.ID, "alice"), ErrTerminalStatus)
}

func TestSuggestionStatusTerminal(t *testing.T) {
	s := NewStore(newFakeDocs())
	sg, err := s.AddSuggestion("doc", "", "alice", "Alice", "reword this", "swift", "quick", ot.Range{Start: 4, End: 9})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, sg.Status)

	require.NoError(t, s.AcceptSuggestion(sg.ID))
	got, _ := s.Suggestion(sg.ID)
	assert.Equal(t, StatusAccepted, got.Status)

	assert.ErrorIs(t, s.AcceptSuggestion(sg.ID), ErrTerminalStatus)
	assert.ErrorIs(t, s.RejectSuggestion(sg.ID), ErrTerminalStatus)

	sg2, err := s.AddSuggestion("doc", "", "bob", "Bob", "drop this", "", "The", ot.Range{Start: 0, End: 3})
	require.NoError(t, err)
	require.NoError(t, s.RejectSuggestion(sg2.ID))
	assert.ErrorIs(t, s.AcceptSuggestion(sg2.ID), ErrTerminalStatus)
}

func TestAnchorsShiftWithOperations(t *testing.T) {
	s := NewStore(newFakeDocs())
	c, err := s.AddComment("doc", "", "alice", "Alice", "anchor test", "x", ot.Range{Start: 10, End: 15})
	require.NoError(t, err)

	s.OperationApplied("doc", ot.NewInsert("bob", 0, "12345"))
	got, _ := s.Comment(c.ID)
	assert.Equal(t, ot.Range{Start: 15, End: 20}, got.Anchor)

	s.OperationApplied("doc", ot.NewDelete("bob", 0, 5))
	got, _ = s.Comment(c.ID)
	assert.Equal(t, ot.Range{Start: 10, End: 15}, got.Anchor)

	// Other documents are untouched.
	s.OperationApplied("other", ot.NewInsert("bob", 0, "zzz"))
	got, _ = s.Comment(c.ID)
	assert.Equal(t, ot.Range{Start: 10, End: 15}, got.Anchor)
}

func TestSuggestionAnchorsShiftToo(t *testing.T) {
	s := NewStore(newFakeDocs())
	sg, err := s.AddSuggestion("doc", "", "alice", "Alice", "reword", "swift", "quick", ot.Range{Start: 10, End: 15})
	require.NoError(t, err)

	s.OperationApplied("doc", ot.NewDelete("bob", 0, 5))
	got, _ := s.Suggestion(sg.ID)
	assert.Equal(t, ot.Range{Start: 5, End: 10}, got.Anchor)
}

// The comment store subscribes to the session store, so anchors follow
// content edits without any extra coupling.
func TestAnchorsFollowSessionOperations(t *testing.T) {
	sessions := session.NewStore()
	s := NewStore(sessions)
	sessions.Subscribe(s)

	sessions.Join("doc", "alice", "Alice")
	_, err := sessions.Apply("doc", ot.NewInsert("alice", 0, "0123456789012345678901234567890"))
	require.NoError(t, err)

	c, err := s.AddComment("doc", "", "alice", "Alice", "drift check", "01234", ot.Range{Start: 10, End: 15})
	require.NoError(t, err)

	_, err = sessions.Apply("doc", ot.NewInsert("alice", 0, "abcde"))
	require.NoError(t, err)

	got, _ := s.Comment(c.ID)
	assert.Equal(t, ot.Range{Start: 15, End: 20}, got.Anchor)
}
