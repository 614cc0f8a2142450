package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabdoc/internal/comments"
	"collabdoc/internal/session"
	"collabdoc/pkg/ot"
)

func newTestRouter(t *testing.T) (*mux.Router, *session.Store, *comments.Store) {
	t.Helper()
	sessions := session.NewStore()
	commentStore := comments.NewStore(sessions)
	sessions.Subscribe(commentStore)

	sessions.Join("doc", "alice", "Alice")
	_, err := sessions.Apply("doc", ot.NewInsert("alice", 0, "The quick brown fox"))
	require.NoError(t, err)

	router := mux.NewRouter()
	NewHandler(sessions, commentStore).Register(router)
	return router, sessions, commentStore
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetDocument(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/documents/doc", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "The quick brown fox", got["content"])
	assert.Equal(t, float64(1), got["version"])

	rec = doJSON(t, router, http.MethodGet, "/documents/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetHistory(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/documents/doc/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ops []ot.Operation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ops))
	require.Len(t, ops, 1)
	assert.Equal(t, ot.Insert, ops[0].Type)
	assert.Equal(t, 1, ops[0].Version)

	rec = doJSON(t, router, http.MethodGet, "/documents/missing/history", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommentLifecycleOverHTTP(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/documents/doc/comments", map[string]any{
		"authorId":     "alice",
		"authorName":   "Alice",
		"content":      "is this fox fast enough",
		"selectedText": "quick",
		"position":     map[string]int{"start": 4, "end": 9},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created comments.Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, router, http.MethodPost, "/comments/"+created.ID+"/replies", map[string]string{
		"authorId":   "bob",
		"authorName": "Bob",
		"content":    "plenty fast",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Only the author can resolve.
	rec = doJSON(t, router, http.MethodPost, "/comments/"+created.ID+"/resolve?user=bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/comments/"+created.ID+"/resolve?user=alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Resolved is terminal.
	rec = doJSON(t, router, http.MethodPost, "/comments/"+created.ID+"/resolve?user=alice", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/documents/doc/comments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []comments.Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, comments.StatusResolved, list[0].Status)
	assert.Len(t, list[0].Replies, 1)
}

func TestSuggestionLifecycleOverHTTP(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/documents/doc/suggestions", map[string]any{
		"authorId":      "bob",
		"authorName":    "Bob",
		"content":       "swap the adjective",
		"suggestedText": "swift",
		"selectedText":  "quick",
		"position":      map[string]int{"start": 4, "end": 9},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created comments.Suggestion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "swift", created.SuggestedText)

	rec = doJSON(t, router, http.MethodPost, "/suggestions/"+created.ID+"/accept", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/suggestions/"+created.ID+"/reject", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSearchOverHTTP(t *testing.T) {
	router, _, commentStore := newTestRouter(t)
	_, err := commentStore.AddComment("doc", "", "alice", "Alice", "fox comment", "fox", ot.Range{Start: 16, End: 19})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/search", map[string]any{
		"query": "fox",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var results []comments.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "<mark>fox</mark> comment", results[0].Highlighted)

	// Empty result sets come back as [], not null.
	rec = doJSON(t, router, http.MethodPost, "/search", map[string]any{"query": "nothing-matches"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}
