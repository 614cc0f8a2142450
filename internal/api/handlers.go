// Package api exposes the comment overlay and search engine over HTTP for
// rendering layers that do not hold an in-process reference to the stores.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"collabdoc/internal/comments"
	"collabdoc/internal/session"
	"collabdoc/pkg/ot"
)

// Handler serves document, comment and search endpoints.
type Handler struct {
	sessions *session.Store
	comments *comments.Store
}

// NewHandler wires the HTTP surface to the stores.
func NewHandler(sessions *session.Store, commentStore *comments.Store) *Handler {
	return &Handler{sessions: sessions, comments: commentStore}
}

// Register attaches all routes to the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/documents/{docID}", h.GetDocument).Methods(http.MethodGet)
	r.HandleFunc("/documents/{docID}/history", h.GetHistory).Methods(http.MethodGet)
	r.HandleFunc("/documents/{docID}/comments", h.ListComments).Methods(http.MethodGet)
	r.HandleFunc("/documents/{docID}/comments", h.CreateComment).Methods(http.MethodPost)
	r.HandleFunc("/documents/{docID}/suggestions", h.ListSuggestions).Methods(http.MethodGet)
	r.HandleFunc("/documents/{docID}/suggestions", h.CreateSuggestion).Methods(http.MethodPost)
	r.HandleFunc("/comments/{id}/replies", h.ReplyToComment).Methods(http.MethodPost)
	r.HandleFunc("/comments/{id}/resolve", h.ResolveComment).Methods(http.MethodPost)
	r.HandleFunc("/suggestions/{id}/replies", h.ReplyToSuggestion).Methods(http.MethodPost)
	r.HandleFunc("/suggestions/{id}/accept", h.AcceptSuggestion).Methods(http.MethodPost)
	r.HandleFunc("/suggestions/{id}/reject", h.RejectSuggestion).Methods(http.MethodPost)
	r.HandleFunc("/search", h.Search).Methods(http.MethodPost)
}

// GetDocument handles GET /documents/{docID}.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["docID"]
	content, err := h.sessions.Content(docID)
	if err != nil {
		writeError(w, err)
		return
	}
	title, _ := h.sessions.Title(docID)
	version, _ := h.sessions.Version(docID)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":            docID,
		"title":         title,
		"content":       content,
		"version":       version,
		"collaborators": h.sessions.Collaborators(docID),
	})
}

// GetHistory handles GET /documents/{docID}/history. Operations come back
// oldest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["docID"]
	if _, err := h.sessions.Version(docID); err != nil {
		writeError(w, err)
		return
	}
	ops := h.sessions.History(docID)
	if ops == nil {
		ops = []ot.Operation{}
	}
	writeJSON(w, http.StatusOK, ops)
}

type commentInput struct {
	ThreadID     string   `json:"threadId"`
	AuthorID     string   `json:"authorId"`
	AuthorName   string   `json:"authorName"`
	Content      string   `json:"content"`
	SelectedText string   `json:"selectedText"`
	Position     ot.Range `json:"position"`
}

// CreateComment handles POST /documents/{docID}/comments.
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["docID"]
	var in commentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	c, err := h.comments.AddComment(docID, in.ThreadID, in.AuthorID, in.AuthorName, in.Content, in.SelectedText, in.Position)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ListComments handles GET /documents/{docID}/comments.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.comments.CommentsForDocument(mux.Vars(r)["docID"]))
}

type suggestionInput struct {
	commentInput
	SuggestedText string `json:"suggestedText"`
}

// CreateSuggestion handles POST /documents/{docID}/suggestions.
func (h *Handler) CreateSuggestion(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["docID"]
	var in suggestionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	sg, err := h.comments.AddSuggestion(docID, in.ThreadID, in.AuthorID, in.AuthorName, in.Content, in.SuggestedText, in.SelectedText, in.Position)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sg)
}

// ListSuggestions handles GET /documents/{docID}/suggestions.
func (h *Handler) ListSuggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.comments.SuggestionsForDocument(mux.Vars(r)["docID"]))
}

type replyInput struct {
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Content    string `json:"content"`
}

// ReplyToComment handles POST /comments/{id}/replies.
func (h *Handler) ReplyToComment(w http.ResponseWriter, r *http.Request) {
	var in replyInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	reply, err := h.comments.ReplyToComment(mux.Vars(r)["id"], in.AuthorID, in.AuthorName, in.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

// ReplyToSuggestion handles POST /suggestions/{id}/replies.
func (h *Handler) ReplyToSuggestion(w http.ResponseWriter, r *http.Request) {
	var in replyInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	reply, err := h.comments.ReplyToSuggestion(mux.Vars(r)["id"], in.AuthorID, in.AuthorName, in.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

// ResolveComment handles POST /comments/{id}/resolve. The resolving user
// comes from the `user` query parameter; only the author may resolve.
func (h *Handler) ResolveComment(w http.ResponseWriter, r *http.Request) {
	if err := h.comments.ResolveComment(mux.Vars(r)["id"], r.URL.Query().Get("user")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AcceptSuggestion handles POST /suggestions/{id}/accept.
func (h *Handler) AcceptSuggestion(w http.ResponseWriter, r *http.Request) {
	if err := h.comments.AcceptSuggestion(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RejectSuggestion handles POST /suggestions/{id}/reject.
func (h *Handler) RejectSuggestion(w http.ResponseWriter, r *http.Request) {
	if err := h.comments.RejectSuggestion(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchInput struct {
	Query       string                `json:"query"`
	DocumentIDs []string              `json:"documentIds"`
	Authors     []string              `json:"authors"`
	Types       []comments.ResultType `json:"types"`
	Statuses    []comments.Status     `json:"statuses"`
	From        *time.Time            `json:"from"`
	To          *time.Time            `json:"to"`
	SortBy      comments.SortKey      `json:"sortBy"`
	SortOrder   comments.SortOrder    `json:"sortOrder"`
}

// Search handles POST /search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var in searchInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	filters := comments.Filters{
		Query:       in.Query,
		DocumentIDs: in.DocumentIDs,
		Authors:     in.Authors,
		Types:       in.Types,
		Statuses:    in.Statuses,
		SortBy:      in.SortBy,
		SortOrder:   in.SortOrder,
	}
	if in.From != nil || in.To != nil {
		dr := &comments.DateRange{}
		if in.From != nil {
			dr.From = *in.From
		}
		if in.To != nil {
			dr.To = *in.To
		}
		filters.DateRange = dr
	}
	results := h.comments.Search(filters)
	if results == nil {
		results = []comments.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, comments.ErrNotFound),
		errors.Is(err, comments.ErrThreadNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, comments.ErrNotAuthor):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, comments.ErrTerminalStatus):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
