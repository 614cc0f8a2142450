package comments

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"collabdoc/pkg/ot"
)

// ResultType identifies what kind of item a search result came from.
type ResultType string

const (
	ResultComment    ResultType = "comment"
	ResultSuggestion ResultType = "suggestion"
	ResultReply      ResultType = "reply"
)

// SortKey selects the result ordering.
type SortKey string

const (
	SortRelevance SortKey = "relevance"
	SortDate      SortKey = "date"
	SortAuthor    SortKey = "author"
	SortDocument  SortKey = "document"
)

// SortOrder toggles ascending/descending independently of the key.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// DateRange bounds CreatedAt; a zero From or To leaves that side open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Filters are ANDed together; an empty slice leaves that dimension
// unconstrained.
type Filters struct {
	Query       string
	DocumentIDs []string
	Authors     []string
	Types       []ResultType
	Statuses    []Status
	DateRange   *DateRange
	SortBy      SortKey
	SortOrder   SortOrder
}

// Result is one search hit. Replies carry their parent's anchor and status.
type Result struct {
	Type          ResultType `json:"type"`
	ID            string     `json:"id"`
	ParentID      string     `json:"parentId,omitempty"`
	ThreadID      string     `json:"threadId"`
	DocumentID    string     `json:"documentId"`
	DocumentTitle string     `json:"documentTitle"`
	AuthorID      string     `json:"authorId"`
	AuthorName    string     `json:"authorName"`
	Content       string     `json:"content"`
	Highlighted   string     `json:"highlighted"`
	Context       string     `json:"context"`
	Status        Status     `json:"status"`
	Score         int        `json:"score"`
	Anchor        ot.Range   `json:"position"`
	CreatedAt     time.Time  `json:"createdAt"`
}

const contextRadius = 50

// Search scans every comment, suggestion and reply against the filters and
// returns scored, highlighted results. The scan is stateless and recomputed
// per call; nothing is indexed ahead of time.
func (s *Store) Search(f Filters) []Result {
	s.mu.RLock()
	candidates := s.collect()
	s.mu.RUnlock()

	var results []Result
	for _, r := range candidates {
		if !matchesFilters(r, f) {
			continue
		}
		if f.Query != "" {
			if !matchesQuery(r.Content, f.Query) {
				continue
			}
			r.Score = scoreText(r.Content, f.Query)
			r.Highlighted = highlight(r.Content, f.Query)
		} else {
			r.Highlighted = r.Content
		}
		r.DocumentTitle = s.documentTitle(r.DocumentID)
		r.Context = s.contextWindow(r.DocumentID, r.Anchor)
		results = append(results, r)
	}

	sortResults(results, f.SortBy, f.SortOrder)
	return results
}

func (s *Store) collect() []Result {
	var out []Result
	for _, c := range s.comments {
		out = append(out, Result{
			Type:       ResultComment,
			ID:         c.ID,
			ThreadID:   c.ThreadID,
			DocumentID: c.DocumentID,
			AuthorID:   c.AuthorID,
			AuthorName: c.AuthorName,
			Content:    c.Content,
			Status:     c.Status,
			Anchor:     c.Anchor,
			CreatedAt:  c.CreatedAt,
		})
		for _, rp := range c.Replies {
			out = append(out, replyResult(rp, c.ID, c.ThreadID, c.DocumentID, c.Status, c.Anchor))
		}
	}
	for _, sg := range s.suggestions {
		out = append(out, Result{
			Type:       ResultSuggestion,
			ID:         sg.ID,
			ThreadID:   sg.ThreadID,
			DocumentID: sg.DocumentID,
			AuthorID:   sg.AuthorID,
			AuthorName: sg.AuthorName,
			Content:    sg.Content,
			Status:     sg.Status,
			Anchor:     sg.Anchor,
			CreatedAt:  sg.CreatedAt,
		})
		for _, rp := range sg.Replies {
			out = append(out, replyResult(rp, sg.ID, sg.ThreadID, sg.DocumentID, sg.Status, sg.Anchor))
		}
	}
	// Stable scan order so equal sort keys come out deterministically.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func replyResult(rp Reply, parentID, threadID, docID string, parentStatus Status, parentAnchor ot.Range) Result {
	return Result{
		Type:       ResultReply,
		ID:         rp.ID,
		ParentID:   parentID,
		ThreadID:   threadID,
		DocumentID: docID,
		AuthorID:   rp.AuthorID,
		AuthorName: rp.AuthorName,
		Content:    rp.Content,
		Status:     parentStatus,
		Anchor:     parentAnchor,
		CreatedAt:  rp.CreatedAt,
	}
}

func matchesFilters(r Result, f Filters) bool {
	if len(f.DocumentIDs) > 0 && !containsString(f.DocumentIDs, r.DocumentID) {
		return false
	}
	if len(f.Authors) > 0 && !containsString(f.Authors, r.AuthorID) {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if t == r.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if st == r.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.DateRange != nil {
		if !f.DateRange.From.IsZero() && r.CreatedAt.Before(f.DateRange.From) {
			return false
		}
		if !f.DateRange.To.IsZero() && r.CreatedAt.After(f.DateRange.To) {
			return false
		}
	}
	return true
}

var phraseRe = regexp.MustCompile(`"([^"]*)"`)

// matchesQuery implements the query language: quoted exact phrases must all
// match (plus any leftover bare terms), AND/OR joins are mutually exclusive
// with AND taking precedence when both appear, and the default requires
// every whitespace-split term. All matching is case-insensitive substring.
func matchesQuery(text, query string) bool {
	t := strings.ToLower(text)
	q := strings.TrimSpace(query)

	if phrases := phraseRe.FindAllStringSubmatch(q, -1); len(phrases) > 0 {
		for _, m := range phrases {
			if m[1] != "" && !strings.Contains(t, strings.ToLower(m[1])) {
				return false
			}
		}
		rest := strings.TrimSpace(phraseRe.ReplaceAllString(q, " "))
		return containsAllTerms(t, rest)
	}

	if strings.Contains(q, " AND ") {
		for _, part := range strings.Split(q, " AND ") {
			if !strings.Contains(t, strings.ToLower(strings.TrimSpace(part))) {
				return false
			}
		}
		return true
	}
	if strings.Contains(q, " OR ") {
		for _, part := range strings.Split(q, " OR ") {
			if strings.Contains(t, strings.ToLower(strings.TrimSpace(part))) {
				return true
			}
		}
		return false
	}
	return containsAllTerms(t, q)
}

func containsAllTerms(loweredText, query string) bool {
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if !strings.Contains(loweredText, term) {
			return false
		}
	}
	return true
}

// scoreText implements the relevance formula: +100 for containing the full
// query, +10 per matching term, +50 if the text starts with the query.
func scoreText(text, query string) int {
	t := strings.ToLower(text)
	q := strings.ToLower(strings.TrimSpace(query))
	score := 0
	if strings.Contains(t, q) {
		score += 100
	}
	for _, term := range strings.Fields(q) {
		if strings.Contains(t, strings.Trim(term, `"`)) {
			score += 10
		}
	}
	if strings.HasPrefix(t, q) {
		score += 50
	}
	return score
}

// highlight wraps each matched term in <mark> tags. One combined pattern
// keeps already-inserted tags from being rewrapped.
func highlight(text, query string) string {
	q := strings.ReplaceAll(strings.TrimSpace(query), `"`, "")
	terms := strings.Fields(q)
	if len(terms) == 0 {
		return text
	}
	quoted := make([]string, 0, len(terms))
	seen := make(map[string]bool)
	for _, term := range terms {
		lower := strings.ToLower(term)
		if lower == "and" || lower == "or" || seen[lower] {
			continue
		}
		seen[lower] = true
		quoted = append(quoted, regexp.QuoteMeta(term))
	}
	if len(quoted) == 0 {
		return text
	}
	re, err := regexp.Compile("(?i)(" + strings.Join(quoted, "|") + ")")
	if err != nil {
		return text
	}
	return re.ReplaceAllString(text, "<mark>$1</mark>")
}

// contextWindow pulls a fixed-radius excerpt around the anchor from the
// source document.
func (s *Store) contextWindow(docID string, anchor ot.Range) string {
	content, err := s.docs.Content(docID)
	if err != nil {
		return ""
	}
	start := anchor.Start - contextRadius
	if start < 0 {
		start = 0
	}
	end := anchor.End + contextRadius
	if end > len(content) {
		end = len(content)
	}
	if start >= end {
		return ""
	}
	return content[start:end]
}

func (s *Store) documentTitle(docID string) string {
	title, err := s.docs.Title(docID)
	if err != nil {
		return ""
	}
	return title
}

func sortResults(results []Result, key SortKey, order SortOrder) {
	if key == "" {
		key = SortRelevance
	}
	if order == "" {
		if key == SortRelevance {
			order = SortDesc
		} else {
			order = SortAsc
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		var less bool
		switch key {
		case SortDate:
			less = a.CreatedAt.Before(b.CreatedAt)
		case SortAuthor:
			less = a.AuthorName < b.AuthorName
		case SortDocument:
			less = a.DocumentTitle < b.DocumentTitle
		default:
			less = a.Score < b.Score
		}
		if order == SortDesc {
			return !less && !equalKey(a, b, key)
		}
		return less
	})
}

func equalKey(a, b Result, key SortKey) bool {
	switch key {
	case SortDate:
		return a.CreatedAt.Equal(b.CreatedAt)
	case SortAuthor:
		return a.AuthorName == b.AuthorName
	case SortDocument:
		return a.DocumentTitle == b.DocumentTitle
	default:
		return a.Score == b.Score
	}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
