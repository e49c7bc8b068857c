package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultSuggestion ResultType = "suggestion"
	ResultMessage    ResultType = "message"
	ResultDecision   ResultType = "decision"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type         ResultType `json:"type"`
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Snippet      string     `json:"snippet"`
	SuggestionID string     `json:"suggestionId"`
	Kind         string     `json:"kind,omitempty"`
	Status       string     `json:"status,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	FilterKind string
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexSuggestion(s SuggestionRecord) error
	IndexMessage(m MessageRecord) error
	IndexDecision(d DecisionRecord) error
}

// SuggestionRecord is the data we index for a suggestion.
type SuggestionRecord struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// MessageRecord is the data we index for a discussion message.
type MessageRecord struct {
	ID           string `json:"id"`
	SuggestionID string `json:"suggestionId"`
	AgentID      string `json:"agentId"`
	Content      string `json:"content"`
}

// DecisionRecord is the data we index for a history ledger entry.
type DecisionRecord struct {
	ID           string `json:"id"`
	SuggestionID string `json:"suggestionId"`
	Outcome      string `json:"outcome"`
	Details      string `json:"details"`
}
