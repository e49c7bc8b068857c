package store

import "time"

// Suggestion lifecycle states. Applied and rejected are terminal.
const (
	StatusPending  = "pending"
	StatusApplied  = "applied"
	StatusRejected = "rejected"
)

// Collaboration event actions. The four vote actions feed consensus;
// endorse and comment are commentary only.
const (
	ActionEndorse    = "endorse"
	ActionComment    = "comment"
	ActionVoteUp     = "vote-up"
	ActionVoteDown   = "vote-down"
	ActionRejectVote = "reject-vote"
	ActionApplyVote  = "apply-vote"
)

type Agent struct {
	ID          string
	DisplayName string
	Role        string
	Avatar      string
	SecretHash  string
	CreatedAt   time.Time
}

// AgentRef is the informational assignment payload carried on a suggestion.
type AgentRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
	Role        string `json:"role,omitempty"`
}

type Suggestion struct {
	ID            string
	SourceAgentID *string
	Kind          string
	Description   string
	Status        string
	Assignee      *AgentRef
	CreatedAt     time.Time
	TerminatedAt  *time.Time
}

func (s Suggestion) Terminal() bool {
	return s.Status == StatusApplied || s.Status == StatusRejected
}

// CollaborationEvent rows are append-only. Seq is assigned by the store and
// breaks timestamp ties when picking an agent's latest vote.
type CollaborationEvent struct {
	Seq          int64     `json:"seq"`
	ID           string    `json:"id"`
	SuggestionID string    `json:"suggestionId"`
	AgentID      string    `json:"agentId"`
	Action       string    `json:"action"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (e CollaborationEvent) IsVote() bool {
	switch e.Action {
	case ActionVoteUp, ActionVoteDown, ActionRejectVote, ActionApplyVote:
		return true
	}
	return false
}

type Message struct {
	ID           string    `json:"id"`
	SuggestionID string    `json:"suggestionId"`
	AgentID      string    `json:"agentId"`
	ParentID     *string   `json:"parentId,omitempty"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"timestamp"`
}

type HistoryEntry struct {
	ID           int64     `json:"id"`
	SuggestionID string    `json:"suggestionId"`
	Action       string    `json:"action"`
	Details      string    `json:"details,omitempty"`
	CreatedAt    time.Time `json:"timestamp"`
}

type Notification struct {
	ID               string    `json:"id"`
	RecipientAgentID string    `json:"recipientAgentId"`
	Message          string    `json:"message"`
	IsRead           bool      `json:"read"`
	CreatedAt        time.Time `json:"createdAt"`
}

type SuggestionFilter struct {
	Status string
	Kind   string
}
