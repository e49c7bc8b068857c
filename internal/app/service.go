package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"concord/engine/internal/agentauth"
	"concord/engine/internal/auth"
	"concord/engine/internal/config"
	"concord/engine/internal/notify"
	"concord/engine/internal/rbac"
	"concord/engine/internal/search"
	"concord/engine/internal/store"
	"concord/engine/internal/util"
)

type Session struct {
	Token     string
	AgentID   string
	AgentName string
	Role      string
	ExpiresAt time.Time
}

type CreateSuggestionInput struct {
	SourceAgentID string `json:"sourceAgentId"`
	Kind          string `json:"kind"`
	Description   string `json:"description"`
}

type CollaborationInput struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

type AssignInput struct {
	AgentID string `json:"agentId"`
}

type TerminateInput struct {
	Outcome string `json:"outcome"`
}

var allowedActions = map[string]struct{}{
	store.ActionEndorse:    {},
	store.ActionComment:    {},
	store.ActionVoteUp:     {},
	store.ActionVoteDown:   {},
	store.ActionRejectVote: {},
	store.ActionApplyVote:  {},
}

var allowedOutcomes = map[string]struct{}{
	store.StatusApplied:  {},
	store.StatusRejected: {},
}

type dataStore interface {
	GetAgent(ctx context.Context, agentID string) (store.Agent, error)
	ListAgentIDs(ctx context.Context) ([]string, error)
	InsertSuggestion(ctx context.Context, item store.Suggestion) (store.Suggestion, error)
	GetSuggestion(ctx context.Context, suggestionID string) (store.Suggestion, error)
	ListSuggestions(ctx context.Context, filter store.SuggestionFilter) ([]store.Suggestion, error)
	AssignSuggestion(ctx context.Context, suggestionID string, assignee store.AgentRef) (store.Suggestion, error)
	TerminateSuggestion(ctx context.Context, suggestionID, outcome, details string) (store.Suggestion, bool, error)
	InsertEvent(ctx context.Context, event store.CollaborationEvent) (store.CollaborationEvent, error)
	ListEvents(ctx context.Context, suggestionID string) ([]store.CollaborationEvent, error)
	InsertMessage(ctx context.Context, message store.Message) (store.Message, error)
	GetMessage(ctx context.Context, suggestionID, messageID string) (store.Message, error)
	ListMessages(ctx context.Context, suggestionID string) ([]store.Message, error)
	ListHistory(ctx context.Context, suggestionID string) ([]store.HistoryEntry, error)
	InsertNotification(ctx context.Context, notification store.Notification) error
	ListNotifications(ctx context.Context, recipientAgentID string, unreadOnly bool) ([]store.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID string) (bool, error)
	AddWatch(ctx context.Context, suggestionID, agentID string) error
	RemoveWatch(ctx context.Context, suggestionID, agentID string) error
	ListWatchers(ctx context.Context, suggestionID string) ([]string, error)
	SummaryCounts(ctx context.Context) (int, int, int, error)
	Ping(ctx context.Context) error
}

type Service struct {
	cfg    config.Config
	store  dataStore
	agents *agentauth.Service
	guard  notify.Guard
	stream *notify.Stream
	search *search.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, agents *agentauth.Service, guard notify.Guard, stream *notify.Stream, searchService *search.Service) *Service {
	if guard == nil {
		guard = notify.NewMemoryGuard()
	}
	return &Service{
		cfg:    cfg,
		store:  dataStore,
		agents: agents,
		guard:  guard,
		stream: stream,
		search: searchService,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// Sessions

func (s *Service) RegisterAgent(ctx context.Context, req agentauth.RegisterRequest) (store.Agent, error) {
	return s.agents.Register(ctx, req)
}

func (s *Service) Login(ctx context.Context, displayName, secret string) (Session, error) {
	agent, err := s.agents.Authenticate(ctx, displayName, secret)
	if err != nil {
		return Session{}, err
	}

	expiresAt := time.Now().Add(s.cfg.SessionTTL)
	token, err := auth.IssueToken([]byte(s.cfg.SessionSecret), auth.Claims{
		Sub:  agent.ID,
		Name: agent.DisplayName,
		Role: agent.Role,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		AgentID:   agent.ID,
		AgentName: agent.DisplayName,
		Role:      agent.Role,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.SessionSecret), token)
	if err != nil {
		return Session{}, err
	}
	agent, err := s.store.GetAgent(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	return Session{
		AgentID:   agent.ID,
		AgentName: agent.DisplayName,
		Role:      agent.Role,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// Suggestions

type SuggestionView struct {
	ID            string          `json:"id"`
	SourceAgentID *string         `json:"sourceAgentId"`
	Kind          string          `json:"kind"`
	Description   string          `json:"description"`
	Status        string          `json:"status"`
	AssignedAgent *store.AgentRef `json:"assignedAgent,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	TerminatedAt  *time.Time      `json:"terminatedAt,omitempty"`
	Votes         VoteTally       `json:"votes"`
	Verdict       string          `json:"verdict"`
}

func (s *Service) suggestionView(ctx context.Context, item store.Suggestion) (SuggestionView, error) {
	events, err := s.store.ListEvents(ctx, item.ID)
	if err != nil {
		return SuggestionView{}, err
	}
	tally := TallyVotes(events, item.TerminatedAt)
	return SuggestionView{
		ID:            item.ID,
		SourceAgentID: item.SourceAgentID,
		Kind:          item.Kind,
		Description:   item.Description,
		Status:        item.Status,
		AssignedAgent: item.Assignee,
		CreatedAt:     item.CreatedAt,
		TerminatedAt:  item.TerminatedAt,
		Votes:         tally,
		Verdict:       Verdict(tally),
	}, nil
}

func (s *Service) CreateSuggestion(ctx context.Context, input CreateSuggestionInput) (SuggestionView, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return SuggestionView{}, validationError("description is required")
	}
	kind := strings.TrimSpace(input.Kind)
	if kind == "" {
		kind = "general"
	}

	item := store.Suggestion{
		ID:          util.NewID("sug"),
		Kind:        kind,
		Description: description,
	}
	if sourceID := strings.TrimSpace(input.SourceAgentID); sourceID != "" {
		if _, err := s.store.GetAgent(ctx, sourceID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return SuggestionView{}, validationError("sourceAgentId does not reference a known agent")
			}
			return SuggestionView{}, err
		}
		item.SourceAgentID = &sourceID
	}

	created, err := s.store.InsertSuggestion(ctx, item)
	if err != nil {
		return SuggestionView{}, err
	}

	if created.SourceAgentID != nil {
		if err := s.store.AddWatch(ctx, created.ID, *created.SourceAgentID); err != nil {
			log.Printf("watch creator of %s: %v", created.ID, err)
		}
	}

	s.notifyNewSuggestion(ctx, created)
	if s.stream != nil {
		s.stream.PublishSuggestionEvent("created", created.ID)
	}
	if s.search != nil {
		s.search.IndexSuggestion(search.SuggestionRecord{
			ID:          created.ID,
			Kind:        created.Kind,
			Description: created.Description,
			Status:      created.Status,
		})
	}

	return s.suggestionView(ctx, created)
}

func (s *Service) GetSuggestion(ctx context.Context, suggestionID string) (SuggestionView, error) {
	item, err := s.store.GetSuggestion(ctx, suggestionID)
	if errors.Is(err, sql.ErrNoRows) {
		return SuggestionView{}, notFound("suggestion not found")
	}
	if err != nil {
		return SuggestionView{}, err
	}
	return s.suggestionView(ctx, item)
}

func (s *Service) ListSuggestions(ctx context.Context, filter store.SuggestionFilter) ([]SuggestionView, error) {
	items, err := s.store.ListSuggestions(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]SuggestionView, 0, len(items))
	for _, item := range items {
		view, err := s.suggestionView(ctx, item)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) AssignSuggestion(ctx context.Context, suggestionID string, input AssignInput) (SuggestionView, error) {
	agentID := strings.TrimSpace(input.AgentID)
	if agentID == "" {
		return SuggestionView{}, validationError("agentId is required")
	}
	agent, err := s.store.GetAgent(ctx, agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return SuggestionView{}, notFound("agent not found")
	}
	if err != nil {
		return SuggestionView{}, err
	}
	if _, err := s.store.GetSuggestion(ctx, suggestionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SuggestionView{}, unknownSuggestion(suggestionID)
		}
		return SuggestionView{}, err
	}

	// Assignment is informational: it never touches status or consensus.
	updated, err := s.store.AssignSuggestion(ctx, suggestionID, store.AgentRef{
		ID:          agent.ID,
		DisplayName: agent.DisplayName,
		Avatar:      agent.Avatar,
		Role:        agent.Role,
	})
	if err != nil {
		return SuggestionView{}, err
	}
	return s.suggestionView(ctx, updated)
}

func (s *Service) TerminateSuggestion(ctx context.Context, suggestionID, outcome string, actor Session) (SuggestionView, error) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	if _, ok := allowedOutcomes[outcome]; !ok {
		return SuggestionView{}, validationError("outcome must be 'applied' or 'rejected'")
	}

	current, err := s.store.GetSuggestion(ctx, suggestionID)
	if errors.Is(err, sql.ErrNoRows) {
		return SuggestionView{}, notFound("suggestion not found")
	}
	if err != nil {
		return SuggestionView{}, err
	}
	if current.Terminal() {
		return SuggestionView{}, invalidTransition(suggestionID, current.Status)
	}

	events, err := s.store.ListEvents(ctx, suggestionID)
	if err != nil {
		return SuggestionView{}, err
	}
	tally := TallyVotes(events, nil)
	details := fmt.Sprintf("%s by %s · consensus %s (%d up / %d down)",
		outcome, actor.AgentName, Verdict(tally), tally.Upvotes, tally.Downvotes)

	updated, changed, err := s.store.TerminateSuggestion(ctx, suggestionID, outcome, details)
	if err != nil {
		return SuggestionView{}, err
	}
	if !changed {
		// Lost the race to another decision-maker.
		return SuggestionView{}, invalidTransition(suggestionID, updated.Status)
	}

	s.notifyWatchers(ctx, suggestionID, "terminated:"+suggestionID, actor.AgentID,
		fmt.Sprintf("Suggestion %s was %s by %s", suggestionID, outcome, actor.AgentName))
	if s.stream != nil {
		s.stream.PublishSuggestionEvent(outcome, suggestionID)
	}
	if s.search != nil {
		s.search.IndexSuggestion(search.SuggestionRecord{
			ID:          updated.ID,
			Kind:        updated.Kind,
			Description: updated.Description,
			Status:      updated.Status,
		})
		s.search.IndexDecision(search.DecisionRecord{
			ID:           updated.ID,
			SuggestionID: updated.ID,
			Outcome:      outcome,
			Details:      details,
		})
	}

	return s.suggestionView(ctx, updated)
}

// Collaboration log

func (s *Service) AppendCollaboration(ctx context.Context, suggestionID string, actor Session, input CollaborationInput) (store.CollaborationEvent, error) {
	action := strings.ToLower(strings.TrimSpace(input.Action))
	if _, ok := allowedActions[action]; !ok {
		return store.CollaborationEvent{}, validationError("invalid collaboration action")
	}

	item, err := s.store.GetSuggestion(ctx, suggestionID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.CollaborationEvent{}, unknownSuggestion(suggestionID)
	}
	if err != nil {
		return store.CollaborationEvent{}, err
	}

	before, err := s.store.ListEvents(ctx, suggestionID)
	if err != nil {
		return store.CollaborationEvent{}, err
	}
	verdictBefore := Verdict(TallyVotes(before, item.TerminatedAt))

	// Appending after termination is allowed for audit completeness; the
	// frozen consensus filter keeps such events out of the tally.
	event, err := s.store.InsertEvent(ctx, store.CollaborationEvent{
		ID:           util.NewID("evt"),
		SuggestionID: suggestionID,
		AgentID:      actor.AgentID,
		Action:       action,
		Comment:      strings.TrimSpace(input.Comment),
	})
	if err != nil {
		return store.CollaborationEvent{}, err
	}

	if err := s.store.AddWatch(ctx, suggestionID, actor.AgentID); err != nil {
		log.Printf("watch collaborator of %s: %v", suggestionID, err)
	}

	s.notifyWatchers(ctx, suggestionID, "collab:"+event.ID, actor.AgentID,
		fmt.Sprintf("%s posted %s on suggestion %s", actor.AgentName, action, suggestionID))

	if !item.Terminal() {
		verdictAfter := Verdict(TallyVotes(append(before, event), nil))
		if verdictAfter != verdictBefore {
			s.notifyWatchers(ctx, suggestionID, "verdict-flip:"+event.ID, "",
				fmt.Sprintf("Consensus on suggestion %s moved from %s to %s", suggestionID, verdictBefore, verdictAfter))
			if s.stream != nil {
				s.stream.PublishSuggestionEvent("verdict-changed", suggestionID)
			}
		}
	}
	if s.stream != nil {
		s.stream.PublishSuggestionEvent("collaborated", suggestionID)
	}

	return event, nil
}

func (s *Service) ListCollaboration(ctx context.Context, suggestionID string) ([]store.CollaborationEvent, error) {
	if _, err := s.store.GetSuggestion(ctx, suggestionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, unknownSuggestion(suggestionID)
		}
		return nil, err
	}
	return s.store.ListEvents(ctx, suggestionID)
}

// Votes reduces the collaboration log to the latest vote per agent. For a
// terminal suggestion the tally is frozen at the termination timestamp.
func (s *Service) Votes(ctx context.Context, suggestionID string) (VoteTally, error) {
	item, err := s.store.GetSuggestion(ctx, suggestionID)
	if errors.Is(err, sql.ErrNoRows) {
		return VoteTally{}, unknownSuggestion(suggestionID)
	}
	if err != nil {
		return VoteTally{}, err
	}
	events, err := s.store.ListEvents(ctx, suggestionID)
	if err != nil {
		return VoteTally{}, err
	}
	return TallyVotes(events, item.TerminatedAt), nil
}

func (s *Service) Consensus(ctx context.Context, suggestionID string) (string, error) {
	tally, err := s.Votes(ctx, suggestionID)
	if err != nil {
		return "", err
	}
	return Verdict(tally), nil
}

// Watches

func (s *Service) Watch(ctx context.Context, suggestionID, agentID string) error {
	if _, err := s.store.GetSuggestion(ctx, suggestionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return unknownSuggestion(suggestionID)
		}
		return err
	}
	return s.store.AddWatch(ctx, suggestionID, agentID)
}

func (s *Service) Unwatch(ctx context.Context, suggestionID, agentID string) error {
	if _, err := s.store.GetSuggestion(ctx, suggestionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return unknownSuggestion(suggestionID)
		}
		return err
	}
	return s.store.RemoveWatch(ctx, suggestionID, agentID)
}

// Notifications

func (s *Service) Notifications(ctx context.Context, recipientAgentID string, unreadOnly bool) ([]store.Notification, error) {
	return s.store.ListNotifications(ctx, recipientAgentID, unreadOnly)
}

func (s *Service) MarkNotificationRead(ctx context.Context, notificationID string) error {
	found, err := s.store.MarkNotificationRead(ctx, notificationID)
	if err != nil {
		return err
	}
	if !found {
		return notFound("notification not found")
	}
	return nil
}

// notifyNewSuggestion fans a creation alert out to every registered agent
// except the source.
func (s *Service) notifyNewSuggestion(ctx context.Context, item store.Suggestion) {
	agentIDs, err := s.store.ListAgentIDs(ctx)
	if err != nil {
		log.Printf("list agents for notification: %v", err)
		return
	}
	message := fmt.Sprintf("New %s suggestion: %s", item.Kind, item.Description)
	for _, agentID := range agentIDs {
		if item.SourceAgentID != nil && agentID == *item.SourceAgentID {
			continue
		}
		s.emit(ctx, "suggestion-created:"+item.ID, agentID, message)
	}
}

// notifyWatchers alerts every watcher of a suggestion except skipAgentID.
func (s *Service) notifyWatchers(ctx context.Context, suggestionID, eventKey, skipAgentID, message string) {
	watchers, err := s.store.ListWatchers(ctx, suggestionID)
	if err != nil {
		log.Printf("list watchers of %s: %v", suggestionID, err)
		return
	}
	for _, agentID := range watchers {
		if agentID == skipAgentID {
			continue
		}
		s.emit(ctx, eventKey, agentID, message)
	}
}

// emit persists one notification for one recipient, at most once per logical
// event. A guard error counts as first delivery.
func (s *Service) emit(ctx context.Context, eventKey, recipientAgentID, message string) {
	first, err := s.guard.Once(ctx, eventKey+":"+recipientAgentID)
	if err != nil {
		log.Printf("emit guard for %s: %v", eventKey, err)
		first = true
	}
	if !first {
		return
	}
	notification := store.Notification{
		ID:               util.NewID("ntf"),
		RecipientAgentID: recipientAgentID,
		Message:          message,
	}
	if err := s.store.InsertNotification(ctx, notification); err != nil {
		log.Printf("insert notification for %s: %v", recipientAgentID, err)
		return
	}
	if s.stream != nil {
		s.stream.PublishNotification(recipientAgentID, message)
	}
}

// History ledger

func (s *Service) History(ctx context.Context, suggestionID string) ([]store.HistoryEntry, error) {
	return s.store.ListHistory(ctx, suggestionID)
}

// Summary

func (s *Service) Summary(ctx context.Context) (map[string]any, error) {
	pending, applied, rejected, err := s.store.SummaryCounts(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"pending":  pending,
		"applied":  applied,
		"rejected": rejected,
		"total":    pending + applied + rejected,
	}, nil
}

// Search

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}
