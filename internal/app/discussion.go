package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"concord/engine/internal/search"
	"concord/engine/internal/store"
	"concord/engine/internal/util"
)

type PostMessageInput struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parentId"`
}

// MessageNode is one message with its replies nested beneath it.
type MessageNode struct {
	ID           string        `json:"id"`
	SuggestionID string        `json:"suggestionId"`
	AgentID      string        `json:"agentId"`
	ParentID     *string       `json:"parentId,omitempty"`
	Content      string        `json:"content"`
	CreatedAt    time.Time     `json:"timestamp"`
	Replies      []MessageNode `json:"replies"`
}

func (s *Service) PostMessage(ctx context.Context, suggestionID string, actor Session, input PostMessageInput) (store.Message, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return store.Message{}, validationError("content is required")
	}

	if _, err := s.store.GetSuggestion(ctx, suggestionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Message{}, unknownSuggestion(suggestionID)
		}
		return store.Message{}, err
	}

	var parentID *string
	if input.ParentID != nil && strings.TrimSpace(*input.ParentID) != "" {
		candidate := strings.TrimSpace(*input.ParentID)
		// The lookup is scoped to the suggestion, so a parent that lives in a
		// different discussion is rejected the same way as a missing one.
		if _, err := s.store.GetMessage(ctx, suggestionID, candidate); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.Message{}, unknownParent(candidate)
			}
			return store.Message{}, err
		}
		parentID = &candidate
	}

	message, err := s.store.InsertMessage(ctx, store.Message{
		ID:           util.NewID("msg"),
		SuggestionID: suggestionID,
		AgentID:      actor.AgentID,
		ParentID:     parentID,
		Content:      content,
	})
	if err != nil {
		return store.Message{}, err
	}

	if err := s.store.AddWatch(ctx, suggestionID, actor.AgentID); err != nil {
		log.Printf("watch poster of %s: %v", suggestionID, err)
	}
	s.notifyWatchers(ctx, suggestionID, "message:"+message.ID, actor.AgentID,
		actor.AgentName+" replied on suggestion "+suggestionID)

	if s.search != nil {
		s.search.IndexMessage(search.MessageRecord{
			ID:           message.ID,
			SuggestionID: message.SuggestionID,
			AgentID:      message.AgentID,
			Content:      message.Content,
		})
	}

	return message, nil
}

// ListMessageTree returns the full discussion as a forest of root messages
// with replies nested to arbitrary depth, oldest first at every level.
func (s *Service) ListMessageTree(ctx context.Context, suggestionID string) ([]MessageNode, error) {
	if _, err := s.store.GetSuggestion(ctx, suggestionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, unknownSuggestion(suggestionID)
		}
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	return buildMessageTree(messages), nil
}

func buildMessageTree(messages []store.Message) []MessageNode {
	known := make(map[string]bool, len(messages))
	for _, m := range messages {
		known[m.ID] = true
	}

	children := make(map[string][]store.Message)
	var roots []store.Message
	for _, m := range messages {
		if m.ParentID == nil || !known[*m.ParentID] {
			roots = append(roots, m)
			continue
		}
		children[*m.ParentID] = append(children[*m.ParentID], m)
	}

	var attach func(m store.Message) MessageNode
	attach = func(m store.Message) MessageNode {
		node := MessageNode{
			ID:           m.ID,
			SuggestionID: m.SuggestionID,
			AgentID:      m.AgentID,
			ParentID:     m.ParentID,
			Content:      m.Content,
			CreatedAt:    m.CreatedAt,
			Replies:      []MessageNode{},
		}
		for _, child := range children[m.ID] {
			node.Replies = append(node.Replies, attach(child))
		}
		return node
	}

	tree := make([]MessageNode, 0, len(roots))
	for _, root := range roots {
		tree = append(tree, attach(root))
	}
	return tree
}
