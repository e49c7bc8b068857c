package app

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"concord/engine/internal/store"
)

func message(id, suggestionID string, parentID *string, at time.Time) store.Message {
	return store.Message{
		ID:           id,
		SuggestionID: suggestionID,
		AgentID:      "agent-" + id,
		ParentID:     parentID,
		Content:      "message " + id,
		CreatedAt:    at,
	}
}

func strPtr(s string) *string { return &s }

func TestPostMessageRequiresContent(t *testing.T) {
	fs := &fakeStore{
		getSuggestionFn: func(_ context.Context, id string) (store.Suggestion, error) {
			return pendingSuggestion(id), nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.PostMessage(context.Background(), "sug-1", Session{AgentID: "agent-a"}, PostMessageInput{Content: "   "})
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestPostMessageUnknownSuggestion(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.PostMessage(context.Background(), "sug-missing", Session{AgentID: "agent-a"}, PostMessageInput{Content: "hello"})
	assertDomainCode(t, err, "UNKNOWN_SUGGESTION")
}

func TestPostMessageUnknownParent(t *testing.T) {
	fs := &fakeStore{
		getSuggestionFn: func(_ context.Context, id string) (store.Suggestion, error) {
			return pendingSuggestion(id), nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.PostMessage(context.Background(), "sug-1", Session{AgentID: "agent-a"}, PostMessageInput{
		Content:  "reply",
		ParentID: strPtr("msg-missing"),
	})
	assertDomainCode(t, err, "UNKNOWN_PARENT")
}

func TestPostMessageRejectsParentFromOtherSuggestion(t *testing.T) {
	fs := &fakeStore{
		getSuggestionFn: func(_ context.Context, id string) (store.Suggestion, error) {
			return pendingSuggestion(id), nil
		},
		getMessageFn: func(_ context.Context, suggestionID, messageID string) (store.Message, error) {
			// msg-other exists, but under a different suggestion.
			if suggestionID == "sug-other" && messageID == "msg-other" {
				return message("msg-other", "sug-other", nil, time.Now()), nil
			}
			return store.Message{}, sql.ErrNoRows
		},
	}
	svc := newTestService(fs)

	_, err := svc.PostMessage(context.Background(), "sug-1", Session{AgentID: "agent-a"}, PostMessageInput{
		Content:  "reply",
		ParentID: strPtr("msg-other"),
	})
	assertDomainCode(t, err, "UNKNOWN_PARENT")
}

func TestListMessageTreeNestsRepliesThreeLevelsDeep(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fs := &fakeStore{
		getSuggestionFn: func(_ context.Context, id string) (store.Suggestion, error) {
			return pendingSuggestion(id), nil
		},
		listMessagesFn: func(context.Context, string) ([]store.Message, error) {
			return []store.Message{
				message("msg-a", "sug-1", nil, base),
				message("msg-b", "sug-1", strPtr("msg-a"), base.Add(time.Minute)),
				message("msg-c", "sug-1", strPtr("msg-b"), base.Add(2*time.Minute)),
				message("msg-d", "sug-1", strPtr("msg-a"), base.Add(3*time.Minute)),
				message("msg-e", "sug-1", nil, base.Add(4*time.Minute)),
			}, nil
		},
	}
	svc := newTestService(fs)

	tree, err := svc.ListMessageTree(context.Background(), "sug-1")
	if err != nil {
		t.Fatalf("ListMessageTree() error = %v", err)
	}

	if len(tree) != 2 {
		t.Fatalf("expected 2 root messages, got %d", len(tree))
	}
	if tree[0].ID != "msg-a" || tree[1].ID != "msg-e" {
		t.Fatalf("expected roots msg-a then msg-e, got %s then %s", tree[0].ID, tree[1].ID)
	}
	if len(tree[0].Replies) != 2 {
		t.Fatalf("expected 2 replies under msg-a, got %d", len(tree[0].Replies))
	}
	if tree[0].Replies[0].ID != "msg-b" || tree[0].Replies[1].ID != "msg-d" {
		t.Fatalf("expected replies msg-b then msg-d, got %s then %s", tree[0].Replies[0].ID, tree[0].Replies[1].ID)
	}
	deep := tree[0].Replies[0].Replies
	if len(deep) != 1 || deep[0].ID != "msg-c" {
		t.Fatalf("expected msg-c nested at third level, got %+v", deep)
	}
	if len(deep[0].Replies) != 0 {
		t.Fatalf("expected leaf msg-c to have no replies, got %d", len(deep[0].Replies))
	}
}

func TestListMessageTreeEmptyDiscussion(t *testing.T) {
	fs := &fakeStore{
		getSuggestionFn: func(_ context.Context, id string) (store.Suggestion, error) {
			return pendingSuggestion(id), nil
		},
	}
	svc := newTestService(fs)

	tree, err := svc.ListMessageTree(context.Background(), "sug-1")
	if err != nil {
		t.Fatalf("ListMessageTree() error = %v", err)
	}
	if len(tree) != 0 {
		t.Fatalf("expected empty tree, got %d roots", len(tree))
	}
}
