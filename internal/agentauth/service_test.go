package agentauth

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"concord/engine/internal/store"
)

type fakeAgentStore struct {
	agents map[string]store.Agent
}

func newFakeAgentStore() *fakeAgentStore {
	return &fakeAgentStore{agents: make(map[string]store.Agent)}
}

func (f *fakeAgentStore) InsertAgent(_ context.Context, agent store.Agent) error {
	f.agents[agent.DisplayName] = agent
	return nil
}

func (f *fakeAgentStore) GetAgent(_ context.Context, agentID string) (store.Agent, error) {
	for _, agent := range f.agents {
		if agent.ID == agentID {
			return agent, nil
		}
	}
	return store.Agent{}, sql.ErrNoRows
}

func (f *fakeAgentStore) GetAgentByName(_ context.Context, displayName string) (store.Agent, error) {
	agent, ok := f.agents[displayName]
	if !ok {
		return store.Agent{}, sql.ErrNoRows
	}
	return agent, nil
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewService(newFakeAgentStore())
	ctx := context.Background()

	agent, err := svc.Register(ctx, RegisterRequest{
		DisplayName: "Analyzer One",
		Secret:      "super-secret-value",
		Role:        "agent",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if agent.ID == "" {
		t.Fatal("expected agent ID to be assigned")
	}
	if agent.SecretHash == "super-secret-value" {
		t.Fatal("secret must not be stored in the clear")
	}

	authed, err := svc.Authenticate(ctx, "Analyzer One", "super-secret-value")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.ID != agent.ID {
		t.Fatalf("expected agent %s, got %s", agent.ID, authed.ID)
	}

	if _, err := svc.Authenticate(ctx, "Analyzer One", "wrong-secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	svc := NewService(newFakeAgentStore())
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{DisplayName: "Reviewer", Secret: "secret-one"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterRequest{DisplayName: "Reviewer", Secret: "secret-two"}); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(newFakeAgentStore())
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{DisplayName: "", Secret: "long-enough"}); err == nil {
		t.Fatal("expected error for empty display name")
	}
	if _, err := svc.Register(ctx, RegisterRequest{DisplayName: "Short Secret", Secret: "short"}); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestRegisterNormalizesUnknownRole(t *testing.T) {
	svc := NewService(newFakeAgentStore())
	agent, err := svc.Register(context.Background(), RegisterRequest{
		DisplayName: "Mystery",
		Secret:      "secret-value",
		Role:        "overlord",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if agent.Role != "viewer" {
		t.Fatalf("expected unknown role to become viewer, got %q", agent.Role)
	}
}
