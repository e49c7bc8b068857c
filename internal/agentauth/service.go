// Package agentauth registers agents and verifies their shared secrets.
// It only supplies a trusted agent identity; the engine's consensus rules
// never look at credentials.
package agentauth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"concord/engine/internal/rbac"
	"concord/engine/internal/store"
	"concord/engine/internal/util"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNameTaken          = errors.New("display name already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AgentStore is the storage surface this package needs.
type AgentStore interface {
	InsertAgent(ctx context.Context, agent store.Agent) error
	GetAgent(ctx context.Context, agentID string) (store.Agent, error)
	GetAgentByName(ctx context.Context, displayName string) (store.Agent, error)
}

type Service struct {
	store AgentStore
}

func NewService(agentStore AgentStore) *Service {
	return &Service{store: agentStore}
}

type RegisterRequest struct {
	DisplayName string
	Secret      string
	Role        string
	Avatar      string
}

// Register creates an agent with a bcrypt-hashed secret. Roles outside the
// known set collapse to viewer.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (store.Agent, error) {
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		return store.Agent{}, errors.New("display name is required")
	}
	if len(req.Secret) < 8 {
		return store.Agent{}, errors.New("secret must be at least 8 characters")
	}

	if _, err := s.store.GetAgentByName(ctx, name); err == nil {
		return store.Agent{}, ErrNameTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.Agent{}, fmt.Errorf("lookup agent: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Secret), bcrypt.DefaultCost)
	if err != nil {
		return store.Agent{}, fmt.Errorf("hash secret: %w", err)
	}

	agent := store.Agent{
		ID:          util.NewID("agt"),
		DisplayName: name,
		Role:        string(rbac.Normalize(req.Role)),
		Avatar:      strings.TrimSpace(req.Avatar),
		SecretHash:  string(hash),
	}
	if err := s.store.InsertAgent(ctx, agent); err != nil {
		return store.Agent{}, fmt.Errorf("create agent: %w", err)
	}
	return agent, nil
}

// Authenticate verifies a display name / secret pair.
func (s *Service) Authenticate(ctx context.Context, displayName, secret string) (store.Agent, error) {
	agent, err := s.store.GetAgentByName(ctx, strings.TrimSpace(displayName))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Agent{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.Agent{}, fmt.Errorf("lookup agent: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(agent.SecretHash), []byte(secret)) != nil {
		return store.Agent{}, ErrInvalidCredentials
	}
	return agent, nil
}
