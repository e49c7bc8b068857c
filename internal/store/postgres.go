package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Agents

func (s *PostgresStore) InsertAgent(ctx context.Context, agent Agent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, display_name, role, avatar, secret_hash)
		VALUES ($1, $2, $3, $4, $5)
	`, agent.ID, agent.DisplayName, agent.Role, agent.Avatar, agent.SecretHash)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	var agent Agent
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, role, avatar, secret_hash, created_at
		FROM agents WHERE id=$1
	`, agentID).Scan(&agent.ID, &agent.DisplayName, &agent.Role, &agent.Avatar, &agent.SecretHash, &agent.CreatedAt)
	if err != nil {
		return Agent{}, err
	}
	return agent, nil
}

func (s *PostgresStore) GetAgentByName(ctx context.Context, displayName string) (Agent, error) {
	var agent Agent
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, role, avatar, secret_hash, created_at
		FROM agents WHERE display_name=$1
	`, displayName).Scan(&agent.ID, &agent.DisplayName, &agent.Role, &agent.Avatar, &agent.SecretHash, &agent.CreatedAt)
	if err != nil {
		return Agent{}, err
	}
	return agent, nil
}

func (s *PostgresStore) ListAgentIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM agents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list agent ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan agent id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent ids: %w", err)
	}
	return ids, nil
}

// Suggestions

const suggestionColumns = `
	id, source_agent_id, kind, description, status,
	assignee_id, assignee_name, assignee_avatar, assignee_role,
	created_at, terminated_at
`

func scanSuggestion(row interface{ Scan(...any) error }) (Suggestion, error) {
	var (
		item       Suggestion
		source     sql.NullString
		assigneeID sql.NullString
		name       string
		avatar     string
		role       string
		terminated sql.NullTime
	)
	err := row.Scan(
		&item.ID, &source, &item.Kind, &item.Description, &item.Status,
		&assigneeID, &name, &avatar, &role,
		&item.CreatedAt, &terminated,
	)
	if err != nil {
		return Suggestion{}, err
	}
	if source.Valid {
		item.SourceAgentID = &source.String
	}
	if assigneeID.Valid {
		item.Assignee = &AgentRef{ID: assigneeID.String, DisplayName: name, Avatar: avatar, Role: role}
	}
	if terminated.Valid {
		item.TerminatedAt = &terminated.Time
	}
	return item, nil
}

func (s *PostgresStore) InsertSuggestion(ctx context.Context, item Suggestion) (Suggestion, error) {
	var source any
	if item.SourceAgentID != nil {
		source = *item.SourceAgentID
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO suggestions (id, source_agent_id, kind, description, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING `+suggestionColumns, item.ID, source, item.Kind, item.Description)
	created, err := scanSuggestion(row)
	if err != nil {
		return Suggestion{}, fmt.Errorf("insert suggestion: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetSuggestion(ctx context.Context, suggestionID string) (Suggestion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+suggestionColumns+` FROM suggestions WHERE id=$1`, suggestionID)
	return scanSuggestion(row)
}

func (s *PostgresStore) ListSuggestions(ctx context.Context, filter SuggestionFilter) ([]Suggestion, error) {
	// createdAt ascending with id as tiebreak keeps pagination stable.
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+suggestionColumns+`
		FROM suggestions
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR kind = $2)
		ORDER BY created_at, id
	`, filter.Status, filter.Kind)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	items := make([]Suggestion, 0)
	for rows.Next() {
		item, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) AssignSuggestion(ctx context.Context, suggestionID string, assignee AgentRef) (Suggestion, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE suggestions
		SET assignee_id=$2, assignee_name=$3, assignee_avatar=$4, assignee_role=$5
		WHERE id=$1
		RETURNING `+suggestionColumns, suggestionID, assignee.ID, assignee.DisplayName, assignee.Avatar, assignee.Role)
	return scanSuggestion(row)
}

// TerminateSuggestion moves a pending suggestion to its terminal status and
// appends the matching history row in the same transaction. Returns
// changed=false without writing anything when the suggestion is already
// terminal; sql.ErrNoRows when it does not exist.
func (s *PostgresStore) TerminateSuggestion(ctx context.Context, suggestionID, outcome, details string) (Suggestion, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Suggestion{}, false, fmt.Errorf("begin terminate tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		UPDATE suggestions
		SET status=$2, terminated_at=NOW()
		WHERE id=$1 AND status='pending'
		RETURNING `+suggestionColumns, suggestionID, outcome)
	item, err := scanSuggestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish missing from already terminal.
		current, getErr := s.GetSuggestion(ctx, suggestionID)
		if getErr != nil {
			return Suggestion{}, false, getErr
		}
		return current, false, nil
	}
	if err != nil {
		return Suggestion{}, false, fmt.Errorf("terminate suggestion: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO history_entries (suggestion_id, action, details)
		VALUES ($1, $2, $3)
	`, suggestionID, outcome, details); err != nil {
		return Suggestion{}, false, fmt.Errorf("record history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Suggestion{}, false, fmt.Errorf("commit terminate tx: %w", err)
	}
	return item, true, nil
}

// Collaboration events

func (s *PostgresStore) InsertEvent(ctx context.Context, event CollaborationEvent) (CollaborationEvent, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO collaboration_events (id, suggestion_id, agent_id, action, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq, created_at
	`, event.ID, event.SuggestionID, event.AgentID, event.Action, event.Comment).Scan(&event.Seq, &event.CreatedAt)
	if err != nil {
		return CollaborationEvent{}, fmt.Errorf("insert collaboration event: %w", err)
	}
	return event, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, suggestionID string) ([]CollaborationEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, suggestion_id, agent_id, action, comment, created_at
		FROM collaboration_events
		WHERE suggestion_id=$1
		ORDER BY created_at, seq
	`, suggestionID)
	if err != nil {
		return nil, fmt.Errorf("list collaboration events: %w", err)
	}
	defer rows.Close()

	items := make([]CollaborationEvent, 0)
	for rows.Next() {
		var item CollaborationEvent
		if err := rows.Scan(&item.Seq, &item.ID, &item.SuggestionID, &item.AgentID, &item.Action, &item.Comment, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan collaboration event: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collaboration events: %w", err)
	}
	return items, nil
}

// Messages

func (s *PostgresStore) InsertMessage(ctx context.Context, message Message) (Message, error) {
	var parent any
	if message.ParentID != nil {
		parent = *message.ParentID
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, suggestion_id, agent_id, parent_id, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, message.ID, message.SuggestionID, message.AgentID, parent, message.Content).Scan(&message.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return message, nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, suggestionID, messageID string) (Message, error) {
	var (
		item   Message
		parent sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, suggestion_id, agent_id, parent_id, content, created_at
		FROM messages
		WHERE suggestion_id=$1 AND id=$2
	`, suggestionID, messageID).Scan(&item.ID, &item.SuggestionID, &item.AgentID, &parent, &item.Content, &item.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	if parent.Valid {
		item.ParentID = &parent.String
	}
	return item, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, suggestionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, suggestion_id, agent_id, parent_id, content, created_at
		FROM messages
		WHERE suggestion_id=$1
		ORDER BY created_at, id
	`, suggestionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		var (
			item   Message
			parent sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.SuggestionID, &item.AgentID, &parent, &item.Content, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if parent.Valid {
			item.ParentID = &parent.String
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}

// History ledger

func (s *PostgresStore) ListHistory(ctx context.Context, suggestionID string) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, suggestion_id, action, details, created_at
		FROM history_entries
		WHERE ($1 = '' OR suggestion_id = $1)
		ORDER BY created_at, id
	`, suggestionID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	items := make([]HistoryEntry, 0)
	for rows.Next() {
		var item HistoryEntry
		if err := rows.Scan(&item.ID, &item.SuggestionID, &item.Action, &item.Details, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return items, nil
}

// Notifications

func (s *PostgresStore) InsertNotification(ctx context.Context, notification Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_agent_id, message)
		VALUES ($1, $2, $3)
	`, notification.ID, notification.RecipientAgentID, notification.Message)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, recipientAgentID string, unreadOnly bool) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient_agent_id, message, is_read, created_at
		FROM notifications
		WHERE recipient_agent_id=$1 AND ($2 = FALSE OR is_read = FALSE)
		ORDER BY created_at, id
	`, recipientAgentID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var item Notification
		if err := rows.Scan(&item.ID, &item.RecipientAgentID, &item.Message, &item.IsRead, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

// MarkNotificationRead is idempotent: re-marking a read notification is a
// successful no-op. Returns false only when the id does not exist.
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, notificationID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read=TRUE WHERE id=$1
	`, notificationID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return affected > 0, nil
}

// Watches

func (s *PostgresStore) AddWatch(ctx context.Context, suggestionID, agentID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watches (suggestion_id, agent_id)
		VALUES ($1, $2)
		ON CONFLICT (suggestion_id, agent_id) DO NOTHING
	`, suggestionID, agentID)
	if err != nil {
		return fmt.Errorf("add watch: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveWatch(ctx context.Context, suggestionID, agentID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM watches WHERE suggestion_id=$1 AND agent_id=$2
	`, suggestionID, agentID)
	if err != nil {
		return fmt.Errorf("remove watch: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListWatchers(ctx context.Context, suggestionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id FROM watches WHERE suggestion_id=$1 ORDER BY created_at, agent_id
	`, suggestionID)
	if err != nil {
		return nil, fmt.Errorf("list watchers: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan watcher: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watchers: %w", err)
	}
	return ids, nil
}

// SummaryCounts returns pending, applied and rejected suggestion totals for
// the dashboard summary panel.
func (s *PostgresStore) SummaryCounts(ctx context.Context) (int, int, int, error) {
	var pending, applied, rejected int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status='pending'),
			COUNT(*) FILTER (WHERE status='applied'),
			COUNT(*) FILTER (WHERE status='rejected')
		FROM suggestions
	`).Scan(&pending, &applied, &rejected)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("summary counts: %w", err)
	}
	return pending, applied, rejected, nil
}
