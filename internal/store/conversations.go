package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/paperdeck/researcher/internal/models"
	"github.com/paperdeck/researcher/pkg/errs"
)

// CreateConversation starts a new chat thread in a project.
func (s *Store) CreateConversation(ctx context.Context, projectID int64, title string) (*models.Conversation, error) {
	if title == "" {
		title = "New Conversation"
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (project_id, title, created_at) VALUES (?, ?, ?)`,
		projectID, title, now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("conversation id: %w", err)
	}
	return &models.Conversation{ID: id, ProjectID: projectID, Title: title, CreatedAt: now}, nil
}

// GetConversation fetches one conversation by ID.
func (s *Store) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	var c models.Conversation
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, title, created_at FROM conversations WHERE id = ?`, id,
	).Scan(&c.ID, &c.ProjectID, &c.Title, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("conversation %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select conversation: %w", err)
	}
	c.CreatedAt = time.Unix(created, 0).UTC()
	return &c, nil
}

// ListConversations returns a project's conversations, newest first.
func (s *Store) ListConversations(ctx context.Context, projectID int64) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, title, created_at
		 FROM conversations WHERE project_id = ?
		 ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("select conversations: %w", err)
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		var c models.Conversation
		var created int64
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Title, &created); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("conversation %d", id)
	}
	return nil
}

// AddMessage appends one turn to a conversation.
func (s *Store) AddMessage(ctx context.Context, m *models.Message) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, created_at)
		 VALUES (?, ?, ?, ?)`,
		m.ConversationID, m.Role, m.Content, m.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	m.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("message id: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages in order.
func (s *Store) ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		var created int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Timestamp = time.Unix(created, 0).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}
