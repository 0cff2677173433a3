package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chathub/internal/apperr"
	"chathub/internal/logger"
	"chathub/internal/repository/db"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CreateConversation creates a new conversation for a user
func (p *PostgresStore) CreateConversation(userID, title string) (*db.Conversation, error) {
	convID := uuid.New().String()
	var createdAt, updatedAt time.Time

	query := `
	INSERT INTO conversations (id, user_id, title)
	VALUES ($1, $2, $3)
	RETURNING id, created_at, updated_at
	`

	err := p.conn.QueryRow(query, convID, userID, title).Scan(&convID, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("error creating conversation: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"conversation_id": convID, "user_id": userID}).Info("Created new conversation")

	return &db.Conversation{
		ID:        convID,
		UserID:    userID,
		Title:     title,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// ListConversations retrieves all conversations for a user, most
// recently updated first.
func (p *PostgresStore) ListConversations(userID string) ([]db.Conversation, error) {
	query := `
	SELECT id, user_id, title, created_at, updated_at
	FROM conversations
	WHERE user_id = $1
	ORDER BY updated_at DESC
	`

	rows, err := p.conn.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}
	defer rows.Close()

	var conversations []db.Conversation
	for rows.Next() {
		var conv db.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}

	return conversations, rows.Err()
}

// GetConversation retrieves a specific conversation
func (p *PostgresStore) GetConversation(convID string) (*db.Conversation, error) {
	var conv db.Conversation
	query := `
	SELECT id, user_id, title, created_at, updated_at
	FROM conversations
	WHERE id = $1
	`

	err := p.conn.QueryRow(query, convID).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: conversation %s", apperr.ErrNotFound, convID)
		}
		return nil, fmt.Errorf("error retrieving conversation: %w", err)
	}

	return &conv, nil
}

// RenameConversation sets an explicit title on a conversation.
func (p *PostgresStore) RenameConversation(convID, title string) error {
	query := `UPDATE conversations SET title = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	res, err := p.conn.Exec(query, title, convID)
	if err != nil {
		return fmt.Errorf("error renaming conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: conversation %s", apperr.ErrNotFound, convID)
	}

	logger.Log.WithFields(logrus.Fields{"conversation_id": convID, "title": title}).Info("Renamed conversation")
	return nil
}

// DeleteConversation deletes a conversation; its messages cascade.
func (p *PostgresStore) DeleteConversation(convID string) error {
	res, err := p.conn.Exec(`DELETE FROM conversations WHERE id = $1`, convID)
	if err != nil {
		return fmt.Errorf("error deleting conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: conversation %s", apperr.ErrNotFound, convID)
	}

	logger.Log.WithField("conversation_id", convID).Info("Deleted conversation")
	return nil
}
