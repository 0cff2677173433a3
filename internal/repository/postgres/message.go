package postgres

import (
	"fmt"
	"time"

	"chathub/internal/apperr"
	"chathub/internal/logger"
	"chathub/internal/repository/db"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AppendMessage inserts a message at the tail of a conversation. The
// per-conversation sequence number is assigned here; msg.ID is
// generated when empty.
func (p *PostgresStore) AppendMessage(conversationID string, msg db.Message) (*db.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	var seq int64
	var createdAt time.Time

	query := `
	INSERT INTO messages (id, conversation_id, seq, role, content, attachment_url, model)
	SELECT $1, $2, COALESCE(MAX(seq), 0) + 1, $3, $4, $5, $6
	FROM messages WHERE conversation_id = $2
	RETURNING seq, created_at
	`

	err := p.conn.QueryRow(query, msg.ID, conversationID, msg.Role, msg.Content, msg.AttachmentURL, msg.Model).Scan(&seq, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("error appending message: %w", err)
	}

	if _, err := p.conn.Exec(`UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = $1`, conversationID); err != nil {
		logger.Log.WithError(err).Warn("Error updating conversation timestamp")
	}

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"message_id":      msg.ID,
		"role":            msg.Role,
		"seq":             seq,
	}).Debug("Appended message")

	msg.ConversationID = conversationID
	msg.Seq = seq
	msg.CreatedAt = createdAt
	return &msg, nil
}

// GetMessages returns a conversation's messages in commit order.
func (p *PostgresStore) GetMessages(conversationID string) ([]db.Message, error) {
	query := `
	SELECT id, conversation_id, seq, role, content, COALESCE(attachment_url, ''), COALESCE(model, ''), created_at
	FROM messages
	WHERE conversation_id = $1
	ORDER BY created_at ASC, seq ASC
	`

	rows, err := p.conn.Query(query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	var messages []db.Message
	for rows.Next() {
		var msg db.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Seq, &msg.Role, &msg.Content, &msg.AttachmentURL, &msg.Model, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// CountMessages returns the number of committed messages in a
// conversation.
func (p *PostgresStore) CountMessages(conversationID string) (int, error) {
	var count int
	err := p.conn.QueryRow(`SELECT COUNT(*) FROM messages WHERE conversation_id = $1`, conversationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting messages: %w", err)
	}
	return count, nil
}

// UpdateMessageContent replaces the content of a single message.
func (p *PostgresStore) UpdateMessageContent(messageID, content string) error {
	res, err := p.conn.Exec(`UPDATE messages SET content = $1 WHERE id = $2`, content, messageID)
	if err != nil {
		return fmt.Errorf("error updating message content: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: message %s", apperr.ErrNotFound, messageID)
	}

	logger.Log.WithField("message_id", messageID).Debug("Updated message content")
	return nil
}

// DeleteMessagesAfter removes every message ordered after afterSeq.
func (p *PostgresStore) DeleteMessagesAfter(conversationID string, afterSeq int64) error {
	res, err := p.conn.Exec(`DELETE FROM messages WHERE conversation_id = $1 AND seq > $2`, conversationID, afterSeq)
	if err != nil {
		return fmt.Errorf("error deleting messages: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		logger.Log.WithFields(logrus.Fields{
			"conversation_id": conversationID,
			"after_seq":       afterSeq,
			"deleted":         n,
		}).Debug("Deleted downstream messages")
	}
	return nil
}

// ReplaceTail deletes the tail after afterSeq and inserts reply in a
// single transaction, optionally updating the edited message's content
// first. A failure at any step rolls the whole operation back, so the
// prior tail is never left deleted without its replacement.
func (p *PostgresStore) ReplaceTail(conversationID string, afterSeq int64, editedMessageID, editedContent string, reply db.Message) (*db.Message, error) {
	tx, err := p.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	if editedMessageID != "" {
		res, err := tx.Exec(`UPDATE messages SET content = $1 WHERE id = $2 AND conversation_id = $3`, editedContent, editedMessageID, conversationID)
		if err != nil {
			return nil, fmt.Errorf("error updating edited message: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, fmt.Errorf("%w: message %s", apperr.ErrNotFound, editedMessageID)
		}
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = $1 AND seq > $2`, conversationID, afterSeq); err != nil {
		return nil, fmt.Errorf("error deleting tail: %w", err)
	}

	if reply.ID == "" {
		reply.ID = uuid.New().String()
	}

	var seq int64
	var createdAt time.Time
	query := `
	INSERT INTO messages (id, conversation_id, seq, role, content, attachment_url, model)
	SELECT $1, $2, COALESCE(MAX(seq), 0) + 1, $3, $4, $5, $6
	FROM messages WHERE conversation_id = $2
	RETURNING seq, created_at
	`
	if err := tx.QueryRow(query, reply.ID, conversationID, reply.Role, reply.Content, reply.AttachmentURL, reply.Model).Scan(&seq, &createdAt); err != nil {
		return nil, fmt.Errorf("error inserting replacement reply: %w", err)
	}

	if _, err := tx.Exec(`UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = $1`, conversationID); err != nil {
		return nil, fmt.Errorf("error updating conversation timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing tail replacement: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"after_seq":       afterSeq,
		"reply_id":        reply.ID,
	}).Info("Replaced conversation tail")

	reply.ConversationID = conversationID
	reply.Seq = seq
	reply.CreatedAt = createdAt
	return &reply, nil
}
