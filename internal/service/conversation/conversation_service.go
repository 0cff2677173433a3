package conversation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"chathub/internal/apperr"
	"chathub/internal/logger"
	"chathub/internal/repository/db"
	"chathub/internal/service/memory"
)

// maxTitleLength bounds explicit renames.
const maxTitleLength = 200

// AttachmentCleaner removes stored uploads by URL.
type AttachmentCleaner interface {
	Delete(url string) error
}

// Summary is a conversation plus its message count, for listing.
type Summary struct {
	db.Conversation
	MessageCount int
}

// ConversationService handles conversation management: listing,
// fetching history, renaming, and deletion. Every operation verifies
// ownership before touching the store.
type ConversationService struct {
	store   db.Store
	memory  memory.Store
	uploads AttachmentCleaner
}

// NewConversationService creates a ConversationService.
func NewConversationService(store db.Store, mem memory.Store, uploads AttachmentCleaner) *ConversationService {
	return &ConversationService{store: store, memory: mem, uploads: uploads}
}

// GetUserConversations retrieves all conversations owned by a user,
// most recently updated first, each with its message count.
func (s *ConversationService) GetUserConversations(userID string) ([]Summary, error) {
	conversations, err := s.store.ListConversations(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve conversations: %w", err)
	}

	summaries := make([]Summary, 0, len(conversations))
	for _, conv := range conversations {
		count, err := s.store.CountMessages(conv.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count messages: %w", err)
		}
		summaries = append(summaries, Summary{Conversation: conv, MessageCount: count})
	}
	return summaries, nil
}

// GetConversationMessages retrieves the full ordered history of a
// conversation the user owns.
func (s *ConversationService) GetConversationMessages(conversationID, userID string) ([]db.Message, error) {
	if _, err := s.owned(conversationID, userID); err != nil {
		return nil, err
	}

	messages, err := s.store.GetMessages(conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve messages: %w", err)
	}
	return messages, nil
}

// RenameConversation sets an explicit title. This is the only path
// that changes a title after its first derivation.
func (s *ConversationService) RenameConversation(conversationID, userID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title is required", apperr.ErrValidation)
	}
	if len([]rune(title)) > maxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", apperr.ErrValidation, maxTitleLength)
	}

	if _, err := s.owned(conversationID, userID); err != nil {
		return err
	}

	if err := s.store.RenameConversation(conversationID, title); err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}
	return nil
}

// DeleteConversation deletes a conversation the user owns, along with
// its memory and any uploads its messages reference.
func (s *ConversationService) DeleteConversation(conversationID, userID string) error {
	if _, err := s.owned(conversationID, userID); err != nil {
		return err
	}

	messages, err := s.store.GetMessages(conversationID)
	if err != nil {
		return fmt.Errorf("failed to load messages for cleanup: %w", err)
	}

	if err := s.store.DeleteConversation(conversationID); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	s.memory.Delete(memory.Key{UserID: userID, ConversationID: conversationID})

	for _, msg := range messages {
		if !msg.IsAttachmentRecord() {
			continue
		}
		if err := s.uploads.Delete(msg.AttachmentURL); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			logger.Log.WithError(err).WithFields(logrus.Fields{
				"conversation_id": conversationID,
				"attachment_url":  msg.AttachmentURL,
			}).Warn("Failed to remove attachment of deleted conversation")
		}
	}
	return nil
}

// SearchMemory finds remembered context for a user matching a query.
func (s *ConversationService) SearchMemory(userID, query string) ([]memory.Memory, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", apperr.ErrValidation)
	}
	return s.memory.Search(userID, query), nil
}

func (s *ConversationService) owned(conversationID, userID string) (*db.Conversation, error) {
	conversation, err := s.store.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if conversation.UserID != userID {
		return nil, fmt.Errorf("%w: conversation belongs to another user", apperr.ErrUnauthorized)
	}
	return conversation, nil
}
