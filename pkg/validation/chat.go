package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Message and title ceilings. The content limit is generous; the model
// context budget is enforced separately by trimming.
const (
	maxMessageLength = 32000
	maxTitleLength   = 200
)

// ChatRequestValidator validates chat-related requests
type ChatRequestValidator struct{}

// NewChatRequestValidator creates a new ChatRequestValidator
func NewChatRequestValidator() *ChatRequestValidator {
	return &ChatRequestValidator{}
}

// ValidateMessage validates user-supplied message content.
func (v *ChatRequestValidator) ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("message cannot be empty")
	}
	if len(message) > maxMessageLength {
		return fmt.Errorf("message must be at most %d characters long, got %d", maxMessageLength, len(message))
	}
	return nil
}

// ValidateTitle validates an explicit conversation title.
func (v *ChatRequestValidator) ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return errors.New("title cannot be empty")
	}
	if len([]rune(title)) > maxTitleLength {
		return fmt.Errorf("title must be at most %d characters long", maxTitleLength)
	}
	return nil
}

// ValidateSendRequest validates a send request. The model id, when
// given, is checked against the catalog by the chat service.
func (v *ChatRequestValidator) ValidateSendRequest(message string, attachmentCount int) error {
	// A turn may carry only attachments.
	if attachmentCount > 0 && strings.TrimSpace(message) == "" {
		return nil
	}
	return v.ValidateMessage(message)
}

// ValidateEditRequest validates an edit request.
func (v *ChatRequestValidator) ValidateEditRequest(messageID, content string) error {
	if messageID == "" {
		return errors.New("message id is required")
	}
	return v.ValidateMessage(content)
}
