// Package testutil provides mock implementations shared by service and
// handler tests.
package testutil

import (
	"context"
	"errors"
	"io"

	"chathub/internal/llm"
	"chathub/internal/repository/db"
)

// MockStore is a func-field mock of db.Store. Unset methods return an
// error so tests fail loudly on unexpected calls.
type MockStore struct {
	GetUserByUsernameFunc func(username string) (*db.User, error)
	CreateUserFunc        func(username, email, passwordHash string) (*db.User, error)

	ListConversationsFunc  func(userID string) ([]db.Conversation, error)
	GetConversationFunc    func(id string) (*db.Conversation, error)
	CreateConversationFunc func(userID, title string) (*db.Conversation, error)
	RenameConversationFunc func(id, title string) error
	DeleteConversationFunc func(id string) error

	AppendMessageFunc        func(conversationID string, msg db.Message) (*db.Message, error)
	GetMessagesFunc          func(conversationID string) ([]db.Message, error)
	CountMessagesFunc        func(conversationID string) (int, error)
	UpdateMessageContentFunc func(messageID, content string) error
	DeleteMessagesAfterFunc  func(conversationID string, afterSeq int64) error
	ReplaceTailFunc          func(conversationID string, afterSeq int64, editedMessageID, editedContent string, reply db.Message) (*db.Message, error)
}

var errNotMocked = errors.New("not implemented")

func (m *MockStore) GetUserByUsername(username string) (*db.User, error) {
	if m.GetUserByUsernameFunc != nil {
		return m.GetUserByUsernameFunc(username)
	}
	return nil, errNotMocked
}

func (m *MockStore) CreateUser(username, email, passwordHash string) (*db.User, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(username, email, passwordHash)
	}
	return nil, errNotMocked
}

func (m *MockStore) ListConversations(userID string) ([]db.Conversation, error) {
	if m.ListConversationsFunc != nil {
		return m.ListConversationsFunc(userID)
	}
	return nil, errNotMocked
}

func (m *MockStore) GetConversation(id string) (*db.Conversation, error) {
	if m.GetConversationFunc != nil {
		return m.GetConversationFunc(id)
	}
	return nil, errNotMocked
}

func (m *MockStore) CreateConversation(userID, title string) (*db.Conversation, error) {
	if m.CreateConversationFunc != nil {
		return m.CreateConversationFunc(userID, title)
	}
	return nil, errNotMocked
}

func (m *MockStore) RenameConversation(id, title string) error {
	if m.RenameConversationFunc != nil {
		return m.RenameConversationFunc(id, title)
	}
	return errNotMocked
}

func (m *MockStore) DeleteConversation(id string) error {
	if m.DeleteConversationFunc != nil {
		return m.DeleteConversationFunc(id)
	}
	return errNotMocked
}

func (m *MockStore) AppendMessage(conversationID string, msg db.Message) (*db.Message, error) {
	if m.AppendMessageFunc != nil {
		return m.AppendMessageFunc(conversationID, msg)
	}
	return nil, errNotMocked
}

func (m *MockStore) GetMessages(conversationID string) ([]db.Message, error) {
	if m.GetMessagesFunc != nil {
		return m.GetMessagesFunc(conversationID)
	}
	return nil, errNotMocked
}

func (m *MockStore) CountMessages(conversationID string) (int, error) {
	if m.CountMessagesFunc != nil {
		return m.CountMessagesFunc(conversationID)
	}
	return 0, errNotMocked
}

func (m *MockStore) UpdateMessageContent(messageID, content string) error {
	if m.UpdateMessageContentFunc != nil {
		return m.UpdateMessageContentFunc(messageID, content)
	}
	return errNotMocked
}

func (m *MockStore) DeleteMessagesAfter(conversationID string, afterSeq int64) error {
	if m.DeleteMessagesAfterFunc != nil {
		return m.DeleteMessagesAfterFunc(conversationID, afterSeq)
	}
	return errNotMocked
}

func (m *MockStore) ReplaceTail(conversationID string, afterSeq int64, editedMessageID, editedContent string, reply db.Message) (*db.Message, error) {
	if m.ReplaceTailFunc != nil {
		return m.ReplaceTailFunc(conversationID, afterSeq, editedMessageID, editedContent, reply)
	}
	return nil, errNotMocked
}

// MockTransport is a func-field mock of llm.Transport.
type MockTransport struct {
	OpenFunc func(ctx context.Context, model string, messages []llm.Message) (io.ReadCloser, error)
}

func (m *MockTransport) Open(ctx context.Context, model string, messages []llm.Message) (io.ReadCloser, error) {
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, model, messages)
	}
	return nil, errNotMocked
}

// MockCounter counts tokens as whitespace-separated words, which keeps
// budget arithmetic in tests easy to reason about.
type MockCounter struct{}

// Count implements token.Counter over Content only; parts-carrying
// messages in tests keep their text mirrored in Content.
func (MockCounter) Count(m llm.Message) int {
	n := 0
	inWord := false
	for _, r := range m.Content {
		switch {
		case r == ' ' || r == '\n' || r == '\t':
			inWord = false
		case !inWord:
			n++
			inWord = true
		}
	}
	return n
}
