package testutil

import (
	"fmt"
	"sync"
	"time"

	"chathub/internal/apperr"
	"chathub/internal/repository/db"
)

// MemStore is an in-memory db.Store with real sequence assignment and
// atomic ReplaceTail semantics. Multi-step flows (send, edit,
// regenerate) test against it instead of wiring a dozen func fields.
type MemStore struct {
	mu            sync.Mutex
	nextID        int
	users         map[string]*db.User
	conversations map[string]*db.Conversation
	messages      map[string][]db.Message

	// FailReplaceTail forces the next ReplaceTail to fail, for
	// atomicity tests.
	FailReplaceTail bool
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		users:         make(map[string]*db.User),
		conversations: make(map[string]*db.Conversation),
		messages:      make(map[string][]db.Message),
	}
}

func (s *MemStore) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *MemStore) GetUserByUsername(username string) (*db.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemStore) CreateUser(username, email, passwordHash string) (*db.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; exists {
		return nil, fmt.Errorf("%w: username taken", apperr.ErrValidation)
	}
	u := &db.User{ID: s.newID("user"), Username: username, Email: email, PasswordHash: passwordHash}
	s.users[username] = u
	cp := *u
	return &cp, nil
}

func (s *MemStore) ListConversations(userID string) ([]db.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Conversation
	for _, c := range s.conversations {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *MemStore) GetConversation(id string) (*db.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemStore) CreateConversation(userID, title string) (*db.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &db.Conversation{
		ID:        s.newID("conv"),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.conversations[c.ID] = c
	cp := *c
	return &cp, nil
}

func (s *MemStore) RenameConversation(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return apperr.ErrNotFound
	}
	c.Title = title
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) DeleteConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *MemStore) AppendMessage(conversationID string, msg db.Message) (*db.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(conversationID, msg)
}

func (s *MemStore) appendLocked(conversationID string, msg db.Message) (*db.Message, error) {
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, apperr.ErrNotFound
	}
	msg.ID = s.newID("msg")
	msg.ConversationID = conversationID
	msg.Seq = 1
	if existing := s.messages[conversationID]; len(existing) > 0 {
		msg.Seq = existing[len(existing)-1].Seq + 1
	}
	msg.CreatedAt = time.Now()
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	return &msg, nil
}

func (s *MemStore) GetMessages(conversationID string) ([]db.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]db.Message{}, s.messages[conversationID]...), nil
}

func (s *MemStore) CountMessages(conversationID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[conversationID]), nil
}

func (s *MemStore) UpdateMessageContent(messageID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for convID, msgs := range s.messages {
		for i := range msgs {
			if msgs[i].ID == messageID {
				s.messages[convID][i].Content = content
				return nil
			}
		}
	}
	return apperr.ErrNotFound
}

func (s *MemStore) DeleteMessagesAfter(conversationID string, afterSeq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[conversationID]
	kept := msgs[:0]
	for _, m := range msgs {
		if m.Seq <= afterSeq {
			kept = append(kept, m)
		}
	}
	s.messages[conversationID] = kept
	return nil
}

func (s *MemStore) ReplaceTail(conversationID string, afterSeq int64, editedMessageID, editedContent string, reply db.Message) (*db.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailReplaceTail {
		s.FailReplaceTail = false
		return nil, fmt.Errorf("forced ReplaceTail failure")
	}
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, apperr.ErrNotFound
	}

	msgs := s.messages[conversationID]
	var kept []db.Message
	for _, m := range msgs {
		if m.Seq <= afterSeq {
			if editedMessageID != "" && m.ID == editedMessageID {
				m.Content = editedContent
			}
			kept = append(kept, m)
		}
	}
	s.messages[conversationID] = kept
	return s.appendLocked(conversationID, reply)
}
