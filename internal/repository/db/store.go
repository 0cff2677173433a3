package db

// Store defines the persistence contract for conversations and
// messages. Implementations must keep operations for different
// conversations independent: concurrent calls for distinct
// conversation IDs must not block each other. ReplaceTail is the one
// compound operation: it must apply its delete-then-insert atomically
// per conversation so no reader ever observes a history with a gap.
type Store interface {
	// Users
	GetUserByUsername(username string) (*User, error)
	CreateUser(username, email, passwordHash string) (*User, error)

	// Conversations
	ListConversations(userID string) ([]Conversation, error)
	GetConversation(id string) (*Conversation, error)
	CreateConversation(userID, title string) (*Conversation, error)
	RenameConversation(id, title string) error
	DeleteConversation(id string) error

	// Messages
	AppendMessage(conversationID string, msg Message) (*Message, error)
	GetMessages(conversationID string) ([]Message, error)
	CountMessages(conversationID string) (int, error)
	UpdateMessageContent(messageID, content string) error
	DeleteMessagesAfter(conversationID string, afterSeq int64) error

	// ReplaceTail atomically deletes every message with Seq > afterSeq
	// and inserts reply as the new tail. When editedMessageID is
	// non-empty the content of that message is updated in the same
	// transaction. If any step fails the conversation is left exactly
	// as it was.
	ReplaceTail(conversationID string, afterSeq int64, editedMessageID, editedContent string, reply Message) (*Message, error)
}
