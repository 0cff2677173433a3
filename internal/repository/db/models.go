package db

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// User represents a user account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    string
}

// Conversation owns an ordered sequence of messages. The title is
// derived once from the first user message and mutated only by an
// explicit rename.
type Conversation struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one committed entry of a conversation. Ordering within a
// conversation is by CreatedAt with Seq as the insertion-order
// tie-break; Seq is assigned by the store on append and is strictly
// increasing per conversation. Content is immutable once committed
// except through an explicit edit, which invalidates every message
// ordered after it.
type Message struct {
	ID             string
	ConversationID string
	Seq            int64
	Role           string
	Content        string
	AttachmentURL  string // set when this entry records an uploaded file
	Model          string // model that produced an assistant message
	CreatedAt      time.Time
}

// IsAttachmentRecord reports whether this entry exists purely to show
// an uploaded file in the history. Attachment records are skipped when
// building model input; the upload travels as a content part of the
// logical user turn instead.
func (m *Message) IsAttachmentRecord() bool {
	return m.AttachmentURL != ""
}
