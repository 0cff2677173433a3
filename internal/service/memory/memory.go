// Package memory keeps lightweight per-conversation context used to
// enrich model input: recent user messages, extracted entities, and an
// optional summary. It is deliberately decoupled from the message
// store; a Key addresses one user's view of one conversation.
package memory

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"chathub/internal/llm"
	"chathub/internal/logger"
)

// contextDepth is how many recent user messages are retained as
// conversational context.
const contextDepth = 5

// Key addresses one memory record.
type Key struct {
	UserID         string
	ConversationID string
}

// Memory is the retained context for one conversation.
type Memory struct {
	Context     []string
	Entities    map[string][]string
	Summary     string
	LastUpdated time.Time
}

// Summarizer produces a compact summary of a conversation. The real
// implementation is a model call; the default is a no-op so the rest
// of the system works without it.
type Summarizer interface {
	Summarize(ctx context.Context, messages []llm.Message) (string, error)
}

// NoopSummarizer returns no summary.
type NoopSummarizer struct{}

// Summarize implements Summarizer.
func (NoopSummarizer) Summarize(context.Context, []llm.Message) (string, error) {
	return "", nil
}

// Store is the keyed memory contract.
type Store interface {
	Get(key Key) (*Memory, bool)
	Update(ctx context.Context, key Key, messages []llm.Message) error
	Delete(key Key)
	Search(userID, query string) []Memory
}

// InMemoryStore keeps memories in process memory, guarded by a
// read-write mutex. Suitable for a single-node deployment; the Store
// interface leaves room for an external backend.
type InMemoryStore struct {
	mu         sync.RWMutex
	memories   map[Key]*Memory
	summarizer Summarizer
}

// NewInMemoryStore creates an InMemoryStore. A nil summarizer falls
// back to NoopSummarizer.
func NewInMemoryStore(summarizer Summarizer) *InMemoryStore {
	if summarizer == nil {
		summarizer = NoopSummarizer{}
	}
	return &InMemoryStore{
		memories:   make(map[Key]*Memory),
		summarizer: summarizer,
	}
}

// Get returns the memory for a key, if any.
func (s *InMemoryStore) Get(key Key) (*Memory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mem, ok := s.memories[key]
	if !ok {
		return nil, false
	}
	cp := *mem
	return &cp, true
}

// Update rebuilds the memory for a key from the committed messages.
func (s *InMemoryStore) Update(ctx context.Context, key Key, messages []llm.Message) error {
	recent := recentUserContext(messages)
	entities := extractEntities(messages)

	summary, err := s.summarizer.Summarize(ctx, messages)
	if err != nil {
		// Summaries are best-effort; keep the rest of the memory.
		logger.Log.WithError(err).Warn("Summarization failed, keeping previous summary")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.memories[key]
	merged := entities
	if existing != nil {
		merged = mergeEntities(existing.Entities, entities)
		if summary == "" {
			summary = existing.Summary
		}
	}

	s.memories[key] = &Memory{
		Context:     recent,
		Entities:    merged,
		Summary:     summary,
		LastUpdated: time.Now(),
	}
	return nil
}

// Delete removes the memory for a key.
func (s *InMemoryStore) Delete(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memories, key)
}

// Search returns a user's memories whose context or summary contains
// the query, case-insensitively.
func (s *InMemoryStore) Search(userID, query string) []Memory {
	needle := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []Memory
	for key, mem := range s.memories {
		if key.UserID != userID {
			continue
		}
		if memoryMatches(mem, needle) {
			found = append(found, *mem)
		}
	}
	return found
}

func memoryMatches(mem *Memory, needle string) bool {
	if strings.Contains(strings.ToLower(mem.Summary), needle) {
		return true
	}
	for _, ctx := range mem.Context {
		if strings.Contains(strings.ToLower(ctx), needle) {
			return true
		}
	}
	return false
}

// Enhance prepends a system message carrying the memory context. A nil
// or empty memory returns the input unchanged.
func Enhance(messages []llm.Message, mem *Memory) []llm.Message {
	if mem == nil || (len(mem.Context) == 0 && mem.Summary == "") {
		return messages
	}

	var sb strings.Builder
	sb.WriteString("Previous conversation context:\n")
	sb.WriteString(strings.Join(mem.Context, "\n"))
	if mem.Summary != "" {
		sb.WriteString("\n\nSummary: ")
		sb.WriteString(mem.Summary)
	}
	if len(mem.Entities) > 0 {
		sb.WriteString("\n\nEntities mentioned: ")
		sb.WriteString(formatEntities(mem.Entities))
	}
	sb.WriteString("\n\nUse this context to keep responses consistent with the conversation so far.")

	system := llm.Message{Role: "system", Content: sb.String()}
	return append([]llm.Message{system}, messages...)
}

var (
	namePattern = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
	datePattern = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`)
)

// recentUserContext keeps the trailing user messages as plain text.
func recentUserContext(messages []llm.Message) []string {
	var userText []string
	for _, m := range messages {
		if m.Role == "user" && m.Content != "" {
			userText = append(userText, m.Content)
		}
	}
	if len(userText) > contextDepth {
		userText = userText[len(userText)-contextDepth:]
	}
	return userText
}

// extractEntities pulls capitalized names and dates from user text.
// Crude keyword extraction; a proper NLP pass lives behind the
// Summarizer boundary if ever needed.
func extractEntities(messages []llm.Message) map[string][]string {
	var sb strings.Builder
	for _, m := range messages {
		if m.Role == "user" {
			sb.WriteString(m.Content)
			sb.WriteString(" ")
		}
	}
	text := sb.String()

	entities := make(map[string][]string)
	if names := dedupe(namePattern.FindAllString(text, -1)); len(names) > 0 {
		entities["names"] = names
	}
	if dates := dedupe(datePattern.FindAllString(text, -1)); len(dates) > 0 {
		entities["dates"] = dates
	}
	return entities
}

func mergeEntities(old, new map[string][]string) map[string][]string {
	merged := make(map[string][]string, len(old)+len(new))
	for k, v := range old {
		merged[k] = v
	}
	for k, v := range new {
		merged[k] = dedupe(append(merged[k], v...))
	}
	return merged
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func formatEntities(entities map[string][]string) string {
	keys := make([]string, 0, len(entities))
	for k := range entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(entities[k], ", ")))
	}
	return strings.Join(parts, "; ")
}
