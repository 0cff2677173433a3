// Package chat runs generation turns: it persists the user's input,
// assembles a budgeted prompt, streams the model reply, and commits the
// result. Every turn moves through sending, streaming, and committing;
// a conversation accepts one turn at a time.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"chathub/internal/apperr"
	"chathub/internal/config"
	"chathub/internal/llm"
	"chathub/internal/logger"
	"chathub/internal/repository/db"
	"chathub/internal/service/attachment"
	"chathub/internal/service/memory"
	"chathub/internal/stream"
	"chathub/internal/token"
)

// titleLimit is how many characters of the first message become the
// conversation title.
const titleLimit = 50

// SendRequest starts a new turn. An empty ConversationID creates a
// conversation owned by UserID.
type SendRequest struct {
	UserID         string
	ConversationID string
	Content        string
	Model          string
	Attachments    []attachment.Attachment
}

// EditRequest rewrites an earlier user message and regenerates
// everything after it.
type EditRequest struct {
	UserID         string
	ConversationID string
	MessageID      string
	Content        string
	Model          string
}

// RegenerateRequest replaces the conversation's last assistant message
// with a fresh generation.
type RegenerateRequest struct {
	UserID         string
	ConversationID string
	Model          string
}

// StreamChunk is one unit of a turn's output stream.
type StreamChunk struct {
	ConversationID string // set on the first chunk
	Model          string // set on the first chunk
	Delta          string
	MessageID      string // set on the final chunk: the committed reply id
	Done           bool
	Err            error
}

// ChatService orchestrates turns across the store, the tokenizer, the
// model transport, and conversation memory.
type ChatService struct {
	store     db.Store
	transport llm.Transport
	trimmer   *token.Trimmer
	models    *config.ModelsConfig
	memory    memory.Store
	cfg       *config.LLMConfig
	turns     *turnRegistry
}

// NewChatService creates a ChatService.
func NewChatService(store db.Store, transport llm.Transport, counter token.Counter, models *config.ModelsConfig, mem memory.Store, cfg *config.LLMConfig) *ChatService {
	return &ChatService{
		store:     store,
		transport: transport,
		trimmer:   token.NewTrimmer(counter),
		models:    models,
		memory:    mem,
		cfg:       cfg,
		turns:     newTurnRegistry(),
	}
}

// TurnState reports the lifecycle state of a conversation's current
// turn.
func (s *ChatService) TurnState(conversationID string) State {
	return s.turns.state(conversationID)
}

// Cancel aborts the in-flight turn for a conversation, if any.
func (s *ChatService) Cancel(conversationID string) bool {
	return s.turns.cancelTurn(conversationID)
}

// preparedTurn is a turn ready to stream: the assembled model input
// plus the commit and rollback actions specific to the operation.
type preparedTurn struct {
	conversationID string
	userID         string
	model          string
	input          []llm.Message
	commit         func(reply string) (*db.Message, error)
	rollback       func()
}

// Send persists a user message and streams the assistant reply. The
// returned channel carries deltas and is closed when the turn ends.
// A second Send while a turn is in flight returns ErrTurnInFlight.
func (s *ChatService) Send(ctx context.Context, req SendRequest) (<-chan StreamChunk, error) {
	if strings.TrimSpace(req.Content) == "" && len(req.Attachments) == 0 {
		return nil, fmt.Errorf("%w: message content is required", apperr.ErrValidation)
	}
	model, err := s.resolveModel(req.Model)
	if err != nil {
		return nil, err
	}

	conv, created, err := s.getOrCreateConversation(req)
	if err != nil {
		return nil, err
	}

	turnCtx, cancel := context.WithTimeout(ctx, s.cfg.TurnTimeout)
	if _, err := s.turns.acquire(conv.ID, cancel); err != nil {
		cancel()
		return nil, err
	}

	prepared, err := s.prepareSend(conv, created, req, model)
	if err != nil {
		s.turns.release(conv.ID, true)
		cancel()
		return nil, err
	}

	return s.runTurn(ctx, turnCtx, cancel, prepared), nil
}

// Edit updates an earlier user message and regenerates the tail of the
// conversation from it. Nothing is persisted until the commit: the
// edited content and the new reply land in one store transaction that
// also deletes every message after the edited one.
func (s *ChatService) Edit(ctx context.Context, req EditRequest) (<-chan StreamChunk, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: edited content is required", apperr.ErrValidation)
	}
	model, err := s.resolveModel(req.Model)
	if err != nil {
		return nil, err
	}
	conv, err := s.ownedConversation(req.ConversationID, req.UserID)
	if err != nil {
		return nil, err
	}

	turnCtx, cancel := context.WithTimeout(ctx, s.cfg.TurnTimeout)
	if _, err := s.turns.acquire(conv.ID, cancel); err != nil {
		cancel()
		return nil, err
	}

	prepared, err := s.prepareEdit(conv, req, model)
	if err != nil {
		s.turns.release(conv.ID, true)
		cancel()
		return nil, err
	}

	return s.runTurn(ctx, turnCtx, cancel, prepared), nil
}

// Regenerate discards the conversation's last assistant message and
// streams a replacement. The prior reply stays in place until the new
// one commits.
func (s *ChatService) Regenerate(ctx context.Context, req RegenerateRequest) (<-chan StreamChunk, error) {
	model, err := s.resolveModel(req.Model)
	if err != nil {
		return nil, err
	}
	conv, err := s.ownedConversation(req.ConversationID, req.UserID)
	if err != nil {
		return nil, err
	}

	turnCtx, cancel := context.WithTimeout(ctx, s.cfg.TurnTimeout)
	if _, err := s.turns.acquire(conv.ID, cancel); err != nil {
		cancel()
		return nil, err
	}

	prepared, err := s.prepareRegenerate(conv, req, model)
	if err != nil {
		s.turns.release(conv.ID, true)
		cancel()
		return nil, err
	}

	return s.runTurn(ctx, turnCtx, cancel, prepared), nil
}

// prepareSend persists the user's input and stages the turn. The
// baseline sequence number lets rollback restore the exact message
// count if the turn never commits.
func (s *ChatService) prepareSend(conv *db.Conversation, created bool, req SendRequest, model string) (_ *preparedTurn, retErr error) {
	defer func() {
		if retErr != nil && created {
			if err := s.store.DeleteConversation(conv.ID); err != nil {
				logger.Log.WithError(err).Warn("Failed to remove conversation of failed first turn")
			}
		}
	}()

	history, err := s.store.GetMessages(conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	baselineSeq := int64(0)
	if len(history) > 0 {
		baselineSeq = history[len(history)-1].Seq
	}

	// First message into an existing empty conversation derives the
	// title, same as creation does. Safe here: the turn slot is held.
	if !created && len(history) == 0 {
		if err := s.store.RenameConversation(conv.ID, deriveTitle(req.Content)); err != nil {
			logger.Log.WithError(err).Warn("Failed to derive conversation title")
		}
	}

	// Uploads become standalone history records so clients can render
	// them, then travel as content parts of this user turn. The
	// trimmer sees only the user turn, so each upload is counted once.
	for _, att := range req.Attachments {
		record := db.Message{Role: db.RoleUser, Content: att.Filename, AttachmentURL: att.URL}
		if _, err := s.store.AppendMessage(conv.ID, record); err != nil {
			if cleanupErr := s.store.DeleteMessagesAfter(conv.ID, baselineSeq); cleanupErr != nil {
				logger.Log.WithError(cleanupErr).Error("Failed to roll back partial attachment records")
			}
			return nil, fmt.Errorf("failed to record attachment: %w", err)
		}
	}

	if _, err := s.store.AppendMessage(conv.ID, db.Message{Role: db.RoleUser, Content: req.Content}); err != nil {
		if cleanupErr := s.store.DeleteMessagesAfter(conv.ID, baselineSeq); cleanupErr != nil {
			logger.Log.WithError(cleanupErr).Error("Failed to roll back partial user turn")
		}
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	current := []llm.Message{{
		Role:    db.RoleUser,
		Content: req.Content,
		Parts:   partsFor(req.Content, req.Attachments),
	}}
	input := s.buildModelInput(history, current, req.UserID, conv.ID, model)

	return &preparedTurn{
		conversationID: conv.ID,
		userID:         req.UserID,
		model:          model,
		input:          input,
		commit: func(reply string) (*db.Message, error) {
			return s.store.AppendMessage(conv.ID, db.Message{
				Role:    db.RoleAssistant,
				Content: reply,
				Model:   model,
			})
		},
		rollback: func() {
			if err := s.store.DeleteMessagesAfter(conv.ID, baselineSeq); err != nil {
				logger.Log.WithError(err).Error("Failed to roll back uncommitted turn")
			}
			if created {
				if err := s.store.DeleteConversation(conv.ID); err != nil {
					logger.Log.WithError(err).Error("Failed to remove conversation of cancelled first turn")
				}
			}
		},
	}, nil
}

// prepareEdit stages an edit turn. The edited content lives only in
// the prompt until ReplaceTail commits it together with the reply.
func (s *ChatService) prepareEdit(conv *db.Conversation, req EditRequest, model string) (*preparedTurn, error) {
	history, err := s.store.GetMessages(conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	idx := -1
	for i := range history {
		if history[i].ID == req.MessageID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("%w: message %s", apperr.ErrNotFound, req.MessageID)
	}
	edited := history[idx]
	if edited.Role != db.RoleUser || edited.IsAttachmentRecord() {
		return nil, fmt.Errorf("%w: only user messages can be edited", apperr.ErrValidation)
	}

	prefix := history[:idx]
	current := []llm.Message{{Role: db.RoleUser, Content: req.Content}}
	input := s.buildModelInput(prefix, current, req.UserID, conv.ID, model)

	return &preparedTurn{
		conversationID: conv.ID,
		userID:         req.UserID,
		model:          model,
		input:          input,
		commit: func(reply string) (*db.Message, error) {
			return s.store.ReplaceTail(conv.ID, edited.Seq, edited.ID, req.Content, db.Message{
				Role:    db.RoleAssistant,
				Content: reply,
				Model:   model,
			})
		},
		rollback: func() {}, // nothing was persisted
	}, nil
}

// prepareRegenerate stages a regenerate turn: the prompt is the
// history up to, and excluding, the last assistant message.
func (s *ChatService) prepareRegenerate(conv *db.Conversation, req RegenerateRequest, model string) (*preparedTurn, error) {
	history, err := s.store.GetMessages(conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: conversation has no messages", apperr.ErrValidation)
	}

	// Keep everything up to the last assistant message. When the tail
	// is already a user message the whole history stays.
	keep := history
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == db.RoleAssistant {
			keep = history[:i]
			break
		}
		if history[i].Role == db.RoleUser && !history[i].IsAttachmentRecord() {
			break
		}
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("%w: nothing to regenerate from", apperr.ErrValidation)
	}

	afterSeq := keep[len(keep)-1].Seq
	input := s.buildModelInput(keep, nil, req.UserID, conv.ID, model)

	return &preparedTurn{
		conversationID: conv.ID,
		userID:         req.UserID,
		model:          model,
		input:          input,
		commit: func(reply string) (*db.Message, error) {
			return s.store.ReplaceTail(conv.ID, afterSeq, "", "", db.Message{
				Role:    db.RoleAssistant,
				Content: reply,
				Model:   model,
			})
		},
		rollback: func() {},
	}, nil
}

// runTurn drives the streaming phase and the commit. It owns the
// output channel and the turn slot; both are released when it returns.
func (s *ChatService) runTurn(callerCtx, turnCtx context.Context, cancel context.CancelFunc, p *preparedTurn) <-chan StreamChunk {
	out := make(chan StreamChunk)

	go func() {
		defer close(out)
		defer cancel()

		failed := true
		defer func() {
			s.turns.release(p.conversationID, failed)
		}()

		fail := func(err error) {
			// Cancellation commits nothing and returns the
			// conversation to idle; only genuine failures leave it
			// errored.
			if errors.Is(err, apperr.ErrTurnCancelled) {
				failed = false
			} else {
				s.turns.setState(p.conversationID, StateErrored)
			}
			p.rollback()
			// Deliver the error while the caller still listens; a
			// disconnected caller is gone with the context.
			select {
			case out <- StreamChunk{Err: err}:
			case <-callerCtx.Done():
			}
		}

		body, err := s.transport.Open(turnCtx, p.model, p.input)
		if err != nil {
			if turnCtx.Err() != nil {
				err = fmt.Errorf("%w: %v", apperr.ErrTurnCancelled, turnCtx.Err())
			}
			fail(err)
			return
		}

		s.turns.setState(p.conversationID, StateStreaming)
		select {
		case out <- StreamChunk{ConversationID: p.conversationID, Model: p.model}:
		case <-turnCtx.Done():
		}

		var reply strings.Builder
		var streamErr error
		for event := range stream.Decode(turnCtx, body) {
			switch event.Type {
			case stream.EventText:
				reply.WriteString(event.Text)
				select {
				case out <- StreamChunk{Delta: event.Text}:
				case <-turnCtx.Done():
				}
			case stream.EventError:
				streamErr = event.Err
			default:
				logger.Log.WithFields(logrus.Fields{
					"conversation_id": p.conversationID,
					"event_type":      event.Type,
				}).Debug("Model side-channel event")
			}
		}

		if turnCtx.Err() != nil {
			fail(fmt.Errorf("%w: %v", apperr.ErrTurnCancelled, turnCtx.Err()))
			return
		}
		if streamErr != nil {
			fail(streamErr)
			return
		}

		s.turns.setState(p.conversationID, StateCommitting)
		committed, err := p.commit(reply.String())
		if err != nil {
			fail(fmt.Errorf("failed to commit reply: %w", err))
			return
		}
		failed = false

		s.updateMemory(p, reply.String())

		logger.Log.WithFields(logrus.Fields{
			"conversation_id": p.conversationID,
			"message_id":      committed.ID,
			"reply_chars":     reply.Len(),
		}).Debug("Turn committed")

		select {
		case out <- StreamChunk{MessageID: committed.ID, Done: true}:
		case <-turnCtx.Done():
		}
	}()

	return out
}

// updateMemory refreshes conversation memory from the committed state.
// Best-effort: a failure never affects the turn.
func (s *ChatService) updateMemory(p *preparedTurn, reply string) {
	key := memory.Key{UserID: p.userID, ConversationID: p.conversationID}
	committed := append(append([]llm.Message{}, p.input...), llm.Message{Role: db.RoleAssistant, Content: reply})
	if err := s.memory.Update(context.Background(), key, committed); err != nil {
		logger.Log.WithError(err).Warn("Failed to update conversation memory")
	}
}

// buildModelInput assembles the prompt: memory context and system
// prompt first, then the longest budget-fitting suffix of the history
// ending in the current turn. Attachment records are display-only and
// never reach the model.
func (s *ChatService) buildModelInput(history []db.Message, current []llm.Message, userID, conversationID, model string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+len(current))
	for _, m := range history {
		if m.IsAttachmentRecord() {
			continue
		}
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, current...)

	var preamble []llm.Message
	if s.cfg.DefaultSystemPrompt != "" {
		preamble = append(preamble, llm.Message{Role: db.RoleSystem, Content: s.cfg.DefaultSystemPrompt})
	}
	if mem, ok := s.memory.Get(memory.Key{UserID: userID, ConversationID: conversationID}); ok {
		if enhanced := memory.Enhance(nil, mem); len(enhanced) > 0 {
			preamble = append(preamble, enhanced...)
		}
	}

	budget := s.models.ContextSize(model) - s.cfg.ReservedReplyTokens
	if len(preamble) > 0 {
		budget -= s.trimmer.Cost(preamble) - token.PrimingOverhead
	}

	trimmed, overflow := s.trimmer.Trim(messages, budget)
	if overflow {
		logger.Log.WithError(apperr.ErrBudgetOverflow).WithFields(logrus.Fields{
			"conversation_id": conversationID,
			"model":           model,
		}).Warn("Prompt exceeds context budget, sending anyway")
	}

	return append(preamble, trimmed...)
}

// resolveModel validates an explicit model id or falls back to the
// default.
func (s *ChatService) resolveModel(modelID string) (string, error) {
	if modelID == "" {
		return s.models.GetDefaultModel(), nil
	}
	if !s.models.IsValidModel(modelID) {
		return "", fmt.Errorf("%w: unknown model %q", apperr.ErrValidation, modelID)
	}
	return modelID, nil
}

// getOrCreateConversation resolves the target conversation for Send,
// creating one titled from the first message when no id is given.
func (s *ChatService) getOrCreateConversation(req SendRequest) (*db.Conversation, bool, error) {
	if req.ConversationID == "" {
		conv, err := s.store.CreateConversation(req.UserID, deriveTitle(req.Content))
		if err != nil {
			return nil, false, fmt.Errorf("failed to create conversation: %w", err)
		}
		return conv, true, nil
	}
	conv, err := s.ownedConversation(req.ConversationID, req.UserID)
	if err != nil {
		return nil, false, err
	}
	return conv, false, nil
}

func (s *ChatService) ownedConversation(conversationID, userID string) (*db.Conversation, error) {
	conv, err := s.store.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, fmt.Errorf("%w: conversation belongs to another user", apperr.ErrUnauthorized)
	}
	return conv, nil
}

// partsFor builds the structured content of a user turn carrying
// uploads.
func partsFor(content string, attachments []attachment.Attachment) []llm.ContentPart {
	if len(attachments) == 0 {
		return nil
	}
	parts := make([]llm.ContentPart, 0, len(attachments)+1)
	if content != "" {
		parts = append(parts, llm.ContentPart{Kind: llm.PartText, Text: content})
	}
	for _, att := range attachments {
		kind := llm.PartDocument
		if att.Kind == attachment.KindImage {
			kind = llm.PartImage
		}
		parts = append(parts, llm.ContentPart{Kind: kind, URL: att.URL})
	}
	return parts
}

// deriveTitle shortens the first message into a conversation title.
func deriveTitle(content string) string {
	title := strings.TrimSpace(content)
	if title == "" {
		title = "New conversation"
	}
	runes := []rune(title)
	if len(runes) > titleLimit {
		return string(runes[:titleLimit]) + "..."
	}
	return title
}
