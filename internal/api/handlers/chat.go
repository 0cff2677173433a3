// Package handlers implements the HTTP surface: streaming chat
// endpoints, conversation management, and uploads.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"chathub/internal/apperr"
	"chathub/internal/auth"
	"chathub/internal/config"
	"chathub/internal/logger"
	"chathub/internal/service/attachment"
	chatService "chathub/internal/service/chat"
	conversationService "chathub/internal/service/conversation"
	"chathub/pkg/validation"
)

// ChatRequest is the body of POST /api/chat/stream.
type ChatRequest struct {
	Message        string                  `json:"message"`
	ConversationID string                  `json:"conversation_id,omitempty"`
	Model          string                  `json:"model,omitempty"`
	Attachments    []attachment.Attachment `json:"attachments,omitempty"`
}

// EditRequest is the body of PUT /api/messages/{id}.
type EditRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	Model          string `json:"model,omitempty"`
}

// RegenerateRequest is the body of POST /api/conversations/{id}/regenerate.
type RegenerateRequest struct {
	Model string `json:"model,omitempty"`
}

// ErrorResponse is the standardized JSON error body.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// streamEvent is the SSE payload envelope.
type streamEvent struct {
	ConversationID string `json:"conversationId,omitempty"`
	Model          string `json:"model,omitempty"`
	Delta          string `json:"delta,omitempty"`
	MessageID      string `json:"messageId,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ChatHandlers serves the chat endpoints on top of the service layer.
type ChatHandlers struct {
	validator     *validation.ChatRequestValidator
	chat          *chatService.ChatService
	conversations *conversationService.ConversationService
	uploads       *attachment.Service
	models        *config.ModelsConfig
}

// NewChatHandlers creates a ChatHandlers.
func NewChatHandlers(chat *chatService.ChatService, conversations *conversationService.ConversationService, uploads *attachment.Service, models *config.ModelsConfig) *ChatHandlers {
	return &ChatHandlers{
		validator:     validation.NewChatRequestValidator(),
		chat:          chat,
		conversations: conversations,
		uploads:       uploads,
		models:        models,
	}
}

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrTurnInFlight):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrTransport), errors.Is(err, apperr.ErrDecode):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// sendError sends a standardized JSON error response
func (ch *ChatHandlers) sendError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := ErrorResponse{
		Code:    status,
		Message: message,
	}
	if err != nil {
		errResp.Error = err.Error()
	}
	json.NewEncoder(w).Encode(errResp)
}

func (ch *ChatHandlers) sendServiceError(w http.ResponseWriter, message string, err error) {
	ch.sendError(w, statusFor(err), message, err)
}

// ChatStreamHandler is the SSE endpoint for sending a message.
func (ch *ChatHandlers) ChatStreamHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := ch.validator.ValidateSendRequest(req.Message, len(req.Attachments)); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":         userID,
		"conversation_id": req.ConversationID,
		"message_chars":   len(req.Message),
	}).Info("Chat stream request received")

	ch.streamTurn(w, r, func() (<-chan chatService.StreamChunk, error) {
		return ch.chat.Send(r.Context(), chatService.SendRequest{
			UserID:         userID,
			ConversationID: req.ConversationID,
			Content:        req.Message,
			Model:          req.Model,
			Attachments:    req.Attachments,
		})
	})
}

// EditMessageHandler is the SSE endpoint for editing a user message
// and regenerating everything after it.
func (ch *ChatHandlers) EditMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	messageID := r.PathValue("id")

	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := ch.validator.ValidateEditRequest(messageID, req.Content); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}
	if req.ConversationID == "" {
		ch.sendError(w, http.StatusBadRequest, "conversation_id is required", nil)
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":         userID,
		"conversation_id": req.ConversationID,
		"message_id":      messageID,
	}).Info("Edit message request received")

	ch.streamTurn(w, r, func() (<-chan chatService.StreamChunk, error) {
		return ch.chat.Edit(r.Context(), chatService.EditRequest{
			UserID:         userID,
			ConversationID: req.ConversationID,
			MessageID:      messageID,
			Content:        req.Content,
			Model:          req.Model,
		})
	})
}

// RegenerateHandler is the SSE endpoint for replacing the last
// assistant message.
func (ch *ChatHandlers) RegenerateHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	conversationID := r.PathValue("id")

	// The body is optional; an empty one means the default model.
	var req RegenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = RegenerateRequest{}
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":         userID,
		"conversation_id": conversationID,
	}).Info("Regenerate request received")

	ch.streamTurn(w, r, func() (<-chan chatService.StreamChunk, error) {
		return ch.chat.Regenerate(r.Context(), chatService.RegenerateRequest{
			UserID:         userID,
			ConversationID: conversationID,
			Model:          req.Model,
		})
	})
}

// streamTurn starts a turn and relays its chunks as SSE events. The
// request context carries client disconnects into the service, which
// cancels the turn.
func (ch *ChatHandlers) streamTurn(w http.ResponseWriter, r *http.Request, start func() (<-chan chatService.StreamChunk, error)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		ch.sendError(w, http.StatusInternalServerError, "Streaming not supported", nil)
		return
	}

	chunks, err := start()
	if err != nil {
		ch.sendServiceError(w, "Could not start turn", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for chunk := range chunks {
		switch {
		case chunk.Err != nil:
			writeEvent(w, "", streamEvent{Error: chunk.Err.Error()})
		case chunk.Done:
			writeEvent(w, "done", streamEvent{MessageID: chunk.MessageID})
		case chunk.ConversationID != "":
			writeEvent(w, "", streamEvent{ConversationID: chunk.ConversationID, Model: chunk.Model})
		case chunk.Delta != "":
			writeEvent(w, "", streamEvent{Delta: chunk.Delta})
		default:
			continue
		}
		flusher.Flush()
	}

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeEvent(w http.ResponseWriter, name string, event streamEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to encode stream event")
		return
	}
	if name != "" {
		fmt.Fprintf(w, "event: %s\n", name)
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
