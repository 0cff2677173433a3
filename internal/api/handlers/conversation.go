package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"chathub/internal/auth"
	"chathub/internal/config"
	"chathub/internal/logger"
)

// ConversationInfo is one entry of the conversation list.
type ConversationInfo struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type ConversationsResponse struct {
	Conversations []ConversationInfo `json:"conversations"`
}

// MessageData is one entry of a conversation's history.
type MessageData struct {
	ID            string `json:"id"`
	Role          string `json:"role"`
	Content       string `json:"content"`
	AttachmentURL string `json:"attachment_url,omitempty"`
	Model         string `json:"model,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type MessagesResponse struct {
	Messages []MessageData `json:"messages"`
}

// RenameRequest is the body of PATCH /api/conversations/{id}.
type RenameRequest struct {
	Title string `json:"title"`
}

type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ModelsResponse struct {
	Models []config.Model `json:"models"`
}

// GetConversationsHandler returns all conversations for the
// authenticated user.
func (ch *ChatHandlers) GetConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	conversations, err := ch.conversations.GetUserConversations(userID)
	if err != nil {
		logger.Log.WithError(err).Error("Error from conversation service")
		ch.sendServiceError(w, "Error retrieving conversations", err)
		return
	}

	convInfos := make([]ConversationInfo, 0, len(conversations))
	for _, conv := range conversations {
		convInfos = append(convInfos, ConversationInfo{
			ID:           conv.ID,
			Title:        conv.Title,
			MessageCount: conv.MessageCount,
			CreatedAt:    conv.CreatedAt.Format(time.RFC3339),
			UpdatedAt:    conv.UpdatedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ConversationsResponse{Conversations: convInfos})
}

// GetConversationMessagesHandler returns the ordered history of a
// conversation.
func (ch *ChatHandlers) GetConversationMessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	convID := r.PathValue("id")

	messages, err := ch.conversations.GetConversationMessages(convID, userID)
	if err != nil {
		logger.Log.WithError(err).Error("Error from conversation service")
		ch.sendServiceError(w, "Error retrieving messages", err)
		return
	}

	msgData := make([]MessageData, 0, len(messages))
	for _, msg := range messages {
		msgData = append(msgData, MessageData{
			ID:            msg.ID,
			Role:          msg.Role,
			Content:       msg.Content,
			AttachmentURL: msg.AttachmentURL,
			Model:         msg.Model,
			CreatedAt:     msg.CreatedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(MessagesResponse{Messages: msgData})
}

// RenameConversationHandler sets an explicit conversation title.
func (ch *ChatHandlers) RenameConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	convID := r.PathValue("id")

	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := ch.validator.ValidateTitle(req.Title); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	if err := ch.conversations.RenameConversation(convID, userID, req.Title); err != nil {
		logger.Log.WithError(err).Error("Error from conversation service")
		ch.sendServiceError(w, "Error renaming conversation", err)
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":         userID,
		"conversation_id": convID,
	}).Info("Conversation renamed")

	w.WriteHeader(http.StatusNoContent)
}

// DeleteConversationHandler deletes a conversation.
func (ch *ChatHandlers) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	convID := r.PathValue("id")

	if err := ch.conversations.DeleteConversation(convID, userID); err != nil {
		logger.Log.WithError(err).Error("Error from conversation service")
		ch.sendServiceError(w, "Error deleting conversation", err)
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":         userID,
		"conversation_id": convID,
	}).Info("Conversation deleted")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(DeleteResponse{
		Success: true,
		Message: "Conversation deleted successfully",
	})
}

// MemoryResult is one remembered conversation context.
type MemoryResult struct {
	Context     []string            `json:"context"`
	Entities    map[string][]string `json:"entities,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	LastUpdated string              `json:"last_updated"`
}

type MemorySearchResponse struct {
	Results []MemoryResult `json:"results"`
}

// SearchMemoryHandler finds remembered context matching the q query
// parameter.
func (ch *ChatHandlers) SearchMemoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	memories, err := ch.conversations.SearchMemory(userID, r.URL.Query().Get("q"))
	if err != nil {
		ch.sendServiceError(w, "Error searching memory", err)
		return
	}

	results := make([]MemoryResult, 0, len(memories))
	for _, mem := range memories {
		results = append(results, MemoryResult{
			Context:     mem.Context,
			Entities:    mem.Entities,
			Summary:     mem.Summary,
			LastUpdated: mem.LastUpdated.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(MemorySearchResponse{Results: results})
}

// GetModelsHandler returns the model catalog.
func (ch *ChatHandlers) GetModelsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ModelsResponse{Models: ch.models.GetAvailableModels()})
}
