package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"chathub/internal/auth"
	"chathub/internal/logger"
	"chathub/internal/service/attachment"
)

// uploadFormLimit bounds in-memory multipart parsing; larger parts
// spill to temp files.
const uploadFormLimit = 4 << 20

// UploadResponse is the body returned by POST /api/upload.
type UploadResponse struct {
	Attachment *attachment.Attachment `json:"attachment"`
}

// UploadHandler accepts one multipart file upload and stores it for
// later reference from chat messages.
func (ch *ChatHandlers) UploadHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	if err := r.ParseMultipartForm(uploadFormLimit); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Invalid multipart request", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		ch.sendError(w, http.StatusBadRequest, "A file field is required", err)
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	att, err := ch.uploads.Save(header.Filename, mimeType, header.Size, file)
	if err != nil {
		ch.sendServiceError(w, "Upload rejected", err)
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":       userID,
		"attachment_id": att.ID,
		"size_bytes":    att.SizeBytes,
	}).Info("File uploaded")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(UploadResponse{Attachment: att})
}
