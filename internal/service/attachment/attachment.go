// Package attachment validates and stores uploaded files referenced by
// chat messages.
package attachment

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"chathub/internal/apperr"
	"chathub/internal/config"
	"chathub/internal/logger"
)

// Kind classifies an attachment for prompt assembly.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

// Attachment describes a stored upload.
type Attachment struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	Kind      Kind   `json:"kind"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
}

// Service stores uploads on local disk under a configured directory
// and serves them back by URL.
type Service struct {
	cfg config.UploadConfig
}

// NewService creates the upload service and ensures the storage
// directory exists.
func NewService(cfg config.UploadConfig) (*Service, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Service{cfg: cfg}, nil
}

// Save validates and persists one upload. Size and MIME type are
// checked before any bytes hit the disk; oversized or disallowed
// uploads return apperr.ErrValidation.
func (s *Service) Save(filename, mimeType string, size int64, r io.Reader) (*Attachment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: empty upload", apperr.ErrValidation)
	}
	if size > s.cfg.MaxSizeBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", apperr.ErrValidation, s.cfg.MaxSizeBytes)
	}
	if !s.allowed(mimeType) {
		return nil, fmt.Errorf("%w: unsupported file type %q", apperr.ErrValidation, mimeType)
	}

	id := uuid.New().String()
	stored := id + safeExtension(filename, mimeType)
	path := filepath.Join(s.cfg.Dir, stored)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	// LimitReader guards against clients lying about Content-Length.
	written, err := io.Copy(f, io.LimitReader(r, s.cfg.MaxSizeBytes+1))
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}
	if written > s.cfg.MaxSizeBytes {
		os.Remove(path)
		return nil, fmt.Errorf("%w: file exceeds %d bytes", apperr.ErrValidation, s.cfg.MaxSizeBytes)
	}

	att := &Attachment{
		ID:        id,
		URL:       s.cfg.BaseURL + "/" + stored,
		Filename:  filename,
		Kind:      KindFor(mimeType),
		MimeType:  mimeType,
		SizeBytes: written,
	}

	logger.Log.WithFields(logrus.Fields{
		"attachment_id": id,
		"mime_type":     mimeType,
		"size_bytes":    written,
	}).Info("Stored attachment")

	return att, nil
}

// Delete removes a stored attachment by its URL.
func (s *Service) Delete(url string) error {
	stored := strings.TrimPrefix(url, s.cfg.BaseURL+"/")
	if stored == url || strings.Contains(stored, "/") || strings.Contains(stored, "..") {
		return fmt.Errorf("%w: not an attachment URL", apperr.ErrValidation)
	}
	if err := os.Remove(filepath.Join(s.cfg.Dir, stored)); err != nil {
		if os.IsNotExist(err) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return nil
}

func (s *Service) allowed(mimeType string) bool {
	for _, t := range s.cfg.AllowedTypes {
		if t == mimeType {
			return true
		}
	}
	return false
}

// KindFor maps a MIME type to the attachment kind used in prompts.
func KindFor(mimeType string) Kind {
	if strings.HasPrefix(mimeType, "image/") {
		return KindImage
	}
	return KindDocument
}

// safeExtension picks a file extension from the original name, falling
// back to the MIME type. The stored name never reuses the client's
// filename.
func safeExtension(filename, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != "" && len(ext) <= 8 && !strings.ContainsAny(ext, "/\\") {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
