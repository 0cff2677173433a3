package attachment

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chathub/internal/apperr"
	"chathub/internal/config"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(config.UploadConfig{
		Dir:          t.TempDir(),
		BaseURL:      "/uploads",
		MaxSizeBytes: 64,
		AllowedTypes: []string{"image/png", "application/pdf", "text/plain"},
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestSaveStoresFile(t *testing.T) {
	svc := newTestService(t)
	content := "hello upload"

	att, err := svc.Save("notes.txt", "text/plain", int64(len(content)), strings.NewReader(content))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if att.Kind != KindDocument {
		t.Errorf("Kind = %q, want %q", att.Kind, KindDocument)
	}
	if !strings.HasPrefix(att.URL, "/uploads/") {
		t.Errorf("URL = %q, want /uploads/ prefix", att.URL)
	}
	if att.SizeBytes != int64(len(content)) {
		t.Errorf("SizeBytes = %d, want %d", att.SizeBytes, len(content))
	}

	stored := strings.TrimPrefix(att.URL, "/uploads/")
	data, err := os.ReadFile(filepath.Join(svc.cfg.Dir, stored))
	if err != nil {
		t.Fatalf("stored file unreadable: %v", err)
	}
	if string(data) != content {
		t.Errorf("stored content = %q, want %q", data, content)
	}
}

func TestSaveRejectsOversized(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Save("big.png", "image/png", 1<<20, strings.NewReader("x"))
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Save() error = %v, want ErrValidation", err)
	}
}

func TestSaveRejectsLyingContentLength(t *testing.T) {
	svc := newTestService(t)
	body := strings.Repeat("a", 200) // over the 64 byte limit

	_, err := svc.Save("a.txt", "text/plain", 10, strings.NewReader(body))
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Save() error = %v, want ErrValidation", err)
	}

	entries, _ := os.ReadDir(svc.cfg.Dir)
	if len(entries) != 0 {
		t.Error("rejected upload left a file on disk")
	}
}

func TestSaveRejectsDisallowedType(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Save("run.sh", "application/x-sh", 4, strings.NewReader("boom"))
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Save() error = %v, want ErrValidation", err)
	}
}

func TestDelete(t *testing.T) {
	svc := newTestService(t)

	att, err := svc.Save("pic.png", "image/png", 3, strings.NewReader("png"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := svc.Delete(att.URL); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Delete(att.URL); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteRejectsTraversal(t *testing.T) {
	svc := newTestService(t)

	if err := svc.Delete("/uploads/../etc/passwd"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Delete() error = %v, want ErrValidation", err)
	}
}

func TestKindFor(t *testing.T) {
	if got := KindFor("image/webp"); got != KindImage {
		t.Errorf("KindFor(image/webp) = %q, want image", got)
	}
	if got := KindFor("application/pdf"); got != KindDocument {
		t.Errorf("KindFor(application/pdf) = %q, want document", got)
	}
}
