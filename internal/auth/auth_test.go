package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"chathub/internal/apperr"
	"chathub/internal/config"
	"chathub/internal/repository/db"
	"chathub/internal/testutil"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       []byte("0123456789abcdef0123456789abcdef"),
		TokenExpiration: time.Hour,
	}
}

func TestRegisterAndTokenRoundTrip(t *testing.T) {
	store := &testutil.MockStore{
		CreateUserFunc: func(username, email, passwordHash string) (*db.User, error) {
			if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte("secret1")) != nil {
				t.Error("stored hash does not match the password")
			}
			return &db.User{ID: "user-1", Username: username, Email: email}, nil
		},
	}
	svc := NewService(store, testAuthConfig())

	token, err := svc.Register("alice", "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want user-1", claims.Subject)
	}
	if claims.Username != "alice" {
		t.Errorf("Username = %q, want alice", claims.Username)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := NewService(&testutil.MockStore{}, testAuthConfig())

	_, err := svc.Register("bob", "", "short")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Register() error = %v, want ErrValidation", err)
	}
}

func TestLogin(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	store := &testutil.MockStore{
		GetUserByUsernameFunc: func(username string) (*db.User, error) {
			return &db.User{ID: "user-1", Username: username, PasswordHash: string(hash)}, nil
		},
	}
	svc := NewService(store, testAuthConfig())

	if _, err := svc.Login("alice", "correct horse"); err != nil {
		t.Errorf("Login() error = %v", err)
	}
	if _, err := svc.Login("alice", "wrong"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Login(wrong password) error = %v, want ErrUnauthorized", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	store := &testutil.MockStore{
		GetUserByUsernameFunc: func(username string) (*db.User, error) {
			return nil, apperr.ErrNotFound
		},
	}
	svc := NewService(store, testAuthConfig())

	if _, err := svc.Login("ghost", "pw"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Login() error = %v, want ErrUnauthorized", err)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc := NewService(&testutil.MockStore{}, testAuthConfig())
	other := NewService(&testutil.MockStore{}, config.AuthConfig{
		JWTSecret:       []byte("ffffffffffffffffffffffffffffffff"),
		TokenExpiration: time.Hour,
	})

	token, err := other.GenerateToken("user-1", "alice")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := svc.ValidateToken(token); err == nil {
		t.Error("ValidateToken() accepted a token signed with another secret")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	cfg := testAuthConfig()
	cfg.TokenExpiration = -time.Minute
	svc := NewService(&testutil.MockStore{}, cfg)

	token, err := svc.GenerateToken("user-1", "alice")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := svc.ValidateToken(token); err == nil {
		t.Error("ValidateToken() accepted an expired token")
	}
}

func TestMiddleware(t *testing.T) {
	svc := NewService(&testutil.MockStore{}, testAuthConfig())
	token, _ := svc.GenerateToken("user-1", "alice")

	var gotUserID string
	handler := svc.Middleware(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserID(r.Context())
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}

	if gotUserID != "user-1" {
		t.Errorf("context user id = %q, want user-1", gotUserID)
	}
}
