package validation

import (
	"strings"
	"testing"
)

func TestAuthRequestValidator_ValidateUsername(t *testing.T) {
	validator := NewAuthRequestValidator()

	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{
			name:     "plain username",
			username: "alice",
			wantErr:  false,
		},
		{
			name:     "underscores and hyphens allowed",
			username: "alice_b-2",
			wantErr:  false,
		},
		{
			name:     "minimum length",
			username: "abc",
			wantErr:  false,
		},
		{
			name:     "empty",
			username: "",
			wantErr:  true,
		},
		{
			name:     "too short",
			username: "ab",
			wantErr:  true,
		},
		{
			name:     "too long",
			username: strings.Repeat("a", 51),
			wantErr:  true,
		},
		{
			name:     "spaces rejected",
			username: "alice b",
			wantErr:  true,
		},
		{
			name:     "punctuation rejected",
			username: "alice!",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateUsername(tt.username)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthRequestValidator_ValidatePassword(t *testing.T) {
	validator := NewAuthRequestValidator()

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "minimum length",
			password: "secret",
			wantErr:  false,
		},
		{
			name:     "empty",
			password: "",
			wantErr:  true,
		},
		{
			name:     "too short",
			password: "12345",
			wantErr:  true,
		},
		{
			name:     "too long",
			password: strings.Repeat("p", 129),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthRequestValidator_ValidateEmail(t *testing.T) {
	validator := NewAuthRequestValidator()

	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{
			name:    "well formed",
			email:   "alice@example.com",
			wantErr: false,
		},
		{
			name:    "empty is optional",
			email:   "",
			wantErr: false,
		},
		{
			name:    "missing at sign",
			email:   "alice.example.com",
			wantErr: true,
		},
		{
			name:    "missing tld",
			email:   "alice@example",
			wantErr: true,
		},
		{
			name:    "over the length limit",
			email:   strings.Repeat("a", 250) + "@x.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthRequestValidator_ValidateLoginRequest(t *testing.T) {
	validator := NewAuthRequestValidator()

	if err := validator.ValidateLoginRequest("alice", "secret"); err != nil {
		t.Errorf("ValidateLoginRequest() error = %v", err)
	}
	if err := validator.ValidateLoginRequest("", "secret"); err == nil {
		t.Error("missing username accepted")
	}
	if err := validator.ValidateLoginRequest("alice", ""); err == nil {
		t.Error("missing password accepted")
	}
}

func TestAuthRequestValidator_ValidateRegisterRequest(t *testing.T) {
	validator := NewAuthRequestValidator()

	if err := validator.ValidateRegisterRequest("alice", "alice@example.com", "secret"); err != nil {
		t.Errorf("ValidateRegisterRequest() error = %v", err)
	}
	if err := validator.ValidateRegisterRequest("alice", "", "secret"); err != nil {
		t.Errorf("register without email rejected: %v", err)
	}
	if err := validator.ValidateRegisterRequest("a", "alice@example.com", "secret"); err == nil {
		t.Error("invalid username accepted")
	}
	if err := validator.ValidateRegisterRequest("alice", "not-an-email", "secret"); err == nil {
		t.Error("invalid email accepted")
	}
	if err := validator.ValidateRegisterRequest("alice", "alice@example.com", "123"); err == nil {
		t.Error("weak password accepted")
	}
}
