package validation

import (
	"strings"
	"testing"
)

func TestChatRequestValidator_ValidateMessage(t *testing.T) {
	validator := NewChatRequestValidator()

	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{
			name:    "valid message",
			message: "hello",
			wantErr: false,
		},
		{
			name:    "empty message",
			message: "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			message: "   \n\t ",
			wantErr: true,
		},
		{
			name:    "at the limit",
			message: strings.Repeat("a", maxMessageLength),
			wantErr: false,
		},
		{
			name:    "over the limit",
			message: strings.Repeat("a", maxMessageLength+1),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateMessage(tt.message)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestChatRequestValidator_ValidateTitle(t *testing.T) {
	validator := NewChatRequestValidator()

	tests := []struct {
		name    string
		title   string
		wantErr bool
	}{
		{
			name:    "valid title",
			title:   "Trip planning",
			wantErr: false,
		},
		{
			name:    "empty title",
			title:   "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			title:   "   ",
			wantErr: true,
		},
		{
			name:    "over the limit",
			title:   strings.Repeat("x", maxTitleLength+1),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateTitle(tt.title)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTitle() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestChatRequestValidator_ValidateSendRequest(t *testing.T) {
	validator := NewChatRequestValidator()

	if err := validator.ValidateSendRequest("", 1); err != nil {
		t.Errorf("attachment-only send rejected: %v", err)
	}
	if err := validator.ValidateSendRequest("", 0); err == nil {
		t.Error("empty send without attachments accepted")
	}
	if err := validator.ValidateSendRequest("hi", 0); err != nil {
		t.Errorf("ValidateSendRequest() error = %v", err)
	}
}

func TestChatRequestValidator_ValidateEditRequest(t *testing.T) {
	validator := NewChatRequestValidator()

	if err := validator.ValidateEditRequest("", "new content"); err == nil {
		t.Error("missing message id accepted")
	}
	if err := validator.ValidateEditRequest("msg-1", ""); err == nil {
		t.Error("empty edit content accepted")
	}
	if err := validator.ValidateEditRequest("msg-1", "new content"); err != nil {
		t.Errorf("ValidateEditRequest() error = %v", err)
	}
}
