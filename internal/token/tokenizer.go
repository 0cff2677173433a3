// Package token provides token accounting and context-budget trimming
// for model input histories.
package token

import (
	"fmt"

	"chathub/internal/llm"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// encodingName is the sub-word vocabulary used for all estimates.
// cl100k_base matches GPT-4-class models and approximates the rest
// closely enough for budgeting.
const encodingName = "cl100k_base"

// AttachmentPlaceholderCost is the fixed token cost substituted for an
// attachment reference. Estimation must never fail on non-text content,
// so attachments count as this constant instead of being encoded.
const AttachmentPlaceholderCost = 1

// Counter estimates the token cost of a single message.
type Counter interface {
	Count(msg llm.Message) int
}

// Tokenizer counts tokens with a fixed sub-word vocabulary. It holds no
// mutable state beyond the encoder and is safe for concurrent use.
type Tokenizer struct {
	encode func(s string) int
}

// NewTokenizer creates a Tokenizer backed by the cl100k_base encoding.
func NewTokenizer() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: get encoding: %w", err)
	}
	return &Tokenizer{
		encode: func(s string) int {
			return len(enc.Encode(s, nil, nil))
		},
	}, nil
}

// newTokenizerWithEncoder injects an encoding function directly. Tests
// use it to avoid loading the real vocabulary.
func newTokenizerWithEncoder(encode func(s string) int) *Tokenizer {
	return &Tokenizer{encode: encode}
}

// CountText returns the token count of a plain string.
func (t *Tokenizer) CountText(s string) int {
	if s == "" {
		return 0
	}
	return t.encode(s)
}

// Count returns the estimated token cost of a message. Structured
// content is flattened: text parts are encoded, attachment references
// cost AttachmentPlaceholderCost each.
func (t *Tokenizer) Count(msg llm.Message) int {
	if len(msg.Parts) == 0 {
		return t.CountText(msg.Content)
	}

	tokens := 0
	for _, p := range msg.Parts {
		switch p.Kind {
		case llm.PartText:
			tokens += t.CountText(p.Text)
		default:
			tokens += AttachmentPlaceholderCost
		}
	}
	return tokens
}
