package token

import (
	"chathub/internal/llm"
	"chathub/internal/logger"

	"github.com/sirupsen/logrus"
)

// Per-message and priming overheads of the chat completion format.
// Each message costs a few framing tokens on top of its content, and
// the reply is primed with a fixed preamble.
const (
	PerMessageOverhead = 4
	PrimingOverhead    = 2
)

// Trimmer fits an unbounded history into a fixed context window by
// discarding oldest messages first, preserving the most recent turns.
type Trimmer struct {
	counter Counter
}

// NewTrimmer creates a Trimmer using the given Counter.
func NewTrimmer(counter Counter) *Trimmer {
	return &Trimmer{counter: counter}
}

// Cost returns the total estimated token cost of a history, including
// per-message and priming overhead.
func (t *Trimmer) Cost(messages []llm.Message) int {
	tokens := 0
	for _, m := range messages {
		tokens += PerMessageOverhead + t.counter.Count(m)
	}
	return tokens + PrimingOverhead
}

// Trim returns the longest suffix of messages whose total cost fits
// tokenLimit. Messages are never reordered or altered. When even a
// single remaining message exceeds the limit it is returned anyway and
// overflow is true; callers treat that as a soft condition, not an
// error. An empty input returns an empty result. A zero or negative
// tokenLimit forces maximal trimming.
func (t *Trimmer) Trim(messages []llm.Message, tokenLimit int) (trimmed []llm.Message, overflow bool) {
	result := messages
	for len(result) > 1 && t.Cost(result) > tokenLimit {
		result = result[1:]
	}

	if len(result) > 0 && t.Cost(result) > tokenLimit {
		logger.Log.WithFields(logrus.Fields{
			"token_limit": tokenLimit,
			"cost":        t.Cost(result),
		}).Warn("Single remaining message exceeds token budget")
		return result, true
	}

	if dropped := len(messages) - len(result); dropped > 0 {
		logger.Log.WithFields(logrus.Fields{
			"dropped": dropped,
			"kept":    len(result),
		}).Debug("Trimmed history to fit context budget")
	}

	return result, false
}
