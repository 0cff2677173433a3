package chat

import (
	"context"
	"sync"

	"chathub/internal/apperr"
)

// State is the lifecycle position of a conversation's current turn.
type State int

const (
	// StateIdle means no turn is in flight.
	StateIdle State = iota
	// StateSending covers persistence and prompt assembly before the
	// provider stream opens.
	StateSending
	// StateStreaming covers the decode loop.
	StateStreaming
	// StateCommitting covers the final store write.
	StateCommitting
	// StateErrored is the terminal state of a failed turn, observable
	// until the next turn starts.
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCommitting:
		return "committing"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// turn tracks one in-flight generation for a conversation.
type turn struct {
	state  State
	cancel context.CancelFunc
}

// turnRegistry enforces at most one in-flight turn per conversation.
// The mutex guards only the map; turns for distinct conversations run
// fully in parallel.
type turnRegistry struct {
	mu     sync.Mutex
	turns  map[string]*turn
	failed map[string]bool
}

func newTurnRegistry() *turnRegistry {
	return &turnRegistry{
		turns:  make(map[string]*turn),
		failed: make(map[string]bool),
	}
}

// acquire claims the turn slot for a conversation. A second caller gets
// apperr.ErrTurnInFlight until the first releases.
func (r *turnRegistry) acquire(conversationID string, cancel context.CancelFunc) (*turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.turns[conversationID]; busy {
		return nil, apperr.ErrTurnInFlight
	}

	t := &turn{state: StateSending, cancel: cancel}
	r.turns[conversationID] = t
	delete(r.failed, conversationID)
	return t, nil
}

// setState advances the turn's state. Called only by the goroutine that
// owns the turn, under the registry lock for visibility to State().
func (r *turnRegistry) setState(conversationID string, s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.turns[conversationID]; ok {
		t.state = s
	}
}

// release frees the slot. failed marks the conversation errored so
// State reports it until the next acquire.
func (r *turnRegistry) release(conversationID string, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.turns, conversationID)
	if failed {
		r.failed[conversationID] = true
	}
}

// state reports the observable state for a conversation.
func (r *turnRegistry) state(conversationID string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.turns[conversationID]; ok {
		return t.state
	}
	if r.failed[conversationID] {
		return StateErrored
	}
	return StateIdle
}

// cancelTurn aborts the in-flight turn, if any.
func (r *turnRegistry) cancelTurn(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.turns[conversationID]; ok {
		t.cancel()
		return true
	}
	return false
}
