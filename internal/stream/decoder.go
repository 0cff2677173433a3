// Package stream decodes the framed model output stream into typed
// events. The wire format is UTF-8 text, one record per line, each
// record shaped as <tag>:<json-payload>. Tag "0" is a text delta whose
// payload is a JSON string appended verbatim to the reply; every other
// recognized tag is surfaced as a side-channel event so higher layers
// can react without this package interpreting them.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"chathub/internal/apperr"
	"chathub/internal/logger"

	"github.com/sirupsen/logrus"
)

// EventType classifies decoded records.
type EventType int

const (
	// EventText is a text delta to append to the accumulated reply.
	EventText EventType = iota
	// EventError is fatal: either an error record from the provider or
	// a transport failure while reading. The turn must abort.
	EventError
	// EventData carries an auxiliary data record.
	EventData
	// EventToolCall carries a tool invocation record.
	EventToolCall
	// EventFinish marks a finish record (message or step boundary).
	EventFinish
	// EventUnknown carries a record with an unrecognized tag.
	EventUnknown
)

// Stream record tags.
const (
	tagText       = "0"
	tagData       = "2"
	tagError      = "3"
	tagToolCall   = "9"
	tagFinishMsg  = "d"
	tagFinishStep = "e"
)

// Event is one decoded record (or a terminal read failure).
type Event struct {
	Type    EventType
	Text    string          // delta text for EventText, message for EventError
	Payload json.RawMessage // raw JSON payload for side-channel events
	Err     error           // set on EventError
}

// maxRecordSize bounds a single record; a model delta never comes close.
const maxRecordSize = 1 << 20

// Decode consumes the framed body and emits events until end-of-data,
// a fatal error, or context cancellation. The returned channel is
// closed when decoding stops; it cannot be restarted. Decode takes
// ownership of body and closes it on every exit path. Cancelling ctx
// closes the body to unblock the pending read and discards any
// buffered partial record.
func Decode(ctx context.Context, body io.ReadCloser) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		// Close the body as soon as the context is cancelled so the
		// blocked read returns instead of waiting for more bytes.
		readDone := make(chan struct{})
		defer close(readDone)
		go func() {
			select {
			case <-ctx.Done():
				body.Close()
			case <-readDone:
				body.Close()
			}
		}()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)

		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}

			line := scanner.Text()
			if line == "" {
				continue
			}

			event, ok := decodeRecord(line)
			if !ok {
				continue
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
			if event.Type == EventError {
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case events <- Event{
				Type: EventError,
				Text: err.Error(),
				Err:  fmt.Errorf("%w: %v", apperr.ErrTransport, err),
			}:
			case <-ctx.Done():
			}
		}
	}()

	return events
}

// decodeRecord parses one complete line. A malformed record is skipped
// (ok=false) rather than aborting the stream.
func decodeRecord(line string) (Event, bool) {
	tag, payload, found := strings.Cut(line, ":")
	if !found {
		logger.Log.WithField("record", truncate(line, 120)).Warn("Skipping unframed stream record")
		return Event{}, false
	}

	switch tag {
	case tagText:
		var delta string
		if err := json.Unmarshal([]byte(payload), &delta); err != nil {
			logger.Log.WithError(err).Warn("Skipping malformed text delta")
			return Event{}, false
		}
		return Event{Type: EventText, Text: delta}, true

	case tagError:
		var msg string
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			// An error record we cannot read is still fatal.
			msg = truncate(payload, 200)
		}
		return Event{
			Type: EventError,
			Text: msg,
			Err:  fmt.Errorf("%w: provider error: %s", apperr.ErrDecode, msg),
		}, true

	case tagData:
		return sideChannel(EventData, payload)
	case tagToolCall:
		return sideChannel(EventToolCall, payload)
	case tagFinishMsg, tagFinishStep:
		return sideChannel(EventFinish, payload)
	default:
		return sideChannel(EventUnknown, payload)
	}
}

func sideChannel(typ EventType, payload string) (Event, bool) {
	raw := json.RawMessage(payload)
	if !json.Valid(raw) {
		logger.Log.WithFields(logrus.Fields{
			"payload": truncate(payload, 120),
		}).Warn("Skipping stream record with invalid JSON payload")
		return Event{}, false
	}
	return Event{Type: typ, Payload: raw}, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
