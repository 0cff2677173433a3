package token

import (
	"reflect"
	"testing"

	"chathub/internal/llm"
)

// flatCounter charges a fixed cost per message regardless of content.
type flatCounter struct {
	cost int
}

func (c flatCounter) Count(llm.Message) int { return c.cost }

func history(contents ...string) []llm.Message {
	msgs := make([]llm.Message, len(contents))
	role := "user"
	for i, content := range contents {
		msgs[i] = llm.Message{Role: role, Content: content}
		if role == "user" {
			role = "assistant"
		} else {
			role = "user"
		}
	}
	return msgs
}

func TestTrim_FitsWithoutDropping(t *testing.T) {
	// Scenario from the conversation budget contract: two short
	// messages against a 4096-token context with 1024 reserved.
	trimmer := NewTrimmer(flatCounter{cost: 10})
	msgs := history("Hi", "Hello")

	tokenLimit := 4096 - 1024
	got, overflow := trimmer.Trim(msgs, tokenLimit)

	if overflow {
		t.Error("Trim() overflow = true, want false")
	}
	if len(got) != 2 {
		t.Fatalf("Trim() kept %d messages, want 2", len(got))
	}
	if !reflect.DeepEqual(got, msgs) {
		t.Error("Trim() altered messages that already fit")
	}
}

func TestTrim_DropsOldestFirst(t *testing.T) {
	// Each message costs 100 + 4 overhead; priming adds 2. With a limit
	// of 320 only three messages fit (3*104 + 2 = 314).
	trimmer := NewTrimmer(flatCounter{cost: 100})
	msgs := history("one", "two", "three", "four", "five")

	got, overflow := trimmer.Trim(msgs, 320)

	if overflow {
		t.Error("Trim() overflow = true, want false")
	}
	want := []string{"three", "four", "five"}
	if len(got) != len(want) {
		t.Fatalf("Trim() kept %d messages, want %d", len(got), len(want))
	}
	for i, content := range want {
		if got[i].Content != content {
			t.Errorf("Trim()[%d].Content = %q, want %q", i, got[i].Content, content)
		}
	}
}

func TestTrim_ReturnsSuffix(t *testing.T) {
	trimmer := NewTrimmer(flatCounter{cost: 50})
	msgs := history("a", "b", "c", "d")

	got, _ := trimmer.Trim(msgs, 120)

	// The result must be a contiguous tail of the input in original
	// order with unaltered content.
	offset := len(msgs) - len(got)
	for i := range got {
		if !reflect.DeepEqual(got[i], msgs[offset+i]) {
			t.Errorf("Trim()[%d] = %+v, want %+v", i, got[i], msgs[offset+i])
		}
	}
}

func TestTrim_Idempotent(t *testing.T) {
	trimmer := NewTrimmer(flatCounter{cost: 100})
	msgs := history("one", "two", "three", "four", "five")

	once, _ := trimmer.Trim(msgs, 320)
	twice, _ := trimmer.Trim(once, 320)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Trim(Trim(m)) = %+v, want %+v", twice, once)
	}
}

func TestTrim_SoftOverflowKeepsLastMessage(t *testing.T) {
	trimmer := NewTrimmer(flatCounter{cost: 5000})
	msgs := history("short", "way too long")

	got, overflow := trimmer.Trim(msgs, 1000)

	if !overflow {
		t.Error("Trim() overflow = false, want true")
	}
	if len(got) != 1 {
		t.Fatalf("Trim() kept %d messages, want 1", len(got))
	}
	if got[0].Content != "way too long" {
		t.Errorf("Trim() kept %q, want the newest message", got[0].Content)
	}
}

func TestTrim_EmptyInput(t *testing.T) {
	trimmer := NewTrimmer(flatCounter{cost: 1})

	got, overflow := trimmer.Trim(nil, 100)

	if overflow {
		t.Error("Trim() overflow = true, want false for empty input")
	}
	if len(got) != 0 {
		t.Errorf("Trim() kept %d messages, want 0", len(got))
	}
}

func TestTrim_NegativeLimitForcesMaximalTrimming(t *testing.T) {
	trimmer := NewTrimmer(flatCounter{cost: 1})
	msgs := history("a", "b", "c")

	got, overflow := trimmer.Trim(msgs, -10)

	if !overflow {
		t.Error("Trim() overflow = false, want true for negative limit")
	}
	if len(got) != 1 {
		t.Fatalf("Trim() kept %d messages, want 1", len(got))
	}
	if got[0].Content != "c" {
		t.Errorf("Trim() kept %q, want newest message", got[0].Content)
	}
}

func TestCost_IncludesOverheads(t *testing.T) {
	trimmer := NewTrimmer(flatCounter{cost: 7})
	msgs := history("x", "y")

	want := 2*(PerMessageOverhead+7) + PrimingOverhead
	if got := trimmer.Cost(msgs); got != want {
		t.Errorf("Cost() = %d, want %d", got, want)
	}
}
