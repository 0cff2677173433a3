package memory

import (
	"context"
	"strings"
	"testing"

	"chathub/internal/llm"
)

func userMsg(content string) llm.Message {
	return llm.Message{Role: "user", Content: content}
}

func assistantMsg(content string) llm.Message {
	return llm.Message{Role: "assistant", Content: content}
}

func TestUpdateAndGet(t *testing.T) {
	store := NewInMemoryStore(nil)
	key := Key{UserID: "u1", ConversationID: "c1"}

	err := store.Update(context.Background(), key, []llm.Message{
		userMsg("I met Alice on 12/05/2024"),
		assistantMsg("Nice."),
		userMsg("We talked about Paris"),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	mem, ok := store.Get(key)
	if !ok {
		t.Fatal("Get() returned no memory after Update")
	}
	if len(mem.Context) != 2 {
		t.Errorf("Context length = %d, want 2", len(mem.Context))
	}
	if names := mem.Entities["names"]; len(names) != 3 {
		t.Errorf("names = %v, want Alice, We, Paris", names)
	}
	if dates := mem.Entities["dates"]; len(dates) != 1 || dates[0] != "12/05/2024" {
		t.Errorf("dates = %v, want [12/05/2024]", dates)
	}
}

func TestUpdateKeepsOnlyRecentContext(t *testing.T) {
	store := NewInMemoryStore(nil)
	key := Key{UserID: "u1", ConversationID: "c1"}

	messages := []llm.Message{
		userMsg("one"), userMsg("two"), userMsg("three"),
		userMsg("four"), userMsg("five"), userMsg("six"), userMsg("seven"),
	}
	if err := store.Update(context.Background(), key, messages); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	mem, _ := store.Get(key)
	if len(mem.Context) != contextDepth {
		t.Fatalf("Context length = %d, want %d", len(mem.Context), contextDepth)
	}
	if mem.Context[0] != "three" || mem.Context[len(mem.Context)-1] != "seven" {
		t.Errorf("Context = %v, want trailing five messages", mem.Context)
	}
}

func TestKeysAreIsolated(t *testing.T) {
	store := NewInMemoryStore(nil)
	ctx := context.Background()

	k1 := Key{UserID: "u1", ConversationID: "c1"}
	k2 := Key{UserID: "u1", ConversationID: "c2"}
	k3 := Key{UserID: "u2", ConversationID: "c1"}

	store.Update(ctx, k1, []llm.Message{userMsg("alpha")})
	store.Update(ctx, k2, []llm.Message{userMsg("beta")})

	if _, ok := store.Get(k3); ok {
		t.Error("Get() found memory under another user's key")
	}
	m1, _ := store.Get(k1)
	m2, _ := store.Get(k2)
	if m1.Context[0] == m2.Context[0] {
		t.Error("memories for distinct conversations should not share context")
	}
}

func TestDelete(t *testing.T) {
	store := NewInMemoryStore(nil)
	key := Key{UserID: "u1", ConversationID: "c1"}

	store.Update(context.Background(), key, []llm.Message{userMsg("hello")})
	store.Delete(key)

	if _, ok := store.Get(key); ok {
		t.Error("Get() returned memory after Delete")
	}
}

func TestSearch(t *testing.T) {
	store := NewInMemoryStore(nil)
	ctx := context.Background()

	store.Update(ctx, Key{UserID: "u1", ConversationID: "c1"}, []llm.Message{userMsg("planning a trip to Tokyo")})
	store.Update(ctx, Key{UserID: "u1", ConversationID: "c2"}, []llm.Message{userMsg("grocery list")})
	store.Update(ctx, Key{UserID: "u2", ConversationID: "c3"}, []llm.Message{userMsg("Tokyo weather")})

	found := store.Search("u1", "tokyo")
	if len(found) != 1 {
		t.Fatalf("Search() returned %d memories, want 1", len(found))
	}
	if !strings.Contains(found[0].Context[0], "Tokyo") {
		t.Errorf("Search() returned wrong memory: %v", found[0].Context)
	}
}

func TestEnhancePrependsSystemContext(t *testing.T) {
	mem := &Memory{
		Context:  []string{"I like hiking"},
		Entities: map[string][]string{"names": {"Alps"}},
		Summary:  "User plans a hiking trip",
	}
	messages := []llm.Message{userMsg("where should I go?")}

	enhanced := Enhance(messages, mem)
	if len(enhanced) != 2 {
		t.Fatalf("Enhance() returned %d messages, want 2", len(enhanced))
	}
	system := enhanced[0]
	if system.Role != "system" {
		t.Errorf("first message role = %q, want system", system.Role)
	}
	for _, want := range []string{"I like hiking", "User plans a hiking trip", "names: Alps"} {
		if !strings.Contains(system.Content, want) {
			t.Errorf("system content missing %q", want)
		}
	}
	if enhanced[1].Content != "where should I go?" {
		t.Error("original messages must follow the system context")
	}
}

func TestEnhanceNoMemoryIsIdentity(t *testing.T) {
	messages := []llm.Message{userMsg("hi")}

	if got := Enhance(messages, nil); len(got) != 1 {
		t.Errorf("Enhance(nil memory) changed message count: %d", len(got))
	}
	if got := Enhance(messages, &Memory{}); len(got) != 1 {
		t.Errorf("Enhance(empty memory) changed message count: %d", len(got))
	}
}
