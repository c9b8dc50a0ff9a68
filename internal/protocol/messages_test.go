package protocol

import (
	"encoding/json"
	"testing"
)

// ---------------------------------------------------------------------------
// Test: Parsing a valid chat_message
// ---------------------------------------------------------------------------

func TestParseClientMessage_ChatMessage(t *testing.T) {
	input := []byte(`{"type":"chat_message","content":"hello room"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeChatMessage {
		t.Fatalf("expected type %q, got %q", TypeChatMessage, msgType)
	}

	cm, ok := msg.(ChatMessageMsg)
	if !ok {
		t.Fatalf("expected ChatMessageMsg, got %T", msg)
	}
	if cm.Content != "hello room" {
		t.Errorf("expected content %q, got %q", "hello room", cm.Content)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a valid private_message
// ---------------------------------------------------------------------------

func TestParseClientMessage_PrivateMessage(t *testing.T) {
	input := []byte(`{"type":"private_message","recipient":"bob","content":"psst"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypePrivateMessage {
		t.Fatalf("expected type %q, got %q", TypePrivateMessage, msgType)
	}

	pm, ok := msg.(PrivateMessageMsg)
	if !ok {
		t.Fatalf("expected PrivateMessageMsg, got %T", msg)
	}
	if pm.Recipient != "bob" {
		t.Errorf("expected recipient %q, got %q", "bob", pm.Recipient)
	}
	if pm.Content != "psst" {
		t.Errorf("expected content %q, got %q", "psst", pm.Content)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a typing indicator
// ---------------------------------------------------------------------------

func TestParseClientMessage_Typing(t *testing.T) {
	input := []byte(`{"type":"typing","is_typing":true}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeTyping {
		t.Fatalf("expected type %q, got %q", TypeTyping, msgType)
	}

	tm, ok := msg.(TypingMsg)
	if !ok {
		t.Fatalf("expected TypingMsg, got %T", msg)
	}
	if !tm.IsTyping {
		t.Error("expected is_typing to be true")
	}
}

// ---------------------------------------------------------------------------
// Test: Creating a user_joined server message
// ---------------------------------------------------------------------------

func TestNewServerMessage_UserJoined(t *testing.T) {
	payload := UserJoinedMsg{
		Username:    "alice",
		OnlineCount: 3,
	}

	data, err := NewServerMessage(TypeUserJoined, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["type"] != TypeUserJoined {
		t.Errorf("expected type %q, got %v", TypeUserJoined, result["type"])
	}
	if result["username"] != "alice" {
		t.Errorf("expected username %q, got %v", "alice", result["username"])
	}
	count, ok := result["online_count"].(float64)
	if !ok {
		t.Fatalf("expected online_count to be a number, got %T", result["online_count"])
	}
	if int(count) != 3 {
		t.Errorf("expected online_count 3, got %v", count)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing an unknown message type returns an error
// ---------------------------------------------------------------------------

func TestParseClientMessage_UnknownType(t *testing.T) {
	input := []byte(`{"type":"unknown_type","data":"something"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
	if msgType != "unknown_type" {
		t.Errorf("expected type to be returned even on error, got %q", msgType)
	}
	if msg != nil {
		t.Errorf("expected nil message on error, got %v", msg)
	}
}

// ---------------------------------------------------------------------------
// Test: Missing type field returns an error
// ---------------------------------------------------------------------------

func TestParseClientMessage_MissingType(t *testing.T) {
	input := []byte(`{"content":"no type here"}`)

	if _, _, err := ParseClientMessage(input); err == nil {
		t.Fatal("expected error for missing type field")
	}
}
