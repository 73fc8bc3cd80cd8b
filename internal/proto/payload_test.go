package proto

import (
	"errors"
	"testing"
)

func TestParseChat(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    ChatPayload
		wantErr bool
	}{
		{
			name:    "broadcast",
			payload: "alice:home:hello everyone",
			want:    ChatPayload{Sender: "alice", Receiver: "home", Text: "hello everyone"},
		},
		{
			name:    "direct with spaces around receiver",
			payload: "alice: bob :hi",
			want:    ChatPayload{Sender: "alice", Receiver: "bob", Text: "hi"},
		},
		{
			name:    "reply",
			payload: "bob:alice:sure:17",
			want:    ChatPayload{Sender: "bob", Receiver: "alice", Text: "sure", ReplyTo: 17},
		},
		{
			name:    "missing text",
			payload: "alice:bob",
			wantErr: true,
		},
		{
			name:    "bad reply id",
			payload: "alice:bob:hi:notanumber",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseChat(tt.payload)
			if tt.wantErr {
				if !errors.Is(err, ErrBadPayload) {
					t.Fatalf("expected ErrBadPayload, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseReaction(t *testing.T) {
	got, err := ParseReaction("alice:bob:42;3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ReactionPayload{Sender: "alice", Receiver: "bob", MessageID: 42, Count: 3}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	if _, err := ParseReaction("alice:bob:42"); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload without count, got %v", err)
	}
	if _, err := ParseReaction("alice:bob:x;3"); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload for bad id, got %v", err)
	}
}

func TestAddressing(t *testing.T) {
	sender, receiver, err := Addressing("alice: home :some:text:with:colons")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender != "alice" || receiver != "home" {
		t.Fatalf("got %q -> %q", sender, receiver)
	}

	if _, _, err := Addressing("nocolon"); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload, got %v", err)
	}
}

func TestWithMessageID(t *testing.T) {
	if got := WithMessageID(7, "alice:home:hi"); got != "7:alice:home:hi" {
		t.Fatalf("got %q", got)
	}
}
