package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	cfg := Config{Colours: false}

	tests := []struct {
		name     string
		data     string
		expected string
	}{
		{"error frame", `{"error":"Invalid receiver"}`, "error: Invalid receiver"},
		{"message", `{"id":3,"content":"hi","created_at":"2026-01-02T03:04:05Z","sender_id":7,"receiver_id":42,"sender":{"id":7,"username":"alice"}}`, "#3 alice → 42: hi"},
		{"anonymous sender", `{"id":4,"content":"yo","created_at":"2026-01-02T03:04:05Z","sender_id":7,"receiver_id":42}`, "#4 7 → 42: yo"},
		{"not json", `pong`, "pong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Contains(t, render(cfg, []byte(tt.data)), tt.expected)
		})
	}
}
