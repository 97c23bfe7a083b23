package moderation

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// The dictionary uses specific words to avoid partial collisions (e.g., "he" inside "The")
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	dictionary := []string{"spam", "scam", "phishing"}
	mod, err := NewModerator(dictionary, replacementChar, log)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Single word keeps surrounding text",
			input:    "This offer is a scam obviously",
			expected: "This offer is a **** obviously",
			words:    []string{"scam"},
		},
		{
			name:     "Repeated words",
			input:    "spam spam spam",
			expected: "**** **** ****",
			words:    []string{"spam", "spam", "spam"},
		},
		{
			name:     "Leet speak and inner punctuation",
			input:    "No more $.p.4.m please",
			expected: "No more ******* please",
			words:    []string{"spam"},
		},
		{
			name:     "Upper case and separators",
			input:    "P-H-I-S-H-I-N-G and SCAM",
			expected: "*************** and ****",
			words:    []string{"phishing", "scam"},
		},
		{
			name:     "Accents around a word",
			input:    "Un été plein de spam",
			expected: "Un été plein de ****",
			words:    []string{"spam"},
		},
		{
			name:     "Trailing punctuation is kept",
			input:    "Stop the scam!",
			expected: "Stop the ****!",
			words:    []string{"scam"},
		},
		{
			name:     "Nothing to censor",
			input:    "See you tomorrow at noon",
			expected: "See you tomorrow at noon",
			words:    nil,
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, words := mod.Censor(tt.input)
			req.Equal(tt.expected, content, "test=%s,", tt.name)
			req.Equal(tt.words, words, "expected=%s,words=%s", tt.expected, words)
		})
	}
}

func TestModerator_Noise_Only_Words_Are_Ignored(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given real noise and not Leet Speak associated
	mod, err := NewModerator([]string{"...", ",,,", "", "spam"}, replacementChar, log)
	req.NoError(err)

	// Then the sentence is censored
	content, words := mod.Censor("That is spam")
	req.Equal("That is ****", content)
	req.Equal([]string{"spam"}, words)

	// Then real noise is left untouched
	content, words = mod.Censor("Hello ...")
	req.Equal("Hello ...", content)
	req.Nil(words)
}

func BenchmarkModerator_Censor(b *testing.B) {
	log := logs.GetLoggerFromLevel(slog.LevelError)
	words := make([]string, 0, 10_000)
	for i := 0; i < 10_000; i++ {
		words = append(words, fmt.Sprintf("forbidden%d", i))
	}
	mod, err := NewModerator(words, replacementChar, log)
	if err != nil {
		b.Fatal(err)
	}
	message := strings.Repeat("a perfectly normal chat message ", 20) + "forbidden42"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = mod.Censor(message)
	}
}
