package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blrlabs/codelab/internal/tutor"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name         string
		in           string
		wantVisible  string
		wantComplete bool
	}{
		{
			name:        "no marker",
			in:          "Try again with an if statement.",
			wantVisible: "Try again with an if statement.",
		},
		{
			name:         "trailing marker",
			in:           "Exactly right! " + tutor.CompletionMarker,
			wantVisible:  "Exactly right!",
			wantComplete: true,
		},
		{
			name:         "leading marker",
			in:           tutor.CompletionMarker + "\nYou nailed it.",
			wantVisible:  "You nailed it.",
			wantComplete: true,
		},
		{
			name:         "marker mid-sentence",
			in:           "Good " + tutor.CompletionMarker + " job",
			wantVisible:  "Good  job",
			wantComplete: true,
		},
		{
			name: "empty reply",
			in:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visible, complete := parseReply(tt.in)
			assert.Equal(t, tt.wantVisible, visible)
			assert.Equal(t, tt.wantComplete, complete)
		})
	}
}
