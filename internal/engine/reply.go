package engine

import (
	"strings"

	"github.com/blrlabs/codelab/internal/tutor"
)

// celebration is appended to the visible reply whenever the agent signals
// module completion.
const celebration = "\n\n🎉 **Module Complete! Unlocking the next level...**"

// parseReply is the single place that understands the completion sentinel.
// It strips the marker token from the agent's reply and reports whether it
// was present, so the signaling convention can change without touching the
// state machine.
func parseReply(text string) (visible string, complete bool) {
	if !strings.Contains(text, tutor.CompletionMarker) {
		return text, false
	}
	visible = strings.TrimSpace(strings.ReplaceAll(text, tutor.CompletionMarker, ""))
	return visible, true
}
