// Package domain contains core domain types for the Codelab tutoring engine.
package domain

// Role identifies the author of a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in the conversation transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session holds one learner's in-progress conversation plus the current
// goal/module pointer. It is owned by the caller and passed by value into
// the engine on each turn; the engine never retains it.
type Session struct {
	Goal       string    `json:"goal,omitempty"`
	Module     string    `json:"module,omitempty"`
	Transcript []Message `json:"transcript"`
}

// Selecting reports whether the session is still at goal selection,
// i.e. no goal has been chosen yet.
func (s Session) Selecting() bool {
	return s.Goal == ""
}

// Append returns a copy of the session with a turn added to the transcript.
// The receiver is not modified; callers always work with the returned value.
func (s Session) Append(role Role, content string) Session {
	transcript := make([]Message, len(s.Transcript), len(s.Transcript)+1)
	copy(transcript, s.Transcript)
	s.Transcript = append(transcript, Message{Role: role, Content: content})
	return s
}

// Reset returns the session to goal selection, discarding the transcript.
func (s Session) Reset() Session {
	return Session{}
}
