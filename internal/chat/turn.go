package chat

import "time"

// Turn is one user message and the reply recorded for it. Turns are never
// modified after they are appended to a session.
type Turn struct {
	UserText  string    `json:"user_text"`
	BotText   string    `json:"bot_text"`
	Fallback  bool      `json:"fallback,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
