package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant is one human joined to a session, possibly via several
// simultaneous connections (tabs). The identity registry owns these;
// sessions reference participants by ID only.
type Participant struct {
	ID          int                 `json:"id"` // sequential within the session, starting at 0
	SessionID   uuid.UUID           `json:"session_id"`
	Nickname    string              `json:"nickname"`
	Avatar      string              `json:"avatar,omitempty"`
	Credential  string              `json:"-"` // opaque token, returned once at join
	IsOwner     bool                `json:"is_owner"`
	IsAdmin     bool                `json:"is_admin"`
	JoinedAt    time.Time           `json:"joined_at"`
	Connections map[string]struct{} `json:"-"`
}

// Departed reports whether the participant has no live connections left.
func (p *Participant) Departed() bool {
	return len(p.Connections) == 0
}
