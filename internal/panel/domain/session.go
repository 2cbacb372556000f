package domain

import "time"

// Panel session types.
const (
	SessionTypeRDP  = "RDP"
	SessionTypeWeb  = "Web Panel"
	SessionTypeFile = "File Transfer"
)

// Panel session states.
const (
	SessionActive     = "active"
	SessionInactive   = "inactive"
	SessionTerminated = "terminated"
)

// Session records one remote-access session for bookkeeping. There is no
// protocol state here; the panel only tracks who connected from where.
type Session struct {
	ID          string
	UserID      string
	SessionType string
	IPAddress   string
	Country     string
	UserAgent   string
	StartedAt   time.Time
	EndedAt     *time.Time
	Status      string
}
