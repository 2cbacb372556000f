package domain

import "time"

// RDP connection states. These are bookkeeping only: the panel never speaks
// the RDP protocol itself.
const (
	RDPDisconnected = "disconnected"
	RDPConnecting   = "connecting"
	RDPConnected    = "connected"
	RDPError        = "error"
)

type RDPConnection struct {
	ID       string
	UserID   string
	Host     string
	Port     int
	Username string

	// PasswordSealed is the stored credential, AES-GCM encrypted.
	PasswordSealed string

	Quality   string // low, medium, high, ultra
	Status    string
	StartedAt *time.Time
	EndedAt   *time.Time
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}
