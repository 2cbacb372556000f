package domain

import "time"

// Security event levels.
const (
	LevelDebug    = "DEBUG"
	LevelInfo     = "INFO"
	LevelWarning  = "WARNING"
	LevelError    = "ERROR"
	LevelCritical = "CRITICAL"
)

// Security event sources.
const (
	SourceAuth        = "AUTH_SERVICE"
	SourceFileManager = "FILE_MANAGER"
	SourceRDP         = "RDP_SERVER"
	SourceSystem      = "SYSTEM"
	SourceWebPanel    = "WEB_PANEL"
)

// SecurityEvent is an append-only audit record. The core only ever writes
// these; the logs endpoint reads them back for operators.
type SecurityEvent struct {
	ID        string
	Timestamp time.Time
	Level     string
	Source    string
	Message   string
	Details   map[string]any
	UserID    string // optional
	IPAddress string // optional
}

// EventQuery filters the audit log.
type EventQuery struct {
	Level  string
	Source string
	Since  time.Time
	Until  time.Time
	Search string
	Limit  int
}
