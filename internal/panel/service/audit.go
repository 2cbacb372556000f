package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/store"
	"github.com/harwood-dev/deskgate/pkg/idx"
)

// AuditService appends security events and mirrors them to the structured
// log. Persistence failures are logged but never surfaced: an audit outage
// must not break the operation being audited.
type AuditService struct {
	Store  store.Store
	Logger *slog.Logger
}

// Record writes one security event. userID and ip may be empty.
func (s *AuditService) Record(ctx context.Context, level, source, message string, details map[string]any, userID, ip string) {
	event := domain.SecurityEvent{
		ID:        idx.New().String(),
		Timestamp: time.Now().UTC(),
		Level:     level,
		Source:    source,
		Message:   message,
		Details:   details,
		UserID:    userID,
		IPAddress: ip,
	}

	if err := s.Store.Events().Append(ctx, event); err != nil {
		s.Logger.Error("failed to persist security event",
			"error", err,
			"event_message", message,
			"event_level", level,
		)
	}

	attrs := []any{
		"source", source,
		"user_id", userID,
		"ip", ip,
	}
	switch level {
	case domain.LevelDebug:
		s.Logger.Debug(message, attrs...)
	case domain.LevelWarning:
		s.Logger.Warn(message, attrs...)
	case domain.LevelError, domain.LevelCritical:
		s.Logger.Error(message, attrs...)
	default:
		s.Logger.Info(message, attrs...)
	}
}

// Query reads events back for the operator logs endpoint.
func (s *AuditService) Query(ctx context.Context, q domain.EventQuery) ([]domain.SecurityEvent, error) {
	return s.Store.Events().List(ctx, q)
}
