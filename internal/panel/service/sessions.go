package service

import (
	"context"
	"fmt"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/store"
	"github.com/harwood-dev/deskgate/pkg/idx"
)

// SessionService does bookkeeping for remote-access sessions. There is no
// protocol state here; records exist so operators can see who is connected
// and kill sessions from the panel.
type SessionService struct {
	Store store.Store
	Audit *AuditService
}

// Open records a new active session and returns it.
func (s *SessionService) Open(ctx context.Context, userID, sessionType, ip, userAgent string) (domain.Session, error) {
	session := domain.Session{
		ID:          idx.New().String(),
		UserID:      userID,
		SessionType: sessionType,
		IPAddress:   ip,
		UserAgent:   userAgent,
		StartedAt:   time.Now().UTC(),
		Status:      domain.SessionActive,
	}
	if err := s.Store.Sessions().CreateSession(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func (s *SessionService) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	return s.Store.Sessions().ListSessionsByUser(ctx, userID, limit)
}

func (s *SessionService) ListActive(ctx context.Context) ([]domain.Session, error) {
	return s.Store.Sessions().ListActiveSessions(ctx)
}

// Terminate ends a session on operator request and audits who asked.
func (s *SessionService) Terminate(ctx context.Context, sessionID, requestedBy string) error {
	session, err := s.Store.Sessions().GetSessionByID(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := s.Store.Sessions().TerminateSession(ctx, sessionID, time.Now().UTC()); err != nil {
		return err
	}

	s.Audit.Record(ctx, domain.LevelInfo, domain.SourceWebPanel,
		"session terminated",
		map[string]any{
			"session_id":    sessionID,
			"session_type":  session.SessionType,
			"terminated_by": requestedBy,
		}, session.UserID, session.IPAddress)
	return nil
}
