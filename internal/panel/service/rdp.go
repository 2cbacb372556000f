package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/store"
	"github.com/harwood-dev/deskgate/pkg/cryptox"
	"github.com/harwood-dev/deskgate/pkg/idx"
)

var (
	ErrConnectionActive   = errors.New("connection is already active")
	ErrConnectionInactive = errors.New("connection is not active")
	ErrNotConnectionOwner = errors.New("connection belongs to another user")
)

// RDPService keeps the bookkeeping for saved RDP targets: stored
// credentials, status transitions and audit. It never speaks the protocol.
type RDPService struct {
	Store store.Store
	Box   *cryptox.SecretBox
	Audit *AuditService
}

type RDPCreateInput struct {
	Host     string
	Port     int
	Username string
	Password string
	Quality  string
}

// Create saves a new target with the password sealed at rest.
func (s *RDPService) Create(ctx context.Context, userID string, in RDPCreateInput) (domain.RDPConnection, error) {
	sealed, err := s.Box.Seal(in.Password)
	if err != nil {
		return domain.RDPConnection{}, fmt.Errorf("seal credential: %w", err)
	}

	port := in.Port
	if port <= 0 {
		port = 3389
	}
	quality := in.Quality
	if quality == "" {
		quality = "high"
	}

	now := time.Now().UTC()
	conn := domain.RDPConnection{
		ID:             idx.New().String(),
		UserID:         userID,
		Host:           in.Host,
		Port:           port,
		Username:       in.Username,
		PasswordSealed: sealed,
		Quality:        quality,
		Status:         domain.RDPDisconnected,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.Store.RDPConnections().CreateConnection(ctx, conn); err != nil {
		return domain.RDPConnection{}, fmt.Errorf("create connection: %w", err)
	}

	s.Audit.Record(ctx, domain.LevelInfo, domain.SourceRDP,
		"rdp target saved",
		map[string]any{"host": in.Host, "port": port}, userID, "")
	return conn, nil
}

// ListByUser returns the user's saved targets. Sealed passwords stay sealed;
// the HTTP layer never serializes them.
func (s *RDPService) ListByUser(ctx context.Context, userID string) ([]domain.RDPConnection, error) {
	return s.Store.RDPConnections().ListConnectionsByUser(ctx, userID)
}

// Credential opens the sealed password for a target the user owns. Used
// only when handing the credential to the local RDP client.
func (s *RDPService) Credential(ctx context.Context, userID, connID string) (string, error) {
	conn, err := s.owned(ctx, userID, connID)
	if err != nil {
		return "", err
	}
	return s.Box.Open(conn.PasswordSealed)
}

// Connect marks a target connected and stamps the session start. The actual
// protocol session is driven elsewhere; this is the state the panel displays.
func (s *RDPService) Connect(ctx context.Context, userID, connID string) (domain.RDPConnection, error) {
	conn, err := s.owned(ctx, userID, connID)
	if err != nil {
		return domain.RDPConnection{}, err
	}
	if conn.Status == domain.RDPConnected || conn.Status == domain.RDPConnecting {
		return domain.RDPConnection{}, ErrConnectionActive
	}

	now := time.Now().UTC()
	if err := s.Store.RDPConnections().UpdateConnectionStatus(ctx, connID, domain.RDPConnected, "", &now, nil); err != nil {
		return domain.RDPConnection{}, err
	}

	s.Audit.Record(ctx, domain.LevelInfo, domain.SourceRDP,
		"rdp session started",
		map[string]any{"host": conn.Host, "port": conn.Port}, userID, "")

	return s.Store.RDPConnections().GetConnectionByID(ctx, connID)
}

// Disconnect ends an active session, optionally recording a failure reason.
func (s *RDPService) Disconnect(ctx context.Context, userID, connID, reason string) error {
	conn, err := s.owned(ctx, userID, connID)
	if err != nil {
		return err
	}
	if conn.Status != domain.RDPConnected && conn.Status != domain.RDPConnecting {
		return ErrConnectionInactive
	}

	status := domain.RDPDisconnected
	if reason != "" {
		status = domain.RDPError
	}

	now := time.Now().UTC()
	if err := s.Store.RDPConnections().UpdateConnectionStatus(ctx, connID, status, reason, nil, &now); err != nil {
		return err
	}

	s.Audit.Record(ctx, domain.LevelInfo, domain.SourceRDP,
		"rdp session ended",
		map[string]any{"host": conn.Host, "reason": reason}, userID, "")
	return nil
}

// Delete removes a saved target.
func (s *RDPService) Delete(ctx context.Context, userID, connID string) error {
	if _, err := s.owned(ctx, userID, connID); err != nil {
		return err
	}
	return s.Store.RDPConnections().DeleteConnection(ctx, connID)
}

func (s *RDPService) owned(ctx context.Context, userID, connID string) (domain.RDPConnection, error) {
	conn, err := s.Store.RDPConnections().GetConnectionByID(ctx, connID)
	if err != nil {
		return domain.RDPConnection{}, err
	}
	if conn.UserID != userID {
		return domain.RDPConnection{}, ErrNotConnectionOwner
	}
	return conn, nil
}
