package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CreateSession persists rec. A duplicate token yields ErrConflict so the
// caller can retry with a fresh token.
func (s *Store) CreateSession(ctx context.Context, rec *Session) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	return wrap(s.db.WithContext(ctx).Create(rec).Error)
}

// FindSessionByToken returns the session row for token whether or not it is
// still valid. Callers check expiry and revocation.
func (s *Store) FindSessionByToken(ctx context.Context, token string) (*Session, error) {
	var rec Session
	if err := s.db.WithContext(ctx).Where("session_token = ?", token).Take(&rec).Error; err != nil {
		return nil, wrap(err)
	}
	return &rec, nil
}

// TouchSession refreshes last_accessed_at. A missing row is ErrNotFound so
// callers can tell a revoked session from a refreshed one.
func (s *Store) TouchSession(ctx context.Context, token string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&Session{}).
		Where("session_token = ?", token).
		Update("last_accessed_at", at.UTC())
	if res.Error != nil {
		return wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSessionByToken removes the session row. Deleting an absent row succeeds.
func (s *Store) DeleteSessionByToken(ctx context.Context, token string) error {
	return wrap(s.db.WithContext(ctx).Where("session_token = ?", token).Delete(&Session{}).Error)
}

// DeleteExpiredSessions removes every session with expires_at <= now.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&Session{})
	if res.Error != nil {
		return 0, wrap(res.Error)
	}
	return res.RowsAffected, nil
}

// ListSessionsByUser returns the user's sessions, newest first.
func (s *Store) ListSessionsByUser(ctx context.Context, userID string) ([]Session, error) {
	var rows []Session
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, wrap(err)
	}
	return rows, nil
}
