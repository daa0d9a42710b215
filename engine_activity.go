package taroAuth

import (
	"context"

	"github.com/MrEthical07/taroAuth/store"
)

const (
	defaultLoginHistory = 20
	maxLoginHistory     = 100
)

// ActiveSessions lists userID's sessions that are still valid, newest first.
// The entry whose id is currentID is flagged as the caller's own. Revoked
// sessions are gone from the store and never appear.
func (e *Engine) ActiveSessions(ctx context.Context, userID, currentID string) ([]ActiveSession, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	rows, err := e.store.ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, e.storeError(ctx, "list_sessions", err)
	}

	now := e.now().UTC()
	out := make([]ActiveSession, 0, len(rows))
	for i := range rows {
		if !now.Before(rows[i].ExpiresAt) {
			continue
		}
		out = append(out, activeSessionFromRecord(&rows[i], currentID))
	}
	return out, nil
}

// LoginHistory returns the most recent sign-in attempts against userID's
// username, newest first. limit is clamped to [1, 100]; zero means 20.
func (e *Engine) LoginHistory(ctx context.Context, userID string, limit int) ([]LoginAttempt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultLoginHistory
	case limit > maxLoginHistory:
		limit = maxLoginHistory
	}

	u, err := e.userByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	rows, err := e.store.RecentLoginLogs(ctx, u.Username, limit)
	if err != nil {
		return nil, e.storeError(ctx, "login_history", err)
	}

	out := make([]LoginAttempt, 0, len(rows))
	for i := range rows {
		out = append(out, loginAttemptFromRecord(&rows[i]))
	}
	return out, nil
}

func activeSessionFromRecord(rec *store.Session, currentID string) ActiveSession {
	return ActiveSession{
		ID:             rec.ID,
		IPAddress:      rec.IPAddress,
		UserAgent:      rec.UserAgent,
		CreatedAt:      rec.CreatedAt,
		LastAccessedAt: rec.LastAccessedAt,
		ExpiresAt:      rec.ExpiresAt,
		Current:        rec.ID == currentID,
	}
}

func loginAttemptFromRecord(rec *store.LoginLog) LoginAttempt {
	return LoginAttempt{
		Success:       rec.Success,
		IPAddress:     rec.IPAddress,
		UserAgent:     rec.UserAgent,
		FailureReason: rec.FailureReason,
		CreatedAt:     rec.CreatedAt,
	}
}
