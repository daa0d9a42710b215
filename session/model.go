package session

import (
	"time"

	"github.com/MrEthical07/taroAuth/store"
)

// Session is the authenticated session as cached under session_token:<token>.
type Session struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Token          string    `json:"token"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// ValidAt reports whether the session is usable at now. A session with
// expiry T is valid strictly before T.
func (s *Session) ValidAt(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// CreateParams carries the client metadata recorded with a new session.
type CreateParams struct {
	UserID    string
	IPAddress string
	UserAgent string
}

func fromRecord(rec *store.Session) *Session {
	return &Session{
		ID:             rec.ID,
		UserID:         rec.UserID,
		Token:          rec.SessionToken,
		IPAddress:      rec.IPAddress,
		UserAgent:      rec.UserAgent,
		CreatedAt:      rec.CreatedAt.UTC(),
		ExpiresAt:      rec.ExpiresAt.UTC(),
		LastAccessedAt: rec.LastAccessedAt.UTC(),
	}
}

func (s *Session) record() *store.Session {
	return &store.Session{
		ID:             s.ID,
		UserID:         s.UserID,
		SessionToken:   s.Token,
		IPAddress:      s.IPAddress,
		UserAgent:      s.UserAgent,
		CreatedAt:      s.CreatedAt,
		ExpiresAt:      s.ExpiresAt,
		LastAccessedAt: s.LastAccessedAt,
	}
}
