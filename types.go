package taroAuth

import (
	"time"

	"github.com/MrEthical07/taroAuth/session"
	"github.com/MrEthical07/taroAuth/store"
)

// User is the public snapshot of an account. It never carries the credential hash.
type User struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	FullName    string     `json:"full_name,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	IsActive    bool       `json:"is_active"`
	IsAdmin     bool       `json:"is_admin"`
	IsGuest     bool       `json:"is_guest"`
	IsVIP       bool       `json:"is_vip"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// cachedUser is the user-by-id cache entry. It includes the hash so a login
// served from cache can verify credentials without a store read.
type cachedUser struct {
	User
	PasswordHash string `json:"password_hash"`
}

func userFromRecord(rec *store.User) *cachedUser {
	return &cachedUser{
		User: User{
			ID:          rec.ID,
			Username:    rec.Username,
			Email:       rec.Email,
			FullName:    rec.FullName,
			AvatarURL:   rec.AvatarURL,
			IsActive:    rec.IsActive,
			IsAdmin:     rec.IsAdmin,
			IsGuest:     rec.IsGuest,
			IsVIP:       rec.IsVIP,
			LastLoginAt: rec.LastLoginAt,
			CreatedAt:   rec.CreatedAt,
			UpdatedAt:   rec.UpdatedAt,
		},
		PasswordHash: rec.PasswordHash,
	}
}

// Snapshot returns the fields pushed to clients through MergeState{user}.
func (u *User) Snapshot() map[string]any {
	if u == nil {
		return nil
	}
	return map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"full_name":  u.FullName,
		"avatar_url": u.AvatarURL,
		"is_admin":   u.IsAdmin,
		"is_guest":   u.IsGuest,
		"is_vip":     u.IsVIP,
	}
}

// AccountFlags are UX hints computed at login.
type AccountFlags struct {
	IsFirstLogin           bool `json:"is_first_login"`
	IsVIP                  bool `json:"is_vip"`
	IsNewUser              bool `json:"is_new_user"`
	NeedsProfileCompletion bool `json:"needs_profile_completion"`
}

// newUserWindow is how long after creation an account counts as new.
const newUserWindow = 7 * 24 * time.Hour

func accountFlags(u *User, previousLogin *time.Time, now time.Time) AccountFlags {
	return AccountFlags{
		IsFirstLogin:           previousLogin == nil,
		IsVIP:                  u.IsVIP,
		IsNewUser:              now.Sub(u.CreatedAt) < newUserWindow,
		NeedsProfileCompletion: u.Email == "" || u.FullName == "",
	}
}

// LoginResult is returned by Login and GuestLogin.
type LoginResult struct {
	User    User             `json:"user"`
	Session *session.Session `json:"-"`
	Flags   AccountFlags     `json:"flags"`
	// Redirect is the platform-specific home route.
	Redirect string `json:"redirect"`
	// HintExpiresAt is the short browser-facing expiry. The session itself lives until Session.ExpiresAt.
	HintExpiresAt time.Time `json:"hint_expires_at"`
}

// RegisterRequest is the input to Register.
type RegisterRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Email           string `json:"email,omitempty"`
}

// ProfilePatch is a partial profile update. Nil fields are left unchanged.
type ProfilePatch struct {
	Email     *string `json:"email,omitempty"`
	FullName  *string `json:"full_name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

func (p ProfilePatch) empty() bool {
	return p.Email == nil && p.FullName == nil && p.AvatarURL == nil
}

// UserData is one business record owned by a user.
type UserData struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserDataInput is the body of create and update.
type UserDataInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func userDataFromRecord(rec *store.UserData) UserData {
	return UserData{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Title:     rec.Title,
		Content:   rec.Content,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

// ActiveSession is one live session of the caller. The token is never exposed.
type ActiveSession struct {
	ID             string    `json:"id"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	Current        bool      `json:"current"`
}

// LoginAttempt is one row of a user's sign-in history.
type LoginAttempt struct {
	Success       bool      `json:"success"`
	IPAddress     string    `json:"ip_address,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CacheHealth is the result of CacheHealth.
type CacheHealth struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency_ns"`
	Prefix  string        `json:"prefix"`
}
