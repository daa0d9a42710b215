package store

import "time"

// User is a row of the users table. Users are soft-deactivated, never deleted.
type User struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Email        string `gorm:"size:255"`
	PasswordHash string `gorm:"size:255;not null"`
	FullName     string `gorm:"size:128"`
	AvatarURL    string `gorm:"size:512"`
	IsActive     bool   `gorm:"not null;default:true"`
	IsAdmin      bool   `gorm:"not null;default:false"`
	IsGuest      bool   `gorm:"not null;default:false"`
	IsVIP        bool   `gorm:"column:is_vip;not null;default:false"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string { return "users" }

// Session is a row of the user_sessions table.
type Session struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)"`
	UserID         string    `gorm:"index;type:varchar(36);not null"`
	SessionToken   string    `gorm:"uniqueIndex;size:128;not null"`
	IPAddress      string    `gorm:"size:64"`
	UserAgent      string    `gorm:"size:512"`
	CreatedAt      time.Time `gorm:"not null"`
	ExpiresAt      time.Time `gorm:"index;not null"`
	LastAccessedAt time.Time `gorm:"not null"`
}

func (Session) TableName() string { return "user_sessions" }

// LoginLog is one authentication attempt.
type LoginLog struct {
	ID            uint    `gorm:"primaryKey;autoIncrement"`
	UserID        *string `gorm:"index;type:varchar(36)"`
	Username      string  `gorm:"index;size:64"`
	Success       bool
	IPAddress     string `gorm:"size:64"`
	UserAgent     string `gorm:"size:512"`
	FailureReason string `gorm:"size:128"`
	CreatedAt     time.Time
}

func (LoginLog) TableName() string { return "login_logs" }

// UserData is a small per-user business record.
type UserData struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	UserID    string `gorm:"index;type:varchar(36);not null"`
	Title     string `gorm:"size:255;not null"`
	Content   string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserData) TableName() string { return "user_data" }
