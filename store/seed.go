package store

import (
	"context"
	"errors"
)

const (
	AdminUsername = "admin"
	// adminPasswordHash is the bcrypt hash of "password".
	adminPasswordHash = "$2b$10$92IXUNpkjO0rOQ5byMi.Ye4oKoEa3Ro9llC/.og/at2.uheWG/igi"
)

// SeedAdmin inserts the default administrator unless it already exists.
func (s *Store) SeedAdmin(ctx context.Context) error {
	_, err := s.FindUserByUsername(ctx, AdminUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	err = s.CreateUser(ctx, &User{
		Username:     AdminUsername,
		Email:        "admin@example.com",
		PasswordHash: adminPasswordHash,
		FullName:     "Administrator",
		IsActive:     true,
		IsAdmin:      true,
	})
	if errors.Is(err, ErrConflict) {
		return nil
	}
	if err == nil {
		s.logger.InfoContext(ctx, "seeded default administrator", "operation", "seed_admin", "outcome", "success")
	}
	return err
}
