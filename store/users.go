package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FindUserByID returns the user with id or ErrNotFound.
func (s *Store) FindUserByID(ctx context.Context, id string) (*User, error) {
	var rec User
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		return nil, wrap(err)
	}
	return &rec, nil
}

// FindUserByUsername looks a user up by the normalised username.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	var rec User
	if err := s.db.WithContext(ctx).Where("username = ?", username).Take(&rec).Error; err != nil {
		return nil, wrap(err)
	}
	return &rec, nil
}

// CreateUser inserts u, assigning an id when empty. A taken username yields ErrConflict.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return wrap(s.db.WithContext(ctx).Create(u).Error)
}

// UpdateUser applies the given column values to user id.
func (s *Store) UpdateUser(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastLogin records a successful login.
func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.UpdateUser(ctx, id, map[string]any{"last_login_at": at.UTC()})
}
