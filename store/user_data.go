package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListUserData returns the user's records, most recently updated first.
func (s *Store) ListUserData(ctx context.Context, userID string) ([]UserData, error) {
	rows := []UserData{}
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC, id").
		Find(&rows).Error; err != nil {
		return nil, wrap(err)
	}
	return rows, nil
}

// GetUserData returns record id when it belongs to userID, otherwise ErrNotFound.
func (s *Store) GetUserData(ctx context.Context, userID, id string) (*UserData, error) {
	var rec UserData
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&rec).Error; err != nil {
		return nil, wrap(err)
	}
	return &rec, nil
}

// CreateUserData inserts rec, assigning an id when it has none.
func (s *Store) CreateUserData(ctx context.Context, rec *UserData) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	return wrap(s.db.WithContext(ctx).Create(rec).Error)
}

// UpdateUserData overwrites title and content of an owned record.
func (s *Store) UpdateUserData(ctx context.Context, userID, id, title, content string) (*UserData, error) {
	res := s.db.WithContext(ctx).
		Model(&UserData{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"title":      title,
			"content":    content,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetUserData(ctx, userID, id)
}

// DeleteUserData removes an owned record.
func (s *Store) DeleteUserData(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&UserData{})
	if res.Error != nil {
		return wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
