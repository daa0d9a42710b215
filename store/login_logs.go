package store

import "context"

// loginLogBatchSize bounds the rows per INSERT statement.
const loginLogBatchSize = 100

// InsertLoginLogs writes recs in as few statements as possible.
func (s *Store) InsertLoginLogs(ctx context.Context, recs []LoginLog) error {
	if len(recs) == 0 {
		return nil
	}
	return wrap(s.db.WithContext(ctx).CreateInBatches(recs, loginLogBatchSize).Error)
}

// RecentLoginLogs returns up to limit attempts for username, newest first.
func (s *Store) RecentLoginLogs(ctx context.Context, username string, limit int) ([]LoginLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []LoginLog
	if err := s.db.WithContext(ctx).
		Where("username = ?", username).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, wrap(err)
	}
	return rows, nil
}
