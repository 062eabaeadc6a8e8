package sqlite

import "context"

func (s *SQLite) InsertRaw(ctx context.Context, userID, payload string) error {
	return s.insertRaw(ctx, userID, payload)
}
