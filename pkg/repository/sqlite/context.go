package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"maps"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

type contextQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadContext(ctx context.Context, q contextQuerier, userID string) (*model.ContextRecord, error) {
	var valuesJSON, updatedAt string
	err := q.QueryRowContext(ctx,
		"SELECT values_json, updated_at FROM user_contexts WHERE user_id = ?", userID,
	).Scan(&valuesJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query context", goerr.V(model.UserIDKey, userID))
	}

	rec := &model.ContextRecord{UserID: userID, Values: make(map[string]any)}
	if err := json.Unmarshal([]byte(valuesJSON), &rec.Values); err != nil {
		return nil, goerr.Wrap(err, "failed to decode context", goerr.V(model.UserIDKey, userID))
	}
	ts, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse updated_at", goerr.V(model.UserIDKey, userID))
	}
	rec.UpdatedAt = ts.UTC()
	return rec, nil
}

func (s *SQLite) GetContext(ctx context.Context, userID string) (*model.ContextRecord, error) {
	return loadContext(ctx, s.db, userID)
}

func (s *SQLite) MergeContext(ctx context.Context, userID string, values map[string]any) (*model.ContextRecord, error) {
	if userID == "" {
		return nil, goerr.Wrap(model.ErrMissingUserID, "failed to merge context")
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rec, err := loadContext(ctx, tx, userID)
		if err != nil {
			return err
		}
		if rec == nil {
			rec = &model.ContextRecord{UserID: userID, Values: make(map[string]any)}
		}
		maps.Copy(rec.Values, model.SanitizeContextValues(values))
		rec.UpdatedAt = s.now().UTC()

		raw, err := json.Marshal(rec.Values)
		if err != nil {
			return goerr.Wrap(err, "failed to encode context", goerr.V(model.UserIDKey, userID))
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_contexts (user_id, values_json, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				values_json = excluded.values_json,
				updated_at  = excluded.updated_at
		`, userID, string(raw), rec.UpdatedAt.Format(time.RFC3339Nano)); err != nil {
			return goerr.Wrap(err, "failed to write context", goerr.V(model.UserIDKey, userID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// re-read so callers see values after the JSON round trip, as other backends return them
	return loadContext(ctx, s.db, userID)
}

func (s *SQLite) DeleteContext(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM user_contexts WHERE user_id = ?", userID)
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete context", goerr.V(model.UserIDKey, userID))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, goerr.Wrap(err, "failed to count deleted context", goerr.V(model.UserIDKey, userID))
	}
	return n > 0, nil
}
