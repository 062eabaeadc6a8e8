package sqlite

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/safe"
)

func (s *SQLite) AppendTurn(ctx context.Context, userID string, turn *model.ChatTurn) error {
	if userID == "" {
		return goerr.Wrap(model.ErrMissingUserID, "failed to append turn")
	}
	payload, err := turn.Encode()
	if err != nil {
		return goerr.Wrap(err, "rejected chat turn", goerr.V(model.UserIDKey, userID))
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chat_history (user_id, payload) VALUES (?, ?)", userID, string(payload),
		); err != nil {
			return goerr.Wrap(err, "failed to insert turn", goerr.V(model.UserIDKey, userID))
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM chat_history
			WHERE user_id = ? AND seq NOT IN (
				SELECT seq FROM chat_history WHERE user_id = ? ORDER BY seq DESC LIMIT ?
			)
		`, userID, userID, s.maxHistory); err != nil {
			return goerr.Wrap(err, "failed to trim history", goerr.V(model.UserIDKey, userID))
		}
		return nil
	})
}

func (s *SQLite) ListTurns(ctx context.Context, userID string, limit int) ([]*model.ChatTurn, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM (
			SELECT seq, payload FROM chat_history WHERE user_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC
	`, userID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query history", goerr.V(model.UserIDKey, userID))
	}
	defer safe.Close(ctx, rows)

	turns := make([]*model.ChatTurn, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, goerr.Wrap(err, "failed to scan turn", goerr.V(model.UserIDKey, userID))
		}
		turn, err := model.DecodeChatTurn([]byte(payload))
		if err != nil {
			logging.From(ctx).Warn("skip malformed chat turn",
				slog.String("user_id", userID), slog.Any("error", err))
			continue
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate history", goerr.V(model.UserIDKey, userID))
	}
	return turns, nil
}

func (s *SQLite) DeleteHistory(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM chat_history WHERE user_id = ?", userID)
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete history", goerr.V(model.UserIDKey, userID))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, goerr.Wrap(err, "failed to count deleted history", goerr.V(model.UserIDKey, userID))
	}
	return n > 0, nil
}

// insertRaw stores a payload without validation
func (s *SQLite) insertRaw(ctx context.Context, userID, payload string) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO chat_history (user_id, payload) VALUES (?, ?)", userID, payload)
	return err
}
