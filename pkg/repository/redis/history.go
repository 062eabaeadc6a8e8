package redis

import (
	"context"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

func (r *Redis) AppendTurn(ctx context.Context, userID string, turn *model.ChatTurn) error {
	if userID == "" {
		return goerr.Wrap(model.ErrMissingUserID, "failed to append turn")
	}
	payload, err := turn.Encode()
	if err != nil {
		return goerr.Wrap(err, "rejected chat turn", goerr.V(model.UserIDKey, userID))
	}

	key := r.historyKey(userID)
	if _, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, int64(r.maxHistory-1))
		return nil
	}); err != nil {
		return goerr.Wrap(err, "failed to append turn", goerr.V(model.UserIDKey, userID))
	}
	return nil
}

func (r *Redis) ListTurns(ctx context.Context, userID string, limit int) ([]*model.ChatTurn, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	entries, err := r.client.LRange(ctx, r.historyKey(userID), 0, stop).Result()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list turns", goerr.V(model.UserIDKey, userID))
	}

	// entries are most recent first
	turns := make([]*model.ChatTurn, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		turn, err := model.DecodeChatTurn([]byte(entries[i]))
		if err != nil {
			logging.From(ctx).Warn("skip malformed chat turn",
				slog.String("user_id", userID), slog.Any("error", err))
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (r *Redis) DeleteHistory(ctx context.Context, userID string) (bool, error) {
	n, err := r.client.Del(ctx, r.historyKey(userID)).Result()
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete history", goerr.V(model.UserIDKey, userID))
	}
	return n > 0, nil
}
