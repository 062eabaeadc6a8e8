package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

func (r *Redis) GetContext(ctx context.Context, userID string) (*model.ContextRecord, error) {
	fields, err := r.client.HGetAll(ctx, r.contextKey(userID)).Result()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get context", goerr.V(model.UserIDKey, userID))
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeContext(ctx, userID, fields), nil
}

func (r *Redis) MergeContext(ctx context.Context, userID string, values map[string]any) (*model.ContextRecord, error) {
	if userID == "" {
		return nil, goerr.Wrap(model.ErrMissingUserID, "failed to merge context")
	}

	sanitized := model.SanitizeContextValues(values)
	fields := make(map[string]any, len(sanitized)+1)
	for k, v := range sanitized {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to encode context value",
				goerr.V(model.UserIDKey, userID), goerr.V("key", k))
		}
		fields[k] = string(raw)
	}
	fields[model.UpdatedAtKey] = r.now().UTC().Format(time.RFC3339Nano)

	key := r.contextKey(userID)
	var all *redis.StringStringMapCmd
	if _, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		all = pipe.HGetAll(ctx, key)
		return nil
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to merge context", goerr.V(model.UserIDKey, userID))
	}

	return decodeContext(ctx, userID, all.Val()), nil
}

func (r *Redis) DeleteContext(ctx context.Context, userID string) (bool, error) {
	n, err := r.client.Del(ctx, r.contextKey(userID)).Result()
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete context", goerr.V(model.UserIDKey, userID))
	}
	return n > 0, nil
}

func decodeContext(ctx context.Context, userID string, fields map[string]string) *model.ContextRecord {
	rec := &model.ContextRecord{
		UserID: userID,
		Values: make(map[string]any, len(fields)),
	}

	for k, raw := range fields {
		if k == model.UpdatedAtKey {
			ts, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				logging.From(ctx).Warn("invalid updated_at in context",
					slog.String("user_id", userID), slog.String("value", raw))
				continue
			}
			rec.UpdatedAt = ts.UTC()
			continue
		}

		rec.Values[k] = model.DecodeContextValue(raw)
	}

	return rec
}
