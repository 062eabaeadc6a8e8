package firestore

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// contextDoc stores each attribute JSON-encoded so arbitrary values keep their shape
type contextDoc struct {
	Values    map[string]string `firestore:"Values"`
	UpdatedAt time.Time         `firestore:"UpdatedAt"`
}

// historyDoc stores encoded turns oldest first
type historyDoc struct {
	Turns     []string  `firestore:"Turns"`
	UpdatedAt time.Time `firestore:"UpdatedAt"`
}

type memoryStore struct {
	client           *firestore.Client
	collectionPrefix string
	maxHistory       int
	now              func() time.Time
}

func newMemoryStore(client *firestore.Client) *memoryStore {
	return &memoryStore{
		client:     client,
		maxHistory: DefaultMaxHistory,
		now:        time.Now,
	}
}

func (s *memoryStore) contextRef(userID string) *firestore.DocumentRef {
	return s.client.Collection(s.collectionPrefix + "user_contexts").Doc(userID)
}

func (s *memoryStore) historyRef(userID string) *firestore.DocumentRef {
	return s.client.Collection(s.collectionPrefix + "chat_histories").Doc(userID)
}

func (s *memoryStore) GetContext(ctx context.Context, userID string) (*model.ContextRecord, error) {
	doc, err := s.contextRef(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get context", goerr.V(model.UserIDKey, userID))
	}

	var d contextDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal context", goerr.V(model.UserIDKey, userID))
	}

	rec := &model.ContextRecord{
		UserID:    userID,
		Values:    make(map[string]any, len(d.Values)),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	for k, raw := range d.Values {
		rec.Values[k] = model.DecodeContextValue(raw)
	}
	return rec, nil
}

func (s *memoryStore) MergeContext(ctx context.Context, userID string, values map[string]any) (*model.ContextRecord, error) {
	if userID == "" {
		return nil, goerr.Wrap(model.ErrMissingUserID, "failed to merge context")
	}

	encoded := make(map[string]any)
	for k, v := range model.SanitizeContextValues(values) {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to encode context value",
				goerr.V(model.UserIDKey, userID), goerr.V("key", k))
		}
		encoded[k] = string(raw)
	}

	// MergeAll merges nested map leaves, so existing attributes not in values are kept
	data := map[string]any{
		"Values":    encoded,
		"UpdatedAt": s.now().UTC(),
	}
	if _, err := s.contextRef(userID).Set(ctx, data, firestore.MergeAll); err != nil {
		return nil, goerr.Wrap(err, "failed to merge context", goerr.V(model.UserIDKey, userID))
	}

	return s.GetContext(ctx, userID)
}

func (s *memoryStore) DeleteContext(ctx context.Context, userID string) (bool, error) {
	return s.deleteDoc(ctx, s.contextRef(userID))
}

func (s *memoryStore) AppendTurn(ctx context.Context, userID string, turn *model.ChatTurn) error {
	if userID == "" {
		return goerr.Wrap(model.ErrMissingUserID, "failed to append turn")
	}
	payload, err := turn.Encode()
	if err != nil {
		return goerr.Wrap(err, "rejected chat turn", goerr.V(model.UserIDKey, userID))
	}

	ref := s.historyRef(userID)
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var d historyDoc
		doc, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to get history")
		}
		if err == nil {
			if err := doc.DataTo(&d); err != nil {
				return goerr.Wrap(err, "failed to unmarshal history")
			}
		}

		d.Turns = append(d.Turns, string(payload))
		if over := len(d.Turns) - s.maxHistory; over > 0 {
			d.Turns = d.Turns[over:]
		}
		d.UpdatedAt = s.now().UTC()
		return tx.Set(ref, &d)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to append turn", goerr.V(model.UserIDKey, userID))
	}
	return nil
}

func (s *memoryStore) ListTurns(ctx context.Context, userID string, limit int) ([]*model.ChatTurn, error) {
	doc, err := s.historyRef(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return []*model.ChatTurn{}, nil
		}
		return nil, goerr.Wrap(err, "failed to get history", goerr.V(model.UserIDKey, userID))
	}

	var d historyDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal history", goerr.V(model.UserIDKey, userID))
	}

	entries := d.Turns
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	turns := make([]*model.ChatTurn, 0, len(entries))
	for _, entry := range entries {
		turn, err := model.DecodeChatTurn([]byte(entry))
		if err != nil {
			logging.From(ctx).Warn("skip malformed chat turn",
				slog.String("user_id", userID), slog.Any("error", err))
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *memoryStore) DeleteHistory(ctx context.Context, userID string) (bool, error) {
	return s.deleteDoc(ctx, s.historyRef(userID))
}

func (s *memoryStore) deleteDoc(ctx context.Context, ref *firestore.DocumentRef) (bool, error) {
	if _, err := ref.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to get document", goerr.V("path", ref.Path))
	}

	if _, err := ref.Delete(ctx); err != nil {
		return false, goerr.Wrap(err, "failed to delete document", goerr.V("path", ref.Path))
	}
	return true, nil
}
