package model

import (
	"encoding/json"
	"maps"
	"time"
)

// UpdatedAtKey is the reserved attribute name carrying the write time of a ContextRecord
const UpdatedAtKey = "updated_at"

// ContextRecord is a per-user flat mapping of context attributes.
// UpdatedAt is maintained by the store on every merge-write.
type ContextRecord struct {
	UserID    string
	Values    map[string]any
	UpdatedAt time.Time
}

// Flatten returns Values plus the updated_at attribute formatted as RFC3339
func (r *ContextRecord) Flatten() map[string]any {
	out := make(map[string]any, len(r.Values)+1)
	maps.Copy(out, r.Values)
	out[UpdatedAtKey] = r.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return out
}

// Clone returns a deep-enough copy for store isolation (top-level map copied)
func (r *ContextRecord) Clone() *ContextRecord {
	values := make(map[string]any, len(r.Values))
	maps.Copy(values, r.Values)
	return &ContextRecord{
		UserID:    r.UserID,
		Values:    values,
		UpdatedAt: r.UpdatedAt,
	}
}

// SanitizeContextValues drops attributes a client may not set, namely updated_at
func SanitizeContextValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if k == UpdatedAtKey || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// DecodeContextValue decodes one JSON-encoded attribute. Values that are not
// valid JSON, such as plain strings written by other clients, are returned as is.
func DecodeContextValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
