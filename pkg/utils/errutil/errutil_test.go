package errutil_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/utils/errutil"
)

func TestHandle(t *testing.T) {
	ctx := context.Background()

	gt.NoError(t, errutil.Handle(ctx, nil, "nothing"))

	err := goerr.New("store unreachable", goerr.V("user_id", "alice"))
	gt.Value(t, errutil.Handle(ctx, err, "failed")).Equal(err)
}

func TestHandleHTTP(t *testing.T) {
	t.Run("writes JSON error body with status", func(t *testing.T) {
		w := httptest.NewRecorder()
		errutil.HandleHTTP(context.Background(), w, goerr.New("user_id is required"), http.StatusBadRequest)

		gt.Value(t, w.Code).Equal(http.StatusBadRequest)
		gt.Value(t, w.Header().Get("Content-Type")).Equal("application/json")

		var body map[string]string
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &body)).Required()
		gt.Value(t, body["error"]).Equal("user_id is required")
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()
		errutil.HandleHTTP(context.Background(), w, nil, http.StatusInternalServerError)
		gt.Value(t, w.Body.Len()).Equal(0)
	})
}
