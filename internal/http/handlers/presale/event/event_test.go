package event

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/presale-service/internal/models"
	"github.com/magabrotheeeer/presale-service/internal/services/presale"
)

type resolverFunc func(ctx context.Context) presale.Resolution

func (f resolverFunc) Resolve(ctx context.Context) presale.Resolution { return f(ctx) }

func TestEventHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ev := models.DefaultEvent(time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC))

	tests := []struct {
		name        string
		res         presale.Resolution
		wantVisible bool
		wantTerms   bool
	}{
		{name: "default event", res: presale.Resolution{Enabled: true, Event: ev}, wantVisible: true, wantTerms: true},
		{name: "disabled", res: presale.Resolution{Enabled: false}, wantVisible: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(logger, resolverFunc(func(context.Context) presale.Resolution { return tt.res }))
			w := httptest.NewRecorder()

			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/presale/event", nil))

			require.Equal(t, http.StatusOK, w.Code)
			var body struct {
				Status string   `json:"status"`
				Data   Response `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "OK", body.Status)
			assert.Equal(t, tt.wantVisible, body.Data.Visible)
			assert.Equal(t, tt.wantTerms, body.Data.Terms != nil)
			if tt.wantTerms {
				assert.Equal(t, models.DefaultEventID, body.Data.Event.ID)
				assert.Equal(t, "0.001", body.Data.Terms.Price.String())
			}
		})
	}
}
