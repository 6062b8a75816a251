package analysis_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/tally/src/domain/analysis"
	infra "github.com/bryanwahyu/tally/src/infra/analysis"
)

func TestHTTPGenerator_Generate(t *testing.T) {
	req := domain.Request{
		Players:       []domain.PlayerSummary{{Name: "Ana", TotalScore: 12, Scores: []float64{5, 7}, JoinedAtRound: 1, IsActive: true}},
		TotalRounds:   2,
		HighScoreWins: true,
	}

	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{name: "success", status: http.StatusOK, body: `{"analysis":"  Ana ran away with it. "}`, want: "Ana ran away with it."},
		{name: "server error", status: http.StatusBadGateway, body: `oops`, wantErr: domain.ErrGenerationFailed},
		{name: "empty text", status: http.StatusOK, body: `{"analysis":""}`, wantErr: domain.ErrEmptyAnalysis},
		{name: "bad json", status: http.StatusOK, body: `not json`, wantErr: domain.ErrGenerationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
				var got domain.Request
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				assert.Equal(t, req, got)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			gen := infra.NewHTTPGenerator("secret", srv.URL, time.Second)
			text, err := gen.Generate(context.Background(), req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestHTTPGenerator_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := infra.NewHTTPGenerator("", srv.URL, time.Second).Generate(ctx, domain.Request{})
	require.Error(t, err)
}
