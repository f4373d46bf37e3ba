package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/marketplace/internal/domain"
	"github.com/jonesrussell/marketplace/internal/queue"
)

type fakeCounts struct {
	depth   int64
	pending int64
	delayed int64
	dead    []queue.Message
	err     error
}

func (f fakeCounts) Depth(context.Context) (int64, error)   { return f.depth, f.err }
func (f fakeCounts) Pending(context.Context) (int64, error) { return f.pending, nil }
func (f fakeCounts) DelayedCount(context.Context) (int64, error) {
	return f.delayed, nil
}

func (f fakeCounts) DeadLetters(context.Context, int64) ([]queue.Message, error) {
	return f.dead, nil
}

func serveStatus(t *testing.T, counts fakeCounts) *httptest.ResponseRecorder {
	t.Helper()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/queue", queueStatus(counts, counts, counts))

	rec := httptest.NewRecorder()
	req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/queue", http.NoBody)
	router.ServeHTTP(rec, req)
	return rec
}

func TestQueueStatus(t *testing.T) {
	t.Parallel()

	rec := serveStatus(t, fakeCounts{
		depth:   7,
		pending: 2,
		delayed: 1,
		dead: []queue.Message{{
			ID:   "1-0",
			Task: domain.Task{Kind: domain.KindUpdateCounts, Attempt: 5, LastError: "bulk rejected"},
		}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Depth       int64            `json:"depth"`
		Pending     int64            `json:"pending"`
		Delayed     int64            `json:"delayed"`
		DeadLetters []map[string]any `json:"dead_letters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(7), body.Depth)
	assert.Equal(t, int64(2), body.Pending)
	assert.Equal(t, int64(1), body.Delayed)
	require.Len(t, body.DeadLetters, 1)
	assert.Equal(t, "update_counts", body.DeadLetters[0]["kind"])
	assert.Equal(t, "bulk rejected", body.DeadLetters[0]["last_error"])
}

func TestQueueStatusUnavailable(t *testing.T) {
	t.Parallel()

	rec := serveStatus(t, fakeCounts{err: errors.New("connection refused")})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
