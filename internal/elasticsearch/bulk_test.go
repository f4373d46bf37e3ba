package elasticsearch_test

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/elasticsearch"
)

type bulkRecorder struct {
	mu       sync.Mutex
	paths    []string
	bodies   []string
	response string
}

func (r *bulkRecorder) handle(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)

	r.mu.Lock()
	r.paths = append(r.paths, req.URL.Path)
	r.bodies = append(r.bodies, string(body))
	resp := r.response
	r.mu.Unlock()

	if resp == "" {
		resp = `{"errors":false,"items":[]}`
	}
	_, _ = w.Write([]byte(resp))
}

func countLines(s string) int {
	n := 0
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			n++
		}
	}
	return n
}

func TestBulkWriter_FlushOneCallPerIndex(t *testing.T) {
	t.Helper()

	rec := &bulkRecorder{}
	writer := elasticsearch.NewBulkWriter(newTestES(t, rec.handle), 0, infralogger.NewNop())

	docs := []struct {
		id    string
		index string
	}{
		{"1-2012-01-01", "stats_update_counts-a"},
		{"1-2012-01-02", "stats_update_counts-a"},
		{"1-2012-01-01", "stats_update_counts-b"},
	}
	for _, d := range docs {
		if err := writer.Index(map[string]any{"id": 1}, d.id, d.index); err != nil {
			t.Fatalf("Index() error = %v", err)
		}
	}

	if err := writer.FlushBulk(context.Background(), false); err != nil {
		t.Fatalf("unforced FlushBulk() error = %v", err)
	}
	if len(rec.paths) != 0 {
		t.Fatalf("unforced flush below threshold sent %d requests", len(rec.paths))
	}

	if err := writer.FlushBulk(context.Background(), true); err != nil {
		t.Fatalf("FlushBulk() error = %v", err)
	}
	if len(rec.paths) != 2 {
		t.Fatalf("expected 2 bulk requests, got %d", len(rec.paths))
	}
	if rec.paths[0] != "/stats_update_counts-a/_bulk" {
		t.Errorf("first path = %s", rec.paths[0])
	}
	if countLines(rec.bodies[0]) != 4 || countLines(rec.bodies[1]) != 2 {
		t.Errorf("unexpected NDJSON line counts: %d, %d", countLines(rec.bodies[0]), countLines(rec.bodies[1]))
	}
	if writer.Pending() != 0 {
		t.Errorf("Pending() = %d after flush, want 0", writer.Pending())
	}
}

func TestBulkWriter_ItemErrors(t *testing.T) {
	t.Helper()

	rec := &bulkRecorder{response: `{"errors":true,"items":[
		{"index":{"_index":"stats","_id":"1-2012-01-01","status":201}},
		{"index":{"_index":"stats","_id":"2-2012-01-01","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad date"}}}
	]}`}
	writer := elasticsearch.NewBulkWriter(newTestES(t, rec.handle), 0, infralogger.NewNop())

	_ = writer.Index(map[string]any{}, "1-2012-01-01", "stats")
	_ = writer.Index(map[string]any{}, "2-2012-01-01", "stats")

	err := writer.FlushBulk(context.Background(), true)
	var bulkErr *elasticsearch.BulkError
	if !errors.As(err, &bulkErr) {
		t.Fatalf("FlushBulk() error = %v, want BulkError", err)
	}
	if len(bulkErr.Items) != 1 || bulkErr.Items[0].ID != "2-2012-01-01" {
		t.Errorf("BulkError items = %+v", bulkErr.Items)
	}
}

func TestBulkWriter_Closed(t *testing.T) {
	t.Helper()

	writer := elasticsearch.NewBulkWriter(newTestES(t, (&bulkRecorder{}).handle), 0, infralogger.NewNop())
	_ = writer.Index(map[string]any{}, "1", "stats")
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := writer.Index(map[string]any{}, "2", "stats"); !errors.Is(err, elasticsearch.ErrWriterClosed) {
		t.Errorf("Index() after Close error = %v, want ErrWriterClosed", err)
	}
	if err := writer.FlushBulk(context.Background(), true); !errors.Is(err, elasticsearch.ErrWriterClosed) {
		t.Errorf("FlushBulk() after Close error = %v, want ErrWriterClosed", err)
	}
}
