package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
)

// DefaultFlushThreshold is the number of buffered actions that triggers an
// unforced flush.
const DefaultFlushThreshold = 500

// ErrWriterClosed is returned when a closed writer is used.
var ErrWriterClosed = errors.New("bulk writer is closed")

// BulkItemError describes one rejected bulk action.
type BulkItemError struct {
	Index  string
	ID     string
	Status int
	Type   string
	Reason string
}

// BulkError reports the item-level failures of a bulk request.
type BulkError struct {
	Items []BulkItemError
}

func (e *BulkError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		parts = append(parts, fmt.Sprintf("%s/%s: %s (%s)", item.Index, item.ID, item.Reason, item.Type))
	}
	return fmt.Sprintf("bulk request had %d failed items: %s", len(e.Items), strings.Join(parts, "; "))
}

// BulkWriter buffers index actions per target index and commits them with
// one bulk call per index.
type BulkWriter struct {
	client    *es.Client
	log       infralogger.Logger
	threshold int
	buffers   map[string]*bytes.Buffer
	pending   int
	closed    bool
}

// NewBulkWriter creates a writer that flushes unforced once threshold
// actions are buffered. A non-positive threshold uses DefaultFlushThreshold.
func NewBulkWriter(client *es.Client, threshold int, log infralogger.Logger) *BulkWriter {
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	return &BulkWriter{
		client:    client,
		log:       log,
		threshold: threshold,
		buffers:   make(map[string]*bytes.Buffer),
	}
}

// Index buffers doc under id in index. Writing the same id again overwrites.
func (w *BulkWriter) Index(doc any, id, index string) error {
	if w.closed {
		return ErrWriterClosed
	}

	buf, ok := w.buffers[index]
	if !ok {
		buf = &bytes.Buffer{}
		w.buffers[index] = buf
	}

	meta := map[string]any{
		"index": map[string]any{
			"_index": index,
			"_id":    id,
		},
	}
	if err := json.NewEncoder(buf).Encode(meta); err != nil {
		return fmt.Errorf("failed to encode meta: %w", err)
	}
	if err := json.NewEncoder(buf).Encode(doc); err != nil {
		return fmt.Errorf("failed to encode document %s: %w", id, err)
	}

	w.pending++
	return nil
}

// Pending returns the number of buffered actions.
func (w *BulkWriter) Pending() int {
	return w.pending
}

// FlushBulk commits buffered actions. Unless forced, nothing is sent until
// the threshold is reached. The buffer is cleared whether or not the
// request succeeds.
func (w *BulkWriter) FlushBulk(ctx context.Context, forced bool) error {
	if w.closed {
		return ErrWriterClosed
	}
	if w.pending == 0 || (!forced && w.pending < w.threshold) {
		return nil
	}

	indices := make([]string, 0, len(w.buffers))
	for index := range w.buffers {
		indices = append(indices, index)
	}
	sort.Strings(indices)

	buffers := w.buffers
	w.buffers = make(map[string]*bytes.Buffer)
	w.pending = 0

	for _, index := range indices {
		if err := w.send(ctx, index, buffers[index], forced); err != nil {
			return err
		}
	}
	return nil
}

// Close discards anything still buffered and releases the writer.
func (w *BulkWriter) Close() error {
	if w.closed {
		return nil
	}
	if w.pending > 0 {
		w.log.Warn("Discarding unflushed bulk actions", infralogger.Int("pending", w.pending))
	}
	w.closed = true
	w.buffers = nil
	w.pending = 0
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Index  string `json:"_index"`
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

func (w *BulkWriter) send(ctx context.Context, index string, body *bytes.Buffer, refresh bool) error {
	opts := []func(*esapi.BulkRequest){
		w.client.Bulk.WithContext(ctx),
		w.client.Bulk.WithIndex(index),
	}
	if refresh {
		opts = append(opts, w.client.Bulk.WithRefresh("wait_for"))
	}

	res, err := w.client.Bulk(bytes.NewReader(body.Bytes()), opts...)
	if err != nil {
		return fmt.Errorf("bulk request to %s failed: %w", index, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk indexing error [%d] on %s: %s", res.StatusCode, index, string(raw))
	}

	var decoded bulkResponse
	if err = json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !decoded.Errors {
		return nil
	}

	bulkErr := &BulkError{}
	for _, item := range decoded.Items {
		for _, result := range item {
			if result.Error == nil {
				continue
			}
			bulkErr.Items = append(bulkErr.Items, BulkItemError{
				Index:  result.Index,
				ID:     result.ID,
				Status: result.Status,
				Type:   result.Error.Type,
				Reason: result.Error.Reason,
			})
		}
	}
	if len(bulkErr.Items) == 0 {
		return nil
	}
	return bulkErr
}
