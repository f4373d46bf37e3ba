package indexing

import (
	es "github.com/elastic/go-elasticsearch/v8"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/elasticsearch"
)

// BulkWriters hands out Elasticsearch bulk writers.
type BulkWriters struct {
	client    *es.Client
	threshold int
	logger    infralogger.Logger
}

// NewBulkWriters creates a factory of bulk writers over client.
func NewBulkWriters(client *es.Client, threshold int, log infralogger.Logger) *BulkWriters {
	return &BulkWriters{client: client, threshold: threshold, logger: log}
}

// NewWriter returns a writer with an empty buffer.
func (f *BulkWriters) NewWriter() DocumentWriter {
	return elasticsearch.NewBulkWriter(f.client, f.threshold, f.logger)
}
