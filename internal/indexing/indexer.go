// Package indexing projects daily aggregate records into statistics
// documents and bulk-writes them to the document index.
package indexing

//go:generate mockgen -source=indexer.go -destination=mocks/mock_indexer.go -package=mocks

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/domain"
	"github.com/jonesrussell/marketplace/internal/telemetry"
)

// RecordStore reads aggregate records by id.
type RecordStore interface {
	UpdateCountsByID(ctx context.Context, ids []int64) ([]domain.UpdateCount, error)
	DownloadCountsByID(ctx context.Context, ids []int64) ([]domain.DownloadCount, error)
	CollectionCountsByCollection(ctx context.Context, collectionIDs []int64) ([]domain.CollectionCount, error)
	AddonCollectionCounts(ctx context.Context, collectionIDs []int64) ([]domain.AddonCollectionCount, error)
	CollectionStats(ctx context.Context, collectionIDs []int64) ([]domain.CollectionStat, error)
	ThemeUserCountsByID(ctx context.Context, ids []int64) ([]domain.ThemeUserCount, error)
}

// DocumentWriter buffers documents and commits them in bulk.
type DocumentWriter interface {
	Index(doc any, id, index string) error
	FlushBulk(ctx context.Context, forced bool) error
	Close() error
}

// WriterFactory acquires a fresh writer for one job invocation.
type WriterFactory interface {
	NewWriter() DocumentWriter
}

// IndexResolver picks the indices a job writes to.
type IndexResolver interface {
	ResolveTargets(ctx context.Context, kind domain.TaskKind, override string) ([]string, error)
}

// Retrier schedules another attempt of a failed task.
type Retrier interface {
	Retry(ctx context.Context, task domain.Task, cause error) error
}

// Indexer runs the four statistics indexing jobs.
type Indexer struct {
	store    RecordStore
	writers  WriterFactory
	resolver IndexResolver
	retrier  Retrier
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	logger   infralogger.Logger
}

// NewIndexer creates an indexer. metrics and tracer may be nil.
func NewIndexer(
	store RecordStore,
	writers WriterFactory,
	resolver IndexResolver,
	retrier Retrier,
	metrics *telemetry.Metrics,
	tracer trace.Tracer,
	log infralogger.Logger,
) *Indexer {
	return &Indexer{
		store:    store,
		writers:  writers,
		resolver: resolver,
		retrier:  retrier,
		metrics:  metrics,
		tracer:   tracer,
		logger:   log,
	}
}

// taskKey carries the queued task being run so a retry keeps its identity.
type taskKey struct{}

// retryTask rebuilds the failed batch as a task, keeping the ID, attempt and
// enqueue time of the queued task that triggered it.
func retryTask(ctx context.Context, kind domain.TaskKind, ids []int64, override string) domain.Task {
	task := domain.Task{Kind: kind, IDs: append([]int64(nil), ids...), Index: override}
	if queued, ok := ctx.Value(taskKey{}).(domain.Task); ok {
		task.ID = queued.ID
		task.Attempt = queued.Attempt
		task.EnqueuedAt = queued.EnqueuedAt
	}
	return task
}

// keyedDoc is a document together with its composite key.
type keyedDoc struct {
	key string
	doc any
}

// Run dispatches an indexing task to the job of its kind.
func (ix *Indexer) Run(ctx context.Context, task domain.Task) error {
	ctx = context.WithValue(ctx, taskKey{}, task)
	switch task.Kind {
	case domain.KindUpdateCounts:
		return ix.IndexUpdateCounts(ctx, task.IDs, task.Index)
	case domain.KindDownloadCounts:
		return ix.IndexDownloadCounts(ctx, task.IDs, task.Index)
	case domain.KindCollectionCounts:
		return ix.IndexCollectionCounts(ctx, task.IDs, task.Index)
	case domain.KindThemeUserCounts:
		return ix.IndexThemeUserCounts(ctx, task.IDs, task.Index)
	default:
		return fmt.Errorf("indexer cannot run %q tasks", task.Kind)
	}
}

// IndexUpdateCounts indexes the update counts with the given ids.
func (ix *Indexer) IndexUpdateCounts(ctx context.Context, ids []int64, index string) error {
	return ix.run(ctx, domain.KindUpdateCounts, ids, index, func(ctx context.Context) ([]keyedDoc, domain.Date, error) {
		records, err := ix.store.UpdateCountsByID(ctx, ids)
		if err != nil || len(records) == 0 {
			return nil, domain.Date{}, err
		}
		docs := make([]keyedDoc, 0, len(records))
		for _, r := range records {
			docs = append(docs, keyedDoc{key: domain.CompositeKey(r.AddonID, r.Date), doc: domain.NewUpdateCountDocument(r)})
		}
		return docs, records[0].Date, nil
	})
}

// IndexDownloadCounts indexes the download counts with the given ids.
func (ix *Indexer) IndexDownloadCounts(ctx context.Context, ids []int64, index string) error {
	return ix.run(ctx, domain.KindDownloadCounts, ids, index, func(ctx context.Context) ([]keyedDoc, domain.Date, error) {
		records, err := ix.store.DownloadCountsByID(ctx, ids)
		if err != nil || len(records) == 0 {
			return nil, domain.Date{}, err
		}
		docs := make([]keyedDoc, 0, len(records))
		for _, r := range records {
			docs = append(docs, keyedDoc{key: domain.CompositeKey(r.AddonID, r.Date), doc: domain.NewDownloadCountDocument(r)})
		}
		return docs, records[0].Date, nil
	})
}

// IndexCollectionCounts indexes every daily count of the given collections,
// enriched with the same day's add-on downloads and collection stats.
func (ix *Indexer) IndexCollectionCounts(ctx context.Context, collectionIDs []int64, index string) error {
	return ix.run(ctx, domain.KindCollectionCounts, collectionIDs, index, func(ctx context.Context) ([]keyedDoc, domain.Date, error) {
		records, err := ix.store.CollectionCountsByCollection(ctx, collectionIDs)
		if err != nil || len(records) == 0 {
			return nil, domain.Date{}, err
		}
		addonCounts, err := ix.store.AddonCollectionCounts(ctx, collectionIDs)
		if err != nil {
			return nil, domain.Date{}, err
		}
		stats, err := ix.store.CollectionStats(ctx, collectionIDs)
		if err != nil {
			return nil, domain.Date{}, err
		}

		addonByKey := make(map[string][]domain.AddonCollectionCount)
		for _, ac := range addonCounts {
			key := domain.CompositeKey(ac.CollectionID, ac.Date)
			addonByKey[key] = append(addonByKey[key], ac)
		}
		statsByKey := make(map[string][]domain.CollectionStat)
		for _, s := range stats {
			key := domain.CompositeKey(s.CollectionID, s.Date)
			statsByKey[key] = append(statsByKey[key], s)
		}

		docs := make([]keyedDoc, 0, len(records))
		for _, r := range records {
			key := domain.CompositeKey(r.CollectionID, r.Date)
			docs = append(docs, keyedDoc{key: key, doc: domain.NewCollectionCountDocument(r, addonByKey[key], statsByKey[key])})
		}
		return docs, records[0].Date, nil
	})
}

// IndexThemeUserCounts indexes the theme user counts with the given ids.
func (ix *Indexer) IndexThemeUserCounts(ctx context.Context, ids []int64, index string) error {
	return ix.run(ctx, domain.KindThemeUserCounts, ids, index, func(ctx context.Context) ([]keyedDoc, domain.Date, error) {
		records, err := ix.store.ThemeUserCountsByID(ctx, ids)
		if err != nil || len(records) == 0 {
			return nil, domain.Date{}, err
		}
		docs := make([]keyedDoc, 0, len(records))
		for _, r := range records {
			docs = append(docs, keyedDoc{key: domain.CompositeKey(r.AddonID, r.Date), doc: domain.NewThemeUserCountDocument(r)})
		}
		return docs, records[0].Date, nil
	})
}

// run resolves targets, loads and transforms the batch, writes it and
// forces a flush. Any failure reschedules the whole batch with the
// original ids and is returned as a TransientIndexError.
func (ix *Indexer) run(
	ctx context.Context,
	kind domain.TaskKind,
	ids []int64,
	override string,
	load func(ctx context.Context) ([]keyedDoc, domain.Date, error),
) (err error) {
	if ix.tracer != nil {
		var span trace.Span
		ctx, span = ix.tracer.Start(ctx, "indexing."+string(kind),
			trace.WithAttributes(attribute.Int("ids", len(ids)), attribute.String("index_override", override)))
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}()
	}

	written, err := ix.write(ctx, kind, ids, override, load)
	if err == nil {
		if ix.metrics != nil && written > 0 {
			ix.metrics.DocumentsIndexed.WithLabelValues(string(kind)).Add(float64(written))
		}
		return nil
	}

	if ix.metrics != nil {
		ix.metrics.BatchesFailed.WithLabelValues(string(kind)).Inc()
	}
	ix.logger.Error("Indexing batch failed",
		infralogger.String("kind", string(kind)),
		infralogger.Int("ids", len(ids)),
		infralogger.Error(err),
	)

	task := retryTask(ctx, kind, ids, override)
	if retryErr := ix.retrier.Retry(ctx, task, err); retryErr != nil {
		ix.logger.Error("Failed to schedule indexing retry",
			infralogger.String("kind", string(kind)),
			infralogger.Error(retryErr),
		)
	}
	return &domain.TransientIndexError{Kind: kind, IDs: ids, Cause: err}
}

func (ix *Indexer) write(
	ctx context.Context,
	kind domain.TaskKind,
	ids []int64,
	override string,
	load func(ctx context.Context) ([]keyedDoc, domain.Date, error),
) (int, error) {
	writer := ix.writers.NewWriter()
	defer func() {
		if closeErr := writer.Close(); closeErr != nil {
			ix.logger.Warn("Failed to release bulk writer", infralogger.Error(closeErr))
		}
	}()

	targets, err := ix.resolver.ResolveTargets(ctx, kind, override)
	if err != nil {
		return 0, fmt.Errorf("resolve targets: %w", err)
	}

	docs, firstDate, err := load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", kind, err)
	}
	if len(docs) == 0 {
		ix.logger.Debug("No records to index",
			infralogger.String("kind", string(kind)),
			infralogger.Int("ids", len(ids)),
		)
		return 0, nil
	}

	ix.logger.Info("Indexing statistics",
		infralogger.String("kind", string(kind)),
		infralogger.Int("count", len(docs)),
		infralogger.String("first_date", firstDate.String()),
		infralogger.Strings("targets", targets),
	)

	for _, target := range targets {
		for _, d := range docs {
			if err = writer.Index(d.doc, d.key, target); err != nil {
				return 0, fmt.Errorf("buffer %s: %w", d.key, err)
			}
		}
		// Update, download and collection counts commit per target index.
		if kind != domain.KindThemeUserCounts {
			if err = writer.FlushBulk(ctx, true); err != nil {
				return 0, fmt.Errorf("flush %s: %w", target, err)
			}
		}
	}

	if kind == domain.KindThemeUserCounts {
		if err = writer.FlushBulk(ctx, true); err != nil {
			return 0, fmt.Errorf("flush: %w", err)
		}
	}

	return len(docs) * len(targets), nil
}
