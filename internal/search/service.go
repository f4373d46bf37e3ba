package search

import (
	"context"
	"fmt"
	"net/url"
	"time"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/domain"
	"github.com/jonesrussell/marketplace/internal/elasticsearch"
)

// AppResourceURI is the detail URI pattern of an app.
const AppResourceURI = "/api/v1/apps/app/%d/"

// Fields only returned to reviewers and admins.
var reviewerFields = []string{
	"reviewer_flags", "is_privileged", "has_editor_comment", "has_info_request", "is_escalated",
}

// Searcher runs a search body against an index.
type Searcher interface {
	Search(ctx context.Context, index string, query map[string]any) (*domain.SearchResult, error)
}

// Request is one search call.
type Request struct {
	Params Params
	Caps   domain.Capabilities
	Region domain.Region
	Path   string
	Query  url.Values
}

// Config holds the search service settings.
type Config struct {
	Index         string
	DefaultLimit  int
	MaxLimit      int
	FeaturedLimit int
}

// Service orchestrates search operations.
type Service struct {
	searcher  Searcher
	builder   *QueryBuilder
	queries   *elasticsearch.QueryBuilder
	paginator Paginator
	config    Config
	logger    infralogger.Logger
}

// NewService creates a new search service.
func NewService(searcher Searcher, cfg Config, log infralogger.Logger) *Service {
	return &Service{
		searcher:  searcher,
		builder:   NewQueryBuilder(),
		queries:   elasticsearch.NewQueryBuilder(),
		paginator: Paginator{DefaultLimit: cfg.DefaultLimit, MaxLimit: cfg.MaxLimit},
		config:    cfg,
		logger:    log,
	}
}

// Search returns one page of apps matching the request.
func (s *Service) Search(ctx context.Context, req Request) (*domain.Page, error) {
	page, _, err := s.search(ctx, req)
	return page, err
}

// Featured returns the search page plus the featured apps for the
// request's category, region and device profile.
func (s *Service) Featured(ctx context.Context, req Request) (*domain.Page, error) {
	page, filters, err := s.search(ctx, req)
	if err != nil {
		return nil, err
	}

	res, err := s.searcher.Search(ctx, s.config.Index, s.queries.BuildFeatured(filters, s.config.FeaturedLimit))
	if err != nil {
		s.logger.Error("Featured search failed", infralogger.Error(err))
		return nil, err
	}
	page.Featured = s.rehydrate(res.Hits, req.Caps)
	return page, nil
}

func (s *Service) search(ctx context.Context, req Request) (*domain.Page, *domain.SearchFilters, error) {
	startTime := time.Now()

	size, from, err := s.paginator.Window(req.Params.Limit, req.Params.Offset)
	if err != nil {
		return nil, nil, err
	}

	filters, err := s.builder.Build(req.Params, req.Caps, req.Region)
	if err != nil {
		s.logger.Warn("Rejected search request", infralogger.Error(err))
		return nil, nil, err
	}

	res, err := s.searcher.Search(ctx, s.config.Index, s.queries.Build(filters, from, size))
	if err != nil {
		s.logger.Error("Search execution failed",
			infralogger.Error(err),
			infralogger.String("query", filters.Query),
		)
		return nil, nil, fmt.Errorf("search: %w", err)
	}

	page := &domain.Page{
		Meta:        s.paginator.Meta(req.Path, req.Query, size, from, res.Total),
		Objects:     s.rehydrate(res.Hits, req.Caps),
		ResourceURI: req.Path,
	}

	s.logger.Debug("Search completed",
		infralogger.String("query", filters.Query),
		infralogger.Int64("total_hits", res.Total),
		infralogger.Int64("took_ms", time.Since(startTime).Milliseconds()),
	)
	return page, filters, nil
}

// rehydrate sets every bundle's primary key before any dehydration runs,
// then dehydrates all bundles with the same capabilities.
func (s *Service) rehydrate(hits []domain.SearchHit, caps domain.Capabilities) []map[string]any {
	bundles := make([]domain.Bundle, len(hits))
	for i, hit := range hits {
		bundles[i] = domain.Bundle{PK: hit.ID, Hit: hit}
	}

	objects := make([]map[string]any, 0, len(bundles))
	for i := range bundles {
		objects = append(objects, dehydrate(&bundles[i], caps))
	}
	return objects
}

func dehydrate(b *domain.Bundle, caps domain.Capabilities) map[string]any {
	data := make(map[string]any, len(b.Hit.Source)+2)
	for k, v := range b.Hit.Source {
		data[k] = v
	}
	data["id"] = b.PK
	data["resource_uri"] = fmt.Sprintf(AppResourceURI, b.PK)

	if caps.Elevated() {
		if _, ok := data["reviewer_flags"]; !ok {
			data["reviewer_flags"] = map[string]any{}
		}
	} else {
		for _, f := range reviewerFields {
			delete(data, f)
		}
	}

	b.Data = data
	return data
}
