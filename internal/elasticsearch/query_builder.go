package elasticsearch

import (
	"github.com/jonesrussell/marketplace/internal/domain"
)

// Full-text fields and their boosts.
var textFields = []string{"name^4", "app_slug^3", "tags^2", "description", "developer_name"}

// sortFields maps a sort option to its index field and direction.
var sortFields = map[domain.SortField][2]string{
	domain.SortDownloads: {"weekly_downloads", "desc"},
	domain.SortRating:    {"bayesian_rating", "desc"},
	domain.SortPrice:     {"price", "asc"},
	domain.SortCreated:   {"created", "desc"},
	domain.SortReviewed:  {"reviewed", "desc"},
	domain.SortName:      {"name_sort", "asc"},
}

// QueryBuilder turns validated search filters into Elasticsearch request bodies.
type QueryBuilder struct{}

// NewQueryBuilder creates a new query builder.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// Build constructs the complete search body for one page.
func (qb *QueryBuilder) Build(filters *domain.SearchFilters, from, size int) map[string]any {
	return map[string]any{
		"query":            qb.buildBoolQuery(filters),
		"from":             from,
		"size":             size,
		"sort":             qb.buildSort(filters.Sort),
		"track_total_hits": true,
	}
}

// BuildFeatured constructs the body listing featured apps that match the
// category, region and device profile of filters.
func (qb *QueryBuilder) BuildFeatured(filters *domain.SearchFilters, size int) map[string]any {
	featured := &domain.SearchFilters{
		Type:     filters.Type,
		Region:   filters.Region,
		Device:   filters.Device,
		Profile:  filters.Profile,
		Category: filters.Category,
	}
	public := domain.StatusPublic
	featured.Status = &public

	query := qb.buildBoolQuery(featured)
	boolQuery := query["bool"].(map[string]any)
	boolQuery["filter"] = append(boolQuery["filter"].([]any), term("is_featured", true))

	return map[string]any{
		"query": query,
		"size":  size,
		"sort":  qb.buildSort(domain.SortRelevance),
	}
}

// buildBoolQuery combines every filter conjunctively. Free text is the only
// scoring clause.
func (qb *QueryBuilder) buildBoolQuery(filters *domain.SearchFilters) map[string]any {
	boolQuery := map[string]any{
		"filter": qb.buildFilters(filters),
	}

	if filters.Query != "" {
		boolQuery["must"] = []any{
			map[string]any{
				"multi_match": map[string]any{
					"query":    filters.Query,
					"fields":   textFields,
					"type":     "best_fields",
					"operator": "and",
				},
			},
		}
	}

	return map[string]any{"bool": boolQuery}
}

func (qb *QueryBuilder) buildFilters(filters *domain.SearchFilters) []any {
	// Base filter first: entity type, then status unless "any".
	result := []any{term("type", int(filters.Type))}
	if filters.Status != nil && *filters.Status != domain.StatusAny {
		result = append(result, term("status", int(*filters.Status)))
	}

	if filters.Region.ID != 0 {
		result = append(result, map[string]any{
			"bool": map[string]any{
				"must_not": []any{term("region_exclusions", filters.Region.ID)},
			},
		})
	}

	if filters.Device != nil {
		result = append(result, term("device", *filters.Device))
	}

	if filters.Profile != nil {
		for _, feature := range filters.Profile.Missing() {
			result = append(result, term("features.has_"+feature, false))
		}
	}

	if filters.IsPrivileged != nil {
		result = append(result, term("is_privileged", *filters.IsPrivileged))
	}
	if filters.HasEditorComment != nil {
		result = append(result, term("has_editor_comment", *filters.HasEditorComment))
	}
	if filters.HasInfoRequest != nil {
		result = append(result, term("has_info_request", *filters.HasInfoRequest))
	}
	if filters.IsEscalated != nil {
		result = append(result, term("is_escalated", *filters.IsEscalated))
	}

	if filters.Category != "" {
		result = append(result, term("category", filters.Category))
	}
	if len(filters.PremiumTypes) > 0 {
		result = append(result, terms("premium_type", filters.PremiumTypes))
	}
	if filters.AppType != "" {
		result = append(result, term("app_type", filters.AppType))
	}
	if len(filters.Languages) > 0 {
		result = append(result, terms("supported_locales", filters.Languages))
	}

	return result
}

// buildSort orders by the requested field, then score, then id so that
// pages are stable for a fixed filter set.
func (qb *QueryBuilder) buildSort(field domain.SortField) []any {
	sort := make([]any, 0, 3)
	if f, ok := sortFields[field]; ok {
		sort = append(sort, map[string]any{f[0]: map[string]any{"order": f[1]}})
	}
	return append(sort,
		map[string]any{"_score": map[string]any{"order": "desc"}},
		map[string]any{"id": map[string]any{"order": "asc"}},
	)
}

func term(field string, value any) map[string]any {
	return map[string]any{"term": map[string]any{field: value}}
}

func terms(field string, values []string) map[string]any {
	return map[string]any{"terms": map[string]any{field: values}}
}
