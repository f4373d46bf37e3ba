package elasticsearch

import (
	"github.com/jonesrussell/marketplace/internal/domain"
)

func kvField() map[string]any {
	return map[string]any{
		"type": "nested",
		"properties": map[string]any{
			"k": map[string]any{"type": "keyword"},
			"v": map[string]any{"type": "long"},
		},
	}
}

func statsMapping(extra map[string]any) map[string]any {
	properties := map[string]any{
		"id":    map[string]any{"type": "long"},
		"date":  map[string]any{"type": "date", "format": "yyyy-MM-dd"},
		"count": map[string]any{"type": "long"},
	}
	for k, v := range extra {
		properties[k] = v
	}
	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]any{
			"dynamic":    "strict",
			"properties": properties,
		},
	}
}

// StatsMapping returns the index body for the statistics documents of kind.
func StatsMapping(kind domain.TaskKind) map[string]any {
	addon := map[string]any{"type": "long"}

	switch kind {
	case domain.KindUpdateCounts:
		return statsMapping(map[string]any{
			"addon":    addon,
			"versions": kvField(),
			"os":       kvField(),
			"locales":  kvField(),
			"status":   kvField(),
			"apps":     map[string]any{"type": "object", "dynamic": true},
		})
	case domain.KindDownloadCounts:
		return statsMapping(map[string]any{
			"addon":   addon,
			"sources": kvField(),
		})
	case domain.KindCollectionCounts:
		return statsMapping(map[string]any{
			"data": kvField(),
		})
	case domain.KindThemeUserCounts:
		return statsMapping(map[string]any{
			"addon": addon,
		})
	default:
		return nil
	}
}

// AppsMapping returns the index body for app search documents.
func AppsMapping() map[string]any {
	features := make(map[string]any, len(domain.AppFeatures))
	for _, f := range domain.AppFeatures {
		features["has_"+f] = map[string]any{"type": "boolean"}
	}

	keyword := map[string]any{"type": "keyword"}
	integer := map[string]any{"type": "integer"}
	boolean := map[string]any{"type": "boolean"}

	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":                 map[string]any{"type": "long"},
				"app_slug":           keyword,
				"name":               map[string]any{"type": "text"},
				"name_sort":          keyword,
				"description":        map[string]any{"type": "text"},
				"developer_name":     map[string]any{"type": "text"},
				"tags":               map[string]any{"type": "text"},
				"type":               integer,
				"status":             integer,
				"device":             integer,
				"region_exclusions":  integer,
				"category":           keyword,
				"premium_type":       keyword,
				"app_type":           keyword,
				"supported_locales":  keyword,
				"is_featured":        boolean,
				"is_privileged":      boolean,
				"has_editor_comment": boolean,
				"has_info_request":   boolean,
				"is_escalated":       boolean,
				"reviewer_flags":     map[string]any{"type": "object", "enabled": false},
				"weekly_downloads":   map[string]any{"type": "long"},
				"bayesian_rating":    map[string]any{"type": "float"},
				"price":              map[string]any{"type": "scaled_float", "scaling_factor": 100},
				"created":            map[string]any{"type": "date"},
				"reviewed":           map[string]any{"type": "date"},
				"features":           map[string]any{"properties": features},
			},
		},
	}
}
