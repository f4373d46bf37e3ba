package domain

import "time"

// TaskKind selects the handler of a queued task.
type TaskKind string

const (
	KindUpdateCounts     TaskKind = "update_counts"
	KindDownloadCounts   TaskKind = "download_counts"
	KindCollectionCounts TaskKind = "collection_counts"
	KindThemeUserCounts  TaskKind = "theme_user_counts"
	KindGlobalTotals     TaskKind = "global_totals"
)

// IndexingKinds lists the statistics document kinds.
var IndexingKinds = []TaskKind{KindUpdateCounts, KindDownloadCounts, KindCollectionCounts, KindThemeUserCounts}

// Valid reports whether k is a known kind.
func (k TaskKind) Valid() bool {
	switch k {
	case KindUpdateCounts, KindDownloadCounts, KindCollectionCounts, KindThemeUserCounts, KindGlobalTotals:
		return true
	default:
		return false
	}
}

// Task is one unit of background work. Indexing tasks carry IDs and an
// optional Index override; global totals tasks carry Job and Date.
type Task struct {
	ID         string    `json:"id"`
	Kind       TaskKind  `json:"kind"`
	IDs        []int64   `json:"ids,omitempty"`
	Index      string    `json:"index,omitempty"`
	Job        string    `json:"job,omitempty"`
	Date       *Date     `json:"date,omitempty"`
	Attempt    int       `json:"attempt"`
	LastError  string    `json:"last_error,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
