package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// UpdateCount is a daily update-ping aggregate for one add-on.
type UpdateCount struct {
	ID           int64
	AddonID      int64
	Date         Date
	Count        int64
	Versions     map[string]int64
	Statuses     map[string]int64
	Applications map[string]map[string]int64
	OSes         map[string]int64
	Locales      map[string]int64
}

// DownloadCount is a daily download aggregate for one add-on.
type DownloadCount struct {
	ID      int64
	AddonID int64
	Date    Date
	Count   int64
	Sources map[string]int64
}

// CollectionCount is a daily subscriber aggregate for one collection.
type CollectionCount struct {
	ID           int64 `db:"id"`
	CollectionID int64 `db:"collection_id"`
	Date         Date  `db:"date"`
	Count        int64 `db:"count"`
}

// AddonCollectionCount is a daily download count of one add-on through a collection.
type AddonCollectionCount struct {
	CollectionID int64 `db:"collection_id"`
	Date         Date  `db:"date"`
	Count        int64 `db:"count"`
}

// CollectionStat is a named daily collection counter such as new_votes_up.
type CollectionStat struct {
	CollectionID int64  `db:"collection_id"`
	Date         Date   `db:"date"`
	Name         string `db:"name"`
	Count        int64  `db:"count"`
}

// ThemeUserCount is a daily active-user aggregate for one theme.
type ThemeUserCount struct {
	ID      int64 `db:"id"`
	AddonID int64 `db:"addon_id"`
	Date    Date  `db:"date"`
	Count   int64 `db:"count"`
}

// CompositeKey is the document id of an aggregate: "{entity_id}-{date}".
func CompositeKey(entityID int64, date Date) string {
	return fmt.Sprintf("%d-%s", entityID, date)
}

// KV is one entry of a breakdown serialized for the index.
type KV struct {
	K string `json:"k"`
	V int64  `json:"v"`
}

// KVList converts a breakdown map into a key-sorted list.
func KVList(m map[string]int64) []KV {
	out := make([]KV, 0, len(m))
	for k, v := range m {
		out = append(out, KV{K: k, V: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].K < out[j].K })
	return out
}

// UpdateCountDocument is the indexed projection of an UpdateCount.
type UpdateCountDocument struct {
	ID       int64           `json:"id"`
	Addon    int64           `json:"addon"`
	Date     Date            `json:"date"`
	Count    int64           `json:"count"`
	Versions []KV            `json:"versions"`
	OS       []KV            `json:"os"`
	Locales  []KV            `json:"locales"`
	Apps     map[string][]KV `json:"apps"`
	Status   []KV            `json:"status"`
}

// Known platforms, keyed by the lower-cased name reported in update pings.
var knownPlatforms = map[string]bool{
	"linux": true, "mac": true, "windows": true, "android": true, "maemo": true,
}

// Known application GUIDs mapped to application ids.
var knownApps = map[string]int{
	"{ec8030f7-c20a-464f-9b0e-13a3a9e97384}": 1,
	"{3550f703-e582-4d05-9a08-453d09bdfdc6}": 18,
	"{92650c4d-4b8e-4d2a-b7eb-24ecf4f6b63a}": 59,
	"{a23983c0-fd0e-11dc-95ff-0800200c9a66}": 60,
	"{aa3c5121-dab2-40e2-81ca-7ea25febc110}": 61,
}

// NewUpdateCountDocument projects u. Unknown platforms and applications are
// dropped, locales are case-folded, and the "null" status is ignored.
func NewUpdateCountDocument(u UpdateCount) UpdateCountDocument {
	doc := UpdateCountDocument{
		ID:       u.ID,
		Addon:    u.AddonID,
		Date:     u.Date,
		Count:    u.Count,
		Versions: KVList(u.Versions),
		Apps:     map[string][]KV{},
	}

	oses := map[string]int64{}
	for name, n := range u.OSes {
		if key := strings.ToLower(name); knownPlatforms[key] {
			oses[key] += n
		}
	}
	doc.OS = KVList(oses)

	locales := map[string]int64{}
	for name, n := range u.Locales {
		locales[strings.ToLower(name)] += n
	}
	doc.Locales = KVList(locales)

	for guid, versions := range u.Applications {
		appID, ok := knownApps[guid]
		if !ok {
			continue
		}
		doc.Apps[strconv.Itoa(appID)] = KVList(versions)
	}

	statuses := map[string]int64{}
	for name, n := range u.Statuses {
		if name != "null" {
			statuses[name] = n
		}
	}
	doc.Status = KVList(statuses)

	return doc
}

// DownloadCountDocument is the indexed projection of a DownloadCount.
type DownloadCountDocument struct {
	ID      int64 `json:"id"`
	Addon   int64 `json:"addon"`
	Date    Date  `json:"date"`
	Count   int64 `json:"count"`
	Sources []KV  `json:"sources"`
}

func NewDownloadCountDocument(d DownloadCount) DownloadCountDocument {
	return DownloadCountDocument{
		ID:      d.ID,
		Addon:   d.AddonID,
		Date:    d.Date,
		Count:   d.Count,
		Sources: KVList(d.Sources),
	}
}

// CollectionCountDocument is the indexed projection of a CollectionCount,
// enriched with the same day's add-on downloads and collection stats.
type CollectionCountDocument struct {
	ID    int64 `json:"id"`
	Date  Date  `json:"date"`
	Count int64 `json:"count"`
	Data  []KV  `json:"data"`
}

// Collection stat names copied into the document.
const (
	StatVotesUp     = "new_votes_up"
	StatVotesDown   = "new_votes_down"
	StatSubscribers = "new_subscribers"
)

// NewCollectionCountDocument projects c using the add-on collection counts
// and collection stats of the same collection and date.
func NewCollectionCountDocument(c CollectionCount, addonCounts []AddonCollectionCount, stats []CollectionStat) CollectionCountDocument {
	var downloads int64
	for _, ac := range addonCounts {
		downloads += ac.Count
	}

	named := map[string]int64{}
	for _, s := range stats {
		named[s.Name] += s.Count
	}

	return CollectionCountDocument{
		ID:    c.CollectionID,
		Date:  c.Date,
		Count: c.Count,
		Data: KVList(map[string]int64{
			"downloads":   downloads,
			"votes_up":    named[StatVotesUp],
			"votes_down":  named[StatVotesDown],
			"subscribers": named[StatSubscribers],
		}),
	}
}

// ThemeUserCountDocument is the indexed projection of a ThemeUserCount.
type ThemeUserCountDocument struct {
	ID    int64 `json:"id"`
	Addon int64 `json:"addon"`
	Date  Date  `json:"date"`
	Count int64 `json:"count"`
}

func NewThemeUserCountDocument(t ThemeUserCount) ThemeUserCountDocument {
	return ThemeUserCountDocument{ID: t.ID, Addon: t.AddonID, Date: t.Date, Count: t.Count}
}

// GlobalTotal is one row of the global_stats table.
type GlobalTotal struct {
	Name  string
	Count int64
	Date  Date
}
