// Package totals computes the daily global statistics and stores them by
// (name, date).
package totals

import (
	"strings"

	"github.com/jonesrussell/marketplace/internal/database"
	"github.com/jonesrussell/marketplace/internal/domain"
)

// JobName identifies one global statistic.
type JobName string

// Daily jobs.
const (
	AddonTotalDownloads           JobName = "addon_total_downloads"
	AddonDownloadsNew             JobName = "addon_downloads_new"
	AddonCountNew                 JobName = "addon_count_new"
	VersionCountNew               JobName = "version_count_new"
	UserCountTotal                JobName = "user_count_total"
	UserCountNew                  JobName = "user_count_new"
	ReviewCountTotal              JobName = "review_count_total"
	ReviewCountNew                JobName = "review_count_new"
	CollectionCountTotal          JobName = "collection_count_total"
	CollectionCountNew            JobName = "collection_count_new"
	CollectionCountAutopublishers JobName = "collection_count_autopublishers"
	CollectionAddonDownloads      JobName = "collection_addon_downloads"
	AppsCountNew                  JobName = "apps_count_new"
	AppsCountInstalled            JobName = "apps_count_installed"
	AppsReviewCountNew            JobName = "apps_review_count_new"
	MMOUserCountTotal             JobName = "mmo_user_count_total"
	MMOUserCountNew               JobName = "mmo_user_count_new"
	MMODeveloperCountTotal        JobName = "mmo_developer_count_total"
)

// Jobs computed only when the date is today, because their inputs change
// over time.
const (
	AddonCountExperimental    JobName = "addon_count_experimental"
	AddonCountNominated       JobName = "addon_count_nominated"
	AddonCountPublic          JobName = "addon_count_public"
	AddonCountPending         JobName = "addon_count_pending"
	CollectionCountPrivate    JobName = "collection_count_private"
	CollectionCountPublic     JobName = "collection_count_public"
	CollectionCountEditorPick JobName = "collection_count_editorspicks"
	CollectionCountNormal     JobName = "collection_count_normal"
)

// Metrics jobs, dated by the update count table.
const (
	AddonTotalUpdatePings JobName = "addon_total_updatepings"
	CollectorUpdatePings  JobName = "collector_updatepings"
)

var dailyJobs = []JobName{
	AddonTotalDownloads, AddonDownloadsNew, AddonCountNew, VersionCountNew,
	UserCountTotal, UserCountNew, ReviewCountTotal, ReviewCountNew,
	CollectionCountTotal, CollectionCountNew, CollectionCountAutopublishers,
	CollectionAddonDownloads, AppsCountNew, AppsCountInstalled, AppsReviewCountNew,
	MMOUserCountTotal, MMOUserCountNew, MMODeveloperCountTotal,
}

var todayOnlyJobs = []JobName{
	AddonCountExperimental, AddonCountNominated, AddonCountPublic, AddonCountPending,
	CollectionCountPrivate, CollectionCountPublic, CollectionCountEditorPick, CollectionCountNormal,
}

var metricsJobs = []JobName{AddonTotalUpdatePings, CollectorUpdatePings}

// Stored codes used by the queries.
const (
	addonTypeWebapp         = 11
	collectionNormal        = 0
	collectionSynchronized  = 1
	collectionFeatured      = 2
	loginSourceMMOBrowserID = 2
)

// ParseJobName validates a job name against the catalogue.
func ParseJobName(s string) (JobName, error) {
	for _, set := range [][]JobName{dailyJobs, todayOnlyJobs, metricsJobs} {
		for _, j := range set {
			if string(j) == s {
				return j, nil
			}
		}
	}
	return "", domain.ErrUnknownJob
}

// IsMetrics reports whether j belongs to the metrics registry.
func (j JobName) IsMetrics() bool {
	return j == AddonTotalUpdatePings || j == CollectorUpdatePings
}

// TodayOnly reports whether j exists only for today's date.
func (j JobName) TodayOnly() bool {
	for _, t := range todayOnlyJobs {
		if t == j {
			return true
		}
	}
	return false
}

// Secondary reports whether j is also recorded in the secondary metrics store.
func (j JobName) Secondary() bool {
	return strings.HasPrefix(string(j), "apps") || strings.HasPrefix(string(j), "mmo")
}

// DailyJobs lists the daily registry for date. Same-day jobs are included
// only when date is today.
func DailyJobs(date, today domain.Date) []JobName {
	jobs := append([]JobName(nil), dailyJobs...)
	if date.Equal(today) {
		jobs = append(jobs, todayOnlyJobs...)
	}
	return jobs
}

// MetricsJobs lists the metrics registry.
func MetricsJobs() []JobName {
	return append([]JobName(nil), metricsJobs...)
}

// Query returns the statistic query of j at date. Ranges are [date, date+1).
func Query(j JobName, date domain.Date, collectorAddonID int64) (database.StatQuery, error) {
	day := date.Time()
	next := date.Next().Time()
	rangeArgs := []any{day, next}

	q := func(sql string, args ...any) (database.StatQuery, error) {
		return database.StatQuery{SQL: sql, Args: args}, nil
	}

	switch j {
	// Add-on downloads
	case AddonTotalDownloads:
		return q(`SELECT SUM(count) FROM download_counts WHERE date < $1`, next)
	case AddonDownloadsNew:
		return q(`SELECT SUM(count) FROM download_counts WHERE date = $1`, day)

	// Add-on and version counts
	case AddonCountNew:
		return q(`SELECT COUNT(*) FROM addons WHERE created >= $1 AND created < $2`, rangeArgs...)
	case VersionCountNew:
		return q(`SELECT COUNT(*) FROM versions WHERE created >= $1 AND created < $2`, rangeArgs...)

	// Users
	case UserCountTotal:
		return q(`SELECT COUNT(*) FROM users WHERE created < $1`, next)
	case UserCountNew:
		return q(`SELECT COUNT(*) FROM users WHERE created >= $1 AND created < $2`, rangeArgs...)

	// Reviews
	case ReviewCountTotal:
		return q(`SELECT COUNT(*) FROM reviews WHERE created < $1 AND NOT editorreview`, next)
	case ReviewCountNew:
		return q(`SELECT COUNT(*) FROM reviews WHERE created >= $1 AND created < $2 AND NOT editorreview`, rangeArgs...)

	// Collections
	case CollectionCountTotal:
		return q(`SELECT COUNT(*) FROM collections WHERE created < $1`, next)
	case CollectionCountNew:
		return q(`SELECT COUNT(*) FROM collections WHERE created >= $1 AND created < $2`, rangeArgs...)
	case CollectionCountAutopublishers:
		return q(`SELECT COUNT(*) FROM collections WHERE created < $1 AND type = $2`, next, collectionSynchronized)
	case CollectionAddonDownloads:
		return q(`SELECT SUM(count) FROM addon_collection_counts WHERE date <= $1`, day)

	// Marketplace
	case AppsCountNew:
		return q(`SELECT COUNT(*) FROM addons WHERE created >= $1 AND created < $2 AND type = $3`, day, next, addonTypeWebapp)
	case AppsCountInstalled:
		return q(`SELECT COUNT(*) FROM users_install i JOIN addons a ON a.id = i.addon_id
			WHERE i.created >= $1 AND i.created < $2 AND a.type = $3`, day, next, addonTypeWebapp)
	case AppsReviewCountNew:
		return q(`SELECT COUNT(*) FROM reviews r JOIN addons a ON a.id = r.addon_id
			WHERE r.created >= $1 AND r.created < $2 AND NOT r.editorreview AND a.type = $3`, day, next, addonTypeWebapp)
	case MMOUserCountTotal:
		return q(`SELECT COUNT(*) FROM users WHERE created < $1 AND source = $2`, next, loginSourceMMOBrowserID)
	case MMOUserCountNew:
		return q(`SELECT COUNT(*) FROM users WHERE created >= $1 AND created < $2 AND source = $3`, day, next, loginSourceMMOBrowserID)
	case MMODeveloperCountTotal:
		return q(`SELECT COUNT(DISTINCT au.user_id) FROM addons_users au JOIN addons a ON a.id = au.addon_id
			WHERE a.type = $1`, addonTypeWebapp)

	// Same-day snapshots
	case AddonCountExperimental:
		return q(`SELECT COUNT(*) FROM addons WHERE created < $1 AND status = $2 AND NOT disabled_by_user`, next, int(domain.StatusUnreviewed))
	case AddonCountNominated:
		return q(`SELECT COUNT(*) FROM addons WHERE created < $1 AND status = $2 AND NOT disabled_by_user`, next, int(domain.StatusNominated))
	case AddonCountPublic:
		return q(`SELECT COUNT(*) FROM addons WHERE created < $1 AND status = $2 AND NOT disabled_by_user`, next, int(domain.StatusPublic))
	case AddonCountPending:
		return q(`SELECT COUNT(DISTINCT v.id) FROM versions v JOIN files f ON f.version_id = v.id
			WHERE v.created < $1 AND f.status = $2`, next, int(domain.StatusPending))
	case CollectionCountPrivate:
		return q(`SELECT COUNT(*) FROM collections WHERE created < $1 AND NOT listed`, next)
	case CollectionCountPublic:
		return q(`SELECT COUNT(*) FROM collections WHERE created < $1 AND listed`, next)
	case CollectionCountEditorPick:
		return q(`SELECT COUNT(*) FROM collections WHERE created < $1 AND type = $2`, next, collectionFeatured)
	case CollectionCountNormal:
		return q(`SELECT COUNT(*) FROM collections WHERE created < $1 AND type = $2`, next, collectionNormal)

	// Metrics
	case AddonTotalUpdatePings:
		return q(`SELECT SUM(count) FROM update_counts WHERE date = $1`, day)
	case CollectorUpdatePings:
		return database.StatQuery{
			SQL:        `SELECT count FROM update_counts WHERE addon_id = $1 AND date = $2`,
			Args:       []any{collectorAddonID, day},
			RequireRow: true,
		}, nil
	}

	return database.StatQuery{}, domain.ErrUnknownJob
}
