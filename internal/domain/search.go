// Package domain holds the marketplace types shared by search, indexing and
// the global totals jobs.
package domain

// Capabilities are the elevated privileges of the caller.
type Capabilities struct {
	IsAdmin    bool
	IsReviewer bool
}

// Elevated reports whether the caller may use privileged search filters.
func (c Capabilities) Elevated() bool {
	return c.IsAdmin || c.IsReviewer
}

// Status is an add-on review status code.
type Status int

// StatusAny is the "any" sentinel: no status clause, privileged.
const StatusAny Status = -1

const (
	StatusIncomplete Status = 0
	StatusUnreviewed Status = 1
	StatusPending    Status = 2
	StatusNominated  Status = 3
	StatusPublic     Status = 4
	StatusDisabled   Status = 5
	StatusDeleted    Status = 11
	StatusRejected   Status = 12
	StatusWaiting    Status = 13
	StatusBlocked    Status = 15
)

var statusNames = map[string]Status{
	"any":        StatusAny,
	"incomplete": StatusIncomplete,
	"unreviewed": StatusUnreviewed,
	"pending":    StatusPending,
	"nominated":  StatusNominated,
	"public":     StatusPublic,
	"disabled":   StatusDisabled,
	"deleted":    StatusDeleted,
	"rejected":   StatusRejected,
	"waiting":    StatusWaiting,
	"blocked":    StatusBlocked,
}

// ParseStatus maps a request value to a Status.
func ParseStatus(s string) (Status, bool) {
	st, ok := statusNames[s]
	return st, ok
}

// StatusNames lists the accepted request values.
func StatusNames() []string {
	names := make([]string, 0, len(statusNames))
	for name := range statusNames {
		names = append(names, name)
	}
	return names
}

// EntityType is an add-on type code; it selects the base index partition.
type EntityType int

const (
	TypeExtension EntityType = 1
	TypeTheme     EntityType = 9
	TypeApp       EntityType = 11
)

var typeNames = map[string]EntityType{
	"extension": TypeExtension,
	"theme":     TypeTheme,
	"app":       TypeApp,
}

// ParseEntityType maps a request value to an EntityType.
func ParseEntityType(s string) (EntityType, bool) {
	t, ok := typeNames[s]
	return t, ok
}

// Device codes stored on app documents.
const (
	DeviceDesktop   = 1
	DeviceMobile    = 2
	DeviceTablet    = 3
	DeviceFirefoxOS = 4
)

// SortField names a supported result ordering.
type SortField string

const (
	SortRelevance SortField = ""
	SortDownloads SortField = "downloads"
	SortRating    SortField = "rating"
	SortPrice     SortField = "price"
	SortCreated   SortField = "created"
	SortReviewed  SortField = "reviewed"
	SortName      SortField = "name"
)

// SearchFilters is the validated, access-checked filter set of one search.
// Type and Status form the base filter; everything else narrows it further.
type SearchFilters struct {
	Type   EntityType
	Status *Status

	Region  Region
	Device  *int
	Profile *DeviceFeatureProfile

	IsPrivileged     *bool
	HasEditorComment *bool
	HasInfoRequest   *bool
	IsEscalated      *bool

	Category     string
	PremiumTypes []string
	AppType      string
	Languages    []string
	Query        string
	Sort         SortField
}

// Restricted reports whether any of the reviewer-only flags is set.
func (f *SearchFilters) Restricted() bool {
	return f.IsPrivileged != nil || f.HasEditorComment != nil || f.HasInfoRequest != nil || f.IsEscalated != nil
}
