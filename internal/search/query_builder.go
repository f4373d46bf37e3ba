package search

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/jonesrussell/marketplace/internal/domain"
)

// QueryBuilder validates request parameters and checks them against the
// caller's capabilities.
type QueryBuilder struct {
	validate *validator.Validate
}

// NewQueryBuilder creates a new query builder.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{validate: newValidator()}
}

// Build produces the filters for one search. Malformed parameters yield a
// ValidationError; privileged parameters without an elevated capability
// yield an AuthorizationError.
func (b *QueryBuilder) Build(p Params, caps domain.Capabilities, region domain.Region) (*domain.SearchFilters, error) {
	if err := b.validate.Struct(p); err != nil {
		return nil, validationError(err)
	}

	filters := &domain.SearchFilters{Type: domain.TypeApp, Region: region}
	if filters.Region.ID == 0 {
		filters.Region = domain.Worldwide
	}

	// Base filter.
	if p.Type != "" {
		filters.Type, _ = domain.ParseEntityType(p.Type)
	}
	status := domain.StatusPublic
	if p.Status != "" {
		status, _ = domain.ParseStatus(p.Status)
	}
	filters.Status = &status

	if status != domain.StatusPublic && !caps.Elevated() {
		return nil, &domain.AuthorizationError{Reason: fmt.Sprintf("status %q requires reviewer or admin", p.Status)}
	}

	filters.IsPrivileged = p.IsPrivileged
	filters.HasEditorComment = p.HasEditorComment
	filters.HasInfoRequest = p.HasInfoRequest
	filters.IsEscalated = p.IsEscalated
	if filters.Restricted() && !caps.Elevated() {
		return nil, &domain.AuthorizationError{Reason: "reviewer-only filter requires reviewer or admin"}
	}

	if err := applyDevice(filters, p); err != nil {
		return nil, err
	}

	filters.Category = p.Category
	filters.PremiumTypes = p.PremiumTypes
	filters.AppType = p.AppType
	filters.Languages = p.Languages
	filters.Query = p.Query
	filters.Sort = domain.SortField(p.Sort)

	return filters, nil
}

// applyDevice sets the device code and, for devices that report one, the
// feature profile.
func applyDevice(filters *domain.SearchFilters, p Params) error {
	var device int
	switch p.Device {
	case "desktop":
		device = domain.DeviceDesktop
	case "android":
		device = domain.DeviceMobile
		if p.DeviceType == "tablet" {
			device = domain.DeviceTablet
		}
	case "firefoxos":
		device = domain.DeviceFirefoxOS
	default:
		return nil
	}
	filters.Device = &device

	if p.Profile == "" || (p.Device != "firefoxos" && p.Device != "android") {
		return nil
	}
	profile, err := domain.ParseFeatureProfile(p.Profile)
	if err != nil {
		return err
	}
	filters.Profile = profile
	return nil
}

// ResolveRegion maps a region slug to a Region. An empty slug is worldwide.
func ResolveRegion(slug string) (domain.Region, error) {
	if slug == "" {
		return domain.Worldwide, nil
	}
	region, ok := domain.RegionBySlug(slug)
	if !ok {
		return domain.Region{}, &domain.ValidationError{Field: "region", Message: fmt.Sprintf("unknown region %q", slug)}
	}
	return region, nil
}
