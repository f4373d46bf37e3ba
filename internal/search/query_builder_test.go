package search_test

import (
	"errors"
	"net/url"
	"testing"

	"github.com/jonesrussell/marketplace/internal/domain"
	"github.com/jonesrussell/marketplace/internal/search"
)

var (
	anonymous = domain.Capabilities{}
	reviewer  = domain.Capabilities{IsReviewer: true}
	admin     = domain.Capabilities{IsAdmin: true}
)

func mustParams(t *testing.T, raw string) search.Params {
	t.Helper()

	values, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("ParseQuery(%q) error = %v", raw, err)
	}
	p, err := search.ParamsFromValues(values)
	if err != nil {
		t.Fatalf("ParamsFromValues(%q) error = %v", raw, err)
	}
	return p
}

func TestQueryBuilder_Authorization(t *testing.T) {
	t.Helper()

	qb := search.NewQueryBuilder()

	testCases := []struct {
		name      string
		query     string
		caps      domain.Capabilities
		wantAuthz bool
	}{
		{name: "no status", query: "", caps: anonymous},
		{name: "public status", query: "status=public", caps: anonymous},
		{name: "pending anonymous", query: "status=pending", caps: anonymous, wantAuthz: true},
		{name: "rejected anonymous", query: "status=rejected", caps: anonymous, wantAuthz: true},
		{name: "any anonymous", query: "status=any", caps: anonymous, wantAuthz: true},
		{name: "pending reviewer", query: "status=pending", caps: reviewer},
		{name: "any admin", query: "status=any", caps: admin},
		{name: "privileged flag anonymous", query: "is_privileged=true", caps: anonymous, wantAuthz: true},
		{name: "false flag anonymous", query: "has_info_request=false", caps: anonymous, wantAuthz: true},
		{name: "escalated reviewer", query: "is_escalated=1", caps: reviewer},
		{name: "editor comment admin", query: "status=public&has_editor_comment=true", caps: admin},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			filters, err := qb.Build(mustParams(t, tc.query), tc.caps, domain.Worldwide)

			var authErr *domain.AuthorizationError
			if tc.wantAuthz {
				if !errors.As(err, &authErr) {
					t.Fatalf("Build() error = %v, want AuthorizationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build() unexpected error = %v", err)
			}
			if filters.Status == nil {
				t.Error("base status filter missing")
			}
		})
	}
}

func TestQueryBuilder_Validation(t *testing.T) {
	t.Helper()

	qb := search.NewQueryBuilder()

	testCases := []struct {
		name      string
		query     string
		wantField string
	}{
		{name: "unknown type", query: "type=plugin", wantField: "type"},
		{name: "unknown status", query: "status=sleeping", wantField: "status"},
		{name: "bad signature", query: "dev=firefoxos&pro=zz.3.1", wantField: "pro"},
		{name: "bad sort", query: "sort=random", wantField: "sort"},
		{name: "bad premium type", query: "premium_types=free,gold", wantField: "premium_types"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := qb.Build(mustParams(t, tc.query), admin, domain.Worldwide)

			var valErr *domain.ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("Build() error = %v, want ValidationError", err)
			}
			if valErr.Field != tc.wantField {
				t.Errorf("Field = %q, want %q", valErr.Field, tc.wantField)
			}
		})
	}
}

func TestQueryBuilder_ValidationBeforeAuthorization(t *testing.T) {
	t.Helper()

	_, err := search.NewQueryBuilder().Build(mustParams(t, "status=sleeping"), anonymous, domain.Worldwide)
	var valErr *domain.ValidationError
	if !errors.As(err, &valErr) {
		t.Errorf("Build() error = %v, want ValidationError", err)
	}
}

func TestParamsFromValues_BadBoolean(t *testing.T) {
	t.Helper()

	_, err := search.ParamsFromValues(url.Values{"is_escalated": {"maybe"}})
	var valErr *domain.ValidationError
	if !errors.As(err, &valErr) || valErr.Field != "is_escalated" {
		t.Errorf("ParamsFromValues() error = %v, want ValidationError on is_escalated", err)
	}
}

func TestQueryBuilder_Device(t *testing.T) {
	t.Helper()

	qb := search.NewQueryBuilder()

	testCases := []struct {
		name        string
		query       string
		wantDevice  int
		wantProfile bool
	}{
		{name: "none", query: "", wantDevice: 0},
		{name: "desktop ignores profile", query: "dev=desktop&pro=7.3.1", wantDevice: domain.DeviceDesktop},
		{name: "android default mobile", query: "dev=android&pro=7.3.1", wantDevice: domain.DeviceMobile, wantProfile: true},
		{name: "android tablet", query: "dev=android&device=tablet", wantDevice: domain.DeviceTablet},
		{name: "firefoxos", query: "dev=firefoxos&pro=7.3.1", wantDevice: domain.DeviceFirefoxOS, wantProfile: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			filters, err := qb.Build(mustParams(t, tc.query), anonymous, domain.Worldwide)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}

			gotDevice := 0
			if filters.Device != nil {
				gotDevice = *filters.Device
			}
			if gotDevice != tc.wantDevice {
				t.Errorf("Device = %d, want %d", gotDevice, tc.wantDevice)
			}
			if (filters.Profile != nil) != tc.wantProfile {
				t.Errorf("Profile set = %v, want %v", filters.Profile != nil, tc.wantProfile)
			}
		})
	}
}

func TestResolveRegion(t *testing.T) {
	t.Helper()

	region, err := search.ResolveRegion("")
	if err != nil || region != domain.Worldwide {
		t.Errorf("ResolveRegion(\"\") = %v, %v; want worldwide", region, err)
	}

	region, err = search.ResolveRegion("br")
	if err != nil || region.Slug != "br" {
		t.Errorf("ResolveRegion(br) = %v, %v", region, err)
	}

	_, err = search.ResolveRegion("atlantis")
	var valErr *domain.ValidationError
	if !errors.As(err, &valErr) || valErr.Field != "region" {
		t.Errorf("ResolveRegion(atlantis) error = %v, want ValidationError on region", err)
	}
}
