// Package search turns marketplace search requests into access-checked
// filters and paginated, rehydrated result pages.
package search

import (
	"errors"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonesrussell/marketplace/internal/domain"
)

// Params are the raw search request parameters.
type Params struct {
	Type         string   `form:"type" validate:"omitempty,oneof=app extension theme"`
	Status       string   `form:"status" validate:"omitempty,status"`
	Device       string   `form:"dev" validate:"omitempty,oneof=desktop android firefoxos"`
	DeviceType   string   `form:"device" validate:"omitempty,oneof=mobile tablet"`
	Profile      string   `form:"pro" validate:"omitempty,max=64"`
	Category     string   `form:"cat" validate:"omitempty,max=64"`
	PremiumTypes []string `form:"premium_types" validate:"dive,oneof=free free-inapp premium premium-inapp other"`
	AppType      string   `form:"app_type" validate:"omitempty,oneof=hosted packaged privileged"`
	Languages    []string `form:"languages" validate:"dive,min=2,max=10"`
	Query        string   `form:"q" validate:"max=200"`
	Sort         string   `form:"sort" validate:"omitempty,oneof=downloads rating price created reviewed name"`
	Limit        string   `form:"limit"`
	Offset       string   `form:"offset"`

	IsPrivileged     *bool `form:"is_privileged"`
	HasEditorComment *bool `form:"has_editor_comment"`
	HasInfoRequest   *bool `form:"has_info_request"`
	IsEscalated      *bool `form:"is_escalated"`
}

// ParamsFromValues reads Params from a query string. Boolean flags must be
// parseable by strconv.ParseBool.
func ParamsFromValues(values url.Values) (Params, error) {
	p := Params{
		Type:         values.Get("type"),
		Status:       values.Get("status"),
		Device:       values.Get("dev"),
		DeviceType:   values.Get("device"),
		Profile:      values.Get("pro"),
		Category:     values.Get("cat"),
		PremiumTypes: splitList(values["premium_types"]),
		AppType:      values.Get("app_type"),
		Languages:    splitList(values["languages"]),
		Query:        strings.TrimSpace(values.Get("q")),
		Sort:         values.Get("sort"),
		Limit:        values.Get("limit"),
		Offset:       values.Get("offset"),
	}

	flags := []struct {
		name string
		dst  **bool
	}{
		{"is_privileged", &p.IsPrivileged},
		{"has_editor_comment", &p.HasEditorComment},
		{"has_info_request", &p.HasInfoRequest},
		{"is_escalated", &p.IsEscalated},
	}
	for _, f := range flags {
		raw, ok := values[f.name]
		if !ok || len(raw) == 0 {
			continue
		}
		b, err := strconv.ParseBool(raw[0])
		if err != nil {
			return Params{}, &domain.ValidationError{Field: f.name, Message: "must be a boolean"}
		}
		*f.dst = &b
	}

	return p, nil
}

// splitList accepts both repeated parameters and comma-separated values.
func splitList(raw []string) []string {
	var out []string
	for _, v := range raw {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParseStatus(fl.Field().String())
		return ok
	})
	return v
}

// validationError converts the first validator failure into a ValidationError
// naming the request parameter.
func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return &domain.ValidationError{Field: "request", Message: err.Error()}
	}

	fe := errs[0]
	field := fe.Field()
	if i := strings.IndexByte(field, '['); i > 0 {
		field = field[:i]
	}

	msg := "failed " + fe.Tag() + " validation"
	switch fe.Tag() {
	case "oneof":
		msg = "must be one of: " + fe.Param()
	case "max":
		msg = "must be at most " + fe.Param() + " characters"
	case "min":
		msg = "must be at least " + fe.Param() + " characters"
	case "status":
		msg = "unknown status"
	}
	return &domain.ValidationError{Field: field, Message: msg}
}
