package domain

// Region is a marketplace storefront region.
type Region struct {
	ID   int
	Slug string
}

// Worldwide is the region used when the request carries none.
var Worldwide = Region{ID: 1, Slug: "worldwide"}

var regions = map[string]Region{
	"worldwide": Worldwide,
	"us":        {ID: 2, Slug: "us"},
	"uk":        {ID: 4, Slug: "uk"},
	"br":        {ID: 7, Slug: "br"},
	"es":        {ID: 8, Slug: "es"},
	"co":        {ID: 9, Slug: "co"},
	"ve":        {ID: 10, Slug: "ve"},
	"pl":        {ID: 11, Slug: "pl"},
	"mx":        {ID: 12, Slug: "mx"},
	"hu":        {ID: 13, Slug: "hu"},
	"de":        {ID: 14, Slug: "de"},
}

// RegionBySlug looks up a region by its slug.
func RegionBySlug(slug string) (Region, bool) {
	r, ok := regions[slug]
	return r, ok
}
