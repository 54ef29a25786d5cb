package domain

import "strings"

// FilterOptions narrows an asset list for office-staff review. Empty fields
// match everything.
type FilterOptions struct {
	States        []State
	AssetTypes    []AssetType
	Neighborhoods []string
	City          string
	Query         string
	// DateFrom/DateTo bound LastPaintedDate, inclusive, as ISO dates
	// (lexicographic comparison is safe for yyyy-mm-dd).
	DateFrom string
	DateTo   string
	// MappableOnly keeps only assets with valid coordinates, mirroring what
	// a spatial view can render.
	MappableOnly bool
}

// Match reports whether the asset passes every populated criterion.
func (f FilterOptions) Match(a Asset) bool {
	if f.MappableOnly && !a.Location.Valid() {
		return false
	}
	if len(f.States) > 0 && !containsState(f.States, a.State) {
		return false
	}
	if len(f.AssetTypes) > 0 && !containsType(f.AssetTypes, a.AssetType) {
		return false
	}
	if len(f.Neighborhoods) > 0 && !containsFold(f.Neighborhoods, a.Location.Neighborhood) {
		return false
	}
	if f.City != "" && !strings.EqualFold(f.City, a.Location.City) {
		return false
	}
	if f.DateFrom != "" && a.LastPaintedDate < f.DateFrom {
		return false
	}
	if f.DateTo != "" && a.LastPaintedDate > f.DateTo {
		return false
	}
	if f.Query != "" && !matchQuery(a, f.Query) {
		return false
	}
	return true
}

// FilterAssets returns the assets matching f, preserving order.
func FilterAssets(assets []Asset, f FilterOptions) []Asset {
	out := make([]Asset, 0, len(assets))
	for _, a := range assets {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	return out
}

func matchQuery(a Asset, q string) bool {
	q = strings.ToLower(q)
	for _, field := range []string{
		a.Notes,
		a.AssetSubType,
		a.Location.Street,
		a.Location.Address,
		a.Location.Neighborhood,
		string(a.AssetType),
	} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func containsState(set []State, s State) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsType(set []AssetType, t AssetType) bool {
	for _, v := range set {
		if v == t {
			return true
		}
	}
	return false
}

func containsFold(set []string, s string) bool {
	for _, v := range set {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
