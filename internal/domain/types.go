package domain

import "sort"

// State is the conservation state of a street asset. Values arriving from a
// remote backend outside this set are defaulted, never rejected.
type State string

const (
	StateExcellent State = "Excellent"
	StateGood      State = "Good"
	StateFair      State = "Fair"
	StatePoor      State = "Poor"
	StateDangerous State = "Dangerous"
	StateMissing   State = "Missing"
)

// NormalizeState maps a raw backend value onto the closed state enum,
// defaulting to Good.
func NormalizeState(raw string) State {
	switch State(raw) {
	case StateExcellent, StateGood, StateFair, StatePoor, StateDangerous, StateMissing:
		return State(raw)
	default:
		return StateGood
	}
}

// AssetType is the category of a tracked street element.
type AssetType string

const (
	TypeCrossing          AssetType = "Crossing"
	TypeTrafficLight      AssetType = "Traffic Light"
	TypeVerticalSign      AssetType = "Vertical Sign"
	TypeBarrier           AssetType = "Barrier"
	TypeBollard           AssetType = "Bollard"
	TypeSpeedBump         AssetType = "Speed Bump"
	TypeMirror            AssetType = "Mirror"
	TypeHorizontalGeneric AssetType = "Horizontal Marking"
	TypePMRPaint          AssetType = "PMR Paint"
	TypeLoadingZone       AssetType = "Loading Zone Paint"
	TypeAccessibilityRamp AssetType = "Accessibility Ramp"
	TypeContainer         AssetType = "Container"
	TypeAwareness         AssetType = "Awareness"
	TypeSigns             AssetType = "Signs"
	TypePaint             AssetType = "Paint"
	TypePavement          AssetType = "Pavement"
	TypeUrbanFurniture    AssetType = "Urban Furniture"
	TypeOther             AssetType = "Other"
)

var knownAssetTypes = map[AssetType]struct{}{
	TypeCrossing: {}, TypeTrafficLight: {}, TypeVerticalSign: {},
	TypeBarrier: {}, TypeBollard: {}, TypeSpeedBump: {}, TypeMirror: {},
	TypeHorizontalGeneric: {}, TypePMRPaint: {}, TypeLoadingZone: {},
	TypeAccessibilityRamp: {}, TypeContainer: {}, TypeAwareness: {},
	TypeSigns: {}, TypePaint: {}, TypePavement: {}, TypeUrbanFurniture: {},
	TypeOther: {},
}

// NormalizeAssetType maps a raw backend value onto the closed asset-type
// enum, defaulting to Crossing.
func NormalizeAssetType(raw string) AssetType {
	if _, ok := knownAssetTypes[AssetType(raw)]; ok {
		return AssetType(raw)
	}
	return TypeCrossing
}

// Location is a geographic point with optional address detail. Lat/Lng are
// required for an asset to appear in any spatial view; assets without valid
// coordinates are filtered out of map queries, not treated as errors.
type Location struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Street       string  `json:"street,omitempty"`
	Number       string  `json:"number,omitempty"`
	Neighborhood string  `json:"neighborhood,omitempty"`
	Address      string  `json:"address,omitempty"`
	City         string  `json:"city,omitempty"`
}

// Valid reports whether the location carries usable coordinates. The zero
// point is the "unset" marker used by backends that never stored a location.
func (l Location) Valid() bool {
	return l.Lat != 0 || l.Lng != 0
}

// Asset is a physical street element tracked by the inventory.
// Image and ImageThumb are opaque URIs produced by the image pipeline; this
// service never decodes them.
type Asset struct {
	ID                string    `json:"id"`
	AssetType         AssetType `json:"assetType"`
	AssetSubType      string    `json:"assetSubType,omitempty"`
	Image             string    `json:"image"`
	ImageThumb        string    `json:"imageThumb,omitempty"`
	Location          Location  `json:"location"`
	State             State     `json:"state"`
	LastPaintedDate   string    `json:"lastPaintedDate"`
	LastInspectedDate string    `json:"lastInspectedDate,omitempty"`
	PaintType         string    `json:"paintType,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	CreatedAt         int64     `json:"createdAt"`
	UpdatedAt         int64     `json:"updatedAt"`
	CreatedBy         string    `json:"createdBy,omitempty"`
	UpdatedBy         string    `json:"updatedBy,omitempty"`
	AlertDismissed    bool      `json:"alertDismissed,omitempty"`
	AccessGroups      []string  `json:"accessGroups,omitempty"`
}

// Stripped returns a copy of the asset with the primary image payload
// cleared. The thumbnail is kept so list views stay useful offline.
func (a Asset) Stripped() Asset {
	a.Image = ""
	return a
}

// StripImages returns a new slice with every primary image payload cleared.
func StripImages(assets []Asset) []Asset {
	out := make([]Asset, len(assets))
	for i, a := range assets {
		out[i] = a.Stripped()
	}
	return out
}

// ReportType classifies a saved report.
type ReportType string

const (
	ReportMaintenance ReportType = "maintenance"
	ReportTechnical   ReportType = "technical"
	ReportStatistical ReportType = "statistical"
)

// Report is an immutable named snapshot referencing a set of asset IDs.
// Deleting a report never touches the assets it references. PDFURL is the
// only field that may be attached after creation.
type Report struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Date       string     `json:"date"`
	Type       ReportType `json:"type"`
	AssetIDs   []string   `json:"crossingIds"`
	CreatedAt  int64      `json:"createdAt"`
	AIAnalysis string     `json:"aiAnalysis,omitempty"`
	CreatedBy  string     `json:"createdBy,omitempty"`
	PDFURL     string     `json:"pdfUrl,omitempty"`
}

// SortAssetsByCreatedDesc orders assets newest first. The sort is stable so
// equal timestamps keep their original relative order.
func SortAssetsByCreatedDesc(assets []Asset) {
	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].CreatedAt > assets[j].CreatedAt
	})
}

// SortReportsByCreatedDesc orders reports newest first, stable.
func SortReportsByCreatedDesc(reports []Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt > reports[j].CreatedAt
	})
}
