package hotspot

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds surfaced by the engine. Callers match with errors.Is.
var (
	// ErrConfig marks configuration problems (bad threshold, mismatched
	// grid dimensions, non-positive tile size). Fatal to the run.
	ErrConfig = errors.New("invalid engine configuration")

	// ErrData marks invalid grid data reaching refinement (negative or
	// non-finite cell values). Fatal to the affected cluster only.
	ErrData = errors.New("invalid grid data")
)

// GeoBounds describes the geographic area covered by a grid.
type GeoBounds struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

// Validate checks that the bounds describe a non-degenerate area.
func (b GeoBounds) Validate() error {
	if b.LatMin >= b.LatMax {
		return fmt.Errorf("%w: lat_min %.6f must be below lat_max %.6f", ErrConfig, b.LatMin, b.LatMax)
	}
	if b.LonMin >= b.LonMax {
		return fmt.Errorf("%w: lon_min %.6f must be below lon_max %.6f", ErrConfig, b.LonMin, b.LonMax)
	}
	return nil
}

// CellCenter maps a grid cell to the geographic centre of the area it
// covers. The mapping is a fixed linear transform: row 0 sits at the
// southern edge, column 0 at the western edge.
func (b GeoBounds) CellCenter(row, col, size int) (lat, lon float64) {
	latStep := (b.LatMax - b.LatMin) / float64(size)
	lonStep := (b.LonMax - b.LonMin) / float64(size)
	lat = b.LatMin + (float64(row)+0.5)*latStep
	lon = b.LonMin + (float64(col)+0.5)*lonStep
	return lat, lon
}

// Cell is a (row, col) index into a Grid.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Candidate is a cell whose normalised intensity exceeded the
// detection threshold. Produced and consumed within one detection pass.
type Candidate struct {
	Cell
	// Intensity is the normalised [0,1] value of the cell.
	Intensity float64 `json:"intensity"`
	// Heat is the raw grid value (source units, e.g. km/h).
	Heat float64 `json:"heat"`
}

// Cluster is a connected group of candidates. Immutable once computed.
type Cluster struct {
	Members []Candidate `json:"members"`

	// CenterLat and CenterLon are the intensity-weighted mean of the
	// member cell coordinates.
	CenterLat float64 `json:"center_lat"`
	CenterLon float64 `json:"center_lon"`

	// CenterRow and CenterCol are the weighted centre in grid space.
	CenterRow float64 `json:"center_row"`
	CenterCol float64 `json:"center_col"`

	// PeakIntensity is the maximum member intensity. The peak of the
	// cluster, not its average: a single severe cell is never diluted
	// by weaker neighbours.
	PeakIntensity float64 `json:"peak_intensity"`

	// MeanHeat is the mean raw value across members.
	MeanHeat float64 `json:"mean_heat"`
}

// Organization is one business record near a cluster centre, supplied
// by an external lookup and validated at the boundary.
type Organization struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	// ClosingHour is the 24h closing hour parsed from the schedule.
	ClosingHour int `json:"closing_hour"`
}

// Event is one event record near a cluster centre.
type Event struct {
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	StartTime          time.Time `json:"start_time"`
	ExpectedAttendance int       `json:"expected_attendance"`
	// IsPredicted marks events expected within the prediction horizon
	// rather than already under way.
	IsPredicted bool `json:"is_predicted"`
}

// OrganizationReport carries the organisations found near one cluster.
// An empty report is valid and reduces the refinement factor toward 1.
type OrganizationReport struct {
	Organizations []Organization `json:"organizations"`
}

// Count returns the number of organisations in the report.
func (r OrganizationReport) Count() int { return len(r.Organizations) }

// HasLateClosing reports whether any organisation closes after the
// given hour.
func (r OrganizationReport) HasLateClosing(afterHour int) bool {
	for _, o := range r.Organizations {
		if o.ClosingHour > afterHour {
			return true
		}
	}
	return false
}

// EventReport carries the events found near one cluster.
type EventReport struct {
	Events []Event `json:"events"`
}

// Active reports whether any event is under way or predicted.
func (r EventReport) Active() bool { return len(r.Events) > 0 }

// Tile is one fixed-size geographic partition of the covered bounds
// with its heat value for a given source grid. Field names are the
// stable external contract for persisted output.
type Tile struct {
	TileID         string  `json:"tile_id"`
	GridX          int     `json:"grid_x"`
	GridY          int     `json:"grid_y"`
	LatMin         float64 `json:"lat_min"`
	LatMax         float64 `json:"lat_max"`
	LonMin         float64 `json:"lon_min"`
	LonMax         float64 `json:"lon_max"`
	CenterLat      float64 `json:"center_lat"`
	CenterLon      float64 `json:"center_lon"`
	HeatLevel      float64 `json:"heat_level"`
	NormalizedHeat float64 `json:"normalized_heat"`
}

// ClusterSummary is the enriched, report-facing view of a cluster.
type ClusterSummary struct {
	CenterLat         float64        `json:"center_lat"`
	CenterLon         float64        `json:"center_lon"`
	Intensity         float64        `json:"intensity"`
	HeatLevel         float64        `json:"heat_level"`
	MemberCount       int            `json:"member_count"`
	RefinementFactor  float64        `json:"refinement_factor"`
	OrganizationCount int            `json:"organization_count"`
	Organizations     []Organization `json:"organizations,omitempty"`
	Events            []Event        `json:"events,omitempty"`
}

// ReportKind distinguishes the two artefacts produced per run.
type ReportKind string

const (
	ReportCurrent   ReportKind = "current"
	ReportPredicted ReportKind = "predicted"
)

// Report is the assembled output for one point in time: enriched
// clusters plus the tile heat map, in deterministic order.
type Report struct {
	Kind        ReportKind `json:"kind"`
	GeneratedAt time.Time  `json:"generated_at"`
	// HorizonMinutes is zero for the current report.
	HorizonMinutes int              `json:"horizon_minutes"`
	Bounds         GeoBounds        `json:"bounds"`
	Clusters       []ClusterSummary `json:"clusters"`
	Tiles          []Tile           `json:"tiles"`
}
