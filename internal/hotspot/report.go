package hotspot

import (
	"sort"
	"time"
)

// Summarize converts detection output plus its refinement context into
// report-facing cluster summaries. orgs, events, and factors are
// indexed by cluster; pass nil context for a detection-only summary
// (factors default to 1).
func Summarize(clusters []Cluster, orgs []OrganizationReport, events []EventReport, factors []float64) []ClusterSummary {
	summaries := make([]ClusterSummary, len(clusters))
	for i, c := range clusters {
		s := ClusterSummary{
			CenterLat:        c.CenterLat,
			CenterLon:        c.CenterLon,
			Intensity:        c.PeakIntensity,
			HeatLevel:        c.MeanHeat,
			MemberCount:      len(c.Members),
			RefinementFactor: 1,
		}
		if factors != nil {
			s.RefinementFactor = factors[i]
		}
		if orgs != nil {
			s.OrganizationCount = orgs[i].Count()
			s.Organizations = orgs[i].Organizations
		}
		if events != nil {
			s.Events = events[i].Events
		}
		summaries[i] = s
	}
	return summaries
}

// AssembleReports packages detector, refiner, and tile output into the
// two artefacts of a run. Pure aggregation plus ordering: clusters by
// descending aggregate intensity, tiles by tile_id, so downstream
// consumers see identical ordering across runs with identical inputs.
func AssembleReports(now time.Time, bounds GeoBounds, horizonMinutes int,
	currentClusters []ClusterSummary, currentTiles []Tile,
	predictedClusters []ClusterSummary, predictedTiles []Tile) (current, predicted Report) {

	current = Report{
		Kind:        ReportCurrent,
		GeneratedAt: now,
		Bounds:      bounds,
		Clusters:    orderClusters(currentClusters),
		Tiles:       orderTiles(currentTiles),
	}
	predicted = Report{
		Kind:           ReportPredicted,
		GeneratedAt:    now,
		HorizonMinutes: horizonMinutes,
		Bounds:         bounds,
		Clusters:       orderClusters(predictedClusters),
		Tiles:          orderTiles(predictedTiles),
	}
	return current, predicted
}

func orderClusters(in []ClusterSummary) []ClusterSummary {
	out := make([]ClusterSummary, len(in))
	copy(out, in)
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Intensity != out[b].Intensity {
			return out[a].Intensity > out[b].Intensity
		}
		// Tie-break on centre so equal-intensity clusters still order
		// identically across runs.
		if out[a].CenterLat != out[b].CenterLat {
			return out[a].CenterLat < out[b].CenterLat
		}
		return out[a].CenterLon < out[b].CenterLon
	})
	return out
}

func orderTiles(in []Tile) []Tile {
	out := make([]Tile, len(in))
	copy(out, in)
	sort.Slice(out, func(a, b int) bool { return out[a].TileID < out[b].TileID })
	return out
}
