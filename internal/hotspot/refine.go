package hotspot

import (
	"fmt"
	"math"
)

// RefineParams are the tunables of context-aware refinement. Zero
// values are not meaningful; use DefaultRefineParams or values from
// the engine configuration.
type RefineParams struct {
	// OrgFactorCap bounds the organisation factor so dense retail
	// areas cannot amplify without limit.
	OrgFactorCap float64
	// OrgFactorScale is the organisation count that adds 1.0 to the
	// factor before capping.
	OrgFactorScale float64
	// EventMultiplier applies when an active or predicted event is
	// present near the cluster.
	EventMultiplier float64
	// LateClosingBonus applies when any nearby organisation closes
	// after LateClosingHour.
	LateClosingBonus float64
	LateClosingHour  int
}

// DefaultRefineParams returns the production defaults.
func DefaultRefineParams() RefineParams {
	return RefineParams{
		OrgFactorCap:     1.5,
		OrgFactorScale:   10,
		EventMultiplier:  1.8,
		LateClosingBonus: 1.2,
		LateClosingHour:  20,
	}
}

// Factor computes the multiplicative refinement factor for one cluster
// from its organisation and event context. Empty context yields 1.0.
func (p RefineParams) Factor(orgs OrganizationReport, events EventReport) float64 {
	factor := 1.0
	if n := orgs.Count(); n > 0 {
		factor *= math.Min(p.OrgFactorCap, 1+float64(n)/p.OrgFactorScale)
		if orgs.HasLateClosing(p.LateClosingHour) {
			factor *= p.LateClosingBonus
		}
	}
	if events.Active() {
		factor *= p.EventMultiplier
	}
	return factor
}

// ApplyCluster multiplies the member cells of one cluster in grid by
// factor, in place. Member cell values are validated first: a negative
// or non-finite value is a data error for this cluster and leaves the
// grid untouched.
func ApplyCluster(grid Grid, cluster Cluster, factor float64) error {
	for _, m := range cluster.Members {
		v := grid.At(m.Row, m.Col)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value at cell (%d,%d)", ErrData, m.Row, m.Col)
		}
		if v < 0 {
			return fmt.Errorf("%w: negative value %g at cell (%d,%d)", ErrData, v, m.Row, m.Col)
		}
	}
	for _, m := range cluster.Members {
		grid.Set(m.Row, m.Col, grid.At(m.Row, m.Col)*factor)
	}
	return nil
}

// Refine applies per-cluster refinement factors to a copy of the base
// horizon grid. Cells not covered by any cluster pass through
// numerically unchanged; cluster cell sets are disjoint by
// construction, so no ordering dependency exists between clusters.
// Result values stay in raw units and are not re-clamped.
//
// orgs and events are indexed by cluster; a length mismatch is a
// configuration error. The returned factors are indexed the same way.
func Refine(clusters []Cluster, orgs []OrganizationReport, events []EventReport, base Grid, p RefineParams) (Grid, []float64, error) {
	if len(orgs) != len(clusters) || len(events) != len(clusters) {
		return Grid{}, nil, fmt.Errorf("%w: %d clusters but %d organization and %d event reports",
			ErrConfig, len(clusters), len(orgs), len(events))
	}
	if err := base.Validate(); err != nil {
		return Grid{}, nil, err
	}

	adjusted := base.Clone()
	factors := make([]float64, len(clusters))
	for i, c := range clusters {
		factors[i] = p.Factor(orgs[i], events[i])
		if err := ApplyCluster(adjusted, c, factors[i]); err != nil {
			return Grid{}, nil, fmt.Errorf("cluster %d: %w", i, err)
		}
	}
	return adjusted, factors, nil
}
