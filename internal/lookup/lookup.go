// Package lookup provides the external context collaborators of the
// detection pipeline: organisation and event lookups and the traffic
// forecaster. Live implementations speak HTTP JSON; null variants
// return empty results and are selected explicitly by the caller when
// no upstream is configured, never by catching failures.
package lookup

import (
	"context"
	"math"

	"github.com/astana-data/hotspot.report/internal/hotspot"
)

// NullOrganizations is an OrganizationLookup that always returns an
// empty result. Refinement degrades to the event factor alone.
type NullOrganizations struct{}

// Nearby implements hotspot.OrganizationLookup.
func (NullOrganizations) Nearby(context.Context, float64, float64, float64) ([]hotspot.Organization, error) {
	return nil, nil
}

// NullEvents is an EventLookup that always returns an empty result.
type NullEvents struct{}

// Nearby implements hotspot.EventLookup.
func (NullEvents) Nearby(context.Context, float64, float64) ([]hotspot.Event, error) {
	return nil, nil
}

// validOrganization rejects records with unusable coordinates. Records
// are validated at this boundary so refinement only ever sees clean
// input.
func validOrganization(o hotspot.Organization) bool {
	if math.IsNaN(o.Lat) || math.IsNaN(o.Lon) || math.IsInf(o.Lat, 0) || math.IsInf(o.Lon, 0) {
		return false
	}
	return o.Lat >= -90 && o.Lat <= 90 && o.Lon >= -180 && o.Lon <= 180
}
