// Package hotspot implements the congestion hot-spot engine: grid
// normalisation, threshold detection with connected-component
// clustering, context-aware refinement of predicted grids, tile
// heat-map construction, and report assembly.
//
// The engine is a pure in-memory pipeline. External collaborators
// (forecaster, organisation and event lookups) are consumed through
// the interfaces in lookups.go; their live HTTP implementations live
// in internal/lookup.
package hotspot
