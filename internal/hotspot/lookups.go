package hotspot

import "context"

// Forecaster produces one horizon step's worth of predicted values
// from recent grid history. Prediction failure means "no predicted
// grid available"; current-state detection never depends on it.
type Forecaster interface {
	Predict(ctx context.Context, history []Grid) (Grid, error)
}

// OrganizationLookup returns the organisations near a point. An empty
// result is valid and has zero effect on refinement.
type OrganizationLookup interface {
	Nearby(ctx context.Context, lat, lon, radiusMeters float64) ([]Organization, error)
}

// EventLookup returns the active or predicted events near a point.
type EventLookup interface {
	Nearby(ctx context.Context, lat, lon float64) ([]Event, error)
}
