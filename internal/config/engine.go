// Package config loads and validates the engine tuning configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical engine defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/engine.defaults.json"

// EngineConfig represents the tunables of one detection run. Fields
// are pointers so partial JSON configs are safe: anything omitted
// falls back to the defaults baked into the Get* accessors. There is
// no ambient state; the resolved values are passed explicitly into
// each pipeline invocation.
type EngineConfig struct {
	// Detection params
	GridSize         *int     `json:"grid_size,omitempty"`
	HotspotThreshold *float64 `json:"hotspot_threshold,omitempty"`
	TileSizeMeters   *float64 `json:"tile_size_meters,omitempty"`

	// Covered area
	LatMin *float64 `json:"lat_min,omitempty"`
	LatMax *float64 `json:"lat_max,omitempty"`
	LonMin *float64 `json:"lon_min,omitempty"`
	LonMax *float64 `json:"lon_max,omitempty"`

	// Horizon params
	PredictionHorizonSteps *int `json:"prediction_horizon_steps,omitempty"`
	PublishStep            *int `json:"publish_step,omitempty"`
	StepMinutes            *int `json:"step_minutes,omitempty"`

	// Refinement params
	OrgFactorCap     *float64 `json:"org_factor_cap,omitempty"`
	OrgFactorScale   *float64 `json:"org_factor_scale,omitempty"`
	EventMultiplier  *float64 `json:"event_multiplier,omitempty"`
	LateClosingBonus *float64 `json:"late_closing_bonus,omitempty"`
	LateClosingHour  *int     `json:"late_closing_hour,omitempty"`

	// External lookup params
	LookupRadiusMeters *float64 `json:"lookup_radius_meters,omitempty"`
	LookupTimeout      *string  `json:"lookup_timeout,omitempty"` // duration string like "15s"
	OrgResultLimit     *int     `json:"org_result_limit,omitempty"`
	LookupCacheSize    *int     `json:"lookup_cache_size,omitempty"`
}

// EmptyEngineConfig returns an EngineConfig with all fields set to
// nil. Use LoadEngineConfig to load actual values from a file.
func EmptyEngineConfig() *EngineConfig {
	return &EngineConfig{}
}

// LoadEngineConfig loads an EngineConfig from a JSON file. The file is
// validated to have a .json extension and to be under the max file
// size. Fields omitted from the JSON retain their default values, so
// partial configs are safe.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyEngineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical engine defaults from
// DefaultConfigPath, searching the current directory and common parent
// directories. Panics if the file cannot be loaded; intended for test
// setup.
func MustLoadDefaultConfig() *EngineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadEngineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. Out-of-range
// values are reported, never silently clamped.
func (c *EngineConfig) Validate() error {
	if c.GridSize != nil && *c.GridSize <= 0 {
		return fmt.Errorf("grid_size must be positive, got %d", *c.GridSize)
	}
	if c.HotspotThreshold != nil {
		if *c.HotspotThreshold < 0 || *c.HotspotThreshold > 1 {
			return fmt.Errorf("hotspot_threshold must be between 0 and 1, got %f", *c.HotspotThreshold)
		}
	}
	if c.TileSizeMeters != nil && *c.TileSizeMeters <= 0 {
		return fmt.Errorf("tile_size_meters must be positive, got %f", *c.TileSizeMeters)
	}
	if c.LatMin != nil && c.LatMax != nil && *c.LatMin >= *c.LatMax {
		return fmt.Errorf("lat_min %f must be below lat_max %f", *c.LatMin, *c.LatMax)
	}
	if c.LonMin != nil && c.LonMax != nil && *c.LonMin >= *c.LonMax {
		return fmt.Errorf("lon_min %f must be below lon_max %f", *c.LonMin, *c.LonMax)
	}
	if c.PredictionHorizonSteps != nil && *c.PredictionHorizonSteps < 1 {
		return fmt.Errorf("prediction_horizon_steps must be at least 1, got %d", *c.PredictionHorizonSteps)
	}
	if c.PublishStep != nil && *c.PublishStep < 1 {
		return fmt.Errorf("publish_step must be at least 1, got %d", *c.PublishStep)
	}
	if c.OrgFactorScale != nil && *c.OrgFactorScale <= 0 {
		return fmt.Errorf("org_factor_scale must be positive, got %f", *c.OrgFactorScale)
	}
	if c.LookupTimeout != nil && *c.LookupTimeout != "" {
		if _, err := time.ParseDuration(*c.LookupTimeout); err != nil {
			return fmt.Errorf("invalid lookup_timeout '%s': %w", *c.LookupTimeout, err)
		}
	}
	return nil
}

// GetGridSize returns the grid_size value or the default.
func (c *EngineConfig) GetGridSize() int {
	if c.GridSize == nil {
		return 10
	}
	return *c.GridSize
}

// GetHotspotThreshold returns the hotspot_threshold value or the default.
func (c *EngineConfig) GetHotspotThreshold() float64 {
	if c.HotspotThreshold == nil {
		return 0.7
	}
	return *c.HotspotThreshold
}

// GetTileSizeMeters returns the tile_size_meters value or the default.
// The default pairs with the default bounds to produce a 10×10 tile
// grid aligned with the detection grid.
func (c *EngineConfig) GetTileSizeMeters() float64 {
	if c.TileSizeMeters == nil {
		return 1100
	}
	return *c.TileSizeMeters
}

// GetLatMin returns the lat_min value or the default.
func (c *EngineConfig) GetLatMin() float64 {
	if c.LatMin == nil {
		return 51.1194
	}
	return *c.LatMin
}

// GetLatMax returns the lat_max value or the default.
func (c *EngineConfig) GetLatMax() float64 {
	if c.LatMax == nil {
		return 51.2194
	}
	return *c.LatMax
}

// GetLonMin returns the lon_min value or the default.
func (c *EngineConfig) GetLonMin() float64 {
	if c.LonMin == nil {
		return 71.3991
	}
	return *c.LonMin
}

// GetLonMax returns the lon_max value or the default.
func (c *EngineConfig) GetLonMax() float64 {
	if c.LonMax == nil {
		return 71.4991
	}
	return *c.LonMax
}

// GetPredictionHorizonSteps returns the prediction_horizon_steps value
// or the default.
func (c *EngineConfig) GetPredictionHorizonSteps() int {
	if c.PredictionHorizonSteps == nil {
		return 12
	}
	return *c.PredictionHorizonSteps
}

// GetPublishStep returns the publish_step value or the default. With
// 5-minute steps the default publishes the 30-minute-ahead grid.
func (c *EngineConfig) GetPublishStep() int {
	if c.PublishStep == nil {
		return 6
	}
	return *c.PublishStep
}

// GetStepMinutes returns the step_minutes value or the default.
func (c *EngineConfig) GetStepMinutes() int {
	if c.StepMinutes == nil {
		return 5
	}
	return *c.StepMinutes
}

// GetOrgFactorCap returns the org_factor_cap value or the default.
func (c *EngineConfig) GetOrgFactorCap() float64 {
	if c.OrgFactorCap == nil {
		return 1.5
	}
	return *c.OrgFactorCap
}

// GetOrgFactorScale returns the org_factor_scale value or the default.
func (c *EngineConfig) GetOrgFactorScale() float64 {
	if c.OrgFactorScale == nil {
		return 10
	}
	return *c.OrgFactorScale
}

// GetEventMultiplier returns the event_multiplier value or the default.
func (c *EngineConfig) GetEventMultiplier() float64 {
	if c.EventMultiplier == nil {
		return 1.8
	}
	return *c.EventMultiplier
}

// GetLateClosingBonus returns the late_closing_bonus value or the default.
func (c *EngineConfig) GetLateClosingBonus() float64 {
	if c.LateClosingBonus == nil {
		return 1.2
	}
	return *c.LateClosingBonus
}

// GetLateClosingHour returns the late_closing_hour value or the default.
func (c *EngineConfig) GetLateClosingHour() int {
	if c.LateClosingHour == nil {
		return 20
	}
	return *c.LateClosingHour
}

// GetLookupRadiusMeters returns the lookup_radius_meters value or the
// default.
func (c *EngineConfig) GetLookupRadiusMeters() float64 {
	if c.LookupRadiusMeters == nil {
		return 500
	}
	return *c.LookupRadiusMeters
}

// GetLookupTimeout parses and returns the LookupTimeout as a
// time.Duration.
func (c *EngineConfig) GetLookupTimeout() time.Duration {
	if c.LookupTimeout == nil || *c.LookupTimeout == "" {
		return 15 * time.Second
	}
	d, err := time.ParseDuration(*c.LookupTimeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// GetOrgResultLimit returns the org_result_limit value or the default.
func (c *EngineConfig) GetOrgResultLimit() int {
	if c.OrgResultLimit == nil {
		return 20
	}
	return *c.OrgResultLimit
}

// GetLookupCacheSize returns the lookup_cache_size value or the default.
func (c *EngineConfig) GetLookupCacheSize() int {
	if c.LookupCacheSize == nil {
		return 256
	}
	return *c.LookupCacheSize
}
