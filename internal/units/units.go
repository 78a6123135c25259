// Package units provides shared constants and conversions for speed
// units and geographic distances.
package units

// Unit constants. Grids and the database store speeds in km/h.
const (
	KMPH = "kmph"
	KPH  = "kph"
	MPH  = "mph"
	MPS  = "mps"
)

// ValidUnits contains all valid unit values.
var ValidUnits = []string{KMPH, KPH, MPH, MPS}

// IsValid checks if the given unit is in the list of valid units.
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units
// for error messages.
func GetValidUnitsString() string {
	return "kmph, kph, mph, mps"
}

// ConvertSpeed converts a speed from km/h to the target units.
func ConvertSpeed(speedKMPH float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedKMPH * 0.62137119223733
	case MPS:
		return speedKMPH / 3.6
	case KMPH, KPH:
		return speedKMPH
	default:
		return speedKMPH
	}
}
