package toll

import (
	"fmt"
	"strings"
)

// VehicleType is an open enumeration; exemptions come from the rule set.
type VehicleType string

const (
	VehicleCar       VehicleType = "Car"
	VehicleMotorbike VehicleType = "Motorbike"
	VehicleBus       VehicleType = "Bus"
	VehicleTractor   VehicleType = "Tractor"
	VehicleEmergency VehicleType = "Emergency"
	VehicleDiplomat  VehicleType = "Diplomat"
	VehicleForeign   VehicleType = "Foreign"
	VehicleMilitary  VehicleType = "Military"
)

var knownVehicleTypes = []VehicleType{
	VehicleCar,
	VehicleMotorbike,
	VehicleBus,
	VehicleTractor,
	VehicleEmergency,
	VehicleDiplomat,
	VehicleForeign,
	VehicleMilitary,
}

// ParseVehicleType normalizes known names case-insensitively and keeps
// unknown names as given.
func ParseVehicleType(value string) (VehicleType, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidVehicleType)
	}
	for _, known := range knownVehicleTypes {
		if strings.EqualFold(string(known), value) {
			return known, nil
		}
	}
	return VehicleType(value), nil
}

// Matches compares vehicle types case-insensitively.
func (v VehicleType) Matches(other VehicleType) bool {
	return strings.EqualFold(string(v), string(other))
}
