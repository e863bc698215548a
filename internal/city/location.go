// Package city provides the static location registry and distance metric
// used by the supply chain simulation.
package city

import (
	"fmt"
	"math"
)

// LocationType categorizes a location by its role in the supply chain.
type LocationType string

const (
	TypeFactory   LocationType = "factory"
	TypeWarehouse LocationType = "warehouse"
	TypeStore     LocationType = "store"
)

// Location is a named point on the city map. Immutable after creation.
type Location struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	X    float64      `json:"x"`
	Y    float64      `json:"y"`
	Type LocationType `json:"type"`
}

// DistanceTo returns the Euclidean distance to another location.
func (l Location) DistanceTo(other Location) float64 {
	dx := l.X - other.X
	dy := l.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Validate checks that the location is well formed.
func (l Location) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("%w: empty location id", ErrInvalidLocation)
	}
	if l.Name == "" {
		return fmt.Errorf("%w: location %q has no name", ErrInvalidLocation, l.ID)
	}
	switch l.Type {
	case TypeFactory, TypeWarehouse, TypeStore:
		return nil
	default:
		return fmt.Errorf("%w: location %q has unknown type %q", ErrInvalidLocation, l.ID, l.Type)
	}
}

// String returns a short description of the location.
func (l Location) String() string {
	return fmt.Sprintf("%s(%s @ %.0f,%.0f)", l.Type, l.ID, l.X, l.Y)
}
