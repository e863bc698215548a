package city

import (
	"errors"
	"fmt"
	"iter"
	"sort"
)

var (
	// ErrInvalidLocation reports a malformed location rejected at the boundary.
	ErrInvalidLocation = errors.New("invalid location")
	// ErrDuplicateLocation reports an AddLocation call with an id already in the map.
	ErrDuplicateLocation = errors.New("duplicate location")
	// ErrUnknownLocation reports a lookup against an id the map has never seen.
	ErrUnknownLocation = errors.New("unknown location")
)

// Map is the registry of all locations. Populated once at scenario setup
// and read-only afterwards, so agents can share it without locking.
type Map struct {
	locations map[string]Location
	distCache map[[2]string]float64
}

// NewMap creates an empty city map.
func NewMap() *Map {
	return &Map{
		locations: make(map[string]Location),
		distCache: make(map[[2]string]float64),
	}
}

// AddLocation registers a location. Duplicate ids and malformed locations
// are rejected without mutating the map.
func (m *Map) AddLocation(loc Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	if _, ok := m.locations[loc.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateLocation, loc.ID)
	}
	m.locations[loc.ID] = loc
	return nil
}

// Get returns the location with the given id.
func (m *Map) Get(id string) (Location, bool) {
	loc, ok := m.locations[id]
	return loc, ok
}

// Distance returns the Euclidean distance between two locations.
// Results are cached per unordered pair.
func (m *Map) Distance(idA, idB string) (float64, error) {
	locA, ok := m.locations[idA]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLocation, idA)
	}
	locB, ok := m.locations[idB]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLocation, idB)
	}
	if idA == idB {
		return 0, nil
	}

	key := [2]string{idA, idB}
	if idB < idA {
		key = [2]string{idB, idA}
	}
	if d, ok := m.distCache[key]; ok {
		return d, nil
	}
	d := locA.DistanceTo(locB)
	m.distCache[key] = d
	return d, nil
}

// LocationsByType returns a lazy, unordered sequence of locations of one type.
func (m *Map) LocationsByType(t LocationType) iter.Seq[Location] {
	return func(yield func(Location) bool) {
		for _, loc := range m.locations {
			if loc.Type != t {
				continue
			}
			if !yield(loc) {
				return
			}
		}
	}
}

// All returns every location, sorted by id for stable iteration.
func (m *Map) All() []Location {
	out := make([]Location, 0, len(m.locations))
	for _, loc := range m.locations {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Nearest returns the closest location to the given id, optionally filtered
// by type (empty type matches everything). Returns false when no candidate
// exists.
func (m *Map) Nearest(id string, t LocationType) (Location, bool, error) {
	if _, ok := m.locations[id]; !ok {
		return Location{}, false, fmt.Errorf("%w: %q", ErrUnknownLocation, id)
	}

	var best Location
	bestDist := -1.0
	for _, loc := range m.locations {
		if loc.ID == id {
			continue
		}
		if t != "" && loc.Type != t {
			continue
		}
		d, _ := m.Distance(id, loc.ID)
		if bestDist < 0 || d < bestDist || (d == bestDist && loc.ID < best.ID) {
			best = loc
			bestDist = d
		}
	}
	return best, bestDist >= 0, nil
}

// WithinRadius returns all locations within radius of the given id,
// optionally filtered by type.
func (m *Map) WithinRadius(id string, radius float64, t LocationType) ([]Location, error) {
	if _, ok := m.locations[id]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLocation, id)
	}

	var out []Location
	for _, loc := range m.All() {
		if loc.ID == id {
			continue
		}
		if t != "" && loc.Type != t {
			continue
		}
		d, _ := m.Distance(id, loc.ID)
		if d <= radius {
			out = append(out, loc)
		}
	}
	return out, nil
}

// Bounds returns the bounding box of all locations as (minX, minY, maxX, maxY).
func (m *Map) Bounds() (minX, minY, maxX, maxY float64) {
	first := true
	for _, loc := range m.locations {
		if first {
			minX, maxX = loc.X, loc.X
			minY, maxY = loc.Y, loc.Y
			first = false
			continue
		}
		if loc.X < minX {
			minX = loc.X
		}
		if loc.X > maxX {
			maxX = loc.X
		}
		if loc.Y < minY {
			minY = loc.Y
		}
		if loc.Y > maxY {
			maxY = loc.Y
		}
	}
	return minX, minY, maxX, maxY
}

// Count returns the number of registered locations.
func (m *Map) Count() int {
	return len(m.locations)
}

// CountByType returns location counts keyed by type.
func (m *Map) CountByType() map[LocationType]int {
	counts := make(map[LocationType]int)
	for _, loc := range m.locations {
		counts[loc.Type]++
	}
	return counts
}

// String returns a summary of the map.
func (m *Map) String() string {
	c := m.CountByType()
	return fmt.Sprintf("Map(%d locations: %d factories, %d warehouses, %d stores)",
		len(m.locations), c[TypeFactory], c[TypeWarehouse], c[TypeStore])
}
