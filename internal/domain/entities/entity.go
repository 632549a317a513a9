package entities

import "math"

// Family identifies one of the catalog's record kinds
type Family string

const (
	FamilyPlace  Family = "place"
	FamilyReview Family = "review"
	FamilyTour   Family = "tour"
)

// Record is implemented by every catalog entity that can live in a PageWindow
type Record interface {
	EntityID() int64
}

// Locatable is a Record that may be placed on a map
type Locatable interface {
	Record
	// Coordinates returns the entity's position and whether it is valid
	Coordinates() (Coordinates, bool)
	// MarkerTitle is the label shown on the entity's map marker
	MarkerTitle() string
}

// Coordinates represents geographical coordinates
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether c is a usable map position. The origin (0,0) is treated as
// "missing" because the catalog API reports absent coordinates that way.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	if c.Latitude == 0 && c.Longitude == 0 {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// coordinatesFrom builds Coordinates from optional latitude/longitude fields
func coordinatesFrom(lat, lng *float64) (Coordinates, bool) {
	if lat == nil || lng == nil {
		return Coordinates{}, false
	}
	c := Coordinates{Latitude: *lat, Longitude: *lng}
	return c, c.Valid()
}
