package entities

// PlaceType represents the category of a place
type PlaceType string

const (
	PlaceTypeHistorical PlaceType = "HISTORICAL"
	PlaceTypeMuseums    PlaceType = "MUSEUMS"
	PlaceTypeNature     PlaceType = "NATURE"
	PlaceTypeParks      PlaceType = "PARKS"
	PlaceTypeLandmarks  PlaceType = "LANDMARKS"
	PlaceTypeRestaurant PlaceType = "RESTAURANT"
	PlaceTypeCafeBar    PlaceType = "CAFE_BAR"
	PlaceTypeMall       PlaceType = "MALL"
)

// Valid reports whether t is a known place type
func (t PlaceType) Valid() bool {
	switch t {
	case PlaceTypeHistorical, PlaceTypeMuseums, PlaceTypeNature, PlaceTypeParks,
		PlaceTypeLandmarks, PlaceTypeRestaurant, PlaceTypeCafeBar, PlaceTypeMall:
		return true
	}
	return false
}

// Place represents a point of interest in the catalog
type Place struct {
	ID             int64     `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description" db:"description"`
	PlaceType      PlaceType `json:"placeType" db:"place_type"`
	Latitude       *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude      *float64  `json:"longitude,omitempty" db:"longitude"`
	Address        string    `json:"address,omitempty" db:"address"`
	AverageRating  float64   `json:"averageRating" db:"average_rating"`
	ReviewCount    int       `json:"reviewCount" db:"review_count"`
	PhotoReference string    `json:"photoReference,omitempty" db:"photo_reference"`
}

// EntityID implements Record
func (p Place) EntityID() int64 { return p.ID }

// Coordinates implements Locatable
func (p Place) Coordinates() (Coordinates, bool) {
	return coordinatesFrom(p.Latitude, p.Longitude)
}

// MarkerTitle implements Locatable
func (p Place) MarkerTitle() string { return p.Name }

// PlaceFilter holds the place-specific predicates of a FilterState
type PlaceFilter struct {
	Type PlaceType
	Name string
}

// PlaceInput is the payload for creating or updating a place
type PlaceInput struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	PlaceType      PlaceType `json:"placeType"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	Address        string    `json:"address,omitempty"`
	PhotoReference string    `json:"photoReference,omitempty"`
}
