package entities

import "time"

// TourLength represents how long a tour takes
type TourLength string

const (
	TourLengthHalfDay      TourLength = "HALF_DAY"
	TourLengthFullDay      TourLength = "FULL_DAY"
	TourLengthTwoThreeDays TourLength = "TWO_THREE_DAYS"
	TourLengthFourSeven    TourLength = "FOUR_SEVEN_DAYS"
)

// BudgetLevel represents a tour's spending level
type BudgetLevel string

const (
	BudgetOnBudget BudgetLevel = "ON_BUDGET"
	BudgetModerate BudgetLevel = "MODERATE"
	BudgetLuxury   BudgetLevel = "LUXURY"
)

// Preference captures what a traveller wants out of a generated tour
type Preference struct {
	ID                        int64       `json:"id,omitempty"`
	Description               string      `json:"description,omitempty"`
	TourLength                TourLength  `json:"tourLength"`
	BudgetLevel               BudgetLevel `json:"budgetLevel"`
	IncludeShoppingMalls      bool        `json:"includeShoppingMalls"`
	FoodTypePreferences       []string    `json:"foodTypePreferences"`
	DrinkTypePreferences      []string    `json:"drinkTypePreferences"`
	AttractionTypePreferences []string    `json:"attractionTypePreferences"`
}

// DefaultPreference is the preference offered when a user starts building a tour
func DefaultPreference() Preference {
	return Preference{
		TourLength:                TourLengthHalfDay,
		BudgetLevel:               BudgetModerate,
		FoodTypePreferences:       []string{},
		DrinkTypePreferences:      []string{},
		AttractionTypePreferences: []string{},
	}
}

// Tour is an ordered collection of places
type Tour struct {
	ID                    int64     `json:"id" db:"id"`
	Title                 string    `json:"title" db:"title"`
	DateCreated           time.Time `json:"dateCreated" db:"date_created"`
	UserID                int64     `json:"userId" db:"user_id"`
	UserName              string    `json:"userName" db:"user_name"`
	PreferenceID          int64     `json:"preferenceId" db:"preference_id"`
	PreferenceDescription string    `json:"preferenceDescription,omitempty" db:"preference_description"`
	Places                []Place   `json:"places" db:"-"`
}

// EntityID implements Record
func (t Tour) EntityID() int64 { return t.ID }

// Coordinates implements Locatable. A tour sits at the centroid of its places that
// have valid coordinates.
func (t Tour) Coordinates() (Coordinates, bool) {
	var sumLat, sumLng float64
	n := 0
	for _, p := range t.Places {
		c, ok := p.Coordinates()
		if !ok {
			continue
		}
		sumLat += c.Latitude
		sumLng += c.Longitude
		n++
	}
	if n == 0 {
		return Coordinates{}, false
	}
	c := Coordinates{Latitude: sumLat / float64(n), Longitude: sumLng / float64(n)}
	return c, c.Valid()
}

// MarkerTitle implements Locatable
func (t Tour) MarkerTitle() string { return t.Title }

// HasPlace reports whether placeID is part of the tour
func (t Tour) HasPlace(placeID int64) bool {
	for _, p := range t.Places {
		if p.ID == placeID {
			return true
		}
	}
	return false
}

// TourFilter holds the tour-specific predicates of a FilterState
type TourFilter struct {
	Title        string
	UserID       int64
	PreferenceID int64
}

// TourInput is the payload for creating or updating a tour
type TourInput struct {
	Title        string      `json:"title"`
	UserID       int64       `json:"userId,omitempty"`
	PreferenceID int64       `json:"preferenceId,omitempty"`
	Preference   *Preference `json:"preferenceDTO,omitempty"`
	PlaceIDs     []int64     `json:"placeIds,omitempty"`
}
