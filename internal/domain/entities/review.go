package entities

import "time"

// Review is a user's rating of a place
type Review struct {
	ID        int64     `json:"id" db:"id"`
	Rating    float64   `json:"rating" db:"rating"`
	Comment   string    `json:"comment" db:"comment"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	UserID    int64     `json:"userId" db:"user_id"`
	UserName  string    `json:"userName" db:"user_name"`
	PlaceID   int64     `json:"placeId" db:"place_id"`
}

// EntityID implements Record
func (r Review) EntityID() int64 { return r.ID }

// ReviewFilter holds the review-specific predicates of a FilterState.
// Zero values mean "unset".
type ReviewFilter struct {
	PlaceID   int64
	UserID    int64
	MinRating int
	MaxRating int
}

// ReviewInput is the payload for creating or updating a review
type ReviewInput struct {
	Rating  float64 `json:"rating"`
	Comment string  `json:"comment"`
	PlaceID int64   `json:"placeId"`
	UserID  int64   `json:"userId,omitempty"`
}
