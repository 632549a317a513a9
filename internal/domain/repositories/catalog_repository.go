package repositories

import (
	"context"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
)

// PageResult is one page as returned by a remote source
type PageResult[T entities.Record] struct {
	Items      []T
	Pagination entities.Pagination
}

// PageReader reads one filtered, sorted page of a family.
// Failures are RemoteUnavailable (transport) or InvalidQuery (rejected predicates).
type PageReader[T entities.Record, P comparable] interface {
	ReadPage(ctx context.Context, filter entities.FilterState[P]) (*PageResult[T], error)
}

// EntityWriter applies confirmed writes to a family. The identity is the session the
// write is made for; implementations must not look it up anywhere else.
type EntityWriter[T entities.Record, I any] interface {
	// Create creates a record and returns it with its server-assigned id
	Create(ctx context.Context, identity entities.Identity, input I) (T, error)

	// Update replaces the record's mutable fields
	Update(ctx context.Context, identity entities.Identity, id int64, input I) (T, error)

	// Delete deletes a record
	Delete(ctx context.Context, identity entities.Identity, id int64) error
}

// PlaceRepository is the capability pair for places
type PlaceRepository interface {
	PageReader[entities.Place, entities.PlaceFilter]
	EntityWriter[entities.Place, entities.PlaceInput]
}

// ReviewRepository is the capability pair for reviews
type ReviewRepository interface {
	PageReader[entities.Review, entities.ReviewFilter]
	EntityWriter[entities.Review, entities.ReviewInput]

	// UserReviewForPlace returns the user's single review of a place, or a NotFound error
	UserReviewForPlace(ctx context.Context, placeID, userID int64) (*entities.Review, error)
}

// ReviewStatsReader reads authoritative rating aggregates for places
type ReviewStatsReader interface {
	// StatsForPlaces returns stats keyed by place id. Places with no reviews may be
	// omitted from the map.
	StatsForPlaces(ctx context.Context, placeIDs []int64) (map[int64]*entities.DerivedStats, error)
}

// TourRepository is the capability pair for tours
type TourRepository interface {
	PageReader[entities.Tour, entities.TourFilter]
	EntityWriter[entities.Tour, entities.TourInput]

	// AddPlace appends a place to a tour and returns the updated tour
	AddPlace(ctx context.Context, identity entities.Identity, tourID, placeID int64) (entities.Tour, error)

	// RemovePlace removes a place from a tour and returns the updated tour
	RemovePlace(ctx context.Context, identity entities.Identity, tourID, placeID int64) (entities.Tour, error)
}
