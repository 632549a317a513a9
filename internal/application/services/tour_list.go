package services

import (
	"context"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
)

// TourList is the list controller for tours
type TourList struct {
	*EntityListController[entities.Tour, entities.TourFilter, entities.TourInput]

	repo repositories.TourRepository
}

// NewTourList creates a tour list
func NewTourList(repo repositories.TourRepository, filter entities.FilterState[entities.TourFilter], opts SyncOptions) *TourList {
	return &TourList{
		EntityListController: NewEntityListController(ListConfig[entities.Tour, entities.TourFilter, entities.TourInput]{
			Name:   string(entities.FamilyTour),
			Filter: filter,
			Reader: repo,
			Writer: repo,
			Sync:   opts,
			Belongs: func(f entities.FilterState[entities.TourFilter], t entities.Tour) bool {
				return f.Predicates.UserID == 0 || f.Predicates.UserID == t.UserID
			},
		}),
		repo: repo,
	}
}

// ForUser lists the tours created by one user
func (l *TourList) ForUser(ctx context.Context, userID int64) {
	predicates := l.Filter().Predicates
	predicates.UserID = userID
	l.SetFilter(ctx, entities.PatchPredicates(predicates))
}

// AddPlace appends a place to a tour once the remote confirms it
func (l *TourList) AddPlace(ctx context.Context, identity entities.Identity, tourID, placeID int64) (entities.Tour, error) {
	return l.Amend(ctx, identity, "add_place", tourID, func(ctx context.Context) (entities.Tour, error) {
		return l.repo.AddPlace(ctx, identity, tourID, placeID)
	})
}

// RemovePlace drops a place from a tour once the remote confirms it
func (l *TourList) RemovePlace(ctx context.Context, identity entities.Identity, tourID, placeID int64) (entities.Tour, error) {
	return l.Amend(ctx, identity, "remove_place", tourID, func(ctx context.Context) (entities.Tour, error) {
		return l.repo.RemovePlace(ctx, identity, tourID, placeID)
	})
}
