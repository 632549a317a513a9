package services

import (
	"context"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
)

// PlaceList is the list controller for places
type PlaceList struct {
	*EntityListController[entities.Place, entities.PlaceFilter, entities.PlaceInput]
}

// NewPlaceList creates a place list. reader may differ from writer, e.g. a search
// engine serving name queries in front of the REST source.
func NewPlaceList(reader repositories.PageReader[entities.Place, entities.PlaceFilter], writer repositories.EntityWriter[entities.Place, entities.PlaceInput], filter entities.FilterState[entities.PlaceFilter], opts SyncOptions) *PlaceList {
	return &PlaceList{
		EntityListController: NewEntityListController(ListConfig[entities.Place, entities.PlaceFilter, entities.PlaceInput]{
			Name:   string(entities.FamilyPlace),
			Filter: filter,
			Reader: reader,
			Writer: writer,
			Sync:   opts,
			Belongs: func(f entities.FilterState[entities.PlaceFilter], p entities.Place) bool {
				return f.Predicates.Type == "" || f.Predicates.Type == p.PlaceType
			},
		}),
	}
}

// Search narrows the list to places whose name matches name
func (l *PlaceList) Search(ctx context.Context, name string) {
	predicates := l.Filter().Predicates
	predicates.Name = name
	l.SetFilter(ctx, entities.PatchPredicates(predicates))
}

// FilterByType narrows the list to one place type; an empty type lists every place
func (l *PlaceList) FilterByType(ctx context.Context, placeType entities.PlaceType) {
	predicates := l.Filter().Predicates
	predicates.Type = placeType
	l.SetFilter(ctx, entities.PatchPredicates(predicates))
}
