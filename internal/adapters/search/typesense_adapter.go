package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
	tsclient "github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/clients/typesense"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

var typesenseSortFields = map[string]string{
	"averageRating": "average_rating",
	"reviewCount":   "review_count",
	"name":          "name",
	"id":            "place_id",
}

// TypesenseAdapter serves place pages from Typesense and keeps its collection current
type TypesenseAdapter struct {
	client *tsclient.Client
}

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

var _ PlaceSearcher = (*TypesenseAdapter)(nil)

// typesenseSearchParams translates a place filter into search parameters.
// Typesense pages are one-based.
func typesenseSearchParams(filter entities.FilterState[entities.PlaceFilter]) (*api.SearchCollectionParams, error) {
	field, ok := typesenseSortFields[filter.SortKey]
	if !ok {
		return nil, apperrors.NewInvalidQueryError(fmt.Sprintf("cannot sort search results by %q", filter.SortKey))
	}

	q := strings.TrimSpace(filter.Predicates.Name)
	if q == "" {
		q = "*"
	}
	params := &api.SearchCollectionParams{
		Q:       pointer.String(q),
		QueryBy: pointer.String("name,description,address"),
		SortBy:  pointer.String(fmt.Sprintf("%s:%s,place_id:%s", field, filter.SortDirection, filter.SortDirection)),
		Page:    pointer.Int(filter.Page + 1),
		PerPage: pointer.Int(filter.PageSize),
	}
	if filter.Predicates.Type != "" {
		params.FilterBy = pointer.String("place_type:=" + string(filter.Predicates.Type))
	}
	return params, nil
}

// ReadPage implements repositories.PageReader
func (a *TypesenseAdapter) ReadPage(ctx context.Context, filter entities.FilterState[entities.PlaceFilter]) (*repositories.PageResult[entities.Place], error) {
	params, err := typesenseSearchParams(filter)
	if err != nil {
		return nil, err
	}

	result, err := a.client.Client().Collection(a.client.Collection()).Documents().Search(ctx, params)
	if err != nil {
		return nil, apperrors.NewRemoteUnavailableError("place search is unavailable", err)
	}

	places := []entities.Place{}
	if result.Hits != nil {
		for _, hit := range *result.Hits {
			if hit.Document == nil {
				continue
			}
			places = append(places, placeFromDocument(*hit.Document))
		}
	}

	var found int64
	if result.Found != nil {
		found = int64(*result.Found)
	}
	return &repositories.PageResult[entities.Place]{
		Items:      places,
		Pagination: searchPagination(filter.Page, filter.PageSize, found),
	}, nil
}

// Upsert indexes a place
func (a *TypesenseAdapter) Upsert(ctx context.Context, place entities.Place) error {
	_, err := a.client.Client().Collection(a.client.Collection()).Documents().Upsert(ctx, placeDocument(place))
	if err != nil {
		return fmt.Errorf("failed to index place: %w", err)
	}
	return nil
}

// Remove removes a place from the index
func (a *TypesenseAdapter) Remove(ctx context.Context, id int64) error {
	_, err := a.client.Client().Collection(a.client.Collection()).Document(strconv.FormatInt(id, 10)).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete place from index: %w", err)
	}
	return nil
}

func searchPagination(page, size int, found int64) entities.Pagination {
	totalPages := 0
	if size > 0 {
		totalPages = int((found + int64(size) - 1) / int64(size))
	}
	return entities.Pagination{
		Page:          page,
		Size:          size,
		TotalPages:    totalPages,
		TotalElements: found,
		Last:          page+1 >= totalPages,
	}
}
