package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

const toursPath = "/tours"

// TourClient implements repositories.TourRepository over the catalog API.
// Tour endpoints return whole lists, so paging and sorting happen here.
type TourClient struct {
	client *HTTPClient
}

// NewTourClient creates a new tour client
func NewTourClient(client *HTTPClient) *TourClient {
	return &TourClient{client: client}
}

var _ repositories.TourRepository = (*TourClient)(nil)

// ReadPage reads one page of tours
func (c *TourClient) ReadPage(ctx context.Context, filter entities.FilterState[entities.TourFilter]) (*repositories.PageResult[entities.Tour], error) {
	less, err := tourOrder(filter.SortKey, filter.SortDirection)
	if err != nil {
		return nil, err
	}

	pred := filter.Predicates
	path := toursPath
	var query url.Values
	switch {
	case pred.UserID != 0:
		path = fmt.Sprintf("%s/user/%d", toursPath, pred.UserID)
	case pred.PreferenceID != 0:
		path = fmt.Sprintf("%s/preference/%d", toursPath, pred.PreferenceID)
	case strings.TrimSpace(pred.Title) != "":
		path = toursPath + "/search"
		query = url.Values{"title": []string{strings.TrimSpace(pred.Title)}}
	}

	var all []entities.Tour
	if err := c.client.doJSON(ctx, nil, http.MethodGet, c.client.endpoint(path, query), nil, &all); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool { return less(all[i], all[j]) })
	return slicePage(all, filter.Page, filter.PageSize), nil
}

// Create creates a tour owned by identity
func (c *TourClient) Create(ctx context.Context, identity entities.Identity, input entities.TourInput) (entities.Tour, error) {
	input.UserID = identity.UserID

	var out entities.Tour
	err := c.client.doJSON(ctx, &identity, http.MethodPost, c.client.endpoint(toursPath, nil), input, &out)
	return out, err
}

// Update updates a tour
func (c *TourClient) Update(ctx context.Context, identity entities.Identity, id int64, input entities.TourInput) (entities.Tour, error) {
	input.UserID = identity.UserID

	var out entities.Tour
	path := fmt.Sprintf("%s/%d", toursPath, id)
	err := c.client.doJSON(ctx, &identity, http.MethodPut, c.client.endpoint(path, nil), input, &out)
	return out, err
}

// Delete deletes a tour
func (c *TourClient) Delete(ctx context.Context, identity entities.Identity, id int64) error {
	path := fmt.Sprintf("%s/%d", toursPath, id)
	return c.client.doJSON(ctx, &identity, http.MethodDelete, c.client.endpoint(path, nil), nil, nil)
}

// AddPlace appends a place to a tour
func (c *TourClient) AddPlace(ctx context.Context, identity entities.Identity, tourID, placeID int64) (entities.Tour, error) {
	var out entities.Tour
	path := fmt.Sprintf("%s/%d/places/%d", toursPath, tourID, placeID)
	err := c.client.doJSON(ctx, &identity, http.MethodPost, c.client.endpoint(path, nil), struct{}{}, &out)
	return out, err
}

// RemovePlace removes a place from a tour
func (c *TourClient) RemovePlace(ctx context.Context, identity entities.Identity, tourID, placeID int64) (entities.Tour, error) {
	var out entities.Tour
	path := fmt.Sprintf("%s/%d/places/%d", toursPath, tourID, placeID)
	err := c.client.doJSON(ctx, &identity, http.MethodDelete, c.client.endpoint(path, nil), nil, &out)
	return out, err
}

func tourOrder(key string, dir entities.SortDirection) (func(a, b entities.Tour) bool, error) {
	var asc func(a, b entities.Tour) bool
	switch key {
	case "dateCreated":
		asc = func(a, b entities.Tour) bool { return a.DateCreated.Before(b.DateCreated) }
	case "title":
		asc = func(a, b entities.Tour) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	case "id":
		asc = func(a, b entities.Tour) bool { return a.ID < b.ID }
	default:
		return nil, apperrors.NewInvalidQueryError(fmt.Sprintf("tours cannot be sorted by %q", key))
	}
	if dir == entities.SortDescending {
		return func(a, b entities.Tour) bool { return asc(b, a) }, nil
	}
	return asc, nil
}

func slicePage[T entities.Record](all []T, page, size int) *repositories.PageResult[T] {
	total := len(all)
	totalPages := 0
	if size > 0 {
		totalPages = (total + size - 1) / size
	}

	start := page * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	return &repositories.PageResult[T]{
		Items: all[start:end],
		Pagination: entities.Pagination{
			Page:          page,
			Size:          size,
			TotalPages:    totalPages,
			TotalElements: int64(total),
			Last:          page+1 >= totalPages,
		},
	}
}
