package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
)

const placesPath = "/places"

// PlaceClient implements repositories.PlaceRepository over the catalog API
type PlaceClient struct {
	client *HTTPClient
}

// NewPlaceClient creates a new place client
func NewPlaceClient(client *HTTPClient) *PlaceClient {
	return &PlaceClient{client: client}
}

var _ repositories.PlaceRepository = (*PlaceClient)(nil)

// ReadPage reads one page of places. A name search takes precedence over a type filter.
func (c *PlaceClient) ReadPage(ctx context.Context, filter entities.FilterState[entities.PlaceFilter]) (*repositories.PageResult[entities.Place], error) {
	query := pageQuery(filter)
	path := placesPath
	switch {
	case strings.TrimSpace(filter.Predicates.Name) != "":
		path = placesPath + "/search"
		query.Set("name", strings.TrimSpace(filter.Predicates.Name))
	case filter.Predicates.Type != "":
		path = fmt.Sprintf("%s/type/%s", placesPath, url.PathEscape(string(filter.Predicates.Type)))
	}

	var out envelope[entities.Place]
	if err := c.client.doJSON(ctx, nil, http.MethodGet, c.client.endpoint(path, query), nil, &out); err != nil {
		return nil, err
	}
	return &repositories.PageResult[entities.Place]{Items: out.Content, Pagination: out.Pagination}, nil
}

// Create creates a place
func (c *PlaceClient) Create(ctx context.Context, identity entities.Identity, input entities.PlaceInput) (entities.Place, error) {
	var out entities.Place
	err := c.client.doJSON(ctx, &identity, http.MethodPost, c.client.endpoint(placesPath, nil), input, &out)
	return out, err
}

// Update updates a place
func (c *PlaceClient) Update(ctx context.Context, identity entities.Identity, id int64, input entities.PlaceInput) (entities.Place, error) {
	var out entities.Place
	path := fmt.Sprintf("%s/%d", placesPath, id)
	err := c.client.doJSON(ctx, &identity, http.MethodPut, c.client.endpoint(path, nil), input, &out)
	return out, err
}

// Delete deletes a place
func (c *PlaceClient) Delete(ctx context.Context, identity entities.Identity, id int64) error {
	path := fmt.Sprintf("%s/%d", placesPath, id)
	return c.client.doJSON(ctx, &identity, http.MethodDelete, c.client.endpoint(path, nil), nil, nil)
}
