package remote

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/application/services"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

const (
	reviewsPath = "/reviews"

	// scanPageSize is the page size used when walking every review of a parent
	scanPageSize = 100
	// maxScanPages bounds a walk so a misbehaving server cannot loop us forever
	maxScanPages = 1000
)

// ReviewClient implements repositories.ReviewRepository and
// repositories.ReviewStatsReader over the catalog API
type ReviewClient struct {
	client *HTTPClient
}

// NewReviewClient creates a new review client
func NewReviewClient(client *HTTPClient) *ReviewClient {
	return &ReviewClient{client: client}
}

var (
	_ repositories.ReviewRepository  = (*ReviewClient)(nil)
	_ repositories.ReviewStatsReader = (*ReviewClient)(nil)
)

// ReadPage reads one page of reviews. A user filter selects the user's reviews, a
// place filter the place's reviews; rating bounds apply to either.
func (c *ReviewClient) ReadPage(ctx context.Context, filter entities.FilterState[entities.ReviewFilter]) (*repositories.PageResult[entities.Review], error) {
	query := pageQuery(filter)
	pred := filter.Predicates

	path := reviewsPath
	switch {
	case pred.UserID != 0:
		path = fmt.Sprintf("%s/user/%d", reviewsPath, pred.UserID)
		if pred.PlaceID != 0 {
			query.Set("placeId", strconv.FormatInt(pred.PlaceID, 10))
		}
	case pred.PlaceID != 0:
		path = fmt.Sprintf("%s/%d/reviews", placesPath, pred.PlaceID)
	}
	if pred.MinRating != 0 {
		query.Set("minRating", strconv.Itoa(pred.MinRating))
	}
	if pred.MaxRating != 0 {
		query.Set("maxRating", strconv.Itoa(pred.MaxRating))
	}

	var out envelope[entities.Review]
	if err := c.client.doJSON(ctx, nil, http.MethodGet, c.client.endpoint(path, query), nil, &out); err != nil {
		return nil, err
	}
	return &repositories.PageResult[entities.Review]{Items: out.Content, Pagination: out.Pagination}, nil
}

// Create posts a review on behalf of identity
func (c *ReviewClient) Create(ctx context.Context, identity entities.Identity, input entities.ReviewInput) (entities.Review, error) {
	if input.PlaceID == 0 {
		return entities.Review{}, apperrors.NewValidationError("a review needs a place")
	}
	input.UserID = identity.UserID

	var out entities.Review
	path := fmt.Sprintf("%s/%d/reviews", placesPath, input.PlaceID)
	err := c.client.doJSON(ctx, &identity, http.MethodPost, c.client.endpoint(path, nil), input, &out)
	return out, err
}

// Update updates a review
func (c *ReviewClient) Update(ctx context.Context, identity entities.Identity, id int64, input entities.ReviewInput) (entities.Review, error) {
	input.UserID = identity.UserID

	var out entities.Review
	path := fmt.Sprintf("%s/%d", reviewsPath, id)
	err := c.client.doJSON(ctx, &identity, http.MethodPut, c.client.endpoint(path, nil), input, &out)
	return out, err
}

// Delete deletes a review
func (c *ReviewClient) Delete(ctx context.Context, identity entities.Identity, id int64) error {
	path := fmt.Sprintf("%s/%d", reviewsPath, id)
	return c.client.doJSON(ctx, &identity, http.MethodDelete, c.client.endpoint(path, nil), nil, nil)
}

// UserReviewForPlace walks the user's reviews looking for one on placeID
func (c *ReviewClient) UserReviewForPlace(ctx context.Context, placeID, userID int64) (*entities.Review, error) {
	filter := entities.DefaultReviewFilter()
	filter.PageSize = scanPageSize
	filter.Predicates = entities.ReviewFilter{UserID: userID}

	var found *entities.Review
	err := c.scan(ctx, filter, func(page []entities.Review) bool {
		for i := range page {
			if page[i].PlaceID == placeID {
				review := page[i]
				found = &review
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("user %d has not reviewed place %d", userID, placeID))
	}
	return found, nil
}

// StatsForPlaces folds every review of each place. The API has no aggregate
// endpoint, so each place costs one walk over its reviews.
func (c *ReviewClient) StatsForPlaces(ctx context.Context, placeIDs []int64) (map[int64]*entities.DerivedStats, error) {
	out := make(map[int64]*entities.DerivedStats, len(placeIDs))
	for _, placeID := range placeIDs {
		filter := entities.DefaultReviewFilter()
		filter.PageSize = scanPageSize
		filter.Predicates = entities.ReviewFilter{PlaceID: placeID}

		var all []entities.Review
		err := c.scan(ctx, filter, func(page []entities.Review) bool {
			all = append(all, page...)
			return true
		})
		if err != nil {
			return nil, err
		}

		stats := services.FoldRatings(all, placeID)
		stats.Source = entities.StatsAuthoritative
		out[placeID] = &stats
	}
	return out, nil
}

// scan reads successive pages until the last one or until visit returns false
func (c *ReviewClient) scan(ctx context.Context, filter entities.FilterState[entities.ReviewFilter], visit func([]entities.Review) bool) error {
	for page := 0; page < maxScanPages; page++ {
		result, err := c.ReadPage(ctx, filter.WithPage(page))
		if err != nil {
			return err
		}
		if !visit(result.Items) {
			return nil
		}
		if result.Pagination.Last || len(result.Items) == 0 || page+1 >= result.Pagination.TotalPages {
			return nil
		}
	}
	return nil
}
