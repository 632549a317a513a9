package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/application/services"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

type MockAggregateReader struct {
	mock.Mock
}

func (m *MockAggregateReader) Load(ctx context.Context, placeID int64) (*entities.DerivedStats, error) {
	args := m.Called(ctx, placeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DerivedStats), args.Error(1)
}

func (m *MockAggregateReader) Invalidate(ctx context.Context, placeID int64) {
	m.Called(ctx, placeID)
}

func reviewWindow(t *testing.T, reviews ...entities.Review) *entities.PageWindow[entities.Review] {
	t.Helper()
	w, err := entities.NewPageWindow(reviews, entities.Pagination{TotalElements: int64(len(reviews)), TotalPages: 1}, 10)
	require.NoError(t, err)
	return w
}

func TestFoldRatings_ExampleWindow(t *testing.T) {
	stats := services.FoldRatings([]entities.Review{
		{ID: 1, Rating: 5},
		{ID: 2, Rating: 3},
	}, 4)

	assert.Equal(t, 4.0, stats.AverageRating)
	assert.Equal(t, 2, stats.TotalReviews)
	assert.Equal(t, map[int]int{1: 0, 2: 0, 3: 1, 4: 0, 5: 1}, stats.RatingDistribution)
	assert.Equal(t, entities.StatsWindowed, stats.Source)
	assert.Equal(t, int64(4), stats.PlaceID)
}

func TestFoldRatings_EmptyWindow(t *testing.T) {
	stats := services.FoldRatings(nil, 0)

	assert.Equal(t, 0.0, stats.AverageRating)
	assert.Equal(t, 0, stats.TotalReviews)
	for r := entities.MinRating; r <= entities.MaxRating; r++ {
		assert.Equal(t, 0, stats.RatingDistribution[r])
	}
}

func TestFoldRatings_ClampsAndRoundsBucketsButAveragesUnrounded(t *testing.T) {
	stats := services.FoldRatings([]entities.Review{
		{ID: 1, Rating: 0.2},
		{ID: 2, Rating: 7},
		{ID: 3, Rating: 3.5},
		{ID: 4, Rating: 2.4},
	}, 0)

	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 0, 4: 1, 5: 1}, stats.RatingDistribution)
	assert.InDelta(t, (1+5+3.5+2.4)/4.0, stats.AverageRating, 1e-9)
	assert.True(t, stats.Consistent())
}

func TestFoldRatings_OutOfRangeRatingsKeepAverageInRange(t *testing.T) {
	stats := services.FoldRatings([]entities.Review{
		{ID: 1, Rating: 9},
		{ID: 2, Rating: 7},
	}, 0)

	assert.Equal(t, 5.0, stats.AverageRating)
	assert.Equal(t, 2, stats.RatingDistribution[5])
}

func TestFoldRatings_DistributionAlwaysSumsToTotal(t *testing.T) {
	ratings := []float64{1, 1.49, 1.5, 2.51, 3, 4.49, 4.5, 5, -3, 12}
	reviews := make([]entities.Review, 0, len(ratings))
	for i, r := range ratings {
		reviews = append(reviews, entities.Review{ID: int64(i + 1), Rating: r})
		stats := services.FoldRatings(reviews, 0)
		assert.True(t, stats.Consistent(), "after %d reviews", i+1)
		assert.GreaterOrEqual(t, stats.AverageRating, 0.0)
		assert.LessOrEqual(t, stats.AverageRating, 5.0)
	}
}

func TestFoldRatings_DoesNotMutateInput(t *testing.T) {
	reviews := []entities.Review{{ID: 1, Rating: 9}}
	services.FoldRatings(reviews, 0)
	assert.Equal(t, 9.0, reviews[0].Rating)
}

func TestStatsProjector_WindowedUsesLoadedPageOnly(t *testing.T) {
	projector := services.NewStatsProjector(nil)
	w := reviewWindow(t, entities.Review{ID: 1, Rating: 5}, entities.Review{ID: 2, Rating: 3})

	stats, err := projector.Project(context.Background(), services.Windowed(w, 3))
	require.NoError(t, err)

	assert.Equal(t, entities.StatsWindowed, stats.Source)
	assert.Equal(t, 4.0, stats.AverageRating)
}

func TestStatsProjector_AuthoritativeDelegatesToReader(t *testing.T) {
	reader := new(MockAggregateReader)
	reader.On("Load", mock.Anything, int64(3)).Return(&entities.DerivedStats{
		AverageRating:      4.2,
		TotalReviews:       40,
		RatingDistribution: map[int]int{3: 8, 4: 8, 5: 24},
	}, nil)
	projector := services.NewStatsProjector(reader)

	stats, err := projector.Project(context.Background(), services.Authoritative(3))
	require.NoError(t, err)

	assert.Equal(t, entities.StatsAuthoritative, stats.Source)
	assert.Equal(t, int64(3), stats.PlaceID)
	assert.Equal(t, 40, stats.TotalReviews)
	reader.AssertExpectations(t)
}

func TestStatsProjector_AuthoritativeWithoutReaderFails(t *testing.T) {
	_, err := services.NewStatsProjector(nil).Project(context.Background(), services.Authoritative(3))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}
