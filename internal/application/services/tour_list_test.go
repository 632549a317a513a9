package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/application/services"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

type MockTourRepository struct {
	mock.Mock
}

func (m *MockTourRepository) ReadPage(ctx context.Context, filter entities.FilterState[entities.TourFilter]) (*repositories.PageResult[entities.Tour], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.PageResult[entities.Tour]), args.Error(1)
}

func (m *MockTourRepository) Create(ctx context.Context, identity entities.Identity, input entities.TourInput) (entities.Tour, error) {
	args := m.Called(ctx, identity, input)
	return args.Get(0).(entities.Tour), args.Error(1)
}

func (m *MockTourRepository) Update(ctx context.Context, identity entities.Identity, id int64, input entities.TourInput) (entities.Tour, error) {
	args := m.Called(ctx, identity, id, input)
	return args.Get(0).(entities.Tour), args.Error(1)
}

func (m *MockTourRepository) Delete(ctx context.Context, identity entities.Identity, id int64) error {
	args := m.Called(ctx, identity, id)
	return args.Error(0)
}

func (m *MockTourRepository) AddPlace(ctx context.Context, identity entities.Identity, tourID, placeID int64) (entities.Tour, error) {
	args := m.Called(ctx, identity, tourID, placeID)
	return args.Get(0).(entities.Tour), args.Error(1)
}

func (m *MockTourRepository) RemovePlace(ctx context.Context, identity entities.Identity, tourID, placeID int64) (entities.Tour, error) {
	args := m.Called(ctx, identity, tourID, placeID)
	return args.Get(0).(entities.Tour), args.Error(1)
}

func tourPage(tours ...entities.Tour) *repositories.PageResult[entities.Tour] {
	return &repositories.PageResult[entities.Tour]{
		Items:      tours,
		Pagination: entities.Pagination{Page: 0, Size: 12, TotalPages: 1, TotalElements: int64(len(tours)), Last: true},
	}
}

func TestTourList_AddPlaceReplacesTourInWindow(t *testing.T) {
	repo := new(MockTourRepository)
	ctx := context.Background()
	bridge := placeAt(1, "Stone Bridge", 41.9981, 21.4254)
	fortress := placeAt(2, "Kale Fortress", 42.0006, 21.4336)

	repo.On("ReadPage", mock.Anything, mock.Anything).Return(tourPage(
		entities.Tour{ID: 5, Title: "Old town", UserID: 7, Places: []entities.Place{bridge}},
		entities.Tour{ID: 6, Title: "Parks", UserID: 7},
	), nil)
	repo.On("AddPlace", mock.Anything, user, int64(5), int64(2)).Return(
		entities.Tour{ID: 5, Title: "Old town", UserID: 7, Places: []entities.Place{bridge, fortress}}, nil)

	list := services.NewTourList(repo, entities.DefaultTourFilter(), services.SyncOptions{})
	list.Refresh(ctx)

	tour, err := list.AddPlace(ctx, user, 5, 2)
	require.NoError(t, err)
	assert.True(t, tour.HasPlace(2))

	inWindow, ok := list.CurrentWindow().Find(5)
	require.True(t, ok)
	assert.Len(t, inWindow.Places, 2)
	assert.Equal(t, []int64{5, 6}, list.CurrentWindow().IDs())
	repo.AssertExpectations(t)
}

func TestTourList_RemovePlaceFailureSurfacesError(t *testing.T) {
	repo := new(MockTourRepository)
	ctx := context.Background()

	repo.On("ReadPage", mock.Anything, mock.Anything).Return(tourPage(entities.Tour{ID: 5, Title: "Old town"}), nil)
	repo.On("RemovePlace", mock.Anything, user, int64(5), int64(9)).Return(entities.Tour{}, apperrors.NewNotFoundError("Place not in tour"))

	list := services.NewTourList(repo, entities.DefaultTourFilter(), services.SyncOptions{})
	list.Refresh(ctx)
	before := list.CurrentWindow()

	_, err := list.RemovePlace(ctx, user, 5, 9)

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	assert.Equal(t, "Place not in tour", list.LastError())
	assert.Same(t, before, list.CurrentWindow())
}

func TestTourList_ForUserFiltersByOwner(t *testing.T) {
	repo := new(MockTourRepository)
	repo.On("ReadPage", mock.Anything, mock.MatchedBy(func(f entities.FilterState[entities.TourFilter]) bool {
		return f.Predicates.UserID == 7 && f.Page == 0
	})).Return(tourPage(entities.Tour{ID: 5, UserID: 7}), nil)

	list := services.NewTourList(repo, entities.DefaultTourFilter(), services.SyncOptions{})
	list.ForUser(context.Background(), 7)

	assert.Equal(t, []int64{5}, list.CurrentWindow().IDs())
	repo.AssertExpectations(t)
}
