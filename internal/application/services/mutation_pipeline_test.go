package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/application/services"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

// blockingPlaceWriter holds every write until release is closed
type blockingPlaceWriter struct {
	started chan struct{}
	release chan struct{}
}

func (w *blockingPlaceWriter) Create(ctx context.Context, identity entities.Identity, input entities.PlaceInput) (entities.Place, error) {
	close(w.started)
	<-w.release
	return entities.Place{ID: 77, Name: input.Name}, nil
}

func (w *blockingPlaceWriter) Update(ctx context.Context, identity entities.Identity, id int64, input entities.PlaceInput) (entities.Place, error) {
	return entities.Place{ID: id, Name: input.Name}, nil
}

func (w *blockingPlaceWriter) Delete(ctx context.Context, identity entities.Identity, id int64) error {
	return nil
}

func TestMutationPipeline_CreateIsPendingUntilConfirmed(t *testing.T) {
	writer := &blockingPlaceWriter{started: make(chan struct{}), release: make(chan struct{})}
	pipeline := services.NewMutationPipeline[entities.Place, entities.PlaceInput]("places", writer, services.SyncOptions{})

	done := make(chan entities.Place, 1)
	go func() {
		p, err := pipeline.Create(context.Background(), user, entities.PlaceInput{Name: "Matka Canyon"})
		assert.NoError(t, err)
		done <- p
	}()
	<-writer.started

	pending := pipeline.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, services.MutationCreate, pending[0].Kind)
	assert.NotEqual(t, uuid.Nil, pending[0].TempID)
	assert.Equal(t, entities.PlaceInput{Name: "Matka Canyon"}, pending[0].Payload)

	close(writer.release)
	select {
	case p := <-done:
		assert.Equal(t, int64(77), p.ID)
	case <-time.After(time.Second):
		t.Fatal("create did not complete")
	}
	assert.Empty(t, pipeline.Pending())
}

func TestMutationPipeline_WritesAreGovernedPerTarget(t *testing.T) {
	repo := newFakePlaceRepo(placeAt(1, "A", 41, 21), placeAt(2, "B", 41, 21))
	repo.writeErr = apperrors.NewRemoteUnavailableError("Failed to update place", nil)
	pipeline := services.NewMutationPipeline[entities.Place, entities.PlaceInput]("places", repo, services.SyncOptions{
		Governor: services.NewFailureGovernor(),
		Cooldown: time.Minute,
	})
	ctx := context.Background()

	_, err := pipeline.Update(ctx, user, 1, entities.PlaceInput{Name: "A2"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRemoteUnavailable))

	_, err = pipeline.Update(ctx, user, 1, entities.PlaceInput{Name: "A3"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSuppressed))

	_, err = pipeline.Update(ctx, user, 2, entities.PlaceInput{Name: "B2"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRemoteUnavailable))
	assert.Equal(t, 2, repo.writes)
	assert.Equal(t, "places:update:1", pipeline.Channel(services.MutationUpdate, 1))
	assert.Equal(t, "places:create", pipeline.Channel(services.MutationCreate, 0))
}

func TestMutationPipeline_RejectedCreateDoesNotBlockCorrectedCreate(t *testing.T) {
	repo := newFakePlaceRepo()
	pipeline := services.NewMutationPipeline[entities.Place, entities.PlaceInput]("places", repo, services.SyncOptions{
		Governor: services.NewFailureGovernor(),
		Cooldown: time.Minute,
	})
	ctx := context.Background()

	repo.writeErr = apperrors.NewValidationError("Name is required")
	_, err := pipeline.Create(ctx, user, entities.PlaceInput{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	repo.writeErr = nil
	created, err := pipeline.Create(ctx, user, entities.PlaceInput{Name: "Stone Bridge"})
	require.NoError(t, err)
	assert.Equal(t, "Stone Bridge", created.Name)
}

func TestApplyHelpers(t *testing.T) {
	w, err := entities.NewPageWindow([]entities.Place{{ID: 1}, {ID: 2}}, entities.Pagination{TotalElements: 2, TotalPages: 1}, 2)
	require.NoError(t, err)

	created := services.ApplyCreated(w, entities.Place{ID: 3})
	assert.Equal(t, []int64{3, 1}, created.IDs())
	assert.Equal(t, int64(3), created.TotalElements())

	updated := services.ApplyUpdated(w, entities.Place{ID: 2, Name: "renamed"})
	p, _ := updated.Find(2)
	assert.Equal(t, "renamed", p.Name)

	assert.Same(t, w, services.ApplyUpdated(w, entities.Place{ID: 9}))
	assert.Same(t, w, services.ApplyRemoved(w, 9))
	assert.Equal(t, []int64{2}, services.ApplyRemoved(w, 1).IDs())
}
