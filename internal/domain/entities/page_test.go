package entities_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

func reviews(ids ...int64) []entities.Review {
	out := make([]entities.Review, len(ids))
	for i, id := range ids {
		out[i] = entities.Review{ID: id, Rating: 4}
	}
	return out
}

func TestNewPageWindow_RejectsDuplicateIDs(t *testing.T) {
	items := []entities.Review{{ID: 1, Rating: 5}, {ID: 2, Rating: 3}, {ID: 2, Rating: 4}}

	_, err := entities.NewPageWindow(items, entities.Pagination{}, 10)

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "duplicate id 2")
}

func TestNewPageWindow_RejectsOverflow(t *testing.T) {
	_, err := entities.NewPageWindow(reviews(1, 2, 3), entities.Pagination{}, 2)
	assert.Error(t, err)
}

func TestNewPageWindow_CopiesItems(t *testing.T) {
	items := reviews(1, 2)
	w, err := entities.NewPageWindow(items, entities.Pagination{Page: 1, TotalPages: 3, TotalElements: 22}, 10)
	require.NoError(t, err)

	items[0].ID = 99
	assert.Equal(t, []int64{1, 2}, w.IDs())
	assert.Equal(t, 1, w.Page())
	assert.Equal(t, 3, w.TotalPages())
	assert.Equal(t, int64(22), w.TotalElements())
}

func TestPageWindow_Prepend(t *testing.T) {
	w, err := entities.NewPageWindow(reviews(1, 2), entities.Pagination{TotalPages: 1, TotalElements: 2}, 2)
	require.NoError(t, err)

	next := w.Prepend(entities.Review{ID: 3})

	assert.Equal(t, []int64{3, 1}, next.IDs())
	assert.Equal(t, int64(3), next.TotalElements())
	assert.Equal(t, 2, next.TotalPages())
	assert.Equal(t, []int64{1, 2}, w.IDs(), "original window is untouched")
}

func TestPageWindow_PrependExistingReplacesInPlace(t *testing.T) {
	w, err := entities.NewPageWindow(reviews(1, 2), entities.Pagination{TotalElements: 2}, 5)
	require.NoError(t, err)

	next := w.Prepend(entities.Review{ID: 2, Rating: 1})

	assert.Equal(t, []int64{1, 2}, next.IDs())
	assert.Equal(t, int64(2), next.TotalElements())
	got, _ := next.Find(2)
	assert.Equal(t, 1.0, got.Rating)
}

func TestPageWindow_ReplaceAndRemove(t *testing.T) {
	w, err := entities.NewPageWindow(reviews(1, 2, 3), entities.Pagination{TotalPages: 1, TotalElements: 3}, 3)
	require.NoError(t, err)

	replaced, ok := w.Replace(entities.Review{ID: 2, Comment: "edited"})
	require.True(t, ok)
	got, _ := replaced.Find(2)
	assert.Equal(t, "edited", got.Comment)

	removed, ok := replaced.Remove(1)
	require.True(t, ok)
	assert.Equal(t, []int64{2, 3}, removed.IDs())
	assert.Equal(t, int64(2), removed.TotalElements())

	same, ok := removed.Remove(42)
	assert.False(t, ok)
	assert.Same(t, removed, same)
}
