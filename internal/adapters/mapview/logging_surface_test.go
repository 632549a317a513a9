package mapview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/application/services"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/providers"
)

var skopje = entities.Coordinates{Latitude: 41.9981, Longitude: 21.4254}

func place(id int64, lat, lng float64) entities.Place {
	return entities.Place{ID: id, Name: "place", Latitude: &lat, Longitude: &lng}
}

func TestLoggingSurface_NotReady(t *testing.T) {
	surface := NewLoggingSurface(skopje, 12)

	_, err := surface.CreateMarker(providers.MarkerSpec{EntityID: 1, Position: skopje})
	assert.Error(t, err)
	assert.Empty(t, surface.Operations())
}

func TestLoggingSurface_MarkerLifecycle(t *testing.T) {
	surface := NewLoggingSurface(skopje, 12)
	surface.MarkReady()

	handle, err := surface.CreateMarker(providers.MarkerSpec{EntityID: 1, Position: skopje, Title: "Square"})
	require.NoError(t, err)
	_, err = surface.CreateMarker(providers.MarkerSpec{EntityID: 1, Position: skopje})
	assert.Error(t, err, "one live marker per entity")

	assert.Equal(t, []int64{1}, surface.MarkerIDs())

	stop := surface.Animate(handle, providers.AnimationBounce, time.Second)
	stop()
	stop()

	surface.RemoveMarker(handle)
	surface.RemoveMarker(handle)
	assert.Empty(t, surface.MarkerIDs())

	kinds := []string{}
	for _, op := range surface.Operations() {
		kinds = append(kinds, op.Kind)
	}
	assert.Equal(t, []string{OpCreate, OpAnimate, OpStop, OpRemove}, kinds)
}

func TestLoggingSurface_CameraAndReset(t *testing.T) {
	surface := NewLoggingSurface(skopje, 12)
	target := entities.Coordinates{Latitude: 42.0, Longitude: 21.4}

	surface.PanTo(target)
	surface.SetZoom(15)

	assert.Equal(t, target, surface.Center())
	assert.Equal(t, 15.0, surface.Zoom())
	assert.Len(t, surface.Operations(), 2)

	surface.ResetOperations()
	assert.Empty(t, surface.Operations())
}

func TestLoggingSurface_ClickDrivesReconciler(t *testing.T) {
	surface := NewLoggingSurface(skopje, 12)
	surface.MarkReady()

	var selections []services.Selection
	reconciler := services.NewMarkerReconciler[entities.Place](surface, services.MarkerOptions{
		OnSelectionChange: func(s services.Selection) { selections = append(selections, s) },
	})
	t.Cleanup(reconciler.Teardown)

	window, err := entities.NewPageWindow([]entities.Place{
		place(1, 41.99, 21.42),
		place(2, 42.01, 21.44),
	}, entities.Pagination{TotalPages: 1, TotalElements: 2}, 12)
	require.NoError(t, err)

	result := reconciler.Update(window)
	assert.ElementsMatch(t, []int64{1, 2}, result.Created)
	assert.Equal(t, []int64{1, 2}, surface.MarkerIDs())

	assert.True(t, surface.Click(2))
	assert.False(t, surface.Click(99))

	require.Len(t, selections, 1)
	assert.Equal(t, services.Selected(2), selections[0])
	assert.Equal(t, entities.Coordinates{Latitude: 42.01, Longitude: 21.44}, surface.Center())
	assert.Equal(t, 15.0, surface.Zoom())
}
