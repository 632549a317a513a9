package main

import (
	"context"
	"testing"

	"github.com/docopt/docopt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/application/services"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/pkg/config"
)

func parse(t *testing.T, args ...string) docopt.Opts {
	t.Helper()
	parser := &docopt.Parser{HelpHandler: docopt.NoHelpHandler}
	opts, err := parser.ParseArgs(usage, args, CatalogVersion)
	require.NoError(t, err)
	return opts
}

func TestUsage_PlaceFilter(t *testing.T) {
	opts := parse(t, "places", "--type=MUSEUMS", "--page=2", "--sort=name", "--dir=asc")
	cfg := &config.Config{Sync: config.SyncConfig{PageSize: 20}}

	filter, err := placeFilter(cfg, opts)
	require.NoError(t, err)

	assert.Equal(t, entities.PlaceTypeMuseums, filter.Predicates.Type)
	assert.Equal(t, 2, filter.Page)
	assert.Equal(t, 20, filter.PageSize)
	assert.Equal(t, "name", filter.SortKey)
	assert.Equal(t, entities.SortAscending, filter.SortDirection)
	assert.NoError(t, filter.Validate())
}

func TestUsage_DefaultSource(t *testing.T) {
	opts := parse(t, "tours")
	source, err := opts.String("--source")
	require.NoError(t, err)
	assert.Equal(t, sourceRemote, source)
}

func TestUsage_StatsTakesSeveralPlaces(t *testing.T) {
	opts := parse(t, "stats", "1", "2", "3")
	assert.Equal(t, []string{"1", "2", "3"}, opts["<place_id>"])
}

func TestIntOpt(t *testing.T) {
	opts := parse(t, "reviews", "--place=7", "--min=3")

	v, ok, err := intOpt(opts, "--place")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), v)

	_, ok, err = intOpt(opts, "--user")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = intOpt(docopt.Opts{"--page": "x"}, "--page")
	assert.Error(t, err)
}

func TestViewOf(t *testing.T) {
	window, err := entities.NewPageWindow([]entities.Place{{ID: 1}, {ID: 2}},
		entities.Pagination{Page: 1, TotalPages: 3, TotalElements: 26}, 12)
	require.NoError(t, err)

	view := viewOf(services.ListState[entities.Place, entities.PlaceFilter]{Window: window, LastError: "offline"})
	assert.Len(t, view.Items, 2)
	assert.Equal(t, 1, view.Page)
	assert.Equal(t, int64(26), view.TotalElements)
	assert.Equal(t, "offline", view.Error)

	empty := viewOf(services.ListState[entities.Place, entities.PlaceFilter]{})
	assert.NotNil(t, empty.Items)
}

func TestNewSearcher_None(t *testing.T) {
	searcher, err := newSearcher(context.Background(), &config.Config{Search: config.SearchConfig{Backend: config.SearchBackendNone}})
	require.NoError(t, err)
	assert.Nil(t, searcher)
}

func TestWireSource_Unknown(t *testing.T) {
	a := &app{cfg: &config.Config{}}
	assert.Error(t, a.wireSource(context.Background(), "ftp"))
}

func TestWireSource_Remote(t *testing.T) {
	a := &app{cfg: &config.Config{Remote: config.RemoteConfig{BaseURL: "http://localhost:8080/api"}}}
	require.NoError(t, a.wireSource(context.Background(), sourceRemote))

	assert.NotNil(t, a.placeReader)
	assert.NotNil(t, a.placeWriter)
	assert.NotNil(t, a.reviews)
	assert.NotNil(t, a.stats)
	assert.NotNil(t, a.tours)
}
