package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/rs/zerolog/log"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/adapters/mapview"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/adapters/remote"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/application/loaders"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/application/services"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/observability"
	"github.com/ZanaKriezi/tourly-skopje-guide/pkg/config"
)

const CatalogVersion = "0.1.0"

const usage = `Tourly catalog.

Reads and writes the Skopje place, review and tour catalog through the sync core.
Connection settings come from the environment (TOURLY_API_URL, DB_*, REDIS_*,
SEARCH_BACKEND, SYNC_*, MAP_*, OTEL_*).

Usage:
    catalog places [--source=<source>] [--type=<type>] [--name=<name>] [--page=<page>]
        [--sort=<key>] [--dir=<dir>]
    catalog reviews [--source=<source>] (--place=<place_id> | --user=<user_id>)
        [--min=<rating>] [--max=<rating>] [--page=<page>]
    catalog stats [--source=<source>] <place_id>...
    catalog tours [--source=<source>] [--user=<user_id>] [--title=<title>] [--page=<page>]
    catalog review [--source=<source>] --token=<jwt> --place=<place_id> --rating=<rating>
        [--comment=<comment>]
    catalog tour-place [--source=<source>] --token=<jwt> (add | remove) <tour_id> <place_id>
    catalog watch [--source=<source>] [--type=<type>] [--select=<place_id>]
    catalog whoami --token=<jwt>
    catalog -h | --help
    catalog --version

Options:
    -h --help               Show this screen.
    --version               Show version.
    --source=<source>       remote or db [default: remote].
    --type=<type>           Place type, e.g. MUSEUMS.
    --name=<name>           Place name search.
    --page=<page>           Zero-based page [default: 0].
    --sort=<key>            Sort key.
    --dir=<dir>             asc or desc.
    --place=<place_id>      Place id.
    --user=<user_id>        User id.
    --min=<rating>          Minimum rating.
    --max=<rating>          Maximum rating.
    --title=<title>         Tour title search.
    --token=<jwt>           Session JWT the write is made for.
    --rating=<rating>       Review rating, 1 to 5.
    --comment=<comment>     Review comment.
    --select=<place_id>     Place to select on the map once loaded.`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], CatalogVersion)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if whoami, _ := opts.Bool("whoami"); whoami {
		token, _ := opts.String("--token")
		exitOn(printIdentity(token))
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, _ := opts.String("--source")
	a, err := newApp(ctx, cfg, source)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire catalog")
	}
	defer a.Close()

	switch {
	case flag(opts, "places"):
		err = listPlaces(ctx, a, opts)
	case flag(opts, "reviews"):
		err = listReviews(ctx, a, opts)
	case flag(opts, "stats"):
		err = placeStats(ctx, a, opts)
	case flag(opts, "tours"):
		err = listTours(ctx, a, opts)
	case flag(opts, "review"):
		err = createReview(ctx, a, opts)
	case flag(opts, "tour-place"):
		err = changeTourPlace(ctx, a, opts)
	case flag(opts, "watch"):
		err = watch(ctx, a, opts)
	}
	exitOn(err)
}

func flag(opts docopt.Opts, name string) bool {
	v, _ := opts.Bool(name)
	return v
}

func intOpt(opts docopt.Opts, name string) (int64, bool, error) {
	s, err := opts.String(name)
	if err != nil || s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be a number, got %q", name, s)
	}
	return v, true, nil
}

func exitOn(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// listView is what list commands print
type listView[T entities.Record] struct {
	Items         []T                    `json:"items"`
	Page          int                    `json:"page"`
	TotalPages    int                    `json:"totalPages"`
	TotalElements int64                  `json:"totalElements"`
	Stats         *entities.DerivedStats `json:"stats,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

func viewOf[T entities.Record, P comparable](state services.ListState[T, P]) listView[T] {
	view := listView[T]{Stats: state.Stats, Error: state.LastError, Items: []T{}}
	if state.Window != nil {
		view.Items = state.Window.Items()
		view.Page = state.Window.Page()
		view.TotalPages = state.Window.TotalPages()
		view.TotalElements = state.Window.TotalElements()
	}
	return view
}

func placeFilter(cfg *config.Config, opts docopt.Opts) (entities.FilterState[entities.PlaceFilter], error) {
	filter := entities.DefaultPlaceFilter()
	filter.PageSize = cfg.Sync.PageSize
	if t, _ := opts.String("--type"); t != "" {
		filter.Predicates.Type = entities.PlaceType(t)
	}
	filter.Predicates.Name, _ = opts.String("--name")
	if key, _ := opts.String("--sort"); key != "" {
		filter.SortKey = key
	}
	if dir, _ := opts.String("--dir"); dir != "" {
		filter.SortDirection = entities.SortDirection(dir)
	}
	page, _, err := intOpt(opts, "--page")
	filter.Page = int(page)
	return filter, err
}

func listPlaces(ctx context.Context, a *app, opts docopt.Opts) error {
	filter, err := placeFilter(a.cfg, opts)
	if err != nil {
		return err
	}
	list := a.placeList(filter)
	list.Refresh(ctx)
	return printJSON(viewOf(list.State()))
}

func listReviews(ctx context.Context, a *app, opts docopt.Opts) error {
	filter := entities.DefaultReviewFilter()
	var err error
	if filter.Predicates.PlaceID, _, err = intOpt(opts, "--place"); err != nil {
		return err
	}
	if filter.Predicates.UserID, _, err = intOpt(opts, "--user"); err != nil {
		return err
	}
	minRating, _, err := intOpt(opts, "--min")
	if err != nil {
		return err
	}
	filter.Predicates.MinRating = int(minRating)
	maxRating, _, err := intOpt(opts, "--max")
	if err != nil {
		return err
	}
	filter.Predicates.MaxRating = int(maxRating)
	page, _, err := intOpt(opts, "--page")
	if err != nil {
		return err
	}
	filter.Page = int(page)

	list, err := a.reviewList(filter)
	if err != nil {
		return err
	}
	list.Refresh(ctx)
	return printJSON(viewOf(list.State()))
}

func placeStats(ctx context.Context, a *app, opts docopt.Opts) error {
	raw, _ := opts["<place_id>"].([]string)
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("place id must be a number, got %q", s)
		}
		ids = append(ids, id)
	}

	stats, err := loaders.NewStatsLoader(a.stats, 5*time.Millisecond).LoadMany(ctx, ids)
	if err != nil {
		return err
	}
	out := make([]*entities.DerivedStats, 0, len(ids))
	for _, id := range ids {
		out = append(out, stats[id])
	}
	return printJSON(out)
}

func listTours(ctx context.Context, a *app, opts docopt.Opts) error {
	filter := entities.DefaultTourFilter()
	filter.PageSize = a.cfg.Sync.PageSize
	var err error
	if filter.Predicates.UserID, _, err = intOpt(opts, "--user"); err != nil {
		return err
	}
	filter.Predicates.Title, _ = opts.String("--title")
	page, _, err := intOpt(opts, "--page")
	if err != nil {
		return err
	}
	filter.Page = int(page)

	list := a.tourList(filter)
	list.Refresh(ctx)
	return printJSON(viewOf(list.State()))
}

func createReview(ctx context.Context, a *app, opts docopt.Opts) error {
	token, _ := opts.String("--token")
	identity, err := remote.IdentityFromToken(token)
	if err != nil {
		return err
	}
	placeID, _, err := intOpt(opts, "--place")
	if err != nil {
		return err
	}
	ratingText, _ := opts.String("--rating")
	rating, err := strconv.ParseFloat(ratingText, 64)
	if err != nil {
		return fmt.Errorf("--rating must be a number, got %q", ratingText)
	}
	comment, _ := opts.String("--comment")

	filter := entities.DefaultReviewFilter()
	filter.Predicates.PlaceID = placeID
	list, err := a.reviewList(filter)
	if err != nil {
		return err
	}
	list.Refresh(ctx)
	if _, err := list.Create(ctx, identity, entities.ReviewInput{
		Rating:  rating,
		Comment: comment,
		PlaceID: placeID,
	}); err != nil {
		return err
	}
	return printJSON(viewOf(list.State()))
}

func changeTourPlace(ctx context.Context, a *app, opts docopt.Opts) error {
	token, _ := opts.String("--token")
	identity, err := remote.IdentityFromToken(token)
	if err != nil {
		return err
	}
	tourID, _, err := intOpt(opts, "<tour_id>")
	if err != nil {
		return err
	}
	// <place_id> repeats under stats, so docopt hands it over as a list
	places, _ := opts["<place_id>"].([]string)
	if len(places) != 1 {
		return fmt.Errorf("exactly one place id is required")
	}
	placeID, err := strconv.ParseInt(places[0], 10, 64)
	if err != nil {
		return fmt.Errorf("place id must be a number, got %q", places[0])
	}

	filter := entities.DefaultTourFilter()
	filter.Predicates.UserID = identity.UserID
	list := a.tourList(filter)
	list.Refresh(ctx)

	var tour entities.Tour
	if flag(opts, "add") {
		tour, err = list.AddPlace(ctx, identity, tourID, placeID)
	} else {
		tour, err = list.RemovePlace(ctx, identity, tourID, placeID)
	}
	if err != nil {
		return err
	}
	return printJSON(tour)
}

// watch keeps a place list on a headless map and refetches it on every change event
// until interrupted
func watch(ctx context.Context, a *app, opts docopt.Opts) error {
	filter, err := placeFilter(a.cfg, opts)
	if err != nil {
		return err
	}
	list := a.placeList(filter)

	surface := mapview.NewLoggingSurface(entities.Coordinates{
		Latitude:  a.cfg.Map.CenterLatitude,
		Longitude: a.cfg.Map.CenterLongitude,
	}, a.cfg.Map.InitialZoom)
	reconciler := services.NewMarkerReconciler[entities.Place](surface, a.mapOptions())
	binding := services.BindMap[entities.Place](list, reconciler)
	defer binding.Close()

	surface.MarkReady()
	binding.SurfaceReady()
	list.Refresh(ctx)

	if id, ok, err := intOpt(opts, "--select"); err != nil {
		return err
	} else if ok && !surface.Click(id) {
		log.Warn().Int64("entity_id", id).Msg("selected place has no marker on this page")
	}

	if a.events == nil {
		log.Info().Msg("REDIS_ENABLED is off, showing a single snapshot")
		return printJSON(viewOf(list.State()))
	}

	listener := services.NewChangeListener(a.events, entities.FamilyPlace, list)
	if err := listener.Start(); err != nil {
		return err
	}
	defer listener.Stop()

	unsubscribe := list.OnChange(func() {
		log.Info().
			Ints64("markers", surface.MarkerIDs()).
			Str("error", list.LastError()).
			Msg("place list changed")
	})
	defer unsubscribe()

	log.Info().Ints64("markers", surface.MarkerIDs()).Msg("watching places")
	<-ctx.Done()
	return nil
}

func printIdentity(token string) error {
	identity, err := remote.IdentityFromToken(token)
	if err != nil {
		return err
	}
	return printJSON(struct {
		UserID    int64  `json:"userId"`
		Username  string `json:"username"`
		Role      string `json:"role,omitempty"`
		ExpiresAt string `json:"expiresAt,omitempty"`
	}{
		UserID:    identity.UserID,
		Username:  identity.Username,
		Role:      identity.Role,
		ExpiresAt: formatExpiry(identity),
	})
}

func formatExpiry(identity entities.Identity) string {
	if identity.ExpiresAt.IsZero() {
		return ""
	}
	return identity.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z")
}
