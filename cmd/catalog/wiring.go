package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/adapters/database"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/adapters/events"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/adapters/remote"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/adapters/search"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/application/loaders"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/application/services"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/providers"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/clients/elasticsearch"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/clients/postgres"
	redisclient "github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/clients/redis"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/clients/typesense"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/observability"
	"github.com/ZanaKriezi/tourly-skopje-guide/pkg/config"
)

const (
	sourceRemote   = "remote"
	sourceDatabase = "db"
)

// app holds the wired capabilities and the lists built on them
type app struct {
	cfg *config.Config

	placeReader repositories.PageReader[entities.Place, entities.PlaceFilter]
	placeWriter repositories.EntityWriter[entities.Place, entities.PlaceInput]
	reviews     repositories.ReviewRepository
	stats       repositories.ReviewStatsReader
	tours       repositories.TourRepository
	events      providers.EventBus
	metrics     *observability.Metrics
	governor    *services.FailureGovernor

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, source string) (*app, error) {
	a := &app{cfg: cfg}

	if cfg.OTEL.Enabled {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to set up OpenTelemetry: %w", err)
		}
		a.closers = append(a.closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("OpenTelemetry shutdown failed")
			}
		})
		metrics, err := observability.InitMetrics()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
		a.metrics = metrics
	}
	a.governor = services.NewFailureGovernor(services.WithGovernorMetrics(a.metrics))

	if err := a.wireSource(ctx, source); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.wireSearch(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if cfg.Redis.Enabled {
		client, err := redisclient.NewClient(ctx, &cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		bus := events.NewRedisEventBus(client)
		a.events = bus
		a.closers = append(a.closers, func() { _ = bus.Close() })
	}
	return a, nil
}

func (a *app) wireSource(ctx context.Context, source string) error {
	switch source {
	case sourceRemote, "":
		client := remote.NewHTTPClient(a.cfg.Remote.BaseURL, a.cfg.Remote.Token, a.cfg.Remote.Timeout)
		places := remote.NewPlaceClient(client)
		reviews := remote.NewReviewClient(client)
		a.placeReader, a.placeWriter = places, places
		a.reviews, a.stats = reviews, reviews
		a.tours = remote.NewTourClient(client)
	case sourceDatabase:
		pg, err := postgres.NewClient(ctx, &a.cfg.Database)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = pg.Close() })
		places := database.NewPlaceAdapter(pg)
		reviews := database.NewReviewAdapter(pg)
		a.placeReader, a.placeWriter = places, places
		a.reviews, a.stats = reviews, reviews
		a.tours = database.NewTourAdapter(pg)
	default:
		return fmt.Errorf("unknown source %q, want %s or %s", source, sourceRemote, sourceDatabase)
	}
	return nil
}

func (a *app) wireSearch(ctx context.Context) error {
	searcher, err := newSearcher(ctx, a.cfg)
	if err != nil || searcher == nil {
		return err
	}
	a.placeReader = search.NewRoutedPlaceReader(searcher, a.placeReader)
	a.placeWriter = search.NewIndexingPlaceWriter(a.placeWriter, searcher)
	return nil
}

// newSearcher connects the configured search backend. It returns nil when search is off.
func newSearcher(ctx context.Context, cfg *config.Config) (search.PlaceSearcher, error) {
	switch cfg.Search.Backend {
	case config.SearchBackendTypesense:
		client, err := typesense.NewClient(ctx, &cfg.Typesense)
		if err != nil {
			return nil, err
		}
		if err := client.InitSchema(ctx); err != nil {
			return nil, err
		}
		return search.NewTypesenseAdapter(client), nil
	case config.SearchBackendElasticsearch:
		client, err := elasticsearch.NewClient(ctx, &cfg.Elasticsearch)
		if err != nil {
			return nil, err
		}
		if err := client.InitIndex(ctx); err != nil {
			return nil, err
		}
		return search.NewElasticAdapter(client), nil
	}
	return nil, nil
}

func (a *app) syncOptions() services.SyncOptions {
	return services.SyncOptions{
		Governor: a.governor,
		Cooldown: a.cfg.Sync.FailureCooldown,
		Metrics:  a.metrics,
		Events:   a.events,
	}
}

func (a *app) placeList(filter entities.FilterState[entities.PlaceFilter]) *services.PlaceList {
	return services.NewPlaceList(a.placeReader, a.placeWriter, filter, a.syncOptions())
}

func (a *app) reviewList(filter entities.FilterState[entities.ReviewFilter]) (*services.ReviewList, error) {
	mode := entities.StatsWindowed
	if a.cfg.Sync.StatsMode == config.StatsModeAuthoritative {
		mode = entities.StatsAuthoritative
	}
	projector := services.NewStatsProjector(loaders.NewStatsLoader(a.stats, 5*time.Millisecond))
	return services.NewReviewList(a.reviews, projector, mode, filter, a.syncOptions())
}

func (a *app) tourList(filter entities.FilterState[entities.TourFilter]) *services.TourList {
	return services.NewTourList(a.tours, filter, a.syncOptions())
}

func (a *app) mapOptions() services.MarkerOptions {
	return services.MarkerOptions{
		FocusZoomThreshold: a.cfg.Map.FocusZoomThreshold,
		FocusZoom:          a.cfg.Map.FocusZoom,
		HighlightDuration:  a.cfg.Map.HighlightDuration,
		Metrics:            a.metrics,
	}
}

// Close releases every connection in reverse order of creation
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
