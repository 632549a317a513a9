package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/adapters/database"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/adapters/search"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/clients/elasticsearch"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/clients/postgres"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/clients/typesense"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/observability"
	"github.com/ZanaKriezi/tourly-skopje-guide/pkg/config"
)

const indexPageSize = 100

func main() {
	var intervalFlag string
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	observability.InitLogger("tourly-indexer", cfg.Env)

	var interval time.Duration
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, cfg); err != nil {
			log.Error().Err(err).Msg("reindex failed")
		}

		if interval <= 0 {
			break
		}
		log.Info().Dur("next_in", interval).Msg("reindex complete")

		select {
		case <-ctx.Done():
			log.Info().Msg("reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, cfg *config.Config) error {
	pg, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pg.Close()

	index, err := openIndex(ctx, cfg)
	if err != nil {
		return err
	}
	if index == nil {
		log.Warn().Msg("SEARCH_BACKEND is none, nothing to index")
		return nil
	}

	indexed, failed, err := reindex(ctx, database.NewPlaceAdapter(pg), index)
	log.Info().Int("indexed", indexed).Int("failed", failed).Msg("places indexed")
	return err
}

func openIndex(ctx context.Context, cfg *config.Config) (search.PlaceIndex, error) {
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

// reindex walks every page of places in id order and upserts each into index.
// A place that fails to index is logged and skipped.
func reindex(ctx context.Context, places repositories.PageReader[entities.Place, entities.PlaceFilter], index search.PlaceIndex) (indexed, failed int, err error) {
	filter := entities.FilterState[entities.PlaceFilter]{
		PageSize:      indexPageSize,
		SortKey:       "id",
		SortDirection: entities.SortAscending,
	}
	for {
		page, err := places.ReadPage(ctx, filter)
		if err != nil {
			return indexed, failed, err
		}
		for _, place := range page.Items {
			if err := index.Upsert(ctx, place); err != nil {
				log.Warn().Err(err).Int64("entity_id", place.ID).Msg("failed to index place")
				failed++
				continue
			}
			indexed++
		}
		if page.Pagination.Last || len(page.Items) == 0 {
			return indexed, failed, nil
		}
		filter = filter.WithPage(filter.Page + 1)
	}
}
