package loaders

import (
	"context"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
)

// StatsLoader batches authoritative rating reads for places. Lookups issued within
// the batch wait are merged into one StatsForPlaces call and memoized until cleared.
// Failed lookups are never memoized.
type StatsLoader struct {
	loader *dataloader.Loader[int64, *entities.DerivedStats]
}

// NewStatsLoader creates a stats loader over reader
func NewStatsLoader(reader repositories.ReviewStatsReader, wait time.Duration) *StatsLoader {
	batch := func(ctx context.Context, keys []int64) []*dataloader.Result[*entities.DerivedStats] {
		results := make([]*dataloader.Result[*entities.DerivedStats], len(keys))
		stats, err := reader.StatsForPlaces(ctx, keys)

		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[*entities.DerivedStats]{Error: err}
			} else if s, ok := stats[key]; ok && s != nil {
				s.Source = entities.StatsAuthoritative
				s.PlaceID = key
				results[i] = &dataloader.Result[*entities.DerivedStats]{Data: s}
			} else {
				empty := entities.EmptyStats(entities.StatsAuthoritative, key)
				results[i] = &dataloader.Result[*entities.DerivedStats]{Data: &empty}
			}
		}
		return results
	}

	opts := []dataloader.Option[int64, *entities.DerivedStats]{}
	if wait > 0 {
		opts = append(opts, dataloader.WithWait[int64, *entities.DerivedStats](wait))
	}

	return &StatsLoader{loader: dataloader.NewBatchedLoader(batch, opts...)}
}

// Load returns the authoritative stats of a place
func (l *StatsLoader) Load(ctx context.Context, placeID int64) (*entities.DerivedStats, error) {
	stats, err := l.loader.Load(ctx, placeID)()
	if err != nil {
		l.loader.Clear(ctx, placeID)
		return nil, err
	}
	out := *stats
	out.RatingDistribution = make(map[int]int, len(stats.RatingDistribution))
	for k, v := range stats.RatingDistribution {
		out.RatingDistribution[k] = v
	}
	return &out, nil
}

// LoadMany returns the authoritative stats of several places in one batch
func (l *StatsLoader) LoadMany(ctx context.Context, placeIDs []int64) (map[int64]*entities.DerivedStats, error) {
	values, errs := l.loader.LoadMany(ctx, placeIDs)()
	out := make(map[int64]*entities.DerivedStats, len(placeIDs))
	var firstErr error
	for i, id := range placeIDs {
		if len(errs) > i && errs[i] != nil {
			l.loader.Clear(ctx, id)
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		out[id] = values[i]
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// Invalidate drops the memoized stats of a place so the next Load reads again
func (l *StatsLoader) Invalidate(ctx context.Context, placeID int64) {
	l.loader.Clear(ctx, placeID)
}

// InvalidateAll drops every memoized entry
func (l *StatsLoader) InvalidateAll() {
	l.loader.ClearAll()
}
