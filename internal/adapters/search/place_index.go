package search

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/observability"
)

// PlaceIndex keeps a search engine's copy of places current
type PlaceIndex interface {
	Upsert(ctx context.Context, place entities.Place) error
	Remove(ctx context.Context, id int64) error
}

// PlaceSearcher is a search engine that can serve place pages and be kept in sync
type PlaceSearcher interface {
	repositories.PageReader[entities.Place, entities.PlaceFilter]
	PlaceIndex
}

// placeDocument is the indexed shape of a place
func placeDocument(p entities.Place) map[string]any {
	doc := map[string]any{
		"id":             strconv.FormatInt(p.ID, 10),
		"place_id":       p.ID,
		"name":           p.Name,
		"place_type":     string(p.PlaceType),
		"average_rating": p.AverageRating,
		"review_count":   p.ReviewCount,
	}
	if p.Description != "" {
		doc["description"] = p.Description
	}
	if p.Address != "" {
		doc["address"] = p.Address
	}
	if p.PhotoReference != "" {
		doc["photo_reference"] = p.PhotoReference
	}
	if c, ok := p.Coordinates(); ok {
		doc["location"] = []float64{c.Latitude, c.Longitude}
	}
	return doc
}

// placeFromDocument rebuilds a place from a decoded JSON document. Missing or
// mistyped fields are left at their zero value.
func placeFromDocument(doc map[string]any) entities.Place {
	var p entities.Place
	if v, ok := doc["place_id"].(float64); ok {
		p.ID = int64(v)
	} else if v, ok := doc["id"].(string); ok {
		p.ID, _ = strconv.ParseInt(v, 10, 64)
	}
	p.Name, _ = doc["name"].(string)
	p.Description, _ = doc["description"].(string)
	p.Address, _ = doc["address"].(string)
	p.PhotoReference, _ = doc["photo_reference"].(string)
	if v, ok := doc["place_type"].(string); ok {
		p.PlaceType = entities.PlaceType(v)
	}
	if v, ok := doc["average_rating"].(float64); ok {
		p.AverageRating = v
	}
	if v, ok := doc["review_count"].(float64); ok {
		p.ReviewCount = int(v)
	}

	switch loc := doc["location"].(type) {
	case []any:
		if len(loc) == 2 {
			lat, latOK := loc[0].(float64)
			lng, lngOK := loc[1].(float64)
			if latOK && lngOK {
				p.Latitude, p.Longitude = &lat, &lng
			}
		}
	case map[string]any:
		lat, latOK := loc["lat"].(float64)
		lng, lngOK := loc["lon"].(float64)
		if latOK && lngOK {
			p.Latitude, p.Longitude = &lat, &lng
		}
	}
	return p
}

// RoutedPlaceReader sends name searches to a search engine and every other
// place query to the primary reader
type RoutedPlaceReader struct {
	search  repositories.PageReader[entities.Place, entities.PlaceFilter]
	primary repositories.PageReader[entities.Place, entities.PlaceFilter]
}

// NewRoutedPlaceReader creates a routing reader. A nil search reader routes everything
// to primary.
func NewRoutedPlaceReader(search, primary repositories.PageReader[entities.Place, entities.PlaceFilter]) *RoutedPlaceReader {
	return &RoutedPlaceReader{search: search, primary: primary}
}

// ReadPage implements repositories.PageReader
func (r *RoutedPlaceReader) ReadPage(ctx context.Context, filter entities.FilterState[entities.PlaceFilter]) (*repositories.PageResult[entities.Place], error) {
	if r.search != nil && strings.TrimSpace(filter.Predicates.Name) != "" {
		return r.search.ReadPage(ctx, filter)
	}
	return r.primary.ReadPage(ctx, filter)
}

// IndexingPlaceWriter decorates a place writer so every confirmed write is mirrored
// into a search index. Index failures are logged; the write itself already succeeded.
type IndexingPlaceWriter struct {
	writer repositories.EntityWriter[entities.Place, entities.PlaceInput]
	index  PlaceIndex
	logger zerolog.Logger
}

// NewIndexingPlaceWriter creates a new indexing writer
func NewIndexingPlaceWriter(writer repositories.EntityWriter[entities.Place, entities.PlaceInput], index PlaceIndex) *IndexingPlaceWriter {
	return &IndexingPlaceWriter{
		writer: writer,
		index:  index,
		logger: observability.Component("search_indexer"),
	}
}

// Create implements repositories.EntityWriter
func (w *IndexingPlaceWriter) Create(ctx context.Context, identity entities.Identity, input entities.PlaceInput) (entities.Place, error) {
	place, err := w.writer.Create(ctx, identity, input)
	if err != nil {
		return place, err
	}
	w.upsert(ctx, place)
	return place, nil
}

// Update implements repositories.EntityWriter
func (w *IndexingPlaceWriter) Update(ctx context.Context, identity entities.Identity, id int64, input entities.PlaceInput) (entities.Place, error) {
	place, err := w.writer.Update(ctx, identity, id, input)
	if err != nil {
		return place, err
	}
	w.upsert(ctx, place)
	return place, nil
}

// Delete implements repositories.EntityWriter
func (w *IndexingPlaceWriter) Delete(ctx context.Context, identity entities.Identity, id int64) error {
	if err := w.writer.Delete(ctx, identity, id); err != nil {
		return err
	}
	if err := w.index.Remove(ctx, id); err != nil {
		w.logger.Warn().Err(err).Int64("entity_id", id).Msg("failed to remove place from search index")
	}
	return nil
}

func (w *IndexingPlaceWriter) upsert(ctx context.Context, place entities.Place) {
	if err := w.index.Upsert(ctx, place); err != nil {
		w.logger.Warn().Err(err).Int64("entity_id", place.ID).Msg("failed to index place")
	}
}
