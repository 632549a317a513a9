package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
	esclient "github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/clients/elasticsearch"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

var elasticSortFields = map[string]string{
	"averageRating": "average_rating",
	"reviewCount":   "review_count",
	"name":          "name.keyword",
	"id":            "place_id",
}

// ElasticAdapter serves place pages from an Elasticsearch index
type ElasticAdapter struct {
	client *esclient.Client
}

// NewElasticAdapter creates a new Elasticsearch adapter
func NewElasticAdapter(client *esclient.Client) *ElasticAdapter {
	return &ElasticAdapter{client: client}
}

var _ PlaceSearcher = (*ElasticAdapter)(nil)

type elasticSearchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// elasticQuery translates a place filter into a search request body
func elasticQuery(filter entities.FilterState[entities.PlaceFilter]) (map[string]any, error) {
	field, ok := elasticSortFields[filter.SortKey]
	if !ok {
		return nil, apperrors.NewInvalidQueryError(fmt.Sprintf("cannot sort search results by %q", filter.SortKey))
	}

	boolQuery := map[string]any{}
	if name := strings.TrimSpace(filter.Predicates.Name); name != "" {
		boolQuery["must"] = []any{map[string]any{
			"multi_match": map[string]any{
				"query":  name,
				"fields": []string{"name^3", "description", "address"},
			},
		}}
	} else {
		boolQuery["must"] = []any{map[string]any{"match_all": map[string]any{}}}
	}
	if filter.Predicates.Type != "" {
		boolQuery["filter"] = []any{map[string]any{
			"term": map[string]any{"place_type": string(filter.Predicates.Type)},
		}}
	}

	dir := string(filter.SortDirection)
	return map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"sort": []any{
			map[string]any{field: map[string]any{"order": dir, "missing": "_last"}},
			map[string]any{"place_id": map[string]any{"order": dir}},
		},
		"from": filter.Page * filter.PageSize,
		"size": filter.PageSize,
	}, nil
}

// ReadPage implements repositories.PageReader
func (a *ElasticAdapter) ReadPage(ctx context.Context, filter entities.FilterState[entities.PlaceFilter]) (*repositories.PageResult[entities.Place], error) {
	query, err := elasticQuery(filter)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search query: %w", err)
	}

	es := a.client.ES()
	resp, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(a.client.Index()),
		es.Search.WithBody(bytes.NewReader(body)),
		es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, apperrors.NewRemoteUnavailableError("place search is unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return nil, apperrors.NewInvalidQueryError("the search engine rejected the query")
	}
	if resp.IsError() {
		return nil, apperrors.NewRemoteUnavailableError("place search is unavailable", fmt.Errorf("search returned %s", resp.Status()))
	}

	var decoded elasticSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.NewRemoteUnavailableError("place search returned an unreadable response", err)
	}

	places := make([]entities.Place, 0, len(decoded.Hits.Hits))
	for _, hit := range decoded.Hits.Hits {
		places = append(places, placeFromDocument(hit.Source))
	}
	return &repositories.PageResult[entities.Place]{
		Items:      places,
		Pagination: searchPagination(filter.Page, filter.PageSize, decoded.Hits.Total.Value),
	}, nil
}

// Upsert indexes a place
func (a *ElasticAdapter) Upsert(ctx context.Context, place entities.Place) error {
	doc := placeDocument(place)
	delete(doc, "id")
	if loc, ok := doc["location"].([]float64); ok {
		// geo_point arrays are [lon, lat]
		doc["location"] = map[string]float64{"lat": loc[0], "lon": loc[1]}
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode place document: %w", err)
	}

	es := a.client.ES()
	resp, err := es.Index(a.client.Index(), bytes.NewReader(body),
		es.Index.WithContext(ctx),
		es.Index.WithDocumentID(strconv.FormatInt(place.ID, 10)),
	)
	if err != nil {
		return fmt.Errorf("failed to index place: %w", err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return fmt.Errorf("failed to index place: %s", resp.Status())
	}
	return nil
}

// Remove removes a place from the index. A document that is already gone is not an error.
func (a *ElasticAdapter) Remove(ctx context.Context, id int64) error {
	es := a.client.ES()
	resp, err := es.Delete(a.client.Index(), strconv.FormatInt(id, 10), es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete place from index: %w", err)
	}
	defer resp.Body.Close()
	if resp.IsError() && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to delete place from index: %s", resp.Status())
	}
	return nil
}
