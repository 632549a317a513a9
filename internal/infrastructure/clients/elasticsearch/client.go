package elasticsearch

import (
	"context"
	"fmt"
	"strings"

	elastic "github.com/elastic/go-elasticsearch/v8"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/observability"
	"github.com/ZanaKriezi/tourly-skopje-guide/pkg/config"
	"github.com/ZanaKriezi/tourly-skopje-guide/pkg/retry"
)

// DefaultPlacesIndex is used when no index is configured
const DefaultPlacesIndex = "places"

// placesMapping mirrors the fields place documents are indexed with
const placesMapping = `{
	"mappings": {
		"properties": {
			"place_id":        {"type": "long"},
			"name":            {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"description":     {"type": "text"},
			"place_type":      {"type": "keyword"},
			"location":        {"type": "geo_point"},
			"address":         {"type": "text"},
			"average_rating":  {"type": "float"},
			"review_count":    {"type": "integer"},
			"photo_reference": {"type": "keyword", "index": false}
		}
	}
}`

// Client represents an Elasticsearch client bound to the places index
type Client struct {
	es    *elastic.Client
	index string
}

// NewClient creates a new Elasticsearch client with exponential backoff retry
func NewClient(ctx context.Context, cfg *config.ElasticsearchConfig) (*Client, error) {
	es, err := elastic.NewClient(elastic.Config{Addresses: cfg.Addresses})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	logger := observability.Component("elasticsearch")
	err = retry.DoWithLog(ctx, retry.DefaultConfig(), "Elasticsearch", &logger, func() error {
		resp, err := es.Ping(es.Ping.WithContext(ctx))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.IsError() {
			return fmt.Errorf("ping returned %s", resp.Status())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch after retries: %w", err)
	}

	logger.Info().Strs("addresses", cfg.Addresses).Msg("connected to Elasticsearch")
	return NewClientFrom(es, cfg.Index), nil
}

// NewClientFrom wraps an existing client
func NewClientFrom(es *elastic.Client, index string) *Client {
	if index == "" {
		index = DefaultPlacesIndex
	}
	return &Client{es: es, index: index}
}

// ES returns the underlying client
func (c *Client) ES() *elastic.Client {
	return c.es
}

// Index returns the places index name
func (c *Client) Index() string {
	return c.index
}

// InitIndex ensures the places index exists
func (c *Client) InitIndex(ctx context.Context) error {
	resp, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode == 200 {
		return nil
	}

	resp, err = c.es.Indices.Create(c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(placesMapping)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return fmt.Errorf("failed to create index: %s", resp.Status())
	}

	logger := observability.Component("elasticsearch")
	logger.Info().Str("index", c.index).Msg("created index")
	return nil
}
