package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/observability"
	"github.com/ZanaKriezi/tourly-skopje-guide/pkg/config"
	"github.com/ZanaKriezi/tourly-skopje-guide/pkg/retry"
)

// DefaultPlacesCollection is used when no collection is configured
const DefaultPlacesCollection = "places"

// Client represents a Typesense client
type Client struct {
	client     *typesense.Client
	collection string
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(ctx context.Context, cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	logger := observability.Component("typesense")
	err := retry.DoWithLog(ctx, retry.DefaultConfig(), "Typesense", &logger, func() error {
		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		ok, err := client.Health(healthCtx, 2*time.Second)
		if err == nil && !ok {
			err = fmt.Errorf("typesense reported unhealthy")
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	logger.Info().Str("url", cfg.URL).Msg("connected to Typesense")
	return NewClientFrom(client, cfg.Collection), nil
}

// NewClientFrom wraps an existing typesense client
func NewClientFrom(client *typesense.Client, collection string) *Client {
	if collection == "" {
		collection = DefaultPlacesCollection
	}
	return &Client{client: client, collection: collection}
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// Collection returns the places collection name
func (c *Client) Collection() string {
	return c.collection
}

// PlacesSchema is the collection schema place documents are indexed under
func PlacesSchema(name string) *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: name,
		Fields: []api.Field{
			{Name: "place_id", Type: "int64"},
			{Name: "name", Type: "string", Sort: pointer.True()},
			{Name: "description", Type: "string", Optional: pointer.True()},
			{Name: "place_type", Type: "string", Facet: pointer.True()},
			{Name: "location", Type: "geopoint", Optional: pointer.True()},
			{Name: "address", Type: "string", Optional: pointer.True()},
			{Name: "average_rating", Type: "float"},
			{Name: "review_count", Type: "int32"},
			{Name: "photo_reference", Type: "string", Optional: pointer.True(), Index: pointer.False()},
		},
		DefaultSortingField: pointer.String("average_rating"),
	}
}

// InitSchema ensures the places collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	logger := observability.Component("typesense")

	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}
	for _, col := range collections {
		if col.Name == c.collection {
			logger.Debug().Str("collection", c.collection).Msg("collection already exists")
			return nil
		}
	}

	if _, err := c.client.Collections().Create(ctx, PlacesSchema(c.collection)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	logger.Info().Str("collection", c.collection).Msg("created collection")
	return nil
}
