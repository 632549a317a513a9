package typesense

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanaKriezi/tourly-skopje-guide/pkg/config"
)

func TestPlacesSchema(t *testing.T) {
	schema := PlacesSchema("places_test")

	assert.Equal(t, "places_test", schema.Name)
	require.NotNil(t, schema.DefaultSortingField)
	assert.Equal(t, "average_rating", *schema.DefaultSortingField)

	fields := map[string]string{}
	for _, f := range schema.Fields {
		fields[f.Name] = f.Type
	}
	assert.Equal(t, "int64", fields["place_id"])
	assert.Equal(t, "geopoint", fields["location"])
	assert.Equal(t, "float", fields["average_rating"])
}

func TestNewClientFrom_DefaultsCollection(t *testing.T) {
	assert.Equal(t, DefaultPlacesCollection, NewClientFrom(nil, "").Collection())
	assert.Equal(t, "sights", NewClientFrom(nil, "sights").Collection())
}

func TestClient_Integration(t *testing.T) {
	url := os.Getenv("TEST_TYPESENSE_URL")
	if url == "" {
		t.Skip("TEST_TYPESENSE_URL not set")
	}

	client, err := NewClient(context.Background(), &config.TypesenseConfig{
		URL:        url,
		APIKey:     os.Getenv("TEST_TYPESENSE_API_KEY"),
		Collection: "places_it",
	})
	require.NoError(t, err)

	assert.NoError(t, client.InitSchema(context.Background()))
	// second call finds the existing collection
	assert.NoError(t, client.InitSchema(context.Background()))
}
