package elasticsearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	elastic "github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStubClient(t *testing.T, exists bool) (*Client, *[]string) {
	t.Helper()
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodHead && !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	}))
	t.Cleanup(srv.Close)

	es, err := elastic.NewClient(elastic.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewClientFrom(es, "places_test"), &calls
}

func TestNewClientFrom_DefaultsIndex(t *testing.T) {
	assert.Equal(t, DefaultPlacesIndex, NewClientFrom(nil, "").Index())
	assert.Equal(t, "sights", NewClientFrom(nil, "sights").Index())
}

func TestInitIndex_CreatesMissingIndex(t *testing.T) {
	client, calls := newStubClient(t, false)

	require.NoError(t, client.InitIndex(context.Background()))
	assert.Equal(t, []string{"HEAD /places_test", "PUT /places_test"}, *calls)
}

func TestInitIndex_KeepsExistingIndex(t *testing.T) {
	client, calls := newStubClient(t, true)

	require.NoError(t, client.InitIndex(context.Background()))
	assert.Equal(t, []string{"HEAD /places_test"}, *calls)
}
