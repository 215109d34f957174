package databases

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheba-ai/sheba/pkg/config"
)

func newChromaTestProvider(t *testing.T, server *httptest.Server) Provider {
	t.Helper()

	parsed, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)

	provider, err := NewChromaProvider(config.VectorStoreConfig{
		Type:    config.VectorStoreChroma,
		Host:    parsed.Hostname(),
		Port:    port,
		Timeout: 5,
	})
	require.NoError(t, err)
	return provider
}

func TestChromaQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/collections/services_passport/query", r.URL.Path)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.EqualValues(t, 5, payload["n_results"])
		assert.Contains(t, payload, "query_embeddings")

		_, _ = w.Write([]byte(`{
			"ids": [["doc-1", "doc-2"]],
			"documents": [["first passage", "second passage"]],
			"metadatas": [[{"passage_id": 11, "url": "https://example.gov.bd/a"}, {"passage_id": 7}]]
		}`))
	}))
	defer server.Close()

	provider := newChromaTestProvider(t, server)
	results, err := provider.Query(context.Background(), "services_passport", []float32{0.1, 0.2}, 5, nil)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "doc-1", results[0].ID)
	assert.Equal(t, "first passage", results[0].Document)
	assert.EqualValues(t, 11, results[0].Metadata["passage_id"])
	assert.Equal(t, "doc-2", results[1].ID)
}

func TestChromaQueryPassesWhere(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		where, ok := payload["where"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "passport", where["category"])

		_, _ = w.Write([]byte(`{"ids": [[]]}`))
	}))
	defer server.Close()

	provider := newChromaTestProvider(t, server)
	results, err := provider.Query(context.Background(), "c", []float32{0.1}, 3,
		map[string]interface{}{"category": "passport"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromaGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/collections/passages/get", r.URL.Path)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		where, ok := payload["where"].(map[string]interface{})
		require.True(t, ok)
		assert.Contains(t, where, "passage_id")

		_, _ = w.Write([]byte(`{
			"ids": ["p-7", "p-11"],
			"documents": ["seven", "eleven"],
			"metadatas": [{"passage_id": 7}, {"passage_id": 11}]
		}`))
	}))
	defer server.Close()

	provider := newChromaTestProvider(t, server)
	results, err := provider.Get(context.Background(), "passages", map[string]interface{}{
		"passage_id": map[string]interface{}{"$in": []int64{7, 11}},
	})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "p-7", results[0].ID)
	assert.Equal(t, "seven", results[0].Document)
	assert.Equal(t, "eleven", results[1].Document)
}

func TestChromaQueryErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`collection not found`))
	}))
	defer server.Close()

	provider := newChromaTestProvider(t, server)
	_, err := provider.Query(context.Background(), "missing", []float32{0.1}, 3, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestChromaHeartbeat(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"nanosecond heartbeat": 1}`))
	}))
	defer server.Close()

	provider := newChromaTestProvider(t, server)
	require.NoError(t, provider.Heartbeat(context.Background()))
	assert.Equal(t, "/api/v1/heartbeat", path)
}

func TestNewFromConfigUnsupportedType(t *testing.T) {
	_, err := NewFromConfig(config.VectorStoreConfig{Type: "pinecone"})
	require.Error(t, err)
}
