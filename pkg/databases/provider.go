// Package databases provides vector store adapters behind a single Provider
// interface. Chroma speaks its HTTP API; Qdrant uses the official gRPC
// client.
package databases

import (
	"context"
	"fmt"

	"github.com/sheba-ai/sheba/pkg/config"
)

// QueryResult is one record returned by a vector store.
type QueryResult struct {
	ID       string
	Document string
	Metadata map[string]interface{}
}

// Provider is the read-side vector store surface used by the retriever.
//
// The where filter supports equality ({"key": value}) and membership
// ({"key": map[string]interface{}{"$in": values}}).
type Provider interface {
	// Query returns the topK nearest records to vector in collection.
	Query(ctx context.Context, collection string, vector []float32, topK int, where map[string]interface{}) ([]QueryResult, error)

	// Get returns records matching where without a similarity search.
	Get(ctx context.Context, collection string, where map[string]interface{}) ([]QueryResult, error)

	// Heartbeat verifies the store is reachable.
	Heartbeat(ctx context.Context) error

	Close() error
}

// NewFromConfig creates a provider for the configured backend.
func NewFromConfig(cfg config.VectorStoreConfig) (Provider, error) {
	switch cfg.Type {
	case config.VectorStoreChroma:
		return NewChromaProvider(cfg)
	case config.VectorStoreQdrant:
		return NewQdrantProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Type)
	}
}
