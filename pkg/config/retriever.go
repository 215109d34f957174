package config

import (
	"fmt"
)

// VectorStoreType identifies the vector store backend.
type VectorStoreType string

const (
	VectorStoreChroma VectorStoreType = "chroma"
	VectorStoreQdrant VectorStoreType = "qdrant"
)

// VectorStoreConfig describes the vector store connection.
type VectorStoreConfig struct {
	// Type of the backend (chroma, qdrant).
	Type VectorStoreType `yaml:"type,omitempty"`

	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`

	APIKey    string `yaml:"api_key,omitempty"`
	EnableTLS *bool  `yaml:"enable_tls,omitempty"`

	// Timeout per store call, in seconds.
	Timeout int `yaml:"timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *VectorStoreConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = VectorStoreChroma
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		switch c.Type {
		case VectorStoreQdrant:
			c.Port = 6334
		default:
			c.Port = 8000
		}
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
}

// RetrieverConfig configures the sharded vector retriever.
type RetrieverConfig struct {
	// Store is the vector store connection shared by all collections.
	Store VectorStoreConfig `yaml:"store,omitempty"`

	// Collections are the shard collection names queried in parallel.
	Collections []string `yaml:"collections"`

	// PassageCollection stores the canonical passage records.
	PassageCollection string `yaml:"passage_collection"`

	// TopK candidates fetched per shard.
	TopK int `yaml:"top_k,omitempty"`

	// MaxResults is the final fused result count.
	MaxResults int `yaml:"max_results,omitempty"`

	// RRFK is the Reciprocal Rank Fusion constant.
	RRFK int `yaml:"rrf_k,omitempty"`

	// PassageIDKey is the metadata key carrying the stable passage id.
	PassageIDKey string `yaml:"passage_id_meta_key,omitempty"`
}

// SetDefaults applies default values.
func (c *RetrieverConfig) SetDefaults() {
	c.Store.SetDefaults()
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.MaxResults == 0 {
		c.MaxResults = 10
	}
	if c.RRFK == 0 {
		c.RRFK = 60
	}
	if c.PassageIDKey == "" {
		c.PassageIDKey = "passage_id"
	}
}

// Validate checks the retriever configuration.
func (c *RetrieverConfig) Validate() error {
	switch c.Store.Type {
	case VectorStoreChroma, VectorStoreQdrant:
	default:
		return fmt.Errorf("unsupported store type %q (valid: chroma, qdrant)", c.Store.Type)
	}
	if len(c.Collections) == 0 {
		return fmt.Errorf("collections is required")
	}
	if c.PassageCollection == "" {
		return fmt.Errorf("passage_collection is required")
	}
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be positive")
	}
	if c.MaxResults < 1 {
		return fmt.Errorf("max_results must be positive")
	}
	return nil
}
