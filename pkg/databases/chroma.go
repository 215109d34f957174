package databases

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sheba-ai/sheba/pkg/config"
)

type chromaProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewChromaProvider creates a Chroma adapter over its HTTP API.
func NewChromaProvider(cfg config.VectorStoreConfig) (Provider, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required for Chroma")
	}

	scheme := "http"
	if cfg.EnableTLS != nil && *cfg.EnableTLS {
		scheme = "https"
	}

	port := cfg.Port
	if port == 0 {
		port = 8000 // Default Chroma port
	}

	return &chromaProvider{
		baseURL: fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, port),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}, nil
}

func (db *chromaProvider) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", db.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if db.apiKey != "" {
		req.Header.Set("X-Api-Key", db.apiKey)
	}

	resp, err := db.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (db *chromaProvider) Query(ctx context.Context, collection string, vector []float32, topK int, where map[string]interface{}) ([]QueryResult, error) {
	vector64 := make([]float64, len(vector))
	for i, v := range vector {
		vector64[i] = float64(v)
	}

	payload := map[string]interface{}{
		"query_embeddings": [][]float64{vector64},
		"n_results":        topK,
		"include":          []string{"documents", "metadatas"},
	}
	if len(where) > 0 {
		payload["where"] = where
	}

	var result map[string]interface{}
	path := fmt.Sprintf("/api/v1/collections/%s/query", collection)
	if err := db.post(ctx, path, payload, &result); err != nil {
		return nil, err
	}

	return convertChromaNested(result), nil
}

func (db *chromaProvider) Get(ctx context.Context, collection string, where map[string]interface{}) ([]QueryResult, error) {
	payload := map[string]interface{}{
		"include": []string{"documents", "metadatas"},
	}
	if len(where) > 0 {
		payload["where"] = where
	}

	var result map[string]interface{}
	path := fmt.Sprintf("/api/v1/collections/%s/get", collection)
	if err := db.post(ctx, path, payload, &result); err != nil {
		return nil, err
	}

	return convertChromaFlat(result), nil
}

func (db *chromaProvider) Heartbeat(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", db.baseURL+"/api/v1/heartbeat", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := db.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("heartbeat failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("heartbeat failed: status %d", resp.StatusCode)
	}

	return nil
}

func (db *chromaProvider) Close() error {
	return nil
}

// convertChromaNested parses the /query response shape:
// { "ids": [[...]], "documents": [[...]], "metadatas": [[...]] }
func convertChromaNested(result map[string]interface{}) []QueryResult {
	ids := firstNested(result, "ids")
	docs := firstNested(result, "documents")
	metas := firstNested(result, "metadatas")
	return assembleChromaResults(ids, docs, metas)
}

// convertChromaFlat parses the /get response shape:
// { "ids": [...], "documents": [...], "metadatas": [...] }
func convertChromaFlat(result map[string]interface{}) []QueryResult {
	ids, _ := result["ids"].([]interface{})
	docs, _ := result["documents"].([]interface{})
	metas, _ := result["metadatas"].([]interface{})
	return assembleChromaResults(ids, docs, metas)
}

func firstNested(result map[string]interface{}, key string) []interface{} {
	outer, _ := result[key].([]interface{})
	if len(outer) == 0 {
		return nil
	}
	inner, _ := outer[0].([]interface{})
	return inner
}

func assembleChromaResults(ids, docs, metas []interface{}) []QueryResult {
	results := make([]QueryResult, 0, len(ids))
	for i := range ids {
		id, ok := ids[i].(string)
		if !ok {
			continue
		}

		document := ""
		if i < len(docs) && docs[i] != nil {
			if docVal, ok := docs[i].(string); ok {
				document = docVal
			}
		}

		metadata := make(map[string]interface{})
		if i < len(metas) && metas[i] != nil {
			if metaVal, ok := metas[i].(map[string]interface{}); ok {
				metadata = metaVal
			}
		}

		results = append(results, QueryResult{
			ID:       id,
			Document: document,
			Metadata: metadata,
		})
	}
	return results
}
