package databases

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/sheba-ai/sheba/pkg/config"
)

// documentPayloadKey is the payload field carrying the passage text in
// Qdrant collections.
const documentPayloadKey = "document"

type qdrantProvider struct {
	client  *qdrant.Client
	timeout time.Duration
}

// NewQdrantProvider creates a Qdrant adapter over the official gRPC client.
func NewQdrantProvider(cfg config.VectorStoreConfig) (Provider, error) {
	useTLS := false
	if cfg.EnableTLS != nil {
		useTLS = *cfg.EnableTLS
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &qdrantProvider{
		client:  client,
		timeout: time.Duration(cfg.Timeout) * time.Second,
	}, nil
}

// callContext bounds one store call; gRPC has no per-call timeout of its own.
func (db *qdrantProvider) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.timeout)
}

func (db *qdrantProvider) Query(ctx context.Context, collection string, vector []float32, topK int, where map[string]interface{}) ([]QueryResult, error) {
	ctx, cancel := db.callContext(ctx)
	defer cancel()

	searchRequest := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	if len(where) > 0 {
		searchRequest.Filter = buildQdrantFilter(where)
	}

	searchResult, err := db.client.GetPointsClient().Search(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]QueryResult, 0, len(searchResult.Result))
	for _, point := range searchResult.Result {
		results = append(results, qdrantResult(point.Id, point.Payload))
	}
	return results, nil
}

func (db *qdrantProvider) Get(ctx context.Context, collection string, where map[string]interface{}) ([]QueryResult, error) {
	ctx, cancel := db.callContext(ctx)
	defer cancel()

	scrollRequest := &qdrant.ScrollPoints{
		CollectionName: collection,
		WithPayload:    qdrant.NewWithPayload(true),
	}

	if len(where) > 0 {
		scrollRequest.Filter = buildQdrantFilter(where)
	}

	points, err := db.client.Scroll(ctx, scrollRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to scroll points: %w", err)
	}

	results := make([]QueryResult, 0, len(points))
	for _, point := range points {
		results = append(results, qdrantResult(point.Id, point.Payload))
	}
	return results, nil
}

func (db *qdrantProvider) Heartbeat(ctx context.Context) error {
	ctx, cancel := db.callContext(ctx)
	defer cancel()

	if _, err := db.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

func (db *qdrantProvider) Close() error {
	return db.client.Close()
}

// buildQdrantFilter translates the portable where shape into a Qdrant
// filter. Equality and {"$in": values} membership are supported.
func buildQdrantFilter(where map[string]interface{}) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, len(where))

	for key, value := range where {
		if op, ok := value.(map[string]interface{}); ok {
			if in, ok := op["$in"]; ok {
				if cond := buildInCondition(key, in); cond != nil {
					conditions = append(conditions, cond)
				}
				continue
			}
		}

		switch v := value.(type) {
		case string:
			conditions = append(conditions, qdrant.NewMatch(key, v))
		case int:
			conditions = append(conditions, qdrant.NewMatchInt(key, int64(v)))
		case int64:
			conditions = append(conditions, qdrant.NewMatchInt(key, v))
		case bool:
			conditions = append(conditions, qdrant.NewMatchBool(key, v))
		}
	}

	return &qdrant.Filter{Must: conditions}
}

func buildInCondition(key string, in interface{}) *qdrant.Condition {
	switch values := in.(type) {
	case []string:
		return qdrant.NewMatchKeywords(key, values...)
	case []int64:
		return qdrant.NewMatchInts(key, values...)
	case []interface{}:
		keywords := make([]string, 0, len(values))
		ints := make([]int64, 0, len(values))
		for _, v := range values {
			switch typed := v.(type) {
			case string:
				keywords = append(keywords, typed)
			case int:
				ints = append(ints, int64(typed))
			case int64:
				ints = append(ints, typed)
			case float64:
				ints = append(ints, int64(typed))
			}
		}
		if len(keywords) > 0 {
			return qdrant.NewMatchKeywords(key, keywords...)
		}
		if len(ints) > 0 {
			return qdrant.NewMatchInts(key, ints...)
		}
	}
	return nil
}

func qdrantResult(id *qdrant.PointId, payload map[string]*qdrant.Value) QueryResult {
	metadata := make(map[string]interface{}, len(payload))
	document := ""

	for key, value := range payload {
		converted := convertQdrantValue(value)
		if key == documentPayloadKey {
			if text, ok := converted.(string); ok {
				document = text
				continue
			}
		}
		metadata[key] = converted
	}

	return QueryResult{
		ID:       pointIDString(id),
		Document: document,
		Metadata: metadata,
	}
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func convertQdrantValue(value *qdrant.Value) interface{} {
	if value == nil {
		return nil
	}
	switch kind := value.Kind.(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	default:
		return value.String()
	}
}
