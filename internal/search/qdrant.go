package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/singleflight"

	"github.com/signalhaus/signalhaus/internal/model"
	"github.com/signalhaus/signalhaus/internal/rag"
)

// QdrantConfig holds configuration for connecting to qdrant.
type QdrantConfig struct {
	URL    string // e.g. "http://localhost:6333"; the gRPC port is derived
	APIKey string
	Dims   int
}

// QdrantIndex implements Index backed by qdrant. It manages both signal
// collections and derives point IDs deterministically from canonical signal
// IDs, so re-indexing the same signal overwrites rather than duplicates.
type QdrantIndex struct {
	client *qdrant.Client
	dims   int
	logger *slog.Logger

	healthGroup singleflight.Group
	healthErr   atomic.Value // stores *error (pointer-to-error, never nil pointer; inner error may be nil)
	healthAt    atomic.Int64 // unix nanos of last check
}

// pointNamespace seeds SHA1-derived point UUIDs. Qdrant only accepts UUID or
// integer point IDs, so canonical signal IDs live in the payload instead.
var pointNamespace = uuid.MustParse("9f2c41d6-7a6e-4b0a-8f3d-2b1e5c9a0d47")

const healthCacheTTL = 5 * time.Second

// parseQdrantURL extracts host, port, and TLS flag from a qdrant URL.
// Accepts forms like "https://host:6333", "http://host:6333", or "host:6334".
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("search: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("search: invalid port in qdrant URL: %q", portStr)
		}
		// If the user specified the REST port (6333), use the gRPC port (6334).
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}
	return host, port, useTLS, nil
}

// NewQdrantIndex connects to qdrant and ensures both signal collections and
// their payload indexes exist.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig, logger *slog.Logger) (*QdrantIndex, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("search: connect qdrant: %w", err)
	}

	idx := &QdrantIndex{
		client: client,
		dims:   cfg.Dims,
		logger: logger,
	}
	for _, collection := range []string{rag.CollectionSignals, rag.CollectionOutcomes} {
		if err := idx.ensureCollection(ctx, collection); err != nil {
			client.Close()
			return nil, err
		}
	}
	logger.Info("qdrant index ready", "host", host, "port", port, "dims", cfg.Dims)
	return idx, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, name string) error {
	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("search: check collection %s: %w", name, err)
	}
	if !exists {
		err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(q.dims),
				Distance: qdrant.Distance_Cosine,
			}),
			HnswConfig: &qdrant.HnswConfigDiff{
				M:           qdrant.PtrOf(uint64(16)),
				EfConstruct: qdrant.PtrOf(uint64(128)),
			},
		})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("search: create collection %s: %w", name, err)
		}
	}

	// Field index creation is idempotent on the server side.
	keywordFields := []string{"signal_id", "company_id", "signal_type", "categories", "outcome"}
	for _, field := range keywordFields {
		_, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("search: index field %s.%s: %w", name, field, err)
		}
	}
	for _, field := range []string{"confidence", "detected_unix"} {
		_, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeFloat.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("search: index field %s.%s: %w", name, field, err)
		}
	}
	return nil
}

// pointID derives the qdrant point UUID for a canonical signal ID.
func pointID(signalID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(signalID)).String()
}

// signalPayload flattens the fields we filter and hydrate on.
func signalPayload(sig model.Signal) map[string]any {
	categories := make([]any, 0, len(sig.Categories))
	for _, c := range sig.Categories {
		categories = append(categories, string(c))
	}
	payload := map[string]any{
		"signal_id":     sig.ID,
		"company_id":    sig.CompanyID,
		"company_name":  sig.CompanyName,
		"signal_type":   string(sig.Type),
		"priority":      string(sig.Priority),
		"title":         sig.Title,
		"categories":    categories,
		"confidence":    sig.Confidence,
		"detected_unix": float64(sig.DetectedAt.Unix()),
	}
	if sig.Outcome != nil {
		payload["outcome"] = string(sig.Outcome.Result)
	}
	return payload
}

// Upsert writes points into a collection, keyed by their derived UUIDs.
func (q *QdrantIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		if len(p.Embedding) != q.dims {
			return fmt.Errorf("search: signal %s embedding has %d dims, index expects %d",
				p.Signal.ID, len(p.Embedding), q.dims)
		}
		qpoints = append(qpoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(p.Signal.ID)),
			Vectors: qdrant.NewVectorsDense(p.Embedding),
			Payload: qdrant.NewValueMap(signalPayload(p.Signal)),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qpoints,
	})
	if err != nil {
		return fmt.Errorf("search: upsert %d points into %s: %w", len(points), collection, err)
	}
	return nil
}

// FetchVector retrieves the stored embedding for a canonical signal ID.
// Returns nil without error when the point is absent.
func (q *QdrantIndex) FetchVector(ctx context.Context, collection, signalID string) ([]float32, error) {
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(pointID(signalID))},
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search: fetch vector for %s from %s: %w", signalID, collection, err)
	}
	if len(points) == 0 {
		return nil, nil
	}
	vec := points[0].GetVectors().GetVector()
	if vec == nil {
		return nil, nil
	}
	return vec.GetData(), nil
}

// Query runs ANN search over one collection and maps hits to retrieval
// contexts from their payloads.
func (q *QdrantIndex) Query(ctx context.Context, collection string, embedding []float32, filter rag.Filter, limit int) ([]rag.Context, error) {
	if limit <= 0 {
		limit = rag.DefaultK
	}

	var must []*qdrant.Condition
	if filter.SignalType != "" {
		must = append(must, qdrant.NewMatch("signal_type", string(filter.SignalType)))
	}
	if filter.Category != "" {
		must = append(must, qdrant.NewMatch("categories", string(filter.Category)))
	}
	var qf *qdrant.Filter
	if len(must) > 0 {
		qf = &qdrant.Filter{Must: must}
	}

	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(embedding),
		Filter:         qf,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search: query %s: %w", collection, err)
	}

	out := make([]rag.Context, 0, len(hits))
	for _, hit := range hits {
		out = append(out, contextFromPayload(hit.GetPayload(), float64(hit.GetScore())))
	}
	return out, nil
}

func contextFromPayload(payload map[string]*qdrant.Value, score float64) rag.Context {
	rc := rag.Context{
		SignalID:    payload["signal_id"].GetStringValue(),
		CompanyName: payload["company_name"].GetStringValue(),
		SignalType:  model.SignalType(payload["signal_type"].GetStringValue()),
		Title:       payload["title"].GetStringValue(),
		Similarity:  score,
	}
	if v, ok := payload["outcome"]; ok {
		if s := v.GetStringValue(); s != "" {
			result := model.OutcomeResult(s)
			rc.Outcome = &result
		}
	}
	return rc
}

// DeleteCollections drops and recreates both collections. Development only;
// backs the /clear endpoint alongside the graph truncate.
func (q *QdrantIndex) DeleteCollections(ctx context.Context) error {
	for _, collection := range []string{rag.CollectionSignals, rag.CollectionOutcomes} {
		if err := q.client.DeleteCollection(ctx, collection); err != nil {
			return fmt.Errorf("search: delete collection %s: %w", collection, err)
		}
		if err := q.ensureCollection(ctx, collection); err != nil {
			return err
		}
	}
	q.logger.Warn("vector collections reset")
	return nil
}

// Healthy reports whether qdrant is reachable. Results are cached briefly
// and concurrent probes are collapsed, so hot paths can call this freely.
func (q *QdrantIndex) Healthy(ctx context.Context) error {
	if time.Now().UnixNano()-q.healthAt.Load() < int64(healthCacheTTL) {
		if v := q.healthErr.Load(); v != nil {
			if errp, ok := v.(*error); ok && *errp != nil {
				return *errp
			}
		}
		return nil
	}

	_, err, _ := q.healthGroup.Do("health", func() (any, error) {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		_, err := q.client.HealthCheck(probeCtx)
		if err != nil {
			err = fmt.Errorf("search: qdrant health: %w", err)
		}
		q.healthErr.Store(&err)
		q.healthAt.Store(time.Now().UnixNano())
		return nil, err
	})
	return err
}

// Close releases the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
