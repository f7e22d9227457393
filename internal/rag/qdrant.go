package rag

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Payload keys written for every point.
const (
	payloadUnitID = "unit_id"
	payloadText   = "text"
	payloadSource = "source"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant: vector size must be set for collection %q", cfg.Collection)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// PointID maps a unit ID onto the UUID Qdrant requires. The mapping is
// name-based (SHA-1) so re-ingesting the same unit overwrites its point.
func PointID(collection, unitID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(collection+"/"+unitID)).String()
}

// Upsert stores or replaces units together with their embeddings.
func (s *QdrantStore) Upsert(ctx context.Context, units []Unit, embeddings [][]float32) error {
	if len(units) != len(embeddings) {
		return fmt.Errorf("qdrant: %d units but %d embeddings", len(units), len(embeddings))
	}
	if len(units) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(units))
	for i, u := range units {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(s.cfg.Collection, u.ID)),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: unitPayload(u),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity search and returns the top-k results.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Unit, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	units := make([]Unit, 0, len(results))
	for _, r := range results {
		u := payloadUnit(r.GetId().GetUuid(), r.GetPayload())
		u.Score = r.GetScore()
		units = append(units, u)
	}

	return units, nil
}

// unitPayload flattens a unit into a point payload. Metadata keys are kept
// as-is, then the unit id, text and source are written over them. An empty
// Source leaves a metadata "source" in place.
func unitPayload(u Unit) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(u.Metadata)+3)
	for k, v := range u.Metadata {
		payload[k] = qdrant.NewValueString(v)
	}
	payload[payloadUnitID] = qdrant.NewValueString(u.ID)
	payload[payloadText] = qdrant.NewValueString(u.Text)
	if u.Source != "" {
		payload[payloadSource] = qdrant.NewValueString(u.Source)
	}
	return payload
}

// payloadUnit rebuilds a unit from a point payload. pointUUID is used as the
// id only when the payload has no unit id, e.g. points written by another
// tool.
func payloadUnit(pointUUID string, payload map[string]*qdrant.Value) Unit {
	u := Unit{ID: pointUUID, Metadata: make(map[string]string, len(payload))}
	for k, v := range payload {
		switch k {
		case payloadUnitID:
			if id := v.GetStringValue(); id != "" {
				u.ID = id
			}
		case payloadText:
			u.Text = v.GetStringValue()
		default:
			u.Metadata[k] = payloadString(v)
		}
	}
	u.Source = u.Metadata[payloadSource]
	return u
}

// payloadString renders a scalar payload value as text. Lists and structs
// have no string form here and become "".
func payloadString(v *qdrant.Value) string {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return strconv.FormatInt(k.IntegerValue, 10)
	case *qdrant.Value_DoubleValue:
		return strconv.FormatFloat(k.DoubleValue, 'f', -1, 64)
	case *qdrant.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue)
	default:
		return ""
	}
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return int(n), nil
}

// Ping calls the Qdrant HealthCheck RPC.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
