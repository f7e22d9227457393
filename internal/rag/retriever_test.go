package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedEmbedder struct {
	vec []float32
	err error
}

func (e fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vec
	}
	return out, nil
}

// captureStore records the query passed to Search.
type captureStore struct {
	query []float32
	topK  int
	units []Unit
}

func (s *captureStore) Upsert(context.Context, []Unit, [][]float32) error { return nil }
func (s *captureStore) Count(context.Context) (int, error) { return len(s.units), nil }
func (s *captureStore) Close() error { return nil }
func (s *captureStore) Search(_ context.Context, q []float32, topK int) ([]Unit, error) {
	s.query, s.topK = q, topK
	return s.units, nil
}

func TestRetrieve_EmbedsAndSearches(t *testing.T) {
	t.Parallel()

	store := &captureStore{units: []Unit{{ID: "row-0"}}}
	r, err := NewRetriever(fixedEmbedder{vec: []float32{1, 0}}, store, 3)
	require.NoError(t, err)

	units, err := r.Retrieve(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, store.query)
	assert.Equal(t, 3, store.topK)
	assert.Len(t, units, 1)
}

func TestRetrieve_EmbedError(t *testing.T) {
	t.Parallel()

	boom := errors.New("embedder down")
	r, err := NewRetriever(fixedEmbedder{err: boom}, &captureStore{}, 3)
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "q", 1)
	assert.ErrorIs(t, err, boom)
}

func TestRetrieve_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewRetriever(nil, &captureStore{}, 3)
	require.Error(t, err)
	_, err = NewRetriever(fixedEmbedder{}, nil, 3)
	require.Error(t, err)

	store := &captureStore{}
	r, err := NewRetriever(fixedEmbedder{vec: []float32{1}}, store, 0)
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "   ", 2)
	require.Error(t, err)
	assert.Nil(t, store.query, "blank query must not reach the store")

	_, err = r.Retrieve(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, store.topK, "zero default falls back to 3")

	_, err = r.Retrieve(context.Background(), "q", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, store.topK)
}

func TestRetrieve_EmptyVector(t *testing.T) {
	t.Parallel()

	r, err := NewRetriever(fixedEmbedder{vec: nil}, &captureStore{}, 3)
	require.NoError(t, err)
	_, err = r.Retrieve(context.Background(), "q", 1)
	require.Error(t, err)
}

func TestPointID_Deterministic(t *testing.T) {
	t.Parallel()

	a := PointID("legal_docs", "row-0")
	assert.Equal(t, a, PointID("legal_docs", "row-0"))
	assert.NotEqual(t, a, PointID("legal_docs", "row-1"))
	assert.NotEqual(t, a, PointID("other", "row-0"))
	assert.Len(t, a, 36)
}
