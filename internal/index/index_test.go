package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranavgnn/thirdeye/internal/catalog"
)

// fakeEmbedder maps texts to fixed vectors and counts calls.
type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, ok := f.vectors[text]
		if !ok {
			v = []float64{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

func testEntries() []catalog.Entry {
	return []catalog.Entry{
		{ID: 1, Name: "Helmet Missing", Section: "194D(1)"},
		{ID: 2, Name: "Triple Riding", Section: "128(1)/177"},
		{ID: 3, Name: "Red Light Violation", Section: "184"},
	}
}

// embedderFor assigns near-orthogonal vectors so each label has an unambiguous
// nearest entry.
func embedderFor(entries []catalog.Entry) *fakeEmbedder {
	vectors := map[string][]float64{
		entries[0].DocumentText(): {1, 0, 0},
		entries[1].DocumentText(): {0, 1, 0},
		entries[2].DocumentText(): {0, 0, 1},
		"no helmet":               {0.9, 0.1, 0},
		"three riders":            {0.1, 0.9, 0},
	}
	return &fakeEmbedder{vectors: vectors}
}

func TestIndex_QueryRanksBySimilarity(t *testing.T) {
	entries := testEntries()
	emb := embedderFor(entries)
	ix := New(emb, entries)

	got, err := ix.Query(context.Background(), "no helmet", 2)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Helmet Missing", got[0].Name)
	assert.Equal(t, "Triple Riding", got[1].Name)
}

func TestIndex_BuildsOnce(t *testing.T) {
	entries := testEntries()
	emb := embedderFor(entries)
	ix := New(emb, entries)

	_, err := ix.Query(context.Background(), "no helmet", 1)
	require.NoError(t, err)
	_, err = ix.Query(context.Background(), "three riders", 1)
	require.NoError(t, err)

	// one build call plus one per query
	assert.Equal(t, 3, emb.calls)
}

func TestIndex_TruncatesToCatalogSize(t *testing.T) {
	entries := testEntries()
	ix := New(embedderFor(entries), entries)

	got, err := ix.Query(context.Background(), "no helmet", 10)

	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestIndex_RejectsNonPositiveK(t *testing.T) {
	ix := New(embedderFor(testEntries()), testEntries())

	_, err := ix.Query(context.Background(), "no helmet", 0)
	assert.Error(t, err)
}

func TestIndex_BuildFailureIsSticky(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("embeddings down")}
	ix := New(emb, testEntries())

	_, err := ix.Query(context.Background(), "no helmet", 1)
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)

	// The failed build is not retried; the embedder recovering does not help.
	emb.err = nil
	_, err = ix.Query(context.Background(), "no helmet", 1)
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 1, emb.calls)
}

func TestIndex_BuildSurvivesCallerCancellation(t *testing.T) {
	entries := testEntries()
	ix := New(embedderFor(entries), entries)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	// The first caller bailed out, but the build it triggered must still
	// complete. Only the query embed for this caller fails.
	_, err := ix.Query(cancelled, "no helmet", 1)
	require.Error(t, err)
	var unavailable *UnavailableError
	assert.False(t, errors.As(err, &unavailable))

	got, err := ix.Query(context.Background(), "no helmet", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Helmet Missing", got[0].Name)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosine([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosine([]float64{1, 0}, []float64{1}))
	assert.Equal(t, 0.0, cosine([]float64{0, 0}, []float64{1, 1}))
	assert.Equal(t, 0.0, cosine(nil, nil))
}
