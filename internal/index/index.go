// Package index builds the semantic candidate index that maps free-text
// violation labels to catalog entries. The corpus is small (tens of entries),
// so retrieval is an exact cosine-similarity scan over precomputed vectors.
package index

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pranavgnn/thirdeye/internal/catalog"
	"github.com/pranavgnn/thirdeye/pkg/jina"
)

// UnavailableError indicates the catalog index could not be built, which makes
// matching impossible for the request. The failure is fatal, not retried.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return "index: catalog unavailable: " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// buildTimeout bounds the one-time catalog embedding call.
const buildTimeout = 60 * time.Second

// Index embeds every catalog entry's document text once, lazily on first
// query, then serves nearest-neighbor lookups. After construction the vectors
// are immutable and reads are lock-free; construction itself is guarded so it
// runs at most once per process. A failed build is sticky: every subsequent
// query reports the catalog as unavailable.
type Index struct {
	embedder jina.Client
	entries  []catalog.Entry

	buildOnce sync.Once
	vectors   [][]float64
	buildErr  error
}

// New creates an index over the given catalog. No embedding happens until the
// first Query.
func New(embedder jina.Client, entries []catalog.Entry) *Index {
	return &Index{
		embedder: embedder,
		entries:  entries,
	}
}

// Query returns the k catalog entries most similar to the label, ordered by
// decreasing similarity. The result holds at most k entries and may be shorter
// when the catalog is smaller than k.
func (ix *Index) Query(ctx context.Context, label string, k int) ([]catalog.Entry, error) {
	if k < 1 {
		return nil, eris.Errorf("index: k must be >= 1, got %d", k)
	}

	// The build outcome is shared by every request for the process lifetime,
	// so it must not inherit one caller's cancellation. It gets its own
	// deadline instead.
	ix.buildOnce.Do(func() {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), buildTimeout)
		defer cancel()
		ix.build(buildCtx)
	})
	if ix.buildErr != nil {
		return nil, &UnavailableError{Err: ix.buildErr}
	}

	queryVecs, err := ix.embedder.Embed(ctx, []string{label})
	if err != nil {
		return nil, eris.Wrapf(err, "index: embed query %q", label)
	}
	queryVec := queryVecs[0]

	type scored struct {
		entry catalog.Entry
		score float64
	}
	ranked := make([]scored, len(ix.entries))
	for i, entry := range ix.entries {
		ranked[i] = scored{entry: entry, score: cosine(queryVec, ix.vectors[i])}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]catalog.Entry, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].entry
	}
	return out, nil
}

func (ix *Index) build(ctx context.Context) {
	texts := make([]string, len(ix.entries))
	for i, entry := range ix.entries {
		texts[i] = entry.DocumentText()
	}

	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		ix.buildErr = err
		zap.L().Error("index: build failed", zap.Error(err))
		return
	}
	if len(vectors) != len(ix.entries) {
		ix.buildErr = eris.Errorf("index: got %d vectors for %d entries", len(vectors), len(ix.entries))
		return
	}

	ix.vectors = vectors
	zap.L().Info("index: built catalog index",
		zap.Int("entries", len(ix.entries)),
		zap.Int("dimensions", len(vectors[0])),
	)
}

// cosine computes cosine similarity. Mismatched lengths or zero vectors score 0.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
