package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/chunker"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/config"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/models"
)

// stubEmbedder derives a deterministic vector from the text so re-ingestion
// is reproducible without a network call.
type stubEmbedder struct {
	dim      int
	failWhen func(text string) bool
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.failWhen != nil && s.failWhen(text) {
		return nil, errors.New("embedding unavailable")
	}
	vec := make([]float32, s.dim)
	for i, b := range []byte(text) {
		vec[i%s.dim] += float32(b)
	}
	return vec, nil
}

func writeSourceFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testSources(t *testing.T, dir string) []config.Source {
	corePath := writeSourceFile(t, dir, "handbook.txt",
		strings.Repeat("general clinical guidance text. ", 10))
	protocolPath := writeSourceFile(t, dir, "panic.txt",
		strings.Repeat("panic disorder protocol steps. ", 10))
	return []config.Source{
		{ID: "handbook", Path: corePath, Title: "Clinical Handbook", Tier: models.TierCore},
		{ID: "panic", Path: protocolPath, Title: "Panic Protocol", Tier: models.TierProtocol, Category: "panic"},
	}
}

func TestBuilderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "kb", "knowledge.json")
	sources := testSources(t, dir)

	builder := NewBuilder(storePath, chunker.New(50, 10), &stubEmbedder{dim: 4})
	stats, err := builder.Run(context.Background(), sources)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Zero(t, stats.SkippedDocuments)
	assert.Zero(t, stats.SkippedChunks)
	require.NotEmpty(t, builder.Records())

	base := NewBase(storePath)
	count, err := base.Load()
	require.NoError(t, err)
	assert.Equal(t, len(builder.Records()), count)
	assert.Equal(t, builder.Records(), base.Records(),
		"loaded records must match the in-memory accumulator exactly")

	first := base.Records()[0]
	assert.Equal(t, models.ChunkID(first.SourceID, 0), first.ID)
	assert.Equal(t, "Clinical Handbook", first.SourceTitle)
	assert.Equal(t, models.TierCore, first.Metadata.Tier)
	assert.Empty(t, first.Metadata.Category)

	last := base.Records()[count-1]
	assert.Equal(t, models.TierProtocol, last.Metadata.Tier)
	assert.Equal(t, "panic", last.Metadata.Category)
}

func TestBuilderIdempotent(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "knowledge.json")
	sources := testSources(t, dir)

	run := func() []byte {
		builder := NewBuilder(storePath, chunker.New(50, 10), &stubEmbedder{dim: 4})
		_, err := builder.Run(context.Background(), sources)
		require.NoError(t, err)
		data, err := os.ReadFile(storePath)
		require.NoError(t, err)
		return data
	}

	first := run()
	second := run()
	assert.Equal(t, first, second, "re-ingesting an unchanged corpus must be byte-identical")
}

func TestBuilderSkipsMissingSource(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "knowledge.json")
	sources := testSources(t, dir)
	sources = append([]config.Source{{
		ID: "ghost", Path: filepath.Join(dir, "missing.txt"), Title: "Ghost", Tier: models.TierCore,
	}}, sources...)

	builder := NewBuilder(storePath, chunker.New(50, 10), &stubEmbedder{dim: 4})
	stats, err := builder.Run(context.Background(), sources)
	require.NoError(t, err, "a missing file must not abort the batch")
	assert.Equal(t, 1, stats.SkippedDocuments)
	assert.Equal(t, 2, stats.Documents)
}

func TestBuilderSkipsUnextractableSource(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "knowledge.json")
	badPath := writeSourceFile(t, dir, "image.xyz", "binary")

	builder := NewBuilder(storePath, chunker.New(50, 10), &stubEmbedder{dim: 4})
	stats, err := builder.Run(context.Background(), []config.Source{
		{ID: "bad", Path: badPath, Title: "Bad", Tier: models.TierCore},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SkippedDocuments)
	assert.Zero(t, stats.Documents)
}

func TestBuilderSkipsFailedChunks(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "knowledge.json")
	sources := testSources(t, dir)

	emb := &stubEmbedder{dim: 4, failWhen: func(text string) bool {
		return strings.Contains(text, "panic")
	}}
	builder := NewBuilder(storePath, chunker.New(50, 10), emb)
	stats, err := builder.Run(context.Background(), sources)
	require.NoError(t, err, "exhausted retries skip the chunk, never the run")
	assert.Positive(t, stats.SkippedChunks)
	assert.Equal(t, 2, stats.Documents)

	for _, rec := range builder.Records() {
		assert.NotContains(t, rec.Text, "panic", "failed chunks must not be stored")
		assert.NotEmpty(t, rec.Embedding, "records are never stored without a vector")
	}
}

func TestBuilderEmptyDocumentYieldsNoRecords(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "knowledge.json")
	blank := writeSourceFile(t, dir, "blank.txt", "   \n\t  ")

	builder := NewBuilder(storePath, chunker.New(50, 10), &stubEmbedder{dim: 4})
	stats, err := builder.Run(context.Background(), []config.Source{
		{ID: "blank", Path: blank, Title: "Blank", Tier: models.TierCore},
	})
	require.NoError(t, err, "an empty document is not an error")
	assert.Equal(t, 1, stats.Documents)
	assert.Zero(t, stats.Chunks)

	base := NewBase(storePath)
	count, err := base.Load()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBuilderDiscardsPreviousRun(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "knowledge.json")
	require.NoError(t, os.WriteFile(storePath, []byte(`[{"id":"stale"}]`), 0o644))

	builder := NewBuilder(storePath, chunker.New(50, 10), &stubEmbedder{dim: 4})
	_, err := builder.Run(context.Background(), nil)
	require.NoError(t, err)

	_, statErr := os.Stat(storePath)
	assert.True(t, os.IsNotExist(statErr),
		"a run with no sources leaves no store file behind")
}

func TestBuilderCheckpointsAfterEachDocument(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "knowledge.json")
	sources := testSources(t, dir)

	var checkpoints []int
	emb := &stubEmbedder{dim: 4}
	builder := NewBuilder(storePath, chunker.New(50, 10), emb)

	// Swap the extractor to observe the store file between documents.
	real := builder.extract
	builder.WithExtractor(func(path string) (string, error) {
		if _, err := os.Stat(storePath); err == nil {
			base := NewBase(storePath)
			n, err := base.Load()
			require.NoError(t, err)
			checkpoints = append(checkpoints, n)
		}
		return real(path)
	})

	_, err := builder.Run(context.Background(), sources)
	require.NoError(t, err)
	require.Len(t, checkpoints, 1, "the second document must see the first one persisted")
	assert.Positive(t, checkpoints[0])
}

func TestLoadMissingFile(t *testing.T) {
	base := NewBase(filepath.Join(t.TempDir(), "nope.json"))
	count, err := base.Load()
	require.NoError(t, err, "a missing store file degrades to an empty base")
	assert.Zero(t, count)
	assert.Zero(t, base.Len())
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	base := NewBase(path)
	count, err := base.Load()
	require.NoError(t, err, "a corrupt store file degrades to an empty base")
	assert.Zero(t, count)
}

func TestLoadInconsistentDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	data := `[
		{"id":"a_0","sourceId":"a","sourceTitle":"A","text":"x","embedding":[1,2],"metadata":{"tier":"core"}},
		{"id":"b_0","sourceId":"b","sourceTitle":"B","text":"y","embedding":[1,2,3],"metadata":{"tier":"core"}}
	]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	base := NewBase(path)
	count, err := base.Load()
	require.NoError(t, err)
	assert.Zero(t, count, "mixed dimensionality must not be served")
}

func TestLoadSwapsSnapshotAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "knowledge.json")

	writeGeneration := func(gen string) {
		records := make([]models.Record, 50)
		for i := range records {
			records[i] = models.Record{
				ID:        models.ChunkID(gen, i),
				SourceID:  gen,
				Text:      "t",
				Embedding: []float32{1, 0},
				Metadata:  models.Metadata{Tier: models.TierCore},
			}
		}
		data, err := json.Marshal(records)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}

	writeGeneration("old")
	base := NewBase(path)
	_, err := base.Load()
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				records := base.Records()
				if len(records) == 0 {
					continue
				}
				gen := records[0].SourceID
				for _, rec := range records {
					if rec.SourceID != gen {
						t.Error("observed a torn snapshot mixing generations")
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			writeGeneration("new")
		} else {
			writeGeneration("old")
		}
		_, err := base.Load()
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}
