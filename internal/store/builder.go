package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/chunker"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/config"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/embedding"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/helper"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/models"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/parser"
)

// ExtractFunc converts a source document into raw text. It defaults to
// parser.Extract; ingestion tests substitute a stub.
type ExtractFunc func(path string) (string, error)

// Stats summarizes one ingestion run.
type Stats struct {
	Documents        int `json:"documents"`
	SkippedDocuments int `json:"skippedDocuments"`
	Chunks           int `json:"chunks"`
	SkippedChunks    int `json:"skippedChunks"`
}

// Builder runs the offline ingestion pipeline: extract, chunk, embed, and
// persist. The store file is rebuilt from scratch on every run and
// checkpointed after each document so a crash mid-corpus keeps prior work.
type Builder struct {
	path     string
	chunker  chunker.Chunker
	embedder embedding.Embedder
	extract  ExtractFunc

	records []models.Record
}

func NewBuilder(path string, ch chunker.Chunker, embedder embedding.Embedder) *Builder {
	return &Builder{
		path:     path,
		chunker:  ch,
		embedder: embedder,
		extract:  parser.Extract,
	}
}

// WithExtractor overrides the document extractor.
func (b *Builder) WithExtractor(fn ExtractFunc) *Builder {
	b.extract = fn
	return b
}

// Run processes every configured source in order. Individual documents and
// chunks fail soft: a missing file or an exhausted embedding retry is logged
// and skipped, never aborting the batch. An error is returned only for
// top-level problems such as an unwritable store file.
func (b *Builder) Run(ctx context.Context, sources []config.Source) (*Stats, error) {
	// Full rebuild semantics: never merge with a previous run.
	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	b.records = nil

	stats := &Stats{}
	for _, src := range sources {
		if err := b.ingestSource(ctx, src, stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (b *Builder) ingestSource(ctx context.Context, src config.Source, stats *Stats) error {
	if _, err := os.Stat(src.Path); err != nil {
		log.Warn().Str("source", src.ID).Str("path", src.Path).
			Msg("Source file missing, skipping document")
		stats.SkippedDocuments++
		return nil
	}

	raw, err := b.extract(src.Path)
	if err != nil {
		log.Error().Err(err).Str("source", src.ID).
			Msg("Extraction failed, skipping document")
		stats.SkippedDocuments++
		return nil
	}

	text := parser.Normalize(raw)
	added := 0
	for i, chunk := range b.chunker.Chunks(text) {
		vector, err := b.embedder.Embed(ctx, chunk)
		if err != nil {
			log.Warn().Err(err).Str("source", src.ID).Int("chunk", i).
				Msg("Embedding failed, skipping chunk")
			stats.SkippedChunks++
			continue
		}
		b.records = append(b.records, models.Record{
			ID:          models.ChunkID(src.ID, i),
			SourceID:    src.ID,
			SourceTitle: src.Title,
			Text:        chunk,
			Embedding:   vector,
			Metadata: models.Metadata{
				Tier:     src.Tier,
				Category: src.Category,
			},
		})
		added++
	}

	stats.Documents++
	stats.Chunks += added
	log.Info().Str("source", src.ID).Int("chunks", added).Msg("Ingested document")

	// Checkpoint the whole accumulator after each document.
	return b.persist()
}

// persist writes the accumulated records to the store file via a temp file
// and atomic rename, so the checkpoint is never half-written.
func (b *Builder) persist() error {
	if err := helper.EnsureDir(filepath.Dir(b.path)); err != nil {
		return err
	}

	records := b.records
	if records == nil {
		records = []models.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, b.path)
}

// Records exposes the in-memory accumulator, used by tests to compare the
// persisted file against what was built.
func (b *Builder) Records() []models.Record {
	return b.records
}
