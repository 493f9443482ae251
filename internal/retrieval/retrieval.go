package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/embedding"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/models"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/search"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/store"
)

// ProtocolSlotCap bounds how many results the protocol tier may contribute,
// so condition-specific matches never crowd out general guidance entirely.
const ProtocolSlotCap = 2

// ErrEmptyBase signals that the knowledge base holds no records. Callers
// surface it as guidance ("run ingestion"), not as a failure.
var ErrEmptyBase = errors.New("knowledge base is empty")

// Result is one retrieved chunk annotated with its score and the tier that
// produced it.
type Result struct {
	Record models.Record
	Score  float64
	Tier   string
}

// Response carries the ranked results plus which tiers contributed and how
// many results each supplied.
type Response struct {
	Results    []Result
	TiersUsed  []string
	TierCounts map[string]int
}

// Retriever applies the two-tier retrieval policy over the in-memory base:
// protocol-specific passages first, capped, then core-library passages to
// fill the remaining slots.
type Retriever struct {
	base     *store.Base
	embedder embedding.Embedder
}

func NewRetriever(base *store.Base, embedder embedding.Embedder) *Retriever {
	return &Retriever{base: base, embedder: embedder}
}

// Retrieve embeds the query and returns up to limit grounding passages.
// When category is set, at most min(ProtocolSlotCap, limit) results come from
// protocol documents matching that category; the rest come from the core
// tier. Protocol results always precede core results.
func (r *Retriever) Retrieve(ctx context.Context, query, category string, limit int) (*Response, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	records := r.base.Records()
	if len(records) == 0 {
		return nil, ErrEmptyBase
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	resp := &Response{TierCounts: make(map[string]int)}

	if category != "" {
		protocol := filterRecords(records, func(rec models.Record) bool {
			return rec.Metadata.Tier == models.TierProtocol && rec.Metadata.Category == category
		})
		ranked, err := search.Rank(vector, protocol)
		if err != nil {
			return nil, err
		}
		for _, s := range ranked[:min(ProtocolSlotCap, limit, len(ranked))] {
			resp.Results = append(resp.Results, Result{
				Record: s.Record,
				Score:  s.Score,
				Tier:   models.TierProtocol,
			})
		}
	}

	if remaining := limit - len(resp.Results); remaining > 0 {
		core := filterRecords(records, func(rec models.Record) bool {
			return rec.Metadata.Tier == models.TierCore
		})
		ranked, err := search.Rank(vector, core)
		if err != nil {
			return nil, err
		}
		for _, s := range ranked[:min(remaining, len(ranked))] {
			resp.Results = append(resp.Results, Result{
				Record: s.Record,
				Score:  s.Score,
				Tier:   models.TierCore,
			})
		}
	}

	for _, res := range resp.Results {
		if resp.TierCounts[res.Tier] == 0 {
			resp.TiersUsed = append(resp.TiersUsed, res.Tier)
		}
		resp.TierCounts[res.Tier]++
	}

	log.Debug().Str("category", category).Int("limit", limit).
		Interface("tier_counts", resp.TierCounts).Msg("Retrieval complete")
	return resp, nil
}

func filterRecords(records []models.Record, keep func(models.Record) bool) []models.Record {
	var out []models.Record
	for _, rec := range records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}
