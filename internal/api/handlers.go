package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/retrieval"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/store"
)

const defaultLimit = 3

// emptyBaseMessage tells callers the difference between "nothing matched" and
// "there is nothing to match against".
const emptyBaseMessage = "knowledge base is empty: run the ingestion pipeline to build it"

type handlers struct {
	retriever *retrieval.Retriever
	base      *store.Base
	timeout   time.Duration
}

type searchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category,omitempty"`
	Limit    *int   `json:"limit,omitempty"`
}

type searchResult struct {
	Text     string  `json:"text"`
	Source   string  `json:"source"`
	Tier     string  `json:"tier"`
	Score    float64 `json:"score"`
	Category string  `json:"category,omitempty"`
}

type searchResponse struct {
	Results      []searchResult `json:"results"`
	TiersUsed    []string       `json:"tiersUsed"`
	TotalResults int            `json:"totalResults"`
	Message      string         `json:"message,omitempty"`
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	limit := defaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive number")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, err := h.retriever.Retrieve(ctx, req.Query, req.Category, limit)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyBase) {
			// Success status on purpose: an empty base is a state, not a
			// failure. Callers must check for zero results.
			writeJSON(w, http.StatusOK, searchResponse{
				Results:   []searchResult{},
				TiersUsed: []string{},
				Message:   emptyBaseMessage,
			})
			return
		}
		log.Error().Err(err).Str("query", req.Query).Msg("Search failed")
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, "search failed: "+err.Error())
		return
	}

	results := make([]searchResult, 0, len(resp.Results))
	for _, res := range resp.Results {
		results = append(results, searchResult{
			Text:     res.Record.Text,
			Source:   res.Record.SourceTitle,
			Tier:     res.Tier,
			Score:    res.Score,
			Category: res.Record.Metadata.Category,
		})
	}
	tiersUsed := resp.TiersUsed
	if tiersUsed == nil {
		tiersUsed = []string{}
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Results:      results,
		TiersUsed:    tiersUsed,
		TotalResults: len(results),
	})
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	count, err := h.base.Load()
	if err != nil {
		log.Error().Err(err).Msg("Refresh failed")
		writeError(w, http.StatusInternalServerError, "refresh failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "knowledge base reloaded",
		"count":   count,
	})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"records": h.base.Len(),
	})
}
