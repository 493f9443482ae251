package models

import "fmt"

// Document tiers. Core documents hold general reference material; protocol
// documents are narrow, condition-specific guides tagged with a category.
const (
	TierCore     = "core"
	TierProtocol = "protocol"
)

// Metadata carries the tier and, for protocol documents, the category label
// copied from the source descriptor onto every chunk.
type Metadata struct {
	Tier     string `json:"tier"`
	Category string `json:"category,omitempty"`
}

// Record is the atomic unit of the knowledge base: one embedded chunk of a
// source document. Records are created during ingestion and never mutated.
type Record struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"sourceId"`
	SourceTitle string    `json:"sourceTitle"`
	Text        string    `json:"text"`
	Embedding   []float32 `json:"embedding"`
	Metadata    Metadata  `json:"metadata"`
}

// ChunkID derives the stable record id from the owning document id and the
// chunk's position in that document, so re-ingesting an unchanged corpus
// reproduces identical ids.
func ChunkID(sourceID string, index int) string {
	return fmt.Sprintf("%s_%d", sourceID, index)
}
