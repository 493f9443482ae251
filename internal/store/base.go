package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/models"
)

// snapshot is one immutable view of the knowledge base. Readers always see a
// whole snapshot; Load swaps the pointer instead of mutating in place, so a
// refresh never tears an in-flight search.
type snapshot struct {
	records   []models.Record
	dimension int
}

// Base holds the in-memory knowledge base loaded from the persisted file.
type Base struct {
	path    string
	current atomic.Pointer[snapshot]
}

func NewBase(path string) *Base {
	b := &Base{path: path}
	b.current.Store(&snapshot{})
	return b
}

// Load reads the persisted store file and atomically replaces the working
// set. A missing, corrupt, or inconsistent file degrades to an empty base
// with a log entry; the server keeps running and reports "empty base" to
// callers. The record count after the swap is returned.
func (b *Base) Load() (int, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", b.path).
				Msg("Knowledge base file missing, starting with empty base")
			b.current.Store(&snapshot{})
			return 0, nil
		}
		return 0, err
	}

	var records []models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		log.Error().Err(err).Str("path", b.path).
			Msg("Knowledge base file unreadable, starting with empty base")
		b.current.Store(&snapshot{})
		return 0, nil
	}

	dim, err := checkDimensions(records)
	if err != nil {
		log.Error().Err(err).Str("path", b.path).
			Msg("Knowledge base inconsistent, starting with empty base")
		b.current.Store(&snapshot{})
		return 0, nil
	}

	b.current.Store(&snapshot{records: records, dimension: dim})
	log.Info().Int("records", len(records)).Int("dimension", dim).
		Msg("Knowledge base loaded")
	return len(records), nil
}

// checkDimensions verifies every record carries an embedding of the same
// nonzero dimensionality and returns it.
func checkDimensions(records []models.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	dim := len(records[0].Embedding)
	if dim == 0 {
		return 0, fmt.Errorf("record %s has no embedding", records[0].ID)
	}
	for _, rec := range records[1:] {
		if len(rec.Embedding) != dim {
			return 0, fmt.Errorf("record %s has dimension %d, expected %d",
				rec.ID, len(rec.Embedding), dim)
		}
	}
	return dim, nil
}

// Records returns the current snapshot's record set. The slice must be
// treated as read-only.
func (b *Base) Records() []models.Record {
	return b.current.Load().records
}

// Len reports the number of records in the current snapshot.
func (b *Base) Len() int {
	return len(b.current.Load().records)
}

// Dimension reports the embedding dimensionality of the current snapshot,
// zero when the base is empty.
func (b *Base) Dimension() int {
	return b.current.Load().dimension
}
