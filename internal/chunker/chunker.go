package chunker

import (
	"iter"
	"strings"
)

// Chunker splits normalized text into fixed-size, contiguous, non-overlapping
// character windows. Boundaries are purely positional; no sentence awareness.
type Chunker struct {
	Size     int // window size in bytes
	MinChars int // retained chunks must have at least this many trimmed chars
}

func New(size, minChars int) Chunker {
	if size <= 0 {
		size = 1000
	}
	if minChars < 0 {
		minChars = 0
	}
	return Chunker{Size: size, MinChars: minChars}
}

// Windows yields every window of the text in order, keyed by its position in
// the document. Concatenating the yielded strings reconstructs the input
// exactly; only the final window may be shorter than Size. The sequence is
// restartable.
func (c Chunker) Windows(text string) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		for i, start := 0, 0; start < len(text); i, start = i+1, start+c.Size {
			end := min(start+c.Size, len(text))
			if !yield(i, text[start:end]) {
				return
			}
		}
	}
}

// Chunks yields the windows worth embedding: those whose trimmed length meets
// MinChars. Short windows carry too little signal to justify an embedding
// call. Indexes are window positions, so ids stay stable whether or not a
// neighboring window was dropped.
func (c Chunker) Chunks(text string) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		for i, window := range c.Windows(text) {
			if len(strings.TrimSpace(window)) < c.MinChars {
				continue
			}
			if !yield(i, window) {
				return
			}
		}
	}
}
