// Package chunk splits extracted document text into overlapping, bounded segments.
package chunk

// Chunk is one segment of a source text. Positions are character (rune) offsets
// into the source; EndPosition is exclusive.
type Chunk struct {
	Index         int
	Total         int
	Text          string
	StartPosition int
	EndPosition   int
	Metadata      map[string]any
}
