package chunk

import (
	"fmt"
	"unicode"

	"github.com/kailas-cloud/assessdex/internal/domain"
)

// Splitter defaults.
const (
	DefaultMaxChunkSize   = 1000
	DefaultOverlapSize    = 150
	DefaultBoundaryWindow = 200
)

// Splitter walks a text producing chunks of at most maxSize characters.
// Each chunk after the first begins overlap characters before the previous chunk's end.
// A Splitter holds no per-call state and is safe for concurrent use.
type Splitter struct {
	maxSize int
	overlap int
	window  int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithBoundaryWindow sets how far back from the size limit a boundary is searched for.
func WithBoundaryWindow(window int) Option {
	return func(s *Splitter) {
		if window > 0 {
			s.window = window
		}
	}
}

// NewSplitter validates the sizes. Zero values fall back to the defaults.
func NewSplitter(maxSize, overlap int, opts ...Option) (*Splitter, error) {
	if maxSize == 0 {
		maxSize = DefaultMaxChunkSize
	}
	if maxSize < 0 {
		return nil, domain.NewValidationError("maxChunkSize", fmt.Sprintf("must be positive, got %d", maxSize))
	}
	if overlap < 0 {
		return nil, domain.NewValidationError("overlapSize", fmt.Sprintf("must not be negative, got %d", overlap))
	}
	if overlap >= maxSize {
		return nil, domain.NewValidationError("overlapSize",
			fmt.Sprintf("must be less than maxChunkSize (%d >= %d)", overlap, maxSize))
	}

	s := &Splitter{
		maxSize: maxSize,
		overlap: overlap,
		window:  DefaultBoundaryWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.window >= maxSize {
		s.window = maxSize / 5
	}
	return s, nil
}

// Split cuts text into chunks. Empty text yields no chunks. Every chunk carries
// a copy of meta.
func (s *Splitter) Split(text string, meta map[string]any) []Chunk {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)
	chunks := make([]Chunk, 0, n/(s.maxSize-s.overlap)+1)

	start := 0
	for {
		end := start + s.maxSize
		last := end >= n
		if last {
			end = n
		} else {
			end = s.cutPoint(runes, start, end)
		}

		chunks = append(chunks, Chunk{
			Index:         len(chunks),
			Text:          string(runes[start:end]),
			StartPosition: start,
			EndPosition:   end,
			Metadata:      copyMeta(meta),
		})
		if last {
			break
		}

		next := end - s.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	for i := range chunks {
		chunks[i].Total = len(chunks)
	}
	return chunks
}

// cutPoint picks the exclusive end of a chunk that would otherwise end at limit.
// Preference: paragraph break, sentence end, line break, word gap, hard cut.
// limit is always < len(r) here.
func (s *Splitter) cutPoint(r []rune, start, limit int) int {
	lo := limit - s.window
	if lo <= start {
		lo = start + 1
	}

	for i := limit; i > lo; i-- {
		if r[i-1] == '\n' && i-2 >= start && r[i-2] == '\n' {
			return i
		}
	}
	for i := limit; i > lo; i-- {
		if isSentenceEnd(r[i-1]) && unicode.IsSpace(r[i]) {
			return i
		}
	}
	for i := limit; i > lo; i-- {
		if r[i-1] == '\n' {
			return i
		}
	}
	for i := limit; i > lo; i-- {
		if unicode.IsSpace(r[i-1]) {
			return i
		}
	}
	return limit
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func copyMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
