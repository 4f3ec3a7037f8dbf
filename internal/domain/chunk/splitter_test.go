package chunk

import (
	"errors"
	"strings"
	"testing"
	"unicode"

	"github.com/kailas-cloud/assessdex/internal/domain"
)

func mustSplitter(t *testing.T, maxSize, overlap int, opts ...Option) *Splitter {
	t.Helper()
	s, err := NewSplitter(maxSize, overlap, opts...)
	if err != nil {
		t.Fatalf("NewSplitter(%d, %d): %v", maxSize, overlap, err)
	}
	return s
}

// reconstruct joins chunk spans minus their overlaps.
func reconstruct(t *testing.T, chunks []Chunk) string {
	t.Helper()
	var b strings.Builder
	prevEnd := 0
	for _, c := range chunks {
		if c.StartPosition > prevEnd {
			t.Fatalf("gap before chunk %d: start=%d prevEnd=%d", c.Index, c.StartPosition, prevEnd)
		}
		r := []rune(c.Text)
		b.WriteString(string(r[prevEnd-c.StartPosition:]))
		prevEnd = c.EndPosition
	}
	return b.String()
}

func TestNewSplitter_Validation(t *testing.T) {
	tests := []struct {
		name     string
		max, ovl int
		wantErr  bool
	}{
		{"defaults", 0, 0, false},
		{"valid", 1000, 100, false},
		{"overlap equals max", 100, 100, true},
		{"overlap above max", 100, 150, true},
		{"negative overlap", 100, -1, true},
		{"negative max", -5, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSplitter(tc.max, tc.ovl)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSplit_Empty(t *testing.T) {
	s := mustSplitter(t, 1000, 100)
	if got := s.Split("", nil); len(got) != 0 {
		t.Fatalf("expected no chunks, got %d", len(got))
	}
}

func TestSplit_ShortText(t *testing.T) {
	s := mustSplitter(t, 1000, 100)
	text := "Network segmentation is missing between tiers."
	got := s.Split(text, map[string]any{"fileName": "net.txt"})

	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	c := got[0]
	if c.Index != 0 || c.Total != 1 {
		t.Errorf("Index/Total = %d/%d, want 0/1", c.Index, c.Total)
	}
	if c.Text != text || c.StartPosition != 0 || c.EndPosition != len(text) {
		t.Errorf("unexpected chunk: %+v", c)
	}
	if c.Metadata["fileName"] != "net.txt" {
		t.Errorf("metadata not propagated: %v", c.Metadata)
	}
}

func TestSplit_HardCutScenario(t *testing.T) {
	s := mustSplitter(t, 1000, 100)
	got := s.Split(strings.Repeat("a", 2500), nil)

	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if got[1].StartPosition != 900 {
		t.Errorf("chunk 1 start = %d, want 900", got[1].StartPosition)
	}
	if got[2].StartPosition > 1900 {
		t.Errorf("chunk 2 start = %d, want <= 1900", got[2].StartPosition)
	}
	if got[2].EndPosition != 2500 {
		t.Errorf("last chunk end = %d, want 2500", got[2].EndPosition)
	}
}

func TestSplit_PrefersSentenceBoundary(t *testing.T) {
	s := mustSplitter(t, 100, 10, WithBoundaryWindow(20))
	text := strings.Repeat("Lorem ipsum dolor sit amet. ", 20)
	got := s.Split(text, nil)

	if len(got) < 2 {
		t.Fatalf("expected several chunks, got %d", len(got))
	}
	first := got[0].Text
	if !strings.HasSuffix(first, ".") {
		t.Errorf("first chunk should end at a sentence boundary, got %q", first)
	}
	if got[0].EndPosition != 83 {
		t.Errorf("first chunk end = %d, want 83", got[0].EndPosition)
	}
}

func TestSplit_PrefersParagraphBoundary(t *testing.T) {
	s := mustSplitter(t, 60, 5, WithBoundaryWindow(30))
	text := strings.Repeat("x", 40) + ".\n\n" + strings.Repeat("y", 10) + ". " + strings.Repeat("z", 40)
	got := s.Split(text, nil)

	if !strings.HasSuffix(got[0].Text, "\n\n") {
		t.Errorf("first chunk should end at the paragraph break, got %q", got[0].Text)
	}
}

func TestSplit_AvoidsMidWordCuts(t *testing.T) {
	s := mustSplitter(t, 50, 5)
	text := strings.Repeat("word ", 40)
	got := s.Split(text, nil)

	for _, c := range got[:len(got)-1] {
		r := []rune(c.Text)
		if !unicode.IsSpace(r[len(r)-1]) {
			t.Errorf("chunk %d ends mid-word: %q", c.Index, c.Text)
		}
	}
}

func TestSplit_CoverageAndIndexing(t *testing.T) {
	texts := []string{
		strings.Repeat("a", 2500),
		strings.Repeat("Findings: critical issue in IAM roles. Backups are untested!\n", 60),
		strings.Repeat("Données sécurisées - chiffrement au repos. ", 80),
		"one\n\ntwo\n\nthree",
	}
	sizes := []struct{ max, overlap int }{
		{1000, 100}, {200, 50}, {64, 0}, {30, 29},
	}

	for _, text := range texts {
		for _, sz := range sizes {
			s := mustSplitter(t, sz.max, sz.overlap)
			chunks := s.Split(text, nil)

			if got := reconstruct(t, chunks); got != text {
				t.Fatalf("max=%d overlap=%d: reconstruction mismatch", sz.max, sz.overlap)
			}
			for i, c := range chunks {
				if c.Index != i {
					t.Fatalf("chunk %d has Index %d", i, c.Index)
				}
				if c.Total != len(chunks) {
					t.Fatalf("chunk %d has Total %d, want %d", i, c.Total, len(chunks))
				}
				if n := c.EndPosition - c.StartPosition; n > sz.max {
					t.Fatalf("chunk %d length %d exceeds %d", i, n, sz.max)
				}
				if c.Text != string([]rune(text)[c.StartPosition:c.EndPosition]) {
					t.Fatalf("chunk %d text does not match its span", i)
				}
			}
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	s := mustSplitter(t, 120, 20)
	text := strings.Repeat("Recommendation: enable MFA for all admins. ", 30)

	a := s.Split(text, nil)
	b := s.Split(text, nil)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic chunk count %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].StartPosition != b[i].StartPosition || a[i].EndPosition != b[i].EndPosition {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}
