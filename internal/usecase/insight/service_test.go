package insight

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/assessdex/internal/domain"
	domdoc "github.com/kailas-cloud/assessdex/internal/domain/document"
	"github.com/kailas-cloud/assessdex/internal/domain/module"
	"github.com/kailas-cloud/assessdex/internal/domain/search/filter"
	"github.com/kailas-cloud/assessdex/internal/domain/search/result"
)

// --- Mocks ---

type mockRepo struct {
	embeddings []domdoc.Embedding
	err        error
	filters    []filter.Filter
}

func (m *mockRepo) List(_ context.Context, f filter.Filter) ([]domdoc.Embedding, int, error) {
	m.filters = append(m.filters, f)
	if m.err != nil {
		return nil, 0, m.err
	}
	var out []domdoc.Embedding
	for i := range m.embeddings {
		if f.Matches(&m.embeddings[i]) {
			out = append(out, m.embeddings[i])
		}
	}
	return out, 0, nil
}

// --- Helpers ---

type chunk struct {
	doc        string
	idx        int
	assessment int64
	name       string
	mt         module.Type
	vec        []float32
	findings   []string
}

func build(t *testing.T, chunks ...chunk) []domdoc.Embedding {
	t.Helper()
	totals := map[string]int{}
	for _, c := range chunks {
		if c.idx+1 > totals[c.doc] {
			totals[c.doc] = c.idx + 1
		}
	}
	out := make([]domdoc.Embedding, 0, len(chunks))
	for _, c := range chunks {
		e, err := domdoc.New(domdoc.Params{
			DocumentID:     c.doc,
			FileName:       c.doc + ".txt",
			ExtractedText:  "chunk of " + c.doc,
			Vector:         c.vec,
			AssessmentID:   c.assessment,
			AssessmentName: c.name,
			ModuleType:     c.mt,
			KeyFindings:    c.findings,
			ChunkIndex:     c.idx,
			TotalChunks:    totals[c.doc],
			CreatedAt:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("domdoc.New(%s): %v", c.doc, err)
		}
		out = append(out, e)
	}
	return out
}

func unit(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func scored(assessment int64, score float64) result.Result {
	return result.New(result.Params{AssessmentID: assessment, SimilarityScore: score})
}

// --- Tests ---

func TestFindInsights_IdenticalChunksAcrossTwoAssessments(t *testing.T) {
	repo := &mockRepo{embeddings: build(t,
		chunk{doc: "a1", assessment: 1, name: "Acme", mt: module.Security, vec: []float32{1, 0, 0}},
		chunk{doc: "a2", assessment: 2, name: "Globex", mt: module.Security, vec: []float32{1, 0, 0}},
	)}
	svc := New(repo, Config{})

	got, err := svc.FindInsights(context.Background(), 1, "security", 3)
	if err != nil {
		t.Fatalf("FindInsights: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(got))
	}
	in := got[0]
	if !reflect.DeepEqual(in.AssessmentIDs(), []int64{1, 2}) {
		t.Errorf("assessment ids = %v", in.AssessmentIDs())
	}
	if math.Abs(in.Confidence()-1) > 1e-6 {
		t.Errorf("confidence = %v, want 1", in.Confidence())
	}
	if in.Pattern() != "Similar security patterns found across 1 other assessments" {
		t.Errorf("pattern = %q", in.Pattern())
	}
	want := "Consider applying insights from 'Globex' which had similar security characteristics (similarity: 100.0%)"
	if in.Recommendation() != want {
		t.Errorf("recommendation = %q", in.Recommendation())
	}
	if rel := in.RelatedDocuments(); len(rel) != 1 || rel[0].DocumentID() != "a2" {
		t.Errorf("related = %v", rel)
	}
	if in.ModuleType() != module.Security {
		t.Errorf("module = %s", in.ModuleType())
	}
}

func TestFindInsights_IgnoresOwnAssessment(t *testing.T) {
	tests := []struct {
		name       string
		chunks     []chunk
		related    []string
		confidence float64
	}{
		{
			name: "sibling documents do not count as matches",
			chunks: []chunk{
				{doc: "a1", assessment: 1, mt: module.Infrastructure, vec: []float32{1, 0}},
				{doc: "a1b", assessment: 1, mt: module.Infrastructure, vec: []float32{1, 0}},
				{doc: "a1c", assessment: 1, mt: module.Infrastructure, vec: []float32{1, 0}},
				{doc: "b2", assessment: 2, name: "Globex", mt: module.Infrastructure, vec: unit(0.97)},
			},
			related:    []string{"b2"},
			confidence: 0.97,
		},
		{
			name: "siblings do not crowd out the other assessment",
			chunks: []chunk{
				{doc: "s1", assessment: 1, mt: module.Infrastructure, vec: []float32{1, 0}},
				{doc: "s2", assessment: 1, mt: module.Infrastructure, vec: []float32{1, 0}},
				{doc: "s3", assessment: 1, mt: module.Infrastructure, vec: []float32{1, 0}},
				{doc: "s4", assessment: 1, mt: module.Infrastructure, vec: []float32{1, 0}},
				{doc: "s5", assessment: 1, mt: module.Infrastructure, vec: []float32{1, 0}},
				{doc: "s6", assessment: 1, mt: module.Infrastructure, vec: []float32{1, 0}},
				{doc: "x2", assessment: 2, name: "Initech", mt: module.Infrastructure, vec: []float32{1, 0}},
			},
			related:    []string{"x2"},
			confidence: 1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := New(&mockRepo{embeddings: build(t, tc.chunks...)}, Config{})

			got, err := svc.FindInsights(context.Background(), 1, "infrastructure", 3)
			if err != nil {
				t.Fatalf("FindInsights: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("expected 1 insight, got %d", len(got))
			}
			in := got[0]
			if !reflect.DeepEqual(in.AssessmentIDs(), []int64{1, 2}) {
				t.Errorf("assessment ids = %v", in.AssessmentIDs())
			}
			var related []string
			for _, r := range in.RelatedDocuments() {
				related = append(related, r.DocumentID())
			}
			if !reflect.DeepEqual(related, tc.related) {
				t.Errorf("related = %v, want %v", related, tc.related)
			}
			if math.Abs(in.Confidence()-tc.confidence) > 1e-4 {
				t.Errorf("confidence = %v, want %v", in.Confidence(), tc.confidence)
			}
		})
	}
}

func TestFindInsights_Threshold(t *testing.T) {
	zero, strict := 0.0, 0.9
	tests := []struct {
		name      string
		threshold *float64
		want      int
	}{
		{"default", nil, 0},
		{"explicit zero", &zero, 1},
		{"strict", &strict, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockRepo{embeddings: build(t,
				chunk{doc: "a1", assessment: 1, mt: module.Data, vec: []float32{1, 0}},
				chunk{doc: "b2", assessment: 2, mt: module.Data, vec: unit(0.5)},
			)}
			got, err := New(repo, Config{Threshold: tc.threshold}).FindInsights(context.Background(), 1, "data", 3)
			if err != nil {
				t.Fatalf("FindInsights: %v", err)
			}
			if len(got) != tc.want {
				t.Errorf("got %d insights, want %d", len(got), tc.want)
			}
		})
	}
}

func TestFindInsights_RequiresTwoAssessments(t *testing.T) {
	repo := &mockRepo{embeddings: build(t,
		chunk{doc: "a1", assessment: 1, mt: module.Data, vec: []float32{1, 0}},
		chunk{doc: "a1b", assessment: 1, mt: module.Data, vec: []float32{1, 0}},
		chunk{doc: "weak", assessment: 2, mt: module.Data, vec: unit(0.5)},
		chunk{doc: "other-module", assessment: 3, mt: module.Cloud, vec: []float32{1, 0}},
	)}
	svc := New(repo, Config{})

	got, err := svc.FindInsights(context.Background(), 1, "data", 3)
	if err != nil {
		t.Fatalf("FindInsights: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no insights, got %d: %v", len(got), got[0].AssessmentIDs())
	}
	for _, f := range repo.filters {
		if !reflect.DeepEqual(f.ModuleTypes(), []module.Type{module.Data}) {
			t.Errorf("search must be restricted to the module, got %v", f.ModuleTypes())
		}
		if _, ok := f.AssessmentID(); ok {
			t.Error("search must span all assessments")
		}
	}
}

func TestFindInsights_InvariantAndCap(t *testing.T) {
	var chunks []chunk
	for i := int64(1); i <= 6; i++ {
		chunks = append(chunks,
			chunk{doc: "d" + string(rune('0'+i)) + "x", assessment: i, mt: module.Cloud, vec: unit(0.99 - float64(i)*0.01)},
			chunk{doc: "d" + string(rune('0'+i)) + "y", assessment: i, mt: module.Cloud, vec: []float32{0, 1}},
		)
	}
	repo := &mockRepo{embeddings: build(t, chunks...)}
	svc := New(repo, Config{BandWidth: 0.001})

	for _, max := range []int{1, 2, 3, 0} {
		got, err := svc.FindInsights(context.Background(), 1, "cloud", max)
		if err != nil {
			t.Fatalf("FindInsights: %v", err)
		}
		limit := max
		if max == 0 {
			limit = DefaultMaxInsights
		}
		if len(got) > limit {
			t.Errorf("max %d: got %d insights", max, len(got))
		}
		for i, in := range got {
			if len(in.AssessmentIDs()) < 2 {
				t.Errorf("insight %d spans %v", i, in.AssessmentIDs())
			}
			if i > 0 && in.Confidence() > got[i-1].Confidence() {
				t.Errorf("insights not sorted by confidence")
			}
		}
	}
}

func TestFindInsights_PatternUsesCommonFindings(t *testing.T) {
	repo := &mockRepo{embeddings: build(t,
		chunk{doc: "t", assessment: 1, mt: module.Security, vec: []float32{1, 0},
			findings: []string{"Legacy firewall rules allow inbound telnet"}},
		chunk{doc: "u", assessment: 2, mt: module.Security, vec: []float32{1, 0},
			findings: []string{"Firewall rules were never audited"}},
	)}
	got, err := New(repo, Config{}).FindInsights(context.Background(), 1, "security", 1)
	if err != nil {
		t.Fatalf("FindInsights: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(got))
	}
	if !strings.HasSuffix(got[0].Pattern(), ": firewall, rules") {
		t.Errorf("pattern = %q", got[0].Pattern())
	}
}

func TestFindInsights_Validation(t *testing.T) {
	svc := New(&mockRepo{}, Config{})

	tests := []struct {
		name       string
		assessment int64
		module     string
		want       error
	}{
		{"zero assessment", 0, "security", domain.ErrInvalidInput},
		{"unknown module", 1, "finance", domain.ErrInvalidModuleType},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.FindInsights(context.Background(), tc.assessment, tc.module, 3); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestFindInsights_RepoError(t *testing.T) {
	svc := New(&mockRepo{err: errors.New("store down")}, Config{})
	if _, err := svc.FindInsights(context.Background(), 1, "security", 3); err == nil {
		t.Fatal("expected error")
	}
}

func TestFindInsights_EmptyCorpus(t *testing.T) {
	got, err := New(&mockRepo{}, Config{}).FindInsights(context.Background(), 1, "security", 3)
	if err != nil {
		t.Fatalf("FindInsights: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
}

func TestBands(t *testing.T) {
	in := []result.Result{scored(2, 0.97), scored(3, 0.95), scored(4, 0.92), scored(5, 0.81)}

	bands := Bands(in, 0.05)
	if len(bands) != 2 {
		t.Fatalf("expected 2 bands, got %d", len(bands))
	}
	if len(bands[0]) != 3 || len(bands[1]) != 1 {
		t.Errorf("band sizes = %d, %d", len(bands[0]), len(bands[1]))
	}
	if len(Bands(nil, 0.05)) != 0 {
		t.Error("no results must give no bands")
	}
}

func TestCommonTerms(t *testing.T) {
	tests := []struct {
		name    string
		members [][]string
		want    []string
	}{
		{"none shared", [][]string{{"encryption at rest"}, {"patching cadence"}}, []string{}},
		{"short words and stopwords dropped", [][]string{{"MFA is off for this team"}, {"MFA off for this group"}}, []string{}},
		{"counted once per member", [][]string{{"backup backup backup"}, {"restore tested"}}, []string{}},
		{
			"most frequent first",
			[][]string{{"Backup retention too short"}, {"backup retention"}, {"backup window"}},
			[]string{"backup", "retention"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CommonTerms(tc.members, 3)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}
