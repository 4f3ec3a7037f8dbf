package chi

import (
	"time"

	domdoc "github.com/kailas-cloud/assessdex/internal/domain/document"
	dominsight "github.com/kailas-cloud/assessdex/internal/domain/insight"
	"github.com/kailas-cloud/assessdex/internal/domain/module"
	"github.com/kailas-cloud/assessdex/internal/domain/search/result"
	"github.com/kailas-cloud/assessdex/internal/usecase/document"
	"github.com/kailas-cloud/assessdex/internal/usecase/enhance"
)

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query               string   `json:"query"`
	AssessmentID        *int64   `json:"assessmentId,omitempty"`
	ModuleTypes         []string `json:"moduleTypes,omitempty"`
	TopK                *int     `json:"topK,omitempty"`
	SimilarityThreshold *float64 `json:"similarityThreshold,omitempty"`
	IncludeMetadata     bool     `json:"includeMetadata,omitempty"`
}

// SearchResult is one ranked chunk.
type SearchResult struct {
	EmbeddingID     string         `json:"embeddingId"`
	DocumentID      string         `json:"documentId"`
	FileName        string         `json:"fileName"`
	ChunkIndex      int            `json:"chunkIndex"`
	RelevantText    string         `json:"relevantText"`
	SimilarityScore float64        `json:"similarityScore"`
	AssessmentID    int64          `json:"assessmentId"`
	AssessmentName  string         `json:"assessmentName"`
	ModuleType      module.Type    `json:"moduleType"`
	KeyFindings     []string       `json:"keyFindings"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// SearchResponse wraps ranked results.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// Embedding describes a stored chunk without its vector.
type Embedding struct {
	ID               string         `json:"id"`
	DocumentID       string         `json:"documentId"`
	FileName         string         `json:"fileName"`
	ContentType      string         `json:"contentType,omitempty"`
	ExtractedText    string         `json:"extractedText"`
	AssessmentID     int64          `json:"assessmentId"`
	AssessmentName   string         `json:"assessmentName"`
	ModuleType       module.Type    `json:"moduleType"`
	KeyFindings      []string       `json:"keyFindings"`
	ChunkIndex       int            `json:"chunkIndex"`
	TotalChunks      int            `json:"totalChunks"`
	VectorDimensions int            `json:"vectorDimensions"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	LastUpdated      time.Time      `json:"lastUpdated"`
}

// DocumentResponse lists the chunks of one document.
type DocumentResponse struct {
	DocumentID string      `json:"documentId"`
	Chunks     []Embedding `json:"chunks"`
}

// UploadResponse summarizes an ingestion.
type UploadResponse struct {
	DocumentID       string      `json:"documentId"`
	Format           string      `json:"format"`
	ChunksTotal      int         `json:"chunksTotal"`
	ChunksEmbedded   int         `json:"chunksEmbedded"`
	ChunksFailed     int         `json:"chunksFailed"`
	TotalTokens      int         `json:"totalTokens"`
	ProcessingTimeMs int64       `json:"processingTimeMs"`
	Embeddings       []Embedding `json:"embeddings"`
}

// Insight is a cross-assessment pattern.
type Insight struct {
	Pattern          string         `json:"pattern"`
	ModuleType       module.Type    `json:"moduleType"`
	AssessmentIDs    []int64        `json:"assessmentIds"`
	ConfidenceScore  float64        `json:"confidenceScore"`
	Recommendation   string         `json:"recommendation"`
	RelatedDocuments []SearchResult `json:"relatedDocuments"`
}

// EnhanceRequest is the body of POST /enhanced-analysis.
type EnhanceRequest struct {
	OriginalRequest   string          `json:"originalRequest"`
	ModuleType        string          `json:"moduleType"`
	AssessmentID      int64           `json:"assessmentId"`
	RelevantDocuments *[]SearchResult `json:"relevantDocuments,omitempty"`
}

// EnhanceResponse is the enhanced prompt.
type EnhanceResponse struct {
	OriginalRequest    string `json:"originalRequest"`
	EnhancedRequest    string `json:"enhancedRequest"`
	ContextDocuments   int    `json:"contextDocuments"`
	EnhancementApplied bool   `json:"enhancementApplied"`
}

// StatsResponse is the store snapshot.
type StatsResponse struct {
	TotalEmbeddings   int                 `json:"totalEmbeddings"`
	TotalDocuments    int                 `json:"totalDocuments"`
	ByModuleType      map[module.Type]int `json:"byModuleType"`
	ByAssessment      map[int64]int       `json:"byAssessment"`
	VectorDimensions  int                 `json:"vectorDimensions"`
	MalformedRecords  int                 `json:"malformedRecords"`
	LastRebuildAt     *time.Time          `json:"lastRebuildAt"`
	RebuildInProgress bool                `json:"rebuildInProgress"`
	Provider          string              `json:"embeddingProvider"`
	Model             string              `json:"embeddingModel"`
	Budget            *BudgetResponse     `json:"budget,omitempty"`
}

// BudgetResponse reports token budget usage. Zero limits mean unlimited.
type BudgetResponse struct {
	Action       string `json:"action"`
	DailyUsed    int64  `json:"dailyUsed"`
	DailyLimit   int64  `json:"dailyLimit"`
	MonthlyUsed  int64  `json:"monthlyUsed"`
	MonthlyLimit int64  `json:"monthlyLimit"`
}

// RebuildItem is the per-document rebuild outcome.
type RebuildItem struct {
	DocumentID string `json:"documentId"`
	Status     string `json:"status"`
	Chunks     int    `json:"chunks,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RebuildResponse reports a rebuild run.
type RebuildResponse struct {
	Success    bool          `json:"success"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Total      int           `json:"total"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Chunks     int           `json:"chunks"`
	Documents  []RebuildItem `json:"documents"`
}

// TestEmbeddingRequest is the body of POST /test-embedding.
type TestEmbeddingRequest struct {
	Text string `json:"text"`
}

// TestEmbeddingResponse reports a probe embedding.
type TestEmbeddingResponse struct {
	Success          bool      `json:"success"`
	Dimensions       int       `json:"dimensions"`
	TokenCount       int       `json:"tokenCount"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
	Sample           []float32 `json:"sample"`
}

// HealthResponse reports component health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	LatencyMs map[string]int64  `json:"latencyMs,omitempty"`
}

func searchResultToDTO(r *result.Result) SearchResult {
	findings := r.KeyFindings()
	if findings == nil {
		findings = []string{}
	}
	return SearchResult{
		EmbeddingID:     r.EmbeddingID(),
		DocumentID:      r.DocumentID(),
		FileName:        r.FileName(),
		ChunkIndex:      r.ChunkIndex(),
		RelevantText:    r.RelevantText(),
		SimilarityScore: r.SimilarityScore(),
		AssessmentID:    r.AssessmentID(),
		AssessmentName:  r.AssessmentName(),
		ModuleType:      r.ModuleType(),
		KeyFindings:     findings,
		Metadata:        r.Metadata(),
		CreatedAt:       r.CreatedAt(),
	}
}

func searchResultsToDTO(rs []result.Result) []SearchResult {
	out := make([]SearchResult, len(rs))
	for i := range rs {
		out[i] = searchResultToDTO(&rs[i])
	}
	return out
}

func searchResultFromDTO(d SearchResult) result.Result {
	return result.New(result.Params{
		EmbeddingID:     d.EmbeddingID,
		DocumentID:      d.DocumentID,
		FileName:        d.FileName,
		ChunkIndex:      d.ChunkIndex,
		RelevantText:    d.RelevantText,
		SimilarityScore: d.SimilarityScore,
		AssessmentID:    d.AssessmentID,
		AssessmentName:  d.AssessmentName,
		ModuleType:      d.ModuleType,
		KeyFindings:     d.KeyFindings,
		Metadata:        d.Metadata,
		CreatedAt:       d.CreatedAt,
	})
}

func embeddingToDTO(e *domdoc.Embedding) Embedding {
	findings := e.KeyFindings()
	if findings == nil {
		findings = []string{}
	}
	return Embedding{
		ID:               e.ID(),
		DocumentID:       e.DocumentID(),
		FileName:         e.FileName(),
		ContentType:      e.ContentType(),
		ExtractedText:    e.ExtractedText(),
		AssessmentID:     e.AssessmentID(),
		AssessmentName:   e.AssessmentName(),
		ModuleType:       e.ModuleType(),
		KeyFindings:      findings,
		ChunkIndex:       e.ChunkIndex(),
		TotalChunks:      e.TotalChunks(),
		VectorDimensions: len(e.Vector()),
		Metadata:         e.Metadata(),
		CreatedAt:        e.CreatedAt(),
		LastUpdated:      e.LastUpdated(),
	}
}

func embeddingsToDTO(es []domdoc.Embedding) []Embedding {
	out := make([]Embedding, len(es))
	for i := range es {
		out[i] = embeddingToDTO(&es[i])
	}
	return out
}

func uploadToDTO(res *document.IngestResult) UploadResponse {
	return UploadResponse{
		DocumentID:       res.DocumentID,
		Format:           string(res.Format),
		ChunksTotal:      res.ChunksTotal,
		ChunksEmbedded:   res.ChunksEmbedded,
		ChunksFailed:     res.ChunksFailed,
		TotalTokens:      res.TotalTokens,
		ProcessingTimeMs: res.ProcessingTime.Milliseconds(),
		Embeddings:       embeddingsToDTO(res.Embeddings),
	}
}

func insightToDTO(in *dominsight.Insight) Insight {
	return Insight{
		Pattern:          in.Pattern(),
		ModuleType:       in.ModuleType(),
		AssessmentIDs:    in.AssessmentIDs(),
		ConfidenceScore:  in.Confidence(),
		Recommendation:   in.Recommendation(),
		RelatedDocuments: searchResultsToDTO(in.RelatedDocuments()),
	}
}

func enhanceToDTO(res *enhance.Result) EnhanceResponse {
	return EnhanceResponse{
		OriginalRequest:    res.OriginalRequest,
		EnhancedRequest:    res.EnhancedRequest,
		ContextDocuments:   len(res.ContextDocuments),
		EnhancementApplied: res.EnhancementApplied,
	}
}

func statsToDTO(st *document.Stats) StatsResponse {
	resp := StatsResponse{
		TotalEmbeddings:   st.TotalEmbeddings,
		TotalDocuments:    st.TotalDocuments,
		ByModuleType:      st.ByModuleType,
		ByAssessment:      st.ByAssessment,
		VectorDimensions:  st.VectorDimensions,
		MalformedRecords:  st.MalformedRecords,
		LastRebuildAt:     st.LastRebuildAt,
		RebuildInProgress: st.RebuildInProgress,
		Provider:          st.Provider.Provider,
		Model:             st.Provider.Model,
	}
	if st.Budget != nil {
		resp.Budget = &BudgetResponse{
			Action:       string(st.Budget.Action),
			DailyUsed:    st.Budget.DailyUsed,
			DailyLimit:   st.Budget.DailyLimit,
			MonthlyUsed:  st.Budget.MonthlyUsed,
			MonthlyLimit: st.Budget.MonthlyLimit,
		}
	}
	return resp
}

func rebuildToDTO(rep *document.RebuildReport) RebuildResponse {
	items := make([]RebuildItem, len(rep.Results))
	for i, r := range rep.Results {
		items[i] = RebuildItem{DocumentID: r.ID(), Status: string(r.Status()), Chunks: r.Chunks()}
		if r.Err() != nil {
			items[i].Error = rebuildErrorMessage(r.Err())
		}
	}
	return RebuildResponse{
		Success:    rep.Success(),
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
		Total:      rep.Summary.Total,
		Succeeded:  rep.Summary.Succeeded,
		Failed:     rep.Summary.Failed,
		Skipped:    rep.Summary.Skipped,
		Chunks:     rep.Summary.Chunks,
		Documents:  items,
	}
}
