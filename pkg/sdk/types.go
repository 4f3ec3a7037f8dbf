package assessdex

import "time"

// IngestRequest is one document upload.
type IngestRequest struct {
	Data           []byte
	FileName       string
	ContentType    string // optional, the file extension is checked first
	AssessmentID   int64
	AssessmentName string
	ModuleType     string
}

// Chunk is a stored piece of a document, without its vector.
type Chunk struct {
	ID             string
	DocumentID     string
	FileName       string
	Text           string
	AssessmentID   int64
	AssessmentName string
	ModuleType     string
	KeyFindings    []string
	ChunkIndex     int
	TotalChunks    int
	Dimensions     int
	CreatedAt      time.Time
}

// IngestResult summarizes an ingestion.
type IngestResult struct {
	DocumentID     string
	ChunksTotal    int
	ChunksEmbedded int
	ChunksFailed   int
	TotalTokens    int
	Chunks         []Chunk
}

// SearchQuery is a semantic search. Zero values select the defaults:
// top 5 results, similarity threshold 0.7, all assessments and modules.
type SearchQuery struct {
	Query           string
	AssessmentID    int64
	ModuleTypes     []string
	TopK            int
	Threshold       *float64
	IncludeMetadata bool
}

// SearchResult is a single search hit.
type SearchResult struct {
	EmbeddingID    string
	DocumentID     string
	FileName       string
	ChunkIndex     int
	Text           string
	Score          float64
	AssessmentID   int64
	AssessmentName string
	ModuleType     string
	KeyFindings    []string
	Metadata       map[string]any
	CreatedAt      time.Time
}

// Insight is a pattern shared by at least two assessments.
type Insight struct {
	Pattern        string
	ModuleType     string
	AssessmentIDs  []int64
	Confidence     float64
	Recommendation string
	Related        []SearchResult
}

// EnhanceRequest asks for an analysis prompt enriched with stored context.
// A nil RelevantDocuments runs a search scoped to the assessment and module;
// an empty non-nil slice means no context.
type EnhanceRequest struct {
	OriginalRequest   string
	ModuleType        string
	AssessmentID      int64
	RelevantDocuments []SearchResult
}

// EnhanceResult is the enriched prompt.
type EnhanceResult struct {
	OriginalRequest    string
	EnhancedRequest    string
	ContextDocuments   int
	EnhancementApplied bool
}

// Stats is a snapshot of the store.
type Stats struct {
	TotalEmbeddings  int
	TotalDocuments   int
	ByModuleType     map[string]int
	ByAssessment     map[int64]int
	VectorDimensions int
	MalformedRecords int
	LastRebuildAt    *time.Time
}

// BatchResult is the outcome of one document in a rebuild.
type BatchResult struct {
	ID      string
	OK      bool
	Skipped bool
	Chunks  int
	Err     error
}

// RebuildReport summarizes a rebuild run.
type RebuildReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  int
	Failed     int
	Skipped    int
	Chunks     int
	Documents  []BatchResult
}

// TestEmbeddingResult reports the shape of one probe embedding.
type TestEmbeddingResult struct {
	Dimensions     int
	TokenCount     int
	ProcessingTime time.Duration
	Sample         []float32
}
