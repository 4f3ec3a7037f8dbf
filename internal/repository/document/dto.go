package document

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	domdoc "github.com/kailas-cloud/assessdex/internal/domain/document"
	"github.com/kailas-cloud/assessdex/internal/domain/module"
)

// Hash field names of a stored embedding.
const (
	fieldDocumentID     = "document_id"
	fieldFileName       = "file_name"
	fieldContentType    = "content_type"
	fieldText           = "extracted_text"
	fieldVector         = "vector"
	fieldDimensions     = "dimensions"
	fieldAssessmentID   = "assessment_id"
	fieldAssessmentName = "assessment_name"
	fieldModuleType     = "module_type"
	fieldKeyFindings    = "key_findings"
	fieldChunkIndex     = "chunk_index"
	fieldTotalChunks    = "total_chunks"
	fieldMetadata       = "metadata"
	fieldCreatedAt      = "created_at"
	fieldLastUpdated    = "last_updated"
)

// buildHashFields flattens an Embedding into a map[string]string for HSET.
func buildHashFields(e *domdoc.Embedding) (map[string]string, error) {
	findings, err := json.Marshal(nonNil(e.KeyFindings()))
	if err != nil {
		return nil, fmt.Errorf("marshal key findings: %w", err)
	}
	meta := "{}"
	if len(e.Metadata()) > 0 {
		raw, err := json.Marshal(e.Metadata())
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		meta = string(raw)
	}

	return map[string]string{
		fieldDocumentID:     e.DocumentID(),
		fieldFileName:       e.FileName(),
		fieldContentType:    e.ContentType(),
		fieldText:           e.ExtractedText(),
		fieldVector:         vectorToBytes(e.Vector()),
		fieldDimensions:     strconv.Itoa(len(e.Vector())),
		fieldAssessmentID:   strconv.FormatInt(e.AssessmentID(), 10),
		fieldAssessmentName: e.AssessmentName(),
		fieldModuleType:     e.ModuleType().String(),
		fieldKeyFindings:    string(findings),
		fieldChunkIndex:     strconv.Itoa(e.ChunkIndex()),
		fieldTotalChunks:    strconv.Itoa(e.TotalChunks()),
		fieldMetadata:       meta,
		fieldCreatedAt:      e.CreatedAt().UTC().Format(time.RFC3339Nano),
		fieldLastUpdated:    e.LastUpdated().UTC().Format(time.RFC3339Nano),
	}, nil
}

// parseHashFields converts a stored hash back into an Embedding.
// Records missing their vector or identity are rejected.
func parseHashFields(m map[string]string) (domdoc.Embedding, error) {
	if len(m) == 0 {
		return domdoc.Embedding{}, fmt.Errorf("empty record")
	}
	docID := m[fieldDocumentID]
	if docID == "" {
		return domdoc.Embedding{}, fmt.Errorf("missing %s", fieldDocumentID)
	}
	vector := bytesToVector(m[fieldVector])
	if len(vector) == 0 {
		return domdoc.Embedding{}, fmt.Errorf("document %s: missing or corrupt vector", docID)
	}

	assessmentID, err := strconv.ParseInt(m[fieldAssessmentID], 10, 64)
	if err != nil {
		return domdoc.Embedding{}, fmt.Errorf("document %s: assessment id: %w", docID, err)
	}
	chunkIndex, err := strconv.Atoi(m[fieldChunkIndex])
	if err != nil {
		return domdoc.Embedding{}, fmt.Errorf("document %s: chunk index: %w", docID, err)
	}
	totalChunks, err := strconv.Atoi(m[fieldTotalChunks])
	if err != nil {
		return domdoc.Embedding{}, fmt.Errorf("document %s: total chunks: %w", docID, err)
	}

	var findings []string
	if raw := m[fieldKeyFindings]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &findings); err != nil {
			return domdoc.Embedding{}, fmt.Errorf("document %s: key findings: %w", docID, err)
		}
	}
	var meta map[string]any
	if raw := m[fieldMetadata]; raw != "" && raw != "{}" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return domdoc.Embedding{}, fmt.Errorf("document %s: metadata: %w", docID, err)
		}
	}

	return domdoc.Reconstruct(domdoc.Params{
		DocumentID:     docID,
		FileName:       m[fieldFileName],
		ContentType:    m[fieldContentType],
		ExtractedText:  m[fieldText],
		Vector:         vector,
		AssessmentID:   assessmentID,
		AssessmentName: m[fieldAssessmentName],
		ModuleType:     module.Type(m[fieldModuleType]),
		KeyFindings:    findings,
		ChunkIndex:     chunkIndex,
		TotalChunks:    totalChunks,
		Metadata:       meta,
		CreatedAt:      parseTime(m[fieldCreatedAt]),
		LastUpdated:    parseTime(m[fieldLastUpdated]),
	}), nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
