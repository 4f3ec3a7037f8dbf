package assessdex

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/assessdex/internal/domain"
	domdoc "github.com/kailas-cloud/assessdex/internal/domain/document"
	documentuc "github.com/kailas-cloud/assessdex/internal/usecase/document"
)

// Ingest extracts text, chunks, embeds and stores a document. Chunks whose
// embedding failed are skipped; if every chunk fails nothing is stored.
func (c *Client) Ingest(ctx context.Context, req IngestRequest) (res IngestResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe(opIngest, start, err, "file", req.FileName) }()

	ctx, usage := domain.NewContextWithUsage(ctx)
	r, err := c.documents.Ingest(ctx, documentuc.IngestRequest{
		Data:           req.Data,
		FileName:       req.FileName,
		ContentType:    req.ContentType,
		AssessmentID:   req.AssessmentID,
		AssessmentName: req.AssessmentName,
		ModuleType:     req.ModuleType,
	})
	c.obs.addTokens(usage.TotalTokens)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest: %w", err)
	}
	return IngestResult{
		DocumentID:     r.DocumentID,
		ChunksTotal:    r.ChunksTotal,
		ChunksEmbedded: r.ChunksEmbedded,
		ChunksFailed:   r.ChunksFailed,
		TotalTokens:    r.TotalTokens,
		Chunks:         fromInternalChunks(r.Embeddings),
	}, nil
}

// Document returns all chunks of a document in chunk order.
func (c *Client) Document(ctx context.Context, documentID string) (chunks []Chunk, err error) {
	start := time.Now()
	defer func() { c.obs.observe(opGet, start, err) }()

	es, err := c.documents.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return fromInternalChunks(es), nil
}

// DeleteDocument removes a document. Returns false when it did not exist.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) (deleted bool, err error) {
	start := time.Now()
	defer func() { c.obs.observe(opDelete, start, err) }()

	deleted, err = c.documents.Delete(ctx, documentID)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	return deleted, nil
}

func fromInternalChunks(es []domdoc.Embedding) []Chunk {
	out := make([]Chunk, len(es))
	for i := range es {
		e := &es[i]
		out[i] = Chunk{
			ID:             e.ID(),
			DocumentID:     e.DocumentID(),
			FileName:       e.FileName(),
			Text:           e.ExtractedText(),
			AssessmentID:   e.AssessmentID(),
			AssessmentName: e.AssessmentName(),
			ModuleType:     e.ModuleType().String(),
			KeyFindings:    e.KeyFindings(),
			ChunkIndex:     e.ChunkIndex(),
			TotalChunks:    e.TotalChunks(),
			Dimensions:     len(e.Vector()),
			CreatedAt:      e.CreatedAt(),
		}
	}
	return out
}
