package main

import (
	"strings"

	"github.com/kailas-cloud/assessdex/internal/domain/module"
	"github.com/kailas-cloud/assessdex/internal/domain/search/result"
)

type resultOutput struct {
	DocumentID     string   `json:"documentId"`
	FileName       string   `json:"fileName"`
	ChunkIndex     int      `json:"chunkIndex"`
	Score          float64  `json:"similarityScore"`
	AssessmentID   int64    `json:"assessmentId"`
	AssessmentName string   `json:"assessmentName"`
	ModuleType     string   `json:"moduleType"`
	Text           string   `json:"relevantText"`
	KeyFindings    []string `json:"keyFindings,omitempty"`
}

type insightOutput struct {
	Pattern        string         `json:"pattern"`
	AssessmentIDs  []int64        `json:"assessmentIds"`
	Confidence     float64        `json:"confidenceScore"`
	Recommendation string         `json:"recommendation"`
	Related        []resultOutput `json:"relatedDocuments"`
}

func resultsOutput(rs []result.Result) []resultOutput {
	out := make([]resultOutput, len(rs))
	for i := range rs {
		r := &rs[i]
		out[i] = resultOutput{
			DocumentID:     r.DocumentID(),
			FileName:       r.FileName(),
			ChunkIndex:     r.ChunkIndex(),
			Score:          r.SimilarityScore(),
			AssessmentID:   r.AssessmentID(),
			AssessmentName: r.AssessmentName(),
			ModuleType:     r.ModuleType().String(),
			Text:           r.RelevantText(),
			KeyFindings:    r.KeyFindings(),
		}
	}
	return out
}

func moduleList() string {
	all := module.All()
	names := make([]string, len(all))
	for i, mt := range all {
		names[i] = mt.String()
	}
	return strings.Join(names, ", ")
}
