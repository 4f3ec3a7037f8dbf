package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/assessdex/internal/domain/module"
	"github.com/kailas-cloud/assessdex/internal/domain/search/filter"
	"github.com/kailas-cloud/assessdex/internal/domain/search/request"
	documentuc "github.com/kailas-cloud/assessdex/internal/usecase/document"
)

func newIngestCmd(c *cli) *cobra.Command {
	var (
		assessmentID int64
		name         string
		moduleType   string
	)
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Chunk, embed and store a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(filepath.Clean(path))
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				res, err := a.documents.Ingest(cmd.Context(), documentuc.IngestRequest{
					Data:           data,
					FileName:       filepath.Base(path),
					ContentType:    mime.TypeByExtension(filepath.Ext(path)),
					AssessmentID:   assessmentID,
					AssessmentName: name,
					ModuleType:     moduleType,
				})
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				cmd.Printf("document %s: %d/%d chunks embedded, %d failed, %d tokens\n",
					res.DocumentID, res.ChunksEmbedded, res.ChunksTotal, res.ChunksFailed, res.TotalTokens)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&assessmentID, "assessment", 0, "assessment id")
	cmd.Flags().StringVar(&name, "name", "", "assessment name")
	cmd.Flags().StringVar(&moduleType, "module", "", "module type ("+moduleList()+")")
	_ = cmd.MarkFlagRequired("assessment")
	_ = cmd.MarkFlagRequired("module")
	return cmd
}

func newSearchCmd(c *cli) *cobra.Command {
	var (
		assessmentID int64
		modules      []string
		topK         int
		threshold    float64
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stored chunks by meaning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mts, err := module.ParseList(modules)
			if err != nil {
				return err //nolint:wrapcheck // message names the bad value
			}
			var th *float64
			if cmd.Flags().Changed("threshold") {
				th = &threshold
			}
			req, err := request.New(args[0], filter.New(assessmentID, mts), topK, th, false)
			if err != nil {
				return err //nolint:wrapcheck // validation message
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				results, err := a.search.Search(cmd.Context(), &req)
				if err != nil {
					return fmt.Errorf("search: %w", err)
				}
				if asJSON {
					return printJSON(cmd, resultsOutput(results))
				}
				if len(results) == 0 {
					cmd.Println("No results found.")
					return nil
				}
				for i := range results {
					r := &results[i]
					cmd.Printf("[%d] %s #%d (%.3f) %s / %s\n    %s\n",
						i+1, r.FileName(), r.ChunkIndex(), r.SimilarityScore(),
						r.AssessmentName(), r.ModuleType(), r.RelevantText())
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&assessmentID, "assessment", 0, "restrict to an assessment id")
	cmd.Flags().StringSliceVar(&modules, "module", nil, "restrict to module types")
	cmd.Flags().IntVarP(&topK, "top-k", "n", request.DefaultTopK, "maximum number of results")
	cmd.Flags().Float64Var(&threshold, "threshold", request.DefaultThreshold, "minimum similarity")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func newInsightsCmd(c *cli) *cobra.Command {
	var (
		assessmentID int64
		moduleType   string
		maxInsights  int
	)
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Find patterns shared with other assessments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app) error {
				found, err := a.insights.FindInsights(cmd.Context(), assessmentID, moduleType, maxInsights)
				if err != nil {
					return fmt.Errorf("insights: %w", err)
				}
				out := make([]insightOutput, len(found))
				for i := range found {
					in := &found[i]
					out[i] = insightOutput{
						Pattern:        in.Pattern(),
						AssessmentIDs:  in.AssessmentIDs(),
						Confidence:     in.Confidence(),
						Recommendation: in.Recommendation(),
						Related:        resultsOutput(in.RelatedDocuments()),
					}
				}
				return printJSON(cmd, out)
			})
		},
	}
	cmd.Flags().Int64Var(&assessmentID, "assessment", 0, "assessment id")
	cmd.Flags().StringVar(&moduleType, "module", "", "module type ("+moduleList()+")")
	cmd.Flags().IntVar(&maxInsights, "max", 0, "maximum number of insights")
	_ = cmd.MarkFlagRequired("assessment")
	_ = cmd.MarkFlagRequired("module")
	return cmd
}

func newRebuildCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Regenerate every stored embedding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app) error {
				rep, err := a.documents.Rebuild(cmd.Context())
				if err != nil {
					return fmt.Errorf("rebuild: %w", err)
				}
				s := rep.Summary
				cmd.Printf("rebuilt %d/%d documents (%d chunks), %d failed, %d skipped in %s\n",
					s.Succeeded, s.Total, s.Chunks, s.Failed, s.Skipped, rep.FinishedAt.Sub(rep.StartedAt))
				for _, r := range rep.Results {
					if r.Err() != nil {
						cmd.Printf("  %s: %v\n", r.ID(), r.Err())
					}
				}
				if !rep.Success() {
					return fmt.Errorf("%d documents failed", s.Failed)
				}
				return nil
			})
		},
	}
}

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app) error {
				st, err := a.documents.Stats(cmd.Context())
				if err != nil {
					return fmt.Errorf("stats: %w", err)
				}
				cmd.Printf("embeddings: %d\ndocuments:  %d\ndimensions: %d\nprovider:   %s (%s)\n",
					st.TotalEmbeddings, st.TotalDocuments, st.VectorDimensions, st.Provider.Provider, st.Provider.Model)
				if st.MalformedRecords > 0 {
					cmd.Printf("malformed:  %d\n", st.MalformedRecords)
				}
				if st.LastRebuildAt != nil {
					cmd.Printf("rebuilt at: %s\n", st.LastRebuildAt.Format("2006-01-02 15:04:05 MST"))
				}
				for _, mt := range module.All() {
					if n := st.ByModuleType[mt]; n > 0 {
						cmd.Printf("  module %-14s %d\n", mt, n)
					}
				}
				for _, id := range st.AssessmentIDs() {
					cmd.Printf("  assessment %-10d %d\n", id, st.ByAssessment[id])
				}
				return nil
			})
		},
	}
}
