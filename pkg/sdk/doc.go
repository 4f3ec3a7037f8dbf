// Package assessdex embeds the assessment document vector search engine in a Go
// program: ingestion, semantic search, similar-document lookup, cross-assessment
// insights and prompt enhancement, without running the HTTP server.
//
// The client talks to the store directly (in-memory, SQLite, Redis or Valkey)
// and embeds text with the configured Embedder. Without WithEmbedder it uses the
// deterministic local feature-hashing embedder.
//
//	client, _ := assessdex.New(ctx, assessdex.WithSQLite("data/assessdex.db"))
//	defer client.Close()
//
//	res, _ := client.Ingest(ctx, assessdex.IngestRequest{
//	    Data:         report,
//	    FileName:     "pentest.md",
//	    AssessmentID: 42,
//	    ModuleType:   "security",
//	})
//	hits, _ := client.Search(ctx, assessdex.SearchQuery{Query: "admin accounts without MFA"})
//	insights, _ := client.Insights(ctx, 42, "security", 3)
package assessdex
