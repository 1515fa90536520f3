// Package cirro provides a cloud service recommendation library for Go.
//
// Cirro answers free-text infrastructure questions ("a managed postgres
// database on AWS with high availability under $500 a month") with a
// ranked list of concrete cloud services. It combines hybrid retrieval
// over a local service catalog, reciprocal rank fusion of the dense and
// sparse signals, an oracle-guided pairwise rerank sweep, and
// multi-dimension scoring against the parsed requirements.
//
// # Basic Usage
//
// Create a client with the collaborators you have. Every dependency is
// optional and the pipeline degrades to whatever is present:
//
//	// Open the service catalog
//	store, err := catalog.Open(catalog.Config{Path: "./catalog"}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Create an LLM client for parsing, judging, and summaries
//	llmCfg := nlp.NewLLMConfig().WithAPIKey(apiKey).WithModel("gpt-4o-mini")
//	llm, err := nlp.NewOpenAIClient(llmCfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Create the pairwise comparison judge
//	oracle := judge.NewLLMJudge(llm, judge.Config{}, logger)
//
//	client, err := cirro.NewClient(cirro.Dependencies{
//		Judge: oracle,
//		Store: store,
//		NLP:   llm,
//	}, nil, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
// # Asking for Recommendations
//
// RecommendQuery runs the whole pipeline over the catalog:
//
//	result, err := client.RecommendQuery(ctx, "serverless API backend on GCP", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, rec := range result.Recommendations {
//		fmt.Printf("%d. %s (%.2f)\n", rec.Rank, rec.Candidate.Service.Name, rec.FinalScore)
//	}
//
// Recommend ranks candidate lists you retrieved yourself:
//
//	result, err := client.Recommend(ctx, query, requirements, denseList, sparseList)
//
// # Loading the Catalog
//
// Bulk loads accept JSON, CSV, and YAML files, checkpoint their
// progress for resume, and embed records when an embedder is present:
//
//	res, err := client.IngestFile(ctx, "services.json", &cirro.IngestOptions{Embed: true})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("stored %d, embedded %d\n", res.Stored, res.Embedded)
//
// # Pipeline Stages
//
// A run moves through four stages:
//
//   - Retrieval: BM25 over the catalog text plus cosine similarity over
//     stored vectors, each producing a ranked list
//   - Fusion: reciprocal rank fusion merges the two lists
//   - Reranking: a pairwise judge bubbles better candidates upward; the
//     stage is skipped without a judge
//   - Scoring: relevance, cost efficiency, capacity match, and feature
//     match blend into the final score
//
// # Degraded Modes
//
// Each collaborator is optional:
//
//   - No embedder: retrieval runs sparse-only
//   - No judge: fused order passes straight to scoring
//   - No LLM: keyword parsing, no narrative summary
//   - No store: only the pre-retrieved Recommend path works
//
// # Error Handling
//
// The library provides typed errors for common scenarios:
//
//   - ErrNoCatalog: an operation needs a catalog store and none is configured
//   - ErrEmptyService: a catalog write carried no usable record
//   - catalog.ErrNotFound: a requested service record does not exist
//
// Judge failures during reranking never fail a run; the comparison
// counts as undetermined and the current order stands.
//
// # Architecture
//
// The library follows a modular architecture:
//
//   - pkg/catalog: Badger-backed service catalog
//   - pkg/retrieval: BM25 and dense retrieval over the catalog
//   - pkg/fusion: reciprocal rank fusion
//   - pkg/rerank: oracle-guided pairwise reranking
//   - pkg/judge: LLM and cross-encoder comparison oracles
//   - pkg/scoring: multi-dimension scoring and explanations
//   - pkg/query: keyword and LLM query parsing
//   - pkg/nlp: language model clients and decorators
//   - pkg/embedder: embedding model clients
//
// This design allows easy extension with additional judges, embedding
// services, and LLM providers.
package cirro
