// Package embedder turns catalog documents and queries into dense
// vectors for semantic retrieval.
//
// Two implementations sit behind the Client interface: OpenAIEmbedder
// calls the OpenAI embeddings API (or any compatible endpoint through a
// custom BaseURL), and EmbedEverythingClient runs a sentence-transformer
// model in-process so a catalog can be embedded with no network or API
// key at all. NewClient picks one from a Provider name, which is how
// configuration files select a backend:
//
//	client, err := embedder.NewClient(embedder.ProviderEmbedEverything, "", embedder.Config{
//	    Model: "all-MiniLM-L6-v2",
//	})
//	vec, err := client.EmbedSingle(ctx, "managed postgres database")
//
// Embed batches internally per provider limits; Dimensions reports the
// vector width for the configured model so stores can validate shapes.
package embedder
