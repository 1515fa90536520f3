package nlp

import "slices"

// TaskCapability names one kind of work a model can do. Routing picks a
// client by task, so every Client reports the set it supports.
type TaskCapability string

// The tasks the pipeline dispatches on.
const (
	TaskEmbedding            TaskCapability = "embedding"             // vector embeddings for retrieval
	TaskReranking            TaskCapability = "reranking"             // pairwise candidate comparison
	TaskStructuredExtraction TaskCapability = "structured_extraction" // free text into typed requirement fields
	TaskSpanExtraction       TaskCapability = "span_extraction"       // zero-shot labeling of budgets, capacities, features
	TaskSummarization        TaskCapability = "summarization"
	TaskTextGeneration       TaskCapability = "text_generation"
)

// ProviderID identifies a model provider.
type ProviderID string

// The providers the registry knows how to construct clients for.
const (
	ProviderEmbedEverything  ProviderID = "embedeverything"
	ProviderGLine            ProviderID = "gline"
	ProviderRustBert         ProviderID = "rustbert"
	ProviderOpenAI           ProviderID = "openai"
	ProviderAnthropic        ProviderID = "anthropic"
	ProviderGoogle           ProviderID = "google"
	ProviderAzure            ProviderID = "azure"
	ProviderOpenAICompatible ProviderID = "openai_compatible"
)

// Provider is one source of models, in-process or hosted.
type Provider struct {
	ID                ProviderID
	Name, Description string
	Local             bool
}

// Model is one entry in the built-in model registry.
type Model struct {
	ID          string
	Name        string
	ProviderID  ProviderID
	Tasks       []TaskCapability
	Description string
	Family      string // optional grouping ("gpt-4o", "claude")
}

// KnownProviders is the standard set of supported providers. The Local flag
// marks providers that run in-process rather than over HTTP; self-hosted
// OpenAI-compatible endpoints still count as remote.
var KnownProviders = []Provider{
	{ID: ProviderEmbedEverything, Name: "EmbedEverything", Local: true, Description: "Local sentence embedding and reranking models through Rust bindings"},
	{ID: ProviderGLine, Name: "GLine", Local: true, Description: "Zero-shot span labeling for requirement fields (budget, capacity, features)"},
	{ID: ProviderRustBert, Name: "RustBert", Local: true, Description: "Rust-based BERT models for summarization via bindings"},
	{ID: ProviderOpenAI, Name: "OpenAI", Description: "Hosted GPT models over the chat completions API"},
	{ID: ProviderAnthropic, Name: "Anthropic", Description: "Hosted Claude models over the messages API"},
	{ID: ProviderGoogle, Name: "Google", Description: "Hosted Gemini models over the generateContent API"},
	{ID: ProviderAzure, Name: "Azure OpenAI", Description: "OpenAI models behind Azure deployments"},
	{ID: ProviderOpenAICompatible, Name: "OpenAI Compatible", Description: "Any service speaking the OpenAI chat API (vLLM, Ollama, LM Studio)"},
}

// remoteChatTasks is what every hosted chat model can do.
var remoteChatTasks = []TaskCapability{TaskReranking, TaskStructuredExtraction, TaskSummarization, TaskTextGeneration}

// KnownModels is a curated list of built-in models.
var KnownModels = []Model{
	// EmbedEverything
	{ID: "sentence-transformers/all-MiniLM-L6-v2", Name: "all-MiniLM-L6-v2", ProviderID: ProviderEmbedEverything,
		Tasks: []TaskCapability{TaskEmbedding}, Description: "Fast default for catalog and request embeddings"},
	{ID: "sentence-transformers/all-mpnet-base-v2", Name: "all-mpnet-base-v2", ProviderID: ProviderEmbedEverything,
		Tasks: []TaskCapability{TaskEmbedding}, Description: "Higher quality embeddings at roughly half the speed"},

	// GLine
	{ID: "urchade/gliner_multi-v2.1", Name: "GLine Multi v2.1", ProviderID: ProviderGLine,
		Tasks: []TaskCapability{TaskSpanExtraction}, Description: "Multilingual zero-shot span labeling for requirement extraction"},
	{ID: "urchade/gliner_small-v2.1", Name: "GLine Small v2.1", ProviderID: ProviderGLine,
		Tasks: []TaskCapability{TaskSpanExtraction}, Description: "Lightweight multilingual span labeling model"},

	// RustBert
	{ID: "distilbart-cnn-12-6", Name: "DistilBART Summarization", ProviderID: ProviderRustBert,
		Tasks: []TaskCapability{TaskSummarization}, Description: "Default DistilBART model for recommendation summaries"},

	// OpenAI
	{ID: "gpt-4o-mini", Name: "GPT-4o mini", ProviderID: ProviderOpenAI, Family: "gpt-4o",
		Tasks: remoteChatTasks, Description: "Low-cost model suited to high-volume pairwise comparisons"},
	{ID: "gpt-4o", Name: "GPT-4o", ProviderID: ProviderOpenAI, Family: "gpt-4o",
		Tasks: remoteChatTasks, Description: "General-purpose model for requirement parsing and summaries"},

	// Anthropic
	{ID: "claude-3-5-haiku-latest", Name: "Claude 3.5 Haiku", ProviderID: ProviderAnthropic, Family: "claude",
		Tasks: remoteChatTasks, Description: "Fast model suited to high-volume pairwise comparisons"},
	{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ProviderID: ProviderAnthropic, Family: "claude",
		Tasks: remoteChatTasks, Description: "Stronger model for requirement parsing and summaries"},

	// Google
	{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", ProviderID: ProviderGoogle, Family: "gemini",
		Tasks: remoteChatTasks, Description: "Fast Gemini model for comparisons and parsing"},
}

// LookupProvider returns the provider registered under id.
func LookupProvider(id ProviderID) (Provider, bool) {
	i := slices.IndexFunc(KnownProviders, func(p Provider) bool { return p.ID == id })
	if i < 0 {
		return Provider{}, false
	}
	return KnownProviders[i], true
}

// LookupModel returns the built-in model with the given ID.
func LookupModel(id string) (Model, bool) {
	i := slices.IndexFunc(KnownModels, func(m Model) bool { return m.ID == id })
	if i < 0 {
		return Model{}, false
	}
	return KnownModels[i], true
}

func filterModels(keep func(Model) bool) []Model {
	var out []Model
	for _, m := range KnownModels {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// ModelsByProvider returns the built-in models served by one provider.
func ModelsByProvider(id ProviderID) []Model {
	return filterModels(func(m Model) bool { return m.ProviderID == id })
}

// ModelsForTask returns the built-in models that can perform task.
func ModelsForTask(task TaskCapability) []Model {
	return filterModels(func(m Model) bool { return slices.Contains(m.Tasks, task) })
}
