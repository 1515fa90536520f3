package nlp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nimbium/cirro/pkg/nlp"
)

func TestLookupProvider(t *testing.T) {
	got, found := nlp.LookupProvider(nlp.ProviderEmbedEverything)
	assert.True(t, found)
	assert.Equal(t, "EmbedEverything", got.Name)
	assert.True(t, got.Local)

	_, found = nlp.LookupProvider("nonexistent")
	assert.False(t, found)
}

func TestProviderLocality(t *testing.T) {
	local := []nlp.ProviderID{nlp.ProviderEmbedEverything, nlp.ProviderGLine, nlp.ProviderRustBert}
	remote := []nlp.ProviderID{nlp.ProviderOpenAI, nlp.ProviderAnthropic, nlp.ProviderGoogle, nlp.ProviderAzure}

	for _, id := range local {
		p, found := nlp.LookupProvider(id)
		assert.True(t, found, id)
		assert.True(t, p.Local, "%s should run locally", id)
	}
	for _, id := range remote {
		p, found := nlp.LookupProvider(id)
		assert.True(t, found, id)
		assert.False(t, p.Local, "%s should be remote", id)
	}
}

func TestLookupModel(t *testing.T) {
	tests := []struct {
		id       string
		provider nlp.ProviderID
		task     nlp.TaskCapability
	}{
		{"sentence-transformers/all-MiniLM-L6-v2", nlp.ProviderEmbedEverything, nlp.TaskEmbedding},
		{"urchade/gliner_multi-v2.1", nlp.ProviderGLine, nlp.TaskSpanExtraction},
		{"distilbart-cnn-12-6", nlp.ProviderRustBert, nlp.TaskSummarization},
		{"gpt-4o-mini", nlp.ProviderOpenAI, nlp.TaskReranking},
		{"claude-3-5-haiku-latest", nlp.ProviderAnthropic, nlp.TaskReranking},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, found := nlp.LookupModel(tt.id)
			assert.True(t, found)
			assert.Equal(t, tt.provider, got.ProviderID)
			assert.Contains(t, got.Tasks, tt.task)
		})
	}

	_, found := nlp.LookupModel("fake-model")
	assert.False(t, found)
}

func TestModelsByProvider(t *testing.T) {
	models := nlp.ModelsByProvider(nlp.ProviderEmbedEverything)
	assert.NotEmpty(t, models)

	ids := make([]string, 0, len(models))
	for _, m := range models {
		assert.Equal(t, nlp.ProviderEmbedEverything, m.ProviderID)
		ids = append(ids, m.ID)
	}
	assert.Contains(t, ids, "sentence-transformers/all-MiniLM-L6-v2")
}

func TestModelsForTask(t *testing.T) {
	t.Run("Embedding", func(t *testing.T) {
		models := nlp.ModelsForTask(nlp.TaskEmbedding)
		assert.NotEmpty(t, models)
		for _, m := range models {
			assert.Contains(t, m.Tasks, nlp.TaskEmbedding)
		}
	})

	t.Run("Reranking", func(t *testing.T) {
		providers := map[nlp.ProviderID]bool{}
		for _, m := range nlp.ModelsForTask(nlp.TaskReranking) {
			providers[m.ProviderID] = true
		}
		assert.True(t, providers[nlp.ProviderOpenAI], "expected OpenAI reranking models")
		assert.True(t, providers[nlp.ProviderAnthropic], "expected Anthropic reranking models")
		assert.True(t, providers[nlp.ProviderGoogle], "expected Google reranking models")
	})

	t.Run("Summarization", func(t *testing.T) {
		found := false
		for _, m := range nlp.ModelsForTask(nlp.TaskSummarization) {
			if m.ID == "distilbart-cnn-12-6" {
				found = true
			}
		}
		assert.True(t, found, "expected the local DistilBART summarizer")
	})
}
