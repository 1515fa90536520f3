package query

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/soundprediction/go-gline-rs/pkg/gline"

	"github.com/nimbium/cirro/pkg/types"
)

// Span labels the zero-shot extractor is asked for. GLiNER matches them
// against arbitrary text, so they read like plain English.
const (
	labelProvider = "cloud provider"
	labelCategory = "cloud service category"
	labelEngine   = "database engine"
	labelRegion   = "cloud region"
	labelBudget   = "budget amount"
)

var spanLabels = []string{labelProvider, labelCategory, labelEngine, labelRegion, labelBudget}

// minSpanScore drops low-confidence spans before they can touch the
// requirements.
const minSpanScore = 0.5

// Entity is one span the model extracted from a query.
type Entity struct {
	Text  string
	Label string
	Score float32
}

// GlinerExtractor runs a local GLiNER span model over queries and fills
// requirement fields the primary parser left blank. It is optional: the
// pipeline behaves identically without it, just with fewer hints.
type GlinerExtractor struct {
	model  *gline.Model
	logger *slog.Logger
	mu     sync.Mutex
}

// NewGlinerExtractor loads a span model from a local directory holding
// model.onnx and tokenizer.json, or from the HuggingFace hub when the
// argument is not an existing path.
func NewGlinerExtractor(modelID string, logger *slog.Logger) (*GlinerExtractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := gline.Init(); err != nil {
		return nil, fmt.Errorf("failed to init gline runtime: %w", err)
	}

	var (
		model *gline.Model
		err   error
	)
	if _, statErr := os.Stat(modelID); statErr == nil {
		model, err = gline.NewSpanModel(
			filepath.Join(modelID, "model.onnx"),
			filepath.Join(modelID, "tokenizer.json"),
		)
	} else {
		model, err = gline.NewSpanModelFromHF(modelID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load span model %q: %w", modelID, err)
	}

	logger.Info("GLiNER span model loaded", "model", modelID)
	return &GlinerExtractor{model: model, logger: logger}, nil
}

// Extract runs the span model over the query. The model is not safe for
// concurrent prediction, so calls serialize on a mutex.
func (g *GlinerExtractor) Extract(query string) ([]Entity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.model == nil {
		return nil, fmt.Errorf("span model is closed")
	}

	results, err := g.model.Predict([]string{query}, spanLabels)
	if err != nil {
		return nil, fmt.Errorf("span prediction failed: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	entities := make([]Entity, 0, len(results[0]))
	for _, span := range results[0] {
		entities = append(entities, Entity{
			Text:  span.Text,
			Label: span.Label,
			Score: span.Probability,
		})
	}
	return entities, nil
}

// Enrich extracts spans from the query and merges them into the parsed
// result. Extraction failures are logged and swallowed; hints are never
// worth failing a parse over.
func (g *GlinerExtractor) Enrich(result *Result, query string) {
	if result == nil || result.Requirements == nil {
		return
	}
	entities, err := g.Extract(query)
	if err != nil {
		g.logger.Warn("GLiNER extraction failed, continuing without span hints", "error", err)
		return
	}
	applyEntities(result.Requirements, entities)
}

// Close releases the underlying model.
func (g *GlinerExtractor) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.model != nil {
		g.model.Close()
		g.model = nil
	}
}

// applyEntities fills blank requirement fields from extracted spans.
// Fields the parser already set win over span hints.
func applyEntities(req *types.UserRequirements, entities []Entity) {
	for _, e := range entities {
		if e.Score < minSpanScore {
			continue
		}
		lower := strings.ToLower(strings.TrimSpace(e.Text))
		switch e.Label {
		case labelProvider:
			if req.PreferredProvider == "" {
				req.PreferredProvider = matchProvider(lower)
			}
		case labelCategory:
			if req.PreferredCategory == "" {
				if category, ok := matchCategory(lower); ok {
					req.PreferredCategory = category
				}
			}
		case labelEngine:
			if req.DatabaseEngine == "" {
				req.DatabaseEngine = matchEngine(lower)
			}
		case labelRegion:
			if req.PreferredRegion == "" {
				req.PreferredRegion = strings.TrimSpace(e.Text)
			}
		case labelBudget:
			if req.Budget == 0 {
				if amount, ok := parseBudget(lower); ok {
					req.Budget = amount
				}
			}
		}
	}
}
