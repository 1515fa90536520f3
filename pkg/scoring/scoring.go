// Package scoring blends the reranker's relevance signal with cost,
// capacity, feature, and diversity signals into the final ranking.
package scoring

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/nimbium/cirro/pkg/types"
)

// Default dimension weights. They must sum to 1.0.
const (
	DefaultWeightRelevance      = 0.5
	DefaultWeightCostEfficiency = 0.2
	DefaultWeightCapacityMatch  = 0.2
	DefaultWeightFeatureMatch   = 0.1

	// DefaultDiversityBoost is the additive bonus granted to each
	// provider's best candidate.
	DefaultDiversityBoost = 0.05

	// DefaultTopK is the final recommendation list size.
	DefaultTopK = 5
)

// neutralScore is substituted for any dimension the candidate or the
// requirements leave unstated. A missing value never counts against a
// candidate and never raises an error.
const neutralScore = 0.5

// weightTolerance bounds the acceptable drift of the weight sum from 1.0.
const weightTolerance = 1e-6

// costToleranceRatio is the budget overshoot still scored as fully
// efficient; beyond it the score decays linearly, reaching zero at
// costZeroRatio times the budget.
const (
	costToleranceRatio = 1.2
	costZeroRatio      = 2.2
)

// Weights holds the four dimension weights.
type Weights struct {
	Relevance      float64 `json:"relevance"`
	CostEfficiency float64 `json:"cost_efficiency"`
	CapacityMatch  float64 `json:"capacity_match"`
	FeatureMatch   float64 `json:"feature_match"`
}

// DefaultWeights returns the standard weight split.
func DefaultWeights() Weights {
	return Weights{
		Relevance:      DefaultWeightRelevance,
		CostEfficiency: DefaultWeightCostEfficiency,
		CapacityMatch:  DefaultWeightCapacityMatch,
		FeatureMatch:   DefaultWeightFeatureMatch,
	}
}

// Sum returns the total of the four weights.
func (w Weights) Sum() float64 {
	return w.Relevance + w.CostEfficiency + w.CapacityMatch + w.FeatureMatch
}

// Config controls the scoring stage.
type Config struct {
	Weights        Weights `json:"weights"`
	DiversityBoost float64 `json:"diversity_boost"`
	TopK           int     `json:"top_k"`
}

// DefaultConfig returns the scoring defaults.
func DefaultConfig() Config {
	return Config{
		Weights:        DefaultWeights(),
		DiversityBoost: DefaultDiversityBoost,
		TopK:           DefaultTopK,
	}
}

// Validate rejects configurations that would corrupt the score blend.
func (c Config) Validate() error {
	if c.Weights.Relevance < 0 || c.Weights.CostEfficiency < 0 ||
		c.Weights.CapacityMatch < 0 || c.Weights.FeatureMatch < 0 {
		return fmt.Errorf("scoring weights must be non-negative, got %+v", c.Weights)
	}
	if sum := c.Weights.Sum(); math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.6f", sum)
	}
	if c.DiversityBoost < 0 {
		return fmt.Errorf("diversity boost must be non-negative, got %v", c.DiversityBoost)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top k must be positive, got %d", c.TopK)
	}
	return nil
}

// Scorer turns a reranked candidate list into final recommendations.
type Scorer struct {
	config Config
	logger *slog.Logger
}

// NewScorer creates a scorer. An invalid configuration is rejected here
// so no query ever runs against a broken weight blend.
func NewScorer(config Config, logger *slog.Logger) (*Scorer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{config: config, logger: logger}, nil
}

// Score computes the weighted blend for each candidate, applies the
// per-provider diversity boost, and returns the top candidates as
// recommendations. The relevance dimension is derived from list
// position: the head of the reranked list maps to 1.0 and the tail
// decays linearly to 0.1, mirroring a 10-to-1 judge scale. The input
// list is not mutated.
func (s *Scorer) Score(candidates types.RankedList, reqs *types.UserRequirements) []*types.Recommendation {
	if len(candidates) == 0 {
		return []*types.Recommendation{}
	}

	scored := make([]*scoredCandidate, 0, len(candidates))
	for i, c := range candidates {
		scored = append(scored, s.scoreOne(c, i, len(candidates), reqs))
	}

	s.applyDiversityBoost(scored)

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.boosted != b.boosted {
			return a.boosted > b.boosted
		}
		if a.breakdown.PreBoostScore != b.breakdown.PreBoostScore {
			return a.breakdown.PreBoostScore > b.breakdown.PreBoostScore
		}
		return a.candidate.ID < b.candidate.ID
	})

	if len(scored) > s.config.TopK {
		scored = scored[:s.config.TopK]
	}

	recommendations := make([]*types.Recommendation, 0, len(scored))
	for rank, sc := range scored {
		sc.candidate.Scores.FinalScore = sc.boosted
		rec := &types.Recommendation{
			Rank:       rank + 1,
			Candidate:  sc.candidate,
			FinalScore: sc.boosted,
			Breakdown:  sc.breakdown,
			Matches:    sc.matches,
			Concerns:   sc.concerns,
		}
		if svc := sc.candidate.Service; svc != nil {
			rec.SpecsSummary = svc.SpecsSummary()
			rec.PricingSummary = svc.PricingSummary()
		}
		recommendations = append(recommendations, rec)
	}

	s.logger.Debug("scored candidates",
		"candidates", len(candidates),
		"returned", len(recommendations))

	return recommendations
}

type scoredCandidate struct {
	candidate *types.Candidate
	breakdown types.DimensionBreakdown
	matches   []string
	concerns  []string
	boosted   float64
}

func (s *Scorer) scoreOne(c *types.Candidate, position, total int, reqs *types.UserRequirements) *scoredCandidate {
	candidate := c.Clone()

	relevance := relevanceFromPosition(position, total)
	candidate.Scores.RelevanceScore = relevance

	cost, costMatches, costConcerns := s.scoreCostEfficiency(candidate.Service, reqs)
	capacity, capMatches, capConcerns := s.scoreCapacityMatch(candidate.Service, reqs)
	features, featMatches, featConcerns := s.scoreFeatureMatch(candidate.Service, reqs)

	w := s.config.Weights
	final := w.Relevance*relevance +
		w.CostEfficiency*cost +
		w.CapacityMatch*capacity +
		w.FeatureMatch*features

	matches := make([]string, 0, len(costMatches)+len(capMatches)+len(featMatches)+1)
	matches = append(matches, costMatches...)
	matches = append(matches, capMatches...)
	matches = append(matches, featMatches...)
	matches = append(matches, preferenceMatches(candidate.Service, reqs)...)

	concerns := make([]string, 0, len(costConcerns)+len(capConcerns)+len(featConcerns))
	concerns = append(concerns, costConcerns...)
	concerns = append(concerns, capConcerns...)
	concerns = append(concerns, featConcerns...)

	return &scoredCandidate{
		candidate: candidate,
		breakdown: types.DimensionBreakdown{
			Relevance:      relevance,
			CostEfficiency: cost,
			CapacityMatch:  capacity,
			FeatureMatch:   features,
			PreBoostScore:  final,
		},
		matches:  matches,
		concerns: concerns,
		boosted:  final,
	}
}

// applyDiversityBoost grants each provider's single best candidate an
// additive bonus, capped at 1.0, so the final cut keeps multi-provider
// representation. Ties on the pre-boost score go to the earlier
// (better reranked) candidate.
func (s *Scorer) applyDiversityBoost(scored []*scoredCandidate) {
	if s.config.DiversityBoost <= 0 {
		return
	}

	best := make(map[types.Provider]*scoredCandidate)
	for _, sc := range scored {
		provider := sc.candidate.Provider
		if current, ok := best[provider]; !ok || sc.breakdown.PreBoostScore > current.breakdown.PreBoostScore {
			best[provider] = sc
		}
	}

	for _, sc := range best {
		boosted := math.Min(sc.breakdown.PreBoostScore+s.config.DiversityBoost, 1.0)
		sc.breakdown.DiversityBonus = boosted - sc.breakdown.PreBoostScore
		sc.boosted = boosted
	}
}

// relevanceFromPosition maps a reranked position onto [0.1, 1.0]: the
// head scores 1.0 and the tail 0.1, linear in between.
func relevanceFromPosition(position, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - 0.9*float64(position)/float64(total-1)
}

// scoreCostEfficiency scores the candidate against the stated budget.
// Costs up to 120% of budget score 1.0; past that the score decays
// linearly and reaches 0 at 220% of budget. With no budget stated, or
// no usable price on the candidate, the dimension is neutral.
func (s *Scorer) scoreCostEfficiency(svc *types.CloudService, reqs *types.UserRequirements) (float64, []string, []string) {
	budget, hasBudget := reqs.MonthlyBudget()
	if !hasBudget {
		return 1.0, nil, nil
	}

	if svc == nil || svc.Pricing == nil {
		return neutralScore, nil, []string{"pricing not published, cost scored neutrally"}
	}

	var dataSize float64
	if reqs != nil {
		dataSize = reqs.DataSizeGB
	}
	cost, ok := svc.Pricing.MonthlyCost(dataSize)
	if !ok {
		return neutralScore, nil, []string{"pricing unit not comparable, cost scored neutrally"}
	}

	ratio := cost / budget
	switch {
	case ratio <= 1.0:
		return 1.0, []string{fmt.Sprintf("estimated monthly cost $%.2f within budget", cost)}, nil
	case ratio <= costToleranceRatio:
		return 1.0, []string{fmt.Sprintf("estimated monthly cost $%.2f within budget tolerance", cost)}, nil
	case ratio >= costZeroRatio:
		return 0.0, nil, []string{fmt.Sprintf("estimated monthly cost $%.2f far exceeds budget $%.2f", cost, budget)}
	default:
		score := 1.0 - (ratio-costToleranceRatio)/(costZeroRatio-costToleranceRatio)
		return score, nil, []string{fmt.Sprintf("estimated monthly cost $%.2f exceeds budget $%.2f", cost, budget)}
	}
}

// scoreCapacityMatch scores the candidate's published capacity against
// the required capacity. The score is the worst per-dimension ratio of
// available to required, capped at 1.0; over-provisioning never
// penalizes. Dimensions the candidate does not publish count as
// neutral rather than failing.
func (s *Scorer) scoreCapacityMatch(svc *types.CloudService, reqs *types.UserRequirements) (float64, []string, []string) {
	needs := reqs.CapacityNeeds()
	if len(needs) == 0 {
		return 1.0, nil, nil
	}
	if svc == nil {
		return neutralScore, nil, []string{"capacity not published, scored neutrally"}
	}

	var matches, concerns []string
	worst := 1.0
	allMet := true
	for _, need := range needs {
		have := capacityValue(svc.Specs, need.Dimension)
		if have <= 0 {
			if neutralScore < worst {
				worst = neutralScore
			}
			allMet = false
			concerns = append(concerns, fmt.Sprintf("%s not published, scored neutrally", need.Dimension))
			continue
		}
		ratio := have / need.Required
		if ratio >= 1.0 {
			continue
		}
		allMet = false
		worst = math.Min(worst, ratio)
		concerns = append(concerns, fmt.Sprintf("%s %g below required %g", need.Dimension, have, need.Required))
	}

	if allMet {
		matches = append(matches, "meets all capacity requirements")
		return 1.0, matches, nil
	}
	return worst, matches, concerns
}

func capacityValue(specs types.TechnicalSpecs, dimension string) float64 {
	switch dimension {
	case "vcpu":
		return specs.VCPU
	case "memory_gb":
		return specs.MemoryGB
	case "storage_gb":
		return specs.StorageGB
	case "network_gbps":
		return specs.NetworkGbps
	default:
		return 0
	}
}

// scoreFeatureMatch scores the fraction of required features the
// candidate advertises. No required features means a perfect score.
func (s *Scorer) scoreFeatureMatch(svc *types.CloudService, reqs *types.UserRequirements) (float64, []string, []string) {
	required := reqs.RequiredFeatures()
	if len(required) == 0 {
		return 1.0, nil, nil
	}
	if svc == nil {
		return neutralScore, nil, []string{"features not published, scored neutrally"}
	}

	var matches, concerns []string
	present := 0
	for _, feature := range required {
		if svc.HasFeature(feature) {
			present++
			matches = append(matches, fmt.Sprintf("supports %s", feature))
		} else {
			concerns = append(concerns, fmt.Sprintf("missing %s", feature))
		}
	}

	return float64(present) / float64(len(required)), matches, concerns
}

// preferenceMatches reports soft preferences the candidate satisfies.
// Preferences steer explanations only; they never change the score.
func preferenceMatches(svc *types.CloudService, reqs *types.UserRequirements) []string {
	if svc == nil || reqs == nil {
		return nil
	}
	var matches []string
	if reqs.PreferredProvider != "" && svc.Provider == reqs.PreferredProvider {
		matches = append(matches, fmt.Sprintf("preferred provider %s", svc.Provider))
	}
	if reqs.PreferredCategory != "" && svc.Category == reqs.PreferredCategory {
		matches = append(matches, fmt.Sprintf("preferred category %s", svc.Category))
	}
	if reqs.PreferredRegion != "" && svc.Region == reqs.PreferredRegion {
		matches = append(matches, fmt.Sprintf("available in %s", svc.Region))
	}
	if reqs.DatabaseEngine != "" && svc.DatabaseEngine == reqs.DatabaseEngine {
		matches = append(matches, fmt.Sprintf("runs %s", svc.DatabaseEngine))
	}
	return matches
}
