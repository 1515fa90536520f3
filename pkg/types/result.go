package types

import "time"

// DimensionBreakdown records the per-dimension scores behind a final score.
type DimensionBreakdown struct {
	Relevance      float64 `json:"relevance"`
	CostEfficiency float64 `json:"cost_efficiency"`
	CapacityMatch  float64 `json:"capacity_match"`
	FeatureMatch   float64 `json:"feature_match"`

	// PreBoostScore is the weighted combination before any diversity
	// boost; DiversityBonus is the boost actually applied.
	PreBoostScore  float64 `json:"pre_boost_score"`
	DiversityBonus float64 `json:"diversity_bonus,omitempty"`
}

// Recommendation is one ranked entry of a pipeline result.
type Recommendation struct {
	Rank       int                `json:"rank"`
	Candidate  *Candidate         `json:"candidate"`
	FinalScore float64            `json:"final_score"`
	Breakdown  DimensionBreakdown `json:"breakdown"`

	// Matches and Concerns explain the score in requirement terms.
	Matches  []string `json:"matches,omitempty"`
	Concerns []string `json:"concerns,omitempty"`

	SpecsSummary   string `json:"specs_summary,omitempty"`
	PricingSummary string `json:"pricing_summary,omitempty"`
}

// PipelineCounters counts what each stage consumed and produced.
type PipelineCounters struct {
	DenseCandidates    int `json:"dense_candidates"`
	SparseCandidates   int `json:"sparse_candidates"`
	FusedCandidates    int `json:"fused_candidates"`
	RerankedCandidates int `json:"reranked_candidates"`
	OracleCalls        int `json:"oracle_calls"`
	Inconclusive       int `json:"inconclusive"`
}

// StageTimings records wall-clock duration per pipeline stage.
type StageTimings struct {
	Fusion    time.Duration `json:"fusion"`
	Reranking time.Duration `json:"reranking"`
	Scoring   time.Duration `json:"scoring"`
	Total     time.Duration `json:"total"`
}

// PipelineResult is the full output of one recommendation run.
type PipelineResult struct {
	Query           string            `json:"query"`
	Requirements    *UserRequirements `json:"requirements,omitempty"`
	Recommendations []*Recommendation `json:"recommendations"`
	Counters        PipelineCounters  `json:"counters"`
	Timings         StageTimings      `json:"timings"`

	// Summary is the optional natural-language wrap-up.
	Summary string `json:"summary,omitempty"`
}

// Empty reports whether the run produced no recommendations.
func (r *PipelineResult) Empty() bool {
	return r == nil || len(r.Recommendations) == 0
}

// Top returns the highest-ranked recommendation, or nil when empty.
func (r *PipelineResult) Top() *Recommendation {
	if r.Empty() {
		return nil
	}
	return r.Recommendations[0]
}
