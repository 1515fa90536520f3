package types

// UserRequirements carries the structured constraints extracted from a
// user query or supplied directly by an API caller. All fields are
// optional; zero values mean the dimension is unconstrained.
type UserRequirements struct {
	// Budget is the monthly budget. BudgetPeriod defaults to monthly;
	// hourly budgets are converted when read through MonthlyBudget.
	Budget       float64 `json:"budget,omitempty"`
	BudgetPeriod string  `json:"budget_period,omitempty"`

	// Capacity needs. Zero means no requirement on that dimension.
	MinVCPU        float64 `json:"min_vcpu,omitempty"`
	MinMemoryGB    float64 `json:"min_memory_gb,omitempty"`
	MinStorageGB   float64 `json:"min_storage_gb,omitempty"`
	MinNetworkGbps float64 `json:"min_network_gbps,omitempty"`

	// DataSizeGB scales gb-month price points when estimating cost.
	DataSizeGB float64 `json:"data_size_gb,omitempty"`

	// ExpectedUsers is the stated user count. It is informational:
	// judges see it when weighing capacity fit, but no score depends
	// on it.
	ExpectedUsers int `json:"expected_users,omitempty"`

	// Feature toggles.
	NeedsHighAvailability bool `json:"needs_high_availability,omitempty"`
	NeedsAutoScaling      bool `json:"needs_auto_scaling,omitempty"`
	NeedsEncryption       bool `json:"needs_encryption,omitempty"`

	// ExtraFeatures lists free-form feature names matched against the
	// service feature list.
	ExtraFeatures []string `json:"extra_features,omitempty"`

	// Soft preferences. They steer retrieval and explanations but are
	// never hard filters.
	PreferredProvider Provider        `json:"preferred_provider,omitempty"`
	PreferredCategory ServiceCategory `json:"preferred_category,omitempty"`
	PreferredRegion   string          `json:"preferred_region,omitempty"`
	DatabaseEngine    string          `json:"database_engine,omitempty"`
}

// MonthlyBudget returns the budget normalized to a monthly figure. The
// second return is false when no budget was stated.
func (r *UserRequirements) MonthlyBudget() (float64, bool) {
	if r == nil || r.Budget <= 0 {
		return 0, false
	}
	switch r.BudgetPeriod {
	case "hour", "hourly":
		return r.Budget * HoursPerMonth, true
	case "day", "daily":
		return r.Budget * 30, true
	default:
		return r.Budget, true
	}
}

// RequiredFeatures returns the full set of required feature names, the
// structured toggles first and then the free-form extras.
func (r *UserRequirements) RequiredFeatures() []string {
	if r == nil {
		return nil
	}
	var features []string
	if r.NeedsHighAvailability {
		features = append(features, FeatureHighAvailability)
	}
	if r.NeedsAutoScaling {
		features = append(features, FeatureAutoScaling)
	}
	if r.NeedsEncryption {
		features = append(features, FeatureEncryption)
	}
	features = append(features, r.ExtraFeatures...)
	return features
}

// HasCapacityNeeds reports whether any capacity dimension is constrained.
func (r *UserRequirements) HasCapacityNeeds() bool {
	if r == nil {
		return false
	}
	return r.MinVCPU > 0 || r.MinMemoryGB > 0 || r.MinStorageGB > 0 || r.MinNetworkGbps > 0
}

// CapacityNeeds returns the constrained capacity dimensions as
// (name, required) pairs, in stable order.
func (r *UserRequirements) CapacityNeeds() []CapacityNeed {
	if r == nil {
		return nil
	}
	var needs []CapacityNeed
	if r.MinVCPU > 0 {
		needs = append(needs, CapacityNeed{Dimension: "vcpu", Required: r.MinVCPU})
	}
	if r.MinMemoryGB > 0 {
		needs = append(needs, CapacityNeed{Dimension: "memory_gb", Required: r.MinMemoryGB})
	}
	if r.MinStorageGB > 0 {
		needs = append(needs, CapacityNeed{Dimension: "storage_gb", Required: r.MinStorageGB})
	}
	if r.MinNetworkGbps > 0 {
		needs = append(needs, CapacityNeed{Dimension: "network_gbps", Required: r.MinNetworkGbps})
	}
	return needs
}

// CapacityNeed is one constrained capacity dimension.
type CapacityNeed struct {
	Dimension string  `json:"dimension"`
	Required  float64 `json:"required"`
}
