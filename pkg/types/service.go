package types

import (
	"fmt"
	"strings"
)

// Provider identifies a cloud provider.
type Provider string

const (
	// ProviderAWS is Amazon Web Services.
	ProviderAWS Provider = "aws"
	// ProviderGCP is Google Cloud Platform.
	ProviderGCP Provider = "gcp"
	// ProviderAzure is Microsoft Azure.
	ProviderAzure Provider = "azure"
)

// KnownProviders returns the providers the catalog can hold, in stable order.
func KnownProviders() []Provider {
	return []Provider{ProviderAWS, ProviderGCP, ProviderAzure}
}

// ServiceCategory classifies a cloud service.
type ServiceCategory string

const (
	CategoryCompute    ServiceCategory = "compute"
	CategoryDatabase   ServiceCategory = "database"
	CategoryStorage    ServiceCategory = "storage"
	CategoryServerless ServiceCategory = "serverless"
	CategoryContainer  ServiceCategory = "container"
	CategoryKubernetes ServiceCategory = "kubernetes"
	CategoryNetworking ServiceCategory = "networking"
	CategoryAnalytics  ServiceCategory = "analytics"
)

// KnownCategories returns the recognized service categories, in stable order.
func KnownCategories() []ServiceCategory {
	return []ServiceCategory{
		CategoryCompute, CategoryDatabase, CategoryStorage,
		CategoryServerless, CategoryContainer, CategoryKubernetes,
		CategoryNetworking, CategoryAnalytics,
	}
}

// TechnicalSpecs holds the capacity dimensions of a service offering.
// Zero means the dimension is not published for this offering.
type TechnicalSpecs struct {
	VCPU        float64 `json:"vcpu,omitempty"`
	MemoryGB    float64 `json:"memory_gb,omitempty"`
	StorageGB   float64 `json:"storage_gb,omitempty"`
	NetworkGbps float64 `json:"network_gbps,omitempty"`
}

// PricingUnit is the billing unit of a price point.
type PricingUnit string

const (
	UnitHour    PricingUnit = "hour"
	UnitDay     PricingUnit = "day"
	UnitMonth   PricingUnit = "month"
	UnitGBMonth PricingUnit = "gb-month"
)

// HoursPerMonth is the conversion factor used for hourly price points.
const HoursPerMonth = 730

// PricingInfo is the lowest published price point for a service offering.
type PricingInfo struct {
	Amount   float64     `json:"amount"`
	Currency string      `json:"currency,omitempty"`
	Unit     PricingUnit `json:"unit"`
	FreeTier bool        `json:"free_tier,omitempty"`
}

// MonthlyCost estimates the monthly cost of this price point. For
// gb-month pricing the stated data size scales the price; with no data
// size stated the raw amount is used. The second return is false when
// the unit is unknown or no price is published, in which case the
// scorer treats cost as a missing dimension.
func (p *PricingInfo) MonthlyCost(dataSizeGB float64) (float64, bool) {
	if p == nil || p.Amount < 0 {
		return 0, false
	}
	switch p.Unit {
	case UnitHour:
		return p.Amount * HoursPerMonth, true
	case UnitDay:
		return p.Amount * 30, true
	case UnitMonth:
		return p.Amount, true
	case UnitGBMonth:
		if dataSizeGB > 0 {
			return p.Amount * dataSizeGB, true
		}
		return p.Amount, true
	default:
		return 0, false
	}
}

// CloudService is the unified service schema: one normalized record per
// service offering, as produced by the upstream collectors. The pipeline
// treats it as an opaque, read-only payload; only the scorer and the
// retrieval supplement look inside.
type CloudService struct {
	ID          string          `json:"id"`
	Provider    Provider        `json:"provider"`
	Name        string          `json:"name"`
	ServiceType string          `json:"service_type,omitempty"`
	Category    ServiceCategory `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`

	Specs   TechnicalSpecs `json:"specs"`
	Pricing *PricingInfo   `json:"pricing,omitempty"`

	Features []string `json:"features,omitempty"`
	UseCases []string `json:"use_cases,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	Region         string `json:"region,omitempty"`
	DatabaseEngine string `json:"database_engine,omitempty"`

	SupportsAutoScaling bool `json:"supports_auto_scaling,omitempty"`
	SupportsMultiAZ     bool `json:"supports_multi_az,omitempty"`
	SupportsEncryption  bool `json:"supports_encryption,omitempty"`

	// Embedding is the stored dense vector for this record, populated at
	// ingest time when an embedder is configured.
	Embedding []float32 `json:"embedding,omitempty"`
}

// Validate checks if the CloudService has all required fields set.
func (s *CloudService) Validate() error {
	if s.ID == "" {
		return ErrEmptyID
	}
	if s.Name == "" {
		return ErrEmptyName
	}
	if s.Provider == "" {
		return ErrEmptyProvider
	}
	return nil
}

// Candidate wraps the service as a pipeline candidate with empty scores.
func (s *CloudService) Candidate() *Candidate {
	return &Candidate{
		ID:       s.ID,
		Provider: s.Provider,
		Service:  s,
	}
}

// Document returns the searchable text for this record, used both for
// sparse indexing and as the passage shown to pairwise judges.
func (s *CloudService) Document() string {
	parts := []string{s.Name}
	if s.ServiceType != "" {
		parts = append(parts, s.ServiceType)
	}
	if s.Category != "" {
		parts = append(parts, string(s.Category))
	}
	if s.Description != "" {
		parts = append(parts, s.Description)
	}
	if len(s.Features) > 0 {
		parts = append(parts, strings.Join(s.Features, " "))
	}
	if len(s.UseCases) > 0 {
		parts = append(parts, strings.Join(s.UseCases, " "))
	}
	if len(s.Tags) > 0 {
		parts = append(parts, strings.Join(s.Tags, " "))
	}
	if s.DatabaseEngine != "" {
		parts = append(parts, s.DatabaseEngine)
	}
	return strings.Join(parts, " ")
}

// HasFeature reports whether the service advertises the named feature,
// checking both the structured flags and the free-form feature list.
func (s *CloudService) HasFeature(feature string) bool {
	switch feature {
	case FeatureHighAvailability:
		if s.SupportsMultiAZ {
			return true
		}
	case FeatureAutoScaling:
		if s.SupportsAutoScaling {
			return true
		}
	case FeatureEncryption:
		if s.SupportsEncryption {
			return true
		}
	}
	needle := normalizeFeature(feature)
	for _, f := range s.Features {
		if normalizeFeature(f) == needle {
			return true
		}
	}
	return false
}

// SpecsSummary renders the capacity dimensions as a short human-readable line.
func (s *CloudService) SpecsSummary() string {
	var parts []string
	if s.Specs.VCPU > 0 {
		parts = append(parts, fmt.Sprintf("%g vCPU", s.Specs.VCPU))
	}
	if s.Specs.MemoryGB > 0 {
		parts = append(parts, fmt.Sprintf("%g GB memory", s.Specs.MemoryGB))
	}
	if s.Specs.StorageGB > 0 {
		parts = append(parts, fmt.Sprintf("%g GB storage", s.Specs.StorageGB))
	}
	if s.Specs.NetworkGbps > 0 {
		parts = append(parts, fmt.Sprintf("%g Gbps network", s.Specs.NetworkGbps))
	}
	if len(parts) == 0 {
		return "specs not published"
	}
	return strings.Join(parts, ", ")
}

// PricingSummary renders the price point as a short human-readable line.
func (s *CloudService) PricingSummary() string {
	if s.Pricing == nil {
		return "pricing not published"
	}
	currency := s.Pricing.Currency
	if currency == "" {
		currency = "USD"
	}
	line := fmt.Sprintf("%.4g %s per %s", s.Pricing.Amount, currency, s.Pricing.Unit)
	if s.Pricing.FreeTier {
		line += " (free tier available)"
	}
	return line
}

// Feature names shared between UserRequirements and CloudService.
const (
	FeatureHighAvailability = "high_availability"
	FeatureAutoScaling      = "auto_scaling"
	FeatureEncryption       = "encryption"
)

func normalizeFeature(f string) string {
	f = strings.ToLower(strings.TrimSpace(f))
	f = strings.ReplaceAll(f, "-", "_")
	f = strings.ReplaceAll(f, " ", "_")
	return f
}
