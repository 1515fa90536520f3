package types

import (
	"math"
	"strings"
	"testing"
)

func TestCloudServiceValidation(t *testing.T) {
	tests := []struct {
		name    string
		service CloudService
		wantErr error
	}{
		{
			name: "valid service",
			service: CloudService{
				ID:       "aws-rds-mysql-medium",
				Provider: ProviderAWS,
				Name:     "RDS MySQL db.m5.large",
			},
			wantErr: nil,
		},
		{
			name: "empty id",
			service: CloudService{
				Provider: ProviderAWS,
				Name:     "RDS MySQL db.m5.large",
			},
			wantErr: ErrEmptyID,
		},
		{
			name: "empty name",
			service: CloudService{
				ID:       "aws-rds-mysql-medium",
				Provider: ProviderAWS,
			},
			wantErr: ErrEmptyName,
		},
		{
			name: "empty provider",
			service: CloudService{
				ID:   "aws-rds-mysql-medium",
				Name: "RDS MySQL db.m5.large",
			},
			wantErr: ErrEmptyProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.service.Validate()
			if err != tt.wantErr {
				t.Errorf("CloudService.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMonthlyCost(t *testing.T) {
	tests := []struct {
		name       string
		pricing    *PricingInfo
		dataSizeGB float64
		want       float64
		wantOK     bool
	}{
		{
			name:    "hourly converts with 730 hours",
			pricing: &PricingInfo{Amount: 0.10, Unit: UnitHour},
			want:    73.0,
			wantOK:  true,
		},
		{
			name:    "daily converts with 30 days",
			pricing: &PricingInfo{Amount: 2.0, Unit: UnitDay},
			want:    60.0,
			wantOK:  true,
		},
		{
			name:    "monthly passes through",
			pricing: &PricingInfo{Amount: 45.0, Unit: UnitMonth},
			want:    45.0,
			wantOK:  true,
		},
		{
			name:       "gb-month scales by data size",
			pricing:    &PricingInfo{Amount: 0.023, Unit: UnitGBMonth},
			dataSizeGB: 1000,
			want:       23.0,
			wantOK:     true,
		},
		{
			name:    "gb-month without data size uses raw amount",
			pricing: &PricingInfo{Amount: 0.023, Unit: UnitGBMonth},
			want:    0.023,
			wantOK:  true,
		},
		{
			name:    "unknown unit",
			pricing: &PricingInfo{Amount: 5.0, Unit: "request"},
			wantOK:  false,
		},
		{
			name:   "nil pricing",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.pricing.MonthlyCost(tt.dataSizeGB)
			if ok != tt.wantOK {
				t.Fatalf("MonthlyCost() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("MonthlyCost() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDocumentContainsSearchableFields(t *testing.T) {
	svc := CloudService{
		ID:             "gcp-cloud-sql-postgres",
		Provider:       ProviderGCP,
		Name:           "Cloud SQL for PostgreSQL",
		ServiceType:    "managed database",
		Category:       CategoryDatabase,
		Description:    "Fully managed relational database service",
		Features:       []string{"automated backups", "point-in-time recovery"},
		UseCases:       []string{"web applications"},
		Tags:           []string{"sql", "postgres"},
		DatabaseEngine: "postgresql",
	}

	doc := svc.Document()
	for _, want := range []string{
		"Cloud SQL for PostgreSQL",
		"managed database",
		"database",
		"Fully managed relational database service",
		"automated backups",
		"web applications",
		"postgres",
		"postgresql",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("Document() missing %q in %q", want, doc)
		}
	}
}

func TestHasFeature(t *testing.T) {
	svc := CloudService{
		ID:                  "azure-vm-d2s",
		Provider:            ProviderAzure,
		Name:                "Azure VM D2s v3",
		Features:            []string{"Spot Pricing", "accelerated-networking"},
		SupportsAutoScaling: true,
		SupportsEncryption:  true,
	}

	tests := []struct {
		name    string
		feature string
		want    bool
	}{
		{name: "structured flag", feature: FeatureAutoScaling, want: true},
		{name: "structured flag encryption", feature: FeatureEncryption, want: true},
		{name: "structured flag not set", feature: FeatureHighAvailability, want: false},
		{name: "free-form exact", feature: "spot_pricing", want: true},
		{name: "free-form case insensitive with dashes", feature: "Accelerated Networking", want: true},
		{name: "missing feature", feature: "gpu", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.HasFeature(tt.feature); got != tt.want {
				t.Errorf("HasFeature(%q) = %v, want %v", tt.feature, got, tt.want)
			}
		})
	}
}
