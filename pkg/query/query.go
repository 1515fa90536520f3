// Package query turns free-text infrastructure requests into structured
// requirements. The LLM parser extracts a strict JSON requirements
// object; the keyword parser is a deterministic fallback covering the
// common vocabulary; the optional GLiNER extractor adds zero-shot span
// hints on top of either. Parsing is never fatal to a recommendation
// run: every parser degrades before it errors.
package query

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/nimbium/cirro/pkg/types"
)

// Result carries the parsed requirements plus the retrieval hints
// derived from them.
type Result struct {
	Requirements *types.UserRequirements `json:"requirements"`
	// ExpandedQuery augments the raw query with category and engine
	// synonyms. Sparse retrieval searches this instead of the raw text.
	ExpandedQuery string `json:"expanded_query,omitempty"`
	// Keywords are the salient query terms, at most ten.
	Keywords []string `json:"keywords,omitempty"`
}

// Parser extracts structured requirements from a raw query.
type Parser interface {
	Parse(ctx context.Context, query string) (*Result, error)
}

// categoryKeywords maps each service category to the query vocabulary
// that implies it. Single words match whole query tokens; phrases match
// as substrings.
var categoryKeywords = map[types.ServiceCategory][]string{
	types.CategoryCompute:    {"vm", "vms", "instance", "instances", "server", "servers", "compute", "ec2", "virtual machine"},
	types.CategoryDatabase:   {"database", "databases", "db", "sql", "mysql", "postgres", "postgresql", "rds", "dynamo", "dynamodb", "mongodb"},
	types.CategoryStorage:    {"storage", "s3", "bucket", "buckets", "blob", "object storage", "file storage"},
	types.CategoryServerless: {"serverless", "lambda", "function", "functions", "faas"},
	types.CategoryContainer:  {"container", "containers", "docker", "ecs", "fargate", "cloud run"},
	types.CategoryKubernetes: {"kubernetes", "k8s", "eks", "gke", "aks"},
	types.CategoryNetworking: {"network", "networking", "vpc", "load balancer", "cdn", "dns"},
	types.CategoryAnalytics:  {"analytics", "warehouse", "bigquery", "redshift", "data lake", "data warehouse"},
}

// categoryExpansions adds retrieval synonyms per detected category.
var categoryExpansions = map[types.ServiceCategory]string{
	types.CategoryCompute:    "virtual machine VM instance server EC2 Compute Engine",
	types.CategoryDatabase:   "database DB SQL relational RDS Cloud SQL Aurora",
	types.CategoryStorage:    "storage S3 GCS bucket object storage blob",
	types.CategoryServerless: "serverless Lambda Functions FaaS event-driven",
	types.CategoryContainer:  "container Docker ECS Fargate Cloud Run",
	types.CategoryKubernetes: "Kubernetes K8s EKS GKE AKS orchestration",
	types.CategoryNetworking: "networking VPC load balancer CDN DNS",
	types.CategoryAnalytics:  "analytics data warehouse BigQuery Redshift Synapse",
}

var (
	budgetPattern    = regexp.MustCompile(`\$\s*(\d+(?:,\d{3})*(?:\.\d+)?)|(\d+(?:,\d{3})*(?:\.\d+)?)\s*(?:dollars|usd)`)
	hourlyPattern    = regexp.MustCompile(`(?:per hour|/hour|/hr|hourly|an hour)`)
	dailyPattern     = regexp.MustCompile(`(?:per day|/day|daily|a day)`)
	userCountPattern = regexp.MustCompile(`(\d+(?:,\d{3})*)\s*(?:\+\s*)?(?:concurrent |daily |monthly |active )?users`)
)

// stopwords excluded from extracted keywords.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "for": {}, "i": {},
	"in": {}, "is": {}, "it": {}, "my": {}, "need": {}, "of": {},
	"on": {}, "or": {}, "our": {}, "that": {}, "the": {}, "to": {},
	"want": {}, "we": {}, "with": {}, "looking": {},
}

// KeywordParser is the deterministic parser: lowercase substring and
// regex matching over a fixed vocabulary. It never returns an error.
type KeywordParser struct{}

// NewKeywordParser creates the deterministic fallback parser.
func NewKeywordParser() *KeywordParser {
	return &KeywordParser{}
}

// Parse extracts whatever the fixed vocabulary can see in the query.
func (p *KeywordParser) Parse(ctx context.Context, query string) (*Result, error) {
	req := &types.UserRequirements{}
	lower := strings.ToLower(query)

	if category, ok := matchCategory(lower); ok {
		req.PreferredCategory = category
	}
	req.PreferredProvider = matchProvider(lower)

	if amount, ok := parseBudget(lower); ok {
		req.Budget = amount
		switch {
		case hourlyPattern.MatchString(lower):
			req.BudgetPeriod = "hour"
		case dailyPattern.MatchString(lower):
			req.BudgetPeriod = "day"
		default:
			req.BudgetPeriod = "month"
		}
	}

	if m := userCountPattern.FindStringSubmatch(lower); m != nil {
		if users, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			req.ExpectedUsers = users
		}
	}

	if strings.Contains(lower, "high availability") || strings.Contains(lower, "highly available") ||
		strings.Contains(lower, "multi-az") || strings.Contains(lower, "fault tolerant") {
		req.NeedsHighAvailability = true
	}
	if strings.Contains(lower, "auto-scal") || strings.Contains(lower, "autoscal") ||
		strings.Contains(lower, "auto scal") {
		req.NeedsAutoScaling = true
	}
	if strings.Contains(lower, "encrypt") {
		req.NeedsEncryption = true
	}

	req.DatabaseEngine = matchEngine(lower)

	return &Result{
		Requirements:  req,
		ExpandedQuery: expandQuery(query, req),
		Keywords:      extractKeywords(query),
	}, nil
}

// queryTerms tokenizes on non-alphanumeric runes, mirroring the sparse
// index tokenizer, so short keywords like "eks" cannot match inside
// unrelated words.
func queryTerms(lower string) map[string]struct{} {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		terms[f] = struct{}{}
	}
	return terms
}

// mentionsAny reports whether any needle appears in the query: phrases
// by substring, single words by whole token.
func mentionsAny(lower string, terms map[string]struct{}, needles []string) bool {
	for _, needle := range needles {
		if strings.ContainsRune(needle, ' ') {
			if strings.Contains(lower, needle) {
				return true
			}
			continue
		}
		if _, ok := terms[needle]; ok {
			return true
		}
	}
	return false
}

// categoryCheckOrder puts specific categories before general ones, so a
// Kubernetes query that also mentions containers or compute lands in
// kubernetes.
var categoryCheckOrder = []types.ServiceCategory{
	types.CategoryKubernetes, types.CategoryServerless,
	types.CategoryContainer, types.CategoryDatabase,
	types.CategoryStorage, types.CategoryAnalytics,
	types.CategoryNetworking, types.CategoryCompute,
}

// matchCategory returns the first category whose vocabulary appears in
// the lowercased text.
func matchCategory(lower string) (types.ServiceCategory, bool) {
	terms := queryTerms(lower)
	for _, category := range categoryCheckOrder {
		if mentionsAny(lower, terms, categoryKeywords[category]) {
			return category, true
		}
	}
	return "", false
}

// matchProvider maps provider mentions to canonical identifiers.
func matchProvider(lower string) types.Provider {
	terms := queryTerms(lower)
	has := func(t string) bool {
		_, ok := terms[t]
		return ok
	}
	switch {
	case has("aws") || has("amazon"):
		return types.ProviderAWS
	case has("gcp") || has("google"):
		return types.ProviderGCP
	case has("azure") || has("microsoft"):
		return types.ProviderAzure
	}
	return ""
}

var knownEngines = []string{"postgresql", "postgres", "mysql", "mariadb", "mongodb", "redis", "sqlserver"}

// matchEngine returns the first known database engine mentioned in the
// lowercased text, or empty.
func matchEngine(lower string) string {
	if strings.Contains(lower, "sql server") {
		return "sqlserver"
	}
	for _, engine := range knownEngines {
		if strings.Contains(lower, engine) {
			return engine
		}
	}
	return ""
}

func parseBudget(lower string) (float64, bool) {
	m := budgetPattern.FindStringSubmatch(lower)
	if m == nil {
		return 0, false
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}

// expandQuery appends category and engine synonyms to the raw query so
// sparse retrieval matches services described with different vocabulary.
func expandQuery(query string, req *types.UserRequirements) string {
	parts := []string{query}
	if expansion, ok := categoryExpansions[req.PreferredCategory]; ok {
		parts = append(parts, expansion)
	}
	if req.DatabaseEngine != "" {
		parts = append(parts, req.DatabaseEngine+" database")
	}
	return strings.Join(parts, " ")
}

// extractKeywords returns up to ten salient lowercase terms from the
// query, in order of first occurrence.
func extractKeywords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	keywords := make([]string, 0, 10)
	for _, f := range fields {
		f = strings.Trim(f, `.,;:!?"'()`)
		if len(f) < 2 {
			continue
		}
		if _, skip := stopwords[f]; skip {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		keywords = append(keywords, f)
		if len(keywords) == 10 {
			break
		}
	}
	return keywords
}

// sanitizeRequirements drops enum values outside the known sets and
// normalizes the budget period. LLM output passes through here so a
// creative model cannot inject unknown providers or categories.
func sanitizeRequirements(req *types.UserRequirements) {
	if req.PreferredProvider != "" {
		known := false
		for _, p := range types.KnownProviders() {
			if req.PreferredProvider == p {
				known = true
				break
			}
		}
		if !known {
			req.PreferredProvider = ""
		}
	}

	if req.PreferredCategory != "" {
		known := false
		for _, c := range types.KnownCategories() {
			if req.PreferredCategory == c {
				known = true
				break
			}
		}
		if !known {
			req.PreferredCategory = ""
		}
	}

	switch strings.ToLower(req.BudgetPeriod) {
	case "hour", "hourly":
		req.BudgetPeriod = "hour"
	case "day", "daily":
		req.BudgetPeriod = "day"
	case "":
		// Leave unset; MonthlyBudget treats it as monthly.
	default:
		req.BudgetPeriod = "month"
	}

	if req.Budget < 0 {
		req.Budget = 0
	}
}
