package matcher

// Tier identifies the matching strategy that produced a candidate.
type Tier string

const (
	TierExact          Tier = "exact"
	TierAlias          Tier = "alias"
	TierFuzzy          Tier = "fuzzy"
	TierContextBoosted Tier = "context-boosted"
)

// rank orders tiers for merging; higher wins.
func (t Tier) rank() int {
	switch t {
	case TierExact:
		return 3
	case TierAlias:
		return 2
	case TierContextBoosted:
		return 1
	case TierFuzzy:
		return 0
	}
	return -1
}

// Candidate is one ranked brand identity resolved from a transcript.
// Candidates are ephemeral: produced per matching call and carried only as
// far as the validation report.
type Candidate struct {
	Brand      string                 `json:"brand"`
	Confidence float64                `json:"confidence"` // always within [0, 1]
	Tier       Tier                   `json:"tier"`
	Matched    string                 `json:"matched"` // substring or token that hit
	Features   map[string]interface{} `json:"features,omitempty"`
}

// Config holds the matcher tunables.
type Config struct {
	// FuzzyMinSimilarity is the minimum normalized Levenshtein similarity
	// for a fuzzy candidate to survive.
	FuzzyMinSimilarity float64

	// BoostPerKeyword is the base confidence boost added per matched
	// context keyword. The entry's keyword weight scales it up to
	// MaxBoostPerKeyword.
	BoostPerKeyword    float64
	MaxBoostPerKeyword float64
}

// DefaultConfig returns the recommended matcher thresholds.
func DefaultConfig() Config {
	return Config{
		FuzzyMinSimilarity: 0.5,
		BoostPerKeyword:    0.02,
		MaxBoostPerKeyword: 0.05,
	}
}

// Confidence bands per tier. Exact matches score [0.80, 1.00] by
// match-length ratio, aliases [0.60, 0.80], fuzzy [0.40, 0.70] by
// similarity. Context boosts may push any band up to 1.0.
const (
	exactBase  = 0.80
	exactSpan  = 0.20
	aliasBase  = 0.60
	aliasSpan  = 0.20
	fuzzyBase  = 0.40
	fuzzySpan  = 0.30
	maxBoosted = 1.0
)
