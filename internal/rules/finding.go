package rules

import "fmt"

// Severity grades a finding. Only error findings gate promotion.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Layer names the validation layer that produced a finding. Layers run in a
// fixed order and never short-circuit, so a single pass surfaces every
// problem at once.
type Layer string

const (
	LayerSchema      Layer = "schema"
	LayerBusiness    Layer = "business"
	LayerIntegrity   Layer = "integrity"
	LayerCrossSystem Layer = "cross-system"
)

// Layers is the fixed evaluation order.
var Layers = []Layer{LayerSchema, LayerBusiness, LayerIntegrity, LayerCrossSystem}

// Finding is one severity-tagged observation about a record. Findings are
// owned by the validation report that carries them.
type Finding struct {
	Rule     string                 `json:"rule"`
	Layer    Layer                  `json:"layer"`
	Severity Severity               `json:"severity"`
	Message  string                 `json:"message"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s/%s] %s: %s", f.Layer, f.Severity, f.Rule, f.Message)
}

// Rule names, grouped by the error taxonomy they report under.
const (
	// Schema errors
	RuleMissingField     = "missing-field"
	RuleInvalidSource    = "invalid-source"
	RuleAmountNegative   = "amount-negative"
	RuleQuantityInvalid  = "quantity-invalid"
	RuleTimestampMissing = "timestamp-missing"

	// Business rule violations
	RuleAmountAboveMax     = "amount-above-max"
	RuleAmountUnusual      = "amount-unusually-high"
	RuleTranscriptTooLong  = "transcript-too-long"
	RuleTranscriptAtBounds = "transcript-near-limit"

	// Integrity mismatches
	RuleBrandFieldMismatch = "brand-field-mismatch"
	RuleChecksumMismatch   = "checksum-mismatch"
	RuleAmbiguousMatch     = "ambiguous-match"

	// Cross-system outcomes
	RuleUnknownStore           = "unknown-store"
	RulePermissionDenied       = "permission-denied"
	RuleCrossSystemUnavailable = "cross-system-unavailable"
)

// CountBySeverity tallies findings per severity.
func CountBySeverity(findings []Finding) (errors, warnings, infos int) {
	for _, f := range findings {
		switch f.Severity {
		case SeverityError:
			errors++
		case SeverityWarning:
			warnings++
		case SeverityInfo:
			infos++
		}
	}
	return
}
