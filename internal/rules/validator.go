package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	playground "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/scout-edge/brandgate/internal/lexicon"
	"github.com/scout-edge/brandgate/internal/matcher"
	"github.com/scout-edge/brandgate/internal/record"
	"github.com/scout-edge/brandgate/internal/registry"
)

// Config holds the thresholds the rule layers consult. It is immutable for
// the lifetime of a validator.
type Config struct {
	BusinessAmountMax  decimal.Decimal
	BusinessAmountSoft decimal.Decimal
	TranscriptMaxLen   int
	CrossSystemTimeout time.Duration
}

// DefaultConfig returns the thresholds used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BusinessAmountMax:  decimal.NewFromInt(10000),
		BusinessAmountSoft: decimal.NewFromInt(5000),
		TranscriptMaxLen:   2000,
		CrossSystemTimeout: 2 * time.Second,
	}
}

// Validator runs the four ordered rule layers over a transaction record.
// Layers are independent: an earlier layer's errors never stop a later
// layer from running.
type Validator struct {
	cfg      Config
	reg      registry.StoreRegistry
	validate *playground.Validate
}

// New creates a validator. reg may be nil, in which case the cross-system
// layer is skipped entirely (offline mode).
func New(cfg Config, reg registry.StoreRegistry) *Validator {
	if cfg.TranscriptMaxLen <= 0 {
		cfg.TranscriptMaxLen = DefaultConfig().TranscriptMaxLen
	}
	if cfg.CrossSystemTimeout <= 0 {
		cfg.CrossSystemTimeout = DefaultConfig().CrossSystemTimeout
	}
	if cfg.BusinessAmountMax.IsZero() {
		cfg.BusinessAmountMax = DefaultConfig().BusinessAmountMax
	}
	if cfg.BusinessAmountSoft.IsZero() {
		cfg.BusinessAmountSoft = DefaultConfig().BusinessAmountSoft
	}
	return &Validator{
		cfg:      cfg,
		reg:      reg,
		validate: playground.New(),
	}
}

// Validate runs every layer and returns the combined findings in layer
// order. The record is never mutated. A non-nil error means the pass was
// cancelled mid-evaluation; the record has no terminal verdict and must be
// discarded and retried, not reported.
func (v *Validator) Validate(ctx context.Context, rec *record.TransactionRecord, matches []matcher.Candidate) ([]Finding, error) {
	findings := []Finding{}
	findings = append(findings, v.schemaLayer(rec)...)
	findings = append(findings, v.businessLayer(rec)...)
	findings = append(findings, v.integrityLayer(rec, matches)...)

	crossFindings, err := v.crossSystemLayer(ctx, rec)
	if err != nil {
		return nil, err
	}
	findings = append(findings, crossFindings...)
	return findings, nil
}

// schemaLayer checks required fields are present and correctly typed.
func (v *Validator) schemaLayer(rec *record.TransactionRecord) []Finding {
	var findings []Finding

	if err := v.validate.Struct(rec); err != nil {
		var verrs playground.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				findings = append(findings, Finding{
					Rule:     RuleMissingField,
					Layer:    LayerSchema,
					Severity: SeverityError,
					Message:  fmt.Sprintf("required field %s is missing or empty", fe.Field()),
					Payload:  map[string]interface{}{"field": fe.Field(), "tag": fe.Tag()},
				})
			}
		}
	}

	if rec.Source != "" && !rec.Source.Valid() {
		findings = append(findings, Finding{
			Rule:     RuleInvalidSource,
			Layer:    LayerSchema,
			Severity: SeverityError,
			Message:  fmt.Sprintf("unrecognized source tag %q", rec.Source),
			Payload:  map[string]interface{}{"actual": string(rec.Source)},
		})
	}

	if rec.Amount.IsNegative() {
		findings = append(findings, Finding{
			Rule:     RuleAmountNegative,
			Layer:    LayerSchema,
			Severity: SeverityError,
			Message:  "amount must be non-negative",
			Payload:  map[string]interface{}{"expected": ">= 0", "actual": rec.Amount.String()},
		})
	}

	// Quantity is optional on the wire; zero means unspecified.
	if rec.Quantity < 0 {
		findings = append(findings, Finding{
			Rule:     RuleQuantityInvalid,
			Layer:    LayerSchema,
			Severity: SeverityError,
			Message:  "quantity must be an integer >= 1",
			Payload:  map[string]interface{}{"expected": ">= 1", "actual": rec.Quantity},
		})
	}

	if rec.Timestamp.IsZero() {
		findings = append(findings, Finding{
			Rule:     RuleTimestampMissing,
			Layer:    LayerSchema,
			Severity: SeverityError,
			Message:  "timestamp is missing or unparseable",
		})
	}

	return findings
}

// businessLayer applies domain thresholds: hard ceilings are errors, soft
// ones warnings.
func (v *Validator) businessLayer(rec *record.TransactionRecord) []Finding {
	var findings []Finding

	if rec.Amount.GreaterThan(v.cfg.BusinessAmountMax) {
		findings = append(findings, Finding{
			Rule:     RuleAmountAboveMax,
			Layer:    LayerBusiness,
			Severity: SeverityError,
			Message:  "amount exceeds the per-tenant maximum",
			Payload: map[string]interface{}{
				"expected": "<= " + v.cfg.BusinessAmountMax.String(),
				"actual":   rec.Amount.String(),
			},
		})
	} else if rec.Amount.GreaterThan(v.cfg.BusinessAmountSoft) {
		findings = append(findings, Finding{
			Rule:     RuleAmountUnusual,
			Layer:    LayerBusiness,
			Severity: SeverityWarning,
			Message:  "amount is unusually high but still plausible",
			Payload: map[string]interface{}{
				"threshold": v.cfg.BusinessAmountSoft.String(),
				"actual":    rec.Amount.String(),
			},
		})
	}

	if n := len(rec.Transcript); n > v.cfg.TranscriptMaxLen {
		findings = append(findings, Finding{
			Rule:     RuleTranscriptTooLong,
			Layer:    LayerBusiness,
			Severity: SeverityError,
			Message:  "transcript exceeds the maximum length",
			Payload: map[string]interface{}{
				"expected": fmt.Sprintf("<= %d", v.cfg.TranscriptMaxLen),
				"actual":   n,
			},
		})
	} else if n > v.cfg.TranscriptMaxLen*4/5 {
		findings = append(findings, Finding{
			Rule:     RuleTranscriptAtBounds,
			Layer:    LayerBusiness,
			Severity: SeverityWarning,
			Message:  "transcript is close to the maximum length",
			Payload:  map[string]interface{}{"length": n},
		})
	}

	return findings
}

// integrityLayer checks cross-field consistency between the structured
// fields, the matcher output, and the payload checksum.
func (v *Validator) integrityLayer(rec *record.TransactionRecord, matches []matcher.Candidate) []Finding {
	var findings []Finding

	if rec.BrandName != "" && len(matches) > 0 {
		expected := lexicon.Normalize(rec.BrandName)
		actual := lexicon.Normalize(matches[0].Brand)
		if expected != actual {
			findings = append(findings, Finding{
				Rule:     RuleBrandFieldMismatch,
				Layer:    LayerIntegrity,
				Severity: SeverityWarning,
				Message:  "structured brand field disagrees with the top brand match",
				Payload: map[string]interface{}{
					"expected": rec.BrandName,
					"actual":   matches[0].Brand,
					"tier":     string(matches[0].Tier),
				},
			})
		}
	}

	if rec.Checksum != "" {
		computed := record.PayloadChecksum(rec)
		if computed != rec.Checksum {
			findings = append(findings, Finding{
				Rule:     RuleChecksumMismatch,
				Layer:    LayerIntegrity,
				Severity: SeverityError,
				Message:  "recorded checksum does not match the recomputed payload checksum",
				Payload: map[string]interface{}{
					"expected": computed,
					"actual":   rec.Checksum,
				},
			})
		}
	}

	// Ambiguity is expected and handled by ranking, so it is never more
	// than a warning.
	if matcher.AmbiguousTop(matches) {
		findings = append(findings, Finding{
			Rule:     RuleAmbiguousMatch,
			Layer:    LayerIntegrity,
			Severity: SeverityWarning,
			Message:  "multiple equally-ranked top brand candidates",
			Payload: map[string]interface{}{
				"brands":     []string{matches[0].Brand, matches[1].Brand},
				"confidence": matches[0].Confidence,
			},
		})
	}

	return findings
}

// crossSystemLayer confirms the record's source is entitled to report for
// the referenced store. The lookup is the only operation in the pipeline
// that may suspend, and it is bounded by the configured timeout. It
// distinguishes its own deadline, which is a recorded finding, from
// cancellation of the surrounding batch, which aborts the pass.
func (v *Validator) crossSystemLayer(ctx context.Context, rec *record.TransactionRecord) ([]Finding, error) {
	if v.reg == nil || rec.StoreID == "" {
		return nil, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, v.cfg.CrossSystemTimeout)
	defer cancel()

	err := v.reg.Authorize(lookupCtx, rec.StoreID, rec.Source)

	// Parent cancellation means the record was only partially evaluated.
	if parentErr := ctx.Err(); parentErr != nil && err != nil {
		return nil, parentErr
	}

	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, registry.ErrUnknownStore):
		return []Finding{{
			Rule:     RuleUnknownStore,
			Layer:    LayerCrossSystem,
			Severity: SeverityError,
			Message:  fmt.Sprintf("store %s is not present in the registry", rec.StoreID),
			Payload:  map[string]interface{}{"store_id": rec.StoreID},
		}}, nil
	case errors.Is(err, registry.ErrPermissionDenied):
		return []Finding{{
			Rule:     RulePermissionDenied,
			Layer:    LayerCrossSystem,
			Severity: SeverityError,
			Message:  fmt.Sprintf("source %s may not report for store %s", rec.Source, rec.StoreID),
			Payload:  map[string]interface{}{"store_id": rec.StoreID, "source": string(rec.Source)},
		}}, nil
	default:
		// Lookup deadline and transport failures are recorded, never raised.
		return []Finding{{
			Rule:     RuleCrossSystemUnavailable,
			Layer:    LayerCrossSystem,
			Severity: SeverityError,
			Message:  "store registry lookup failed or timed out",
			Payload:  map[string]interface{}{"store_id": rec.StoreID, "cause": err.Error()},
		}}, nil
	}
}
