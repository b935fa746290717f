package resolve

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scout-edge/brandgate/internal/lexicon"
	"github.com/scout-edge/brandgate/internal/matcher"
	"github.com/scout-edge/brandgate/internal/record"
	"github.com/scout-edge/brandgate/internal/report"
	"github.com/scout-edge/brandgate/internal/rules"
)

const testWindow = 5 * time.Second

func newTestResolver() *Resolver {
	lex := lexicon.New([]lexicon.Entry{
		{Canonical: "Tang"},
	})
	m := matcher.New(lex, matcher.DefaultConfig())
	v := rules.New(rules.DefaultConfig(), nil)
	return New(m, v, testWindow)
}

func cleanRecord(id string, ts time.Time) *record.TransactionRecord {
	return &record.TransactionRecord{
		ID:        id,
		Source:    record.SourceDeviceFeed,
		Timestamp: ts,
		Amount:    decimal.NewFromFloat(120.50),
		Quantity:  1,
		StoreID:   "102",
	}
}

func TestResolveLastWriteWins(t *testing.T) {
	r := newTestResolver()
	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	left := cleanRecord("txn-a", base)
	right := cleanRecord("txn-b", base.Add(10*time.Second))

	d, err := r.Resolve(context.Background(), left, right)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Strategy != report.StrategyLastWriteWins {
		t.Fatalf("strategy = %s, want %s", d.Strategy, report.StrategyLastWriteWins)
	}
	if !reflect.DeepEqual(d.AuthoritativeIDs, []string{"txn-b"}) {
		t.Errorf("authoritative = %v, want later record txn-b", d.AuthoritativeIDs)
	}
}

func TestResolveLastWriteWinsQualityOverride(t *testing.T) {
	r := newTestResolver()
	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	earlier := cleanRecord("txn-a", base)
	later := cleanRecord("txn-b", base.Add(10*time.Second))
	later.Amount = decimal.NewFromInt(-5) // schema error, verdict fail

	d, err := r.Resolve(context.Background(), earlier, later)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Strategy != report.StrategyLastWriteWins {
		t.Fatalf("strategy = %s, want %s", d.Strategy, report.StrategyLastWriteWins)
	}
	if !reflect.DeepEqual(d.AuthoritativeIDs, []string{"txn-a"}) {
		t.Errorf("authoritative = %v, want earlier record despite recency", d.AuthoritativeIDs)
	}
}

func TestResolvePreserveBoth(t *testing.T) {
	r := newTestResolver()
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	left := cleanRecord("txn-a", ts)
	right := cleanRecord("txn-b", ts)
	right.Amount = decimal.NewFromFloat(130.75)

	d, err := r.Resolve(context.Background(), left, right)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Strategy != report.StrategyPreserveBoth {
		t.Fatalf("strategy = %s, want %s", d.Strategy, report.StrategyPreserveBoth)
	}
	if len(d.AuthoritativeIDs) != 2 {
		t.Fatalf("authoritative = %v, want two rewritten identifiers", d.AuthoritativeIDs)
	}
	if d.AuthoritativeIDs[0] == d.AuthoritativeIDs[1] {
		t.Errorf("rewritten identifiers collide: %v", d.AuthoritativeIDs)
	}
	for i, orig := range []string{"txn-a", "txn-b"} {
		got := d.AuthoritativeIDs[i]
		if !strings.HasPrefix(got, orig+"~") {
			t.Errorf("rewritten id %q does not extend %q", got, orig)
		}
		if len(got) != len(orig)+1+8 {
			t.Errorf("rewritten id %q suffix is not 8 chars", got)
		}
	}
}

func TestResolvePreserveBothTranscriptOnlyDifference(t *testing.T) {
	r := newTestResolver()
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	// Identity fields agree; only the transcripts diverge. The content
	// comparison has to look past the identity checksum.
	left := cleanRecord("txn-a", ts)
	left.Transcript = "bought 2 Tang sachets"
	right := cleanRecord("txn-b", ts)
	right.Transcript = "isang coke po"

	d, err := r.Resolve(context.Background(), left, right)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Strategy != report.StrategyPreserveBoth {
		t.Fatalf("strategy = %s, want %s", d.Strategy, report.StrategyPreserveBoth)
	}
	if len(d.AuthoritativeIDs) != 2 {
		t.Errorf("authoritative = %v, want both records preserved", d.AuthoritativeIDs)
	}
}

func TestResolveOrderIndependent(t *testing.T) {
	r := newTestResolver()
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	left := cleanRecord("txn-a", ts)
	right := cleanRecord("txn-b", ts)
	right.Amount = decimal.NewFromFloat(130.75)

	forward, err := r.Resolve(context.Background(), left, right)
	if err != nil {
		t.Fatalf("forward Resolve: %v", err)
	}
	reversed, err := r.Resolve(context.Background(), right, left)
	if err != nil {
		t.Fatalf("reversed Resolve: %v", err)
	}
	if forward.PairKey != reversed.PairKey {
		t.Errorf("pair keys differ by argument order: %s vs %s", forward.PairKey, reversed.PairKey)
	}
	if !reflect.DeepEqual(forward.AuthoritativeIDs, reversed.AuthoritativeIDs) {
		t.Errorf("authoritative ids differ by argument order:\nforward:  %v\nreversed: %v",
			forward.AuthoritativeIDs, reversed.AuthoritativeIDs)
	}
}

func TestResolveManualReview(t *testing.T) {
	r := newTestResolver()
	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	left := cleanRecord("txn-a", base)
	right := cleanRecord("txn-b", base.Add(2*time.Second))

	d, err := r.Resolve(context.Background(), left, right)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Strategy != report.StrategyManualReview {
		t.Fatalf("strategy = %s, want %s", d.Strategy, report.StrategyManualReview)
	}
	if len(d.AuthoritativeIDs) != 0 {
		t.Errorf("manual review should choose no authoritative record, got %v", d.AuthoritativeIDs)
	}
}

func TestResolveQualityWinsWithinWindow(t *testing.T) {
	r := newTestResolver()
	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	left := cleanRecord("txn-a", base)
	right := cleanRecord("txn-b", base.Add(2*time.Second))
	right.Amount = decimal.NewFromInt(-5)

	d, err := r.Resolve(context.Background(), left, right)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !reflect.DeepEqual(d.AuthoritativeIDs, []string{"txn-a"}) {
		t.Errorf("authoritative = %v, want the passing record", d.AuthoritativeIDs)
	}
}

func TestResolveIdempotent(t *testing.T) {
	r := newTestResolver()
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	left := cleanRecord("txn-a", ts)
	right := cleanRecord("txn-b", ts)
	right.Amount = decimal.NewFromFloat(130.75)

	first, err := r.Resolve(context.Background(), left, right)
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	second, err := r.Resolve(context.Background(), left, right)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("decisions differ across runs:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestResolveRejectsSameIdentifier(t *testing.T) {
	r := newTestResolver()
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	rec := cleanRecord("txn-a", ts)
	if _, err := r.Resolve(context.Background(), rec, rec); err == nil {
		t.Fatal("expected error for a pair sharing an identifier")
	}
}
