package matcher

import (
	"strings"
	"testing"

	"github.com/scout-edge/brandgate/internal/lexicon"
)

func buildTestLexicon() *lexicon.Lexicon {
	entries := []lexicon.Entry{
		{
			Canonical: "Tang",
			ContextBoosts: map[string]float64{
				"juice": 0.5, "powder": 0.3, "sachet": 0.4,
			},
		},
		{
			Canonical: "Hello",
			Aliases:   []string{"halo"},
		},
		{
			Canonical: "Coca-Cola",
			Aliases:   []string{"coke", "koka", "kokakola"},
			ContextBoosts: map[string]float64{
				"softdrinks": 0.6, "malamig": 0.4,
			},
		},
		{
			Canonical: "Lucky Me",
			Aliases:   []string{"tm", "lakmi"},
			ContextBoosts: map[string]float64{
				"noodles": 0.7, "canton": 0.5,
			},
		},
		{
			Canonical: "Smart",
			ContextBoosts: map[string]float64{
				"load": 0.8, "prepaid": 0.6,
			},
			ExcludeContexts: []string{"detergent", "soap"},
		},
		{
			Canonical: "Surf",
			Aliases:   []string{"serf"},
			ContextBoosts: map[string]float64{
				"detergent": 0.7, "panlaba": 0.5,
			},
		},
	}
	return lexicon.New(entries)
}

func TestMatchExactTier(t *testing.T) {
	m := New(buildTestLexicon(), DefaultConfig())

	tests := []struct {
		name       string
		transcript string
		wantBrand  string
	}{
		{"verbatim brand", "bought some Tang this morning", "Tang"},
		{"case insensitive", "one TANG please", "Tang"},
		{"extra whitespace", "dalawa   coca-cola  malaki", "Coca-Cola"},
		{"multi word brand", "isang lucky me pancit canton", "Lucky Me"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Match(tt.transcript, nil)
			if len(got) == 0 {
				t.Fatalf("Match(%q) returned no candidates", tt.transcript)
			}
			best := got[0]
			if best.Brand != tt.wantBrand {
				t.Errorf("Match(%q) best = %s, want %s", tt.transcript, best.Brand, tt.wantBrand)
			}
			if best.Tier != TierExact {
				t.Errorf("Match(%q) tier = %s, want exact", tt.transcript, best.Tier)
			}
			if best.Confidence < 0.8 {
				t.Errorf("Match(%q) confidence = %.3f, want >= 0.8", tt.transcript, best.Confidence)
			}
		})
	}
}

func TestMatchTwoExactCandidates(t *testing.T) {
	m := New(buildTestLexicon(), DefaultConfig())

	got := m.Match("bought 2 Tang sachets and a Hello candy", nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(got), got)
	}

	for _, c := range got {
		if c.Tier != TierExact {
			t.Errorf("%s tier = %s, want exact", c.Brand, c.Tier)
		}
		if c.Confidence < 0.8 {
			t.Errorf("%s confidence = %.3f, want >= 0.8", c.Brand, c.Confidence)
		}
	}

	// "hello" is the longer matched term, so it ranks first; on a true
	// confidence tie lexicographic order would give the same answer.
	if got[0].Brand != "Hello" || got[1].Brand != "Tang" {
		t.Errorf("order = [%s, %s], want [Hello, Tang]", got[0].Brand, got[1].Brand)
	}
}

func TestMatchAliasTier(t *testing.T) {
	m := New(buildTestLexicon(), DefaultConfig())

	got := m.Match("pabili po ng coke", nil)
	if len(got) == 0 {
		t.Fatal("expected alias candidate for coke")
	}
	best := got[0]
	if best.Brand != "Coca-Cola" {
		t.Errorf("best = %s, want Coca-Cola", best.Brand)
	}
	if best.Tier != TierAlias {
		t.Errorf("tier = %s, want alias", best.Tier)
	}
	if best.Confidence < 0.6 || best.Confidence >= 0.8 {
		t.Errorf("confidence = %.3f, want in [0.6, 0.8)", best.Confidence)
	}
}

func TestMatchFuzzyTier(t *testing.T) {
	m := New(buildTestLexicon(), DefaultConfig())

	// "kokkola" is a misspelling of the "kokakola" alias.
	got := m.Match("isang kokkola malamig", nil)

	var found *Candidate
	for i := range got {
		if got[i].Brand == "Coca-Cola" {
			found = &got[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("no Coca-Cola candidate from fuzzy input, got %+v", got)
	}
	if found.Tier != TierFuzzy {
		t.Errorf("tier = %s, want fuzzy", found.Tier)
	}
	if found.Confidence < 0.4 || found.Confidence > 0.7 {
		t.Errorf("confidence = %.3f, want in [0.4, 0.7]", found.Confidence)
	}
}

func TestMatchNoOverlap(t *testing.T) {
	m := New(buildTestLexicon(), DefaultConfig())

	tests := []struct {
		name       string
		transcript string
	}{
		{"empty transcript", ""},
		{"whitespace only", "   \t "},
		{"no lexicon overlap", "wala pong ganyan dito"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Match(tt.transcript, nil)
			if got == nil {
				t.Fatalf("Match(%q) returned nil, want empty slice", tt.transcript)
			}
			if len(got) != 0 {
				t.Errorf("Match(%q) = %+v, want empty", tt.transcript, got)
			}
		})
	}
}

func TestMatchConfidenceBounds(t *testing.T) {
	m := New(buildTestLexicon(), DefaultConfig())

	transcripts := []string{
		"tang",
		"tang tang tang tang",
		"coke halo tm serf smart surf tang hello coca-cola lucky me",
		strings.Repeat("kokakola ", 50),
		"x",
	}
	contexts := [][]string{nil, {"juice", "noodles", "load", "softdrinks", "detergent", "malamig", "canton", "prepaid"}}

	for _, tr := range transcripts {
		for _, ctx := range contexts {
			for _, c := range m.Match(tr, ctx) {
				if c.Confidence < 0.0 || c.Confidence > 1.0 {
					t.Errorf("Match(%q, %v): candidate %s confidence %.4f out of [0,1]",
						tr, ctx, c.Brand, c.Confidence)
				}
			}
		}
	}
}

func TestMatchContextBoost(t *testing.T) {
	m := New(buildTestLexicon(), DefaultConfig())

	plain := m.Match("isang tang po", nil)
	boosted := m.Match("isang tang po", []string{"juice", "sachet"})

	if len(plain) == 0 || len(boosted) == 0 {
		t.Fatal("expected Tang candidate in both runs")
	}
	if boosted[0].Confidence <= plain[0].Confidence {
		t.Errorf("boosted confidence %.3f not greater than plain %.3f",
			boosted[0].Confidence, plain[0].Confidence)
	}
	// Boost per keyword is capped at 0.05.
	if diff := boosted[0].Confidence - plain[0].Confidence; diff > 2*0.05+1e-9 {
		t.Errorf("boost %.3f exceeds cap for two keywords", diff)
	}
	// Exact tier label survives boosting.
	if boosted[0].Tier != TierExact {
		t.Errorf("boosted tier = %s, want exact", boosted[0].Tier)
	}
}

func TestMatchExcludeContextSuppressesBoost(t *testing.T) {
	m := New(buildTestLexicon(), DefaultConfig())

	// "Smart" with telecom context gets its boost...
	withBoost := m.Match("smart po", []string{"load"})
	// ...but in a detergent context the boost is suppressed.
	suppressed := m.Match("smart po", []string{"load", "detergent"})

	if len(withBoost) == 0 || len(suppressed) == 0 {
		t.Fatal("expected Smart candidate in both runs")
	}
	if suppressed[0].Confidence >= withBoost[0].Confidence {
		t.Errorf("exclude context did not suppress boost: %.3f >= %.3f",
			suppressed[0].Confidence, withBoost[0].Confidence)
	}

	// Suppression never lowers the tier base confidence.
	plain := m.Match("smart po", nil)
	if suppressed[0].Confidence != plain[0].Confidence {
		t.Errorf("suppressed confidence %.3f differs from unboosted %.3f",
			suppressed[0].Confidence, plain[0].Confidence)
	}
}

func TestMatchMergesTiers(t *testing.T) {
	m := New(buildTestLexicon(), DefaultConfig())

	// Both the canonical name and an alias appear; the merged candidate
	// keeps the exact tier and the higher confidence.
	got := m.Match("coca-cola coke dalawa", nil)

	count := 0
	for _, c := range got {
		if c.Brand == "Coca-Cola" {
			count++
			if c.Tier != TierExact {
				t.Errorf("merged tier = %s, want exact", c.Tier)
			}
			if c.Confidence < 0.8 {
				t.Errorf("merged confidence = %.3f, want >= 0.8", c.Confidence)
			}
		}
	}
	if count != 1 {
		t.Errorf("Coca-Cola appears %d times after merge, want 1", count)
	}
}

func TestAmbiguousTop(t *testing.T) {
	tests := []struct {
		name       string
		candidates []Candidate
		want       bool
	}{
		{"empty", nil, false},
		{"single", []Candidate{{Brand: "A", Confidence: 0.9}}, false},
		{"clear winner", []Candidate{{Brand: "A", Confidence: 0.9}, {Brand: "B", Confidence: 0.7}}, false},
		{"tied top", []Candidate{{Brand: "A", Confidence: 0.85}, {Brand: "B", Confidence: 0.85}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AmbiguousTop(tt.candidates); got != tt.want {
				t.Errorf("AmbiguousTop() = %v, want %v", got, tt.want)
			}
		})
	}
}

func BenchmarkMatch(b *testing.B) {
	m := New(buildTestLexicon(), DefaultConfig())
	transcript := "tatlo tm jack n isa jillng softdrinks, lima kokkola at tang"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Match(transcript, []string{"softdrinks", "malamig"})
	}
}
