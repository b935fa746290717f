package matcher

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"

	"github.com/scout-edge/brandgate/internal/lexicon"
)

// jaroWinklerRescue is the minimum Jaro-Winkler score for a token whose
// edit-distance similarity fell just short but whose phonetic key matched.
const jaroWinklerRescue = 0.84

// Matcher resolves free-text transcripts into ranked brand candidates using
// a cascade of matching tiers. It is a pure function of its inputs and the
// lexicon snapshot: no side effects, safe for concurrent use.
type Matcher struct {
	lex *lexicon.Lexicon
	cfg Config
}

// New creates a matcher over a loaded lexicon.
func New(lex *lexicon.Lexicon, cfg Config) *Matcher {
	if cfg.FuzzyMinSimilarity <= 0 || cfg.FuzzyMinSimilarity >= 1 {
		cfg.FuzzyMinSimilarity = DefaultConfig().FuzzyMinSimilarity
	}
	if cfg.BoostPerKeyword <= 0 {
		cfg.BoostPerKeyword = DefaultConfig().BoostPerKeyword
	}
	if cfg.MaxBoostPerKeyword < cfg.BoostPerKeyword {
		cfg.MaxBoostPerKeyword = DefaultConfig().MaxBoostPerKeyword
	}
	return &Matcher{lex: lex, cfg: cfg}
}

// Match runs the tier cascade over a transcript and returns candidates
// ordered by confidence (descending), with ties broken by longer matched
// substring and then lexicographic brand name. An empty transcript or a
// transcript with no lexicon overlap yields an empty, non-nil list.
func (m *Matcher) Match(transcript string, contextKeywords []string) []Candidate {
	candidates := []Candidate{}

	norm := lexicon.Normalize(transcript)
	if norm == "" {
		return candidates
	}

	context := make(map[string]bool, len(contextKeywords))
	for _, kw := range contextKeywords {
		if nkw := lexicon.Normalize(kw); nkw != "" {
			context[nkw] = true
		}
	}

	// Tiers 1-2: substring matching against canonical names and aliases.
	// matchedTerms tracks text already claimed so the fuzzy tier does not
	// re-match the same tokens.
	matchedTerms := make(map[string]bool)

	for i := range m.lex.Entries() {
		entry := &m.lex.Entries()[i]
		name := lexicon.Normalize(entry.Canonical)

		if containsTerm(norm, name) {
			matchedTerms[name] = true
			candidates = append(candidates, Candidate{
				Brand:      entry.Canonical,
				Confidence: bandScore(exactBase, exactSpan, lengthRatio(name, norm)),
				Tier:       TierExact,
				Matched:    name,
				Features:   map[string]interface{}{"method": "exact_substring"},
			})
			continue
		}

		for _, alias := range entry.Aliases {
			if containsTerm(norm, alias) {
				matchedTerms[alias] = true
				candidates = append(candidates, Candidate{
					Brand:      entry.Canonical,
					Confidence: bandScore(aliasBase, aliasSpan, lengthRatio(alias, norm)),
					Tier:       TierAlias,
					Matched:    alias,
					Features:   map[string]interface{}{"method": "alias_substring", "alias": alias},
				})
				break
			}
		}
	}

	// Tier 3: fuzzy matching for tokens not already claimed.
	candidates = append(candidates, m.fuzzyTier(norm, matchedTerms)...)

	// Merge per-brand, keeping the highest tier and confidence.
	candidates = mergeByBrand(candidates)

	// Tier 4: context boost for survivors.
	if len(context) > 0 {
		for i := range candidates {
			m.applyContextBoost(&candidates[i], context)
		}
	}

	sortCandidates(candidates)
	return candidates
}

// AmbiguousTop reports whether the two best candidates are equally ranked,
// which downstream validation records as a warning, never an error.
func AmbiguousTop(candidates []Candidate) bool {
	if len(candidates) < 2 {
		return false
	}
	const epsilon = 1e-9
	return candidates[0].Confidence-candidates[1].Confidence < epsilon
}

// fuzzyTier compares unclaimed transcript tokens against every canonical
// name and alias using normalized Levenshtein similarity, with a phonetic
// rescue for near-misses that sound alike.
func (m *Matcher) fuzzyTier(norm string, matchedTerms map[string]bool) []Candidate {
	var out []Candidate

	tokens := strings.Fields(norm)
	for _, token := range tokens {
		if len(token) < 3 || m.tokenClaimed(token, matchedTerms) {
			continue
		}

		for i := range m.lex.Entries() {
			entry := &m.lex.Entries()[i]

			terms := make([]string, 0, len(entry.Aliases)+1)
			terms = append(terms, lexicon.Normalize(entry.Canonical))
			terms = append(terms, entry.Aliases...)

			for _, term := range terms {
				if matchedTerms[term] || strings.Contains(term, " ") {
					continue
				}

				sim := similarity(token, term)
				phonetic := false
				if sim < m.cfg.FuzzyMinSimilarity {
					// Phonetic rescue: same Soundex key and a strong
					// Jaro-Winkler score keep the candidate at the floor.
					if smetrics.Soundex(token) == smetrics.Soundex(term) &&
						smetrics.JaroWinkler(token, term, 0.7, 4) >= jaroWinklerRescue {
						sim = m.cfg.FuzzyMinSimilarity
						phonetic = true
					} else {
						continue
					}
				}

				// Map [minSim, 1] linearly onto the fuzzy band.
				rel := (sim - m.cfg.FuzzyMinSimilarity) / (1 - m.cfg.FuzzyMinSimilarity)
				out = append(out, Candidate{
					Brand:      entry.Canonical,
					Confidence: bandScore(fuzzyBase, fuzzySpan, rel),
					Tier:       TierFuzzy,
					Matched:    token,
					Features: map[string]interface{}{
						"method":     "fuzzy_token",
						"term":       term,
						"similarity": sim,
						"phonetic":   phonetic,
					},
				})
			}
		}
	}

	return out
}

// applyContextBoost adds the per-keyword boost for every lexicon context
// keyword present in the caller's context set. An exclude-context hit
// suppresses boosting for the entry without touching its base confidence.
func (m *Matcher) applyContextBoost(c *Candidate, context map[string]bool) {
	entry := m.lex.Lookup(c.Brand)
	if entry == nil || len(entry.ContextBoosts) == 0 {
		return
	}

	for _, excl := range entry.ExcludeContexts {
		if context[excl] {
			return
		}
	}

	boosted := 0
	total := 0.0
	for kw, weight := range entry.ContextBoosts {
		if !context[kw] {
			continue
		}
		boost := m.cfg.BoostPerKeyword + (m.cfg.MaxBoostPerKeyword-m.cfg.BoostPerKeyword)*weight
		total += boost
		boosted++
	}
	if boosted == 0 {
		return
	}

	c.Confidence += total
	if c.Confidence > maxBoosted {
		c.Confidence = maxBoosted
	}
	if c.Features == nil {
		c.Features = map[string]interface{}{}
	}
	c.Features["context_keywords"] = boosted
	c.Features["context_boost"] = total

	// Fuzzy hits whose confidence now rests on context evidence are
	// reported under the boosted tier; exact and alias hits keep theirs.
	if c.Tier == TierFuzzy {
		c.Tier = TierContextBoosted
	}
}

func (m *Matcher) tokenClaimed(token string, matchedTerms map[string]bool) bool {
	for term := range matchedTerms {
		if containsTerm(term, token) || token == term {
			return true
		}
	}
	return false
}

// mergeByBrand collapses candidates for the same canonical brand, keeping
// the highest tier and the highest confidence seen for it.
func mergeByBrand(candidates []Candidate) []Candidate {
	merged := make(map[string]Candidate, len(candidates))
	order := []string{}

	for _, c := range candidates {
		prev, ok := merged[c.Brand]
		if !ok {
			merged[c.Brand] = c
			order = append(order, c.Brand)
			continue
		}
		keep := prev
		if c.Tier.rank() > prev.Tier.rank() {
			keep.Tier = c.Tier
			keep.Matched = c.Matched
			keep.Features = c.Features
		}
		if c.Confidence > keep.Confidence {
			keep.Confidence = c.Confidence
		}
		merged[c.Brand] = keep
	}

	out := make([]Candidate, 0, len(order))
	for _, brand := range order {
		out = append(out, merged[brand])
	}
	return out
}

func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		if len(candidates[i].Matched) != len(candidates[j].Matched) {
			return len(candidates[i].Matched) > len(candidates[j].Matched)
		}
		return candidates[i].Brand < candidates[j].Brand
	})
}

// containsTerm reports whether term occurs in text on token boundaries.
// Both inputs are already normalized.
func containsTerm(text, term string) bool {
	if term == "" {
		return false
	}
	idx := 0
	for {
		i := strings.Index(text[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

// bandScore maps ratio in [0, 1] onto [base, base+span].
func bandScore(base, span, ratio float64) float64 {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return base + span*ratio
}

// lengthRatio is the matched-term share of the transcript; longer matches
// score closer to the top of their band.
func lengthRatio(term, text string) float64 {
	if len(text) == 0 {
		return 0
	}
	return float64(len(term)) / float64(len(text))
}

// similarity is 1 - normalized Levenshtein distance. Damerau transpositions
// are counted as two edits, which is close enough at these thresholds.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}
