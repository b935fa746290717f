package lexicon

import (
	"sort"
	"strings"
)

// Entry holds the reference data for one canonical brand: its authoritative
// spelling, known aliases and spelling variants, and the context keywords
// that boost its detection confidence.
type Entry struct {
	Canonical string `json:"canonical"`

	// Aliases are alternate spellings and local-language variants
	// (e.g. "TM" for "Lucky Me", "koka" for "Coca-Cola").
	Aliases []string `json:"aliases,omitempty"`

	// ContextBoosts maps a context keyword to its boost weight in [0, 1].
	// The matcher scales this by the configured per-keyword boost.
	ContextBoosts map[string]float64 `json:"context_boosts,omitempty"`

	// ExcludeContexts name contexts in which this brand should NOT receive
	// its context boost ("Smart" the detergent vs "Smart" the telecom).
	// They suppress boosts only, never the tier base confidence.
	ExcludeContexts []string `json:"exclude_contexts,omitempty"`

	// Priority orders entries in reports and exports; it plays no part in
	// candidate ranking.
	Priority int `json:"priority,omitempty"`
}

// Lexicon is the read-only brand reference set shared by all workers in a
// validation run. It is fully built before matching starts and never mutated
// afterwards, so concurrent readers need no locking.
type Lexicon struct {
	entries []Entry
	byName  map[string]*Entry // normalized canonical -> entry
}

// New builds a Lexicon from entries, normalizing names and aliases.
// Duplicate canonical names keep the first occurrence.
func New(entries []Entry) *Lexicon {
	lex := &Lexicon{
		byName: make(map[string]*Entry, len(entries)),
	}

	for _, e := range entries {
		e.Canonical = strings.TrimSpace(e.Canonical)
		if e.Canonical == "" {
			continue
		}
		key := Normalize(e.Canonical)
		if _, dup := lex.byName[key]; dup {
			continue
		}

		cleaned := make([]string, 0, len(e.Aliases))
		seen := map[string]bool{key: true}
		for _, a := range e.Aliases {
			na := Normalize(a)
			if na == "" || seen[na] {
				continue
			}
			seen[na] = true
			cleaned = append(cleaned, na)
		}
		e.Aliases = cleaned

		boosts := make(map[string]float64, len(e.ContextBoosts))
		for kw, w := range e.ContextBoosts {
			if kw = Normalize(kw); kw != "" {
				if w < 0 {
					w = 0
				}
				if w > 1 {
					w = 1
				}
				boosts[kw] = w
			}
		}
		e.ContextBoosts = boosts

		excludes := make([]string, 0, len(e.ExcludeContexts))
		for _, x := range e.ExcludeContexts {
			if nx := Normalize(x); nx != "" {
				excludes = append(excludes, nx)
			}
		}
		e.ExcludeContexts = excludes

		lex.entries = append(lex.entries, e)
		lex.byName[key] = &lex.entries[len(lex.entries)-1]
	}

	// Rebuild the index: appends above may have relocated the backing array.
	lex.byName = make(map[string]*Entry, len(lex.entries))
	for i := range lex.entries {
		lex.byName[Normalize(lex.entries[i].Canonical)] = &lex.entries[i]
	}

	sort.SliceStable(lex.entries, func(i, j int) bool {
		if lex.entries[i].Priority != lex.entries[j].Priority {
			return lex.entries[i].Priority > lex.entries[j].Priority
		}
		return lex.entries[i].Canonical < lex.entries[j].Canonical
	})
	// Re-index after the sort moved entries.
	for i := range lex.entries {
		lex.byName[Normalize(lex.entries[i].Canonical)] = &lex.entries[i]
	}

	return lex
}

// Entries returns the entries ordered by priority then name. Callers must
// treat the slice as read-only.
func (l *Lexicon) Entries() []Entry {
	return l.entries
}

// Lookup returns the entry for a canonical name (any casing), or nil.
func (l *Lexicon) Lookup(canonical string) *Entry {
	return l.byName[Normalize(canonical)]
}

// Len returns the number of brands in the lexicon.
func (l *Lexicon) Len() int {
	return len(l.entries)
}

// Normalize lowercases and collapses runs of whitespace to single spaces.
// All matching is performed in this normalized space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
