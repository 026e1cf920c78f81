// Package riskindex provides a simple, deterministic, concurrency-safe
// in-memory risk-term index used to score legal documents. It is
// intentionally small and dependency-free, but engineered with
// production-grade ergonomics:
//
//   - No logging in the library (callers decide how/what to log)
//   - Clear, documented types and functional options (Option pattern)
//   - Unicode-aware tokenization with optional stop-word removal
//   - Immutable, read-only index after construction (safe for concurrent use)
//   - Deterministic scoring and sorting (stable order for ties)
//
// Scoring uses Jaccard similarity between each risk category's term set and
// each clause's token set: score = |C ∩ T| / |C ∪ T|. A category is flagged
// when its best clause score reaches the flag threshold; the overall risk
// score aggregates flagged categories on a 0..100 scale.
package riskindex

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Flag is one triggered risk finding.
type Flag struct {
	Category string
	Severity string // "low" | "medium" | "high"
	Score    float64
	Snippet  string // best-matching clause excerpt
}

// Report is the outcome of analyzing one document.
type Report struct {
	// RiskScore is the overall 0..100 score.
	RiskScore float64
	// DocType is the detected document classification, or "other".
	DocType string
	// Flags lists triggered categories, highest score first.
	Flags []Flag
}

// Analyzer is the minimal interface implemented by the index.
type Analyzer interface {
	Analyze(text string) Report
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	flagThreshold  float64
	highThreshold  float64
	medThreshold   float64
	stopwords      map[string]struct{}
	maxFlags       int
	minClauseRunes int
	snippetRunes   int
}

func defaultConfig() config {
	return config{
		flagThreshold:  0.08,
		highThreshold:  0.30,
		medThreshold:   0.15,
		stopwords:      nil,
		maxFlags:       10,
		minClauseRunes: 20,
		snippetRunes:   160,
	}
}

// WithFlagThreshold sets the minimum clause score for a category to trigger.
func WithFlagThreshold(v float64) Option {
	return func(c *config) {
		if v > 0 && v <= 1 {
			c.flagThreshold = v
		}
	}
}

// WithStopwords removes the given words from both term and clause token sets.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMaxFlags caps the number of findings reported.
func WithMaxFlags(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxFlags = n
		}
	}
}

// ----------------------------------------------------------------------------
// Rule sets

// DefaultCategories maps each risk category to the contract language that
// signals it. The terms were distilled from the clause corpus the product
// team reviews; they are ordinary lowercase words, matched set-wise, so
// inflection noise is tolerated by the Jaccard overlap rather than stemming.
var DefaultCategories = map[string][]string{
	"liability":    {"indemnify", "indemnification", "hold", "harmless", "liable", "liability", "damages", "unlimited", "losses", "claims"},
	"termination":  {"terminate", "termination", "notice", "cure", "breach", "immediately", "sole", "discretion", "without", "cause"},
	"auto-renewal": {"renew", "renewal", "automatically", "auto", "term", "successive", "periods", "unless", "cancelled", "opt"},
	"payment":      {"penalty", "interest", "late", "fee", "fees", "non", "refundable", "nonrefundable", "deposit", "forfeit"},
	"exclusivity":  {"exclusive", "exclusivity", "solely", "compete", "competition", "restraint", "non-compete", "restrict", "restricted"},
	"assignment":   {"assign", "assignment", "transfer", "consent", "withheld", "delegate", "successors"},
}

// docTypeKeywords classifies the document as a whole; the best-overlapping
// kind wins, "other" when nothing overlaps.
var docTypeKeywords = map[string][]string{
	"lease":      {"lease", "tenant", "landlord", "premises", "rent", "sublet"},
	"employment": {"employee", "employer", "employment", "salary", "probation", "dismissal"},
	"nda":        {"confidential", "confidentiality", "disclosure", "disclosing", "receiving", "proprietary"},
	"services":   {"services", "deliverables", "contractor", "statement", "work", "milestones"},
}

// ----------------------------------------------------------------------------
// Implementation

type category struct {
	name   string
	tokens map[string]struct{}
	tLen   int
}

type index struct {
	cfg        config
	categories []category
}

// New builds an Analyzer over DefaultCategories.
func New(opts ...Option) Analyzer {
	return NewFromCategories(DefaultCategories, opts...)
}

// NewFromCategories builds an Analyzer from an explicit category→terms map.
func NewFromCategories(cats map[string][]string, opts ...Option) Analyzer {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	idx := &index{cfg: cfg}
	names := make([]string, 0, len(cats))
	for name := range cats {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic category order
	for _, name := range names {
		toks := tokenize(strings.Join(cats[name], " "), cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		idx.categories = append(idx.categories, category{name: name, tokens: toks, tLen: len(toks)})
	}
	return idx
}

// Analyze scores the document against every category and classifies it.
func (i *index) Analyze(text string) Report {
	clauses := splitClauses(text, i.cfg.minClauseRunes)
	if len(clauses) == 0 {
		return Report{DocType: "other"}
	}

	type clauseDoc struct {
		text   string
		tokens map[string]struct{}
	}
	docs := make([]clauseDoc, 0, len(clauses))
	allTokens := make(map[string]struct{})
	for _, c := range clauses {
		toks := tokenize(c, i.cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		docs = append(docs, clauseDoc{text: c, tokens: toks})
		for t := range toks {
			allTokens[t] = struct{}{}
		}
	}

	var flags []Flag
	for _, cat := range i.categories {
		best := 0.0
		bestSnippet := ""
		for _, d := range docs {
			over := overlap(cat.tokens, d.tokens)
			if over == 0 {
				continue
			}
			union := float64(cat.tLen + len(d.tokens) - over)
			if union <= 0 {
				continue
			}
			score := float64(over) / union
			// Stable tie-break: first clause wins.
			if score > best {
				best = score
				bestSnippet = d.text
			}
		}
		if best >= i.cfg.flagThreshold {
			flags = append(flags, Flag{
				Category: cat.name,
				Severity: i.severity(best),
				Score:    round4(best),
				Snippet:  clip(bestSnippet, i.cfg.snippetRunes),
			})
		}
	}

	sort.SliceStable(flags, func(a, b int) bool {
		if flags[a].Score != flags[b].Score {
			return flags[a].Score > flags[b].Score
		}
		return flags[a].Category < flags[b].Category
	})
	if len(flags) > i.cfg.maxFlags {
		flags = flags[:i.cfg.maxFlags]
	}

	return Report{
		RiskScore: i.riskScore(flags),
		DocType:   classify(allTokens),
		Flags:     flags,
	}
}

// riskScore aggregates flags to 0..100: each finding contributes its
// severity weight, saturating at 100.
func (i *index) riskScore(flags []Flag) float64 {
	total := 0.0
	for _, f := range flags {
		switch f.Severity {
		case "high":
			total += 35
		case "medium":
			total += 20
		default:
			total += 10
		}
	}
	if total > 100 {
		total = 100
	}
	return total
}

func (i *index) severity(score float64) string {
	switch {
	case score >= i.cfg.highThreshold:
		return "high"
	case score >= i.cfg.medThreshold:
		return "medium"
	default:
		return "low"
	}
}

func classify(docTokens map[string]struct{}) string {
	bestKind := "other"
	bestOverlap := 0
	kinds := make([]string, 0, len(docTypeKeywords))
	for k := range docTypeKeywords {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		kw := tokenize(strings.Join(docTypeKeywords[kind], " "), nil)
		if over := overlap(kw, docTokens); over > bestOverlap {
			bestOverlap = over
			bestKind = kind
		}
	}
	return bestKind
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	s = strings.ToLower(s)
	words := wordRE.FindAllString(s, -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

// clauseSplitRE breaks a document into clause-sized chunks: blank lines,
// sentence ends, and semicolons (contracts love semicolons).
var clauseSplitRE = regexp.MustCompile(`\n\s*\n|(?:[.;]\s+)`)

func splitClauses(text string, minRunes int) []string {
	chunks := clauseSplitRE.Split(text, -1)
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		t := strings.TrimSpace(c)
		if t == "" {
			continue
		}
		if minRunes > 0 && utf8.RuneCountInString(t) < minRunes {
			continue
		}
		out = append(out, t)
	}
	return out
}

func clip(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes])
}

func round4(v float64) float64 {
	return float64(int(v*10000+0.5)) / 10000
}
