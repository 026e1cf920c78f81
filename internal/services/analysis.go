// Package services – AnalysisService
//
// This file implements the producer half of the deferred-write flow: running
// the risk analyzer over a submitted document and either staging the result
// (anonymous caller, subject to the device ledger) or creating the permanent
// record directly (authenticated caller, subject to plan and account quota).
// Title handling mirrors the promotion mapping: blank titles get an
// auto-generated one derived from the document, clipped by rune length.
package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/clausewise/go-clausewise-backend/internal/domain"
	"github.com/clausewise/go-clausewise-backend/internal/quota"
	"github.com/clausewise/go-clausewise-backend/internal/riskindex"
	"github.com/clausewise/go-clausewise-backend/internal/staging"
)

// DefaultMaxDocumentBytes bounds the accepted document size.
const DefaultMaxDocumentBytes = 512 << 10

// AnalyzeInput is one analysis request.
type AnalyzeInput struct {
	// DeviceID scopes staging and the anonymous ledger.
	DeviceID string
	// Token is the caller's bearer token, empty for anonymous visitors.
	Token string
	// Session is the resolved session of the triggering navigation.
	Session *domain.Session
	// Title is the optional user-supplied document title.
	Title string
	// Document is the raw document text to analyze.
	Document string
}

// AnalyzeResult reports what happened to the computed analysis.
type AnalyzeResult struct {
	// Payload is the computed analysis.
	Payload domain.StagedAnalysis `json:"payload"`
	// Staged is set for anonymous callers; StagedID addresses the deferred
	// record awaiting promotion after login.
	Staged   bool   `json:"staged"`
	StagedID string `json:"staged_id,omitempty"`
	// Record is the permanent record for authenticated callers.
	Record *domain.Record `json:"record,omitempty"`
}

// AnalysisService runs the analyzer and routes the result by session tier.
type AnalysisService struct {
	analyzer riskindex.Analyzer
	staging  *staging.Store
	ledger   *quota.Ledger
	identity Identity
	entity   Entity

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
	// TitleLocale selects the casing rules for auto-generated titles.
	TitleLocale language.Tag
	// MaxDocBytes caps the accepted document size.
	MaxDocBytes int
}

// NewAnalysisService constructs an AnalysisService with sane defaults.
func NewAnalysisService(a riskindex.Analyzer, st *staging.Store, l *quota.Ledger, id Identity, ent Entity) *AnalysisService {
	return &AnalysisService{
		analyzer:    a,
		staging:     st,
		ledger:      l,
		identity:    id,
		entity:      ent,
		TitleMaxLen: 60,
		TitleLocale: language.Und,
		MaxDocBytes: DefaultMaxDocumentBytes,
	}
}

// Analyze validates the document, computes the risk report, and stages or
// persists it depending on the caller's tier.
func (s *AnalysisService) Analyze(ctx context.Context, in AnalyzeInput) (*AnalyzeResult, error) {
	doc := strings.TrimSpace(in.Document)
	if doc == "" {
		return nil, ErrEmptyDocument
	}
	if s.MaxDocBytes > 0 && len(doc) > s.MaxDocBytes {
		return nil, ErrDocumentTooLong
	}

	report := s.analyzer.Analyze(doc)
	payload := domain.StagedAnalysis{
		Title:     s.resolveTitle(in.Title, doc),
		DocType:   report.DocType,
		RiskScore: report.RiskScore,
		Flags:     toRiskFlags(report.Flags),
	}

	if in.Session.Authenticated() {
		return s.persist(ctx, in, payload)
	}
	return s.stage(ctx, in, payload)
}

// stage handles the anonymous tier: one free analysis per device per
// calendar month, result staged until login or expiry.
func (s *AnalysisService) stage(ctx context.Context, in AnalyzeInput, payload domain.StagedAnalysis) (*AnalyzeResult, error) {
	if !s.ledger.CheckAnonymous(ctx, in.DeviceID) {
		return nil, ErrLimitReached
	}
	id, ok := s.staging.Stage(ctx, in.DeviceID, payload)
	if !ok {
		return nil, ErrStagingUnavailable
	}
	if !s.ledger.RecordAnonymousUse(ctx, in.DeviceID) {
		// The ledger write failing open means a broken device may get a
		// second trial. Favoring the visitor is intentional.
		log.Warn().Str("device_id", in.DeviceID).Msg("analysis: anonymous ledger write failed")
	}
	return &AnalyzeResult{Payload: payload, Staged: true, StagedID: id}, nil
}

// persist handles the authenticated tier: plan/quota check, direct create,
// best-effort ledger update.
func (s *AnalysisService) persist(ctx context.Context, in AnalyzeInput, payload domain.StagedAnalysis) (*AnalyzeResult, error) {
	acc := in.Session.Principal
	if !s.ledger.CheckAccount(acc) {
		return nil, ErrLimitReached
	}

	fields := map[string]any{
		"account_id": acc.ID,
		"title":      payload.Title,
		"doc_type":   payload.DocType,
		"risk_score": payload.RiskScore,
		"flags":      payload.Flags,
		"language":   payload.Language,
		"source":     "direct",
	}
	rec, err := s.entity.Create(ctx, RecordKindAnalyses, fields)
	if err != nil {
		return nil, fmt.Errorf("analysis: create record: %w", err)
	}

	if _, err := s.ledger.RecordAccountUse(ctx, in.Token, acc); err != nil {
		log.Warn().Err(err).Str("account_id", acc.ID).Msg("analysis: account ledger update failed")
	}
	return &AnalyzeResult{Payload: payload, Record: rec}, nil
}

// resolveTitle normalizes the supplied title, deriving one from the document
// when it is blank, and clips it to the configured rune length.
func (s *AnalysisService) resolveTitle(title, doc string) string {
	title = collapseWhitespace(title)
	if title == "" {
		title = s.generateTitle(doc)
	}
	if title == "" {
		title = "Untitled analysis"
	}
	return s.clipTitle(title)
}

// generateTitle derives a concise title from the document's leading words.
func (s *AnalysisService) generateTitle(doc string) string {
	toks := titleWordRE.FindAllString(strings.ToLower(doc), -1)
	if len(toks) == 0 {
		return ""
	}

	titleCaser := cases.Title(s.titleLocaleOrDefault())
	out := make([]string, 0, 8)
	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, titleCaser.String(w))
		if len(out) >= 8 {
			break
		}
	}
	return strings.Join(out, " ")
}

func (s *AnalysisService) clipTitle(title string) string {
	max := s.TitleMaxLen
	if max <= 0 {
		max = 60
	}
	if utf8.RuneCountInString(title) > max {
		return string([]rune(title)[:max])
	}
	return title
}

func (s *AnalysisService) titleLocaleOrDefault() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}

func toRiskFlags(flags []riskindex.Flag) []domain.RiskFlag {
	out := make([]domain.RiskFlag, 0, len(flags))
	for _, f := range flags {
		out = append(out, domain.RiskFlag{
			Category: f.Category,
			Severity: f.Severity,
			Score:    f.Score,
			Snippet:  f.Snippet,
		})
	}
	return out
}

// --- Title generation helpers ---

// Extract Unicode letters with optional trailing numbers.
var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"this": {}, "that": {}, "between": {}, "shall": {},
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// collapseWhitespace trims and collapses runs of whitespace to one space.
func collapseWhitespace(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}
