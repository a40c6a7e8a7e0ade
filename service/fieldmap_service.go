package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"formbot-backend/models"
)

const (
	// Writes below this confidence are accepted but not persisted.
	confidenceThreshold = 80
	// AI-resolved confidence is clamped here; only explicit store calls
	// can claim higher.
	maxAIConfidence = 95
	// Minimum remaining request budget before attempting a completion call.
	minCompletionHeadroom = 2 * time.Second
	// Per-caller daily cap on field-mapping writes.
	maxDailyWrites = 100
)

// Completer is the hosted text-completion endpoint used for semantic field
// matching. Implementations must return the raw completion text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CacheAcquire obtains a live handle on the field-mapping cache or reports
// it unavailable
type CacheAcquire func(ctx context.Context) (MappingStore, error)

// FieldMapService maps described form fields onto candidate data keys,
// memoizing decisions in the cache and falling back to the completion
// service on misses
type FieldMapService struct {
	acquire   CacheAcquire
	completer Completer
}

// FieldMapServiceOption is a functional option for FieldMapService
type FieldMapServiceOption func(*FieldMapService)

// FieldMapWithCache sets the cache acquisition function
func FieldMapWithCache(acquire CacheAcquire) FieldMapServiceOption {
	return func(s *FieldMapService) {
		s.acquire = acquire
	}
}

// FieldMapWithCompleter sets the completion service client
func FieldMapWithCompleter(completer Completer) FieldMapServiceOption {
	return func(s *FieldMapService) {
		s.completer = completer
	}
}

// NewFieldMapService creates a new field-mapping service
func NewFieldMapService(opts ...FieldMapServiceOption) *FieldMapService {
	s := &FieldMapService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FieldDescriptor describes one form field as the extension sees it
type FieldDescriptor struct {
	Label       string   `json:"label"`
	Name        string   `json:"name"`
	Placeholder string   `json:"placeholder"`
	AriaLabel   string   `json:"ariaLabel"`
	Section     string   `json:"section"`
	Siblings    []string `json:"siblings"`
}

// Signature computes the cache key for a field: a hash over its descriptive
// text, case- and whitespace-normalized so cosmetic markup changes do not
// invalidate memoized decisions
func Signature(label, name, placeholder, ariaLabel string) string {
	parts := []string{label, name, placeholder, ariaLabel}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.Join(strings.Fields(p), " "))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// ResolveRequest asks for the best candidate key for one field
type ResolveRequest struct {
	Field         FieldDescriptor
	CandidateKeys []string
	FormPurpose   string
}

// ResolveResult carries the mapping decision. Found=false means no mapping
// is available; callers must treat that as a miss, not an error.
type ResolveResult struct {
	Found      bool
	MatchedKey string
	Confidence int
	UsageCount int64
	Origin     string
}

// Resolve consults the cache first; on a hit it bumps the usage counter and
// refreshes the entry's expiry. On a miss with enough context and enough
// remaining time budget it asks the completion service, validates the
// returned key against the candidate list, clamps confidence, and caches
// the result (low-confidence matches included, for observability). Every
// completion failure degrades to a not-found result.
func (s *FieldMapService) Resolve(ctx context.Context, req ResolveRequest) (*ResolveResult, error) {
	if s.acquire == nil {
		return nil, errors.New("field-mapping cache not set")
	}

	store, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}

	signature := Signature(req.Field.Label, req.Field.Name, req.Field.Placeholder, req.Field.AriaLabel)

	entry, err := store.GetMapping(ctx, signature)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		usage, err := store.IncrementUsage(ctx, signature)
		if err != nil {
			return nil, err
		}
		return &ResolveResult{
			Found:      true,
			MatchedKey: entry.MatchedKey,
			Confidence: entry.Confidence,
			UsageCount: usage,
			Origin:     models.MappingOriginCache,
		}, nil
	}

	// Miss path: only viable with a label, candidates, and a completer.
	if req.Field.Label == "" || len(req.CandidateKeys) == 0 || s.completer == nil {
		return &ResolveResult{Found: false}, nil
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < minCompletionHeadroom {
		return nil, ErrInsufficientTime
	}

	raw, err := s.completer.Complete(ctx, buildMappingPrompt(req.Field, req.CandidateKeys, req.FormPurpose))
	if err != nil {
		log.Printf("Warning: completion call failed: %v", err)
		return &ResolveResult{Found: false}, nil
	}

	var parsed struct {
		MatchedKey string  `json:"matchedKey"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripJSONFences(raw)), &parsed); err != nil {
		log.Printf("Warning: completion returned malformed JSON: %v", err)
		return &ResolveResult{Found: false}, nil
	}

	matched := matchCandidate(parsed.MatchedKey, req.CandidateKeys)
	if matched == "" {
		return &ResolveResult{Found: false}, nil
	}
	confidence := clampConfidence(int(parsed.Confidence))

	timestamp := nowMillis()
	mapping := &models.FieldMapping{
		Signature:  signature,
		MatchedKey: matched,
		Confidence: confidence,
		Label:      req.Field.Label,
		FieldName:  req.Field.Name,
		Origin:     models.MappingOriginAI,
		CreatedAt:  timestamp,
		UpdatedAt:  timestamp,
	}
	if err := store.PutMapping(ctx, mapping); err != nil {
		log.Printf("Warning: failed to cache mapping: %v", err)
	}

	return &ResolveResult{
		Found:      true,
		MatchedKey: matched,
		Confidence: confidence,
		Origin:     models.MappingOriginAI,
	}, nil
}

// BatchRequest asks for mappings for many fields against one candidate list
type BatchRequest struct {
	Fields        []FieldDescriptor
	CandidateKeys []string
	FormPurpose   string
}

// BatchEntry is one field's mapping decision. MatchedKey is nil when the
// completion service produced nothing usable for the field.
type BatchEntry struct {
	FieldIndex       int      `json:"fieldIndex"`
	MatchedKey       *string  `json:"matchedKey"`
	Confidence       int      `json:"confidence"`
	SecondaryMatches []string `json:"secondaryMatches,omitempty"`
	Reasoning        string   `json:"reasoning,omitempty"`
}

// ResolveBatch maps all fields in one completion call. The response is
// guaranteed to contain exactly one entry per input field, in input order;
// fields the completion service omits come back with a nil key and zero
// confidence. Confident matches are cached opportunistically.
func (s *FieldMapService) ResolveBatch(ctx context.Context, req BatchRequest) ([]BatchEntry, error) {
	results := make([]BatchEntry, len(req.Fields))
	for i := range results {
		results[i] = BatchEntry{FieldIndex: i, Confidence: 0}
	}

	if len(req.Fields) == 0 || len(req.CandidateKeys) == 0 || s.completer == nil {
		return results, nil
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < minCompletionHeadroom {
		return nil, ErrInsufficientTime
	}

	raw, err := s.completer.Complete(ctx, buildBatchPrompt(req.Fields, req.CandidateKeys, req.FormPurpose))
	if err != nil {
		log.Printf("Warning: batch completion call failed: %v", err)
		return results, nil
	}

	var parsed []struct {
		FieldIndex       int      `json:"fieldIndex"`
		MatchedKey       string   `json:"matchedKey"`
		Confidence       float64  `json:"confidence"`
		SecondaryMatches []string `json:"secondaryMatches"`
		Reasoning        string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(stripJSONFences(raw)), &parsed); err != nil {
		log.Printf("Warning: batch completion returned malformed JSON: %v", err)
		return results, nil
	}

	for _, entry := range parsed {
		if entry.FieldIndex < 0 || entry.FieldIndex >= len(req.Fields) {
			continue
		}
		matched := matchCandidate(entry.MatchedKey, req.CandidateKeys)
		if matched == "" {
			continue
		}

		var secondary []string
		for _, alt := range entry.SecondaryMatches {
			if m := matchCandidate(alt, req.CandidateKeys); m != "" && m != matched {
				secondary = append(secondary, m)
			}
		}

		results[entry.FieldIndex] = BatchEntry{
			FieldIndex:       entry.FieldIndex,
			MatchedKey:       &matched,
			Confidence:       clampConfidence(int(entry.Confidence)),
			SecondaryMatches: secondary,
			Reasoning:        entry.Reasoning,
		}
	}

	s.cacheBatchResults(ctx, req.Fields, results)
	return results, nil
}

// cacheBatchResults writes confident batch matches back to the cache.
// Best-effort: an unavailable cache does not fail the batch.
func (s *FieldMapService) cacheBatchResults(ctx context.Context, fields []FieldDescriptor, results []BatchEntry) {
	if s.acquire == nil {
		return
	}
	store, err := s.acquire(ctx)
	if err != nil {
		log.Printf("Warning: cache unavailable, skipping batch write-back: %v", err)
		return
	}

	timestamp := nowMillis()
	for _, entry := range results {
		if entry.MatchedKey == nil || entry.Confidence < confidenceThreshold {
			continue
		}
		field := fields[entry.FieldIndex]
		if field.Label == "" && field.Name == "" {
			continue
		}
		mapping := &models.FieldMapping{
			Signature:  Signature(field.Label, field.Name, field.Placeholder, field.AriaLabel),
			MatchedKey: *entry.MatchedKey,
			Confidence: entry.Confidence,
			Label:      field.Label,
			FieldName:  field.Name,
			Origin:     models.MappingOriginAI,
			CreatedAt:  timestamp,
			UpdatedAt:  timestamp,
		}
		if err := store.PutMapping(ctx, mapping); err != nil {
			log.Printf("Warning: failed to cache batch mapping: %v", err)
			return
		}
	}
}

// StoreMappingRequest is an explicit cache write from the extension
type StoreMappingRequest struct {
	Signature   string
	Label       string
	FieldName   string
	Placeholder string
	AriaLabel   string
	MatchedKey  string
	Confidence  int
	ClientIP    string
}

// StoreMappingResult reports whether the write was persisted
type StoreMappingResult struct {
	Stored  bool
	Message string
}

// StoreMapping persists a caller-supplied mapping. Confidence below the
// threshold is a deliberate no-op, reported as skipped rather than failed.
// Writes are capped per caller address per day; the cap is a coarse control
// since shared NATs pool many users behind one address.
func (s *FieldMapService) StoreMapping(ctx context.Context, req StoreMappingRequest) (*StoreMappingResult, error) {
	if s.acquire == nil {
		return nil, errors.New("field-mapping cache not set")
	}

	if req.Confidence < confidenceThreshold {
		return &StoreMappingResult{
			Stored:  false,
			Message: fmt.Sprintf("confidence %d below threshold %d, mapping skipped", req.Confidence, confidenceThreshold),
		}, nil
	}

	store, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}

	count, err := store.IncrementWriteCount(ctx, req.ClientIP)
	if err != nil {
		return nil, err
	}
	if count > maxDailyWrites {
		return nil, ErrRateLimited
	}

	signature := req.Signature
	if signature == "" {
		signature = Signature(req.Label, req.FieldName, req.Placeholder, req.AriaLabel)
	}

	timestamp := nowMillis()
	mapping := &models.FieldMapping{
		Signature:  signature,
		MatchedKey: req.MatchedKey,
		Confidence: req.Confidence,
		Label:      req.Label,
		FieldName:  req.FieldName,
		Origin:     models.MappingOriginCache,
		CreatedAt:  timestamp,
		UpdatedAt:  timestamp,
	}
	if existing, err := store.GetMapping(ctx, signature); err == nil && existing != nil {
		if existing.CreatedAt > 0 {
			mapping.CreatedAt = existing.CreatedAt
		}
		mapping.UsageCount = existing.UsageCount
	}

	if err := store.PutMapping(ctx, mapping); err != nil {
		return nil, err
	}
	return &StoreMappingResult{Stored: true, Message: "mapping stored"}, nil
}

// matchCandidate validates a completion-returned key against the candidate
// list: exact match first, then a comparison with case, spacing and
// punctuation stripped. Returns the canonical candidate or ""
func matchCandidate(key string, candidates []string) string {
	if key == "" || strings.EqualFold(key, "none") || strings.EqualFold(key, "null") {
		return ""
	}
	for _, c := range candidates {
		if c == key {
			return c
		}
	}
	norm := normalizeKey(key)
	if norm == "" {
		return ""
	}
	for _, c := range candidates {
		if normalizeKey(c) == norm {
			return c
		}
	}
	return ""
}

// normalizeKey lowers the key and drops everything but letters and digits
func normalizeKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func clampConfidence(confidence int) int {
	if confidence < 0 {
		return 0
	}
	if confidence > maxAIConfidence {
		return maxAIConfidence
	}
	return confidence
}

// stripJSONFences removes markdown code fences some models wrap strict-JSON
// output in despite instructions
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

// buildMappingPrompt embeds the field's descriptive text, its surroundings
// and the verbatim candidate list
func buildMappingPrompt(field FieldDescriptor, candidates []string, formPurpose string) string {
	return fmt.Sprintf(`You are matching a web form field to a user's stored profile data.

FORM FIELD:
Label: %s
Name attribute: %s
Placeholder: %s
Accessibility label: %s
Section header: %s
Nearby fields: %s

FORM PURPOSE: %s

CANDIDATE DATA KEYS:
%s

TASK:
Pick the single candidate key whose data belongs in this field. Judge by
meaning, not by string similarity alone. If no candidate fits, answer "none".

OUTPUT REQUIREMENTS:
- Respond with strict JSON only, no prose, no markdown
- Format: {"matchedKey": "<one candidate key or none>", "confidence": <0-100>}
- matchedKey must be copied verbatim from the candidate list`,
		field.Label,
		field.Name,
		field.Placeholder,
		field.AriaLabel,
		field.Section,
		strings.Join(field.Siblings, ", "),
		formPurpose,
		strings.Join(candidates, "\n"),
	)
}

// buildBatchPrompt covers all fields in one request and asks for secondary
// candidates with reasoning per field
func buildBatchPrompt(fields []FieldDescriptor, candidates []string, formPurpose string) string {
	var fieldList strings.Builder
	for i, field := range fields {
		fieldList.WriteString(fmt.Sprintf("Field %d:\n  Label: %s\n  Name attribute: %s\n  Placeholder: %s\n  Section header: %s\n",
			i, field.Label, field.Name, field.Placeholder, field.Section))
	}

	return fmt.Sprintf(`You are matching web form fields to a user's stored profile data.

FORM FIELDS:
%s
FORM PURPOSE: %s

CANDIDATE DATA KEYS:
%s

TASK:
For every field, pick the single candidate key whose data belongs in it,
plus up to two secondary candidates that could also fit. Judge by meaning,
not by string similarity alone. Use "none" when no candidate fits a field.

OUTPUT REQUIREMENTS:
- Respond with strict JSON only, no prose, no markdown
- Format: a JSON array with one object per field:
  [{"fieldIndex": <n>, "matchedKey": "<candidate key or none>", "confidence": <0-100>, "secondaryMatches": ["<candidate key>"], "reasoning": "<one sentence>"}]
- Include every field index exactly once
- matchedKey and secondaryMatches entries must be copied verbatim from the candidate list`,
		fieldList.String(),
		formPurpose,
		strings.Join(candidates, "\n"),
	)
}
