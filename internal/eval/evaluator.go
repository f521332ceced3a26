// Package eval implements the evaluation pipeline that decides whether a
// piece of prompt or response text is allowed, and redacts any PII it
// contains.
//
// Stage 1 (deterministic rules) can short-circuit the whole evaluation with
// a block decision. A payload guard then rejects text exceeding the active
// policy's pii.max_bytes. Stage 1.5 (semantic near-duplicate matching) can
// also short-circuit with a block. Stage 2 (PII detection and redaction)
// always runs on the output text, even after an explicit allow rule
// matched, because masking is a property of the text itself rather than of
// the policy decision.
package eval

import (
	"errors"

	"github.com/google/uuid"

	"github.com/promptgate/gateway/internal/domain/policy"
	"github.com/promptgate/gateway/internal/pii"
	"github.com/promptgate/gateway/internal/policy/compiled"
	"github.com/promptgate/gateway/internal/policy/store"
)

const defaultRedactionToken = "[REDACTED]"

const defaultMaxBytes = 32768

const defaultSemanticCacheSize = 1000

// ErrPayloadTooLarge is returned by Evaluate when the request text exceeds
// the active policy's pii.max_bytes, per spec.md's Stage 1 -> payload guard
// ordering. The caller (the HTTP adapter) maps this to 413.
var ErrPayloadTooLarge = errors.New("text exceeds pii.max_bytes")

// Evaluator runs the evaluation pipeline against the current policy
// snapshot served by a store.Store.
type Evaluator struct {
	store    *store.Store
	detector *pii.Detector
	semCache *semanticCache
}

// New creates an Evaluator reading its policy from s.
func New(s *store.Store) *Evaluator {
	return &Evaluator{
		store:    s,
		detector: pii.NewDetector(),
		semCache: newSemanticCache(defaultSemanticCacheSize),
	}
}

// Evaluate runs the full pipeline against req and returns the response to
// send back to the caller. It returns ErrPayloadTooLarge if the text fails
// the payload guard between Stage 1 and Stage 1.5; no other stage can fail.
func (e *Evaluator) Evaluate(req policy.EvalRequest) (policy.EvalResponse, error) {
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	snap := e.store.Snapshot()

	// Stage 1 matched rule/reason are kept even when its action is allow,
	// so the final response still reports which rule was matched.
	matchedRule, matchedReason, blocked := stage1(snap.Compiled, req)
	if blocked {
		return policy.EvalResponse{
			RequestID:   requestID,
			Action:      policy.ActionBlock,
			MatchedRule: matchedRule,
			Reason:      matchedReason,
		}, nil
	}

	if uint(len(req.Text)) > effectiveMaxBytes(snap.Pii) {
		return policy.EvalResponse{}, ErrPayloadTooLarge
	}

	if caseID, reason, blocked := e.stage1_5(snap, req); blocked {
		return policy.EvalResponse{
			RequestID:   requestID,
			Action:      policy.ActionBlock,
			MatchedRule: caseID,
			Reason:      reason,
		}, nil
	}

	return e.stage2(requestID, policy.ActionAllow, matchedRule, matchedReason, snap, req), nil
}

// effectiveMaxBytes resolves pii.max_bytes, applying spec.md's default of
// 32768 when the document leaves it unset.
func effectiveMaxBytes(cfg policy.PiiConfig) uint {
	if cfg.MaxBytes == 0 {
		return defaultMaxBytes
	}
	return cfg.MaxBytes
}

// stage1 evaluates deterministic rules in priority order and returns the
// first match. blocked is true only when the matching rule's action is
// block; an allow match returns blocked=false with rule/reason populated.
func stage1(cp *compiled.Policy, req policy.EvalRequest) (rule string, reason string, blocked bool) {
	for _, r := range cp.Rules {
		if !r.Applies(req.Kind) {
			continue
		}
		if !anyMatch(r, req) {
			continue
		}
		reason := r.Description
		if reason == "" {
			reason = "matched"
		}
		return r.ID, reason, r.Action == policy.ActionBlock
	}
	return "", "", false
}

func anyMatch(r compiled.Rule, req policy.EvalRequest) bool {
	for _, m := range r.Any {
		if m.Test(fieldValue(m.Field, req)) {
			return true
		}
	}
	return false
}

func fieldValue(f policy.Field, req policy.EvalRequest) string {
	switch f {
	case policy.FieldTenant:
		return req.Tenant
	case policy.FieldModel:
		return req.Model
	default:
		return req.Text
	}
}

// stage1_5 runs the optional semantic near-duplicate matcher, caching
// results per (kind, text) since a retried request recomputes nothing.
func (e *Evaluator) stage1_5(snap *store.Snapshot, req policy.EvalRequest) (caseID string, reason string, blocked bool) {
	if !snap.Semantic.Enabled {
		return "", "", false
	}

	key := semanticCacheKey(string(req.Kind), req.Text)
	result, ok, cached := e.semCache.get(key)
	if !cached {
		result, ok = snap.Semantic.Evaluate(req.Kind, req.Text)
		e.semCache.put(key, result, ok)
	}
	if !ok {
		return "", "", false
	}

	if snap.Semantic.Action != policy.ActionBlock {
		return "", "", false
	}
	return result.CaseID, "semantic match: " + result.CaseID, true
}

// stage2 runs PII detection/redaction on the request text when enabled,
// applicable to req.Kind, and in "redact" mode, then assembles the final
// allow response.
func (e *Evaluator) stage2(requestID string, action policy.Action, rule, reason string, snap *store.Snapshot, req policy.EvalRequest) policy.EvalResponse {
	resp := policy.EvalResponse{
		RequestID:   requestID,
		Action:      action,
		MatchedRule: rule,
		Reason:      reason,
	}

	cfg := snap.Pii
	enabled := cfg.Enabled == nil || *cfg.Enabled
	mode := cfg.Mode
	if mode == "" {
		mode = policy.PiiModeRedact
	}
	appliesTo := cfg.AppliesTo
	if appliesTo == "" {
		appliesTo = policy.AppliesToBoth
	}

	if !enabled || mode == policy.PiiModeOff || !appliesTo.Applies(req.Kind) {
		return resp
	}

	token := cfg.RedactionToken
	if token == "" {
		token = defaultRedactionToken
	}

	enabledTypes := pii.Enabled{
		Email:      cfg.Detectors.Email,
		IP:         cfg.Detectors.IP,
		CreditCard: cfg.Detectors.CreditCard,
		Phone:      cfg.Detectors.Phone,
	}

	masked, findings := e.detector.Mask(req.Text, token, enabledTypes)
	if len(findings) == 0 {
		return resp
	}

	resp.OutputText = &masked
	if !cfg.IncludeFindings {
		return resp
	}

	resp.Pii = make([]policy.PiiEntity, 0, len(findings))
	for _, f := range findings {
		resp.Pii = append(resp.Pii, policy.PiiEntity{
			EntityType: string(f.Type),
			Start:      f.Start,
			End:        f.End,
			Score:      1.0,
			Text:       f.Text,
		})
	}
	return resp
}
