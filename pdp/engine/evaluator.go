// pdp/engine/evaluator.go
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	logger "github.com/sentra-labs/sentra/logging"
	"github.com/sentra-labs/sentra/pdp/attribute"
	"github.com/sentra-labs/sentra/pdp/model"
	"github.com/sentra-labs/sentra/pdp/safety"
)

// Options configures the evaluator facade.
type Options struct {
	CacheBackend CacheBackend
	CacheTTL     time.Duration
	Safety       safety.Pipeline
	// EnableScorer runs the context-aware scorer alongside the core
	// pipeline and reconciles both through the conflict resolver. The
	// core pipeline is always the baseline path.
	EnableScorer bool
}

// Evaluator is the outermost decision surface: attribute validation,
// combination rules, decision cache, core pipeline, optional scorer, and
// conflict resolution, stitched together per request. It holds no
// per-request state and is safe for concurrent use.
type Evaluator struct {
	attributes   *attribute.Evaluator
	rules        *attribute.RuleEngine
	pipeline     *CorePipeline
	scorer       *ContextScorer
	resolver     *ConflictResolver
	cache        *DecisionCache
	enableScorer bool
}

func NewEvaluator(opts Options) *Evaluator {
	return &Evaluator{
		attributes:   attribute.NewEvaluator(),
		rules:        attribute.NewRuleEngine(),
		pipeline:     NewCorePipeline(opts.Safety),
		scorer:       NewContextScorer(),
		resolver:     NewConflictResolver(),
		cache:        NewDecisionCache(opts.CacheBackend, opts.CacheTTL),
		enableScorer: opts.EnableScorer,
	}
}

// Evaluate decides a single request with neutral historical and realtime
// contexts.
func (e *Evaluator) Evaluate(ctx context.Context, pctx *model.PolicyContext) *model.EvaluationResult {
	return e.EvaluateWithContexts(ctx, pctx, model.HistoricalContext{}, model.RealtimeContext{})
}

// EvaluateWithContexts decides a single request. Every call terminates in a
// concrete decision: validation failures and internal panics both produce
// the fail-closed (DENY, RED) verdict, never an error.
func (e *Evaluator) EvaluateWithContexts(ctx context.Context, pctx *model.PolicyContext, hist model.HistoricalContext, rt model.RealtimeContext) (result *model.EvaluationResult) {
	start := time.Now()
	auditID := uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Evaluation panicked, failing closed",
				zap.Any("panic", r), zap.String("auditId", auditID))
			result = e.failClosed(auditID, start, "pipeline_failure")
		}
		e.cache.RecordEvaluation(time.Since(start))
	}()

	attrEval := e.attributes.Evaluate(pctx)
	if !attrEval.Valid() {
		logger.Warn("Attribute validation failed",
			zap.Strings("errors", attrEval.ValidationErrors),
			zap.String("auditId", auditID))
		return e.failClosed(auditID, start, attrEval.ValidationErrors...)
	}

	key := e.cache.Key(pctx)
	if cached, ok := e.cache.Get(ctx, key); ok {
		obligations := cached.Obligations
		obligations.AuditID = auditID
		return &model.EvaluationResult{
			Decision:         cached.Decision,
			Band:             cached.Band,
			Obligations:      obligations,
			Reasons:          cached.Reasons,
			AuditID:          auditID,
			Confidence:       1.0,
			EvaluationTimeMs: elapsedMs(start),
			CacheHit:         true,
		}
	}

	ruleEffects, fired := e.rules.Apply(pctx.Actor, pctx.Device, pctx.Environment)
	if len(fired) > 0 {
		logger.Debug("Combination rules fired",
			zap.Strings("rules", fired), zap.String("auditId", auditID))
	}
	effects := append(append([]string(nil), attrEval.ContextEffects...), ruleEffects...)

	coreEval := e.pipeline.Evaluate(ctx, pctx, attrEval.BandEscalation, effects)

	var decision model.Decision
	var band model.Band
	var obligations model.ObligationSet
	var reasons []string
	var confidence float64

	if e.enableScorer {
		scored := e.scorer.Score(pctx, hist, rt)
		resolution := e.resolver.Resolve(
			[]model.PolicyEvaluation{coreEval, scored.ToPolicyEvaluation(time.Since(start))},
			resolutionContextFrom(pctx),
		)
		decision = resolution.Decision
		band = resolution.Band
		obligations = resolution.Obligations
		reasons = resolution.Reasoning
		confidence = resolution.Confidence
	} else {
		decision = coreEval.Decision
		band = coreEval.Band
		obligations = coreEval.Obligations
		reasons = coreEval.Reasons
		confidence = coreEval.Confidence
	}

	obligations.AuditID = auditID
	if decision == model.DecisionDeny {
		obligations.RequireAudit()
	}

	e.cache.Put(ctx, key, model.CachedDecision{
		Decision:    decision,
		Band:        band,
		Reasons:     reasons,
		Obligations: obligations,
	})

	return &model.EvaluationResult{
		Decision:         decision,
		Band:             band,
		Obligations:      obligations,
		Reasons:          reasons,
		AuditID:          auditID,
		Confidence:       confidence,
		EvaluationTimeMs: elapsedMs(start),
		CacheHit:         false,
	}
}

// ResolvePolicies merges already-computed evaluations for the same request.
func (e *Evaluator) ResolvePolicies(evaluations []model.PolicyEvaluation, rctx model.ResolutionContext) model.ResolutionResult {
	return e.resolver.Resolve(evaluations, rctx)
}

// CacheStats exposes cache and latency metrics.
func (e *Evaluator) CacheStats() CacheStats {
	return e.cache.Stats()
}

func (e *Evaluator) failClosed(auditID string, start time.Time, reasons ...string) *model.EvaluationResult {
	obligations := model.NewObligationSet()
	obligations.RequireAudit()
	obligations.AuditID = auditID
	return &model.EvaluationResult{
		Decision:         model.DecisionDeny,
		Band:             model.BandRed,
		Obligations:      obligations,
		Reasons:          reasons,
		AuditID:          auditID,
		Confidence:       0.9,
		EvaluationTimeMs: elapsedMs(start),
	}
}

func resolutionContextFrom(pctx *model.PolicyContext) model.ResolutionContext {
	return model.ResolutionContext{
		Urgency:            pctx.Metadata.Urgency,
		SecurityAlertLevel: pctx.Metadata.SecurityAlertLevel,
		ActorIsMinor:       pctx.Actor.IsMinor,
		SafetyPressure:     pctx.Environment.SafetyPressure,
		DeviceUntrusted:    pctx.Device.Trust == "untrusted",
	}
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
