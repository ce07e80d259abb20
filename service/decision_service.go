// service/decision_service.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sentra-labs/sentra/audit"
	logger "github.com/sentra-labs/sentra/logging"
	"github.com/sentra-labs/sentra/pdp/engine"
	"github.com/sentra-labs/sentra/pdp/model"
	"github.com/sentra-labs/sentra/util"
)

// Event types published on the bus per decision outcome.
const (
	EventDecisionEvaluated = "decision.evaluated"
	EventDecisionResolved  = "decision.resolved"
	EventDecisionDenied    = "decision.denied"
)

// IDecisionService is the surface the controller depends on.
type IDecisionService interface {
	Evaluate(ctx context.Context, pctx *model.PolicyContext, hist model.HistoricalContext, rt model.RealtimeContext) *model.EvaluationResult
	Resolve(ctx context.Context, evaluations []model.PolicyEvaluation, rctx model.ResolutionContext) model.ResolutionResult
	Metrics() engine.CacheStats
}

// DecisionService orchestrates the evaluator facade with the audit trail,
// notifications and the event bus. The engine itself never fails a request;
// the service only adds side channels around the verdict.
type DecisionService struct {
	evaluator           *engine.Evaluator
	eventBus            *util.EventBus
	notificationService *util.NotificationService
}

var _ IDecisionService = (*DecisionService)(nil)

func NewDecisionService(
	evaluator *engine.Evaluator,
	eventBus *util.EventBus,
	notificationService *util.NotificationService,
) *DecisionService {
	return &DecisionService{
		evaluator:           evaluator,
		eventBus:            eventBus,
		notificationService: notificationService,
	}
}

func (s *DecisionService) Evaluate(ctx context.Context, pctx *model.PolicyContext, hist model.HistoricalContext, rt model.RealtimeContext) *model.EvaluationResult {
	result := s.evaluator.EvaluateWithContexts(ctx, pctx, hist, rt)

	record := audit.DecisionRecord{
		AuditID:          result.AuditID,
		Timestamp:        time.Now(),
		ActorID:          pctx.Actor.ID,
		DeviceID:         pctx.Device.ID,
		Action:           pctx.Action,
		Decision:         result.Decision.String(),
		Band:             result.Band.String(),
		Reasons:          result.Reasons,
		CacheHit:         result.CacheHit,
		EvaluationTimeMs: result.EvaluationTimeMs,
	}
	s.eventBus.Publish(ctx, EventDecisionEvaluated, record)

	if result.Decision == model.DecisionDeny {
		s.eventBus.Publish(ctx, EventDecisionDenied, record)
	}
	if result.Obligations.HasControl("adult_notification") {
		if err := s.notificationService.NotifyGuardian(ctx, pctx.Actor.ID, result.AuditID); err != nil {
			logger.Warn("Guardian notification failed",
				zap.Error(err), zap.String("auditID", result.AuditID))
		}
	}

	return result
}

func (s *DecisionService) Resolve(ctx context.Context, evaluations []model.PolicyEvaluation, rctx model.ResolutionContext) model.ResolutionResult {
	result := s.evaluator.ResolvePolicies(evaluations, rctx)

	s.eventBus.Publish(ctx, EventDecisionResolved, audit.DecisionRecord{
		AuditID:          result.Obligations.AuditID,
		Timestamp:        time.Now(),
		Decision:         result.Decision.String(),
		Band:             result.Band.String(),
		Reasons:          result.Reasoning,
		Strategy:         string(result.StrategyUsed),
		EvaluationTimeMs: result.ResolutionTimeMs,
	})
	return result
}

func (s *DecisionService) Metrics() engine.CacheStats {
	return s.evaluator.CacheStats()
}
