// pdp/engine/conflict.go
package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	logger "github.com/sentra-labs/sentra/logging"
	"github.com/sentra-labs/sentra/pdp/model"
)

// ConflictResolver merges independent policy evaluations of the same request
// into one verdict. Results are deterministic: inputs are sorted by policy id
// before detection and resolution so completion order never matters.
type ConflictResolver struct{}

func NewConflictResolver() *ConflictResolver {
	return &ConflictResolver{}
}

// Resolve detects conflicts among the evaluations, selects a strategy from
// the request context, and merges. Any panic during resolution yields the
// fixed fail-closed fallback.
func (r *ConflictResolver) Resolve(evaluations []model.PolicyEvaluation, rctx model.ResolutionContext) (result model.ResolutionResult) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Conflict resolution panicked, failing closed", zap.Any("panic", rec))
			obligations := model.NewObligationSet()
			obligations.RequireAudit()
			result = model.ResolutionResult{
				Decision:     model.DecisionDeny,
				Band:         model.BandRed,
				Obligations:  obligations,
				Confidence:   0.3,
				Reasoning:    []string{"conflict_resolution_failure"},
				StrategyUsed: StrategyFallback(),
			}
		}
		result.ResolutionTimeMs = float64(time.Since(start).Microseconds()) / 1000.0
	}()

	if len(evaluations) == 0 {
		obligations := model.NewObligationSet()
		obligations.RequireAudit()
		return model.ResolutionResult{
			Decision:     model.DecisionDeny,
			Band:         model.BandRed,
			Obligations:  obligations,
			Confidence:   0.3,
			Reasoning:    []string{"no_evaluations_provided"},
			StrategyUsed: StrategyFallback(),
		}
	}

	sorted := make([]model.PolicyEvaluation, len(evaluations))
	copy(sorted, evaluations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PolicyID < sorted[j].PolicyID
	})

	if len(sorted) == 1 {
		only := sorted[0]
		return model.ResolutionResult{
			Decision:     only.Decision,
			Band:         only.Band,
			Obligations:  only.Obligations,
			Confidence:   only.Confidence,
			Reasoning:    append([]string{"single_evaluation"}, only.Reasons...),
			StrategyUsed: model.StrategyConsensusBuilding,
		}
	}

	conflicts := r.DetectConflicts(sorted)
	if len(conflicts) == 0 {
		result = r.resolveMostRestrictive(sorted)
		result.Reasoning = []string{"no_conflicts_detected"}
		result.StrategyUsed = model.StrategyConsensusBuilding
		return result
	}
	strategy := r.selectStrategy(conflicts, rctx)

	switch strategy {
	case model.StrategyPriorityResolution:
		result = r.resolveByPriority(sorted)
	case model.StrategyMostRestrictive:
		result = r.resolveMostRestrictive(sorted)
	case model.StrategyDenyWins:
		result = r.resolveDenyWins(sorted)
	case model.StrategyWeightedScoring:
		result = r.resolveWeightedScoring(sorted)
	default:
		result = r.resolveConsensus(sorted)
	}
	result.StrategyUsed = strategy
	result.ConflictsResolved = conflicts
	return result
}

// StrategyFallback names the fixed fallback strategy used on failure.
func StrategyFallback() model.ResolutionStrategy {
	return model.StrategyResolutionFallback
}

// DetectConflicts flags decision (HIGH), band (MEDIUM), obligation (MEDIUM)
// and priority (LOW) disagreements. Records are never mutated afterwards.
func (r *ConflictResolver) DetectConflicts(evaluations []model.PolicyEvaluation) []model.ConflictRecord {
	var conflicts []model.ConflictRecord
	ids := make([]string, 0, len(evaluations))
	for _, e := range evaluations {
		ids = append(ids, e.PolicyID)
	}

	decisionsDiffer, bandsDiffer := false, false
	for _, e := range evaluations[1:] {
		if e.Decision != evaluations[0].Decision {
			decisionsDiffer = true
		}
		if e.Band != evaluations[0].Band {
			bandsDiffer = true
		}
	}
	if decisionsDiffer {
		conflicts = append(conflicts, model.ConflictRecord{
			Type:      model.ConflictDecision,
			Severity:  model.SeverityHigh,
			PolicyIDs: ids,
			Evidence:  "policies returned different decisions",
		})
	}
	if bandsDiffer {
		conflicts = append(conflicts, model.ConflictRecord{
			Type:      model.ConflictBand,
			Severity:  model.SeverityMedium,
			PolicyIDs: ids,
			Evidence:  "policies returned different bands",
		})
	}

	// Contradictory numeric limits on a shared key.
	seen := map[string]float64{}
	obligationConflict := false
	for _, e := range evaluations {
		for name, v := range e.Obligations.Limits {
			if prev, ok := seen[name]; ok && prev != v {
				obligationConflict = true
			}
			seen[name] = v
		}
	}
	if obligationConflict {
		conflicts = append(conflicts, model.ConflictRecord{
			Type:      model.ConflictObligation,
			Severity:  model.SeverityMedium,
			PolicyIDs: ids,
			Evidence:  "policies set contradictory values for a shared limit",
		})
	}

	// Same-priority policies that disagree.
	byPriority := map[int]model.Decision{}
	priorityConflict := false
	for _, e := range evaluations {
		if prev, ok := byPriority[e.Priority]; ok && prev != e.Decision {
			priorityConflict = true
		}
		byPriority[e.Priority] = e.Decision
	}
	if priorityConflict {
		conflicts = append(conflicts, model.ConflictRecord{
			Type:      model.ConflictPriority,
			Severity:  model.SeverityLow,
			PolicyIDs: ids,
			Evidence:  "same-priority policies disagree",
		})
	}
	return conflicts
}

// selectStrategy applies the first-match rules from the request context.
func (r *ConflictResolver) selectStrategy(conflicts []model.ConflictRecord, rctx model.ResolutionContext) model.ResolutionStrategy {
	if rctx.Urgency == "emergency" || rctx.SecurityAlertLevel == "critical" {
		return model.StrategyPriorityResolution
	}
	if rctx.ActorIsMinor || rctx.SafetyPressure > 0.5 || rctx.DeviceUntrusted {
		return model.StrategyMostRestrictive
	}
	mediumCount := 0
	for _, c := range conflicts {
		switch c.Severity {
		case model.SeverityHigh:
			return model.StrategyDenyWins
		case model.SeverityMedium:
			mediumCount++
		}
	}
	if mediumCount > 1 {
		return model.StrategyWeightedScoring
	}
	return model.StrategyConsensusBuilding
}

func (r *ConflictResolver) resolveByPriority(evaluations []model.PolicyEvaluation) model.ResolutionResult {
	best := evaluations[0]
	for _, e := range evaluations[1:] {
		if e.Priority > best.Priority ||
			(e.Priority == best.Priority && e.Confidence > best.Confidence) {
			best = e
		}
	}
	return model.ResolutionResult{
		Decision:    best.Decision,
		Band:        best.Band,
		Obligations: best.Obligations,
		Confidence:  best.Confidence,
		Reasoning:   []string{fmt.Sprintf("priority_resolution selected %s (priority %d)", best.PolicyID, best.Priority)},
	}
}

func (r *ConflictResolver) resolveMostRestrictive(evaluations []model.PolicyEvaluation) model.ResolutionResult {
	decision := evaluations[0].Decision
	band := evaluations[0].Band
	obligations := evaluations[0].Obligations
	confidence := evaluations[0].Confidence
	for _, e := range evaluations[1:] {
		decision = decision.MostRestrictive(e.Decision)
		band = band.Escalate(e.Band)
		obligations = obligations.Merge(e.Obligations)
		confidence = math.Min(confidence, e.Confidence)
	}
	return model.ResolutionResult{
		Decision:    decision,
		Band:        band,
		Obligations: obligations,
		Confidence:  confidence,
		Reasoning:   []string{"most_restrictive_wins merged all evaluations"},
	}
}

func (r *ConflictResolver) resolveDenyWins(evaluations []model.PolicyEvaluation) model.ResolutionResult {
	var deny *model.PolicyEvaluation
	for i := range evaluations {
		e := &evaluations[i]
		if e.Decision != model.DecisionDeny {
			continue
		}
		if deny == nil || e.Confidence > deny.Confidence {
			deny = e
		}
	}
	if deny == nil {
		return r.resolveMostRestrictive(evaluations)
	}
	band := deny.Band
	for _, e := range evaluations {
		band = band.Escalate(e.Band)
	}
	return model.ResolutionResult{
		Decision:    model.DecisionDeny,
		Band:        band,
		Obligations: deny.Obligations,
		Confidence:  deny.Confidence,
		Reasoning:   []string{fmt.Sprintf("deny_wins selected %s", deny.PolicyID)},
	}
}

// Weighted scoring favors cautious evaluations over permissive ones:
// safety 0.4, security 0.3, usability 0.2, performance 0.1.
func (r *ConflictResolver) scoreEvaluation(e model.PolicyEvaluation) float64 {
	var safetyScore float64
	switch e.Decision {
	case model.DecisionDeny:
		safetyScore = 1.0
	case model.DecisionAllowRedacted:
		safetyScore = 0.7
	default:
		safetyScore = 0.4
	}
	securityScore := (float64(e.Band)/float64(model.BandBlack))*0.5 + e.Confidence*0.5
	var usabilityScore float64
	switch e.Decision {
	case model.DecisionAllow:
		usabilityScore = 1.0
	case model.DecisionAllowRedacted:
		usabilityScore = 0.6
	}
	performanceScore := 1.0 / (1.0 + e.EvaluationTimeMs/50.0)
	return 0.4*safetyScore + 0.3*securityScore + 0.2*usabilityScore + 0.1*performanceScore
}

func (r *ConflictResolver) resolveWeightedScoring(evaluations []model.PolicyEvaluation) model.ResolutionResult {
	best := evaluations[0]
	bestScore := r.scoreEvaluation(best)
	for _, e := range evaluations[1:] {
		if score := r.scoreEvaluation(e); score > bestScore {
			best, bestScore = e, score
		}
	}
	return model.ResolutionResult{
		Decision:    best.Decision,
		Band:        best.Band,
		Obligations: best.Obligations,
		Confidence:  best.Confidence,
		Reasoning:   []string{fmt.Sprintf("weighted_scoring selected %s (score %.3f)", best.PolicyID, bestScore)},
	}
}

func (r *ConflictResolver) resolveConsensus(evaluations []model.PolicyEvaluation) model.ResolutionResult {
	var hasAllow, hasDeny bool
	counts := map[model.Decision]int{}
	bandSum := 0
	obligations := model.NewObligationSet()
	var confidenceSum float64
	for _, e := range evaluations {
		counts[e.Decision]++
		bandSum += int(e.Band)
		obligations = obligations.Merge(e.Obligations)
		confidenceSum += e.Confidence
		switch e.Decision {
		case model.DecisionAllow:
			hasAllow = true
		case model.DecisionDeny:
			hasDeny = true
		}
	}

	decision := model.DecisionAllowRedacted
	if !(hasAllow && hasDeny) {
		// Plurality decision, most restrictive on ties.
		bestCount := -1
		for _, candidate := range []model.Decision{model.DecisionDeny, model.DecisionAllowRedacted, model.DecisionAllow} {
			if counts[candidate] > bestCount {
				decision = candidate
				bestCount = counts[candidate]
			}
		}
	}

	// Compromise band: ceil(mean) plus one tier, clamped to BLACK.
	mean := float64(bandSum) / float64(len(evaluations))
	compromise := model.Band(int(math.Ceil(mean)) + 1)
	if compromise > model.BandBlack {
		compromise = model.BandBlack
	}

	return model.ResolutionResult{
		Decision:    decision,
		Band:        compromise,
		Obligations: obligations,
		Confidence:  confidenceSum / float64(len(evaluations)),
		Reasoning:   []string{"consensus_building compromise"},
	}
}
