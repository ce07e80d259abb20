// pdp/engine/scorer.go
package engine

import (
	"math"
	"time"

	"github.com/sentra-labs/sentra/pdp/model"
)

const ContextScorerPolicyID = "context_scorer"

// Factor weights for the context-aware score. They must sum to 1.
const (
	weightSecurity    = 0.35
	weightSafety      = 0.30
	weightOperational = 0.20
	weightContextual  = 0.15
)

// ContextEvaluation is the scorer's verdict plus the factor breakdown that
// produced it, kept for explainability.
type ContextEvaluation struct {
	Decision     model.Decision      `json:"decision"`
	Band         model.Band          `json:"band"`
	Obligations  model.ObligationSet `json:"obligations"`
	Confidence   float64             `json:"confidence"`
	TotalScore   float64             `json:"total_score"`
	FactorScores map[string]float64  `json:"factor_scores"`
	Reasons      []string            `json:"reasons,omitempty"`
	Priority     int                 `json:"priority"`
}

// ToPolicyEvaluation adapts the scorer output for conflict resolution.
func (ce ContextEvaluation) ToPolicyEvaluation(elapsed time.Duration) model.PolicyEvaluation {
	return model.PolicyEvaluation{
		PolicyID:         ContextScorerPolicyID,
		Decision:         ce.Decision,
		Band:             ce.Band,
		Confidence:       ce.Confidence,
		Reasons:          ce.Reasons,
		Obligations:      ce.Obligations,
		Priority:         ce.Priority,
		EvaluationTimeMs: float64(elapsed.Microseconds()) / 1000.0,
	}
}

// ContextScorer is the refinement decisioning path: a weighted sum over
// security, safety, operational and contextual factors, mapped to a base
// (decision, band) pair, then adapted and finally checked for overrides.
type ContextScorer struct{}

func NewContextScorer() *ContextScorer {
	return &ContextScorer{}
}

func trustScore(level string) float64 {
	switch level {
	case "trusted":
		return 1.0
	case "standard", "managed":
		return 0.7
	case "low", "untrusted":
		return 0.25
	default:
		return 0.5
	}
}

func networkScore(networkType string) float64 {
	switch networkType {
	case "private":
		return 1.0
	case "public":
		return 0.5
	case "untrusted":
		return 0.2
	default:
		return 0.6
	}
}

func (s *ContextScorer) securityFactor(pctx *model.PolicyContext, hist model.HistoricalContext) float64 {
	deviceTrust := trustScore(pctx.Device.Trust)
	if pctx.Device.RootedJailbroken {
		deviceTrust *= 0.3
	}
	behavior := hist.BehaviorScore
	if behavior == 0 && hist.RecentDenials == 0 {
		behavior = 0.5 // no history yet
	}
	return 0.4*trustScore(pctx.Actor.TrustLevel) +
		0.3*deviceTrust +
		0.2*networkScore(pctx.Device.NetworkType) +
		0.1*behavior
}

func (s *ContextScorer) safetyFactor(pctx *model.PolicyContext) float64 {
	supervision := 1.0
	if pctx.Actor.IsMinor && !pctx.Environment.FamilyPresent {
		supervision = 0.5
	}
	return 0.5*(1.0-pctx.Environment.SafetyPressure) +
		0.3*(1.0-pctx.Environment.Arousal) +
		0.2*supervision
}

func (s *ContextScorer) operationalFactor(pctx *model.PolicyContext, rt model.RealtimeContext) float64 {
	battery, cpu := 1.0, 1.0
	if pctx.Device.BatteryLow {
		battery = 0.3
	}
	if pctx.Device.CPUThrottled {
		cpu = 0.3
	}
	return 0.4*battery + 0.3*cpu + 0.3*(1.0-rt.SystemLoad)
}

func timeAppropriateness(env model.EnvironmentAttributes) float64 {
	score := 0.3
	switch hour := env.TimeOfDayHours; {
	case hour >= 8 && hour < 21:
		score = 1.0
	case hour >= 6 && hour < 8, hour >= 21 && hour < 23:
		score = 0.6
	}
	if env.SleepTime {
		score = math.Min(score, 0.3)
	}
	return score
}

func (s *ContextScorer) contextualFactor(pctx *model.PolicyContext) float64 {
	verified := 0.4
	if pctx.Environment.LocationVerified {
		verified = 1.0
	}
	return 0.4*timeAppropriateness(pctx.Environment) +
		0.3*(1.0-geofenceRisk(pctx.Environment.GeofenceZone)) +
		0.3*verified
}

var scoreThresholds = []float64{0.8, 0.6, 0.4, 0.2}

func baseMapping(total float64) (model.Decision, model.Band) {
	switch {
	case total >= 0.8:
		return model.DecisionAllow, model.BandGreen
	case total >= 0.6:
		return model.DecisionAllow, model.BandAmber
	case total >= 0.4:
		return model.DecisionAllowRedacted, model.BandAmber
	case total >= 0.2:
		return model.DecisionAllowRedacted, model.BandRed
	default:
		return model.DecisionDeny, model.BandRed
	}
}

// Score computes the weighted evaluation for one request. It is a pure
// function of its inputs and never returns an error: malformed inputs were
// rejected upstream by attribute validation.
func (s *ContextScorer) Score(pctx *model.PolicyContext, hist model.HistoricalContext, rt model.RealtimeContext) ContextEvaluation {
	factors := map[string]float64{
		"security":    clamp01(s.securityFactor(pctx, hist)),
		"safety":      clamp01(s.safetyFactor(pctx)),
		"operational": clamp01(s.operationalFactor(pctx, rt)),
		"contextual":  clamp01(s.contextualFactor(pctx)),
	}
	total := weightSecurity*factors["security"] +
		weightSafety*factors["safety"] +
		weightOperational*factors["operational"] +
		weightContextual*factors["contextual"]

	decision, band := baseMapping(total)
	eval := ContextEvaluation{
		Obligations:  model.NewObligationSet(),
		TotalScore:   total,
		FactorScores: factors,
		Priority:     50,
	}

	// Hard factor overrides run before adaptations.
	if factors["security"] < 0.3 {
		decision = model.DecisionDeny
		band = band.Escalate(model.BandRed)
		eval.Reasons = append(eval.Reasons, "security_factor_critical")
	}
	if factors["safety"] < 0.4 {
		decision = decision.MostRestrictive(model.DecisionAllowRedacted)
		band = band.Escalate(model.BandAmber)
		eval.Reasons = append(eval.Reasons, "safety_factor_low")
	}

	band = s.applyAdaptations(pctx, &eval, band)
	decision, band = s.applyOverrides(pctx, &eval, decision, band)

	eval.Decision = decision
	eval.Band = band
	eval.Confidence = s.confidence(total, factors)
	return eval
}

// applyAdaptations layers obligations without changing the base decision;
// only band escalation is permitted here.
func (s *ContextScorer) applyAdaptations(pctx *model.PolicyContext, eval *ContextEvaluation, band model.Band) model.Band {
	env := pctx.Environment
	if env.SleepTime {
		eval.Obligations.SetLimit("session_time_limit_minutes", 30)
		eval.Reasons = append(eval.Reasons, "sleep_time_limits")
	}
	if env.GeofenceZone == "public" || env.GeofenceZone == "unknown" {
		eval.Obligations.AddRedactFields("location.coordinates", "location.address")
		eval.Reasons = append(eval.Reasons, "public_location_redaction")
	}
	if env.Arousal >= 0.7 {
		eval.Obligations.AddControls("content_filtering_required")
		band = band.Escalate(model.BandAmber)
		eval.Reasons = append(eval.Reasons, "high_arousal_filtering")
	}
	if pctx.Actor.IsMinor && withinCurfew(env) {
		eval.Obligations.AddControls("curfew_active")
		band = band.Escalate(model.BandAmber)
		eval.Reasons = append(eval.Reasons, "minor_curfew")
	}
	return band
}

// applyOverrides runs last: emergency, security alert, maintenance.
func (s *ContextScorer) applyOverrides(pctx *model.PolicyContext, eval *ContextEvaluation, decision model.Decision, band model.Band) (model.Decision, model.Band) {
	meta := pctx.Metadata

	if meta.Urgency == "emergency" {
		decision = model.DecisionAllow
		band = band.Escalate(model.BandRed)
		eval.Obligations.RequireAudit()
		eval.Obligations.AddControls("emergency_logging")
		if pctx.Actor.IsMinor {
			eval.Obligations.AddControls("adult_notification")
		}
		eval.Reasons = append(eval.Reasons, "emergency_override")
		// The emergency override outranks the baseline pipeline when the
		// resolver falls back to priority resolution.
		eval.Priority = 150
		return decision, band
	}

	if meta.SecurityAlertLevel == "critical" {
		if decision == model.DecisionAllow {
			decision = model.DecisionAllowRedacted
		}
		band = band.Escalate(model.BandRed)
		eval.Reasons = append(eval.Reasons, "critical_security_alert")
	}

	if meta.MaintenanceMode && meta.Urgency != "high" {
		decision = model.DecisionDeny
		band = band.Escalate(model.BandRed)
		eval.Reasons = append(eval.Reasons, "maintenance_mode")
	}
	return decision, band
}

// confidence measures how consistently the four factors agree with the
// total, with a penalty when the total sits near a decision boundary.
func (s *ContextScorer) confidence(total float64, factors map[string]float64) float64 {
	var deviation float64
	for _, f := range factors {
		deviation += math.Abs(f - total)
	}
	deviation /= float64(len(factors))
	confidence := 1.0 - deviation

	for _, threshold := range scoreThresholds {
		if math.Abs(total-threshold) < 0.05 {
			confidence -= 0.1
			break
		}
	}
	return clamp01(confidence)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
