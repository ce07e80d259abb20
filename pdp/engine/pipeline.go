// pdp/engine/pipeline.go
package engine

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	logger "github.com/sentra-labs/sentra/logging"
	"github.com/sentra-labs/sentra/pdp/model"
	"github.com/sentra-labs/sentra/pdp/safety"
)

const CorePipelinePolicyID = "core_pipeline"

// zoneRisk scores geofence zones; anything at or above 0.7 is hostile
// territory for risky operations.
var zoneRisk = map[string]float64{
	"home":      0.1,
	"work":      0.2,
	"school":    0.3,
	"trusted":   0.3,
	"public":    0.6,
	"unknown":   0.7,
	"untrusted": 0.8,
	"foreign":   1.0,
}

func geofenceRisk(zone string) float64 {
	if zone == "" {
		return 0
	}
	if risk, ok := zoneRisk[zone]; ok {
		return risk
	}
	// Unrecognized zones are treated like unknown ones.
	return zoneRisk["unknown"]
}

var piiRedactFields = []string{"pii.email", "pii.phone", "pii.ssn"}

func isMemoryAction(action string) bool {
	return strings.HasPrefix(action, "memory.")
}

func isSharingAction(action string) bool {
	return strings.HasPrefix(action, "sharing.")
}

func isPrivilegedAction(action string) bool {
	return action == "system.admin" || action == "policy.modify" ||
		strings.HasPrefix(action, "admin.")
}

// pipelineState is the (decision, band, obligations) lattice the steps walk.
// Steps may only escalate; DENY terminates the walk.
type pipelineState struct {
	decision    model.Decision
	band        model.Band
	obligations model.ObligationSet
	reasons     []string
}

func (s *pipelineState) escalate(band model.Band, reason string) {
	s.band = s.band.Escalate(band)
	s.reasons = append(s.reasons, reason)
}

func (s *pipelineState) redact(reason string, fields ...string) {
	s.decision = s.decision.MostRestrictive(model.DecisionAllowRedacted)
	s.obligations.AddRedactFields(fields...)
	s.reasons = append(s.reasons, reason)
}

func (s *pipelineState) deny(reason string) {
	s.decision = model.DecisionDeny
	s.band = s.band.Escalate(model.BandRed)
	s.obligations.RequireAudit()
	s.reasons = append(s.reasons, reason)
}

// CorePipeline is the baseline decisioning path: a fixed sequence of guarded
// checks that monotonically escalate an initial (ALLOW, GREEN) verdict.
type CorePipeline struct {
	safety safety.Pipeline
}

func NewCorePipeline(safetyPipeline safety.Pipeline) *CorePipeline {
	return &CorePipeline{safety: safetyPipeline}
}

type pipelineStep struct {
	name string
	run  func(ctx context.Context, pctx *model.PolicyContext, state *pipelineState) bool
}

// Evaluate runs every step in order, short-circuiting on DENY. The seed band
// and effects come from attribute evaluation and combination rules. A panic
// inside any step is converted to the fail-closed (DENY, RED) verdict.
func (p *CorePipeline) Evaluate(ctx context.Context, pctx *model.PolicyContext, seedBand model.Band, seedEffects []string) (eval model.PolicyEvaluation) {
	start := time.Now()

	state := &pipelineState{
		decision:    model.DecisionAllow,
		band:        model.BandGreen,
		obligations: model.NewObligationSet(),
	}
	state.band = state.band.Escalate(seedBand)
	if len(seedEffects) > 0 {
		state.obligations.AddControls(seedEffects...)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Decision pipeline panicked, failing closed",
				zap.Any("panic", r), zap.String("action", pctx.Action))
			state.decision = model.DecisionDeny
			state.band = model.BandRed
			state.obligations.RequireAudit()
			state.reasons = append(state.reasons, "pipeline_failure")
		}
		eval = p.finish(state, start)
	}()

	steps := []pipelineStep{
		{"device_trust", p.stepDeviceTrust},
		{"resource_constraints", p.stepResourceConstraints},
		{"temporal", p.stepTemporal},
		{"geofence", p.stepGeofence},
		{"affect", p.stepAffect},
		{"safety_assessment", p.stepSafetyAssessment},
		{"location_context", p.stepLocationContext},
		{"band_floor", p.stepBandFloor},
		{"hard_controls", p.stepHardControls},
	}
	for _, step := range steps {
		if halt := step.run(ctx, pctx, state); halt {
			logger.Debug("Pipeline halted",
				zap.String("step", step.name), zap.String("action", pctx.Action))
			break
		}
	}

	return eval
}

func (p *CorePipeline) finish(state *pipelineState, start time.Time) model.PolicyEvaluation {
	state.band = state.band.Escalate(state.obligations.BandFloor)
	return model.PolicyEvaluation{
		PolicyID:         CorePipelinePolicyID,
		Decision:         state.decision,
		Band:             state.band,
		Confidence:       pipelineConfidence(state),
		Reasons:          state.reasons,
		Obligations:      state.obligations,
		Priority:         100,
		EvaluationTimeMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}
}

// pipelineConfidence shrinks as the verdict drifts from the clean
// (ALLOW, GREEN) baseline; a DENY is itself a confident outcome.
func pipelineConfidence(state *pipelineState) float64 {
	if state.decision == model.DecisionDeny {
		return 0.9
	}
	confidence := 0.95 - 0.1*float64(state.band)
	if state.decision == model.DecisionAllowRedacted {
		confidence -= 0.05
	}
	if confidence < 0.5 {
		confidence = 0.5
	}
	return confidence
}

func (p *CorePipeline) stepDeviceTrust(_ context.Context, pctx *model.PolicyContext, state *pipelineState) bool {
	risky := model.IsRiskyAction(pctx.Action)

	if pctx.Device.Trust == "untrusted" {
		if risky {
			state.deny("untrusted_device_risky_operation")
			return true
		}
		if isMemoryAction(pctx.Action) {
			state.redact("untrusted_device_memory_read", piiRedactFields...)
		}
	}
	if pctx.Device.ScreenLocked && risky {
		state.escalate(model.BandAmber, "screen_locked_risky_operation")
	}
	if pctx.Device.NetworkType == "untrusted" && isSharingAction(pctx.Action) {
		state.escalate(model.BandAmber, "untrusted_network_sharing")
		state.redact("untrusted_network_sharing", "location", "device_info")
	}
	return false
}

func (p *CorePipeline) stepResourceConstraints(_ context.Context, pctx *model.PolicyContext, state *pipelineState) bool {
	if (pctx.Device.BatteryLow || pctx.Device.CPUThrottled) && model.IsRiskyAction(pctx.Action) {
		state.escalate(model.BandAmber, "constrained_device_risky_operation")
	}
	return false
}

func (p *CorePipeline) stepTemporal(_ context.Context, pctx *model.PolicyContext, state *pipelineState) bool {
	if !model.IsRiskyAction(pctx.Action) {
		return false
	}
	if pctx.Actor.IsMinor && withinCurfew(pctx.Environment) {
		state.escalate(model.BandAmber, "minor_curfew_risky_operation")
	}
	if pctx.Environment.SleepTime {
		state.escalate(model.BandAmber, "sleep_time_risky_operation")
	}
	return false
}

func withinCurfew(env model.EnvironmentAttributes) bool {
	start, end := env.CurfewStartHour, env.CurfewEndHour
	if start == end {
		return false
	}
	if start < end {
		return env.TimeOfDayHours >= start && env.TimeOfDayHours < end
	}
	return env.TimeOfDayHours >= start || env.TimeOfDayHours < end
}

func (p *CorePipeline) stepGeofence(_ context.Context, pctx *model.PolicyContext, state *pipelineState) bool {
	risk := geofenceRisk(pctx.Environment.GeofenceZone)
	if model.IsRiskyAction(pctx.Action) {
		switch {
		case risk >= 0.7:
			state.escalate(model.BandRed, "high_risk_zone_risky_operation")
			state.redact("high_risk_zone_risky_operation", "location.coordinates")
		case risk >= 0.5:
			state.escalate(model.BandAmber, "elevated_risk_zone_risky_operation")
		}
	}
	if !pctx.Environment.LocationVerified && isSharingAction(pctx.Action) {
		state.escalate(model.BandAmber, "unverified_location_sharing")
		state.redact("unverified_location_sharing", "location.coordinates")
	}
	return false
}

func (p *CorePipeline) stepAffect(_ context.Context, pctx *model.PolicyContext, state *pipelineState) bool {
	env := pctx.Environment
	if env.SafetyPressure >= 0.9 && model.IsRiskyAction(pctx.Action) {
		state.deny("critical_safety_pressure_risky_operation")
		return true
	}
	if env.Arousal >= 0.7 {
		state.escalate(model.BandAmber, "elevated_arousal")
	}
	if env.SafetyPressure >= 0.6 {
		state.escalate(model.BandAmber, "elevated_safety_pressure")
	}
	return false
}

func (p *CorePipeline) stepSafetyAssessment(ctx context.Context, pctx *model.PolicyContext, state *pipelineState) bool {
	if p.safety == nil {
		return false
	}
	assessment, err := p.safety.AssessContext(ctx, pctx)
	if err != nil {
		// Collaborator failure is recoverable: escalate and continue.
		logger.Warn("Safety pipeline unavailable", zap.Error(err))
		state.escalate(model.BandAmber, "safety_assessment_unavailable")
		state.obligations.AddControls("safety_assessment_unavailable_fallback")
		return false
	}

	state.band = state.band.Escalate(assessment.RecommendedBand)
	if assessment.RiskLevel == "high" {
		state.escalate(model.BandRed, "safety_assessment_high_risk")
	}
	if len(assessment.ContentFlags) > 0 {
		state.redact("safety_assessment_content_flags", assessment.ContentFlags...)
	}
	if actions := p.safety.GetMitigationActions(assessment); len(actions) > 0 {
		state.obligations.AddMitigations(actions...)
	}
	return false
}

func (p *CorePipeline) stepLocationContext(_ context.Context, pctx *model.PolicyContext, state *pipelineState) bool {
	if !pctx.Environment.LocationVerified && model.IsRiskyAction(pctx.Action) {
		state.escalate(model.BandAmber, "unverified_location_risky_operation")
		state.obligations.AddRedactFields("location.coordinates")
	}
	switch pctx.Environment.Location {
	case "unknown", "foreign", "untrusted":
		state.escalate(model.BandRed, "hostile_location_context")
	}
	return false
}

func (p *CorePipeline) stepBandFloor(_ context.Context, pctx *model.PolicyContext, state *pipelineState) bool {
	if pctx.Environment.MinimumBand > model.BandGreen {
		state.escalate(pctx.Environment.MinimumBand, "space_minimum_band")
	}
	return false
}

func (p *CorePipeline) stepHardControls(_ context.Context, pctx *model.PolicyContext, state *pipelineState) bool {
	if isPrivilegedAction(pctx.Action) && pctx.Actor.AuthMethod != "mtls" {
		state.deny("privileged_action_requires_mtls")
		return true
	}
	if pctx.Device.RootedJailbroken && model.IsRiskyAction(pctx.Action) {
		state.deny("rooted_device_risky_operation")
		return true
	}
	if isSharingAction(pctx.Action) && !pctx.Environment.SecureGroup {
		state.escalate(model.BandAmber, "sharing_without_secure_group")
	}
	if isMemoryAction(pctx.Action) && pctx.Actor.SessionID == "" {
		state.escalate(model.BandAmber, "memory_operation_without_session")
	}
	return false
}
