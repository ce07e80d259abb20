// pdp/safety/heuristic.go
package safety

import (
	"context"

	"github.com/sentra-labs/sentra/pdp/model"
)

// HeuristicPipeline is a local, model-free Pipeline implementation built on
// threshold rules over the environment attributes. It lets the service run
// standalone when no external safety model is wired in.
type HeuristicPipeline struct{}

func NewHeuristicPipeline() *HeuristicPipeline {
	return &HeuristicPipeline{}
}

func (p *HeuristicPipeline) AssessContext(_ context.Context, pctx *model.PolicyContext) (*Assessment, error) {
	assessment := &Assessment{
		RiskLevel:       "low",
		RecommendedBand: model.BandGreen,
		SafetyScore:     1.0 - pctx.Environment.SafetyPressure,
	}

	switch {
	case pctx.Environment.SafetyPressure >= 0.8:
		assessment.RiskLevel = "high"
		assessment.RecommendedBand = model.BandRed
		assessment.ThreatIndicators = append(assessment.ThreatIndicators, "sustained_safety_pressure")
		assessment.MitigationRequired = true
	case pctx.Environment.SafetyPressure >= 0.5:
		assessment.RiskLevel = "medium"
		assessment.RecommendedBand = model.BandAmber
	}

	if pctx.Environment.Arousal >= 0.8 {
		assessment.ContentFlags = append(assessment.ContentFlags, "affect.high_arousal")
		if assessment.RiskLevel == "low" {
			assessment.RiskLevel = "medium"
			assessment.RecommendedBand = model.BandAmber
		}
	}
	if pctx.Actor.IsMinor && model.IsRiskyAction(pctx.Action) {
		assessment.ContentFlags = append(assessment.ContentFlags, "minor.risky_operation")
	}
	return assessment, nil
}

func (p *HeuristicPipeline) GetMitigationActions(assessment *Assessment) []string {
	if assessment == nil {
		return nil
	}
	var actions []string
	if assessment.MitigationRequired {
		actions = append(actions, "notify_guardian", "reduce_session_scope")
	}
	for _, flag := range assessment.ContentFlags {
		if flag == "affect.high_arousal" {
			actions = append(actions, "apply_content_filter")
		}
	}
	return actions
}
