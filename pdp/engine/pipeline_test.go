// pdp/engine/pipeline_test.go
package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sentra-labs/sentra/pdp/engine"
	"github.com/sentra-labs/sentra/pdp/model"
	"github.com/sentra-labs/sentra/pdp/safety"
)

// failingSafety always errors, simulating an unavailable collaborator.
type failingSafety struct{}

func (failingSafety) AssessContext(context.Context, *model.PolicyContext) (*safety.Assessment, error) {
	return nil, errors.New("safety model timeout")
}

func (failingSafety) GetMitigationActions(*safety.Assessment) []string { return nil }

// flaggingSafety returns a fixed assessment with content flags.
type flaggingSafety struct{}

func (flaggingSafety) AssessContext(context.Context, *model.PolicyContext) (*safety.Assessment, error) {
	return &safety.Assessment{
		RiskLevel:       "medium",
		RecommendedBand: model.BandAmber,
		ContentFlags:    []string{"affect.high_arousal"},
		SafetyScore:     0.6,
	}, nil
}

func (flaggingSafety) GetMitigationActions(*safety.Assessment) []string {
	return []string{"apply_content_filter"}
}

func neutralContext(action string) *model.PolicyContext {
	return &model.PolicyContext{
		Action: action,
		Actor:  model.ActorAttributes{ID: "user-1", TrustLevel: "standard", AuthMethod: "mfa", SessionID: "sess-1"},
		Device: model.DeviceAttributes{ID: "dev-1", Trust: "trusted", NetworkType: "private"},
		Environment: model.EnvironmentAttributes{
			TimeOfDayHours:   12,
			GeofenceZone:     "home",
			LocationVerified: true,
			FamilyPresent:    true,
			SecureGroup:      true,
		},
	}
}

func TestPipelineBaseline(t *testing.T) {
	pipeline := engine.NewCorePipeline(safety.NewHeuristicPipeline())

	result := pipeline.Evaluate(context.Background(), neutralContext("memory.read"), model.BandGreen, nil)
	assert.Equal(t, model.DecisionAllow, result.Decision)
	assert.Equal(t, model.BandGreen, result.Band)
	assert.Equal(t, engine.CorePipelinePolicyID, result.PolicyID)
}

func TestPipelineMinorMemoryRead(t *testing.T) {
	// Minor actor, everything else neutral: allowed but at least AMBER.
	pipeline := engine.NewCorePipeline(safety.NewHeuristicPipeline())
	pctx := neutralContext("memory.read")
	pctx.Actor.IsMinor = true

	result := pipeline.Evaluate(context.Background(), pctx, model.BandAmber, []string{"require_family_present"})
	assert.Contains(t, []model.Decision{model.DecisionAllow, model.DecisionAllowRedacted}, result.Decision)
	assert.GreaterOrEqual(t, result.Band, model.BandAmber)
	assert.True(t, result.Obligations.HasControl("require_family_present"))
}

func TestPipelineUntrustedDevice(t *testing.T) {
	pipeline := engine.NewCorePipeline(safety.NewHeuristicPipeline())

	t.Run("MemoryReadGetsRedacted", func(t *testing.T) {
		pctx := neutralContext("memory.read")
		pctx.Device.Trust = "untrusted"

		result := pipeline.Evaluate(context.Background(), pctx, model.BandRed, nil)
		assert.Equal(t, model.DecisionAllowRedacted, result.Decision)
		for _, field := range []string{"pii.email", "pii.phone", "pii.ssn"} {
			assert.True(t, result.Obligations.HasRedactField(field), field)
		}
	})

	t.Run("RiskyOperationDenied", func(t *testing.T) {
		pctx := neutralContext("tools.run")
		pctx.Device.Trust = "untrusted"

		result := pipeline.Evaluate(context.Background(), pctx, model.BandRed, nil)
		assert.Equal(t, model.DecisionDeny, result.Decision)
		assert.GreaterOrEqual(t, result.Band, model.BandRed)
	})
}

func TestPipelineRootedDeviceRiskyOperation(t *testing.T) {
	pipeline := engine.NewCorePipeline(safety.NewHeuristicPipeline())
	pctx := neutralContext("tools.run")
	pctx.Device.RootedJailbroken = true

	result := pipeline.Evaluate(context.Background(), pctx, model.BandRed, nil)
	assert.Equal(t, model.DecisionDeny, result.Decision)
	assert.Contains(t, result.Reasons, "rooted_device_risky_operation")
}

func TestPipelineGeofencing(t *testing.T) {
	pipeline := engine.NewCorePipeline(safety.NewHeuristicPipeline())

	t.Run("ForeignZoneRiskyOperation", func(t *testing.T) {
		pctx := neutralContext("sharing.export")
		pctx.Environment.GeofenceZone = "foreign"

		result := pipeline.Evaluate(context.Background(), pctx, model.BandGreen, nil)
		assert.GreaterOrEqual(t, result.Band, model.BandRed)
		assert.NotEqual(t, model.DecisionAllow, result.Decision)
	})

	t.Run("PublicZoneRiskyOperationIsAmber", func(t *testing.T) {
		pctx := neutralContext("tools.run")
		pctx.Environment.GeofenceZone = "public"

		result := pipeline.Evaluate(context.Background(), pctx, model.BandGreen, nil)
		assert.GreaterOrEqual(t, result.Band, model.BandAmber)
		assert.Equal(t, model.DecisionAllow, result.Decision)
	})

	t.Run("UnverifiedLocationSharingRedactsCoordinates", func(t *testing.T) {
		pctx := neutralContext("sharing.export")
		pctx.Environment.LocationVerified = false

		result := pipeline.Evaluate(context.Background(), pctx, model.BandGreen, nil)
		assert.GreaterOrEqual(t, result.Band, model.BandAmber)
		assert.True(t, result.Obligations.HasRedactField("location.coordinates"))
	})
}

func TestPipelineAffect(t *testing.T) {
	pipeline := engine.NewCorePipeline(safety.NewHeuristicPipeline())

	t.Run("CriticalSafetyPressureDeniesRiskyOperation", func(t *testing.T) {
		pctx := neutralContext("tools.run")
		pctx.Environment.SafetyPressure = 0.95

		result := pipeline.Evaluate(context.Background(), pctx, model.BandGreen, nil)
		assert.Equal(t, model.DecisionDeny, result.Decision)
	})

	t.Run("ElevatedArousalEscalates", func(t *testing.T) {
		pctx := neutralContext("memory.read")
		pctx.Environment.Arousal = 0.75

		result := pipeline.Evaluate(context.Background(), pctx, model.BandGreen, nil)
		assert.GreaterOrEqual(t, result.Band, model.BandAmber)
		assert.Equal(t, model.DecisionAllow, result.Decision)
	})
}

func TestPipelineSafetyAssessment(t *testing.T) {
	t.Run("FailureIsNonFatal", func(t *testing.T) {
		pipeline := engine.NewCorePipeline(failingSafety{})
		pctx := neutralContext("memory.read")

		result := pipeline.Evaluate(context.Background(), pctx, model.BandGreen, nil)
		assert.NotEqual(t, model.DecisionDeny, result.Decision)
		assert.GreaterOrEqual(t, result.Band, model.BandAmber)
		assert.True(t, result.Obligations.HasControl("safety_assessment_unavailable_fallback"))
	})

	t.Run("ContentFlagsForceRedaction", func(t *testing.T) {
		pipeline := engine.NewCorePipeline(flaggingSafety{})
		pctx := neutralContext("memory.read")

		result := pipeline.Evaluate(context.Background(), pctx, model.BandGreen, nil)
		assert.Equal(t, model.DecisionAllowRedacted, result.Decision)
		assert.True(t, result.Obligations.HasRedactField("affect.high_arousal"))
		assert.Contains(t, result.Obligations.MitigationActions, "apply_content_filter")
	})

	t.Run("NilPipelineSkipsStep", func(t *testing.T) {
		pipeline := engine.NewCorePipeline(nil)
		result := pipeline.Evaluate(context.Background(), neutralContext("memory.read"), model.BandGreen, nil)
		assert.Equal(t, model.DecisionAllow, result.Decision)
	})
}

func TestPipelineHardControls(t *testing.T) {
	pipeline := engine.NewCorePipeline(safety.NewHeuristicPipeline())

	t.Run("AdminActionRequiresMTLS", func(t *testing.T) {
		pctx := neutralContext("system.admin")
		pctx.Actor.AuthMethod = "mfa"

		result := pipeline.Evaluate(context.Background(), pctx, model.BandGreen, nil)
		assert.Equal(t, model.DecisionDeny, result.Decision)
		assert.Contains(t, result.Reasons, "privileged_action_requires_mtls")
	})

	t.Run("AdminActionWithMTLSAllowed", func(t *testing.T) {
		pctx := neutralContext("system.admin")
		pctx.Actor.AuthMethod = "mtls"

		result := pipeline.Evaluate(context.Background(), pctx, model.BandGreen, nil)
		assert.NotEqual(t, model.DecisionDeny, result.Decision)
	})

	t.Run("SharingWithoutSecureGroupEscalates", func(t *testing.T) {
		pctx := neutralContext("sharing.export")
		pctx.Environment.SecureGroup = false

		result := pipeline.Evaluate(context.Background(), pctx, model.BandGreen, nil)
		assert.GreaterOrEqual(t, result.Band, model.BandAmber)
		assert.Contains(t, result.Reasons, "sharing_without_secure_group")
	})

	t.Run("MemoryOperationWithoutSessionEscalates", func(t *testing.T) {
		pctx := neutralContext("memory.read")
		pctx.Actor.SessionID = ""

		result := pipeline.Evaluate(context.Background(), pctx, model.BandGreen, nil)
		assert.GreaterOrEqual(t, result.Band, model.BandAmber)
	})
}

func TestPipelineBandFloor(t *testing.T) {
	pipeline := engine.NewCorePipeline(safety.NewHeuristicPipeline())
	pctx := neutralContext("memory.read")
	pctx.Environment.MinimumBand = model.BandRed

	result := pipeline.Evaluate(context.Background(), pctx, model.BandGreen, nil)
	assert.GreaterOrEqual(t, result.Band, model.BandRed)
}

func TestPipelineDeterminism(t *testing.T) {
	pipeline := engine.NewCorePipeline(safety.NewHeuristicPipeline())
	pctx := neutralContext("sharing.export")
	pctx.Actor.IsMinor = true
	pctx.Environment.GeofenceZone = "public"
	pctx.Environment.SafetyPressure = 0.65

	first := pipeline.Evaluate(context.Background(), pctx, model.BandAmber, []string{"enhanced_monitoring_required"})
	second := pipeline.Evaluate(context.Background(), pctx, model.BandAmber, []string{"enhanced_monitoring_required"})
	assert.Equal(t, first.Decision, second.Decision)
	assert.Equal(t, first.Band, second.Band)
	assert.ElementsMatch(t, first.Obligations.RedactFields, second.Obligations.RedactFields)
	assert.ElementsMatch(t, first.Obligations.Controls, second.Obligations.Controls)
}
