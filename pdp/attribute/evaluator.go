// pdp/attribute/evaluator.go
package attribute

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/sentra-labs/sentra/pdp/model"
)

// Context effects emitted by attribute evaluation and combination rules.
// The decision pipeline translates these into obligations.
const (
	EffectRequireFamilyPresent       = "require_family_present"
	EffectEnhancedMonitoring         = "enhanced_monitoring_required"
	EffectRequireAdditionalAuth      = "require_additional_authentication"
	EffectLimitAccessScope           = "limit_access_scope"
	EffectBlockSensitiveOperations   = "block_sensitive_operations"
	EffectRequireAdultSupervision    = "require_adult_supervision"
	EffectLocationVerificationNeeded = "location_verification_required"
	EffectContentFilteringRequired   = "content_filtering_required"
	EffectCurfewActive               = "curfew_active"
)

var actorIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)

// Evaluation is the per-category result: validation failures force the
// caller into DENY/RED, the escalation hint raises the band, and context
// effects are consumed downstream as obligations.
type Evaluation struct {
	ValidationErrors []string
	BandEscalation   model.Band
	ContextEffects   []string
}

// Valid reports whether the category passed validation.
func (e Evaluation) Valid() bool {
	return len(e.ValidationErrors) == 0
}

// Evaluator validates and scores each attribute category independently.
// It is a pure function of its inputs and safe for concurrent use.
type Evaluator struct {
	validate *validator.Validate
}

func NewEvaluator() *Evaluator {
	return &Evaluator{validate: validator.New()}
}

func (e *Evaluator) structErrors(v interface{}) []string {
	err := e.validate.Struct(v)
	if err == nil {
		return nil
	}
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	for _, fe := range validationErrs {
		out = append(out, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
	}
	return out
}

// EvaluateActor validates the actor and emits its escalation hints. Minors
// always land at AMBER or above; low trust adds monitoring.
func (e *Evaluator) EvaluateActor(actor model.ActorAttributes) Evaluation {
	result := Evaluation{BandEscalation: model.BandGreen}
	result.ValidationErrors = e.structErrors(actor)
	if actor.ID != "" && !actorIDPattern.MatchString(actor.ID) {
		result.ValidationErrors = append(result.ValidationErrors, "actor id contains invalid characters")
	}

	if actor.IsMinor {
		result.BandEscalation = result.BandEscalation.Escalate(model.BandAmber)
		result.ContextEffects = append(result.ContextEffects, EffectRequireFamilyPresent)
	}
	if actor.TrustLevel == "low" {
		result.BandEscalation = result.BandEscalation.Escalate(model.BandAmber)
		result.ContextEffects = append(result.ContextEffects, EffectEnhancedMonitoring)
	}
	return result
}

// EvaluateDevice validates the device. Untrusted or compromised devices
// escalate straight to RED.
func (e *Evaluator) EvaluateDevice(device model.DeviceAttributes) Evaluation {
	result := Evaluation{BandEscalation: model.BandGreen}
	result.ValidationErrors = e.structErrors(device)

	if device.Trust == "untrusted" {
		result.BandEscalation = result.BandEscalation.Escalate(model.BandRed)
		result.ContextEffects = append(result.ContextEffects,
			EffectRequireAdditionalAuth, EffectLimitAccessScope)
	}
	// Rooted devices are treated as compromised regardless of trust tier.
	if device.RootedJailbroken {
		result.BandEscalation = result.BandEscalation.Escalate(model.BandRed)
		result.ContextEffects = append(result.ContextEffects, EffectBlockSensitiveOperations)
	}
	return result
}

// EvaluateEnvironment validates ambient conditions. Safety pressure above
// 0.7 escalates RED with adult supervision; 0.3..0.7 escalates AMBER.
func (e *Evaluator) EvaluateEnvironment(env model.EnvironmentAttributes) Evaluation {
	result := Evaluation{BandEscalation: model.BandGreen}
	result.ValidationErrors = e.structErrors(env)

	switch {
	case env.SafetyPressure > 0.7:
		result.BandEscalation = result.BandEscalation.Escalate(model.BandRed)
		result.ContextEffects = append(result.ContextEffects, EffectRequireAdultSupervision)
	case env.SafetyPressure > 0.3:
		result.BandEscalation = result.BandEscalation.Escalate(model.BandAmber)
	}

	if env.GeofenceZone == "unknown" || env.GeofenceZone == "public" {
		result.BandEscalation = result.BandEscalation.Escalate(model.BandAmber)
		result.ContextEffects = append(result.ContextEffects, EffectLocationVerificationNeeded)
	}
	return result
}

// Evaluate runs all three categories against a policy context and returns
// the combined escalation, effects and validation errors.
func (e *Evaluator) Evaluate(ctx *model.PolicyContext) Evaluation {
	combined := Evaluation{BandEscalation: model.BandGreen}
	for _, eval := range []Evaluation{
		e.EvaluateActor(ctx.Actor),
		e.EvaluateDevice(ctx.Device),
		e.EvaluateEnvironment(ctx.Environment),
	} {
		combined.ValidationErrors = append(combined.ValidationErrors, eval.ValidationErrors...)
		combined.BandEscalation = combined.BandEscalation.Escalate(eval.BandEscalation)
		combined.ContextEffects = append(combined.ContextEffects, eval.ContextEffects...)
	}
	return combined
}
