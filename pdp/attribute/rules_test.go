// pdp/attribute/rules_test.go
package attribute_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sentra-labs/sentra/pdp/attribute"
	"github.com/sentra-labs/sentra/pdp/model"
)

func TestRuleEngineApply(t *testing.T) {
	engine := attribute.NewRuleEngine()

	t.Run("MinorWithoutAdultFires", func(t *testing.T) {
		effects, fired := engine.Apply(
			model.ActorAttributes{ID: "kid-1", IsMinor: true},
			model.DeviceAttributes{ID: "dev-1"},
			model.EnvironmentAttributes{FamilyPresent: false},
		)
		assert.Contains(t, fired, "minor_without_adult_present")
		assert.Contains(t, effects, attribute.EffectRequireFamilyPresent)
		assert.Contains(t, effects, attribute.EffectEnhancedMonitoring)
	})

	t.Run("NoRulesForNeutralAttributes", func(t *testing.T) {
		effects, fired := engine.Apply(
			model.ActorAttributes{ID: "user-1", TrustLevel: "trusted"},
			model.DeviceAttributes{ID: "dev-1", Trust: "trusted", NetworkType: "private"},
			model.EnvironmentAttributes{FamilyPresent: true, LocationVerified: true},
		)
		assert.Empty(t, fired)
		assert.Empty(t, effects)
	})

	t.Run("EffectsAccumulateAcrossRules", func(t *testing.T) {
		effects, fired := engine.Apply(
			model.ActorAttributes{ID: "kid-2", IsMinor: true},
			model.DeviceAttributes{ID: "dev-2", Trust: "untrusted"},
			model.EnvironmentAttributes{Arousal: 0.8},
		)
		assert.GreaterOrEqual(t, len(fired), 3)
		assert.Contains(t, effects, attribute.EffectBlockSensitiveOperations)
		assert.Contains(t, effects, attribute.EffectContentFilteringRequired)
	})

	t.Run("CurfewWrapsMidnight", func(t *testing.T) {
		env := model.EnvironmentAttributes{CurfewStartHour: 21, CurfewEndHour: 7, TimeOfDayHours: 23}
		_, fired := engine.Apply(model.ActorAttributes{ID: "kid-3", IsMinor: true}, model.DeviceAttributes{ID: "d"}, env)
		assert.Contains(t, fired, "minor_within_curfew")

		env.TimeOfDayHours = 12
		_, fired = engine.Apply(model.ActorAttributes{ID: "kid-3", IsMinor: true, Relation: "child"}, model.DeviceAttributes{ID: "d"}, env)
		assert.NotContains(t, fired, "minor_within_curfew")
	})
}

func TestRuleEnginePriorityOrder(t *testing.T) {
	engine := attribute.NewRuleEngine()
	engine.Register(attribute.CombinationRule{
		Name:     "always_first",
		Priority: 1000,
		Predicate: func(model.ActorAttributes, model.DeviceAttributes, model.EnvironmentAttributes) bool {
			return true
		},
		Effects: []string{"custom_effect"},
	})

	effects, fired := engine.Apply(
		model.ActorAttributes{ID: "kid-1", IsMinor: true},
		model.DeviceAttributes{ID: "dev-1"},
		model.EnvironmentAttributes{},
	)
	assert.Equal(t, "always_first", fired[0])
	assert.Contains(t, effects, "custom_effect")
	// Lower-priority rules still fire; nothing halts evaluation.
	assert.Contains(t, fired, "minor_without_adult_present")
}
