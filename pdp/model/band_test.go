// pdp/model/band_test.go
package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sentra-labs/sentra/pdp/model"
)

func TestBandEscalate(t *testing.T) {
	bands := []model.Band{model.BandGreen, model.BandAmber, model.BandRed, model.BandBlack}

	t.Run("NeverDecreases", func(t *testing.T) {
		for _, current := range bands {
			for _, candidate := range bands {
				result := current.Escalate(candidate)
				assert.GreaterOrEqual(t, result, current)
				assert.GreaterOrEqual(t, result, candidate)
			}
		}
	})

	t.Run("Commutative", func(t *testing.T) {
		for _, a := range bands {
			for _, b := range bands {
				assert.Equal(t, a.Escalate(b), b.Escalate(a))
			}
		}
	})

	t.Run("Associative", func(t *testing.T) {
		for _, a := range bands {
			for _, b := range bands {
				for _, c := range bands {
					assert.Equal(t, a.Escalate(b).Escalate(c), a.Escalate(b.Escalate(c)))
				}
			}
		}
	})

	t.Run("Ordering", func(t *testing.T) {
		assert.True(t, model.BandGreen < model.BandAmber)
		assert.True(t, model.BandAmber < model.BandRed)
		assert.True(t, model.BandRed < model.BandBlack)
	})
}

func TestBandJSON(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		data, err := json.Marshal(model.BandAmber)
		assert.NoError(t, err)
		assert.Equal(t, `"AMBER"`, string(data))

		var band model.Band
		assert.NoError(t, json.Unmarshal(data, &band))
		assert.Equal(t, model.BandAmber, band)
	})

	t.Run("UnknownMapsToBlack", func(t *testing.T) {
		var band model.Band
		assert.NoError(t, json.Unmarshal([]byte(`"PURPLE"`), &band))
		assert.Equal(t, model.BandBlack, band)
	})
}

func TestDecisionPrecedence(t *testing.T) {
	t.Run("DenyBeatsAllow", func(t *testing.T) {
		assert.Equal(t, model.DecisionDeny, model.DecisionAllow.MostRestrictive(model.DecisionDeny))
		assert.Equal(t, model.DecisionDeny, model.DecisionDeny.MostRestrictive(model.DecisionAllow))
	})

	t.Run("RedactedBeatsAllow", func(t *testing.T) {
		assert.Equal(t, model.DecisionAllowRedacted, model.DecisionAllow.MostRestrictive(model.DecisionAllowRedacted))
		assert.Equal(t, model.DecisionAllowRedacted, model.DecisionAllowRedacted.MostRestrictive(model.DecisionAllow))
	})

	t.Run("DenyBeatsRedacted", func(t *testing.T) {
		assert.Equal(t, model.DecisionDeny, model.DecisionAllowRedacted.MostRestrictive(model.DecisionDeny))
	})

	t.Run("UnknownParsesToDeny", func(t *testing.T) {
		assert.Equal(t, model.DecisionDeny, model.ParseDecision("MAYBE"))
	})
}

func TestRiskyActions(t *testing.T) {
	for _, action := range []string{
		"memory.project", "memory.detach", "tools.run",
		"sharing.export", "privacy.undo", "system.admin", "policy.modify",
	} {
		assert.True(t, model.IsRiskyAction(action), action)
	}
	assert.False(t, model.IsRiskyAction("memory.read"))
	assert.False(t, model.IsRiskyAction("profile.view"))
}
