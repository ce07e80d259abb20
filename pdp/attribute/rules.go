// pdp/attribute/rules.go
package attribute

import (
	"sort"

	"github.com/sentra-labs/sentra/pdp/model"
)

// CombinationRule relates attributes across categories. Predicates are plain
// Go closures compiled into the binary; rule conditions are never sourced
// from configuration or interpreted at runtime.
type CombinationRule struct {
	Name      string
	Priority  int
	Predicate func(actor model.ActorAttributes, device model.DeviceAttributes, env model.EnvironmentAttributes) bool
	Effects   []string
}

// RuleEngine applies combination rules in priority order. Every matching
// rule fires; effects accumulate and no rule can retract another's effects.
type RuleEngine struct {
	rules []CombinationRule
}

func NewRuleEngine() *RuleEngine {
	engine := &RuleEngine{rules: defaultRules()}
	sort.SliceStable(engine.rules, func(i, j int) bool {
		return engine.rules[i].Priority > engine.rules[j].Priority
	})
	return engine
}

// Register adds a rule and re-sorts by priority.
func (re *RuleEngine) Register(rule CombinationRule) {
	re.rules = append(re.rules, rule)
	sort.SliceStable(re.rules, func(i, j int) bool {
		return re.rules[i].Priority > re.rules[j].Priority
	})
}

// Apply evaluates every rule against a read-only view of the attributes and
// returns the accumulated effects together with the fired rule names.
func (re *RuleEngine) Apply(actor model.ActorAttributes, device model.DeviceAttributes, env model.EnvironmentAttributes) (effects []string, fired []string) {
	for _, rule := range re.rules {
		if rule.Predicate(actor, device, env) {
			effects = append(effects, rule.Effects...)
			fired = append(fired, rule.Name)
		}
	}
	return effects, fired
}

func inCurfew(env model.EnvironmentAttributes) bool {
	start, end := env.CurfewStartHour, env.CurfewEndHour
	if start == end {
		return false
	}
	if start < end {
		return env.TimeOfDayHours >= start && env.TimeOfDayHours < end
	}
	// Curfew windows usually wrap midnight, e.g. 21:00-07:00.
	return env.TimeOfDayHours >= start || env.TimeOfDayHours < end
}

func defaultRules() []CombinationRule {
	return []CombinationRule{
		{
			Name:     "minor_without_adult_present",
			Priority: 100,
			Predicate: func(actor model.ActorAttributes, _ model.DeviceAttributes, env model.EnvironmentAttributes) bool {
				return actor.IsMinor && !env.FamilyPresent
			},
			Effects: []string{EffectRequireFamilyPresent, EffectEnhancedMonitoring},
		},
		{
			Name:     "minor_on_untrusted_device",
			Priority: 90,
			Predicate: func(actor model.ActorAttributes, device model.DeviceAttributes, _ model.EnvironmentAttributes) bool {
				return actor.IsMinor && device.Trust == "untrusted"
			},
			Effects: []string{EffectBlockSensitiveOperations},
		},
		{
			Name:     "minor_within_curfew",
			Priority: 80,
			Predicate: func(actor model.ActorAttributes, _ model.DeviceAttributes, env model.EnvironmentAttributes) bool {
				return actor.IsMinor && inCurfew(env)
			},
			Effects: []string{EffectCurfewActive},
		},
		{
			Name:     "low_trust_on_public_network",
			Priority: 70,
			Predicate: func(actor model.ActorAttributes, device model.DeviceAttributes, _ model.EnvironmentAttributes) bool {
				return actor.TrustLevel == "low" && device.NetworkType != "private"
			},
			Effects: []string{EffectRequireAdditionalAuth},
		},
		{
			Name:     "high_arousal_minor",
			Priority: 60,
			Predicate: func(actor model.ActorAttributes, _ model.DeviceAttributes, env model.EnvironmentAttributes) bool {
				return actor.IsMinor && env.Arousal >= 0.7
			},
			Effects: []string{EffectContentFilteringRequired, EffectRequireAdultSupervision},
		},
		{
			Name:     "unverified_location_untrusted_network",
			Priority: 50,
			Predicate: func(_ model.ActorAttributes, device model.DeviceAttributes, env model.EnvironmentAttributes) bool {
				return !env.LocationVerified && device.NetworkType == "untrusted"
			},
			Effects: []string{EffectLocationVerificationNeeded},
		},
	}
}
