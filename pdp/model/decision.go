// pdp/model/decision.go
package model

import (
	"encoding/json"
	"fmt"
)

// Decision is the access verdict. When two decisions for the same request
// must be combined, the most restrictive wins: DENY > ALLOW_REDACTED > ALLOW.
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionAllowRedacted
	DecisionDeny
)

var decisionNames = map[Decision]string{
	DecisionAllow:         "ALLOW",
	DecisionAllowRedacted: "ALLOW_REDACTED",
	DecisionDeny:          "DENY",
}

func (d Decision) String() string {
	if name, ok := decisionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

// MostRestrictive returns the decision with the higher precedence.
func (d Decision) MostRestrictive(other Decision) Decision {
	if other > d {
		return other
	}
	return d
}

// ParseDecision maps unknown values to DENY, the fail-closed default.
func ParseDecision(s string) Decision {
	for decision, name := range decisionNames {
		if name == s {
			return decision
		}
	}
	return DecisionDeny
}

func (d Decision) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Decision) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*d = ParseDecision(s)
	return nil
}
