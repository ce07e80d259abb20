// pdp/model/band.go
package model

import (
	"encoding/json"
	"fmt"
)

// Band is the ordered security tier attached to every decision.
// GREEN < AMBER < RED < BLACK; combining bands always takes the maximum.
type Band int

const (
	BandGreen Band = iota
	BandAmber
	BandRed
	BandBlack
)

var bandNames = map[Band]string{
	BandGreen: "GREEN",
	BandAmber: "AMBER",
	BandRed:   "RED",
	BandBlack: "BLACK",
}

func (b Band) String() string {
	if name, ok := bandNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Band(%d)", int(b))
}

// Escalate returns the more restrictive of the two bands.
func (b Band) Escalate(candidate Band) Band {
	if candidate > b {
		return candidate
	}
	return b
}

// ParseBand converts the wire form back to a Band. Unknown values map to
// BLACK so a malformed band can never weaken a decision.
func ParseBand(s string) Band {
	for band, name := range bandNames {
		if name == s {
			return band
		}
	}
	return BandBlack
}

func (b Band) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *Band) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*b = ParseBand(s)
	return nil
}
