// pdp/model/obligation.go
package model

import "sort"

// ObligationSet carries the mandatory side conditions attached to a decision.
// List-valued fields behave as sets: merging unions them, numeric limits take
// the minimum, booleans OR, and the band floor takes the maximum. Nothing a
// pipeline stage adds can ever be removed by a later stage.
type ObligationSet struct {
	RedactFields      []string           `json:"redact_fields,omitempty"`
	Controls          []string           `json:"controls,omitempty"`
	MitigationActions []string           `json:"mitigation_actions,omitempty"`
	Limits            map[string]float64 `json:"limits,omitempty"`
	BandFloor         Band               `json:"band_floor"`
	LogAudit          bool               `json:"log_audit"`
	AuditID           string             `json:"audit_id,omitempty"`
}

// NewObligationSet returns an empty set with the GREEN band floor.
func NewObligationSet() ObligationSet {
	return ObligationSet{BandFloor: BandGreen}
}

func unionStrings(dst []string, values ...string) []string {
	seen := make(map[string]struct{}, len(dst)+len(values))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			dst = append(dst, v)
		}
	}
	sort.Strings(dst)
	return dst
}

// AddRedactFields unions fields into the redaction list.
func (o *ObligationSet) AddRedactFields(fields ...string) {
	o.RedactFields = unionStrings(o.RedactFields, fields...)
}

// AddControls unions control tags (e.g. enhanced_monitoring_required).
func (o *ObligationSet) AddControls(controls ...string) {
	o.Controls = unionStrings(o.Controls, controls...)
}

// AddMitigations unions mitigation actions recommended by the safety layer.
func (o *ObligationSet) AddMitigations(actions ...string) {
	o.MitigationActions = unionStrings(o.MitigationActions, actions...)
}

// SetLimit records a numeric limit; the most restrictive (lowest) value wins.
func (o *ObligationSet) SetLimit(name string, value float64) {
	if o.Limits == nil {
		o.Limits = make(map[string]float64)
	}
	if existing, ok := o.Limits[name]; !ok || value < existing {
		o.Limits[name] = value
	}
}

// FloorBand raises the band floor; it never lowers it.
func (o *ObligationSet) FloorBand(band Band) {
	o.BandFloor = o.BandFloor.Escalate(band)
}

// RequireAudit marks the decision as requiring an audit log entry.
func (o *ObligationSet) RequireAudit() {
	o.LogAudit = true
}

// HasControl reports whether the named control tag is present.
func (o ObligationSet) HasControl(name string) bool {
	for _, c := range o.Controls {
		if c == name {
			return true
		}
	}
	return false
}

// HasRedactField reports whether the named field is marked for redaction.
func (o ObligationSet) HasRedactField(name string) bool {
	for _, f := range o.RedactFields {
		if f == name {
			return true
		}
	}
	return false
}

// Merge unions other into a copy of o, favoring restriction on every field.
func (o ObligationSet) Merge(other ObligationSet) ObligationSet {
	merged := o
	merged.RedactFields = unionStrings(append([]string(nil), o.RedactFields...), other.RedactFields...)
	merged.Controls = unionStrings(append([]string(nil), o.Controls...), other.Controls...)
	merged.MitigationActions = unionStrings(append([]string(nil), o.MitigationActions...), other.MitigationActions...)
	merged.Limits = nil
	for name, v := range o.Limits {
		merged.SetLimit(name, v)
	}
	for name, v := range other.Limits {
		merged.SetLimit(name, v)
	}
	merged.BandFloor = o.BandFloor.Escalate(other.BandFloor)
	merged.LogAudit = o.LogAudit || other.LogAudit
	if merged.AuditID == "" {
		merged.AuditID = other.AuditID
	}
	return merged
}
