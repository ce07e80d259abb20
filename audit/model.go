// audit/model.go
package audit

import "time"

// DecisionRecord is one audit entry per evaluation, keyed by the audit id
// the engine stamps on every decision.
type DecisionRecord struct {
	AuditID          string    `json:"audit_id"`
	Timestamp        time.Time `json:"timestamp"`
	ActorID          string    `json:"actor_id"`
	DeviceID         string    `json:"device_id"`
	Action           string    `json:"action"`
	Decision         string    `json:"decision"`
	Band             string    `json:"band"`
	Reasons          []string  `json:"reasons,omitempty"`
	Strategy         string    `json:"strategy,omitempty"`
	CacheHit         bool      `json:"cache_hit"`
	EvaluationTimeMs float64   `json:"evaluation_time_ms"`
}
