// pdp/model/evaluation.go
package model

// PolicyEvaluation is one policy's verdict on a request, produced by the
// core pipeline or the context-aware scorer and consumed by the resolver.
type PolicyEvaluation struct {
	PolicyID         string        `json:"policy_id"`
	Decision         Decision      `json:"decision"`
	Band             Band          `json:"band"`
	Confidence       float64       `json:"confidence"`
	Reasons          []string      `json:"reasons,omitempty"`
	Obligations      ObligationSet `json:"obligations"`
	Priority         int           `json:"priority"`
	EvaluationTimeMs float64       `json:"evaluation_time_ms"`
}

// ConflictType classifies what two policies disagree about.
type ConflictType string

const (
	ConflictDecision   ConflictType = "decision"
	ConflictBand       ConflictType = "band"
	ConflictObligation ConflictType = "obligation"
	ConflictPriority   ConflictType = "priority"
)

// ConflictSeverity orders conflicts for strategy selection.
type ConflictSeverity string

const (
	SeverityHigh   ConflictSeverity = "high"
	SeverityMedium ConflictSeverity = "medium"
	SeverityLow    ConflictSeverity = "low"
)

// ConflictRecord is immutable once created; it is retained in the
// ResolutionResult for audit only.
type ConflictRecord struct {
	Type      ConflictType     `json:"type"`
	Severity  ConflictSeverity `json:"severity"`
	PolicyIDs []string         `json:"policy_ids"`
	Evidence  string           `json:"evidence,omitempty"`
}

// ResolutionStrategy names the rule used to merge conflicting evaluations.
type ResolutionStrategy string

const (
	StrategyPriorityResolution ResolutionStrategy = "priority_resolution"
	StrategyMostRestrictive    ResolutionStrategy = "most_restrictive_wins"
	StrategyDenyWins           ResolutionStrategy = "deny_wins"
	StrategyWeightedScoring    ResolutionStrategy = "weighted_scoring"
	StrategyConsensusBuilding  ResolutionStrategy = "consensus_building"
	StrategyResolutionFallback ResolutionStrategy = "resolution_fallback"
)

// ResolutionContext carries the request signals that drive strategy
// selection when multiple policies disagree.
type ResolutionContext struct {
	Urgency            string  `json:"urgency,omitempty"`
	SecurityAlertLevel string  `json:"security_alert_level,omitempty"`
	ActorIsMinor       bool    `json:"actor_is_minor"`
	SafetyPressure     float64 `json:"safety_pressure"`
	DeviceUntrusted    bool    `json:"device_untrusted"`
}

// ResolutionResult is the externally visible output of a multi-policy merge.
type ResolutionResult struct {
	Decision          Decision           `json:"decision"`
	Band              Band               `json:"band"`
	Obligations       ObligationSet      `json:"obligations"`
	Confidence        float64            `json:"confidence"`
	Reasoning         []string           `json:"reasoning,omitempty"`
	StrategyUsed      ResolutionStrategy `json:"strategy_used"`
	ConflictsResolved []ConflictRecord   `json:"conflicts_resolved,omitempty"`
	ResolutionTimeMs  float64            `json:"resolution_time_ms"`
}

// EvaluationResult is the envelope returned for a single evaluation call.
type EvaluationResult struct {
	Decision         Decision      `json:"decision"`
	Band             Band          `json:"band"`
	Obligations      ObligationSet `json:"obligations"`
	Reasons          []string      `json:"reasons,omitempty"`
	AuditID          string        `json:"audit_id"`
	Confidence       float64       `json:"confidence"`
	EvaluationTimeMs float64       `json:"evaluation_time_ms"`
	CacheHit         bool          `json:"cache_hit"`
}
