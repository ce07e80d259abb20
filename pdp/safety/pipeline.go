// pdp/safety/pipeline.go
package safety

import (
	"context"

	"github.com/sentra-labs/sentra/pdp/model"
)

// Assessment is the external safety verdict for one request context.
type Assessment struct {
	RiskLevel          string     `json:"risk_level"` // "low", "medium", "high"
	ThreatIndicators   []string   `json:"threat_indicators,omitempty"`
	RecommendedBand    model.Band `json:"recommended_band"`
	ContentFlags       []string   `json:"content_flags,omitempty"`
	SafetyScore        float64    `json:"safety_score"`
	MitigationRequired bool       `json:"mitigation_required"`
}

// Pipeline is the boundary to the content-safety collaborator. The engine
// calls it synchronously and treats any error as recoverable; the host is
// responsible for wrapping implementations with timeouts.
type Pipeline interface {
	AssessContext(ctx context.Context, pctx *model.PolicyContext) (*Assessment, error)
	GetMitigationActions(assessment *Assessment) []string
}
