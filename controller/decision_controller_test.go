// controller/decision_controller_test.go
package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/sentra-labs/sentra/controller"
	logger "github.com/sentra-labs/sentra/logging"
	"github.com/sentra-labs/sentra/pdp/engine"
	"github.com/sentra-labs/sentra/pdp/model"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.InitLogger(os.TempDir())
	defer logger.Sync()
	os.Exit(m.Run())
}

// stubDecisionService records calls and returns canned verdicts.
type stubDecisionService struct {
	evaluateCalls int
	resolveCalls  int
	lastContext   *model.PolicyContext
	result        *model.EvaluationResult
	resolution    model.ResolutionResult
	stats         engine.CacheStats
}

func (s *stubDecisionService) Evaluate(_ context.Context, pctx *model.PolicyContext, _ model.HistoricalContext, _ model.RealtimeContext) *model.EvaluationResult {
	s.evaluateCalls++
	s.lastContext = pctx
	return s.result
}

func (s *stubDecisionService) Resolve(_ context.Context, _ []model.PolicyEvaluation, _ model.ResolutionContext) model.ResolutionResult {
	s.resolveCalls++
	return s.resolution
}

func (s *stubDecisionService) Metrics() engine.CacheStats {
	return s.stats
}

func setupRouter(stub *stubDecisionService) *gin.Engine {
	r := gin.New()
	group := r.Group("/api/v1")
	controller.NewDecisionController(stub).RegisterRoutes(group)
	return r
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestEvaluateEndpoint(t *testing.T) {
	t.Run("ReturnsVerdict", func(t *testing.T) {
		stub := &stubDecisionService{
			result: &model.EvaluationResult{
				Decision: model.DecisionAllow,
				Band:     model.BandGreen,
				AuditID:  "audit-1",
			},
		}
		r := setupRouter(stub)

		w := postJSON(r, "/api/v1/decisions/evaluate", controller.EvaluateRequest{
			Context: model.PolicyContext{
				Action: "memory.read",
				Actor:  model.ActorAttributes{ID: "user-1"},
			},
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, stub.evaluateCalls)
		assert.Equal(t, "memory.read", stub.lastContext.Action)

		var body map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ALLOW", body["decision"])
		assert.Equal(t, "audit-1", body["audit_id"])
	})

	t.Run("DenialIsStillOK", func(t *testing.T) {
		stub := &stubDecisionService{
			result: &model.EvaluationResult{
				Decision: model.DecisionDeny,
				Band:     model.BandRed,
				AuditID:  "audit-2",
			},
		}
		r := setupRouter(stub)

		w := postJSON(r, "/api/v1/decisions/evaluate", controller.EvaluateRequest{
			Context: model.PolicyContext{
				Action: "tools.run",
				Actor:  model.ActorAttributes{ID: "user-2"},
			},
		})

		assert.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "DENY", body["decision"])
	})

	t.Run("MissingActionIsBadRequest", func(t *testing.T) {
		stub := &stubDecisionService{result: &model.EvaluationResult{}}
		r := setupRouter(stub)

		w := postJSON(r, "/api/v1/decisions/evaluate", controller.EvaluateRequest{
			Context: model.PolicyContext{Actor: model.ActorAttributes{ID: "user-3"}},
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 0, stub.evaluateCalls)
	})

	t.Run("MalformedBodyIsBadRequest", func(t *testing.T) {
		stub := &stubDecisionService{result: &model.EvaluationResult{}}
		r := setupRouter(stub)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/decisions/evaluate", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 0, stub.evaluateCalls)
	})
}

func TestResolveEndpoint(t *testing.T) {
	t.Run("MergesEvaluations", func(t *testing.T) {
		stub := &stubDecisionService{
			resolution: model.ResolutionResult{
				Decision:     model.DecisionDeny,
				Band:         model.BandRed,
				StrategyUsed: model.StrategyDenyWins,
			},
		}
		r := setupRouter(stub)

		w := postJSON(r, "/api/v1/decisions/resolve", controller.ResolveRequest{
			Evaluations: []model.PolicyEvaluation{
				{PolicyID: "core_pipeline", Decision: model.DecisionDeny, Band: model.BandRed},
				{PolicyID: "context_scorer", Decision: model.DecisionAllow, Band: model.BandGreen},
			},
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, stub.resolveCalls)

		var body map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "DENY", body["decision"])
		assert.Equal(t, string(model.StrategyDenyWins), body["strategy_used"])
	})

	t.Run("EmptyEvaluationsIsBadRequest", func(t *testing.T) {
		stub := &stubDecisionService{}
		r := setupRouter(stub)

		w := postJSON(r, "/api/v1/decisions/resolve", controller.ResolveRequest{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 0, stub.resolveCalls)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	stub := &stubDecisionService{
		stats: engine.CacheStats{Hits: 10, Misses: 5, HitRate: 2.0 / 3.0},
	}
	r := setupRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/decisions/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var stats engine.CacheStats
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, uint64(10), stats.Hits)
	assert.Equal(t, uint64(5), stats.Misses)
}
