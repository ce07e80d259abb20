// controller/decision_controller.go
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	sentra_errors "github.com/sentra-labs/sentra/errors"
	"github.com/sentra-labs/sentra/pdp/model"
	"github.com/sentra-labs/sentra/service"
	"github.com/sentra-labs/sentra/util"
)

type DecisionController struct {
	decisionService service.IDecisionService
}

func NewDecisionController(decisionService service.IDecisionService) *DecisionController {
	return &DecisionController{decisionService: decisionService}
}

func (dc *DecisionController) RegisterRoutes(r *gin.RouterGroup) {
	decisions := r.Group("/decisions")
	{
		decisions.POST("/evaluate", dc.Evaluate)
		decisions.POST("/resolve", dc.Resolve)
		decisions.GET("/metrics", dc.Metrics)
	}
}

// EvaluateRequest is the inbound DTO for a single evaluation.
type EvaluateRequest struct {
	Context    model.PolicyContext     `json:"context" binding:"required"`
	Historical model.HistoricalContext `json:"historical"`
	Realtime   model.RealtimeContext   `json:"realtime"`
}

// ResolveRequest carries already-computed evaluations to merge.
type ResolveRequest struct {
	Evaluations []model.PolicyEvaluation `json:"evaluations" binding:"required,min=1"`
	Context     model.ResolutionContext  `json:"context"`
}

// Evaluate decides one request. Fail-closed denials are 200s with a DENY
// body, never 5xx: the engine always terminates in a concrete decision.
func (dc *DecisionController) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, sentra_errors.ErrInvalidRequestData.Error(), err)
		return
	}
	if req.Context.Action == "" {
		util.RespondWithError(c, http.StatusBadRequest, "action is required", sentra_errors.ErrInvalidRequestData)
		return
	}

	result := dc.decisionService.Evaluate(c.Request.Context(), &req.Context, req.Historical, req.Realtime)
	c.JSON(http.StatusOK, result)
}

// Resolve merges multiple policy evaluations into one verdict.
func (dc *DecisionController) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, sentra_errors.ErrInvalidRequestData.Error(), err)
		return
	}

	result := dc.decisionService.Resolve(c.Request.Context(), req.Evaluations, req.Context)
	c.JSON(http.StatusOK, result)
}

// Metrics exposes decision-cache and latency SLO statistics.
func (dc *DecisionController) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, dc.decisionService.Metrics())
}
