package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/SscSPs/takas_swap_engine/internal/core/ports/services"
	"github.com/SscSPs/takas_swap_engine/internal/dto"
	"github.com/SscSPs/takas_swap_engine/internal/middleware"
)

type eligibilityHandler struct {
	eligibilityService portssvc.EligibilitySvc
}

// RegisterEligibilityRoutes registers the read-only eligibility check.
func RegisterEligibilityRoutes(rg *gin.RouterGroup, eligibilityService portssvc.EligibilitySvc) {
	h := &eligibilityHandler{eligibilityService: eligibilityService}
	rg.GET("/eligibility", h.checkEligibility)
}

// checkEligibility godoc
// @Summary Check whether I may create a swap offer
// @Description Evaluates the anti-abuse guard without creating anything. A refusal is still a 200 with allowed=false.
// @Tags swaps
// @Produce json
// @Param productID query string false "Target product"
// @Param offeredProductID query string false "Product offered in exchange"
// @Param proposedPrice query int false "Price the caller intends to propose"
// @Success 200 {object} domain.EligibilityResult
// @Failure 400 {object} dto.ErrorResponse "Invalid query"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Security BearerAuth
// @Router /eligibility [get]
func (h *eligibilityHandler) checkEligibility(c *gin.Context) {
	var query dto.EligibilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	result, err := h.eligibilityService.CheckEligibility(c.Request.Context(), actor.UserID, query)
	if err != nil {
		respondError(c, err, "Failed to check eligibility")
		return
	}
	if !result.Allowed {
		middleware.GetLoggerFromCtx(c.Request.Context()).Info("Swap offer would be refused", slog.String("reason", string(result.Reason)))
	}
	c.JSON(http.StatusOK, result)
}
