package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/SscSPs/takas_swap_engine/internal/core/ports/services"
	"github.com/SscSPs/takas_swap_engine/internal/dto"
	"github.com/SscSPs/takas_swap_engine/internal/middleware"
)

// swapHandler handles HTTP requests that drive the swap state machine.
type swapHandler struct {
	swapService portssvc.SwapSvcFacade
}

func newSwapHandler(ss portssvc.SwapSvcFacade) *swapHandler {
	return &swapHandler{swapService: ss}
}

// RegisterSwapRoutes registers the swap routes. deliveryGuard wraps the scan, verify and reissue
// endpoints, which accept guessable secrets.
func RegisterSwapRoutes(rg *gin.RouterGroup, swapService portssvc.SwapSvcFacade, deliveryGuard ...gin.HandlerFunc) {
	h := newSwapHandler(swapService)

	swaps := rg.Group("/swaps")
	{
		swaps.POST("", h.createOffer)
		swaps.GET("", h.listSwaps)
		swaps.POST("/deposit-preview", h.previewDeposit)
		swaps.GET("/:id", h.getSwap)
		swaps.GET("/:id/events", h.listSwapEvents)
		swaps.POST("/:id/price", h.proposePrice)
		swaps.POST("/:id/price/accept", h.acceptPrice)
		swaps.POST("/:id/confirm", h.confirmSwap)
		swaps.POST("/:id/reject", h.rejectSwap)
		swaps.POST("/:id/cancel", h.cancelSwap)
		swaps.GET("/:id/qr", h.getDeliveryQR)
		swaps.POST("/:id/complete", h.completeSwap)
		swaps.POST("/:id/dispute", h.raiseDispute)
	}

	delivery := swaps.Group("/:id", deliveryGuard...)
	{
		delivery.POST("/scan", h.scanQR)
		delivery.POST("/verify", h.verifyDelivery)
		delivery.POST("/code/reissue", h.reissueCode)
	}
}

// createOffer godoc
// @Summary Create a swap offer
// @Description Opens a pending swap on another user's product. Presence of offeredProductID makes it product-for-product.
// @Tags swaps
// @Accept json
// @Produce json
// @Param offer body dto.CreateOfferRequest true "Offer details"
// @Success 201 {object} dto.SwapResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 403 {object} dto.ErrorResponse "Not eligible or not your offered product"
// @Failure 404 {object} dto.ErrorResponse "Product not found"
// @Security BearerAuth
// @Router /swaps [post]
func (h *swapHandler) createOffer(c *gin.Context) {
	var req dto.CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	swap, err := h.swapService.CreateOffer(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err, "Failed to create swap offer")
		return
	}
	c.JSON(http.StatusCreated, dto.ToSwapResponse(swap))
}

// listSwaps godoc
// @Summary List my swaps
// @Description Lists swaps where the caller is requester or owner, newest first.
// @Tags swaps
// @Produce json
// @Param status query string false "Filter by status"
// @Param limit query int false "Page size" default(20)
// @Param nextToken query string false "Token of the next page"
// @Success 200 {object} dto.ListSwapsResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid query"
// @Security BearerAuth
// @Router /swaps [get]
func (h *swapHandler) listSwaps(c *gin.Context) {
	var params dto.ListSwapsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondBindError(c, err)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	resp, err := h.swapService.ListSwaps(c.Request.Context(), actor, params)
	if err != nil {
		respondError(c, err, "Failed to list swaps")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// getSwap godoc
// @Summary Get a swap
// @Tags swaps
// @Produce json
// @Param id path string true "Swap ID"
// @Success 200 {object} dto.SwapResponse
// @Failure 403 {object} dto.ErrorResponse "Not a party"
// @Failure 404 {object} dto.ErrorResponse "Swap not found"
// @Security BearerAuth
// @Router /swaps/{id} [get]
func (h *swapHandler) getSwap(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	swap, err := h.swapService.GetSwap(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get swap")
		return
	}
	c.JSON(http.StatusOK, dto.ToSwapResponse(swap))
}

// listSwapEvents godoc
// @Summary Get the activity log of a swap
// @Tags swaps
// @Produce json
// @Param id path string true "Swap ID"
// @Success 200 {array} dto.SwapEventResponse
// @Failure 403 {object} dto.ErrorResponse "Not a party"
// @Failure 404 {object} dto.ErrorResponse "Swap not found"
// @Security BearerAuth
// @Router /swaps/{id}/events [get]
func (h *swapHandler) listSwapEvents(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	events, err := h.swapService.ListSwapEvents(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to list swap events")
		return
	}
	c.JSON(http.StatusOK, dto.ToSwapEventResponses(events))
}

// proposePrice godoc
// @Summary Propose a price
// @Description Writes the caller's own price slot. Equal slots mean the price is agreed.
// @Tags negotiation
// @Accept json
// @Produce json
// @Param id path string true "Swap ID"
// @Param proposal body dto.ProposePriceRequest true "Price"
// @Success 200 {object} dto.SwapResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid price"
// @Failure 409 {object} dto.ErrorResponse "Swap is no longer pending"
// @Security BearerAuth
// @Router /swaps/{id}/price [post]
func (h *swapHandler) proposePrice(c *gin.Context) {
	var req dto.ProposePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	swap, err := h.swapService.ProposePrice(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err, "Failed to propose price")
		return
	}
	c.JSON(http.StatusOK, dto.ToSwapResponse(swap))
}

// acceptPrice godoc
// @Summary Accept the counterpart's price
// @Tags negotiation
// @Produce json
// @Param id path string true "Swap ID"
// @Success 200 {object} dto.SwapResponse
// @Failure 409 {object} dto.ErrorResponse "Nothing to accept"
// @Security BearerAuth
// @Router /swaps/{id}/price/accept [post]
func (h *swapHandler) acceptPrice(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	swap, err := h.swapService.AcceptPrice(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to accept price")
		return
	}
	c.JSON(http.StatusOK, dto.ToSwapResponse(swap))
}

// confirmSwap godoc
// @Summary Accept a swap
// @Description The owner accepts a price-agreed swap. Deposits are frozen and delivery secrets generated.
// @Tags swaps
// @Produce json
// @Param id path string true "Swap ID"
// @Success 200 {object} dto.SwapResponse
// @Failure 403 {object} dto.ErrorResponse "Not the owner"
// @Failure 409 {object} dto.ErrorResponse "No agreed price or already accepted"
// @Failure 422 {object} dto.ErrorResponse "Insufficient funds for the deposit"
// @Security BearerAuth
// @Router /swaps/{id}/confirm [post]
func (h *swapHandler) confirmSwap(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	swap, err := h.swapService.ConfirmSwap(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to confirm swap")
		return
	}
	c.JSON(http.StatusOK, dto.ToSwapResponse(swap))
}

// rejectSwap godoc
// @Summary Reject a swap
// @Tags swaps
// @Accept json
// @Produce json
// @Param id path string true "Swap ID"
// @Param body body dto.CloseSwapRequest false "Reason"
// @Success 200 {object} dto.SwapResponse
// @Failure 403 {object} dto.ErrorResponse "Not the owner"
// @Failure 409 {object} dto.ErrorResponse "Swap cannot be rejected in its status"
// @Security BearerAuth
// @Router /swaps/{id}/reject [post]
func (h *swapHandler) rejectSwap(c *gin.Context) {
	var req dto.CloseSwapRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBindError(c, err)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	swap, err := h.swapService.RejectSwap(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err, "Failed to reject swap")
		return
	}
	c.JSON(http.StatusOK, dto.ToSwapResponse(swap))
}

// cancelSwap godoc
// @Summary Cancel a swap
// @Tags swaps
// @Accept json
// @Produce json
// @Param id path string true "Swap ID"
// @Param body body dto.CloseSwapRequest false "Reason"
// @Success 200 {object} dto.SwapResponse
// @Failure 409 {object} dto.ErrorResponse "Delivery already started"
// @Security BearerAuth
// @Router /swaps/{id}/cancel [post]
func (h *swapHandler) cancelSwap(c *gin.Context) {
	var req dto.CloseSwapRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBindError(c, err)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	swap, err := h.swapService.CancelSwap(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err, "Failed to cancel swap")
		return
	}
	c.JSON(http.StatusOK, dto.ToSwapResponse(swap))
}

// getDeliveryQR godoc
// @Summary Get my delivery QR codes
// @Description Returns the QR token(s) the caller shows when handing over their product.
// @Tags delivery
// @Produce json
// @Param id path string true "Swap ID"
// @Success 200 {object} dto.DeliveryQRResponse
// @Failure 403 {object} dto.ErrorResponse "Nothing to hand over"
// @Failure 409 {object} dto.ErrorResponse "Swap not in flight"
// @Security BearerAuth
// @Router /swaps/{id}/qr [get]
func (h *swapHandler) getDeliveryQR(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	resp, err := h.swapService.GetDeliveryQR(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get delivery QR")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// scanQR godoc
// @Summary Scan a delivery QR code
// @Description The receiver scans the giver's QR. The verification code is then sent to the giver.
// @Tags delivery
// @Accept json
// @Produce json
// @Param id path string true "Swap ID"
// @Param scan body dto.ScanQRRequest true "QR token"
// @Success 200 {object} dto.ScanResult
// @Failure 400 {object} dto.ErrorResponse "Invalid token"
// @Failure 403 {object} dto.ErrorResponse "Scanned by the wrong party"
// @Failure 429 {object} dto.ErrorResponse "Too many attempts"
// @Security BearerAuth
// @Router /swaps/{id}/scan [post]
func (h *swapHandler) scanQR(c *gin.Context) {
	var req dto.ScanQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	result, err := h.swapService.ScanQR(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err, "Failed to scan QR code")
		return
	}
	middleware.GetLoggerFromCtx(c.Request.Context()).Info("QR code scanned",
		slog.String("swap_id", c.Param("id")),
		slog.String("side", string(result.Side)),
		slog.Bool("already_scanned", result.AlreadyScanned))
	c.JSON(http.StatusOK, result)
}

// verifyDelivery godoc
// @Summary Confirm delivery with the verification code
// @Tags delivery
// @Accept json
// @Produce json
// @Param id path string true "Swap ID"
// @Param verification body dto.VerifyDeliveryRequest true "Code and photos"
// @Success 200 {object} dto.SwapResponse
// @Failure 400 {object} dto.ErrorResponse "Wrong code or missing photos"
// @Failure 409 {object} dto.ErrorResponse "Code already used"
// @Failure 410 {object} dto.ErrorResponse "Code expired"
// @Failure 429 {object} dto.ErrorResponse "Too many attempts"
// @Security BearerAuth
// @Router /swaps/{id}/verify [post]
func (h *swapHandler) verifyDelivery(c *gin.Context) {
	var req dto.VerifyDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	swap, err := h.swapService.VerifyDelivery(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err, "Failed to verify delivery")
		return
	}
	c.JSON(http.StatusOK, dto.ToSwapResponse(swap))
}

// reissueCode godoc
// @Summary Re-issue a verification code
// @Tags delivery
// @Accept json
// @Produce json
// @Param id path string true "Swap ID"
// @Param body body dto.ReissueCodeRequest true "Leg"
// @Success 200 {object} dto.ReissueCodeResponse
// @Failure 409 {object} dto.ErrorResponse "Leg not scanned or code used"
// @Security BearerAuth
// @Router /swaps/{id}/code/reissue [post]
func (h *swapHandler) reissueCode(c *gin.Context) {
	var req dto.ReissueCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	resp, err := h.swapService.ReissueCode(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err, "Failed to reissue code")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// completeSwap godoc
// @Summary Complete a delivered swap
// @Description Settles the agreed amount net of the platform fee and releases every deposit.
// @Tags swaps
// @Produce json
// @Param id path string true "Swap ID"
// @Success 200 {object} dto.SwapResponse
// @Failure 403 {object} dto.ErrorResponse "Not the requester"
// @Failure 409 {object} dto.ErrorResponse "Not delivered or disputed"
// @Failure 422 {object} dto.ErrorResponse "Insufficient funds for settlement"
// @Security BearerAuth
// @Router /swaps/{id}/complete [post]
func (h *swapHandler) completeSwap(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	swap, err := h.swapService.CompleteSwap(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to complete swap")
		return
	}
	c.JSON(http.StatusOK, dto.ToSwapResponse(swap))
}

// raiseDispute godoc
// @Summary Dispute a delivered swap
// @Tags swaps
// @Accept json
// @Produce json
// @Param id path string true "Swap ID"
// @Param dispute body dto.DisputeRequest true "Reason"
// @Success 200 {object} dto.SwapResponse
// @Failure 409 {object} dto.ErrorResponse "Not delivered or already disputed"
// @Failure 410 {object} dto.ErrorResponse "Dispute window closed"
// @Security BearerAuth
// @Router /swaps/{id}/dispute [post]
func (h *swapHandler) raiseDispute(c *gin.Context) {
	var req dto.DisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	swap, err := h.swapService.RaiseDispute(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err, "Failed to raise dispute")
		return
	}
	c.JSON(http.StatusOK, dto.ToSwapResponse(swap))
}

// previewDeposit godoc
// @Summary Preview the required deposit
// @Tags swaps
// @Accept json
// @Produce json
// @Param preview body dto.DepositPreviewRequest true "Swap being considered"
// @Success 200 {object} dto.DepositPreviewResponse
// @Failure 404 {object} dto.ErrorResponse "Product not found"
// @Security BearerAuth
// @Router /swaps/deposit-preview [post]
func (h *swapHandler) previewDeposit(c *gin.Context) {
	var req dto.DepositPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	resp, err := h.swapService.PreviewDeposit(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err, "Failed to preview deposit")
		return
	}
	c.JSON(http.StatusOK, resp)
}
