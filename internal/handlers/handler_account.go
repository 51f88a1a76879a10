package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/SscSPs/takas_swap_engine/internal/core/ports/services"
	"github.com/SscSPs/takas_swap_engine/internal/dto"
	"github.com/SscSPs/takas_swap_engine/internal/middleware"
)

// accountHandler handles HTTP requests related to Valor accounts.
type accountHandler struct {
	accountService portssvc.AccountSvcFacade
}

// newAccountHandler creates a new accountHandler.
func newAccountHandler(as portssvc.AccountSvcFacade) *accountHandler {
	return &accountHandler{
		accountService: as,
	}
}

// RegisterAccountRoutes registers routes related to accounts and the ledger.
func RegisterAccountRoutes(rg *gin.RouterGroup, accountService portssvc.AccountSvcFacade) {
	h := newAccountHandler(accountService)

	accounts := rg.Group("/accounts/me")
	{
		accounts.GET("", h.getMyAccount)
		accounts.GET("/ledger", h.listMyLedger)
	}
	rg.GET("/swaps/:id/ledger", h.listSwapLedger)
}

// getMyAccount godoc
// @Summary Get my Valor account
// @Description Returns the caller's balance, locked deposits and trust level
// @Tags accounts
// @Produce  json
// @Success 200 {object} dto.AccountResponse
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Account not found"
// @Failure 500 {object} dto.ErrorResponse "Failed to retrieve account"
// @Security BearerAuth
// @Router /accounts/me [get]
func (h *accountHandler) getMyAccount(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	acc, err := h.accountService.GetAccount(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err, "Failed to retrieve account")
		return
	}
	c.JSON(http.StatusOK, dto.ToAccountResponse(acc))
}

// listMyLedger godoc
// @Summary List my ledger entries
// @Description Retrieves the caller's ledger, newest first, with token based pagination
// @Tags accounts
// @Produce  json
// @Param   limit query int false "Page size" default(50)
// @Param   nextToken query string false "Token of the next page"
// @Success 200 {object} dto.ListLedgerResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid query parameters"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 500 {object} dto.ErrorResponse "Failed to list ledger"
// @Security BearerAuth
// @Router /accounts/me/ledger [get]
func (h *accountHandler) listMyLedger(c *gin.Context) {
	var params dto.ListLedgerParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondBindError(c, err)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	resp, err := h.accountService.ListLedger(c.Request.Context(), actor.UserID, params)
	if err != nil {
		respondError(c, err, "Failed to list ledger")
		return
	}
	middleware.GetLoggerFromCtx(c.Request.Context()).Debug("Listed ledger entries", slog.Int("count", len(resp.Entries)))
	c.JSON(http.StatusOK, resp)
}

// listSwapLedger godoc
// @Summary List the ledger entries of a swap
// @Description Every freeze, release and settlement written for the swap. Parties and admins only.
// @Tags accounts
// @Produce  json
// @Param   id path string true "Swap ID"
// @Success 200 {array} dto.LedgerEntryResponse
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not a party"
// @Failure 404 {object} dto.ErrorResponse "Swap not found"
// @Security BearerAuth
// @Router /swaps/{id}/ledger [get]
func (h *accountHandler) listSwapLedger(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	entries, err := h.accountService.ListSwapLedger(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to list swap ledger")
		return
	}
	c.JSON(http.StatusOK, dto.ToLedgerEntryResponses(entries))
}
