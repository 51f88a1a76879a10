package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SscSPs/takas_swap_engine/internal/apperrors"
	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	"github.com/SscSPs/takas_swap_engine/internal/dto"
	"github.com/SscSPs/takas_swap_engine/internal/middleware"
)

// respondError maps err to its HTTP status and writes the error body.
// Infrastructure failures are logged in full and answered with msg only.
func respondError(c *gin.Context, err error, msg string) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	status := apperrors.HTTPStatus(err)
	kind := apperrors.KindOf(err)

	if status >= http.StatusInternalServerError {
		logger.Error(msg, slog.String("error", err.Error()))
		c.JSON(status, dto.ErrorResponse{Error: msg, Kind: string(apperrors.KindInternal)})
		return
	}

	body := dto.ErrorResponse{Error: err.Error(), Kind: string(kind)}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body.Error = appErr.Reason
		body.Details = appErr.Details
	}
	logger.Warn(msg, slog.String("error", err.Error()), slog.String("kind", string(kind)))
	c.JSON(status, body)
}

// respondBindError answers a request whose body or query failed binding.
func respondBindError(c *gin.Context, err error) {
	middleware.GetLoggerFromCtx(c.Request.Context()).Warn("Failed to bind request", slog.String("error", err.Error()))
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error: "Invalid request format: " + err.Error(),
		Kind:  string(apperrors.KindValidation),
	})
}

// bindOptionalJSON binds a body that callers may omit entirely.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// actorFromContext returns the authenticated caller or answers 401.
func actorFromContext(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.GetActorFromContext(c)
	if !ok {
		middleware.GetLoggerFromCtx(c.Request.Context()).Error("Actor not found in context")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized", Kind: "unauthorized"})
	}
	return actor, ok
}
