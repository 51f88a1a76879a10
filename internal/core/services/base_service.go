package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/SscSPs/takas_swap_engine/internal/apperrors"
	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	"github.com/SscSPs/takas_swap_engine/internal/metrics"
	"github.com/SscSPs/takas_swap_engine/internal/middleware"
)

// BaseService provides common functionality for all services
type BaseService struct {
	Clock   domain.Clock
	Metrics *metrics.Collectors
}

// GetLogger gets the logger from context or returns a default one
func (s *BaseService) GetLogger(ctx context.Context) *slog.Logger {
	logger := middleware.GetLoggerFromCtx(ctx)
	if logger == nil {
		// Return a default logger if not found in context
		return slog.Default()
	}
	return logger
}

// LogError logs an error with consistent formatting
func (s *BaseService) LogError(ctx context.Context, err error, msg string, keyvals ...any) {
	logger := s.GetLogger(ctx)
	args := make([]any, 0, len(keyvals)+1)
	args = append(args, slog.String("error", err.Error()))
	args = append(args, keyvals...)
	logger.Error(msg, args...)
}

// LogInfo logs an info message with consistent formatting
func (s *BaseService) LogInfo(ctx context.Context, msg string, keyvals ...any) {
	logger := s.GetLogger(ctx)
	logger.Info(msg, keyvals...)
}

// LogDebug logs a debug message with consistent formatting
func (s *BaseService) LogDebug(ctx context.Context, msg string, keyvals ...any) {
	logger := s.GetLogger(ctx)
	logger.Debug(msg, keyvals...)
}

// LogFailure logs a failed operation. Typed refusals go to Warn, everything else to Error.
func (s *BaseService) LogFailure(ctx context.Context, operation string, err error, keyvals ...any) {
	kind := apperrors.KindOf(err)
	var appErr *apperrors.AppError
	if kind != apperrors.KindInternal && errors.As(err, &appErr) {
		args := append([]any{slog.String("kind", string(kind)), slog.String("reason", appErr.Reason)}, keyvals...)
		s.GetLogger(ctx).Warn(operation+" refused", args...)
	} else {
		s.LogError(ctx, err, operation+" failed", keyvals...)
	}
	s.Metrics.TransitionRefused(operation, string(kind))
}

// Now returns the service clock, falling back to UTC wall time.
func (s *BaseService) Now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return domain.UTCNow()
}
