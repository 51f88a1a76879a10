package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/SscSPs/takas_swap_engine/internal/apperrors"
	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	"github.com/SscSPs/takas_swap_engine/internal/dto"
)

func (s *swapService) RaiseDispute(ctx context.Context, actor domain.Actor, swapID string, req dto.DisputeRequest) (*domain.SwapRequest, error) {
	s.finalizeIfDue(ctx, swapID)

	return s.transition(ctx, "raise_dispute", actor, swapID, func(ctx context.Context, tx pgx.Tx, swap *domain.SwapRequest, now time.Time, out *outcome) error {
		if _, err := requireParty(swap, actor); err != nil {
			return err
		}
		switch {
		case swap.Status == domain.StatusDisputed:
			return apperrors.New(apperrors.KindConflict, "a dispute is already open for this swap")
		case swap.Status == domain.StatusCompleted && swap.DisputeWindowEndsAt != nil && !swap.DisputeWindowOpen(now):
			return windowClosed(swap)
		case swap.Status != domain.StatusDelivered:
			return invalidState(swap, "dispute")
		case !swap.DisputeWindowOpen(now):
			return windowClosed(swap)
		}

		swap.Status = domain.StatusDisputed
		swap.DisputedAt = &now
		swap.DisputeReason = req.Reason

		out.event(domain.EventDisputed, map[string]any{"reason": req.Reason})
		out.notify(domain.InApp(domain.NotifySwapDisputed, swap.Counterparty(actor.UserID), swap.SwapID, map[string]any{"reason": req.Reason}))
		return nil
	})
}

func windowClosed(swap *domain.SwapRequest) error {
	return apperrors.New(apperrors.KindExpired, "the dispute window has closed").
		WithDetails(map[string]any{"disputeWindowEndsAt": swap.DisputeWindowEndsAt})
}

// finalizeIfDue auto-completes a swap whose dispute window elapsed before an inbound call proceeds.
// It runs in its own transaction and never fails the caller.
func (s *swapService) finalizeIfDue(ctx context.Context, swapID string) {
	swap, err := s.swapRepo.FindSwapByID(ctx, swapID)
	if err != nil || !swap.DueForFinalization(s.Now()) {
		return
	}
	if _, err := s.finalize(ctx, swapID); err != nil {
		s.LogError(ctx, err, "Lazy finalization failed", slog.String("swap_id", swapID))
	}
}

// finalize re-checks the window under lock and settles the swap. It reports whether it completed the swap.
func (s *swapService) finalize(ctx context.Context, swapID string) (bool, error) {
	done := false
	_, err := s.transition(ctx, "auto_complete", domain.SystemActor(), swapID, func(ctx context.Context, tx pgx.Tx, swap *domain.SwapRequest, now time.Time, out *outcome) error {
		if !swap.DueForFinalization(now) {
			return nil
		}
		done = true
		return s.settleInTx(ctx, tx, swap, now, domain.EventAutoCompleted, out)
	})
	return done, err
}

func (s *swapService) SweepDisputeWindows(ctx context.Context, state *domain.SweepState) (domain.SweepResult, error) {
	now := s.Now()
	if state != nil && !state.ShouldRun(now) {
		s.Metrics.SweepRun("skipped", 0)
		return domain.SweepResult{Skipped: true}, nil
	}

	ids, err := s.swapRepo.ListSwapsDueForFinalization(ctx, now, s.settings.SweepBatchSize)
	if err != nil {
		s.LogError(ctx, err, "Failed to list swaps due for finalization")
		s.Metrics.SweepRun("error", 0)
		return domain.SweepResult{}, err
	}

	result := domain.SweepResult{Examined: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		done, err := s.finalize(ctx, id)
		switch {
		case apperrors.KindOf(err) == apperrors.KindInsufficientFunds:
			result.Failed = append(result.Failed, id)
			result.Unsettled = append(result.Unsettled, id)
			s.GetLogger(ctx).Warn("Swap cannot be settled, payer is short of funds",
				slog.String("swap_id", id),
				slog.Any("details", errorDetails(err)))
		case err != nil:
			result.Failed = append(result.Failed, id)
		case done:
			result.Finalized = append(result.Finalized, id)
		}
	}

	if state != nil {
		state.Record(now, result)
	}
	runStatus := "ok"
	if len(result.Failed) > 0 {
		runStatus = "partial"
	}
	s.Metrics.SweepRun(runStatus, len(result.Finalized))
	s.Metrics.UnsettledSwaps(len(result.Unsettled))
	s.LogInfo(ctx, "Dispute window sweep finished",
		slog.Int("examined", result.Examined),
		slog.Int("finalized", len(result.Finalized)),
		slog.Int("failed", len(result.Failed)),
		slog.Int("unsettled", len(result.Unsettled)))
	return result, ctx.Err()
}

func errorDetails(err error) map[string]any {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}
