package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/SscSPs/takas_swap_engine/internal/apperrors"
	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	"github.com/SscSPs/takas_swap_engine/internal/dto"
	"github.com/SscSPs/takas_swap_engine/internal/utils"
)

func (s *swapService) GetDeliveryQR(ctx context.Context, actor domain.Actor, swapID string) (*dto.DeliveryQRResponse, error) {
	swap, err := s.transition(ctx, "get_qr", actor, swapID, func(ctx context.Context, tx pgx.Tx, swap *domain.SwapRequest, now time.Time, out *outcome) error {
		if _, err := requireParty(swap, actor); err != nil {
			return err
		}
		if !swap.Status.IsInFlight() {
			return invalidState(swap, "hand over products of")
		}
		if len(swap.Legs.GivenBy(actor.UserID)) == 0 {
			return apperrors.New(apperrors.KindForbidden, "you have no product to hand over in this swap")
		}
		if swap.Status == domain.StatusAccepted {
			swap.Status = domain.StatusQRGenerated
			out.event(domain.EventQRGenerated, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := &dto.DeliveryQRResponse{SwapID: swap.SwapID}
	for _, leg := range swap.Legs.GivenBy(actor.UserID) {
		resp.Codes = append(resp.Codes, dto.DeliveryQR{Side: leg.Side, ProductID: leg.ProductID, QRToken: leg.QRToken})
	}
	return resp, nil
}

func (s *swapService) ScanQR(ctx context.Context, actor domain.Actor, swapID string, req dto.ScanQRRequest) (*dto.ScanResult, error) {
	claims, err := s.signer.Verify(req.QRToken)
	if err != nil {
		s.Metrics.VerificationFailure("invalid_token")
		if errors.Is(err, utils.ErrInvalidQRToken) {
			return nil, apperrors.New(apperrors.KindValidation, "QR token is not valid")
		}
		return nil, err
	}
	if claims.SwapID != swapID {
		s.Metrics.VerificationFailure("foreign_token")
		return nil, apperrors.New(apperrors.KindValidation, "QR token belongs to a different swap")
	}

	s.finalizeIfDue(ctx, swapID)

	alreadyScanned := false
	swap, err := s.transition(ctx, "scan_qr", actor, swapID, func(ctx context.Context, tx pgx.Tx, swap *domain.SwapRequest, now time.Time, out *outcome) error {
		if _, err := requireParty(swap, actor); err != nil {
			return err
		}
		leg := swap.Legs.Get(claims.Side)
		if leg == nil || !leg.TokenMatches(req.QRToken) {
			s.Metrics.VerificationFailure("stale_token")
			return apperrors.New(apperrors.KindValidation, "QR token is not current for this swap")
		}
		// Side-binding holds in every state, so it is checked before anything else.
		if leg.ReceiverID != actor.UserID {
			s.Metrics.VerificationFailure("wrong_side")
			return apperrors.Newf(apperrors.KindForbidden, "QR-%s must be scanned by the party receiving that product, not by the party handing it over", leg.Side).
				WithDetails(map[string]any{"side": leg.Side, "receiverRole": receiverRole(swap, leg)})
		}
		if leg.Scanned() {
			alreadyScanned = true
			return nil
		}
		if !swap.Status.IsInFlight() {
			return invalidState(swap, "scan a QR code of")
		}

		leg.MarkScanned(now)
		swap.EscrowStatus = domain.EscrowActive
		switch {
		case swap.Legs.AllScanned():
			swap.Status = domain.StatusQRScanned
		case swap.Status == domain.StatusAccepted:
			swap.Status = domain.StatusQRGenerated
		}

		out.event(domain.EventQRScanned, map[string]any{"side": leg.Side})
		out.notify(domain.VerificationCodeNotice(swap.SwapID, leg))
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &dto.ScanResult{
		Swap:           dto.ToSwapResponse(swap),
		Side:           claims.Side,
		AlreadyScanned: alreadyScanned,
		Message:        "Verification code sent to the other party. Ask them for it and enter it with a delivery photo.",
	}
	if alreadyScanned {
		result.Message = "QR code already scanned and the verification code was already sent. Enter the code to confirm delivery."
	}
	return result, nil
}

func receiverRole(swap *domain.SwapRequest, leg *domain.LegState) domain.PartyRole {
	role, _ := swap.RoleOf(leg.ReceiverID)
	return role
}

// resolveSide picks the leg the actor receives when the caller did not name one.
func resolveSide(swap *domain.SwapRequest, actor domain.Actor, side domain.LegSide) domain.LegSide {
	if side != "" {
		return side
	}
	for _, leg := range swap.Legs.All() {
		if leg.ReceiverID == actor.UserID {
			return leg.Side
		}
	}
	return domain.LegA
}

func (s *swapService) VerifyDelivery(ctx context.Context, actor domain.Actor, swapID string, req dto.VerifyDeliveryRequest) (*domain.SwapRequest, error) {
	if len(req.Photos) == 0 {
		return nil, apperrors.New(apperrors.KindValidation, "at least one delivery photo is required")
	}
	if s.settings.MaxDeliveryPhotos > 0 && len(req.Photos) > s.settings.MaxDeliveryPhotos {
		return nil, apperrors.Newf(apperrors.KindValidation, "at most %d delivery photos are allowed", s.settings.MaxDeliveryPhotos)
	}

	return s.transition(ctx, "verify_delivery", actor, swapID, func(ctx context.Context, tx pgx.Tx, swap *domain.SwapRequest, now time.Time, out *outcome) error {
		if _, err := requireParty(swap, actor); err != nil {
			return err
		}
		if !swap.Status.AcceptsDeliveryCode() {
			return invalidState(swap, "verify delivery of")
		}

		side := resolveSide(swap, actor, req.Side)
		leg := swap.Legs.Get(side)
		if leg == nil {
			return apperrors.Newf(apperrors.KindValidation, "swap has no leg %s", side)
		}
		if leg.ReceiverID != actor.UserID {
			s.Metrics.VerificationFailure("wrong_side")
			return apperrors.Newf(apperrors.KindForbidden, "the code of leg %s must be entered by the party receiving that product", side).
				WithDetails(map[string]any{"side": side, "receiverRole": receiverRole(swap, leg)})
		}
		if !leg.Scanned() {
			return apperrors.New(apperrors.KindInvalidState, "scan the QR code before entering the verification code")
		}
		if !leg.CodeMatches(req.Code) {
			s.Metrics.VerificationFailure("code_mismatch")
			return apperrors.New(apperrors.KindValidation, "verification code does not match")
		}
		if leg.SecretState() == domain.SecretUsed {
			s.Metrics.VerificationFailure("code_used")
			return apperrors.New(apperrors.KindAlreadyUsed, "verification code has already been used")
		}
		if leg.CodeExpired(now, s.settings.CodeTTL) {
			s.Metrics.VerificationFailure("code_expired")
			return apperrors.Newf(apperrors.KindExpired, "verification code expired after %s; request a new code", s.settings.CodeTTL).
				WithDetails(map[string]any{"side": side, "issuedAt": leg.CodeIssuedAt, "reissue": fmt.Sprintf("/api/v1/swaps/%s/code/reissue", swap.SwapID)})
		}

		leg.MarkReceived(req.Photos, now)
		out.event(domain.EventLegDelivered, map[string]any{"side": side, "photos": len(req.Photos)})

		if !swap.Legs.AllReceived() {
			out.notify(domain.InApp(domain.NotifyLegDelivered, leg.GiverID, swap.SwapID, map[string]any{"side": side}))
			return nil
		}

		windowEnds := s.settings.DisputeWindow.EndsAt(now)
		swap.Status = domain.StatusDelivered
		swap.DeliveredAt = &now
		swap.DisputeWindowEndsAt = &windowEnds
		if swap.IsDualSided() {
			out.event(domain.EventJointDelivered, map[string]any{"disputeWindowEndsAt": windowEnds})
		} else {
			out.event(domain.EventDelivered, map[string]any{"disputeWindowEndsAt": windowEnds})
		}
		for _, userID := range []string{swap.RequesterID, swap.OwnerID} {
			out.notify(domain.InApp(domain.NotifySwapDelivered, userID, swap.SwapID, map[string]any{"disputeWindowEndsAt": windowEnds}))
		}
		return nil
	})
}

func (s *swapService) ReissueCode(ctx context.Context, actor domain.Actor, swapID string, req dto.ReissueCodeRequest) (*dto.ReissueCodeResponse, error) {
	var issuedAt time.Time
	_, err := s.transition(ctx, "reissue_code", actor, swapID, func(ctx context.Context, tx pgx.Tx, swap *domain.SwapRequest, now time.Time, out *outcome) error {
		if _, err := requireParty(swap, actor); err != nil {
			return err
		}
		leg := swap.Legs.Get(req.Side)
		if leg == nil {
			return apperrors.Newf(apperrors.KindValidation, "swap has no leg %s", req.Side)
		}
		if !swap.Status.IsInFlight() {
			return invalidState(swap, "reissue a code of")
		}
		if !leg.Scanned() {
			return apperrors.New(apperrors.KindInvalidState, "the code is issued when the QR code is scanned")
		}
		if leg.SecretState() == domain.SecretUsed {
			return apperrors.New(apperrors.KindAlreadyUsed, "verification code has already been used")
		}

		code, err := utils.GenerateNumericCode(codeDigits)
		if err != nil {
			return apperrors.NewAppError(0, "failed to generate verification code", err)
		}
		leg.Reissue(code, now)
		issuedAt = now

		out.event(domain.EventCodeReissued, map[string]any{"side": leg.Side})
		out.notify(domain.VerificationCodeNotice(swap.SwapID, leg))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.LogInfo(ctx, "Verification code reissued", slog.String("swap_id", swapID), slog.String("side", string(req.Side)))
	return &dto.ReissueCodeResponse{SwapID: swapID, Side: req.Side, IssuedAt: issuedAt}, nil
}
