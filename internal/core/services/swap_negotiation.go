package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/SscSPs/takas_swap_engine/internal/apperrors"
	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	"github.com/SscSPs/takas_swap_engine/internal/dto"
)

func (s *swapService) ProposePrice(ctx context.Context, actor domain.Actor, swapID string, req dto.ProposePriceRequest) (*domain.SwapRequest, error) {
	return s.transition(ctx, "propose_price", actor, swapID, func(ctx context.Context, tx pgx.Tx, swap *domain.SwapRequest, now time.Time, out *outcome) error {
		role, err := requireParty(swap, actor)
		if err != nil {
			return err
		}
		if swap.Status != domain.StatusPending {
			return invalidState(swap, "negotiate the price of")
		}
		agreed, err := swap.ProposePrice(role, req.Price, now)
		if err != nil {
			return negotiationError(err)
		}
		s.recordNegotiation(swap, actor, role, req.Price, agreed, out)
		return nil
	})
}

func (s *swapService) AcceptPrice(ctx context.Context, actor domain.Actor, swapID string) (*domain.SwapRequest, error) {
	return s.transition(ctx, "accept_price", actor, swapID, func(ctx context.Context, tx pgx.Tx, swap *domain.SwapRequest, now time.Time, out *outcome) error {
		role, err := requireParty(swap, actor)
		if err != nil {
			return err
		}
		if swap.Status != domain.StatusPending {
			return invalidState(swap, "negotiate the price of")
		}
		agreed, err := swap.AcceptCounterpartPrice(role, now)
		if err != nil {
			return negotiationError(err)
		}
		price, _ := swap.AgreedPrice()
		s.recordNegotiation(swap, actor, role, price, agreed, out)
		return nil
	})
}

func (s *swapService) recordNegotiation(swap *domain.SwapRequest, actor domain.Actor, role domain.PartyRole, price int64, agreed bool, out *outcome) {
	counterparty := swap.Counterparty(actor.UserID)
	out.event(domain.EventPriceProposed, map[string]any{"role": role, "price": price})
	if !agreed {
		out.notify(domain.InApp(domain.NotifyPriceProposed, counterparty, swap.SwapID, map[string]any{"price": price, "role": role}))
		return
	}
	out.event(domain.EventPriceAgreed, map[string]any{"price": price})
	for _, userID := range []string{swap.RequesterID, swap.OwnerID} {
		out.notify(domain.InApp(domain.NotifyPriceAgreed, userID, swap.SwapID, map[string]any{"price": price}))
	}
}

func negotiationError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNoCounterpartProposal):
		return apperrors.New(apperrors.KindInvalidState, "the other party has not proposed a price yet")
	case errors.Is(err, domain.ErrNotAParty):
		return apperrors.New(apperrors.KindForbidden, err.Error())
	default:
		return apperrors.New(apperrors.KindValidation, err.Error())
	}
}
