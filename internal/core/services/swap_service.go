package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/takas_swap_engine/internal/apperrors"
	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/takas_swap_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/takas_swap_engine/internal/core/ports/services"
	"github.com/SscSPs/takas_swap_engine/internal/dto"
	"github.com/SscSPs/takas_swap_engine/internal/metrics"
	"github.com/SscSPs/takas_swap_engine/internal/utils"
)

const codeDigits = 6

// SwapSettings are the tunables of the swap state machine.
type SwapSettings struct {
	Deposits          domain.DepositPolicy
	Risk              domain.RiskPolicy
	Fee               domain.FeePolicy
	DisputeWindow     domain.DisputeWindow
	CodeTTL           time.Duration
	MaxDeliveryPhotos int
	PlatformAccountID string
	SweepBatchSize    int
}

// DefaultSwapSettings returns production defaults.
func DefaultSwapSettings() SwapSettings {
	return SwapSettings{
		Deposits:          domain.DefaultDepositPolicy(),
		Risk:              domain.DefaultRiskPolicy(),
		Fee:               domain.FeePolicy{Percent: decimal.RequireFromString("0.05")},
		DisputeWindow:     domain.DisputeWindow{Duration: 72 * time.Hour},
		CodeTTL:           24 * time.Hour,
		MaxDeliveryPhotos: 5,
		PlatformAccountID: "platform",
		SweepBatchSize:    100,
	}
}

// swapService implements SwapSvcFacade
type swapService struct {
	BaseService
	settings    SwapSettings
	txManager   portsrepo.TransactionManager
	swapRepo    portsrepo.SwapRepositoryFacade
	accountRepo portsrepo.AccountRepositoryFacade
	escrowRepo  portsrepo.LedgerStore
	catalog     portsrepo.CatalogReader
	escrow      portssvc.EscrowManager
	eligibility portssvc.EligibilitySvc
	signer      *utils.QRSigner
	notifier    portssvc.Notifier
}

// SwapOption is a functional option for configuring the swap service
type SwapOption func(*swapService)

// WithNotifier sets the outbound notification queue.
func WithNotifier(n portssvc.Notifier) SwapOption {
	return func(s *swapService) {
		s.notifier = n
	}
}

// WithSwapClock replaces the wall clock.
func WithSwapClock(clock domain.Clock) SwapOption {
	return func(s *swapService) {
		s.Clock = clock
	}
}

// WithSwapMetrics attaches prometheus collectors.
func WithSwapMetrics(m *metrics.Collectors) SwapOption {
	return func(s *swapService) {
		s.Metrics = m
	}
}

// WithEligibility sets the guard consulted by CreateOffer.
func WithEligibility(svc portssvc.EligibilitySvc) SwapOption {
	return func(s *swapService) {
		s.eligibility = svc
	}
}

// NewSwapService creates the swap state machine.
func NewSwapService(repos portsrepo.RepositoryProvider, escrow portssvc.EscrowManager, signer *utils.QRSigner, settings SwapSettings, options ...SwapOption) portssvc.SwapSvcFacade {
	svc := &swapService{
		settings:    settings,
		txManager:   repos.TxManager,
		swapRepo:    repos.SwapRepo,
		accountRepo: repos.AccountRepo,
		escrowRepo:  repos.EscrowRepo,
		catalog:     repos.Catalog,
		escrow:      escrow,
		signer:      signer,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.SwapSvcFacade = (*swapService)(nil)

// outcome collects what a transition produced. A transition without events wrote nothing.
type outcome struct {
	events []domain.SwapEvent
	notes  []domain.Notification
}

func (o *outcome) event(t domain.SwapEventType, payload map[string]any) {
	o.events = append(o.events, domain.SwapEvent{Type: t, Payload: payload})
}

func (o *outcome) notify(n ...domain.Notification) {
	o.notes = append(o.notes, n...)
}

type transitionFunc func(ctx context.Context, tx pgx.Tx, swap *domain.SwapRequest, now time.Time, out *outcome) error

// transition locks the swap, applies fn and persists the result in one transaction.
// Notifications are enqueued only after commit.
func (s *swapService) transition(ctx context.Context, operation string, actor domain.Actor, swapID string, fn transitionFunc) (*domain.SwapRequest, error) {
	var (
		result *domain.SwapRequest
		notes  []domain.Notification
		prev   domain.SwapStatus
	)
	err := s.txManager.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		swap, err := s.swapRepo.FindSwapByIDForUpdate(ctx, tx, swapID)
		if err != nil {
			return err
		}
		prev = swap.Status
		now := s.Now()

		out := &outcome{}
		if err := fn(ctx, tx, swap, now, out); err != nil {
			return err
		}
		if len(out.events) > 0 {
			swap.LastUpdatedAt = now
			swap.LastUpdatedBy = actor.UserID
			if err := s.swapRepo.UpdateSwapInTx(ctx, tx, *swap); err != nil {
				return fmt.Errorf("failed to update swap %s: %w", swapID, err)
			}
			if err := s.swapRepo.AppendSwapEventsInTx(ctx, tx, stampEvents(out.events, swapID, actor.UserID, now)); err != nil {
				return fmt.Errorf("failed to append events of swap %s: %w", swapID, err)
			}
		}
		result = swap
		notes = out.notes
		return nil
	})
	if err != nil {
		s.LogFailure(ctx, operation, err, slog.String("swap_id", swapID), slog.String("actor_id", actor.UserID))
		return nil, err
	}

	if result.Status != prev {
		s.Metrics.Transition(string(result.Status))
		s.LogInfo(ctx, "Swap transitioned",
			slog.String("swap_id", swapID),
			slog.String("operation", operation),
			slog.String("from", string(prev)),
			slog.String("to", string(result.Status)))
	}
	s.notify(ctx, notes...)
	return result, nil
}

func stampEvents(events []domain.SwapEvent, swapID, actorID string, now time.Time) []domain.SwapEvent {
	for i := range events {
		events[i].EventID = uuid.NewString()
		events[i].SwapID = swapID
		events[i].ActorID = actorID
		events[i].CreatedAt = now
	}
	return events
}

// notify hands notifications to the queue. Failures are logged and never returned.
func (s *swapService) notify(ctx context.Context, notes ...domain.Notification) {
	if s.notifier == nil || len(notes) == 0 {
		return
	}
	if err := s.notifier.Enqueue(ctx, notes...); err != nil {
		s.LogError(ctx, err, "Failed to enqueue notifications", slog.Int("count", len(notes)))
	}
}

func requireParty(swap *domain.SwapRequest, actor domain.Actor) (domain.PartyRole, error) {
	role, ok := swap.RoleOf(actor.UserID)
	if !ok {
		return "", apperrors.New(apperrors.KindForbidden, "you are not a party to this swap")
	}
	return role, nil
}

func invalidState(swap *domain.SwapRequest, action string) *apperrors.AppError {
	return apperrors.Newf(apperrors.KindInvalidState, "cannot %s a swap in status %s", action, swap.Status).
		WithDetails(map[string]any{"status": swap.Status})
}

// --- Reads ---

func (s *swapService) GetSwap(ctx context.Context, actor domain.Actor, swapID string) (*domain.SwapRequest, error) {
	s.finalizeIfDue(ctx, swapID)

	swap, err := s.swapRepo.FindSwapByID(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && !swap.IsParty(actor.UserID) {
		return nil, apperrors.New(apperrors.KindForbidden, "you are not a party to this swap")
	}
	s.LogDebug(ctx, "Swap retrieved", slog.String("swap_id", swapID))
	return swap, nil
}

func (s *swapService) ListSwaps(ctx context.Context, actor domain.Actor, params dto.ListSwapsParams) (*dto.ListSwapsResponse, error) {
	filter := portsrepo.SwapListFilter{
		UserID:    actor.UserID,
		Limit:     params.Limit,
		NextToken: params.NextToken,
	}
	if params.Status != "" {
		st := domain.SwapStatus(params.Status)
		filter.Status = &st
	}
	swaps, next, err := s.swapRepo.ListSwapsByUser(ctx, filter)
	if err != nil {
		s.LogError(ctx, err, "Failed to list swaps", slog.String("user_id", actor.UserID))
		return nil, err
	}
	return &dto.ListSwapsResponse{Swaps: dto.ToListSwapResponse(swaps), NextToken: next}, nil
}

func (s *swapService) ListSwapEvents(ctx context.Context, actor domain.Actor, swapID string) ([]domain.SwapEvent, error) {
	swap, err := s.swapRepo.FindSwapByID(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && !swap.IsParty(actor.UserID) {
		return nil, apperrors.New(apperrors.KindForbidden, "you are not a party to this swap")
	}
	return s.swapRepo.ListSwapEvents(ctx, swapID)
}

// --- Lifecycle ---

func (s *swapService) CreateOffer(ctx context.Context, actor domain.Actor, req dto.CreateOfferRequest) (*domain.SwapRequest, error) {
	const operation = "create_offer"
	logger := s.GetLogger(ctx).With(slog.String("product_id", req.ProductID))

	product, err := s.catalog.FindProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if product.OwnerID == actor.UserID {
		return nil, apperrors.New(apperrors.KindValidation, "you cannot offer a swap on your own product")
	}
	if !product.IsAvailable() {
		return nil, apperrors.Newf(apperrors.KindInvalidState, "product %s is not available for swaps", product.ProductID)
	}

	var offered *domain.Product
	if req.OfferedProductID != nil {
		if *req.OfferedProductID == req.ProductID {
			return nil, apperrors.New(apperrors.KindValidation, "offered product must differ from the requested product")
		}
		offered, err = s.catalog.FindProductByID(ctx, *req.OfferedProductID)
		if err != nil {
			return nil, err
		}
		if offered.OwnerID != actor.UserID {
			return nil, apperrors.New(apperrors.KindForbidden, "you can only offer your own products")
		}
		if !offered.IsAvailable() {
			return nil, apperrors.Newf(apperrors.KindInvalidState, "product %s is not available for swaps", offered.ProductID)
		}
	}

	if s.eligibility != nil {
		verdict, err := s.eligibility.CheckEligibility(ctx, actor.UserID, dto.EligibilityQuery{
			ProductID:        req.ProductID,
			OfferedProductID: req.OfferedProductID,
			ProposedPrice:    req.ProposedPrice,
		})
		if err != nil {
			s.LogError(ctx, err, "Eligibility check errored", slog.String("user_id", actor.UserID))
			return nil, err
		}
		if !verdict.Allowed {
			details := map[string]any{"reason": verdict.Reason}
			for k, v := range verdict.Details {
				details[k] = v
			}
			err := apperrors.New(apperrors.KindForbidden, verdict.Message).WithDetails(details)
			s.LogFailure(ctx, operation, err, slog.String("user_id", actor.UserID))
			return nil, err
		}
	}

	now := s.Now()
	swap := domain.SwapRequest{
		SwapID:            uuid.NewString(),
		RequesterID:       actor.UserID,
		OwnerID:           product.OwnerID,
		ProductID:         product.ProductID,
		ProductValue:      product.ValorPrice,
		Category:          product.Category,
		OfferedProductID:  req.OfferedProductID,
		Status:            domain.StatusPending,
		EscrowStatus:      domain.EscrowNone,
		NegotiationStatus: domain.NegotiationNone,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     actor.UserID,
			LastUpdatedAt: now,
			LastUpdatedBy: actor.UserID,
		},
	}
	var offeredValue int64
	if offered != nil {
		offeredValue = offered.ValorPrice
		swap.OfferedProductValue = &offeredValue
	}
	swap.Legs = domain.NewLegs(&swap)
	swap.SpeculativeGain = domain.SpeculativeGain(product.ValorPrice, offeredValue, req.ProposedPrice)

	out := &outcome{}
	out.event(domain.EventOfferCreated, map[string]any{"productID": swap.ProductID, "dualSided": swap.IsDualSided(), "message": req.Message})
	if req.ProposedPrice != nil {
		if _, err := swap.ProposePrice(domain.RoleRequester, *req.ProposedPrice, now); err != nil {
			return nil, apperrors.New(apperrors.KindValidation, err.Error())
		}
		out.event(domain.EventPriceProposed, map[string]any{"role": domain.RoleRequester, "price": *req.ProposedPrice})
	}
	out.notify(domain.InApp(domain.NotifyOfferReceived, swap.OwnerID, swap.SwapID, map[string]any{
		"requesterID":   swap.RequesterID,
		"productID":     swap.ProductID,
		"proposedPrice": req.ProposedPrice,
		"message":       req.Message,
	}))

	err = s.txManager.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.swapRepo.SaveSwapInTx(ctx, tx, swap); err != nil {
			return fmt.Errorf("failed to save swap: %w", err)
		}
		return s.swapRepo.AppendSwapEventsInTx(ctx, tx, stampEvents(out.events, swap.SwapID, actor.UserID, now))
	})
	if err != nil {
		s.LogFailure(ctx, operation, err, slog.String("user_id", actor.UserID))
		return nil, err
	}

	s.Metrics.Transition(string(domain.StatusPending))
	logger.Info("Swap offer created", slog.String("swap_id", swap.SwapID), slog.Bool("dual_sided", swap.IsDualSided()))
	s.notify(ctx, out.notes...)
	return &swap, nil
}

func (s *swapService) ConfirmSwap(ctx context.Context, actor domain.Actor, swapID string) (*domain.SwapRequest, error) {
	return s.transition(ctx, "confirm", actor, swapID, func(ctx context.Context, tx pgx.Tx, swap *domain.SwapRequest, now time.Time, out *outcome) error {
		role, err := requireParty(swap, actor)
		if err != nil {
			return err
		}
		if role != domain.RoleOwner {
			return apperrors.New(apperrors.KindForbidden, "only the product owner can accept a swap")
		}
		switch {
		case swap.Status.IsPostAcceptance():
			return apperrors.New(apperrors.KindConflict, "swap has already been accepted").
				WithDetails(map[string]any{"status": swap.Status})
		case swap.Status != domain.StatusPending:
			return invalidState(swap, "accept")
		}
		price, ok := swap.AgreedPrice()
		if !ok {
			return apperrors.New(apperrors.KindInvalidState, "both parties must agree on a price before acceptance").
				WithDetails(map[string]any{"negotiationStatus": swap.NegotiationStatus})
		}

		// Trust tiers are read from the rows locked for the freeze below.
		accounts, err := s.accountRepo.FindAccountsByIDsForUpdate(ctx, tx, []string{swap.RequesterID, swap.OwnerID})
		if err != nil {
			return fmt.Errorf("failed to lock party accounts: %w", err)
		}
		requester, ok := accounts[swap.RequesterID]
		if !ok {
			return apperrors.Newf(apperrors.KindNotFound, "account %s not found", swap.RequesterID)
		}
		owner, ok := accounts[swap.OwnerID]
		if !ok {
			return apperrors.Newf(apperrors.KindNotFound, "account %s not found", swap.OwnerID)
		}

		deposits := s.settings.Deposits.Calculate(domain.DepositInput{
			RequesterTrust: requester.TrustLevel,
			OwnerTrust:     owner.TrustLevel,
			AgreedPrice:    price,
			OfferedValue:   swap.OfferedProductValue,
		})
		if _, err := s.escrow.FreezeInTx(ctx, tx, portssvc.FreezeRequest{
			UserID: swap.RequesterID,
			Amount: deposits.Requester,
			SwapID: swap.SwapID,
			Role:   domain.RoleRequester,
			Reason: "requester deposit on acceptance",
		}); err != nil {
			return err
		}
		if swap.IsDualSided() {
			if _, err := s.escrow.FreezeInTx(ctx, tx, portssvc.FreezeRequest{
				UserID: swap.OwnerID,
				Amount: deposits.Owner,
				SwapID: swap.SwapID,
				Role:   domain.RoleOwner,
				Reason: "owner deposit on acceptance",
			}); err != nil {
				return err
			}
		}

		for _, leg := range swap.Legs.All() {
			token, err := s.signer.Issue(swap.SwapID, leg.Side)
			if err != nil {
				return apperrors.NewAppError(0, "failed to issue QR token", err)
			}
			code, err := utils.GenerateNumericCode(codeDigits)
			if err != nil {
				return apperrors.NewAppError(0, "failed to generate verification code", err)
			}
			leg.QRToken = token
			leg.Code = code
		}

		swap.RequesterDeposit = deposits.Requester
		swap.OwnerDeposit = deposits.Owner
		swap.RiskTier, swap.AutoCompleteEligible = s.settings.Risk.Classify(price, swap.Category)
		swap.Status = domain.StatusAccepted
		swap.EscrowStatus = domain.EscrowLocked
		swap.AcceptedAt = &now

		out.event(domain.EventAccepted, map[string]any{
			"agreedPrice":      price,
			"requesterDeposit": deposits.Requester,
			"ownerDeposit":     deposits.Owner,
			"requesterRate":    deposits.RequesterRate.String(),
			"riskTier":         swap.RiskTier,
		})
		out.notify(domain.InApp(domain.NotifySwapAccepted, swap.RequesterID, swap.SwapID, map[string]any{
			"agreedPrice": price,
			"deposit":     deposits.Requester,
		}))
		return nil
	})
}

func (s *swapService) RejectSwap(ctx context.Context, actor domain.Actor, swapID string, req dto.CloseSwapRequest) (*domain.SwapRequest, error) {
	return s.transition(ctx, "reject", actor, swapID, func(ctx context.Context, tx pgx.Tx, swap *domain.SwapRequest, now time.Time, out *outcome) error {
		role, isParty := swap.RoleOf(actor.UserID)
		if !actor.IsAdmin && (!isParty || role != domain.RoleOwner) {
			return apperrors.New(apperrors.KindForbidden, "only the product owner or an administrator can reject a swap")
		}
		switch {
		case swap.Status == domain.StatusRejected:
			return nil
		case swap.Status == domain.StatusPending:
		case swap.Status.IsInFlight() && actor.IsAdmin:
		case swap.Status.IsInFlight():
			return apperrors.New(apperrors.KindInvalidState, "an accepted swap can only be rejected by an administrator")
		default:
			return invalidState(swap, "reject")
		}
		return s.closeSwap(ctx, tx, swap, domain.StatusRejected, req.Reason, actor, now, out)
	})
}

func (s *swapService) CancelSwap(ctx context.Context, actor domain.Actor, swapID string, req dto.CloseSwapRequest) (*domain.SwapRequest, error) {
	return s.transition(ctx, "cancel", actor, swapID, func(ctx context.Context, tx pgx.Tx, swap *domain.SwapRequest, now time.Time, out *outcome) error {
		role, isParty := swap.RoleOf(actor.UserID)
		if !isParty && !actor.IsAdmin {
			return apperrors.New(apperrors.KindForbidden, "you are not a party to this swap")
		}
		switch {
		case swap.Status == domain.StatusCancelled:
			return nil
		case actor.IsAdmin && (swap.Status == domain.StatusPending || swap.Status.IsInFlight()):
		case swap.Status == domain.StatusPending:
			if role != domain.RoleRequester {
				return apperrors.New(apperrors.KindForbidden, "the owner declines a pending offer by rejecting it")
			}
		case swap.Status == domain.StatusAccepted || swap.Status == domain.StatusQRGenerated:
			if swap.Legs.AnyScanned() {
				return apperrors.New(apperrors.KindInvalidState, "a swap cannot be cancelled once delivery has started")
			}
		default:
			return invalidState(swap, "cancel")
		}
		return s.closeSwap(ctx, tx, swap, domain.StatusCancelled, req.Reason, actor, now, out)
	})
}

// closeSwap moves a swap to a closed terminal status and returns every deposit.
func (s *swapService) closeSwap(ctx context.Context, tx pgx.Tx, swap *domain.SwapRequest, status domain.SwapStatus, reason string, actor domain.Actor, now time.Time, out *outcome) error {
	entries, err := s.escrow.ReleaseInTx(ctx, tx, swap.SwapID, fmt.Sprintf("swap %s", status))
	if err != nil {
		return err
	}
	swap.Status = status
	swap.EscrowStatus = domain.EscrowReleased
	swap.ClosedReason = reason

	eventType, kind := domain.EventRejected, domain.NotifySwapRejected
	if status == domain.StatusCancelled {
		eventType, kind = domain.EventCancelled, domain.NotifySwapCancelled
	}
	out.event(eventType, map[string]any{"reason": reason, "byAdmin": actor.IsAdmin})
	if len(entries) > 0 {
		out.event(domain.EventEscrowReleased, map[string]any{"entries": len(entries)})
	}
	for _, userID := range []string{swap.RequesterID, swap.OwnerID} {
		if userID == actor.UserID {
			continue
		}
		out.notify(domain.InApp(kind, userID, swap.SwapID, map[string]any{"reason": reason}))
	}
	return nil
}

func (s *swapService) CompleteSwap(ctx context.Context, actor domain.Actor, swapID string) (*domain.SwapRequest, error) {
	s.finalizeIfDue(ctx, swapID)

	return s.transition(ctx, "complete", actor, swapID, func(ctx context.Context, tx pgx.Tx, swap *domain.SwapRequest, now time.Time, out *outcome) error {
		role, isParty := swap.RoleOf(actor.UserID)
		if !actor.IsAdmin && (!isParty || role != domain.RoleRequester) {
			return apperrors.New(apperrors.KindForbidden, "only the requester or an administrator can complete a swap")
		}
		switch {
		case swap.Status == domain.StatusCompleted:
			return nil
		case swap.Status == domain.StatusDelivered:
		case swap.Status == domain.StatusDisputed && actor.IsAdmin:
		case swap.Status == domain.StatusDisputed:
			return apperrors.New(apperrors.KindInvalidState, "a disputed swap can only be completed by an administrator")
		default:
			return invalidState(swap, "complete")
		}
		return s.settleInTx(ctx, tx, swap, now, domain.EventCompleted, out)
	})
}

// settleInTx releases every deposit, pays the owner net of the platform fee and marks the swap completed.
func (s *swapService) settleInTx(ctx context.Context, tx pgx.Tx, swap *domain.SwapRequest, now time.Time, eventType domain.SwapEventType, out *outcome) error {
	released, err := s.escrow.ReleaseInTx(ctx, tx, swap.SwapID, "swap completed")
	if err != nil {
		return err
	}

	amount := swap.SettlementAmount()
	fee := s.settings.Fee.Fee(amount)
	if amount > 0 {
		if err := s.transferInTx(ctx, tx, swap, amount, fee, now); err != nil {
			return err
		}
	}

	swap.Status = domain.StatusCompleted
	swap.EscrowStatus = domain.EscrowReleased
	swap.CompletedAt = &now

	out.event(eventType, map[string]any{"amount": amount, "fee": fee})
	if len(released) > 0 {
		out.event(domain.EventEscrowReleased, map[string]any{"entries": len(released)})
	}
	for _, userID := range []string{swap.RequesterID, swap.OwnerID} {
		out.notify(domain.InApp(domain.NotifySwapCompleted, userID, swap.SwapID, map[string]any{"amount": amount}))
	}
	return nil
}

func (s *swapService) transferInTx(ctx context.Context, tx pgx.Tx, swap *domain.SwapRequest, amount, fee int64, now time.Time) error {
	ids := []string{swap.RequesterID, swap.OwnerID}
	if fee > 0 {
		ids = append(ids, s.settings.PlatformAccountID)
	}
	accounts, err := s.accountRepo.FindAccountsByIDsForUpdate(ctx, tx, ids)
	if err != nil {
		return fmt.Errorf("failed to lock settlement accounts: %w", err)
	}
	for _, id := range ids {
		if _, ok := accounts[id]; !ok {
			return apperrors.Newf(apperrors.KindNotFound, "account %s not found", id)
		}
	}

	payer := accounts[swap.RequesterID]
	payerBefore := payer.Available()
	if err := payer.Debit(amount); err != nil {
		return apperrors.Newf(apperrors.KindInsufficientFunds, "available balance %d is below the settlement amount %d", payerBefore, amount).
			WithDetails(map[string]any{"available": payerBefore, "required": amount})
	}
	accounts[swap.RequesterID] = payer

	entry := func(userID string, t domain.EntryType, amt, before, after int64, reason string) domain.LedgerEntry {
		return domain.LedgerEntry{
			EntryID:       uuid.NewString(),
			SwapRequestID: swap.SwapID,
			UserID:        userID,
			Type:          t,
			Amount:        amt,
			BalanceBefore: before,
			BalanceAfter:  after,
			Reason:        reason,
			CreatedAt:     now,
		}
	}
	entries := []domain.LedgerEntry{entry(swap.RequesterID, domain.EntryPayment, amount, payerBefore, payer.Available(), "swap settlement")}

	payee := accounts[swap.OwnerID]
	payeeBefore := payee.Available()
	payee.Credit(amount - fee)
	accounts[swap.OwnerID] = payee
	entries = append(entries, entry(swap.OwnerID, domain.EntryPayout, amount-fee, payeeBefore, payee.Available(), "swap settlement net of fee"))

	if fee > 0 {
		platform := accounts[s.settings.PlatformAccountID]
		platformBefore := platform.Available()
		platform.Credit(fee)
		accounts[s.settings.PlatformAccountID] = platform
		entries = append(entries, entry(s.settings.PlatformAccountID, domain.EntryFee, fee, platformBefore, platform.Available(), "platform fee"))
	}

	updated := make([]domain.Account, 0, len(ids))
	for _, id := range ids {
		updated = append(updated, accounts[id])
	}
	if err := s.accountRepo.UpdateAccountBalancesInTx(ctx, tx, updated, now); err != nil {
		return fmt.Errorf("failed to update settlement balances: %w", err)
	}
	if err := s.escrowRepo.AppendLedgerEntriesInTx(ctx, tx, entries); err != nil {
		return fmt.Errorf("failed to append settlement entries: %w", err)
	}
	for _, e := range entries {
		s.Metrics.LedgerValor(string(e.Type), e.Amount)
	}
	return nil
}

func (s *swapService) PreviewDeposit(ctx context.Context, actor domain.Actor, req dto.DepositPreviewRequest) (*dto.DepositPreviewResponse, error) {
	product, err := s.catalog.FindProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	account, err := s.accountRepo.FindAccountByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	// The requester secures the price, the owner secures the offered product.
	base := product.ValorPrice
	if req.Price != nil {
		base = *req.Price
	}
	if product.OwnerID == actor.UserID {
		base = 0
		if req.OfferedProductID != nil {
			offered, err := s.catalog.FindProductByID(ctx, *req.OfferedProductID)
			if err != nil {
				return nil, err
			}
			base = offered.ValorPrice
		}
	}

	deposit := s.settings.Deposits.DepositFor(account.TrustLevel, base)
	return &dto.DepositPreviewResponse{
		BaseValue:       base,
		TrustLevel:      account.TrustLevel,
		Rate:            s.settings.Deposits.RateFor(account.TrustLevel).String(),
		RequiredDeposit: deposit,
		Available:       account.Available(),
		CanAfford:       account.Available() >= deposit,
	}, nil
}
