package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SscSPs/takas_swap_engine/internal/apperrors"
	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/takas_swap_engine/internal/core/ports/repositories"
	"github.com/SscSPs/takas_swap_engine/internal/models"
	"github.com/SscSPs/takas_swap_engine/internal/utils/pagination"
)

const swapColumns = `swap_id, requester_id, owner_id, product_id, product_value, category,
	offered_product_id, offered_product_value, status, escrow_status, requester_deposit, owner_deposit,
	negotiation_status, agreed_price_requester, agreed_price_owner, pending_valor_amount, price_agreed_at,
	risk_tier, auto_complete_eligible, accepted_at, delivered_at, dispute_window_ends_at, disputed_at,
	dispute_reason, completed_at, closed_reason, speculative_gain,
	created_at, created_by, last_updated_at, last_updated_by`

const legColumns = `swap_id, side, product_id, giver_id, receiver_id, qr_token, code, code_issued_at,
	qr_scanned_at, code_used_at, received_product, received_at, photos`

const eventColumns = `event_id, swap_id, actor_id, event_type, payload, created_at`

// PgxSwapRepository persists swap requests, their delivery legs and activity log.
type PgxSwapRepository struct {
	pool *pgxpool.Pool
}

func newPgxSwapRepository(pool *pgxpool.Pool) *PgxSwapRepository {
	return &PgxSwapRepository{pool: pool}
}

var _ portsrepo.SwapRepositoryFacade = (*PgxSwapRepository)(nil)

func toModelSwap(d domain.SwapRequest) models.SwapRequest {
	return models.SwapRequest{
		SwapID:               d.SwapID,
		RequesterID:          d.RequesterID,
		OwnerID:              d.OwnerID,
		ProductID:            d.ProductID,
		ProductValue:         d.ProductValue,
		Category:             d.Category,
		OfferedProductID:     d.OfferedProductID,
		OfferedProductValue:  d.OfferedProductValue,
		Status:               string(d.Status),
		EscrowStatus:         string(d.EscrowStatus),
		RequesterDeposit:     d.RequesterDeposit,
		OwnerDeposit:         d.OwnerDeposit,
		NegotiationStatus:    string(d.NegotiationStatus),
		AgreedPriceRequester: d.AgreedPriceRequester,
		AgreedPriceOwner:     d.AgreedPriceOwner,
		PendingValorAmount:   d.PendingValorAmount,
		PriceAgreedAt:        d.PriceAgreedAt,
		RiskTier:             string(d.RiskTier),
		AutoCompleteEligible: d.AutoCompleteEligible,
		AcceptedAt:           d.AcceptedAt,
		DeliveredAt:          d.DeliveredAt,
		DisputeWindowEndsAt:  d.DisputeWindowEndsAt,
		DisputedAt:           d.DisputedAt,
		DisputeReason:        d.DisputeReason,
		CompletedAt:          d.CompletedAt,
		ClosedReason:         d.ClosedReason,
		SpeculativeGain:      d.SpeculativeGain,
		AuditFields: models.AuditFields{
			CreatedAt:     d.CreatedAt,
			CreatedBy:     d.CreatedBy,
			LastUpdatedAt: d.LastUpdatedAt,
			LastUpdatedBy: d.LastUpdatedBy,
		},
	}
}

func toDomainSwap(m models.SwapRequest) domain.SwapRequest {
	return domain.SwapRequest{
		SwapID:               m.SwapID,
		RequesterID:          m.RequesterID,
		OwnerID:              m.OwnerID,
		ProductID:            m.ProductID,
		ProductValue:         m.ProductValue,
		Category:             m.Category,
		OfferedProductID:     m.OfferedProductID,
		OfferedProductValue:  m.OfferedProductValue,
		Status:               domain.SwapStatus(m.Status),
		EscrowStatus:         domain.EscrowStatus(m.EscrowStatus),
		RequesterDeposit:     m.RequesterDeposit,
		OwnerDeposit:         m.OwnerDeposit,
		NegotiationStatus:    domain.NegotiationStatus(m.NegotiationStatus),
		AgreedPriceRequester: m.AgreedPriceRequester,
		AgreedPriceOwner:     m.AgreedPriceOwner,
		PendingValorAmount:   m.PendingValorAmount,
		PriceAgreedAt:        m.PriceAgreedAt,
		RiskTier:             domain.RiskTier(m.RiskTier),
		AutoCompleteEligible: m.AutoCompleteEligible,
		AcceptedAt:           m.AcceptedAt,
		DeliveredAt:          m.DeliveredAt,
		DisputeWindowEndsAt:  m.DisputeWindowEndsAt,
		DisputedAt:           m.DisputedAt,
		DisputeReason:        m.DisputeReason,
		CompletedAt:          m.CompletedAt,
		ClosedReason:         m.ClosedReason,
		SpeculativeGain:      m.SpeculativeGain,
		AuditFields: domain.AuditFields{
			CreatedAt:     m.CreatedAt,
			CreatedBy:     m.CreatedBy,
			LastUpdatedAt: m.LastUpdatedAt,
			LastUpdatedBy: m.LastUpdatedBy,
		},
	}
}

func toModelLeg(swapID string, l *domain.LegState) models.SwapLeg {
	photos := l.Photos
	if photos == nil {
		photos = []string{}
	}
	return models.SwapLeg{
		SwapID:          swapID,
		Side:            string(l.Side),
		ProductID:       l.ProductID,
		GiverID:         l.GiverID,
		ReceiverID:      l.ReceiverID,
		QRToken:         l.QRToken,
		Code:            l.Code,
		CodeIssuedAt:    l.CodeIssuedAt,
		QRScannedAt:     l.QRScannedAt,
		CodeUsedAt:      l.CodeUsedAt,
		ReceivedProduct: l.ReceivedProduct,
		ReceivedAt:      l.ReceivedAt,
		Photos:          photos,
	}
}

func toDomainLeg(m models.SwapLeg) domain.LegState {
	return domain.LegState{
		Side:            domain.LegSide(m.Side),
		ProductID:       m.ProductID,
		GiverID:         m.GiverID,
		ReceiverID:      m.ReceiverID,
		QRToken:         m.QRToken,
		Code:            m.Code,
		CodeIssuedAt:    m.CodeIssuedAt,
		QRScannedAt:     m.QRScannedAt,
		CodeUsedAt:      m.CodeUsedAt,
		ReceivedProduct: m.ReceivedProduct,
		ReceivedAt:      m.ReceivedAt,
		Photos:          m.Photos,
	}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// FindSwapByID loads a swap and its legs without locking.
func (r *PgxSwapRepository) FindSwapByID(ctx context.Context, swapID string) (*domain.SwapRequest, error) {
	return r.findSwap(ctx, r.pool, swapID, false)
}

// FindSwapByIDForUpdate loads a swap and locks its row until the transaction ends.
func (r *PgxSwapRepository) FindSwapByIDForUpdate(ctx context.Context, tx pgx.Tx, swapID string) (*domain.SwapRequest, error) {
	return r.findSwap(ctx, tx, swapID, true)
}

func (r *PgxSwapRepository) findSwap(ctx context.Context, q querier, swapID string, lock bool) (*domain.SwapRequest, error) {
	query := `SELECT ` + swapColumns + ` FROM swap_requests WHERE swap_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, query, swapID)
	if err != nil {
		return nil, fmt.Errorf("failed to query swap %s: %w", swapID, err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.SwapRequest])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: swap %s", apperrors.ErrNotFound, swapID)
		}
		return nil, fmt.Errorf("failed to scan swap %s: %w", swapID, err)
	}

	swap := toDomainSwap(m)
	legs, err := r.loadLegs(ctx, q, []string{swapID})
	if err != nil {
		return nil, err
	}
	if err := attachLegs(&swap, legs[swapID]); err != nil {
		return nil, err
	}
	return &swap, nil
}

func (r *PgxSwapRepository) loadLegs(ctx context.Context, q querier, swapIDs []string) (map[string][]models.SwapLeg, error) {
	query := `SELECT ` + legColumns + ` FROM swap_legs WHERE swap_id = ANY($1) ORDER BY swap_id, side`
	rows, err := q.Query(ctx, query, swapIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query swap legs: %w", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.SwapLeg])
	if err != nil {
		return nil, fmt.Errorf("failed to scan swap legs: %w", err)
	}
	out := make(map[string][]models.SwapLeg, len(swapIDs))
	for _, l := range list {
		out[l.SwapID] = append(out[l.SwapID], l)
	}
	return out, nil
}

func attachLegs(swap *domain.SwapRequest, legs []models.SwapLeg) error {
	var haveA bool
	for _, m := range legs {
		leg := toDomainLeg(m)
		switch leg.Side {
		case domain.LegA:
			swap.Legs.A = leg
			haveA = true
		case domain.LegB:
			swap.Legs.B = &leg
		}
	}
	if !haveA {
		return apperrors.NewAppError(500, fmt.Sprintf("swap %s has no leg A", swap.SwapID), nil)
	}
	return nil
}

// ListSwapsByUser returns swaps where the user is requester or owner, newest first.
func (r *PgxSwapRepository) ListSwapsByUser(ctx context.Context, filter portsrepo.SwapListFilter) ([]domain.SwapRequest, *string, error) {
	args := []any{filter.UserID}
	query := `SELECT ` + swapColumns + ` FROM swap_requests WHERE (requester_id = $1 OR owner_id = $1)`
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.NextToken != nil && *filter.NextToken != "" {
		cursor, err := pagination.DecodeToken(*filter.NextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		args = append(args, cursor.CreatedAt, cursor.ID)
		query += fmt.Sprintf(` AND (created_at, swap_id) < ($%d, $%d)`, len(args)-1, len(args))
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC, swap_id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list swaps of %s: %w", filter.UserID, err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.SwapRequest])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan swaps: %w", err)
	}
	if len(list) == 0 {
		return []domain.SwapRequest{}, nil, nil
	}

	ids := make([]string, 0, len(list))
	for _, m := range list {
		ids = append(ids, m.SwapID)
	}
	legs, err := r.loadLegs(ctx, r.pool, ids)
	if err != nil {
		return nil, nil, err
	}

	swaps := make([]domain.SwapRequest, 0, len(list))
	for _, m := range list {
		swap := toDomainSwap(m)
		if err := attachLegs(&swap, legs[m.SwapID]); err != nil {
			return nil, nil, err
		}
		swaps = append(swaps, swap)
	}
	next := pagination.NextToken(swaps, filter.Limit, func(s domain.SwapRequest) (time.Time, string) {
		return s.CreatedAt, s.SwapID
	})
	return swaps, next, nil
}

// ListSwapsDueForFinalization returns ids of delivered, auto-completable swaps whose window closed before now.
func (r *PgxSwapRepository) ListSwapsDueForFinalization(ctx context.Context, now time.Time, limit int) ([]string, error) {
	query := `
		SELECT swap_id FROM swap_requests
		WHERE status = 'delivered' AND auto_complete_eligible AND dispute_window_ends_at <= $1
		ORDER BY dispute_window_ends_at
		LIMIT $2;
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list swaps due for finalization: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan swap ids: %w", err)
	}
	return ids, nil
}

// ListSwapEvents returns a swap's activity log oldest first.
func (r *PgxSwapRepository) ListSwapEvents(ctx context.Context, swapID string) ([]domain.SwapEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM swap_events WHERE swap_id = $1 ORDER BY created_at, event_id`
	rows, err := r.pool.Query(ctx, query, swapID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events of swap %s: %w", swapID, err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.SwapEvent])
	if err != nil {
		return nil, fmt.Errorf("failed to scan events of swap %s: %w", swapID, err)
	}
	events := make([]domain.SwapEvent, 0, len(list))
	for _, m := range list {
		events = append(events, domain.SwapEvent{
			EventID:   m.EventID,
			SwapID:    m.SwapID,
			ActorID:   m.ActorID,
			Type:      domain.SwapEventType(m.EventType),
			Payload:   m.Payload,
			CreatedAt: m.CreatedAt,
		})
	}
	return events, nil
}

// CountSwapsCreatedSince counts offers the user opened at or after since.
func (r *PgxSwapRepository) CountSwapsCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM swap_requests WHERE requester_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent swaps of %s: %w", userID, err)
	}
	return n, nil
}

// EarlySwapGain returns how many swaps the user has requested and the speculative gain over the first limit of them.
func (r *PgxSwapRepository) EarlySwapGain(ctx context.Context, userID string, limit int) (int, int64, error) {
	query := `
		SELECT
			(SELECT count(*) FROM swap_requests WHERE requester_id = $1),
			COALESCE((
				SELECT sum(speculative_gain) FROM (
					SELECT speculative_gain FROM swap_requests
					WHERE requester_id = $1
					ORDER BY created_at, swap_id
					LIMIT $2
				) early
			), 0)::BIGINT;
	`
	var (
		count int
		gain  int64
	)
	if err := r.pool.QueryRow(ctx, query, userID, limit).Scan(&count, &gain); err != nil {
		return 0, 0, fmt.Errorf("failed to sum early swap gain of %s: %w", userID, err)
	}
	return count, gain, nil
}

// SaveSwapInTx inserts a new swap and its legs.
func (r *PgxSwapRepository) SaveSwapInTx(ctx context.Context, tx pgx.Tx, swap domain.SwapRequest) error {
	m := toModelSwap(swap)
	query := `INSERT INTO swap_requests (` + swapColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31)`
	_, err := tx.Exec(ctx, query,
		m.SwapID, m.RequesterID, m.OwnerID, m.ProductID, m.ProductValue, m.Category,
		m.OfferedProductID, m.OfferedProductValue, m.Status, m.EscrowStatus, m.RequesterDeposit, m.OwnerDeposit,
		m.NegotiationStatus, m.AgreedPriceRequester, m.AgreedPriceOwner, m.PendingValorAmount, m.PriceAgreedAt,
		m.RiskTier, m.AutoCompleteEligible, m.AcceptedAt, m.DeliveredAt, m.DisputeWindowEndsAt, m.DisputedAt,
		m.DisputeReason, m.CompletedAt, m.ClosedReason, m.SpeculativeGain,
		m.CreatedAt, m.CreatedBy, m.LastUpdatedAt, m.LastUpdatedBy,
	)
	if err != nil {
		return translateWriteError(err, "save swap %s", swap.SwapID)
	}
	return r.upsertLegs(ctx, tx, swap)
}

// UpdateSwapInTx writes the swap row and all of its legs.
func (r *PgxSwapRepository) UpdateSwapInTx(ctx context.Context, tx pgx.Tx, swap domain.SwapRequest) error {
	m := toModelSwap(swap)
	query := `
		UPDATE swap_requests SET
			status = $2, escrow_status = $3, requester_deposit = $4, owner_deposit = $5,
			negotiation_status = $6, agreed_price_requester = $7, agreed_price_owner = $8,
			pending_valor_amount = $9, price_agreed_at = $10, risk_tier = $11, auto_complete_eligible = $12,
			accepted_at = $13, delivered_at = $14, dispute_window_ends_at = $15, disputed_at = $16,
			dispute_reason = $17, completed_at = $18, closed_reason = $19, speculative_gain = $20,
			last_updated_at = $21, last_updated_by = $22
		WHERE swap_id = $1;
	`
	tag, err := tx.Exec(ctx, query,
		m.SwapID, m.Status, m.EscrowStatus, m.RequesterDeposit, m.OwnerDeposit,
		m.NegotiationStatus, m.AgreedPriceRequester, m.AgreedPriceOwner,
		m.PendingValorAmount, m.PriceAgreedAt, m.RiskTier, m.AutoCompleteEligible,
		m.AcceptedAt, m.DeliveredAt, m.DisputeWindowEndsAt, m.DisputedAt,
		m.DisputeReason, m.CompletedAt, m.ClosedReason, m.SpeculativeGain,
		m.LastUpdatedAt, m.LastUpdatedBy,
	)
	if err != nil {
		return translateWriteError(err, "update swap %s", swap.SwapID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: swap %s", apperrors.ErrNotFound, swap.SwapID)
	}
	return r.upsertLegs(ctx, tx, swap)
}

func (r *PgxSwapRepository) upsertLegs(ctx context.Context, tx pgx.Tx, swap domain.SwapRequest) error {
	query := `
		INSERT INTO swap_legs (` + legColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (swap_id, side) DO UPDATE SET
			qr_token = EXCLUDED.qr_token, code = EXCLUDED.code, code_issued_at = EXCLUDED.code_issued_at,
			qr_scanned_at = EXCLUDED.qr_scanned_at, code_used_at = EXCLUDED.code_used_at,
			received_product = EXCLUDED.received_product, received_at = EXCLUDED.received_at,
			photos = EXCLUDED.photos;
	`
	legs := swap.Legs.All()
	batch := &pgx.Batch{}
	for _, leg := range legs {
		l := toModelLeg(swap.SwapID, leg)
		batch.Queue(query,
			l.SwapID, l.Side, l.ProductID, l.GiverID, l.ReceiverID, l.QRToken, l.Code, l.CodeIssuedAt,
			l.QRScannedAt, l.CodeUsedAt, l.ReceivedProduct, l.ReceivedAt, l.Photos,
		)
	}
	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	for _, leg := range legs {
		if _, err := results.Exec(); err != nil {
			return translateWriteError(err, "write leg %s of swap %s", leg.Side, swap.SwapID)
		}
	}
	return nil
}

// AppendSwapEventsInTx appends activity events.
func (r *PgxSwapRepository) AppendSwapEventsInTx(ctx context.Context, tx pgx.Tx, events []domain.SwapEvent) error {
	if len(events) == 0 {
		return nil
	}
	query := `INSERT INTO swap_events (` + eventColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	batch := &pgx.Batch{}
	for _, e := range events {
		payload := e.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		batch.Queue(query, e.EventID, e.SwapID, e.ActorID, string(e.Type), payload, e.CreatedAt)
	}
	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	for _, e := range events {
		if _, err := results.Exec(); err != nil {
			return translateWriteError(err, "append %s event to swap %s", e.Type, e.SwapID)
		}
	}
	return nil
}
