package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

// SwapListFilter narrows a user's swap listing.
type SwapListFilter struct {
	UserID    string
	Status    *domain.SwapStatus
	Limit     int
	NextToken *string
}

// SwapReader defines read operations for swap requests.
type SwapReader interface {
	// FindSwapByID loads a swap and its legs without locking.
	FindSwapByID(ctx context.Context, swapID string) (*domain.SwapRequest, error)

	// ListSwapsByUser returns swaps where the user is requester or owner, newest first.
	ListSwapsByUser(ctx context.Context, filter SwapListFilter) ([]domain.SwapRequest, *string, error)

	// ListSwapsDueForFinalization returns ids of delivered, auto-completable swaps whose window closed before now.
	ListSwapsDueForFinalization(ctx context.Context, now time.Time, limit int) ([]string, error)

	// ListSwapEvents returns a swap's activity log oldest first.
	ListSwapEvents(ctx context.Context, swapID string) ([]domain.SwapEvent, error)
}

// SwapStatsReader supplies the eligibility guard.
type SwapStatsReader interface {
	// CountSwapsCreatedSince counts offers the user opened at or after since.
	CountSwapsCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)

	// EarlySwapGain returns how many swaps the user has requested and the speculative gain over the first limit of them.
	EarlySwapGain(ctx context.Context, userID string, limit int) (int, int64, error)
}

// SwapWriter defines transactional writes.
type SwapWriter interface {
	// SaveSwapInTx inserts a new swap and its legs.
	SaveSwapInTx(ctx context.Context, tx pgx.Tx, swap domain.SwapRequest) error

	// FindSwapByIDForUpdate loads a swap and locks its row until the transaction ends.
	FindSwapByIDForUpdate(ctx context.Context, tx pgx.Tx, swapID string) (*domain.SwapRequest, error)

	// UpdateSwapInTx writes the swap row and all of its legs.
	UpdateSwapInTx(ctx context.Context, tx pgx.Tx, swap domain.SwapRequest) error

	// AppendSwapEventsInTx appends activity events.
	AppendSwapEventsInTx(ctx context.Context, tx pgx.Tx, events []domain.SwapEvent) error
}

// SwapRepositoryFacade combines all swap-related repository interfaces
type SwapRepositoryFacade interface {
	SwapReader
	SwapStatsReader
	SwapWriter
}
