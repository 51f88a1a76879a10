package pgsql

import (
	"github.com/jackc/pgx/v5/pgxpool"

	portsrepo "github.com/SscSPs/takas_swap_engine/internal/core/ports/repositories"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		TxManager:   &BaseRepository{Pool: dbPool},
		AccountRepo: newPgxAccountRepository(dbPool),
		EscrowRepo:  newPgxEscrowRepository(dbPool),
		SwapRepo:    newPgxSwapRepository(dbPool),
		Catalog:     newPgxCatalogRepository(dbPool),
	}
}
