package services_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/SscSPs/takas_swap_engine/internal/apperrors"
	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/takas_swap_engine/internal/core/ports/repositories"
	"github.com/SscSPs/takas_swap_engine/internal/utils/pagination"
)

// memStore is an in-memory stand-in for every repository. RunInTx snapshots the whole
// state and restores it when the unit of work fails, so a refused transition leaves
// nothing behind.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	accounts map[string]domain.Account
	holds    []domain.EscrowHold
	ledger   []domain.LedgerEntry
	swaps    map[string]domain.SwapRequest
	events   []domain.SwapEvent
	products map[string]domain.Product

	// failOn makes the named method fail once.
	failOn map[string]error
}

type memSnapshot struct {
	accounts map[string]domain.Account
	holds    []domain.EscrowHold
	ledger   []domain.LedgerEntry
	swaps    map[string]domain.SwapRequest
	events   []domain.SwapEvent
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[string]domain.Account{},
		swaps:    map[string]domain.SwapRequest{},
		products: map[string]domain.Product{},
		failOn:   map[string]error{},
	}
}

var (
	_ portsrepo.TransactionManager      = (*memStore)(nil)
	_ portsrepo.AccountRepositoryFacade = (*memStore)(nil)
	_ portsrepo.EscrowRepositoryFacade  = (*memStore)(nil)
	_ portsrepo.SwapRepositoryFacade    = (*memStore)(nil)
	_ portsrepo.CatalogReader           = (*memStore)(nil)
)

func (m *memStore) provider() portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		TxManager:   m,
		AccountRepo: m,
		EscrowRepo:  m,
		SwapRepo:    m,
		Catalog:     m,
	}
}

func (m *memStore) injectFailure(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[method] = err
}

func (m *memStore) failure(method string) error {
	if err, ok := m.failOn[method]; ok {
		delete(m.failOn, method)
		return err
	}
	return nil
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := memSnapshot{
		accounts: make(map[string]domain.Account, len(m.accounts)),
		holds:    append([]domain.EscrowHold(nil), m.holds...),
		ledger:   append([]domain.LedgerEntry(nil), m.ledger...),
		swaps:    make(map[string]domain.SwapRequest, len(m.swaps)),
		events:   append([]domain.SwapEvent(nil), m.events...),
	}
	for k, v := range m.accounts {
		s.accounts[k] = v
	}
	for k, v := range m.swaps {
		s.swaps[k] = v.Clone()
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = s.accounts
	m.holds = s.holds
	m.ledger = s.ledger
	m.swaps = s.swaps
	m.events = s.events
}

// --- TransactionManager ---

func (m *memStore) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *memStore) Commit(ctx context.Context, tx pgx.Tx) error { return nil }
func (m *memStore) Rollback(ctx context.Context, tx pgx.Tx) error { return nil }

func (m *memStore) RunInTx(ctx context.Context, fn portsrepo.TxFunc) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(ctx, nil); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// --- Accounts ---

func (m *memStore) FindAccountByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("%w: account for user %s", apperrors.ErrNotFound, userID)
	}
	return &a, nil
}

func (m *memStore) FindAccountsByIDsForUpdate(ctx context.Context, tx pgx.Tx, userIDs []string) (map[string]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("FindAccountsByIDsForUpdate"); err != nil {
		return nil, err
	}
	out := make(map[string]domain.Account, len(userIDs))
	for _, id := range userIDs {
		if a, ok := m.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (m *memStore) UpdateAccountBalancesInTx(ctx context.Context, tx pgx.Tx, accounts []domain.Account, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("UpdateAccountBalancesInTx"); err != nil {
		return err
	}
	for _, a := range accounts {
		if err := a.Validate(); err != nil {
			return err
		}
		a.LastUpdatedAt = now
		m.accounts[a.UserID] = a
	}
	return nil
}

// --- Escrow and ledger ---

func (m *memStore) SaveHoldInTx(ctx context.Context, tx pgx.Tx, hold domain.EscrowHold) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.holds {
		if h.SwapID == hold.SwapID && h.Role == hold.Role {
			return fmt.Errorf("%w: hold of swap %s for %s", apperrors.ErrDuplicate, hold.SwapID, hold.Role)
		}
	}
	m.holds = append(m.holds, hold)
	return nil
}

func (m *memStore) FindHoldsBySwapForUpdate(ctx context.Context, tx pgx.Tx, swapID string) ([]domain.EscrowHold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EscrowHold
	for _, h := range m.holds {
		if h.SwapID == swapID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memStore) UpdateHoldStatusInTx(ctx context.Context, tx pgx.Tx, holdID string, status domain.HoldStatus, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.holds {
		if m.holds[i].HoldID == holdID && m.holds[i].Status == domain.HoldHeld {
			m.holds[i].Status = status
			at := now
			m.holds[i].ReleasedAt = &at
			return nil
		}
	}
	return fmt.Errorf("%w: held escrow hold %s", apperrors.ErrNotFound, holdID)
}

func (m *memStore) AppendLedgerEntriesInTx(ctx context.Context, tx pgx.Tx, entries []domain.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("AppendLedgerEntriesInTx"); err != nil {
		return err
	}
	m.ledger = append(m.ledger, entries...)
	return nil
}

func (m *memStore) ListLedgerEntriesByUser(ctx context.Context, userID string, limit int, nextToken *string) ([]domain.LedgerEntry, *string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cursor *pagination.Cursor
	if nextToken != nil && *nextToken != "" {
		c, err := pagination.DecodeToken(*nextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		cursor = &c
	}

	var mine []domain.LedgerEntry
	for i := len(m.ledger) - 1; i >= 0; i-- {
		e := m.ledger[i]
		if e.UserID == userID {
			mine = append(mine, e)
		}
	}
	sort.SliceStable(mine, func(i, j int) bool {
		if !mine[i].CreatedAt.Equal(mine[j].CreatedAt) {
			return mine[i].CreatedAt.After(mine[j].CreatedAt)
		}
		return mine[i].EntryID > mine[j].EntryID
	})

	out := []domain.LedgerEntry{}
	for _, e := range mine {
		if cursor != nil {
			older := e.CreatedAt.Before(cursor.CreatedAt) || (e.CreatedAt.Equal(cursor.CreatedAt) && e.EntryID < cursor.ID)
			if !older {
				continue
			}
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	next := pagination.NextToken(out, limit, func(e domain.LedgerEntry) (time.Time, string) {
		return e.CreatedAt, e.EntryID
	})
	return out, next, nil
}

func (m *memStore) ListLedgerEntriesBySwap(ctx context.Context, swapID string) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range m.ledger {
		if e.SwapRequestID == swapID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- Swaps ---

func (m *memStore) FindSwapByID(ctx context.Context, swapID string) (*domain.SwapRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.swaps[swapID]
	if !ok {
		return nil, fmt.Errorf("%w: swap %s", apperrors.ErrNotFound, swapID)
	}
	c := s.Clone()
	return &c, nil
}

func (m *memStore) FindSwapByIDForUpdate(ctx context.Context, tx pgx.Tx, swapID string) (*domain.SwapRequest, error) {
	return m.FindSwapByID(ctx, swapID)
}

func (m *memStore) ListSwapsByUser(ctx context.Context, filter portsrepo.SwapListFilter) ([]domain.SwapRequest, *string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SwapRequest
	for _, s := range m.swaps {
		if s.RequesterID != filter.UserID && s.OwnerID != filter.UserID {
			continue
		}
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].SwapID > out[j].SwapID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	next := pagination.NextToken(out, filter.Limit, func(s domain.SwapRequest) (time.Time, string) {
		return s.CreatedAt, s.SwapID
	})
	return out, next, nil
}

func (m *memStore) ListSwapsDueForFinalization(ctx context.Context, now time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ListSwapsDueForFinalization"); err != nil {
		return nil, err
	}
	var ids []string
	for id, s := range m.swaps {
		if s.DueForFinalization(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *memStore) ListSwapEvents(ctx context.Context, swapID string) ([]domain.SwapEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SwapEvent
	for _, e := range m.events {
		if e.SwapID == swapID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) CountSwapsCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.swaps {
		if s.RequesterID == userID && !s.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) EarlySwapGain(ctx context.Context, userID string, limit int) (int, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var mine []domain.SwapRequest
	for _, s := range m.swaps {
		if s.RequesterID == userID {
			mine = append(mine, s)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].CreatedAt.Before(mine[j].CreatedAt) })
	var gain int64
	for i, s := range mine {
		if i >= limit {
			break
		}
		gain += s.SpeculativeGain
	}
	return len(mine), gain, nil
}

func (m *memStore) SaveSwapInTx(ctx context.Context, tx pgx.Tx, swap domain.SwapRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.swaps[swap.SwapID]; ok {
		return fmt.Errorf("%w: swap %s", apperrors.ErrDuplicate, swap.SwapID)
	}
	m.swaps[swap.SwapID] = swap.Clone()
	return nil
}

func (m *memStore) UpdateSwapInTx(ctx context.Context, tx pgx.Tx, swap domain.SwapRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("UpdateSwapInTx"); err != nil {
		return err
	}
	if _, ok := m.swaps[swap.SwapID]; !ok {
		return fmt.Errorf("%w: swap %s", apperrors.ErrNotFound, swap.SwapID)
	}
	m.swaps[swap.SwapID] = swap.Clone()
	return nil
}

func (m *memStore) AppendSwapEventsInTx(ctx context.Context, tx pgx.Tx, events []domain.SwapEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("AppendSwapEventsInTx"); err != nil {
		return err
	}
	m.events = append(m.events, events...)
	return nil
}

// --- Catalog ---

func (m *memStore) FindProductByID(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", apperrors.ErrNotFound, productID)
	}
	return &p, nil
}

func (m *memStore) CountActiveListings(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.products {
		if p.OwnerID == userID && p.Status == domain.ProductActive {
			n++
		}
	}
	return n, nil
}

// --- Seeding and inspection helpers ---

func (m *memStore) seedAccount(userID string, balance int64, trust domain.TrustLevel, createdAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[userID] = domain.Account{
		UserID:       userID,
		ValorBalance: balance,
		TrustLevel:   trust,
		AuditFields:  domain.AuditFields{CreatedAt: createdAt, CreatedBy: "seed", LastUpdatedAt: createdAt, LastUpdatedBy: "seed"},
	}
}

func (m *memStore) putAccount(a domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.UserID] = a
}

func (m *memStore) seedProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ProductID] = p
}

func (m *memStore) account(userID string) domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[userID]
}

func (m *memStore) swap(swapID string) domain.SwapRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.swaps[swapID].Clone()
}

func (m *memStore) putSwap(s domain.SwapRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swaps[s.SwapID] = s.Clone()
}

func (m *memStore) ledgerOf(userID string) []domain.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range m.ledger {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (m *memStore) ledgerLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ledger)
}

func (m *memStore) eventTypes(swapID string) []domain.SwapEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SwapEventType
	for _, e := range m.events {
		if e.SwapID == swapID {
			out = append(out, e.Type)
		}
	}
	return out
}

func (m *memStore) holdsOf(swapID string) []domain.EscrowHold {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EscrowHold
	for _, h := range m.holds {
		if h.SwapID == swapID {
			out = append(out, h)
		}
	}
	return out
}

// fakeNotifier records what the services enqueue.
type fakeNotifier struct {
	mu    sync.Mutex
	notes []domain.Notification
	err   error
}

func (n *fakeNotifier) Enqueue(ctx context.Context, notes ...domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.notes = append(n.notes, notes...)
	return nil
}

func (n *fakeNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = nil
}

func (n *fakeNotifier) ofKind(kind domain.NotificationKind) []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Notification
	for _, note := range n.notes {
		if note.Kind == kind {
			out = append(out, note)
		}
	}
	return out
}

// lastCode returns the most recent verification code sent for a leg.
func (n *fakeNotifier) lastCode(swapID string, side domain.LegSide) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.notes) - 1; i >= 0; i-- {
		note := n.notes[i]
		if note.Kind == domain.NotifyVerificationCode && note.SwapID == swapID && note.Payload["side"] == string(side) {
			code, _ := note.Payload["code"].(string)
			return code
		}
	}
	return ""
}

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
