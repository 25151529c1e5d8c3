// Package memory is an in-memory storage backend. It gives the engine the
// same contract as MySQL: per-user exclusive locks held for the whole atomic
// unit, and all-or-nothing commits.
package memory

import (
	"context"
	"sync"

	"github.com/dartanool/user-balance-api/internal/models"
	"github.com/dartanool/user-balance-api/internal/storage"
)

type Store struct {
	locks sync.Map // userID -> *sync.Mutex, one row lock per user

	mu       sync.Mutex // protects balances and log
	balances map[int64]models.Balance
	log      []models.Transaction
	nextID   int64
}

func NewStore() *Store {
	return &Store{
		balances: make(map[int64]models.Balance),
	}
}

func (s *Store) rowLock(userID int64) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx := &memTx{
		store:   s,
		held:    make(map[int64]*sync.Mutex),
		pending: make(map[int64]models.Balance),
	}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *Store) Balance(ctx context.Context, userID int64) (models.Balance, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, found := s.balances[userID]
	return balance, found, nil
}

func (s *Store) TransactionsByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Transaction
	for i := len(s.log) - 1; i >= 0; i-- {
		if s.log[i].UserID == userID {
			matched = append(matched, s.log[i])
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// memTx buffers writes until commit. Row locks taken by LockBalance stay
// held until release, so no other unit can touch the same users meanwhile.
type memTx struct {
	store      *Store
	held       map[int64]*sync.Mutex
	lockOrder  []int64
	pending    map[int64]models.Balance
	pendingLog []models.Transaction
}

func (t *memTx) LockBalance(ctx context.Context, userID int64) (models.Balance, bool, error) {
	if _, ok := t.held[userID]; !ok {
		mu := t.store.rowLock(userID)
		mu.Lock()
		t.held[userID] = mu
		t.lockOrder = append(t.lockOrder, userID)
	}

	if balance, ok := t.pending[userID]; ok {
		return balance, true, nil
	}
	return t.store.Balance(ctx, userID)
}

func (t *memTx) SaveBalance(ctx context.Context, balance models.Balance) error {
	t.pending[balance.UserID] = balance
	return nil
}

func (t *memTx) AppendTransaction(ctx context.Context, tran models.Transaction) error {
	t.pendingLog = append(t.pendingLog, tran)
	return nil
}

func (t *memTx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for userID, balance := range t.pending {
		t.store.balances[userID] = balance
	}
	for _, tran := range t.pendingLog {
		t.store.nextID++
		tran.ID = t.store.nextID
		t.store.log = append(t.store.log, tran)
	}
	t.pending = nil
	t.pendingLog = nil
}

func (t *memTx) release() {
	for i := len(t.lockOrder) - 1; i >= 0; i-- {
		t.held[t.lockOrder[i]].Unlock()
	}
	t.held = nil
	t.lockOrder = nil
}

var _ storage.Store = (*Store)(nil)
