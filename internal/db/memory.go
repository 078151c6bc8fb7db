package credits

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	interf "github.com/glkeru/credits/internal/interfaces"
	model "github.com/glkeru/credits/internal/models"
	"github.com/google/uuid"
)

// Хранилище в памяти: локальный запуск и тесты.
// Списания по одному счету сериализуются замком счета
type MemoryDB struct {
	mu       sync.RWMutex
	accounts map[string]model.CreditAccount
	grants   map[string][]model.CreditGrant
	tnx      map[uuid.UUID]model.Transaction
	keys     map[string]uuid.UUID

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		accounts: make(map[string]model.CreditAccount),
		grants:   make(map[string][]model.CreditGrant),
		tnx:      make(map[uuid.UUID]model.Transaction),
		keys:     make(map[string]uuid.UUID),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (m *MemoryDB) accountLock(accountId string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[accountId]
	if !ok {
		l = &sync.Mutex{}
		m.locks[accountId] = l
	}
	return l
}

func (m *MemoryDB) AccountCreate(ctx context.Context, account model.CreditAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[account.ID]; ok {
		return fmt.Errorf("account %s already exists", account.ID)
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	m.accounts[account.ID] = account
	return nil
}

func (m *MemoryDB) GrantCreate(ctx context.Context, grant model.CreditGrant) (model.CreditGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[grant.AccountID]; !ok {
		return model.CreditGrant{}, fmt.Errorf("account %w", model.ErrNotFound)
	}
	if grant.ID == uuid.Nil {
		grant.ID = uuid.New()
	}
	m.grants[grant.AccountID] = append(m.grants[grant.AccountID], grant)
	return grant, nil
}

// Выключить счет
func (m *MemoryDB) AccountDeactivate(ctx context.Context, accountId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountId]
	if !ok {
		return fmt.Errorf("account %w", model.ErrNotFound)
	}
	account.Active = false
	m.accounts[accountId] = account
	return nil
}

func (m *MemoryDB) GetAccount(ctx context.Context, accountId string) (model.CreditAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[accountId]
	if !ok {
		return model.CreditAccount{}, fmt.Errorf("account %w", model.ErrNotFound)
	}
	return account, nil
}

func (m *MemoryDB) GetGrants(ctx context.Context, accountId string) ([]model.CreditGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyGrants(accountId), nil
}

func (m *MemoryDB) copyGrants(accountId string) []model.CreditGrant {
	grants := make([]model.CreditGrant, len(m.grants[accountId]))
	copy(grants, m.grants[accountId])
	return grants
}

func copyTnx(tnx model.Transaction) model.Transaction {
	takes := make([]model.GrantTake, len(tnx.GrantsTouched))
	copy(takes, tnx.GrantsTouched)
	tnx.GrantsTouched = takes
	return tnx
}

// применить измененные пакеты, вызывать под m.mu
func (m *MemoryDB) applyGrants(accountId string, updated []model.CreditGrant) {
	grants := m.grants[accountId]
	for _, u := range updated {
		for i := range grants {
			if grants[i].ID == u.ID {
				grants[i].Remaining = u.Remaining
			}
		}
	}
}

func (m *MemoryDB) Debit(ctx context.Context, accountId string, idempotencyKey string, fn interf.DebitFunc) (model.Transaction, error) {
	lock := m.accountLock(accountId)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return model.Transaction{}, err
	}

	m.mu.RLock()
	if id, ok := m.keys[idempotencyKey]; ok {
		tnx := copyTnx(m.tnx[id])
		m.mu.RUnlock()
		return tnx, nil
	}
	account, ok := m.accounts[accountId]
	grants := m.copyGrants(accountId)
	m.mu.RUnlock()

	if !ok {
		return model.Transaction{}, fmt.Errorf("account %s: %w", accountId, model.ErrInvalidAccount)
	}
	if !account.Active {
		return model.Transaction{}, fmt.Errorf("account %s is inactive: %w", accountId, model.ErrInvalidAccount)
	}

	updated, tnx, err := fn(grants)
	if err != nil {
		return model.Transaction{}, err
	}
	tnx.IdempotencyKey = idempotencyKey

	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyGrants(accountId, updated)
	m.tnx[tnx.ID] = copyTnx(tnx)
	m.keys[idempotencyKey] = tnx.ID
	return tnx, nil
}

func (m *MemoryDB) Refund(ctx context.Context, tnxId uuid.UUID, fn interf.RefundFunc) (model.Transaction, error) {
	m.mu.RLock()
	current, ok := m.tnx[tnxId]
	m.mu.RUnlock()
	if !ok {
		return model.Transaction{}, fmt.Errorf("transaction %w", model.ErrNotFound)
	}

	lock := m.accountLock(current.AccountID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	current = copyTnx(m.tnx[tnxId])
	touched := make(map[uuid.UUID]bool, len(current.GrantsTouched))
	for _, take := range current.GrantsTouched {
		touched[take.GrantID] = true
	}
	var grants []model.CreditGrant
	for _, g := range m.grants[current.AccountID] {
		if touched[g.ID] {
			grants = append(grants, g)
		}
	}
	m.mu.RUnlock()

	reversed, updated, err := fn(current, grants)
	if err != nil {
		return model.Transaction{}, err
	}
	if reversed.Status == current.Status {
		return current, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyGrants(current.AccountID, updated)
	m.tnx[tnxId] = copyTnx(reversed)
	return reversed, nil
}

func (m *MemoryDB) GetTnx(ctx context.Context, accountId string, from time.Time, to time.Time) ([]model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var tnxs []model.Transaction
	for _, tnx := range m.tnx {
		if tnx.AccountID != accountId || tnx.CreatedAt.Before(from) || tnx.CreatedAt.After(to) {
			continue
		}
		tnxs = append(tnxs, copyTnx(tnx))
	}
	sort.Slice(tnxs, func(i, j int) bool {
		return tnxs[i].CreatedAt.Before(tnxs[j].CreatedAt)
	})
	return tnxs, nil
}

func (m *MemoryDB) GetTnxByID(ctx context.Context, tnxId uuid.UUID) (model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tnx, ok := m.tnx[tnxId]
	if !ok {
		return model.Transaction{}, fmt.Errorf("transaction %w", model.ErrNotFound)
	}
	return copyTnx(tnx), nil
}

func (m *MemoryDB) ExpireOnDate(ctx context.Context, date time.Time) ([]string, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)

	var accounts []string
	for _, id := range ids {
		lock := m.accountLock(id)
		lock.Lock()
		m.mu.Lock()
		expired := false
		for i, g := range m.grants[id] {
			if g.Active && !g.ExpiresAt.After(date) {
				m.grants[id][i].Active = false
				expired = true
			}
		}
		m.mu.Unlock()
		lock.Unlock()
		if expired {
			accounts = append(accounts, id)
		}
	}
	return accounts, nil
}
