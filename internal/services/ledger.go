package credits

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"time"

	interf "github.com/glkeru/credits/internal/interfaces"
	model "github.com/glkeru/credits/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// алфавит Crockford base32, без I L O U
const codeAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
const codeLength = 10

type CreditLedger struct {
	logger *zap.Logger
	db     interf.LedgerStorage
	cache  interf.CacheStorage
	now    func() time.Time
}

func NewCreditLedger(logger *zap.Logger, db interf.LedgerStorage, cache interf.CacheStorage) *CreditLedger {
	return &CreditLedger{logger, db, cache, time.Now}
}

// Код транзакции для клиента
func NewTnxCode() (string, error) {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}

// Порядок списания: сначала сгорающие раньше
func sortFIFO(grants []model.CreditGrant) {
	sort.SliceStable(grants, func(i, j int) bool {
		a, b := grants[i], grants[j]
		if !a.ExpiresAt.Equal(b.ExpiresAt) {
			return a.ExpiresAt.Before(b.ExpiresAt)
		}
		if !a.ActivatedAt.Equal(b.ActivatedAt) {
			return a.ActivatedAt.Before(b.ActivatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

// План списания amount кредитов. Либо полностью, либо ошибка без изменений
func PlanDebit(grants []model.CreditGrant, amount int64, now time.Time) ([]model.GrantTake, error) {
	if amount <= 0 {
		return nil, model.ErrInvalidAmount
	}
	eligible := make([]model.CreditGrant, 0, len(grants))
	for _, g := range grants {
		if g.Eligible(now) {
			eligible = append(eligible, g)
		}
	}
	sortFIFO(eligible)

	left := amount
	var takes []model.GrantTake
	for _, g := range eligible {
		if left == 0 {
			break
		}
		take := min(left, g.Remaining)
		takes = append(takes, model.GrantTake{GrantID: g.ID, Amount: take})
		left -= take
	}
	if left > 0 {
		return nil, &model.InsufficientError{Balance: model.AvailableBalance(grants, now), Requested: amount}
	}
	return takes, nil
}

// Применить план к пакетам, вернуть только измененные
func applyTakes(grants []model.CreditGrant, takes []model.GrantTake) (all []model.CreditGrant, updated []model.CreditGrant) {
	byId := make(map[uuid.UUID]int64, len(takes))
	for _, t := range takes {
		byId[t.GrantID] += t.Amount
	}
	all = make([]model.CreditGrant, len(grants))
	copy(all, grants)
	for i := range all {
		if amount, ok := byId[all[i].ID]; ok {
			all[i].Remaining -= amount
			updated = append(updated, all[i])
		}
	}
	return all, updated
}

// Вернуть списанное на те же пакеты, не выше TotalCredits.
// Сгоревший пакет получает кредиты обратно, но тратить их после срока нельзя
func ApplyRefund(tnx model.Transaction, grants []model.CreditGrant) []model.CreditGrant {
	byId := make(map[uuid.UUID]int64, len(tnx.GrantsTouched))
	for _, t := range tnx.GrantsTouched {
		byId[t.GrantID] += t.Amount
	}
	var updated []model.CreditGrant
	for _, g := range grants {
		amount, ok := byId[g.ID]
		if !ok {
			continue
		}
		g.Remaining = min(g.Remaining+amount, g.TotalCredits)
		updated = append(updated, g)
	}
	return updated
}

type DebitRequest struct {
	Key            string // ключ идемпотентности (nonce)
	CounterpartyID string
}

// Списание со счета. Повтор с тем же ключом возвращает уже созданную транзакцию
func (l *CreditLedger) Debit(ctx context.Context, accountId string, amount int64, req DebitRequest) (tnx model.Transaction, balance int64, err error) {
	if amount <= 0 {
		return model.Transaction{}, 0, model.ErrInvalidAmount
	}
	if req.Key == "" {
		return model.Transaction{}, 0, fmt.Errorf("idempotency key is required")
	}

	calculated := false
	tnx, err = l.db.Debit(ctx, accountId, req.Key, func(grants []model.CreditGrant) ([]model.CreditGrant, model.Transaction, error) {
		now := l.now().UTC()
		takes, err := PlanDebit(grants, amount, now)
		if err != nil {
			return nil, model.Transaction{}, err
		}
		all, updated := applyTakes(grants, takes)
		code, err := NewTnxCode()
		if err != nil {
			return nil, model.Transaction{}, err
		}
		balance = model.AvailableBalance(all, now)
		calculated = true
		return updated, model.Transaction{
			ID:             uuid.New(),
			Code:           code,
			AccountID:      accountId,
			CounterpartyID: req.CounterpartyID,
			CreditsDebited: amount,
			GrantsTouched:  takes,
			CreatedAt:      now,
			Status:         model.COMMITTED,
		}, nil
	})
	if err != nil {
		return model.Transaction{}, 0, err
	}

	l.invalidate(ctx, accountId)
	if !calculated {
		// повтор: транзакция уже была
		balance, err = l.balanceFromDB(ctx, accountId)
		if err != nil {
			l.logger.Warn("balance after replayed debit", zap.String("account", accountId), zap.Error(err))
		}
	}
	return tnx, balance, nil
}

// Сторно. Повторный вызов ничего не меняет
func (l *CreditLedger) Refund(ctx context.Context, tnxId uuid.UUID) (tnx model.Transaction, changed bool, err error) {
	tnx, err = l.db.Refund(ctx, tnxId, func(current model.Transaction, grants []model.CreditGrant) (model.Transaction, []model.CreditGrant, error) {
		if current.Status == model.REVERSED {
			return current, nil, nil
		}
		updated := ApplyRefund(current, grants)
		now := l.now().UTC()
		current.Status = model.REVERSED
		current.ReversedAt = &now
		changed = true
		return current, updated, nil
	})
	if err != nil {
		return model.Transaction{}, false, err
	}
	if changed {
		l.invalidate(ctx, tnx.AccountID)
	}
	return tnx, changed, nil
}

func (l *CreditLedger) balanceFromDB(ctx context.Context, accountId string) (int64, error) {
	grants, err := l.db.GetGrants(ctx, accountId)
	if err != nil {
		return 0, err
	}
	return model.AvailableBalance(grants, l.now()), nil
}

// Баланс: кэш, затем база
func (l *CreditLedger) Balance(ctx context.Context, accountId string) (credits int64, err error) {
	// версия читается до пакетов: списание между ними не даст записать старый баланс
	version := int64(-1)
	if l.cache != nil {
		credits, err = l.cache.GetBalance(ctx, accountId)
		if err == nil {
			return credits, nil
		}
		if v, verr := l.cache.BalanceVersion(ctx, accountId); verr == nil {
			version = v
		}
	}
	_, err = l.db.GetAccount(ctx, accountId)
	if err != nil {
		return 0, err
	}
	credits, err = l.balanceFromDB(ctx, accountId)
	if err != nil {
		return 0, err
	}
	if version >= 0 {
		_ = l.cache.SetBalance(ctx, accountId, credits, version)
	}
	return credits, nil
}

// Транзакции счета за период
func (l *CreditLedger) Transactions(ctx context.Context, accountId string, from time.Time, to time.Time) ([]model.Transaction, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid period: %s > %s", from, to)
	}
	return l.db.GetTnx(ctx, accountId, from, to)
}

// Одна транзакция по ID (чек клиники)
func (l *CreditLedger) Transaction(ctx context.Context, tnxId uuid.UUID) (model.Transaction, error) {
	return l.db.GetTnxByID(ctx, tnxId)
}

// Выключение сгоревших пакетов
func (l *CreditLedger) ExpireGrants(ctx context.Context) ([]string, error) {
	accounts, err := l.db.ExpireOnDate(ctx, l.now().UTC())
	if err != nil {
		return nil, err
	}
	for _, account := range accounts {
		l.invalidate(ctx, account)
	}
	return accounts, nil
}

// Сбросить кеш баланса после изменения пакетов вне леджера
func (l *CreditLedger) Forget(ctx context.Context, accountId string) {
	l.invalidate(ctx, accountId)
}

func (l *CreditLedger) invalidate(ctx context.Context, accountId string) {
	if l.cache == nil {
		return
	}
	err := l.cache.InvalidateBalance(ctx, accountId)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		l.logger.Error(err.Error(), zap.String("account", accountId))
	}
}
