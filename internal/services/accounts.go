package credits

import (
	"context"
	"time"

	interf "github.com/glkeru/credits/internal/interfaces"
	model "github.com/glkeru/credits/internal/models"
	lru "github.com/hashicorp/golang-lru/v2"
)

type accountEntry struct {
	account  model.CreditAccount
	storedAt time.Time
}

// Загрузка счетов с коротким LRU-кэшем.
// Кэшируются только счета, результаты погашения nonce - никогда
type AccountLoader struct {
	db    interf.AccountStorage
	cache *lru.Cache[string, accountEntry]
	ttl   time.Duration
	now   func() time.Time
}

// size <= 0 или ttl <= 0 - без кэша
func NewAccountLoader(db interf.AccountStorage, size int, ttl time.Duration) *AccountLoader {
	loader := &AccountLoader{db: db, ttl: ttl, now: time.Now}
	if size > 0 && ttl > 0 {
		cache, err := lru.New[string, accountEntry](size)
		if err == nil {
			loader.cache = cache
		}
	}
	return loader
}

func (a *AccountLoader) Load(ctx context.Context, accountId string) (model.CreditAccount, error) {
	if a.cache != nil {
		if entry, ok := a.cache.Get(accountId); ok {
			if a.now().Sub(entry.storedAt) < a.ttl {
				return entry.account, nil
			}
			a.cache.Remove(accountId)
		}
	}

	account, err := a.db.GetAccount(ctx, accountId)
	if err != nil {
		return model.CreditAccount{}, err
	}
	if a.cache != nil {
		a.cache.Add(accountId, accountEntry{account, a.now()})
	}
	return account, nil
}

func (a *AccountLoader) Invalidate(accountId string) {
	if a.cache != nil {
		a.cache.Remove(accountId)
	}
}
