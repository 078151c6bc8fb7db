package credits

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	model "github.com/glkeru/credits/internal/models"
	redis "github.com/redis/go-redis/v9"
)

const balancePrefix = "balance:"
const versionPrefix = "balance_ver:"

// версия живет дольше любого чтения баланса
const versionTTL = 24 * time.Hour

// Запись баланса, только если версия счета не менялась с начала чтения
var setIfVersion = redis.NewScript(`
local current = redis.call("GET", KEYS[1]) or "0"
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// Кэш балансов.
// Каждое изменение счета увеличивает его версию, устаревшее чтение в кэш не попадает
type CacheService struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewCacheService(client redis.UniversalClient, ttl time.Duration) *CacheService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CacheService{client, ttl}
}

func (c *CacheService) GetBalance(ctx context.Context, accountId string) (credits int64, err error) {
	val, err := c.client.Get(ctx, balancePrefix+accountId).Result()
	if errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("balance %w", model.ErrNotFound)
	} else if err != nil {
		return 0, err
	}

	credits, err = strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, err
	}
	return credits, nil
}

// Версия счета. Читать до чтения пакетов из базы
func (c *CacheService) BalanceVersion(ctx context.Context, accountId string) (int64, error) {
	version, err := c.client.Get(ctx, versionPrefix+accountId).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return version, err
}

// Сохранить баланс, посчитанный при версии version.
// Если счет изменился после чтения версии, ничего не пишется
func (c *CacheService) SetBalance(ctx context.Context, accountId string, credits int64, version int64) (err error) {
	keys := []string{versionPrefix + accountId, balancePrefix + accountId}
	err = setIfVersion.Run(ctx, c.client, keys, strconv.FormatInt(version, 10), credits, c.ttl.Milliseconds()).Err()
	if err != nil {
		return err
	}
	return nil
}

func (c *CacheService) InvalidateBalance(ctx context.Context, accountId string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionPrefix+accountId)
		pipe.Expire(ctx, versionPrefix+accountId, versionTTL)
		pipe.Del(ctx, balancePrefix+accountId)
		return nil
	})
	return err
}
