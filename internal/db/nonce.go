package credits

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	model "github.com/glkeru/credits/internal/models"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const noncePrefix = "nonce:"

// Одноразовые nonce в Redis.
// Погашение - одна команда GETDEL, атомарна на стороне сервера
type NonceStore struct {
	client  redis.UniversalClient
	logger  *zap.Logger
	timeout time.Duration
}

func NewNonceStore(client redis.UniversalClient, logger *zap.Logger, timeout time.Duration) *NonceStore {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &NonceStore{client, logger, timeout}
}

func nonceKey(nonce string) string {
	return noncePrefix + nonce
}

// Регистрация nonce, только если его еще нет
func (n *NonceStore) Register(ctx context.Context, nonce string, payload model.NoncePayload, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("nonce ttl must be positive, got %s", ttl)
	}
	val, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	ok, err := n.client.SetNX(ctx, nonceKey(nonce), val, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: register nonce: %w", model.ErrStorageUnavailable, err)
	}
	if !ok {
		// клиент мог повторить SETNX после потерянного ответа: ключ уже наш
		stored, gerr := n.client.Get(ctx, nonceKey(nonce)).Bytes()
		if gerr == nil && bytes.Equal(stored, val) {
			return true, nil
		}
		// совпадение nonce = сломанный генератор случайных чисел
		n.logger.DPanic("nonce collision",
			zap.String("service", "Register"),
			zap.String("account", payload.AccountRef),
		)
		return false, model.ErrNonceCollision
	}
	return true, nil
}

// Атомарно прочитать и удалить. Значение получит ровно один из конкурентных вызовов
func (n *NonceStore) ConsumeOnce(ctx context.Context, nonce string) (model.NoncePayload, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	val, err := n.client.GetDel(ctx, nonceKey(nonce)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.NoncePayload{}, fmt.Errorf("nonce %w", model.ErrNotFound)
	} else if err != nil {
		return model.NoncePayload{}, fmt.Errorf("%w: consume nonce: %w", model.ErrStorageUnavailable, err)
	}

	payload := model.NoncePayload{}
	err = json.Unmarshal(val, &payload)
	if err != nil {
		// nonce уже удален, токен сгорел
		return model.NoncePayload{}, fmt.Errorf("%w: nonce payload: %w", model.ErrMalformed, err)
	}
	return payload, nil
}

// Только для просмотра, не для авторизации
func (n *NonceStore) Exists(ctx context.Context, nonce string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	cnt, err := n.client.Exists(ctx, nonceKey(nonce)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: nonce exists: %w", model.ErrStorageUnavailable, err)
	}
	return cnt > 0, nil
}
