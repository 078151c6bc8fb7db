package credits

import (
	"context"
	"time"

	model "github.com/glkeru/credits/internal/models"
	"github.com/google/uuid"
)

//go:generate mockgen -destination=./../services/mock_credits_test.go -package=credits . NonceStore,LedgerStorage,CacheStorage,EventPublisher,AuditStorage

// Подпись и разбор токенов
type TokenCodec interface {
	Issue(accountRef string, holderId string, ttl time.Duration) (token string, claims model.Claims, err error)
	Parse(token string) (claims model.Claims, err error)
}

// Хранилище одноразовых nonce
type NonceStore interface {
	Register(ctx context.Context, nonce string, payload model.NoncePayload, ttl time.Duration) (ok bool, err error)
	ConsumeOnce(ctx context.Context, nonce string) (payload model.NoncePayload, err error)
	Exists(ctx context.Context, nonce string) (bool, error)
}

// Расчет списания над заблокированными пакетами счета
type DebitFunc func(grants []model.CreditGrant) (updated []model.CreditGrant, tnx model.Transaction, err error)

// Расчет сторно над заблокированной транзакцией и ее пакетами
type RefundFunc func(tnx model.Transaction, grants []model.CreditGrant) (reversed model.Transaction, updated []model.CreditGrant, err error)

type AccountStorage interface {
	GetAccount(ctx context.Context, accountId string) (model.CreditAccount, error)
}

type LedgerStorage interface {
	AccountStorage
	GetGrants(ctx context.Context, accountId string) ([]model.CreditGrant, error)
	Debit(ctx context.Context, accountId string, idempotencyKey string, fn DebitFunc) (tnx model.Transaction, err error)
	Refund(ctx context.Context, tnxId uuid.UUID, fn RefundFunc) (tnx model.Transaction, err error)
	GetTnx(ctx context.Context, accountId string, from time.Time, to time.Time) (tnxs []model.Transaction, err error)
	GetTnxByID(ctx context.Context, tnxId uuid.UUID) (model.Transaction, error)
	ExpireOnDate(ctx context.Context, date time.Time) (accounts []string, err error)
}

// Заведение счетов и пакетов (creditsctl, начальная загрузка)
type AdminStorage interface {
	LedgerStorage
	AccountCreate(ctx context.Context, account model.CreditAccount) error
	GrantCreate(ctx context.Context, grant model.CreditGrant) (model.CreditGrant, error)
}

type CacheStorage interface {
	GetBalance(ctx context.Context, accountId string) (credits int64, err error)
	BalanceVersion(ctx context.Context, accountId string) (version int64, err error)
	SetBalance(ctx context.Context, accountId string, credits int64, version int64) (err error)
	InvalidateBalance(ctx context.Context, accountId string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event model.LedgerEvent) error
}

type AuditStorage interface {
	SaveAttempt(ctx context.Context, attempt model.RedemptionAttempt) error
}

type Metrics interface {
	TokenIssued()
	RedemptionCommitted(credits int64)
	RedemptionRejected(reason model.Reason)
	CommitRetried()
	Refunded()
}
