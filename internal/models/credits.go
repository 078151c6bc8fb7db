package credits

import (
	"time"

	"github.com/google/uuid"
)

// Счет кредитов (владелец - пользователь)
type CreditAccount struct {
	ID        string    // ID счета
	HolderID  string    // ID пользователя
	Active    bool      // счет активен
	CreatedAt time.Time // дата создания
}

// Пакет кредитов (купленный план и т.п.)
type CreditGrant struct {
	ID           uuid.UUID
	AccountID    string    // счет
	TotalCredits int64     // всего кредитов в пакете
	Remaining    int64     // остаток, 0 <= Remaining <= TotalCredits
	ActivatedAt  time.Time // дата активации
	ExpiresAt    time.Time // дата сгорания
	Active       bool      // может быть выключен независимо от срока
}

// Пакет доступен для списания
func (g CreditGrant) Eligible(now time.Time) bool {
	return g.Active && g.Remaining > 0 && now.Before(g.ExpiresAt) && !now.Before(g.ActivatedAt)
}

// Сумма остатков доступных пакетов
func AvailableBalance(grants []CreditGrant, now time.Time) (balance int64) {
	for _, g := range grants {
		if g.Eligible(now) {
			balance += g.Remaining
		}
	}
	return balance
}

// Списание с одного пакета
type GrantTake struct {
	GrantID uuid.UUID `json:"grantId" bson:"grantId"`
	Amount  int64     `json:"amount" bson:"amount"`
}

type TnxStatus string

const (
	COMMITTED TnxStatus = "COMMITTED"
	REVERSED  TnxStatus = "REVERSED"
)

// Транзакция списания (неизменяемая, кроме статуса сторно)
type Transaction struct {
	ID             uuid.UUID   `json:"id"`
	Code           string      `json:"code"`           // код для клиента/клиники
	AccountID      string      `json:"accountId"`      // счет
	CounterpartyID string      `json:"counterpartyId"` // кто списал (клиника)
	CreditsDebited int64       `json:"creditsDebited"`
	GrantsTouched  []GrantTake `json:"grantsTouched"` // для точного сторно
	CreatedAt      time.Time   `json:"createdAt"`
	Status         TnxStatus   `json:"status"`
	IdempotencyKey string      `json:"-"`                    // nonce токена
	ReversedAt     *time.Time  `json:"reversedAt,omitempty"` // дата сторно
}

const TokenTypeRedemption = "credit_redemption"

// Данные токена
type Claims struct {
	AccountRef string    `json:"accountRef"`
	HolderID   string    `json:"holderId"`
	Nonce      string    `json:"nonce"`
	IssuedAt   time.Time `json:"issuedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	TokenType  string    `json:"tokenType"`
}

// Значение в хранилище nonce
type NoncePayload struct {
	AccountRef string    `json:"accountRef"`
	HolderID   string    `json:"holderId"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Выданный токен
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Просмотр токена без погашения
type TokenPreview struct {
	Claims Claims `json:"claims"`
	Live   bool   `json:"live"` // nonce еще в хранилище
}

// Запрос на погашение
type RedeemRequest struct {
	Token          string `json:"token"`
	CounterpartyID string `json:"counterpartyId"`
	Credits        int64  `json:"credits"`
}

const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
)

// Попытка погашения (аудит)
type RedemptionAttempt struct {
	ID             uuid.UUID  `bson:"id"`
	AccountRef     string     `bson:"accountRef"`
	HolderID       string     `bson:"holderId"`
	CounterpartyID string     `bson:"counterpartyId"`
	Requested      int64      `bson:"requested"`
	Outcome        string     `bson:"outcome"`
	Reason         Reason     `bson:"reason,omitempty"`
	Cause          string     `bson:"cause,omitempty"` // внутренняя причина, наружу не отдается
	TnxID          *uuid.UUID `bson:"tnxId,omitempty"`
	At             time.Time  `bson:"at"`
}

const (
	EventCommitted = "committed"
	EventReversed  = "reversed"
)

// Событие для отчетности
type LedgerEvent struct {
	Type        string      `json:"type"`
	Transaction Transaction `json:"transaction"`
	At          time.Time   `json:"at"`
}
