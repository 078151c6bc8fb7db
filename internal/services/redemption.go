package credits

import (
	"context"
	"errors"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	interf "github.com/glkeru/credits/internal/interfaces"
	model "github.com/glkeru/credits/internal/models"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type RedemptionConfig struct {
	DefaultTTL       time.Duration // срок токена по умолчанию
	MaxTTL           time.Duration // максимальный срок токена
	CommitTimeout    time.Duration // одна попытка списания
	CommitMaxElapsed time.Duration // все попытки списания
	SideTimeout      time.Duration // аудит, события
}

type RedemptionDeps struct {
	Codec    interf.TokenCodec
	Nonces   interf.NonceStore
	Accounts *AccountLoader
	Ledger   *CreditLedger
	Events   interf.EventPublisher // может быть nil
	Audit    interf.AuditStorage   // может быть nil
	Metrics  interf.Metrics        // может быть nil
}

type RedemptionService struct {
	logger   *zap.Logger
	codec    interf.TokenCodec
	nonces   interf.NonceStore
	accounts *AccountLoader
	ledger   *CreditLedger
	events   interf.EventPublisher
	audit    interf.AuditStorage
	metrics  interf.Metrics
	tracer   trace.Tracer
	cfg      RedemptionConfig
	backoff  func() backoff.BackOff
	now      func() time.Time
}

func NewRedemptionService(logger *zap.Logger, deps RedemptionDeps, cfg RedemptionConfig) (*RedemptionService, error) {
	if deps.Codec == nil || deps.Nonces == nil || deps.Accounts == nil || deps.Ledger == nil {
		return nil, fmt.Errorf("%w: codec, nonce store, accounts and ledger are required", model.ErrConfig)
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 15 * time.Minute
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = 24 * time.Hour
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = 5 * time.Second
	}
	if cfg.CommitMaxElapsed <= 0 {
		cfg.CommitMaxElapsed = 30 * time.Second
	}
	if cfg.SideTimeout <= 0 {
		cfg.SideTimeout = 3 * time.Second
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	s := &RedemptionService{
		logger:   logger,
		codec:    deps.Codec,
		nonces:   deps.Nonces,
		accounts: deps.Accounts,
		ledger:   deps.Ledger,
		events:   deps.Events,
		audit:    deps.Audit,
		metrics:  metrics,
		tracer:   otel.Tracer("credits"),
		cfg:      cfg,
		now:      time.Now,
	}
	s.backoff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 100 * time.Millisecond
		b.MaxInterval = 2 * time.Second
		b.MaxElapsedTime = s.cfg.CommitMaxElapsed
		return b
	}
	return s, nil
}

// Выпуск токена: проверка счета, подпись, регистрация nonce.
// Если nonce не зарегистрирован, токен не отдается
func (s *RedemptionService) Issue(ctx context.Context, accountRef string, holderId string, ttl time.Duration) (model.IssuedToken, error) {
	ctx, span := s.tracer.Start(ctx, "credits.Issue", trace.WithAttributes(attribute.String("account", accountRef)))
	defer span.End()

	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	if ttl > s.cfg.MaxTTL {
		ttl = s.cfg.MaxTTL
	}

	account, err := s.accounts.Load(ctx, accountRef)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			err = fmt.Errorf("%w: account %s not found", model.ErrInvalidAccount, accountRef)
		}
		span.SetStatus(codes.Error, err.Error())
		return model.IssuedToken{}, err
	}
	if !account.Active || account.HolderID != holderId {
		err = fmt.Errorf("%w: account %s is not available for holder", model.ErrInvalidAccount, accountRef)
		span.SetStatus(codes.Error, err.Error())
		return model.IssuedToken{}, err
	}

	token, claims, err := s.codec.Issue(accountRef, holderId, ttl)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.IssuedToken{}, err
	}

	payload := model.NoncePayload{AccountRef: claims.AccountRef, HolderID: claims.HolderID, ExpiresAt: claims.ExpiresAt}
	ok, err := s.nonces.Register(ctx, claims.Nonce, payload, ttl)
	if err == nil && !ok {
		err = model.ErrNonceCollision
	}
	if err != nil {
		s.logger.Error("register nonce",
			zap.String("service", "Issue"),
			zap.String("account", accountRef),
			zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return model.IssuedToken{}, err
	}

	s.metrics.TokenIssued()
	return model.IssuedToken{Token: token, ExpiresAt: claims.ExpiresAt}, nil
}

// Просмотр без погашения
func (s *RedemptionService) Preview(ctx context.Context, token string) (model.TokenPreview, error) {
	claims, err := s.codec.Parse(token)
	if err != nil {
		return model.TokenPreview{}, err
	}
	live, err := s.nonces.Exists(ctx, claims.Nonce)
	if err != nil {
		s.logger.Warn("nonce exists", zap.String("service", "Preview"), zap.Error(err))
		live = false
	}
	return model.TokenPreview{Claims: claims, Live: live}, nil
}

// Погашение токена:
// разбор -> погашение nonce -> загрузка счета -> списание и commit.
// Любой отказ - *model.RejectionError
func (s *RedemptionService) Redeem(ctx context.Context, req model.RedeemRequest) (tnx model.Transaction, err error) {
	ctx, span := s.tracer.Start(ctx, "credits.Redeem", trace.WithAttributes(attribute.String("counterparty", req.CounterpartyID)))
	defer span.End()

	attempt := model.RedemptionAttempt{
		ID:             uuid.New(),
		CounterpartyID: req.CounterpartyID,
		Requested:      req.Credits,
		At:             s.now().UTC(),
	}
	defer func() {
		s.finish(ctx, span, &attempt, tnx, err)
	}()

	// запрос проверяется до погашения, чтобы не сжечь токен из-за ошибки клиники
	if req.Credits <= 0 {
		return model.Transaction{}, model.Reject(model.ErrInvalidAmount)
	}
	if req.CounterpartyID == "" {
		return model.Transaction{}, model.Reject(fmt.Errorf("%w: counterparty is required", model.ErrInvalidAmount))
	}

	// 1. разбор токена, хранилище nonce не трогаем
	claims, err := s.codec.Parse(req.Token)
	if err != nil {
		attempt.Cause = "parse"
		return model.Transaction{}, model.Reject(err)
	}
	attempt.AccountRef = claims.AccountRef
	attempt.HolderID = claims.HolderID
	span.AddEvent("parsed")

	// 2. погашение nonce. Ошибка хранилища - отказ (fail-closed)
	payload, err := s.nonces.ConsumeOnce(ctx, claims.Nonce)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			attempt.Cause = "nonce consumed or evicted"
			return model.Transaction{}, model.Reject(model.ErrAlreadyUsedOrExpired)
		case errors.Is(err, model.ErrMalformed):
			attempt.Cause = "nonce payload"
			return model.Transaction{}, model.Reject(err)
		default:
			attempt.Cause = "nonce store"
			return model.Transaction{}, model.Reject(fmt.Errorf("%w: %w", model.ErrStorageUnavailable, err))
		}
	}
	span.AddEvent("nonce consumed")

	// токен сгорел: отмена вызывающим больше не прерывает погашение
	ctx = context.WithoutCancel(ctx)

	if payload.AccountRef != claims.AccountRef || payload.HolderID != claims.HolderID {
		attempt.Cause = "nonce payload mismatch"
		return model.Transaction{}, model.Reject(model.ErrInvalidAccount)
	}

	// 3. счет
	account, err := s.accounts.Load(ctx, claims.AccountRef)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			attempt.Cause = "account not found"
			return model.Transaction{}, model.Reject(model.ErrInvalidAccount)
		}
		attempt.Cause = "account load"
		return model.Transaction{}, model.Reject(err)
	}
	if !account.Active || account.HolderID != claims.HolderID {
		attempt.Cause = "account inactive or holder mismatch"
		s.accounts.Invalidate(account.ID)
		return model.Transaction{}, model.Reject(model.ErrInvalidAccount)
	}
	span.AddEvent("account loaded")

	// 4-5. списание и commit одной операцией, ключ идемпотентности - nonce
	tnx, _, err = s.commit(ctx, account.ID, req, claims.Nonce)
	if err != nil {
		if errors.Is(err, model.ErrInvalidAccount) {
			s.accounts.Invalidate(account.ID)
		}
		attempt.Cause = "debit"
		return model.Transaction{}, model.Reject(err)
	}
	span.AddEvent("committed")

	s.publish(ctx, model.EventCommitted, tnx)
	return tnx, nil
}

func permanent(err error) bool {
	return errors.Is(err, model.ErrInsufficientCredits) ||
		errors.Is(err, model.ErrInvalidAccount) ||
		errors.Is(err, model.ErrInvalidAmount)
}

// Списание с повторами при временных сбоях хранилища
func (s *RedemptionService) commit(ctx context.Context, accountId string, req model.RedeemRequest, key string) (tnx model.Transaction, balance int64, err error) {
	attempts := 0
	op := func() error {
		if attempts > 0 {
			s.metrics.CommitRetried()
		}
		attempts++

		cctx, cancel := context.WithTimeout(ctx, s.cfg.CommitTimeout)
		defer cancel()

		var opErr error
		tnx, balance, opErr = s.ledger.Debit(cctx, accountId, req.Credits, DebitRequest{Key: key, CounterpartyID: req.CounterpartyID})
		if opErr != nil {
			if permanent(opErr) {
				return backoff.Permanent(opErr)
			}
			s.logger.Warn("debit attempt failed",
				zap.String("service", "Redeem"),
				zap.String("account", accountId),
				zap.Int("attempt", attempts),
				zap.Error(opErr))
			return opErr
		}
		return nil
	}

	err = backoff.Retry(op, backoff.WithContext(s.backoff(), ctx))
	if err != nil && !permanent(err) {
		// кредиты не списаны, токен сожжен: нужна сверка по ключу
		s.logger.Error("debit abandoned",
			zap.String("service", "Redeem"),
			zap.String("account", accountId),
			zap.String("idempotency_key", key),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return model.Transaction{}, 0, fmt.Errorf("%w: %w", model.ErrStorageUnavailable, err)
	}
	return tnx, balance, err
}

// Сторно транзакции
func (s *RedemptionService) Refund(ctx context.Context, tnxId uuid.UUID) (model.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "credits.Refund", trace.WithAttributes(attribute.String("tnx", tnxId.String())))
	defer span.End()

	tnx, changed, err := s.ledger.Refund(ctx, tnxId)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.Transaction{}, err
	}
	if changed {
		s.metrics.Refunded()
		s.publish(ctx, model.EventReversed, tnx)
	}
	return tnx, nil
}

func (s *RedemptionService) Balance(ctx context.Context, accountId string) (int64, error) {
	return s.ledger.Balance(ctx, accountId)
}

func (s *RedemptionService) Transactions(ctx context.Context, accountId string, from time.Time, to time.Time) ([]model.Transaction, error) {
	return s.ledger.Transactions(ctx, accountId, from, to)
}

func (s *RedemptionService) Transaction(ctx context.Context, tnxId uuid.UUID) (model.Transaction, error) {
	return s.ledger.Transaction(ctx, tnxId)
}

func (s *RedemptionService) publish(ctx context.Context, eventType string, tnx model.Transaction) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SideTimeout)
	defer cancel()
	err := s.events.Publish(ctx, model.LedgerEvent{Type: eventType, Transaction: tnx, At: s.now().UTC()})
	if err != nil {
		s.logger.Error("publish ledger event",
			zap.String("type", eventType),
			zap.String("tnx", tnx.ID.String()),
			zap.Error(err))
	}
}

// Итог попытки: метрики, аудит, трейс
func (s *RedemptionService) finish(ctx context.Context, span trace.Span, attempt *model.RedemptionAttempt, tnx model.Transaction, err error) {
	if err == nil {
		attempt.Outcome = model.OutcomeCommitted
		id := tnx.ID
		attempt.TnxID = &id
		s.metrics.RedemptionCommitted(tnx.CreditsDebited)
		s.logger.Info("redeemed",
			zap.String("tnx", tnx.ID.String()),
			zap.String("code", tnx.Code),
			zap.String("account", tnx.AccountID),
			zap.String("counterparty", tnx.CounterpartyID),
			zap.Int64("credits", tnx.CreditsDebited))
	} else {
		attempt.Outcome = model.OutcomeRejected
		attempt.Reason = model.ReasonOf(err)
		s.metrics.RedemptionRejected(attempt.Reason)
		span.SetStatus(codes.Error, string(attempt.Reason))
		s.logger.Info("redemption rejected",
			zap.String("reason", string(attempt.Reason)),
			zap.String("cause", attempt.Cause),
			zap.String("account", attempt.AccountRef),
			zap.String("counterparty", attempt.CounterpartyID),
			zap.Error(err))
	}

	if s.audit == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SideTimeout)
	defer cancel()
	if aerr := s.audit.SaveAttempt(actx, *attempt); aerr != nil {
		s.logger.Error("save redemption attempt", zap.String("attempt", attempt.ID.String()), zap.Error(aerr))
	}
}

type nopMetrics struct{}

func (nopMetrics) TokenIssued()                    {}
func (nopMetrics) RedemptionCommitted(int64)       {}
func (nopMetrics) RedemptionRejected(model.Reason) {}
func (nopMetrics) CommitRetried()                  {}
func (nopMetrics) Refunded()                       {}
