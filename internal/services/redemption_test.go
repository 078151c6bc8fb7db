package credits

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backoff "github.com/cenkalti/backoff/v4"
	db "github.com/glkeru/credits/internal/db"
	interf "github.com/glkeru/credits/internal/interfaces"
	model "github.com/glkeru/credits/internal/models"
	token "github.com/glkeru/credits/internal/token"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type countMetrics struct {
	mu        sync.Mutex
	issued    int
	committed int
	retried   int
	refunded  int
	rejected  map[model.Reason]int
}

func (m *countMetrics) TokenIssued() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued++
}

func (m *countMetrics) RedemptionCommitted(int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed++
}

func (m *countMetrics) RedemptionRejected(reason model.Reason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejected == nil {
		m.rejected = map[model.Reason]int{}
	}
	m.rejected[reason]++
}

func (m *countMetrics) CommitRetried() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retried++
}

func (m *countMetrics) Refunded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refunded++
}

// Хранилище, которое падает первые failures списаний.
// commitThenFail: списание проходит, но ответ теряется
type flakyLedger struct {
	*db.MemoryDB
	failures       int32
	commitThenFail bool
	calls          atomic.Int32
}

func (f *flakyLedger) Debit(ctx context.Context, accountId string, key string, fn interf.DebitFunc) (model.Transaction, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		if f.commitThenFail {
			_, _ = f.MemoryDB.Debit(ctx, accountId, key, fn)
		}
		return model.Transaction{}, errors.New("connection reset by peer")
	}
	return f.MemoryDB.Debit(ctx, accountId, key, fn)
}

type fixture struct {
	svc     *RedemptionService
	mem     *db.MemoryDB
	mr      *miniredis.Miniredis
	codec   *token.Codec
	metrics *countMetrics
	clock   *time.Time
}

func newFixture(t *testing.T, balance int64, wrap func(*db.MemoryDB) interf.LedgerStorage) *fixture {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	mem := db.NewMemoryDB()
	require.NoError(t, mem.AccountCreate(ctx, model.CreditAccount{ID: "acc-1", HolderID: "user-1", Active: true}))
	now := time.Now()
	_, err := mem.GrantCreate(ctx, model.CreditGrant{
		AccountID:    "acc-1",
		TotalCredits: balance,
		Remaining:    balance,
		ActivatedAt:  now.Add(-24 * time.Hour),
		ExpiresAt:    now.Add(30 * 24 * time.Hour),
		Active:       true,
	})
	require.NoError(t, err)

	var storage interf.LedgerStorage = mem
	if wrap != nil {
		storage = wrap(mem)
	}

	clock := time.Now()
	codec, err := token.NewCodec("test-secret", "credits", "clinics", token.WithClock(func() time.Time { return clock }))
	require.NoError(t, err)

	metrics := &countMetrics{}
	svc, err := NewRedemptionService(zap.NewNop(), RedemptionDeps{
		Codec:    codec,
		Nonces:   db.NewNonceStore(client, zap.NewNop(), time.Second),
		Accounts: NewAccountLoader(mem, 16, time.Minute),
		Ledger:   NewCreditLedger(zap.NewNop(), storage, nil),
		Metrics:  metrics,
	}, RedemptionConfig{DefaultTTL: 15 * time.Minute, MaxTTL: time.Hour})
	require.NoError(t, err)
	svc.backoff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)
	}

	return &fixture{svc: svc, mem: mem, mr: mr, codec: codec, metrics: metrics, clock: &clock}
}

func requireReason(t *testing.T, err error, reason model.Reason) *model.RejectionError {
	t.Helper()
	var rej *model.RejectionError
	require.True(t, errors.As(err, &rej), "expected rejection, got %v", err)
	require.Equal(t, reason, rej.Reason, "err=%v", err)
	return rej
}

func TestRedeemRoundTrip(t *testing.T) {
	cont := gomock.NewController(t)
	defer cont.Finish()

	f := newFixture(t, 10, nil)
	ctx := context.Background()

	events := NewMockEventPublisher(cont)
	audit := NewMockAuditStorage(cont)
	f.svc.events = events
	f.svc.audit = audit

	var attempts []model.RedemptionAttempt
	audit.EXPECT().SaveAttempt(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, a model.RedemptionAttempt) error {
			attempts = append(attempts, a)
			return nil
		}).Times(2)
	events.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e model.LedgerEvent) error {
			require.Equal(t, model.EventCommitted, e.Type)
			require.Equal(t, int64(3), e.Transaction.CreditsDebited)
			return nil
		})

	issued, err := f.svc.Issue(ctx, "acc-1", "user-1", 0)
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)
	require.WithinDuration(t, f.clock.Add(15*time.Minute), issued.ExpiresAt, time.Second)

	preview, err := f.svc.Preview(ctx, issued.Token)
	require.NoError(t, err)
	require.True(t, preview.Live)
	require.Equal(t, "acc-1", preview.Claims.AccountRef)
	require.Equal(t, "user-1", preview.Claims.HolderID)

	tnx, err := f.svc.Redeem(ctx, model.RedeemRequest{Token: issued.Token, CounterpartyID: "clinic-1", Credits: 3})
	require.NoError(t, err)
	require.Equal(t, int64(3), tnx.CreditsDebited)
	require.Equal(t, "clinic-1", tnx.CounterpartyID)
	require.Equal(t, model.COMMITTED, tnx.Status)

	preview, err = f.svc.Preview(ctx, issued.Token)
	require.NoError(t, err)
	require.False(t, preview.Live)

	_, err = f.svc.Redeem(ctx, model.RedeemRequest{Token: issued.Token, CounterpartyID: "clinic-1", Credits: 3})
	requireReason(t, err, model.ReasonAlreadyUsedOrExpired)
	require.ErrorIs(t, err, model.ErrAlreadyUsedOrExpired)

	balance, err := f.svc.Balance(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(7), balance)

	require.Len(t, attempts, 2)
	require.Equal(t, model.OutcomeCommitted, attempts[0].Outcome)
	require.Equal(t, tnx.ID, *attempts[0].TnxID)
	require.Equal(t, model.OutcomeRejected, attempts[1].Outcome)
	require.Equal(t, model.ReasonAlreadyUsedOrExpired, attempts[1].Reason)

	require.Equal(t, 1, f.metrics.issued)
	require.Equal(t, 1, f.metrics.committed)
	require.Equal(t, 1, f.metrics.rejected[model.ReasonAlreadyUsedOrExpired])
}

func TestRedeemExactlyOnce(t *testing.T) {
	f := newFixture(t, 100, nil)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, "acc-1", "user-1", time.Minute)
	require.NoError(t, err)

	var committed, used atomic.Int32
	g := errgroup.Group{}
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			_, err := f.svc.Redeem(ctx, model.RedeemRequest{Token: issued.Token, CounterpartyID: "clinic-1", Credits: 5})
			if err == nil {
				committed.Add(1)
				return nil
			}
			if errors.Is(err, model.ErrAlreadyUsedOrExpired) {
				used.Add(1)
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, int32(1), committed.Load())
	require.Equal(t, int32(49), used.Load())

	balance, err := f.svc.Balance(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(95), balance)
}

func TestRedeemDifferentTokensNeverOverdraw(t *testing.T) {
	f := newFixture(t, 10, nil)
	ctx := context.Background()

	const callers = 20
	tokens := make([]string, callers)
	for i := range tokens {
		issued, err := f.svc.Issue(ctx, "acc-1", "user-1", time.Minute)
		require.NoError(t, err)
		tokens[i] = issued.Token
	}

	var debited atomic.Int64
	var committed, insufficient atomic.Int32
	g := errgroup.Group{}
	for _, tok := range tokens {
		g.Go(func() error {
			tnx, err := f.svc.Redeem(ctx, model.RedeemRequest{Token: tok, CounterpartyID: "clinic-1", Credits: 3})
			if err == nil {
				committed.Add(1)
				debited.Add(tnx.CreditsDebited)
				return nil
			}
			if errors.Is(err, model.ErrInsufficientCredits) {
				insufficient.Add(1)
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	require.LessOrEqual(t, debited.Load(), int64(10))
	require.Equal(t, int32(3), committed.Load())
	require.Equal(t, int32(callers-3), insufficient.Load())

	balance, err := f.svc.Balance(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(10)-debited.Load(), balance)

	grants, err := f.mem.GetGrants(ctx, "acc-1")
	require.NoError(t, err)
	for _, g := range grants {
		require.GreaterOrEqual(t, g.Remaining, int64(0))
	}
}

func TestRedeemBurnOnFailure(t *testing.T) {
	f := newFixture(t, 8, nil)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, "acc-1", "user-1", time.Minute)
	require.NoError(t, err)

	_, err = f.svc.Redeem(ctx, model.RedeemRequest{Token: issued.Token, CounterpartyID: "clinic-1", Credits: 9})
	rej := requireReason(t, err, model.ReasonInsufficientCredits)
	require.Equal(t, int64(8), rej.Balance)
	require.Equal(t, int64(1), rej.Shortfall)
	require.ErrorIs(t, err, model.ErrInsufficientCredits)

	// токен сгорел, даже если кредитов теперь хватает
	_, err = f.svc.Redeem(ctx, model.RedeemRequest{Token: issued.Token, CounterpartyID: "clinic-1", Credits: 1})
	requireReason(t, err, model.ReasonAlreadyUsedOrExpired)

	balance, err := f.svc.Balance(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(8), balance)
	require.Zero(t, f.metrics.retried)
}

func TestRedeemParseFailuresDoNotTouchStore(t *testing.T) {
	cont := gomock.NewController(t)
	defer cont.Finish()

	f := newFixture(t, 10, nil)
	// без ожиданий: любой вызов хранилища nonce провалит тест
	f.svc.nonces = NewMockNonceStore(cont)
	ctx := context.Background()

	expiredToken, _, err := f.codec.Issue("acc-1", "user-1", time.Minute)
	require.NoError(t, err)
	*f.clock = f.clock.Add(2 * time.Minute)

	other, err := token.NewCodec("other-secret", "credits", "clinics")
	require.NoError(t, err)
	foreignToken, _, err := other.Issue("acc-1", "user-1", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		reason model.Reason
	}{
		{"expired", expiredToken, model.ReasonExpired},
		{"bad signature", foreignToken, model.ReasonBadSignature},
		{"garbage", "not-a-token", model.ReasonMalformed},
	}
	for _, ts := range tests {
		_, err := f.svc.Redeem(ctx, model.RedeemRequest{Token: ts.token, CounterpartyID: "clinic-1", Credits: 1})
		requireReason(t, err, ts.reason)
	}
}

func TestRedeemInvalidRequestKeepsToken(t *testing.T) {
	f := newFixture(t, 10, nil)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, "acc-1", "user-1", time.Minute)
	require.NoError(t, err)

	_, err = f.svc.Redeem(ctx, model.RedeemRequest{Token: issued.Token, CounterpartyID: "clinic-1", Credits: 0})
	requireReason(t, err, model.ReasonInvalidRequest)
	_, err = f.svc.Redeem(ctx, model.RedeemRequest{Token: issued.Token, Credits: 1})
	requireReason(t, err, model.ReasonInvalidRequest)

	_, err = f.svc.Redeem(ctx, model.RedeemRequest{Token: issued.Token, CounterpartyID: "clinic-1", Credits: 1})
	require.NoError(t, err)
}

func TestRedeemConsumeFailsClosed(t *testing.T) {
	cont := gomock.NewController(t)
	defer cont.Finish()

	f := newFixture(t, 10, nil)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, "acc-1", "user-1", time.Minute)
	require.NoError(t, err)

	nonces := NewMockNonceStore(cont)
	nonces.EXPECT().ConsumeOnce(gomock.Any(), gomock.Any()).Return(model.NoncePayload{}, context.DeadlineExceeded)
	f.svc.nonces = nonces

	_, err = f.svc.Redeem(ctx, model.RedeemRequest{Token: issued.Token, CounterpartyID: "clinic-1", Credits: 1})
	requireReason(t, err, model.ReasonStorageUnavailable)
	require.ErrorIs(t, err, model.ErrStorageUnavailable)

	balance, err := f.svc.Balance(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(10), balance)
}

func TestRedeemPayloadMismatch(t *testing.T) {
	cont := gomock.NewController(t)
	defer cont.Finish()

	f := newFixture(t, 10, nil)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, "acc-1", "user-1", time.Minute)
	require.NoError(t, err)

	nonces := NewMockNonceStore(cont)
	nonces.EXPECT().ConsumeOnce(gomock.Any(), gomock.Any()).Return(model.NoncePayload{AccountRef: "acc-2", HolderID: "user-1"}, nil)
	f.svc.nonces = nonces

	_, err = f.svc.Redeem(ctx, model.RedeemRequest{Token: issued.Token, CounterpartyID: "clinic-1", Credits: 1})
	requireReason(t, err, model.ReasonInvalidAccount)
}

func TestRedeemCommitRetryIsIdempotent(t *testing.T) {
	var flaky *flakyLedger
	f := newFixture(t, 10, func(mem *db.MemoryDB) interf.LedgerStorage {
		flaky = &flakyLedger{MemoryDB: mem, failures: 1, commitThenFail: true}
		return flaky
	})
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, "acc-1", "user-1", time.Minute)
	require.NoError(t, err)

	tnx, err := f.svc.Redeem(ctx, model.RedeemRequest{Token: issued.Token, CounterpartyID: "clinic-1", Credits: 4})
	require.NoError(t, err)
	require.Equal(t, int32(2), flaky.calls.Load())
	require.Equal(t, 1, f.metrics.retried)

	balance, err := f.svc.Balance(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(6), balance)

	tnxs, err := f.svc.Transactions(ctx, "acc-1", time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, tnxs, 1)
	require.Equal(t, tnx.ID, tnxs[0].ID)
}

func TestRedeemCommitAbandoned(t *testing.T) {
	f := newFixture(t, 10, func(mem *db.MemoryDB) interf.LedgerStorage {
		return &flakyLedger{MemoryDB: mem, failures: 100}
	})
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, "acc-1", "user-1", time.Minute)
	require.NoError(t, err)

	_, err = f.svc.Redeem(ctx, model.RedeemRequest{Token: issued.Token, CounterpartyID: "clinic-1", Credits: 4})
	requireReason(t, err, model.ReasonStorageUnavailable)
	require.Equal(t, 3, f.metrics.retried)

	_, err = f.svc.Redeem(ctx, model.RedeemRequest{Token: issued.Token, CounterpartyID: "clinic-1", Credits: 4})
	requireReason(t, err, model.ReasonAlreadyUsedOrExpired)
}

// Отмена вызывающего сразу после погашения nonce
type cancelOnConsume struct {
	interf.NonceStore
	cancel context.CancelFunc
}

func (c cancelOnConsume) ConsumeOnce(ctx context.Context, nonce string) (model.NoncePayload, error) {
	payload, err := c.NonceStore.ConsumeOnce(ctx, nonce)
	c.cancel()
	return payload, err
}

func TestRedeemCompletesAfterCallerCancel(t *testing.T) {
	f := newFixture(t, 10, nil)

	issued, err := f.svc.Issue(context.Background(), "acc-1", "user-1", time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.svc.nonces = cancelOnConsume{NonceStore: f.svc.nonces, cancel: cancel}

	tnx, err := f.svc.Redeem(ctx, model.RedeemRequest{Token: issued.Token, CounterpartyID: "clinic-1", Credits: 2})
	require.NoError(t, err)
	require.Equal(t, int64(2), tnx.CreditsDebited)
	require.Error(t, ctx.Err())
}

func TestRedeemInactiveAccount(t *testing.T) {
	f := newFixture(t, 10, nil)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, "acc-1", "user-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, f.mem.AccountDeactivate(ctx, "acc-1"))

	_, err = f.svc.Redeem(ctx, model.RedeemRequest{Token: issued.Token, CounterpartyID: "clinic-1", Credits: 1})
	requireReason(t, err, model.ReasonInvalidAccount)
}

func TestIssueRejectsAccount(t *testing.T) {
	f := newFixture(t, 10, nil)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, "missing", "user-1", time.Minute)
	require.ErrorIs(t, err, model.ErrInvalidAccount)

	_, err = f.svc.Issue(ctx, "acc-1", "someone-else", time.Minute)
	require.ErrorIs(t, err, model.ErrInvalidAccount)
	require.Zero(t, f.metrics.issued)
}

func TestIssueTTLCapped(t *testing.T) {
	f := newFixture(t, 10, nil)

	issued, err := f.svc.Issue(context.Background(), "acc-1", "user-1", 48*time.Hour)
	require.NoError(t, err)
	require.WithinDuration(t, f.clock.Add(time.Hour), issued.ExpiresAt, time.Second)
}

func TestIssueNonceStoreDown(t *testing.T) {
	cont := gomock.NewController(t)
	defer cont.Finish()

	f := newFixture(t, 10, nil)
	nonces := NewMockNonceStore(cont)
	nonces.EXPECT().Register(gomock.Any(), gomock.Any(), gomock.Any(), time.Minute).
		Return(false, model.ErrStorageUnavailable)
	f.svc.nonces = nonces

	issued, err := f.svc.Issue(context.Background(), "acc-1", "user-1", time.Minute)
	require.ErrorIs(t, err, model.ErrStorageUnavailable)
	require.Empty(t, issued.Token)
}

func TestRefundPublishesOnce(t *testing.T) {
	cont := gomock.NewController(t)
	defer cont.Finish()

	f := newFixture(t, 10, nil)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, "acc-1", "user-1", time.Minute)
	require.NoError(t, err)
	tnx, err := f.svc.Redeem(ctx, model.RedeemRequest{Token: issued.Token, CounterpartyID: "clinic-1", Credits: 6})
	require.NoError(t, err)

	events := NewMockEventPublisher(cont)
	events.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e model.LedgerEvent) error {
			require.Equal(t, model.EventReversed, e.Type)
			return errors.New("broker down")
		})
	f.svc.events = events

	reversed, err := f.svc.Refund(ctx, tnx.ID)
	require.NoError(t, err)
	require.Equal(t, model.REVERSED, reversed.Status)

	_, err = f.svc.Refund(ctx, tnx.ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.metrics.refunded)

	balance, err := f.svc.Balance(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(10), balance)

	_, err = f.svc.Refund(ctx, uuid.New())
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestNewRedemptionServiceRequiresDeps(t *testing.T) {
	_, err := NewRedemptionService(zap.NewNop(), RedemptionDeps{}, RedemptionConfig{})
	require.ErrorIs(t, err, model.ErrConfig)
}
