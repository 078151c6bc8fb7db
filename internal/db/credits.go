package credits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	interf "github.com/glkeru/credits/internal/interfaces"
	model "github.com/glkeru/credits/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

var grantColumns = []string{"id", "account_id", "total_credits", "remaining", "activated_at", "expires_at", "active"}
var tnxColumns = []string{"id", "code", "account_id", "counterparty_id", "credits", "grants", "created_at", "status", "idempotency_key", "reversed_at"}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Base     string
	Workers  int // параллельность фоновых задач
}

type CreditsDB struct {
	pool    *pgxpool.Pool
	logger  *zap.Logger
	workers int
}

func NewCreditsDB(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (db *CreditsDB, err error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("env CREDITS_DB is not set")
	}
	if cfg.Port == "" {
		return nil, fmt.Errorf("env CREDITS_DB_PORT is not set")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("env CREDITS_DB_USER is not set")
	}
	if cfg.Base == "" {
		return nil, fmt.Errorf("env CREDITS_DB_BASE is not set")
	}
	dsn := "postgres://" + cfg.User + ":" + cfg.Password + "@" + cfg.Host + ":" + cfg.Port + "/" + cfg.Base

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	return &CreditsDB{pool, logger, cfg.Workers}, nil
}

func (p *CreditsDB) Close() {
	p.pool.Close()
}

func (p *CreditsDB) logSQL(service string, err error, sql string, args []any) {
	p.logger.Error("SQL error",
		zap.String("service", service),
		zap.Error(err),
		zap.String("query", sql),
		zap.Any("args", args),
	)
}

// Создание счета
func (p *CreditsDB) AccountCreate(ctx context.Context, account model.CreditAccount) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	sql, args, err := sq.Insert("accounts").
		Columns("id", "holder_id", "active", "created_at").
		Values(account.ID, account.HolderID, account.Active, account.CreatedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		p.logSQL("AccountCreate", err, sql, args)
		return err
	}
	_, err = p.pool.Exec(ctx, sql, args...)
	if err != nil {
		p.logSQL("AccountCreate", err, sql, args)
		return err
	}
	return nil
}

// Создание пакета кредитов
func (p *CreditsDB) GrantCreate(ctx context.Context, grant model.CreditGrant) (model.CreditGrant, error) {
	if grant.ID == uuid.Nil {
		grant.ID = uuid.New()
	}
	sql, args, err := sq.Insert("grants").
		Columns(grantColumns...).
		Values(grant.ID, grant.AccountID, grant.TotalCredits, grant.Remaining, grant.ActivatedAt, grant.ExpiresAt, grant.Active).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		p.logSQL("GrantCreate", err, sql, args)
		return model.CreditGrant{}, err
	}
	_, err = p.pool.Exec(ctx, sql, args...)
	if err != nil {
		p.logSQL("GrantCreate", err, sql, args)
		return model.CreditGrant{}, err
	}
	return grant, nil
}

// Получить счет
func (p *CreditsDB) GetAccount(ctx context.Context, accountId string) (account model.CreditAccount, err error) {
	row := p.pool.QueryRow(ctx, "SELECT id, holder_id, active, created_at FROM accounts WHERE id = $1", accountId)
	err = row.Scan(&account.ID, &account.HolderID, &account.Active, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CreditAccount{}, fmt.Errorf("account %w", model.ErrNotFound)
		}
		return model.CreditAccount{}, err
	}
	return account, nil
}

// Все пакеты счета
func (p *CreditsDB) GetGrants(ctx context.Context, accountId string) ([]model.CreditGrant, error) {
	sql, args, err := sq.Select(grantColumns...).
		From("grants").
		Where(sq.Eq{"account_id": accountId}).
		OrderBy("expires_at", "activated_at", "id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}
	return p.queryGrants(ctx, p.pool, sql, args)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (p *CreditsDB) queryGrants(ctx context.Context, q querier, sql string, args []any) ([]model.CreditGrant, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		p.logSQL("queryGrants", err, sql, args)
		return nil, err
	}
	defer rows.Close()

	var grants []model.CreditGrant
	for rows.Next() {
		var g model.CreditGrant
		err = rows.Scan(&g.ID, &g.AccountID, &g.TotalCredits, &g.Remaining, &g.ActivatedAt, &g.ExpiresAt, &g.Active)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

func scanTnx(row pgx.Row) (tnx model.Transaction, err error) {
	var grants []byte
	var reversed pgtype.Timestamptz
	var status string
	err = row.Scan(&tnx.ID, &tnx.Code, &tnx.AccountID, &tnx.CounterpartyID, &tnx.CreditsDebited,
		&grants, &tnx.CreatedAt, &status, &tnx.IdempotencyKey, &reversed)
	if err != nil {
		return model.Transaction{}, err
	}
	tnx.Status = model.TnxStatus(status)
	if reversed.Status == pgtype.Present {
		t := reversed.Time.UTC()
		tnx.ReversedAt = &t
	}
	err = json.Unmarshal(grants, &tnx.GrantsTouched)
	if err != nil {
		return model.Transaction{}, err
	}
	return tnx, nil
}

func (p *CreditsDB) tnxWhere(ctx context.Context, q querier, where sq.Eq, lock bool) (model.Transaction, error) {
	b := sq.Select(tnxColumns...).
		From("tnx").
		Where(where).
		PlaceholderFormat(sq.Dollar)
	if lock {
		b = b.Suffix("FOR UPDATE")
	}
	sql, args, err := b.ToSql()
	if err != nil {
		return model.Transaction{}, err
	}
	tnx, err := scanTnx(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Transaction{}, fmt.Errorf("transaction %w", model.ErrNotFound)
		}
		p.logSQL("tnxWhere", err, sql, args)
		return model.Transaction{}, err
	}
	return tnx, nil
}

// Списание: блокировка счета и его пакетов, расчет, сохранение пакетов и транзакции одним commit
func (p *CreditsDB) Debit(ctx context.Context, accountId string, idempotencyKey string, fn interf.DebitFunc) (tnx model.Transaction, err error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return model.Transaction{}, err
	}
	defer conn.Release()

	// повтор после сбоя commit
	existing, err := p.tnxWhere(ctx, conn, sq.Eq{"idempotency_key": idempotencyKey}, false)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.Transaction{}, err
	}

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Transaction{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	// блокируем счет
	var active bool
	row := tx.QueryRow(ctx, "SELECT active FROM accounts WHERE id = $1 FOR UPDATE", accountId)
	err = row.Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = fmt.Errorf("account %s: %w", accountId, model.ErrInvalidAccount)
		}
		return model.Transaction{}, err
	}
	if !active {
		err = fmt.Errorf("account %s is inactive: %w", accountId, model.ErrInvalidAccount)
		return model.Transaction{}, err
	}

	// блокируем пакеты счета
	sql, args, err := sq.Select(grantColumns...).
		From("grants").
		Where(sq.Eq{"account_id": accountId}).
		OrderBy("expires_at", "activated_at", "id").
		Suffix("FOR UPDATE").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return model.Transaction{}, err
	}
	grants, err := p.queryGrants(ctx, tx, sql, args)
	if err != nil {
		return model.Transaction{}, err
	}

	updated, tnx, err := fn(grants)
	if err != nil {
		return model.Transaction{}, err
	}
	tnx.IdempotencyKey = idempotencyKey

	err = p.updateGrants(ctx, tx, updated)
	if err != nil {
		return model.Transaction{}, err
	}

	// транзакция списания
	grantsJson, err := json.Marshal(tnx.GrantsTouched)
	if err != nil {
		return model.Transaction{}, err
	}
	sql, args, err = sq.Insert("tnx").
		Columns(tnxColumns...).
		Values(tnx.ID, tnx.Code, tnx.AccountID, tnx.CounterpartyID, tnx.CreditsDebited, string(grantsJson), tnx.CreatedAt, string(tnx.Status), tnx.IdempotencyKey, nil).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		p.logSQL("Debit", err, sql, args)
		return model.Transaction{}, err
	}
	_, err = tx.Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "tnx_idempotency_key_key" {
			// параллельный повтор успел раньше
			tx.Rollback(ctx)
			existing, err = p.tnxWhere(ctx, conn, sq.Eq{"idempotency_key": idempotencyKey}, false)
			return existing, err
		}
		p.logSQL("Debit", err, sql, args)
		return model.Transaction{}, err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return model.Transaction{}, err
	}
	return tnx, nil
}

func (p *CreditsDB) updateGrants(ctx context.Context, tx pgx.Tx, grants []model.CreditGrant) error {
	for _, g := range grants {
		sql, args, err := sq.Update("grants").
			Set("remaining", g.Remaining).
			Where(sq.Eq{"id": g.ID}).
			PlaceholderFormat(sq.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, sql, args...)
		if err != nil {
			p.logSQL("updateGrants", err, sql, args)
			return err
		}
	}
	return nil
}

// Сторно: блокировка транзакции и затронутых пакетов
func (p *CreditsDB) Refund(ctx context.Context, tnxId uuid.UUID, fn interf.RefundFunc) (tnx model.Transaction, err error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return model.Transaction{}, err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Transaction{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	current, err := p.tnxWhere(ctx, tx, sq.Eq{"id": tnxId}, true)
	if err != nil {
		return model.Transaction{}, err
	}

	ids := make([]uuid.UUID, 0, len(current.GrantsTouched))
	for _, take := range current.GrantsTouched {
		ids = append(ids, take.GrantID)
	}
	sql, args, err := sq.Select(grantColumns...).
		From("grants").
		Where(sq.Eq{"id": ids}).
		OrderBy("id").
		Suffix("FOR UPDATE").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return model.Transaction{}, err
	}
	grants, err := p.queryGrants(ctx, tx, sql, args)
	if err != nil {
		return model.Transaction{}, err
	}

	reversed, updated, err := fn(current, grants)
	if err != nil {
		return model.Transaction{}, err
	}
	if reversed.Status == current.Status {
		err = tx.Commit(ctx)
		return current, err
	}

	err = p.updateGrants(ctx, tx, updated)
	if err != nil {
		return model.Transaction{}, err
	}
	sql, args, err = sq.Update("tnx").
		Set("status", string(reversed.Status)).
		Set("reversed_at", reversed.ReversedAt).
		Where(sq.Eq{"id": tnxId}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return model.Transaction{}, err
	}
	_, err = tx.Exec(ctx, sql, args...)
	if err != nil {
		p.logSQL("Refund", err, sql, args)
		return model.Transaction{}, err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return model.Transaction{}, err
	}
	return reversed, nil
}

// Транзакции счета за период
func (p *CreditsDB) GetTnx(ctx context.Context, accountId string, from time.Time, to time.Time) (tnxs []model.Transaction, err error) {
	sql, args, err := sq.Select(tnxColumns...).
		From("tnx").
		Where(sq.Eq{"account_id": accountId}).
		Where(sq.GtOrEq{"created_at": from}).
		Where(sq.LtOrEq{"created_at": to}).
		OrderBy("created_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		p.logSQL("GetTnx", err, sql, args)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		tnx, err := scanTnx(rows)
		if err != nil {
			return nil, err
		}
		tnxs = append(tnxs, tnx)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tnxs, nil
}

func (p *CreditsDB) GetTnxByID(ctx context.Context, tnxId uuid.UUID) (model.Transaction, error) {
	return p.tnxWhere(ctx, p.pool, sq.Eq{"id": tnxId}, false)
}

// Выключение сгоревших пакетов (остаются для аудита)
func (p *CreditsDB) ExpireOnDate(ctx context.Context, date time.Time) (accounts []string, err error) {
	sql, args, err := sq.Select("DISTINCT account_id").
		From("grants").
		Where(sq.Eq{"active": true}).
		Where(sq.LtOrEq{"expires_at": date}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		p.logger.Error("Query expired grants error", zap.Error(err), zap.String("service", "ExpireOnDate"))
		return nil, err
	}
	var candidates []string
	for rows.Next() {
		var account string
		err = rows.Scan(&account)
		if err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, account)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	// семафор
	semch := make(chan struct{}, p.workers)
	wg := &sync.WaitGroup{}
	mu := &sync.Mutex{}

	for _, account := range candidates {
		semch <- struct{}{}
		wg.Add(1)
		go func(account string) {
			defer func() {
				wg.Done()
				<-semch
			}()
			err := p.expireAccount(ctx, account, date)
			if err != nil {
				p.logger.Error("Expire grants error",
					zap.Error(err),
					zap.String("service", "ExpireOnDate"),
					zap.String("account", account))
				return
			}
			mu.Lock()
			accounts = append(accounts, account)
			mu.Unlock()
		}(account)
	}
	wg.Wait()
	return accounts, nil
}

func (p *CreditsDB) expireAccount(ctx context.Context, account string, date time.Time) (err error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	// тот же порядок блокировок, что и при списании
	_, err = tx.Exec(ctx, "SELECT id FROM accounts WHERE id = $1 FOR UPDATE", account)
	if err != nil {
		return err
	}
	sql, args, err := sq.Update("grants").
		Set("active", false).
		Where(sq.Eq{"account_id": account}).
		Where(sq.Eq{"active": true}).
		Where(sq.LtOrEq{"expires_at": date}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, sql, args...)
	if err != nil {
		p.logSQL("expireAccount", err, sql, args)
		return err
	}
	return tx.Commit(ctx)
}
