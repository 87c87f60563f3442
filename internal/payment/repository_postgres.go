package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Schema creates the ledger tables when they do not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS payments (
	id             BIGSERIAL PRIMARY KEY,
	transaction_id TEXT NOT NULL UNIQUE,
	email          TEXT NOT NULL,
	amount         NUMERIC(12, 2) NOT NULL,
	currency       TEXT NOT NULL,
	status         TEXT NOT NULL,
	processor_ref  TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS payments_email_idx ON payments (lower(email));
CREATE INDEX IF NOT EXISTS payments_processor_ref_idx ON payments (processor_ref);
CREATE TABLE IF NOT EXISTS payment_events (
	event_id    TEXT PRIMARY KEY,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const paymentColumns = `id, transaction_id, email, amount, currency, status, processor_ref, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(row scanner) (Payment, error) {
	var p Payment
	var status string
	err := row.Scan(&p.ID, &p.TransactionID, &p.Email, &p.Amount, &p.Currency, &status, &p.ProcessorRef, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, err
	}
	p.Status = Status(status)
	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p Payment) (Payment, error) {
	row := r.db.QueryRowContext(ctx, `INSERT INTO payments (transaction_id, email, amount, currency, status, processor_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+paymentColumns,
		p.TransactionID, p.Email, p.Amount, p.Currency, string(p.Status), p.ProcessorRef, p.CreatedAt, p.UpdatedAt)
	created, err := scanPayment(row)
	if isUniqueViolation(err) {
		return Payment{}, ErrDuplicate
	}
	return created, err
}

func (r *PostgresRepository) GetByTransactionID(ctx context.Context, transactionID string) (Payment, error) {
	return scanPayment(r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE transaction_id = $1`, transactionID))
}

func (r *PostgresRepository) GetByProcessorRef(ctx context.Context, ref string) (Payment, error) {
	if ref == "" {
		return Payment{}, ErrNotFound
	}
	return scanPayment(r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE processor_ref = $1`, ref))
}

// ListByEmail returns newest first.
func (r *PostgresRepository) ListByEmail(ctx context.Context, email string) ([]Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE lower(email) = lower($1) ORDER BY created_at DESC, id DESC`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// UpdateStatus is a compare-and-set on the status column. When no row
// matches it tells a missing payment from a concurrent change.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, transactionID string, from, to Status, at time.Time) (Payment, error) {
	row := r.db.QueryRowContext(ctx, `UPDATE payments SET status = $1, updated_at = $2
		WHERE transaction_id = $3 AND status = $4
		RETURNING `+paymentColumns,
		string(to), at, transactionID, string(from))
	p, err := scanPayment(row)
	if !errors.Is(err, ErrNotFound) {
		return p, err
	}
	if _, err := r.GetByTransactionID(ctx, transactionID); err != nil {
		return Payment{}, err
	}
	return Payment{}, ErrStaleStatus
}

func (r *PostgresRepository) EventSeen(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM payment_events WHERE event_id = $1)`, eventID).Scan(&seen)
	return seen, err
}

func (r *PostgresRepository) RecordEvent(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO payment_events (event_id) VALUES ($1) ON CONFLICT (event_id) DO NOTHING`, eventID)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
