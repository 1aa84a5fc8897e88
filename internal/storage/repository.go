// Package storage keeps the local journal of payment inputs in SQLite.
// Only the raw inputs are journaled; the derived amounts are recomputed
// from the repayment plan on every load, so the journal can never drift
// from the fold.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/AdleyRodrigues/financing-simulator/internal/core"

	_ "modernc.org/sqlite"
)

// Mirror states of a journaled payment.
const (
	MirrorPending  = "pending"
	MirrorMirrored = "mirrored"
	MirrorError    = "error"
)

// ErrPaymentNotFound is returned when a journal row does not exist.
var ErrPaymentNotFound = errors.New("payment not found")

// PaymentRow is one journaled payment together with its mirror
// bookkeeping.
type PaymentRow struct {
	ID             int64
	Payment        core.Payment
	IdempotencyKey string
	RemoteID       sql.NullInt64
	MirrorState    string
	CreatedAt      time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreatePayment journals one payment and returns the row id. The
// idempotency key guards against the same payment being journaled twice
// when a request is retried.
func (r *SQLiteRepository) CreatePayment(ctx context.Context, p core.Payment, idempotencyKey string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (paid_on, amount_cents, status, idempotency_key)
		 VALUES (?, ?, ?, ?)`,
		p.Date.ISO(), p.Amount.Cents, string(p.Status), idempotencyKey)
	if err != nil {
		return 0, fmt.Errorf("create payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create payment: last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Payment journaled",
		"id", id,
		"paid_on", p.Date.ISO(),
		"amount_cents", p.Amount.Cents,
		"status", p.Status)

	return id, nil
}

// ListPayments returns the whole journal in insertion order, which is
// the order the fold consumes.
func (r *SQLiteRepository) ListPayments(ctx context.Context) ([]PaymentRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, paid_on, amount_cents, status, idempotency_key, remote_id, mirror_state, created_at
		 FROM payments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []PaymentRow
	for rows.Next() {
		row, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("list payments: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return out, nil
}

// GetPayment returns a single journal row by id.
func (r *SQLiteRepository) GetPayment(ctx context.Context, id int64) (PaymentRow, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, paid_on, amount_cents, status, idempotency_key, remote_id, mirror_state, created_at
		 FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PaymentRow{}, fmt.Errorf("get payment %d: %w", id, ErrPaymentNotFound)
	}
	if err != nil {
		return PaymentRow{}, fmt.Errorf("get payment %d: %w", id, err)
	}
	return p, nil
}

// DeletePayment removes one journal row.
func (r *SQLiteRepository) DeletePayment(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete payment %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete payment %d: %w", id, ErrPaymentNotFound)
	}
	return nil
}

// DeleteAll wipes the journal.
func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM payments`); err != nil {
		return fmt.Errorf("delete all payments: %w", err)
	}
	slog.InfoContext(ctx, "Payment journal cleared")
	return nil
}

// UpdateStatus flips the informational status of one journaled payment.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id int64, status core.Status) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update payment %d status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update payment %d status: %w", id, ErrPaymentNotFound)
	}
	return nil
}

// SetRemoteID records the document id the remote store assigned and
// marks the payment as mirrored in the same statement.
func (r *SQLiteRepository) SetRemoteID(ctx context.Context, id, remoteID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET remote_id = ?, mirror_state = ? WHERE id = ?`,
		remoteID, MirrorMirrored, id)
	if err != nil {
		return fmt.Errorf("set remote id for payment %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set remote id for payment %d: %w", id, ErrPaymentNotFound)
	}
	return nil
}

// MarkMirrored marks a payment as successfully mirrored.
func (r *SQLiteRepository) MarkMirrored(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE payments SET mirror_state = ? WHERE id = ?`, MirrorMirrored, id); err != nil {
		return fmt.Errorf("mark payment %d mirrored: %w", id, err)
	}
	slog.InfoContext(ctx, "Payment marked as mirrored", "id", id)
	return nil
}

// MarkMirrorError marks a payment as having failed to mirror.
func (r *SQLiteRepository) MarkMirrorError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE payments SET mirror_state = ? WHERE id = ?`, MirrorError, id); err != nil {
		return fmt.Errorf("mark payment %d mirror error: %w", id, err)
	}
	slog.WarnContext(ctx, "Payment marked with mirror error", "id", id)
	return nil
}

// ListPendingMirror returns payments still waiting to reach the remote
// store, oldest first so remote ids come out in journal order.
func (r *SQLiteRepository) ListPendingMirror(ctx context.Context, limit int) ([]PaymentRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, paid_on, amount_cents, status, idempotency_key, remote_id, mirror_state, created_at
		 FROM payments WHERE mirror_state != ? ORDER BY id LIMIT ?`,
		MirrorMirrored, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending mirror payments: %w", err)
	}
	defer rows.Close()

	var out []PaymentRow
	for rows.Next() {
		row, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("list pending mirror payments: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending mirror payments: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(s rowScanner) (PaymentRow, error) {
	var (
		row       PaymentRow
		paidOn    string
		status    string
		createdAt string
	)
	if err := s.Scan(&row.ID, &paidOn, &row.Payment.Amount.Cents, &status,
		&row.IdempotencyKey, &row.RemoteID, &row.MirrorState, &createdAt); err != nil {
		return PaymentRow{}, err
	}

	date, err := core.ParseDate(paidOn)
	if err != nil {
		return PaymentRow{}, fmt.Errorf("row %d: %w", row.ID, err)
	}
	row.Payment.Date = date
	row.Payment.Status, err = core.ParseStatus(status)
	if err != nil {
		return PaymentRow{}, fmt.Errorf("row %d: %w", row.ID, err)
	}
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		row.CreatedAt = ts
	} else if ts, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
		row.CreatedAt = ts
	}
	return row, nil
}
