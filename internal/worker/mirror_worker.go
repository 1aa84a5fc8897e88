// Package worker drains the mirror queue: payments that could not reach
// the remote store synchronously are pushed there here, with the derived
// fields rebuilt by re-folding the journal.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AdleyRodrigues/financing-simulator/internal/amqp"
	"github.com/AdleyRodrigues/financing-simulator/internal/config"
	"github.com/AdleyRodrigues/financing-simulator/internal/ledger"
	"github.com/AdleyRodrigues/financing-simulator/internal/remote"
	"github.com/AdleyRodrigues/financing-simulator/internal/storage"
)

// Gateway is the slice of the remote store the worker needs.
type Gateway interface {
	CreateRecord(ctx context.Context, rec remote.Record) (int64, error)
	UpdateRecord(ctx context.Context, id int64, patch map[string]any) error
	DeleteRecord(ctx context.Context, id int64) error
}

// MirrorWorker pushes journaled payments to the remote store.
type MirrorWorker struct {
	storage   *storage.SQLiteRepository
	gateway   Gateway
	plan      *config.Plan
	batchSize int
}

func NewMirrorWorker(storage *storage.SQLiteRepository, gateway Gateway, plan *config.Plan, batchSize int) *MirrorWorker {
	return &MirrorWorker{
		storage:   storage,
		gateway:   gateway,
		plan:      plan,
		batchSize: batchSize,
	}
}

// HandleMirrorMessage processes a single mirror message from AMQP.
// Messages for journal rows that no longer exist are dropped; the
// payment was undone before the retry ran.
func (w *MirrorWorker) HandleMirrorMessage(ctx context.Context, msg *amqp.MirrorMessage) error {
	slog.InfoContext(ctx, "Processing mirror message",
		"op", msg.Op,
		"payment_id", msg.PaymentID)

	switch msg.Op {
	case amqp.OpCreate:
		return w.handleCreate(ctx, msg.PaymentID)
	case amqp.OpStatus:
		return w.handleStatus(ctx, msg.PaymentID)
	case amqp.OpDelete:
		return w.handleDelete(ctx, msg.RemoteID)
	}
	slog.WarnContext(ctx, "Dropping mirror message with unknown op", "op", msg.Op)
	return nil
}

func (w *MirrorWorker) handleCreate(ctx context.Context, paymentID int64) error {
	row, err := w.storage.GetPayment(ctx, paymentID)
	if errors.Is(err, storage.ErrPaymentNotFound) {
		slog.InfoContext(ctx, "Payment gone, dropping create", "payment_id", paymentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get payment: %w", err)
	}
	if row.RemoteID.Valid {
		// Already mirrored by an earlier retry or the sweep.
		return w.storage.MarkMirrored(ctx, paymentID)
	}

	entries, err := w.foldJournal(ctx)
	if err != nil {
		return err
	}
	entry, ok := entries[paymentID]
	if !ok {
		slog.InfoContext(ctx, "Payment gone, dropping create", "payment_id", paymentID)
		return nil
	}

	remoteID, err := w.gateway.CreateRecord(ctx, remote.EncodeEntry(entry, row.CreatedAt))
	if err != nil {
		return fmt.Errorf("create remote record: %w", err)
	}
	if err := w.storage.SetRemoteID(ctx, paymentID, remoteID); err != nil {
		return fmt.Errorf("record remote id: %w", err)
	}

	slog.InfoContext(ctx, "Payment mirrored",
		"payment_id", paymentID,
		"remote_id", remoteID)
	return nil
}

func (w *MirrorWorker) handleStatus(ctx context.Context, paymentID int64) error {
	row, err := w.storage.GetPayment(ctx, paymentID)
	if errors.Is(err, storage.ErrPaymentNotFound) {
		slog.InfoContext(ctx, "Payment gone, dropping status update", "payment_id", paymentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get payment: %w", err)
	}
	if !row.RemoteID.Valid {
		// Not mirrored yet; the pending create carries the current status.
		return nil
	}

	patch := map[string]any{"status": remote.StatusToWire(row.Payment.Status)}
	if err := w.gateway.UpdateRecord(ctx, row.RemoteID.Int64, patch); err != nil {
		return fmt.Errorf("update remote record: %w", err)
	}
	return nil
}

func (w *MirrorWorker) handleDelete(ctx context.Context, remoteID int64) error {
	if remoteID == 0 {
		return nil
	}
	if err := w.gateway.DeleteRecord(ctx, remoteID); err != nil {
		return fmt.Errorf("delete remote record: %w", err)
	}
	return nil
}

// ProcessPendingPayments mirrors one batch of payments that never made
// it to the remote store. Creates run sequentially in journal order so
// the remote ids come out in the same order as the ledger; the batch
// stops at the first failure to preserve that ordering.
func (w *MirrorWorker) ProcessPendingPayments(ctx context.Context) (int, error) {
	pending, err := w.storage.ListPendingMirror(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending payments: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending payments", "count", len(pending))

	entries, err := w.foldJournal(ctx)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, row := range pending {
		if row.RemoteID.Valid {
			if err := w.storage.MarkMirrored(ctx, row.ID); err != nil {
				return done, err
			}
			done++
			continue
		}
		entry, ok := entries[row.ID]
		if !ok {
			continue
		}
		remoteID, err := w.gateway.CreateRecord(ctx, remote.EncodeEntry(entry, row.CreatedAt))
		if err != nil {
			if merr := w.storage.MarkMirrorError(ctx, row.ID); merr != nil {
				slog.ErrorContext(ctx, "Failed to flag mirror error", "payment_id", row.ID, "error", merr)
			}
			return done, fmt.Errorf("mirror payment %d: %w", row.ID, err)
		}
		if err := w.storage.SetRemoteID(ctx, row.ID, remoteID); err != nil {
			return done, fmt.Errorf("record remote id: %w", err)
		}
		done++
	}
	return done, nil
}

// StartupSweep drains the pending backlog in batches, stopping when the
// backlog is empty or the store stops cooperating.
func (w *MirrorWorker) StartupSweep(ctx context.Context) {
	total := 0
	for {
		n, err := w.ProcessPendingPayments(ctx)
		total += n
		if err != nil {
			slog.WarnContext(ctx, "Startup sweep interrupted", "mirrored", total, "error", err)
			return
		}
		if n < w.batchSize {
			break
		}
	}
	if total > 0 {
		slog.InfoContext(ctx, "Startup sweep finished", "mirrored", total)
	}
}

// foldJournal rebuilds the derived fields for every journal row, keyed
// by journal id.
func (w *MirrorWorker) foldJournal(ctx context.Context) (map[int64]ledger.Entry, error) {
	rows, err := w.storage.ListPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	led, err := ledger.New(w.plan.InitialPrincipal, w.plan.MonthlyRate)
	if err != nil {
		return nil, fmt.Errorf("build ledger: %w", err)
	}
	entries := make([]ledger.Entry, len(rows))
	for i, row := range rows {
		entries[i] = ledger.Entry{
			Date:       row.Payment.Date,
			AmountPaid: row.Payment.Amount,
			Status:     row.Payment.Status,
			LocalID:    row.ID,
			RemoteID:   row.RemoteID.Int64,
		}
	}
	led.Restore(entries)

	out := make(map[int64]ledger.Entry, len(rows))
	for _, e := range led.Entries() {
		out[e.LocalID] = e
	}
	return out, nil
}
