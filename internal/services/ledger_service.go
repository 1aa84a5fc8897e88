// Package services orchestrates ledger operations across the in-memory
// ledger, the SQLite journal and the remote document store. Writes go to
// the journal first; mirroring to the remote store is best effort and
// failures are handed to the AMQP retry pipe when one is configured.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AdleyRodrigues/financing-simulator/internal/amqp"
	"github.com/AdleyRodrigues/financing-simulator/internal/config"
	"github.com/AdleyRodrigues/financing-simulator/internal/core"
	"github.com/AdleyRodrigues/financing-simulator/internal/ledger"
	"github.com/AdleyRodrigues/financing-simulator/internal/remote"
	"github.com/AdleyRodrigues/financing-simulator/internal/storage"
)

// Journal is the local payment journal.
type Journal interface {
	CreatePayment(ctx context.Context, p core.Payment, idempotencyKey string) (int64, error)
	ListPayments(ctx context.Context) ([]storage.PaymentRow, error)
	DeletePayment(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
	UpdateStatus(ctx context.Context, id int64, status core.Status) error
	SetRemoteID(ctx context.Context, id, remoteID int64) error
	MarkMirrorError(ctx context.Context, id int64) error
}

// Gateway is the remote document store.
type Gateway interface {
	Ping(ctx context.Context) bool
	GetConfig(ctx context.Context) (*remote.Config, error)
	ListRecords(ctx context.Context) ([]remote.Record, error)
	CreateRecord(ctx context.Context, rec remote.Record) (int64, error)
	UpdateRecord(ctx context.Context, id int64, patch map[string]any) error
	DeleteRecord(ctx context.Context, id int64) error
	DeleteAllRecords(ctx context.Context) error
}

// Publisher queues mirror work for the worker binary.
type Publisher interface {
	PublishMirror(ctx context.Context, msg *amqp.MirrorMessage) error
}

// LedgerService owns the ledger and coordinates journal, remote store
// and retry pipe around it. All operations are serialized; the ledger
// fold itself is not safe for concurrent use.
type LedgerService struct {
	mu      sync.Mutex
	ledger  *ledger.Ledger
	plan    *config.Plan
	journal Journal
	gateway Gateway
	pub     Publisher
	online  bool
}

func NewLedgerService(plan *config.Plan, journal Journal, gateway Gateway, pub Publisher) *LedgerService {
	return &LedgerService{
		plan:    plan,
		journal: journal,
		gateway: gateway,
		pub:     pub,
	}
}

// Load probes the remote store, resolves the repayment plan and rebuilds
// the ledger. The journal is the source of truth when it has rows; an
// empty journal is seeded from the remote history when the store is
// reachable, so an existing remote collection survives a fresh database.
func (s *LedgerService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.online = s.gateway.Ping(ctx)

	plan := s.resolvePlan(ctx)
	led, err := ledger.New(plan.InitialPrincipal, plan.MonthlyRate)
	if err != nil {
		return fmt.Errorf("build ledger: %w", err)
	}
	s.ledger = led

	rows, err := s.journal.ListPayments(ctx)
	if err != nil {
		return fmt.Errorf("replay journal: %w", err)
	}

	if len(rows) == 0 && s.online {
		return s.importRemote(ctx)
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
	s.ledger.Restore(entries)

	slog.InfoContext(ctx, "Ledger loaded",
		"entries", s.ledger.Len(),
		"balance_cents", s.ledger.Balance().Cents,
		"online", s.online)
	return nil
}

// resolvePlan prefers the remote /config document when the store is
// reachable and the document is sane, falling back to the local plan.
func (s *LedgerService) resolvePlan(ctx context.Context) *config.Plan {
	if !s.online {
		return s.plan
	}
	cfg, err := s.gateway.GetConfig(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Remote config not available, using local plan", "error", err)
		return s.plan
	}
	plan := &config.Plan{
		InitialPrincipal: remote.AmountFromWire(cfg.DividaInicial),
		MonthlyRate:      decimal.NewFromFloat(cfg.Taxa),
	}
	if err := plan.Validate(); err != nil {
		slog.WarnContext(ctx, "Remote config invalid, using local plan", "error", err)
		return s.plan
	}
	return plan
}

// importRemote seeds an empty journal from the remote payment history.
func (s *LedgerService) importRemote(ctx context.Context) error {
	recs, err := s.gateway.ListRecords(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Remote history not available, starting empty", "error", err)
		return nil
	}

	var entries []ledger.Entry
	for _, rec := range recs {
		p, err := remote.DecodeRecord(rec)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed remote record", "id", rec.ID, "error", err)
			continue
		}
		localID, err := s.journal.CreatePayment(ctx, p, uuid.NewString())
		if err != nil {
			return fmt.Errorf("import remote record %d: %w", rec.ID, err)
		}
		if err := s.journal.SetRemoteID(ctx, localID, rec.ID); err != nil {
			return fmt.Errorf("import remote record %d: %w", rec.ID, err)
		}
		entries = append(entries, ledger.Entry{
			Date:       p.Date,
			AmountPaid: p.Amount,
			Status:     p.Status,
			LocalID:    localID,
			RemoteID:   rec.ID,
		})
	}
	s.ledger.Restore(entries)

	slog.InfoContext(ctx, "Imported remote payment history", "entries", len(entries))
	return nil
}

// RegisterPayment parses, validates and appends one payment. The journal
// write must succeed; the remote mirror is best effort. Returns the
// resulting entry (with the clamped amount when the payment overpaid)
// and whether it reached the remote store synchronously.
func (s *LedgerService) RegisterPayment(ctx context.Context, amount, date, status string) (ledger.Entry, bool, error) {
	p, err := parsePayment(amount, date, status)
	if err != nil {
		return ledger.Entry{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.ledger.Append(p)
	if err != nil {
		return ledger.Entry{}, false, err
	}

	// The clamped amount is what gets journaled, so a replay re-folds to
	// the same sequence.
	journaled := core.Payment{Date: entry.Date, Amount: entry.AmountPaid, Status: entry.Status}
	localID, err := s.journal.CreatePayment(ctx, journaled, uuid.NewString())
	if err != nil {
		s.ledger.RemoveLast()
		return ledger.Entry{}, false, fmt.Errorf("journal payment: %w", err)
	}
	s.ledger.SetLocalID(entry.Sequence, localID)
	entry.LocalID = localID

	mirrored := s.mirrorCreate(ctx, &entry)
	return entry, mirrored, nil
}

// mirrorCreate pushes a fresh entry to the remote store. On failure the
// journal row is flagged and, when a pipe is configured, a retry message
// is queued.
func (s *LedgerService) mirrorCreate(ctx context.Context, entry *ledger.Entry) bool {
	if s.online {
		remoteID, err := s.gateway.CreateRecord(ctx, remote.EncodeEntry(*entry, time.Now()))
		if err == nil {
			if jerr := s.journal.SetRemoteID(ctx, entry.LocalID, remoteID); jerr != nil {
				slog.ErrorContext(ctx, "Failed to record remote id", "local_id", entry.LocalID, "error", jerr)
			}
			s.ledger.SetRemoteID(entry.Sequence, remoteID)
			entry.RemoteID = remoteID
			return true
		}
		slog.WarnContext(ctx, "Failed to mirror payment", "local_id", entry.LocalID, "error", err)
		s.online = false
	}

	if err := s.journal.MarkMirrorError(ctx, entry.LocalID); err != nil {
		slog.ErrorContext(ctx, "Failed to flag mirror error", "local_id", entry.LocalID, "error", err)
	}
	s.publish(ctx, amqp.NewMirrorMessage(amqp.OpCreate, entry.LocalID, 0))
	return false
}

// UndoLast removes the most recent payment from the ledger, the journal
// and, best effort, the remote store.
func (s *LedgerService) UndoLast(ctx context.Context) (ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledger.Len() == 0 {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	last, err := s.ledger.Entry(s.ledger.Len())
	if err != nil {
		return ledger.Entry{}, err
	}

	if last.LocalID != 0 {
		if err := s.journal.DeletePayment(ctx, last.LocalID); err != nil {
			return ledger.Entry{}, fmt.Errorf("remove journal row: %w", err)
		}
	}
	s.ledger.RemoveLast()

	if last.RemoteID != 0 {
		if s.online {
			if err := s.gateway.DeleteRecord(ctx, last.RemoteID); err == nil {
				return last, nil
			}
			slog.WarnContext(ctx, "Failed to delete remote record", "remote_id", last.RemoteID)
			s.online = false
		}
		s.publish(ctx, amqp.NewMirrorMessage(amqp.OpDelete, last.LocalID, last.RemoteID))
	}
	return last, nil
}

// ToggleStatus flips paid/pending on one entry. The numbers never move;
// only the flag is updated locally and mirrored.
func (s *LedgerService) ToggleStatus(ctx context.Context, sequence int) (ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.ledger.ToggleStatus(sequence)
	if err != nil {
		return ledger.Entry{}, err
	}

	if entry.LocalID != 0 {
		if err := s.journal.UpdateStatus(ctx, entry.LocalID, entry.Status); err != nil {
			s.ledger.ToggleStatus(sequence) // revert
			return ledger.Entry{}, fmt.Errorf("journal status: %w", err)
		}
	}

	if entry.RemoteID != 0 {
		patch := map[string]any{"status": remote.StatusToWire(entry.Status)}
		if s.online {
			if err := s.gateway.UpdateRecord(ctx, entry.RemoteID, patch); err == nil {
				return entry, nil
			}
			slog.WarnContext(ctx, "Failed to mirror status change", "remote_id", entry.RemoteID)
			s.online = false
		}
		s.publish(ctx, amqp.NewMirrorMessage(amqp.OpStatus, entry.LocalID, entry.RemoteID))
	}
	return entry, nil
}

// ClearHistory wipes the journal and the ledger, then clears the remote
// collection best effort.
func (s *LedgerService) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.journal.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clear journal: %w", err)
	}
	s.ledger.Clear()

	if s.online {
		if err := s.gateway.DeleteAllRecords(ctx); err != nil {
			slog.WarnContext(ctx, "Failed to clear remote records", "error", err)
			s.online = false
		}
	}
	return nil
}

func (s *LedgerService) publish(ctx context.Context, msg *amqp.MirrorMessage) {
	if s.pub == nil {
		slog.WarnContext(ctx, "Mirror pipe not configured, skipping retry message",
			"op", msg.Op, "payment_id", msg.PaymentID)
		return
	}
	if err := s.pub.PublishMirror(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish mirror message",
			"op", msg.Op, "payment_id", msg.PaymentID, "error", err)
	}
}

// Snapshot is the full ledger state handed to the API layer.
type Snapshot struct {
	Entries          []ledger.Entry
	InitialPrincipal core.Money
	MonthlyRate      decimal.Decimal
	TotalPaid        core.Money
	Balance          core.Money
	Settled          bool
	Online           bool
}

// Snapshot returns a consistent copy of the current ledger state.
func (s *LedgerService) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Entries:          s.ledger.Entries(),
		InitialPrincipal: s.ledger.InitialPrincipal(),
		MonthlyRate:      s.ledger.Rate(),
		TotalPaid:        s.ledger.TotalPaid(),
		Balance:          s.ledger.Balance(),
		Settled:          s.ledger.Settled(),
		Online:           s.online,
	}
}

// SuggestedNextDate proposes the date for the next payment form.
func (s *LedgerService) SuggestedNextDate(now time.Time) core.Date {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.SuggestedNextDate(now)
}

func parsePayment(amount, date, status string) (core.Payment, error) {
	cents, err := core.ParseDecimalToCents(amount)
	if err != nil {
		return core.Payment{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Payment{}, err
	}
	st, err := core.ParseStatus(status)
	if err != nil {
		return core.Payment{}, err
	}
	return core.Payment{Date: d, Amount: core.Money{Cents: cents}, Status: st}, nil
}
