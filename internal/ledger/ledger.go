// Package ledger implements the debt repayment ledger: an ordered
// sequence of payments folded over the initial principal with monthly
// interest. Derived fields are recomputed from scratch on every mutation
// so rounding never accumulates across incremental edits.
package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AdleyRodrigues/financing-simulator/internal/core"
)

var (
	ErrSettled     = errors.New("debt already settled")
	ErrNotFound    = errors.New("payment not found")
	ErrInvalidPlan = errors.New("invalid repayment plan")
)

// Entry is one row of the ledger. Date, AmountPaid and Status are inputs;
// Sequence, Interest, Amortization and Balance are assigned by the fold.
// AmountPaid may be clamped down by the fold when it would overpay past a
// zero balance. LocalID and RemoteID carry the journal row and remote
// store document ids when known; zero means absent.
type Entry struct {
	Sequence     int
	Date         core.Date
	AmountPaid   core.Money
	Interest     core.Money
	Amortization core.Money
	Balance      core.Money
	Status       core.Status
	LocalID      int64
	RemoteID     int64
}

// Ledger owns the payment sequence and its aggregates. It performs no
// I/O; callers persist and mirror entries around it.
type Ledger struct {
	principal int64
	rate      decimal.Decimal
	entries   []Entry
	totalPaid int64
	balance   int64
}

// New creates an empty ledger for the given initial principal and monthly
// interest rate. The rate must lie in [0, 1).
func New(principal core.Money, rate decimal.Decimal) (*Ledger, error) {
	if principal.Cents <= 0 {
		return nil, ErrInvalidPlan
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.New(1, 0)) {
		return nil, ErrInvalidPlan
	}
	return &Ledger{
		principal: principal.Cents,
		rate:      rate,
		balance:   principal.Cents,
	}, nil
}

// Append validates and appends a payment, then recomputes the whole
// sequence. Appending to a settled ledger is rejected with ErrSettled.
// The returned entry reflects the clamped amount when the payment would
// have overpaid past zero.
func (l *Ledger) Append(p core.Payment) (Entry, error) {
	if err := p.Validate(); err != nil {
		return Entry{}, err
	}
	if l.Settled() {
		return Entry{}, ErrSettled
	}
	l.entries = append(l.entries, Entry{
		Date:       p.Date,
		AmountPaid: p.Amount,
		Status:     p.Status,
	})
	l.recompute()
	return l.entries[len(l.entries)-1], nil
}

// RemoveLast removes the final entry and recomputes. It reports false on
// an empty ledger.
func (l *Ledger) RemoveLast() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	last := l.entries[len(l.entries)-1]
	l.entries = l.entries[:len(l.entries)-1]
	l.recompute()
	return last, true
}

// ToggleStatus flips paid/pending on the entry at the given 1-based
// sequence number. Numeric fields are untouched.
func (l *Ledger) ToggleStatus(sequence int) (Entry, error) {
	e, err := l.at(sequence)
	if err != nil {
		return Entry{}, err
	}
	e.Status = e.Status.Toggle()
	return *e, nil
}

// Clear empties the sequence and resets the aggregates.
func (l *Ledger) Clear() {
	l.entries = nil
	l.recompute()
}

// Restore replaces the sequence with the given entries (only their input
// fields and ids are kept) and recomputes everything. Used at startup to
// replay the journal or an imported remote history.
func (l *Ledger) Restore(entries []Entry) {
	l.entries = make([]Entry, len(entries))
	for i, e := range entries {
		l.entries[i] = Entry{
			Date:       e.Date,
			AmountPaid: e.AmountPaid,
			Status:     e.Status,
			LocalID:    e.LocalID,
			RemoteID:   e.RemoteID,
		}
	}
	l.recompute()
}

// SuggestedNextDate returns one calendar month after the last entry's
// date, or today when the ledger is empty.
func (l *Ledger) SuggestedNextDate(now time.Time) core.Date {
	if len(l.entries) == 0 {
		return core.NewDate(now.Year(), int(now.Month()), now.Day())
	}
	return l.entries[len(l.entries)-1].Date.NextMonth()
}

// SetLocalID records the journal row id for the entry at sequence.
func (l *Ledger) SetLocalID(sequence int, id int64) error {
	e, err := l.at(sequence)
	if err != nil {
		return err
	}
	e.LocalID = id
	return nil
}

// SetRemoteID records the remote store document id for the entry at sequence.
func (l *Ledger) SetRemoteID(sequence int, id int64) error {
	e, err := l.at(sequence)
	if err != nil {
		return err
	}
	e.RemoteID = id
	return nil
}

// Entry returns a copy of the entry at the given sequence number.
func (l *Ledger) Entry(sequence int) (Entry, error) {
	e, err := l.at(sequence)
	if err != nil {
		return Entry{}, err
	}
	return *e, nil
}

// Entries returns a copy of the full sequence.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) Len() int { return len(l.entries) }

func (l *Ledger) TotalPaid() core.Money { return core.Money{Cents: l.totalPaid} }

func (l *Ledger) Balance() core.Money { return core.Money{Cents: l.balance} }

func (l *Ledger) InitialPrincipal() core.Money { return core.Money{Cents: l.principal} }

func (l *Ledger) Rate() decimal.Decimal { return l.rate }

// Settled reports whether the balance has reached zero.
func (l *Ledger) Settled() bool { return l.balance == 0 }

func (l *Ledger) at(sequence int) (*Entry, error) {
	if sequence < 1 || sequence > len(l.entries) {
		return nil, ErrNotFound
	}
	return &l.entries[sequence-1], nil
}

// recompute folds the recurrence over the whole sequence from the initial
// principal, reassigning sequence numbers and aggregates. Each derived
// field is rounded independently per entry, never carried as a running
// float, which keeps the fold deterministic and drift-free.
func (l *Ledger) recompute() {
	balance := l.principal
	var total int64
	for i := range l.entries {
		e := &l.entries[i]
		interest := interestOn(balance, l.rate)
		amortization := e.AmountPaid.Cents - interest
		next := balance - amortization
		if next < 0 {
			// Overpayment: clamp the payment to the exact amount that
			// settles the debt, never past zero.
			amortization += next
			e.AmountPaid.Cents += next
			next = 0
		}
		e.Sequence = i + 1
		e.Interest = core.Money{Cents: interest}
		e.Amortization = core.Money{Cents: amortization}
		e.Balance = core.Money{Cents: next}
		total += e.AmountPaid.Cents
		balance = next
	}
	l.totalPaid = total
	l.balance = balance
}

// interestOn computes balance * rate in cents, rounded half-up.
func interestOn(balanceCents int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(balanceCents).Mul(rate).Round(0).IntPart()
}
