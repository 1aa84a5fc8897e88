package core

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
)

type (
	Status string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Payment is the raw user input for one ledger row. Interest,
	// amortization and balance are never part of the input; they are
	// derived by the ledger fold.
	Payment struct {
		Date   Date
		Amount Money
		Status Status
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidStatus = errors.New("invalid status")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date string, accepting YYYY-MM-DD and dd/mm/yyyy.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, ErrInvalidDate
}

// ISO returns the date in YYYY-MM-DD form, used by the API and the journal.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

// BR returns the date in dd/mm/yyyy form, used by the remote store documents.
func (d Date) BR() string {
	return d.Format("02/01/2006")
}

// NextMonth returns the same day of the following month, clamped to the
// last day of that month (31/01 -> 28/02 or 29/02).
func (d Date) NextMonth() Date {
	year, month, day := d.Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	if last := daysIn(year, month); day > last {
		day = last
	}
	return NewDate(year, int(month), day)
}

func daysIn(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (s Status) Validate() error {
	switch s {
	case StatusPaid, StatusPending:
		return nil
	}
	return ErrInvalidStatus
}

// Toggle flips paid <-> pending. Informational only; it never affects
// the derived ledger fields.
func (s Status) Toggle() Status {
	if s == StatusPaid {
		return StatusPending
	}
	return StatusPaid
}

// ParseStatus parses a status string; the empty string defaults to paid,
// matching the form default of the original tool.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return StatusPaid, nil
	case StatusPaid:
		return StatusPaid, nil
	case StatusPending:
		return StatusPending, nil
	}
	return "", ErrInvalidStatus
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p Payment) Validate() error {
	if err := p.Date.Validate(); err != nil {
		return err
	}
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	return p.Status.Validate()
}
