// Package remote is the gateway to the json-server document store that
// mirrors the ledger. Every call shares one short fixed timeout and every
// failure is a soft error wrapping ErrUnavailable; the in-memory ledger
// stays authoritative regardless of what happens here.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AdleyRodrigues/financing-simulator/internal/core"
	"github.com/AdleyRodrigues/financing-simulator/internal/ledger"
)

// ErrUnavailable wraps every gateway failure: timeouts, refused
// connections, non-2xx statuses and malformed bodies.
var ErrUnavailable = errors.New("remote store unavailable")

const (
	recordsPath = "/registros"
	configPath  = "/config"

	statusPaidWire    = "Pago"
	statusPendingWire = "Pendente"
)

// Record is one payment document in the /registros collection, in the
// wire layout the original tool established.
type Record struct {
	ID        int64   `json:"id,omitempty"`
	Mes       int     `json:"mes"`
	Data      string  `json:"data"`
	Valor     float64 `json:"valor"`
	Juros     float64 `json:"juros"`
	Amort     float64 `json:"amort"`
	Saldo     float64 `json:"saldo"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

// Config is the /config document: initial debt and monthly rate.
type Config struct {
	DividaInicial float64 `json:"divida_inicial"`
	Taxa          float64 `json:"taxa"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Ping probes the records collection once. Failure means offline mode.
func (c *Client) Ping(ctx context.Context) bool {
	var recs []Record
	if err := c.do(ctx, http.MethodGet, recordsPath, nil, &recs); err != nil {
		slog.WarnContext(ctx, "Remote store not reachable, running offline", "base_url", c.baseURL, "error", err)
		return false
	}
	return true
}

// ListRecords returns all payment documents ordered by id, which is the
// chronological order the documents were created in.
func (c *Client) ListRecords(ctx context.Context) ([]Record, error) {
	var recs []Record
	if err := c.do(ctx, http.MethodGet, recordsPath, nil, &recs); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}

// CreateRecord posts a new payment document and returns the id the store
// assigned to it.
func (c *Client) CreateRecord(ctx context.Context, rec Record) (int64, error) {
	rec.ID = 0
	var created Record
	if err := c.do(ctx, http.MethodPost, recordsPath, rec, &created); err != nil {
		return 0, fmt.Errorf("create record: %w", err)
	}
	return created.ID, nil
}

// UpdateRecord patches the given fields of an existing document.
func (c *Client) UpdateRecord(ctx context.Context, id int64, patch map[string]any) error {
	path := fmt.Sprintf("%s/%d", recordsPath, id)
	if err := c.do(ctx, http.MethodPatch, path, patch, nil); err != nil {
		return fmt.Errorf("update record %d: %w", id, err)
	}
	return nil
}

// DeleteRecord removes one document.
func (c *Client) DeleteRecord(ctx context.Context, id int64) error {
	path := fmt.Sprintf("%s/%d", recordsPath, id)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	return nil
}

// DeleteAllRecords lists the collection and deletes each document, since
// the store has no bulk delete.
func (c *Client) DeleteAllRecords(ctx context.Context) error {
	recs, err := c.ListRecords(ctx)
	if err != nil {
		return fmt.Errorf("delete all records: %w", err)
	}
	var failed int
	for _, rec := range recs {
		if err := c.DeleteRecord(ctx, rec.ID); err != nil {
			slog.WarnContext(ctx, "Failed deleting remote record", "id", rec.ID, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("delete all records: %w: %d of %d deletions failed", ErrUnavailable, failed, len(recs))
	}
	return nil
}

// GetConfig fetches the repayment plan the store holds. The collection
// layout is an array; the first document wins.
func (c *Client) GetConfig(ctx context.Context) (*Config, error) {
	var cfgs []Config
	if err := c.do(ctx, http.MethodGet, configPath, nil, &cfgs); err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("get config: %w: empty config collection", ErrUnavailable)
	}
	return &cfgs[0], nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%w: marshal payload: %v", ErrUnavailable, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s returned status %d", ErrUnavailable, method, path, resp.StatusCode)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

// EncodeEntry converts a ledger entry to its wire document.
func EncodeEntry(e ledger.Entry, createdAt time.Time) Record {
	return Record{
		Mes:       e.Sequence,
		Data:      e.Date.BR(),
		Valor:     e.AmountPaid.Reais(),
		Juros:     e.Interest.Reais(),
		Amort:     e.Amortization.Reais(),
		Saldo:     e.Balance.Reais(),
		Status:    StatusToWire(e.Status),
		CreatedAt: createdAt.UTC().Format(time.RFC3339),
	}
}

// DecodeRecord extracts the input fields of a wire document: the derived
// amounts are ignored on purpose, the ledger fold recomputes them.
func DecodeRecord(rec Record) (core.Payment, error) {
	date, err := core.ParseDate(rec.Data)
	if err != nil {
		return core.Payment{}, fmt.Errorf("record %d: %w", rec.ID, err)
	}
	amount := AmountFromWire(rec.Valor)
	if err := amount.Validate(); err != nil {
		return core.Payment{}, fmt.Errorf("record %d: %w", rec.ID, err)
	}
	return core.Payment{
		Date:   date,
		Amount: amount,
		Status: StatusFromWire(rec.Status),
	}, nil
}

// StatusToWire maps the domain status onto the store's values.
func StatusToWire(s core.Status) string {
	if s == core.StatusPending {
		return statusPendingWire
	}
	return statusPaidWire
}

// StatusFromWire maps the store's status values back; anything unknown
// falls back to paid, matching the original loader.
func StatusFromWire(s string) core.Status {
	if s == statusPendingWire {
		return core.StatusPending
	}
	return core.StatusPaid
}

// AmountFromWire converts a currency float from a document to cents with
// half-up rounding.
func AmountFromWire(v float64) core.Money {
	cents := decimal.NewFromFloat(v).Mul(decimal.New(100, 0)).Round(0).IntPart()
	return core.Money{Cents: cents}
}
