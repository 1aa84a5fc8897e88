package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AdleyRodrigues/financing-simulator/internal/core"
	"github.com/AdleyRodrigues/financing-simulator/internal/ledger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 3*time.Second)
}

func TestListRecordsSortsByID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/registros" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode([]Record{
			{ID: 3, Mes: 3, Data: "15/03/2025", Valor: 1000, Status: "Pago"},
			{ID: 1, Mes: 1, Data: "15/01/2025", Valor: 1000, Status: "Pago"},
			{ID: 2, Mes: 2, Data: "15/02/2025", Valor: 1000, Status: "Pendente"},
		})
	})

	recs, err := c.ListRecords(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 3 || recs[0].ID != 1 || recs[1].ID != 2 || recs[2].ID != 3 {
		t.Fatalf("records not sorted by id: %+v", recs)
	}
}

func TestCreateRecordReturnsAssignedID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/registros" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var rec Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if rec.ID != 0 {
			t.Fatalf("client must not send an id, got %d", rec.ID)
		}
		rec.ID = 42
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(rec)
	})

	id, err := c.CreateRecord(context.Background(), Record{Mes: 1, Data: "15/01/2025", Valor: 1000, Status: "Pago"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != 42 {
		t.Fatalf("id = %d, want 42", id)
	}
}

func TestUpdateAndDeleteRecord(t *testing.T) {
	var gotMethod, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})

	if err := c.UpdateRecord(context.Background(), 7, map[string]any{"status": "Pendente"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if gotMethod != http.MethodPatch || gotPath != "/registros/7" {
		t.Fatalf("update sent %s %s", gotMethod, gotPath)
	}

	if err := c.DeleteRecord(context.Background(), 7); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/registros/7" {
		t.Fatalf("delete sent %s %s", gotMethod, gotPath)
	}
}

func TestDeleteAllRecordsDeletesEachDocument(t *testing.T) {
	deleted := map[string]bool{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode([]Record{{ID: 1}, {ID: 2}})
		case http.MethodDelete:
			deleted[r.URL.Path] = true
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})

	if err := c.DeleteAllRecords(context.Background()); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if !deleted["/registros/1"] || !deleted["/registros/2"] {
		t.Fatalf("deletions missing: %v", deleted)
	}
}

func TestGetConfigTakesFirstDocument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/config" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]Config{{DividaInicial: 75000, Taxa: 0.02}})
	})

	cfg, err := c.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg.DividaInicial != 75000 || cfg.Taxa != 0.02 {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestGetConfigEmptyCollectionIsSoftFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	if _, err := c.GetConfig(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("empty config: got %v, want ErrUnavailable", err)
	}
}

func TestFailuresAreSoft(t *testing.T) {
	// Non-2xx status.
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if _, err := c.ListRecords(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("500: got %v, want ErrUnavailable", err)
	}

	// Connection refused.
	dead := NewClient("http://127.0.0.1:1", time.Second)
	if _, err := dead.ListRecords(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("refused: got %v, want ErrUnavailable", err)
	}
	if dead.Ping(context.Background()) {
		t.Fatal("ping against dead server must report offline")
	}
}

func TestEncodeDecodeEntry(t *testing.T) {
	e := ledger.Entry{
		Sequence:     2,
		Date:         core.NewDate(2025, 2, 28),
		AmountPaid:   core.Money{Cents: 250050},
		Interest:     core.Money{Cents: 49500},
		Amortization: core.Money{Cents: 200550},
		Balance:      core.Money{Cents: 4749450},
		Status:       core.StatusPending,
	}
	rec := EncodeEntry(e, time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC))

	if rec.Mes != 2 || rec.Data != "28/02/2025" || rec.Status != "Pendente" {
		t.Fatalf("encoded = %+v", rec)
	}
	if rec.Valor != 2500.50 || rec.Saldo != 47494.50 {
		t.Fatalf("encoded amounts = %+v", rec)
	}

	p, err := DecodeRecord(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Amount.Cents != 250050 || p.Date.ISO() != "2025-02-28" || p.Status != core.StatusPending {
		t.Fatalf("decoded = %+v", p)
	}
}

func TestDecodeRecordRejectsBadInput(t *testing.T) {
	if _, err := DecodeRecord(Record{ID: 1, Data: "bogus", Valor: 10}); err == nil {
		t.Fatal("bad date must be rejected")
	}
	if _, err := DecodeRecord(Record{ID: 1, Data: "15/01/2025", Valor: 0}); err == nil {
		t.Fatal("zero amount must be rejected")
	}
}
