package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AdleyRodrigues/financing-simulator/internal/core"
	"github.com/AdleyRodrigues/financing-simulator/internal/ledger"
	"github.com/AdleyRodrigues/financing-simulator/internal/services"
)

// Handlers groups the API handler methods around the ledger service.
type Handlers struct {
	svc *services.LedgerService
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidStatus):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrSettled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- DTOs ---

type moneyDTO struct {
	Cents     int64  `json:"cents"`
	Formatted string `json:"formatted"`
}

func money(m core.Money) moneyDTO {
	return moneyDTO{Cents: m.Cents, Formatted: m.BRL()}
}

type entryDTO struct {
	Sequence     int      `json:"sequence"`
	Date         string   `json:"date"`
	AmountPaid   moneyDTO `json:"amount_paid"`
	Interest     moneyDTO `json:"interest"`
	Amortization moneyDTO `json:"amortization"`
	Balance      moneyDTO `json:"balance"`
	Status       string   `json:"status"`
	Mirrored     bool     `json:"mirrored"`
}

func entry(e ledger.Entry) entryDTO {
	return entryDTO{
		Sequence:     e.Sequence,
		Date:         e.Date.ISO(),
		AmountPaid:   money(e.AmountPaid),
		Interest:     money(e.Interest),
		Amortization: money(e.Amortization),
		Balance:      money(e.Balance),
		Status:       string(e.Status),
		Mirrored:     e.RemoteID != 0,
	}
}

type ledgerDTO struct {
	InitialPrincipal moneyDTO   `json:"initial_principal"`
	MonthlyRate      string     `json:"monthly_rate"`
	TotalPaid        moneyDTO   `json:"total_paid"`
	Balance          moneyDTO   `json:"balance"`
	Settled          bool       `json:"settled"`
	Online           bool       `json:"online"`
	Entries          []entryDTO `json:"entries"`
}

func snapshot(s services.Snapshot) ledgerDTO {
	entries := make([]entryDTO, len(s.Entries))
	for i, e := range s.Entries {
		entries[i] = entry(e)
	}
	return ledgerDTO{
		InitialPrincipal: money(s.InitialPrincipal),
		MonthlyRate:      s.MonthlyRate.String(),
		TotalPaid:        money(s.TotalPaid),
		Balance:          money(s.Balance),
		Settled:          s.Settled,
		Online:           s.Online,
		Entries:          entries,
	}
}

// --- GetLedger ---

func (h *Handlers) GetLedger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshot(h.svc.Snapshot()))
}

// --- GetNextDate ---

func (h *Handlers) GetNextDate(w http.ResponseWriter, r *http.Request) {
	d := h.svc.SuggestedNextDate(time.Now())
	writeJSON(w, http.StatusOK, map[string]string{"date": d.ISO()})
}

// --- RegisterPayment ---

type registerPaymentRequest struct {
	Amount string `json:"amount"`
	Date   string `json:"date"`
	Status string `json:"status"`
}

type paymentResponse struct {
	Entry    entryDTO `json:"entry"`
	Mirrored bool     `json:"mirrored"`
}

func (h *Handlers) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	var req registerPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	e, mirrored, err := h.svc.RegisterPayment(r.Context(), req.Amount, req.Date, req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, paymentResponse{Entry: entry(e), Mirrored: mirrored})
}

// --- UndoLastPayment ---

func (h *Handlers) UndoLastPayment(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.UndoLast(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": entry(e)})
}

// --- ToggleStatus ---

func (h *Handlers) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.Atoi(chi.URLParam(r, "sequence"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sequence number")
		return
	}

	e, err := h.svc.ToggleStatus(r.Context(), seq)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry(e))
}

// --- ClearHistory ---

func (h *Handlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearHistory(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot(h.svc.Snapshot()))
}
