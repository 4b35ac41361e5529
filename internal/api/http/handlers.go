package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"godown-ledger/internal/audit"
	"godown-ledger/internal/godown/application"
	godown "godown-ledger/internal/godown/domain"
)

const dateLayout = "2006-01-02"

// LedgerHandler serves chronological processing queries.
type LedgerHandler struct {
	processor *application.LedgerProcessor
}

// NewLedgerHandler constructs a LedgerHandler.
func NewLedgerHandler(processor *application.LedgerProcessor) *LedgerHandler {
	return &LedgerHandler{processor: processor}
}

// ServeHTTP handles GET /api/v1/ledger.
func (h *LedgerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.processor == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	binID, err := parseBinID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := application.ProcessOptions{
		DetectAnomalies: parseBoolQuery(r, "anomalies"),
	}
	if from, ok, err := parseDateQuery(r, "from"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	} else if ok {
		opts.From = &from
	}
	if to, ok, err := parseDateQuery(r, "to"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	} else if ok {
		opts.To = &to
	}

	result, err := h.processor.ProcessChronologically(r.Context(), binID, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ReprocessHandler triggers audited recalculation.
type ReprocessHandler struct {
	processor *application.LedgerProcessor
}

// NewReprocessHandler constructs a ReprocessHandler.
func NewReprocessHandler(processor *application.LedgerProcessor) *ReprocessHandler {
	return &ReprocessHandler{processor: processor}
}

// ServeHTTP handles POST /api/v1/ledger/reprocess.
func (h *ReprocessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.processor == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		BinID           int64  `json:"bin_id"`
		From            string `json:"from"`
		Actor           string `json:"actor"`
		DetectAnomalies bool   `json:"detect_anomalies"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	from, err := time.Parse(dateLayout, req.From)
	if err != nil {
		http.Error(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	result, err := h.processor.ReprocessFromDate(r.Context(), req.BinID, from, req.Actor,
		application.ProcessOptions{DetectAnomalies: req.DetectAnomalies})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// OpeningBalanceHandler resolves and sets opening balances.
type OpeningBalanceHandler struct {
	resolver *application.OpeningBalanceResolver
}

// NewOpeningBalanceHandler constructs an OpeningBalanceHandler.
func NewOpeningBalanceHandler(resolver *application.OpeningBalanceResolver) *OpeningBalanceHandler {
	return &OpeningBalanceHandler{resolver: resolver}
}

// ServeHTTP handles GET and POST /api/v1/opening-balance.
func (h *OpeningBalanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.resolver == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.resolve(w, r)
	case http.MethodPost:
		h.set(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *OpeningBalanceHandler) resolve(w http.ResponseWriter, r *http.Request) {
	binID, err := parseBinID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, ok, err := parseDateQuery(r, "date")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !ok {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}

	resolved, err := h.resolver.Resolve(r.Context(), binID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

func (h *OpeningBalanceHandler) set(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BinID     int64           `json:"bin_id"`
		Date      string          `json:"date"`
		Bags      int64           `json:"bags"`
		NetWeight decimal.Decimal `json:"net_weight"`
		Actor     string          `json:"actor"`
		Remarks   string          `json:"remarks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	result, err := h.resolver.SetOpeningBalance(r.Context(), application.SetOpeningBalanceCommand{
		BinID:     req.BinID,
		Date:      date,
		Bags:      req.Bags,
		NetWeight: req.NetWeight,
		Actor:     req.Actor,
		Remarks:   req.Remarks,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

// AuditReader reads back the audit trail for a bin.
type AuditReader interface {
	ListByBin(ctx context.Context, binID int64, limit int) ([]audit.Entry, error)
}

// AuditTrailHandler serves forensic audit queries.
type AuditTrailHandler struct {
	reader AuditReader
}

// NewAuditTrailHandler constructs an AuditTrailHandler.
func NewAuditTrailHandler(reader AuditReader) *AuditTrailHandler {
	return &AuditTrailHandler{reader: reader}
}

// ServeHTTP handles GET /api/v1/audit-trail.
func (h *AuditTrailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.reader == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	binID, err := parseBinID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	entries, err := h.reader.ListByBin(r.Context(), binID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func parseBinID(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("bin_id")
	if raw == "" {
		return 0, errors.New("bin_id is required")
	}
	binID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || binID <= 0 {
		return 0, errors.New("bin_id must be a positive integer")
	}
	return binID, nil
}

func parseDateQuery(r *http.Request, key string) (time.Time, bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, false, nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, false, errors.New(key + " must be YYYY-MM-DD")
	}
	return parsed, true, nil
}

func parseBoolQuery(r *http.Request, key string) bool {
	raw := r.URL.Query().Get(key)
	return raw == "1" || raw == "true"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, godown.ErrBinNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, godown.ErrInvalidBinID),
		errors.Is(err, godown.ErrInvalidDate),
		errors.Is(err, godown.ErrNegativeQuantity),
		errors.Is(err, godown.ErrWeightlessBags):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
