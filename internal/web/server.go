package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shieldvault/ivm/internal/access"
	"github.com/shieldvault/ivm/internal/logger"
	"github.com/shieldvault/ivm/internal/metrics"
	"github.com/shieldvault/ivm/internal/state"
	"github.com/shieldvault/ivm/internal/types"
	"github.com/shieldvault/ivm/internal/utils"
	"github.com/shieldvault/ivm/internal/vault"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the tokenized-vault surface over HTTP.
type WebServer struct {
	router         *mux.Router
	port           string
	vault          *vault.Vault
	gate           *access.Controller
	assetPrecision int
}

// NewWebServer creates a new web server instance.
func NewWebServer(port string, v *vault.Vault, gate *access.Controller, assetPrecision int) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:         mux.NewRouter(),
		port:           port,
		vault:          v,
		gate:           gate,
		assetPrecision: assetPrecision,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes.
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()

	// Read-only surface
	api.HandleFunc("/vault/summary", ws.handleGetSummary).Methods("GET")
	api.HandleFunc("/snapshots", ws.handleGetSnapshots).Methods("GET")
	api.HandleFunc("/receipts", ws.handleGetReceipts).Methods("GET")
	api.HandleFunc("/fees/history", ws.handleGetFeeHistory).Methods("GET")
	api.HandleFunc("/preview/deposit", ws.handlePreviewDeposit).Methods("GET")
	api.HandleFunc("/preview/mint", ws.handlePreviewMint).Methods("GET")
	api.HandleFunc("/preview/withdraw", ws.handlePreviewWithdraw).Methods("GET")
	api.HandleFunc("/preview/redeem", ws.handlePreviewRedeem).Methods("GET")
	api.HandleFunc("/convert/shares", ws.handleConvertToShares).Methods("GET")
	api.HandleFunc("/convert/assets", ws.handleConvertToAssets).Methods("GET")
	api.HandleFunc("/limits", ws.handleGetLimits).Methods("GET")
	api.HandleFunc("/limits/{account}", ws.handleGetAccountLimits).Methods("GET")
	api.HandleFunc("/balance/{account}", ws.handleGetBalance).Methods("GET")

	// User operations
	api.HandleFunc("/deposit", ws.handleDeposit).Methods("POST")
	api.HandleFunc("/mint", ws.handleMint).Methods("POST")
	api.HandleFunc("/withdraw", ws.handleWithdraw).Methods("POST")
	api.HandleFunc("/redeem", ws.handleRedeem).Methods("POST")

	// Operator operations
	api.HandleFunc("/operator/invest", ws.handleInvest).Methods("POST")
	api.HandleFunc("/operator/uninvest", ws.handleUninvest).Methods("POST")
	api.HandleFunc("/operator/cover/buy", ws.handleBuyCover).Methods("POST")
	api.HandleFunc("/operator/cover/redeem", ws.handleRedeemCover).Methods("POST")

	// Admin operations
	api.HandleFunc("/admin/fees/propose", ws.handleProposeFee).Methods("POST")
	api.HandleFunc("/admin/fees/apply", ws.handleApplyFee).Methods("POST")
	api.HandleFunc("/admin/fees/claim", ws.handleClaimFees).Methods("POST")
	api.HandleFunc("/admin/limit", ws.handleSetLimit).Methods("POST")
	api.HandleFunc("/admin/rate-tolerance", ws.handleSetRateTolerance).Methods("POST")
	api.HandleFunc("/admin/pause", ws.handlePause).Methods("POST")
	api.HandleFunc("/admin/unpause", ws.handleUnpause).Methods("POST")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// corsMiddleware adds CORS headers to all responses.
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request.
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		webLogger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps a vault error to an HTTP status and writes the error body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, access.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, access.ErrPaused), errors.Is(err, access.ErrNotPaused):
		status = http.StatusConflict
	case errors.Is(err, vault.ErrZeroAmount),
		errors.Is(err, vault.ErrFeeOutOfBound),
		errors.Is(err, vault.ErrSlippageExceeded),
		errors.Is(err, vault.ErrDepositExceedsCapacity),
		errors.Is(err, vault.ErrInvestExceedsCover),
		errors.Is(err, vault.ErrInsufficientShares),
		errors.Is(err, vault.ErrInsufficientIdle),
		errors.Is(err, vault.ErrVenueBadRate),
		errors.Is(err, utils.ErrAmountNegative),
		errors.Is(err, utils.ErrConversionFailed):
		status = http.StatusBadRequest
	case errors.Is(err, vault.ErrNoProposalFound), errors.Is(err, vault.ErrNoFeesToClaim):
		status = http.StatusNotFound
	case errors.Is(err, vault.ErrTimelockNotElapsed):
		status = http.StatusTooEarly
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// recordReceipt persists an operation receipt and bumps the operation counter.
// Persistence failures are logged, never surfaced to the caller: the operation
// itself already settled.
func recordReceipt(receipt types.OperationReceipt) {
	metrics.RecordOperation(string(receipt.Kind), receipt.Success)
	receipt.ReceiptID = uuid.NewString()
	if _, err := state.SaveOperationReceipt(receipt); err != nil {
		webLogger.Error().Err(err).Str("kind", string(receipt.Kind)).Msg("Failed to persist operation receipt")
	}
}

// handleHealth returns server health status.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"paused": ws.gate.Paused(),
		"time":   time.Now().UTC(),
	})
}

// handleGetSummary returns the live vault accounting summary.
func (ws *WebServer) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	snapshot, err := ws.vault.Snapshot(r.Context(), ws.assetPrecision)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (ws *WebServer) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	snapshots, err := state.GetRecentSnapshots(parseLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (ws *WebServer) handleGetReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := state.GetRecentReceipts(parseLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (ws *WebServer) handleGetFeeHistory(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = string(vault.FeeManagement)
	}
	history, err := state.GetFeeRateHistory(kind, parseLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}
