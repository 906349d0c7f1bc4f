package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/shieldvault/ivm/internal/access"
	"github.com/shieldvault/ivm/internal/coverage"
	"github.com/shieldvault/ivm/internal/vault"
)

// stubVenue is a 1:1 venue; read-only endpoints never settle anything.
type stubVenue struct{}

func (stubVenue) Deposit(_ context.Context, assets sdkmath.Int, _ string) (sdkmath.Int, error) {
	return assets, nil
}

func (stubVenue) Redeem(_ context.Context, units sdkmath.Int, _, _ string) (sdkmath.Int, error) {
	return units, nil
}

func (stubVenue) Withdraw(_ context.Context, assets sdkmath.Int, _, _ string) (sdkmath.Int, error) {
	return assets, nil
}

func (stubVenue) ConvertToAssets(_ context.Context, units sdkmath.Int) (sdkmath.Int, error) {
	return units, nil
}

func (stubVenue) PreviewRedeem(_ context.Context, units sdkmath.Int) (sdkmath.Int, error) {
	return units, nil
}

func (stubVenue) TransferUnits(context.Context, string, sdkmath.Int) error { return nil }
func (stubVenue) Close() error                                            { return nil }

type stubCoverage struct{}

func (stubCoverage) BuyCover(context.Context, coverage.BuyParams) (uint64, error) { return 1, nil }
func (stubCoverage) RedeemCover(context.Context, coverage.RedeemParams) (sdkmath.Int, string, error) {
	return sdkmath.ZeroInt(), "", nil
}
func (stubCoverage) IsCoverExpired(context.Context, uint64) (bool, error) { return false, nil }
func (stubCoverage) ActiveCoverAmount(context.Context, uint64) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), nil
}
func (stubCoverage) Close() error { return nil }

type stubCustodian struct{}

func (stubCustodian) TransferIn(context.Context, string, sdkmath.Int) error  { return nil }
func (stubCustodian) TransferOut(context.Context, string, sdkmath.Int) error { return nil }
func (stubCustodian) Close() error                                           { return nil }

func newTestServer(t *testing.T) *WebServer {
	t.Helper()

	gate, err := access.NewController("adm", "op")
	require.NoError(t, err)

	v, err := vault.New(vault.Config{
		Address:          "vault-test",
		Venue:            stubVenue{},
		Coverage:         stubCoverage{},
		Custodian:        stubCustodian{},
		Gate:             gate,
		MaxManagedAssets: sdkmath.NewInt(1_000_000),
		DepositFeeBps:    500,
	})
	require.NoError(t, err)

	return NewWebServer("0", v, gate, 6)
}

func TestParseLimit(t *testing.T) {
	mk := func(q string) *http.Request {
		return httptest.NewRequest(http.MethodGet, "/api/receipts"+q, nil)
	}
	require.Equal(t, 50, parseLimit(mk("")))
	require.Equal(t, 10, parseLimit(mk("?limit=10")))
	require.Equal(t, 50, parseLimit(mk("?limit=0")))
	require.Equal(t, 50, parseLimit(mk("?limit=-3")))
	require.Equal(t, 50, parseLimit(mk("?limit=5000")))
	require.Equal(t, 50, parseLimit(mk("?limit=abc")))
}

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{access.ErrUnauthorized, http.StatusForbidden},
		{access.ErrPaused, http.StatusConflict},
		{vault.ErrZeroAmount, http.StatusBadRequest},
		{vault.ErrSlippageExceeded, http.StatusBadRequest},
		{vault.ErrDepositExceedsCapacity, http.StatusBadRequest},
		{vault.ErrNoProposalFound, http.StatusNotFound},
		{vault.ErrNoFeesToClaim, http.StatusNotFound},
		{vault.ErrTimelockNotElapsed, http.StatusTooEarly},
		{fmt.Errorf("wrapped: %w", vault.ErrInsufficientShares), http.StatusBadRequest},
		{fmt.Errorf("something else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, "error %v", tc.err)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, tc.err.Error(), body["error"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	ws := newTestServer(t)

	rec := httptest.NewRecorder()
	ws.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, false, body["paused"])
}

func TestPreviewDepositEndpoint(t *testing.T) {
	ws := newTestServer(t)

	// 5% deposit fee on an empty vault: 100 gross quotes 95 shares.
	rec := httptest.NewRecorder()
	ws.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/preview/deposit?assets=100", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "95", body["shares"])
}

func TestPreviewDepositAcceptsDisplayUnits(t *testing.T) {
	ws := newTestServer(t)

	// "0.0001" at precision 6 is 100 base units; same quote as ?assets=100.
	rec := httptest.NewRecorder()
	ws.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/preview/deposit?assets=0.0001", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "95", body["shares"])

	// Sub-base-unit dust truncates away and quotes zero shares.
	rec = httptest.NewRecorder()
	ws.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/preview/deposit?assets=0.0000000009", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "0", body["shares"])
}

func TestPreviewEndpointRejectsBadAmount(t *testing.T) {
	ws := newTestServer(t)

	rec := httptest.NewRecorder()
	ws.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/preview/deposit?assets=-5", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	ws.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/preview/deposit", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLimitsEndpoint(t *testing.T) {
	ws := newTestServer(t)

	rec := httptest.NewRecorder()
	ws.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/limits", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "1000000", body["max_deposit"])
	require.Equal(t, "950000", body["max_mint"])
}

func TestSetRateToleranceEndpoint(t *testing.T) {
	ws := newTestServer(t)

	rec := httptest.NewRecorder()
	ws.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/rate-tolerance",
		strings.NewReader(`{"caller":"adm","bps":300}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]uint64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, uint64(300), body["rate_deviation_tolerance_bps"])

	rec = httptest.NewRecorder()
	ws.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/rate-tolerance",
		strings.NewReader(`{"caller":"op","bps":300}`)))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBalanceEndpoint(t *testing.T) {
	ws := newTestServer(t)

	rec := httptest.NewRecorder()
	ws.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/balance/nobody", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "0", body["shares"])
}
