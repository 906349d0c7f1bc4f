package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/shieldvault/ivm/internal/coverage"
	"github.com/shieldvault/ivm/internal/state"
	"github.com/shieldvault/ivm/internal/types"
	"github.com/shieldvault/ivm/internal/utils"
	"github.com/shieldvault/ivm/internal/vault"
)

// parseLimit extracts the ?limit query parameter, defaulting to 50.
func parseLimit(r *http.Request) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return 50
}

// parseAmount reads an amount string as base units, or as display units when
// it carries a decimal point ("1.5" at precision 6 reads as 1500000).
func (ws *WebServer) parseAmount(s string) (sdkmath.Int, error) {
	if strings.Contains(s, ".") {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("%w: %q is not a valid amount", utils.ErrConversionFailed, s)
		}
		return utils.DecimalToSDKInt(d, ws.assetPrecision)
	}
	return utils.ParseSDKInt(s)
}

// parseAmountQuery extracts an amount from the named query parameter.
func (ws *WebServer) parseAmountQuery(r *http.Request, name string) (sdkmath.Int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: missing query parameter %q", utils.ErrConversionFailed, name)
	}
	return ws.parseAmount(s)
}

// opRequest is the shared body for user share operations. Amounts are
// base-unit integers in string form; optional bound fields enable the
// slippage-guarded variants.
type opRequest struct {
	Caller    string `json:"caller"`
	Receiver  string `json:"receiver"`
	Assets    string `json:"assets,omitempty"`
	Shares    string `json:"shares,omitempty"`
	MinShares string `json:"min_shares,omitempty"`
	MaxShares string `json:"max_shares,omitempty"`
	MinAssets string `json:"min_assets,omitempty"`
	MaxAssets string `json:"max_assets,omitempty"`
}

func decodeBody(r *http.Request, out interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func (req *opRequest) amount(field string) (sdkmath.Int, error) {
	switch field {
	case "assets":
		return utils.ParseSDKInt(req.Assets)
	case "shares":
		return utils.ParseSDKInt(req.Shares)
	}
	return sdkmath.ZeroInt(), errors.New("unknown amount field: " + field)
}

// optionalAmount parses a bound field, returning nil when absent.
func optionalAmount(s string) (*sdkmath.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := utils.ParseSDKInt(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

type opResponse struct {
	Assets string `json:"assets"`
	Shares string `json:"shares"`
	Fee    string `json:"fee"`
}

func toOpResponse(res vault.OpResult) opResponse {
	return opResponse{Assets: res.Assets.String(), Shares: res.Shares.String(), Fee: res.Fee.String()}
}

// --- Previews and conversions ---

func (ws *WebServer) handlePreviewDeposit(w http.ResponseWriter, r *http.Request) {
	assets, err := ws.parseAmountQuery(r, "assets")
	if err != nil {
		writeError(w, err)
		return
	}
	shares, err := ws.vault.PreviewDeposit(r.Context(), assets)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"shares": shares.String()})
}

func (ws *WebServer) handlePreviewMint(w http.ResponseWriter, r *http.Request) {
	shares, err := ws.parseAmountQuery(r, "shares")
	if err != nil {
		writeError(w, err)
		return
	}
	assets, err := ws.vault.PreviewMint(r.Context(), shares)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"assets": assets.String()})
}

func (ws *WebServer) handlePreviewWithdraw(w http.ResponseWriter, r *http.Request) {
	assets, err := ws.parseAmountQuery(r, "assets")
	if err != nil {
		writeError(w, err)
		return
	}
	shares, err := ws.vault.PreviewWithdraw(r.Context(), assets)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"shares": shares.String()})
}

func (ws *WebServer) handlePreviewRedeem(w http.ResponseWriter, r *http.Request) {
	shares, err := ws.parseAmountQuery(r, "shares")
	if err != nil {
		writeError(w, err)
		return
	}
	assets, err := ws.vault.PreviewRedeem(r.Context(), shares)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"assets": assets.String()})
}

func (ws *WebServer) handleConvertToShares(w http.ResponseWriter, r *http.Request) {
	assets, err := ws.parseAmountQuery(r, "assets")
	if err != nil {
		writeError(w, err)
		return
	}
	shares, err := ws.vault.ConvertToShares(r.Context(), assets)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"shares": shares.String()})
}

func (ws *WebServer) handleConvertToAssets(w http.ResponseWriter, r *http.Request) {
	shares, err := ws.parseAmountQuery(r, "shares")
	if err != nil {
		writeError(w, err)
		return
	}
	assets, err := ws.vault.ConvertToAssets(r.Context(), shares)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"assets": assets.String()})
}

func (ws *WebServer) handleGetLimits(w http.ResponseWriter, r *http.Request) {
	maxDeposit, err := ws.vault.MaxDeposit(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	maxMint, err := ws.vault.MaxMint(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"max_deposit": maxDeposit.String(),
		"max_mint":    maxMint.String(),
	})
}

func (ws *WebServer) handleGetAccountLimits(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]
	maxWithdraw, err := ws.vault.MaxWithdraw(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"max_withdraw": maxWithdraw.String(),
		"max_redeem":   ws.vault.MaxRedeem(account).String(),
	})
}

func (ws *WebServer) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]
	writeJSON(w, http.StatusOK, map[string]string{
		"shares": ws.vault.BalanceOf(account).String(),
	})
}

// --- User operations ---

func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req opRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	assets, err := req.amount("assets")
	if err != nil {
		writeError(w, err)
		return
	}
	minShares, err := optionalAmount(req.MinShares)
	if err != nil {
		writeError(w, err)
		return
	}

	var res vault.OpResult
	if minShares != nil {
		res, err = ws.vault.DepositWithMinShares(r.Context(), req.Caller, req.Receiver, assets, *minShares)
	} else {
		res, err = ws.vault.Deposit(r.Context(), req.Caller, req.Receiver, assets)
	}

	receipt := types.NewReceipt(types.OpDeposit, req.Caller)
	receipt.Counterparty = req.Receiver
	if err != nil {
		receipt.Message = err.Error()
		recordReceipt(receipt)
		writeError(w, err)
		return
	}
	receipt.Success = true
	receipt.AssetsIn = res.Assets
	receipt.SharesMinted = res.Shares
	receipt.FeePaid = res.Fee
	recordReceipt(receipt)

	writeJSON(w, http.StatusOK, toOpResponse(res))
}

func (ws *WebServer) handleMint(w http.ResponseWriter, r *http.Request) {
	var req opRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	shares, err := req.amount("shares")
	if err != nil {
		writeError(w, err)
		return
	}
	maxAssets, err := optionalAmount(req.MaxAssets)
	if err != nil {
		writeError(w, err)
		return
	}

	var res vault.OpResult
	if maxAssets != nil {
		res, err = ws.vault.MintWithMaxAssets(r.Context(), req.Caller, req.Receiver, shares, *maxAssets)
	} else {
		res, err = ws.vault.Mint(r.Context(), req.Caller, req.Receiver, shares)
	}

	receipt := types.NewReceipt(types.OpMint, req.Caller)
	receipt.Counterparty = req.Receiver
	if err != nil {
		receipt.Message = err.Error()
		recordReceipt(receipt)
		writeError(w, err)
		return
	}
	receipt.Success = true
	receipt.AssetsIn = res.Assets
	receipt.SharesMinted = res.Shares
	receipt.FeePaid = res.Fee
	recordReceipt(receipt)

	writeJSON(w, http.StatusOK, toOpResponse(res))
}

func (ws *WebServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req opRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	assets, err := req.amount("assets")
	if err != nil {
		writeError(w, err)
		return
	}
	maxShares, err := optionalAmount(req.MaxShares)
	if err != nil {
		writeError(w, err)
		return
	}

	var res vault.OpResult
	if maxShares != nil {
		res, err = ws.vault.WithdrawWithMaxShares(r.Context(), req.Caller, req.Receiver, assets, *maxShares)
	} else {
		res, err = ws.vault.Withdraw(r.Context(), req.Caller, req.Receiver, assets)
	}

	receipt := types.NewReceipt(types.OpWithdraw, req.Caller)
	receipt.Counterparty = req.Receiver
	if err != nil {
		receipt.Message = err.Error()
		recordReceipt(receipt)
		writeError(w, err)
		return
	}
	receipt.Success = true
	receipt.AssetsOut = res.Assets
	receipt.SharesBurned = res.Shares
	recordReceipt(receipt)

	writeJSON(w, http.StatusOK, toOpResponse(res))
}

func (ws *WebServer) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req opRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	shares, err := req.amount("shares")
	if err != nil {
		writeError(w, err)
		return
	}
	minAssets, err := optionalAmount(req.MinAssets)
	if err != nil {
		writeError(w, err)
		return
	}

	var res vault.OpResult
	if minAssets != nil {
		res, err = ws.vault.RedeemWithMinAssets(r.Context(), req.Caller, req.Receiver, shares, *minAssets)
	} else {
		res, err = ws.vault.Redeem(r.Context(), req.Caller, req.Receiver, shares)
	}

	receipt := types.NewReceipt(types.OpRedeem, req.Caller)
	receipt.Counterparty = req.Receiver
	if err != nil {
		receipt.Message = err.Error()
		recordReceipt(receipt)
		writeError(w, err)
		return
	}
	receipt.Success = true
	receipt.AssetsOut = res.Assets
	receipt.SharesBurned = res.Shares
	recordReceipt(receipt)

	writeJSON(w, http.StatusOK, toOpResponse(res))
}

// --- Operator operations ---

type investRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (ws *WebServer) handleInvest(w http.ResponseWriter, r *http.Request) {
	var req investRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := utils.ParseSDKInt(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	units, err := ws.vault.Invest(r.Context(), req.Caller, amount)

	receipt := types.NewReceipt(types.OpInvest, req.Caller)
	if err != nil {
		receipt.Message = err.Error()
		recordReceipt(receipt)
		writeError(w, err)
		return
	}
	receipt.Success = true
	receipt.AssetsOut = amount
	recordReceipt(receipt)

	writeJSON(w, http.StatusOK, map[string]string{"units": units.String()})
}

func (ws *WebServer) handleUninvest(w http.ResponseWriter, r *http.Request) {
	var req investRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	units, err := utils.ParseSDKInt(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	assets, err := ws.vault.Uninvest(r.Context(), req.Caller, units)

	receipt := types.NewReceipt(types.OpUninvest, req.Caller)
	if err != nil {
		receipt.Message = err.Error()
		recordReceipt(receipt)
		writeError(w, err)
		return
	}
	receipt.Success = true
	receipt.AssetsIn = assets
	recordReceipt(receipt)

	writeJSON(w, http.StatusOK, map[string]string{"assets": assets.String()})
}

type buyCoverRequest struct {
	Caller     string `json:"caller"`
	CoverAsset string `json:"cover_asset"`
	Amount     string `json:"amount"`
	PeriodDays uint32 `json:"period_days"`
	MaxPremium string `json:"max_premium"`
	ProductID  uint64 `json:"product_id"`
}

func (ws *WebServer) handleBuyCover(w http.ResponseWriter, r *http.Request) {
	var req buyCoverRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := utils.ParseSDKInt(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	maxPremium, err := utils.ParseSDKInt(req.MaxPremium)
	if err != nil {
		writeError(w, err)
		return
	}

	coverID, err := ws.vault.BuyCover(r.Context(), req.Caller, coverage.BuyParams{
		CoverAsset: req.CoverAsset,
		Amount:     amount,
		PeriodDays: req.PeriodDays,
		MaxPremium: maxPremium,
		ProductID:  req.ProductID,
	})

	receipt := types.NewReceipt(types.OpBuyCover, req.Caller)
	if err != nil {
		receipt.Message = err.Error()
		recordReceipt(receipt)
		writeError(w, err)
		return
	}
	receipt.Success = true
	recordReceipt(receipt)

	writeJSON(w, http.StatusOK, map[string]uint64{"cover_id": coverID})
}

type redeemCoverRequest struct {
	Caller        string `json:"caller"`
	IncidentID    uint64 `json:"incident_id"`
	SegmentID     uint64 `json:"segment_id"`
	DepeggedUnits string `json:"depegged_units"`
}

func (ws *WebServer) handleRedeemCover(w http.ResponseWriter, r *http.Request) {
	var req redeemCoverRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	depegged, err := utils.ParseSDKInt(req.DepeggedUnits)
	if err != nil {
		writeError(w, err)
		return
	}

	payout, err := ws.vault.RedeemCover(r.Context(), req.Caller, req.IncidentID, req.SegmentID, depegged)

	receipt := types.NewReceipt(types.OpRedeemCover, req.Caller)
	if err != nil {
		receipt.Message = err.Error()
		recordReceipt(receipt)
		writeError(w, err)
		return
	}
	receipt.Success = true
	receipt.AssetsIn = payout
	recordReceipt(receipt)

	writeJSON(w, http.StatusOK, map[string]string{"payout": payout.String()})
}

// --- Admin operations ---

type feeRequest struct {
	Caller  string `json:"caller"`
	Kind    string `json:"kind"`
	RateBps uint64 `json:"rate_bps,omitempty"`
}

func (ws *WebServer) handleProposeFee(w http.ResponseWriter, r *http.Request) {
	var req feeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	err := ws.vault.ProposeFee(req.Caller, vault.FeeKind(req.Kind), req.RateBps)

	receipt := types.NewReceipt(types.OpProposeFee, req.Caller)
	if err != nil {
		receipt.Message = err.Error()
		recordReceipt(receipt)
		writeError(w, err)
		return
	}
	receipt.Success = true
	recordReceipt(receipt)

	writeJSON(w, http.StatusOK, map[string]string{"status": "proposed"})
}

func (ws *WebServer) handleApplyFee(w http.ResponseWriter, r *http.Request) {
	var req feeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	change, err := ws.vault.ApplyFee(req.Caller, vault.FeeKind(req.Kind))

	receipt := types.NewReceipt(types.OpApplyFee, req.Caller)
	if err != nil {
		receipt.Message = err.Error()
		recordReceipt(receipt)
		writeError(w, err)
		return
	}
	receipt.Success = true
	recordReceipt(receipt)

	if _, err := state.SaveFeeRateChange(change); err != nil {
		webLogger.Error().Err(err).Msg("Failed to persist fee rate change")
	}

	writeJSON(w, http.StatusOK, change)
}

type claimFeesRequest struct {
	Caller      string `json:"caller"`
	Destination string `json:"destination"`
}

func (ws *WebServer) handleClaimFees(w http.ResponseWriter, r *http.Request) {
	var req claimFeesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	assetFees, shareFees, err := ws.vault.ClaimFees(r.Context(), req.Caller, req.Destination)

	receipt := types.NewReceipt(types.OpClaimFees, req.Caller)
	receipt.Counterparty = req.Destination
	if err != nil {
		receipt.Message = err.Error()
		recordReceipt(receipt)
		writeError(w, err)
		return
	}
	receipt.Success = true
	receipt.AssetsOut = assetFees
	recordReceipt(receipt)

	writeJSON(w, http.StatusOK, map[string]string{
		"asset_fees": assetFees.String(),
		"share_fees": shareFees.String(),
	})
}

type limitRequest struct {
	Caller string `json:"caller"`
	Limit  string `json:"limit,omitempty"`
	Bps    uint64 `json:"bps,omitempty"`
}

func (ws *WebServer) handleSetLimit(w http.ResponseWriter, r *http.Request) {
	var req limitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	limit, err := utils.ParseSDKInt(req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := ws.vault.SetMaxManagedAssets(req.Caller, limit); err != nil {
		writeError(w, err)
		return
	}

	receipt := types.NewReceipt(types.OpSetLimit, req.Caller)
	receipt.Success = true
	recordReceipt(receipt)

	writeJSON(w, http.StatusOK, map[string]string{"max_managed_assets": limit.String()})
}

func (ws *WebServer) handleSetRateTolerance(w http.ResponseWriter, r *http.Request) {
	var req limitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := ws.vault.SetRateDeviationTolerance(req.Caller, req.Bps); err != nil {
		writeError(w, err)
		return
	}

	receipt := types.NewReceipt(types.OpSetRateTol, req.Caller)
	receipt.Success = true
	recordReceipt(receipt)

	writeJSON(w, http.StatusOK, map[string]uint64{"rate_deviation_tolerance_bps": req.Bps})
}

type pauseRequest struct {
	Caller string `json:"caller"`
}

func (ws *WebServer) handlePause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := ws.gate.Pause(req.Caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (ws *WebServer) handleUnpause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := ws.gate.Unpause(req.Caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}
