package coverage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/shieldvault/ivm/internal/logger"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidEndpoint  = errors.New("coverage endpoint is invalid")
	ErrInvalidParams    = errors.New("coverage parameters are invalid")
	ErrRPCRequestFailed = errors.New("coverage RPC request failed")
	ErrInvalidResponse  = errors.New("coverage response data is invalid")
)

// rpcRequest defines the structure of a JSON-RPC request to the coverage service.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// rpcResponse defines the structure of a JSON-RPC response from the coverage service.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError defines the structure of a JSON-RPC error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

type buyCoverResult struct {
	CoverID uint64 `json:"cover_id"`
}

type redeemCoverResult struct {
	PayoutAmount string `json:"payout_amount"`
	AssetUsed    string `json:"asset_used"`
}

type expiredResult struct {
	Expired bool `json:"expired"`
}

type coverAmountResult struct {
	Amount string `json:"amount"`
}

type coverIDParams struct {
	CoverID uint64 `json:"cover_id"`
}

// LiveService implements Service against a remote coverage provider over JSON-RPC.
type LiveService struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
	nextID     atomic.Int64
}

// NewLiveService creates a coverage client for the given JSON-RPC endpoint.
func NewLiveService(endpoint string) (*LiveService, error) {
	if endpoint == "" {
		return nil, ErrInvalidEndpoint
	}
	return &LiveService{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.GetForComponent("coverage_client"),
	}, nil
}

// call performs one JSON-RPC round trip and unmarshals the result into out.
func (s *LiveService) call(ctx context.Context, method string, params, out interface{}) error {
	// Request ids are taken atomically: the expiry checks in the maintenance
	// loop share this client with the serving path.
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      int(s.nextID.Add(1)),
		Method:  method,
		Params:  params,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal request: %w", ErrRPCRequestFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRPCRequestFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRPCRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrRPCRequestFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %w", ErrRPCRequestFailed, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("%w: failed to unmarshal response: %w", ErrInvalidResponse, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%w: code %d: %s", ErrRPCRequestFailed, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if rpcResp.Result == nil {
		return fmt.Errorf("%w: empty result for method %s", ErrInvalidResponse, method)
	}

	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return nil
}

// BuyCover implements Service.
func (s *LiveService) BuyCover(ctx context.Context, params BuyParams) (uint64, error) {
	if params.Amount.IsNil() || !params.Amount.IsPositive() {
		return 0, fmt.Errorf("%w: cover amount must be positive", ErrInvalidParams)
	}
	if params.CoverAsset == "" {
		return 0, fmt.Errorf("%w: cover asset cannot be empty", ErrInvalidParams)
	}
	if params.PeriodDays == 0 {
		return 0, fmt.Errorf("%w: cover period cannot be zero", ErrInvalidParams)
	}

	var result buyCoverResult
	if err := s.call(ctx, "cover_buy", params, &result); err != nil {
		return 0, err
	}
	if result.CoverID == 0 {
		return 0, fmt.Errorf("%w: service returned zero cover id", ErrInvalidResponse)
	}

	s.logger.Info().
		Uint64("coverId", result.CoverID).
		Str("amount", params.Amount.String()).
		Uint32("periodDays", params.PeriodDays).
		Msg("Cover purchased")
	return result.CoverID, nil
}

// RedeemCover implements Service.
func (s *LiveService) RedeemCover(ctx context.Context, params RedeemParams) (sdkmath.Int, string, error) {
	if params.CoverID == 0 {
		return sdkmath.ZeroInt(), "", fmt.Errorf("%w: cover id cannot be zero", ErrInvalidParams)
	}
	if params.PayoutAddress == "" {
		return sdkmath.ZeroInt(), "", fmt.Errorf("%w: payout address cannot be empty", ErrInvalidParams)
	}

	var result redeemCoverResult
	if err := s.call(ctx, "cover_redeem", params, &result); err != nil {
		return sdkmath.ZeroInt(), "", err
	}

	payout, ok := sdkmath.NewIntFromString(result.PayoutAmount)
	if !ok || payout.IsNegative() {
		return sdkmath.ZeroInt(), "", fmt.Errorf("%w: payout amount %q is invalid", ErrInvalidResponse, result.PayoutAmount)
	}

	s.logger.Info().
		Uint64("coverId", params.CoverID).
		Uint64("incidentId", params.IncidentID).
		Str("payout", payout.String()).
		Str("asset", result.AssetUsed).
		Msg("Cover claim redeemed")
	return payout, result.AssetUsed, nil
}

// IsCoverExpired implements Service.
func (s *LiveService) IsCoverExpired(ctx context.Context, coverID uint64) (bool, error) {
	if coverID == 0 {
		return false, fmt.Errorf("%w: cover id cannot be zero", ErrInvalidParams)
	}
	var result expiredResult
	if err := s.call(ctx, "cover_isExpired", coverIDParams{CoverID: coverID}, &result); err != nil {
		return false, err
	}
	return result.Expired, nil
}

// ActiveCoverAmount implements Service.
func (s *LiveService) ActiveCoverAmount(ctx context.Context, coverID uint64) (sdkmath.Int, error) {
	if coverID == 0 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: cover id cannot be zero", ErrInvalidParams)
	}
	var result coverAmountResult
	if err := s.call(ctx, "cover_activeAmount", coverIDParams{CoverID: coverID}, &result); err != nil {
		return sdkmath.ZeroInt(), err
	}
	amount, ok := sdkmath.NewIntFromString(result.Amount)
	if !ok || amount.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: cover amount %q is invalid", ErrInvalidResponse, result.Amount)
	}
	return amount, nil
}

// Close implements Service.
func (s *LiveService) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
