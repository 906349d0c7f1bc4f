package venue

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
	ErrInvalidEndpoint  = errors.New("venue endpoint is invalid")
	ErrInvalidAmount    = errors.New("amount is invalid")
	ErrInvalidAccount   = errors.New("account is invalid")
	ErrRPCRequestFailed = errors.New("venue RPC request failed")
	ErrInvalidResponse  = errors.New("venue response data is invalid")
)

// JSON-RPC structures for venue calls with validation

// rpcRequest defines the structure of a JSON-RPC request to the venue.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// rpcResponse defines the structure of a JSON-RPC response from the venue.
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

// moveParams carries an asset/unit movement request.
type moveParams struct {
	Amount   string `json:"amount"`
	Receiver string `json:"receiver,omitempty"`
	Owner    string `json:"owner,omitempty"`
}

// amountResult carries a single base-unit amount result.
type amountResult struct {
	Amount string `json:"amount"`
}

// LiveVenue implements Venue against a remote venue node over JSON-RPC.
type LiveVenue struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
	nextID     atomic.Int64
}

// NewLiveVenue creates a venue client for the given JSON-RPC endpoint.
func NewLiveVenue(endpoint string) (*LiveVenue, error) {
	if endpoint == "" {
		return nil, ErrInvalidEndpoint
	}
	return &LiveVenue{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.GetForComponent("venue_client"),
	}, nil
}

// call performs one JSON-RPC round trip and returns the raw result payload.
func (v *LiveVenue) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      int(v.nextID.Add(1)),
		Method:  method,
		Params:  params,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request: %w", ErrRPCRequestFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRPCRequestFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRPCRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRPCRequestFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %w", ErrRPCRequestFailed, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal response: %w", ErrInvalidResponse, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%w: code %d: %s", ErrRPCRequestFailed, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if rpcResp.Result == nil {
		return nil, fmt.Errorf("%w: empty result for method %s", ErrInvalidResponse, method)
	}

	return rpcResp.Result, nil
}

// callForAmount performs a call whose result is a single non-negative amount.
func (v *LiveVenue) callForAmount(ctx context.Context, method string, params interface{}) (sdkmath.Int, error) {
	raw, err := v.call(ctx, method, params)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	var result amountResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	amount, ok := sdkmath.NewIntFromString(result.Amount)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: amount %q is not an integer", ErrInvalidResponse, result.Amount)
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: amount %s is negative", ErrInvalidResponse, result.Amount)
	}

	return amount, nil
}

func validateAmount(amount sdkmath.Int) error {
	if amount.IsNil() {
		return fmt.Errorf("%w: nil", ErrInvalidAmount)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s is negative", ErrInvalidAmount, amount.String())
	}
	return nil
}

// Deposit implements Venue.
func (v *LiveVenue) Deposit(ctx context.Context, assets sdkmath.Int, receiver string) (sdkmath.Int, error) {
	if err := validateAmount(assets); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if receiver == "" {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: empty receiver", ErrInvalidAccount)
	}

	units, err := v.callForAmount(ctx, "venue_deposit", moveParams{Amount: assets.String(), Receiver: receiver})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	v.logger.Debug().
		Str("assets", assets.String()).
		Str("units", units.String()).
		Msg("Venue deposit settled")
	return units, nil
}

// Redeem implements Venue.
func (v *LiveVenue) Redeem(ctx context.Context, units sdkmath.Int, receiver, owner string) (sdkmath.Int, error) {
	if err := validateAmount(units); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if receiver == "" || owner == "" {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: empty receiver or owner", ErrInvalidAccount)
	}

	assets, err := v.callForAmount(ctx, "venue_redeem", moveParams{Amount: units.String(), Receiver: receiver, Owner: owner})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	v.logger.Debug().
		Str("units", units.String()).
		Str("assets", assets.String()).
		Msg("Venue redeem settled")
	return assets, nil
}

// Withdraw implements Venue.
func (v *LiveVenue) Withdraw(ctx context.Context, assets sdkmath.Int, receiver, owner string) (sdkmath.Int, error) {
	if err := validateAmount(assets); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if receiver == "" || owner == "" {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: empty receiver or owner", ErrInvalidAccount)
	}

	burned, err := v.callForAmount(ctx, "venue_withdraw", moveParams{Amount: assets.String(), Receiver: receiver, Owner: owner})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	v.logger.Debug().
		Str("assets", assets.String()).
		Str("unitsBurned", burned.String()).
		Msg("Venue withdraw settled")
	return burned, nil
}

// ConvertToAssets implements Venue.
func (v *LiveVenue) ConvertToAssets(ctx context.Context, units sdkmath.Int) (sdkmath.Int, error) {
	if err := validateAmount(units); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return v.callForAmount(ctx, "venue_convertToAssets", moveParams{Amount: units.String()})
}

// PreviewRedeem implements Venue.
func (v *LiveVenue) PreviewRedeem(ctx context.Context, units sdkmath.Int) (sdkmath.Int, error) {
	if err := validateAmount(units); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return v.callForAmount(ctx, "venue_previewRedeem", moveParams{Amount: units.String()})
}

// TransferUnits implements Venue.
func (v *LiveVenue) TransferUnits(ctx context.Context, to string, units sdkmath.Int) error {
	if err := validateAmount(units); err != nil {
		return err
	}
	if to == "" {
		return fmt.Errorf("%w: empty destination", ErrInvalidAccount)
	}

	_, err := v.call(ctx, "venue_transferUnits", moveParams{Amount: units.String(), Receiver: to})
	if err != nil {
		return err
	}

	v.logger.Debug().
		Str("to", to).
		Str("units", units.String()).
		Msg("Venue unit transfer settled")
	return nil
}

// Close implements Venue.
func (v *LiveVenue) Close() error {
	v.httpClient.CloseIdleConnections()
	return nil
}
