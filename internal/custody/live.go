package custody

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
	ErrInvalidEndpoint  = errors.New("custody endpoint is invalid")
	ErrInvalidTransfer  = errors.New("transfer request is invalid")
	ErrRPCRequestFailed = errors.New("custody RPC request failed")
	ErrInvalidResponse  = errors.New("custody response data is invalid")
)

// rpcRequest defines the structure of a JSON-RPC request to the custody ledger.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// rpcResponse defines the structure of a JSON-RPC response from the custody ledger.
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

type transferParams struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// LiveCustodian implements Custodian against a remote asset ledger over JSON-RPC.
type LiveCustodian struct {
	endpoint   string
	vaultAcct  string
	httpClient *http.Client
	logger     zerolog.Logger
	nextID     atomic.Int64
}

// NewLiveCustodian creates a custody client. vaultAcct is the custody account
// the vault's funds live in.
func NewLiveCustodian(endpoint, vaultAcct string) (*LiveCustodian, error) {
	if endpoint == "" {
		return nil, ErrInvalidEndpoint
	}
	if vaultAcct == "" {
		return nil, errors.New("vault custody account cannot be empty")
	}
	return &LiveCustodian{
		endpoint:   endpoint,
		vaultAcct:  vaultAcct,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.GetForComponent("custody_client"),
	}, nil
}

func (c *LiveCustodian) call(ctx context.Context, method string, params interface{}) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      int(c.nextID.Add(1)),
		Method:  method,
		Params:  params,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal request: %w", ErrRPCRequestFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRPCRequestFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
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

	return nil
}

func (c *LiveCustodian) validate(account string, amount sdkmath.Int) error {
	if account == "" {
		return fmt.Errorf("%w: empty account", ErrInvalidTransfer)
	}
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: invalid amount", ErrInvalidTransfer)
	}
	return nil
}

// TransferIn implements Custodian.
func (c *LiveCustodian) TransferIn(ctx context.Context, from string, amount sdkmath.Int) error {
	if err := c.validate(from, amount); err != nil {
		return err
	}
	if err := c.call(ctx, "custody_transferIn", transferParams{Account: from, Amount: amount.String()}); err != nil {
		return err
	}
	c.logger.Debug().
		Str("from", from).
		Str("amount", amount.String()).
		Msg("Assets pulled into vault custody")
	return nil
}

// TransferOut implements Custodian.
func (c *LiveCustodian) TransferOut(ctx context.Context, to string, amount sdkmath.Int) error {
	if err := c.validate(to, amount); err != nil {
		return err
	}
	if err := c.call(ctx, "custody_transferOut", transferParams{Account: to, Amount: amount.String()}); err != nil {
		return err
	}
	c.logger.Debug().
		Str("to", to).
		Str("amount", amount.String()).
		Msg("Assets paid out of vault custody")
	return nil
}

// Close implements Custodian.
func (c *LiveCustodian) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
