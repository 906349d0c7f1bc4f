/*

This file contains the receipt types recorded for every mutating vault operation.
Receipts are persisted to the database by the serving layer for audit and analytics.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// OperationKind identifies the vault operation a receipt belongs to.
type OperationKind string

const (
	OpDeposit     OperationKind = "DEPOSIT"
	OpMint        OperationKind = "MINT"
	OpWithdraw    OperationKind = "WITHDRAW"
	OpRedeem      OperationKind = "REDEEM"
	OpInvest      OperationKind = "INVEST"
	OpUninvest    OperationKind = "UNINVEST"
	OpBuyCover    OperationKind = "BUY_COVER"
	OpRedeemCover OperationKind = "REDEEM_COVER"
	OpClaimFees   OperationKind = "CLAIM_FEES"
	OpProposeFee  OperationKind = "PROPOSE_FEE"
	OpApplyFee    OperationKind = "APPLY_FEE"
	OpSetLimit    OperationKind = "SET_LIMIT"
	OpSetRateTol  OperationKind = "SET_RATE_TOLERANCE"
)

// OperationReceipt records the outcome of a single vault operation.
type OperationReceipt struct {
	ReceiptID    string        `json:"receipt_id"` // UUID assigned by the serving layer
	Kind         OperationKind `json:"kind"`
	Caller       string        `json:"caller"`
	Counterparty string        `json:"counterparty,omitempty"` // receiver or owner, depending on the operation
	AssetsIn     sdkmath.Int   `json:"assets_in"`
	AssetsOut    sdkmath.Int   `json:"assets_out"`
	SharesMinted sdkmath.Int   `json:"shares_minted"`
	SharesBurned sdkmath.Int   `json:"shares_burned"`
	FeePaid      sdkmath.Int   `json:"fee_paid"`
	Success      bool          `json:"success"`
	Message      string        `json:"message,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// NewReceipt returns a receipt with all amount fields initialized to zero so
// partially-populated receipts never carry nil sdkmath values into the store.
func NewReceipt(kind OperationKind, caller string) OperationReceipt {
	return OperationReceipt{
		Kind:         kind,
		Caller:       caller,
		AssetsIn:     sdkmath.ZeroInt(),
		AssetsOut:    sdkmath.ZeroInt(),
		SharesMinted: sdkmath.ZeroInt(),
		SharesBurned: sdkmath.ZeroInt(),
		FeePaid:      sdkmath.ZeroInt(),
		Timestamp:    time.Now().UTC(),
	}
}
