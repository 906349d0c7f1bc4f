/*

This file contains the snapshot types persisted each maintenance cycle for
historical tracking of the vault's accounting state.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// VaultSnapshot captures the full accounting state of the vault at a point in time.
type VaultSnapshot struct {
	SnapshotID           int64       `json:"snapshot_id,omitempty"` // Auto-incremented by DB
	Timestamp            time.Time   `json:"timestamp"`
	IdleAssets           sdkmath.Int `json:"idle_assets"`
	InvestedUnits        sdkmath.Int `json:"invested_units"`
	TotalManagedAssets   sdkmath.Int `json:"total_managed_assets"`
	TotalShareSupply     sdkmath.Int `json:"total_share_supply"`
	AccumulatedAssetFees sdkmath.Int `json:"accumulated_asset_fees"`
	AccumulatedShareFees sdkmath.Int `json:"accumulated_share_fees"`
	DepositFeeBps        uint64      `json:"deposit_fee_bps"`
	ManagementFeeBps     uint64      `json:"management_fee_bps"`
	ActiveCoverID        uint64      `json:"active_cover_id"`
	SharePrice           float64     `json:"share_price"` // display only, assets per share
}

// FeeRateChange records an applied fee-rate update.
type FeeRateChange struct {
	ChangeID  int64     `json:"change_id,omitempty"` // Auto-incremented by DB
	Kind      string    `json:"kind"`                // "deposit" or "management"
	OldBps    uint64    `json:"old_bps"`
	NewBps    uint64    `json:"new_bps"`
	AppliedAt time.Time `json:"applied_at"`
}
