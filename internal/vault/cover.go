/*

This file contains the cover lifecycle: one outstanding insurance position per
vault, renewed in place while unexpired and replaced once expired. The active
cover amount bounds how much capital may be invested; a claim payout reconciles
the ledger and clears the rate snapshot.

*/

package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/shieldvault/ivm/internal/access"
	"github.com/shieldvault/ivm/internal/coverage"
)

// ActiveCoverID returns the current cover identifier, zero if none.
func (v *Vault) ActiveCoverID() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.ActiveCoverID
}

// assertInvestWithinCover rejects an invest whose resulting invested value
// would exceed the active cover amount, or any nonzero invest without an
// active, unexpired cover.
func (v *Vault) assertInvestWithinCover(ctx context.Context, proposedInvestedValue sdkmath.Int) error {
	if proposedInvestedValue.IsZero() {
		return nil
	}
	if v.state.ActiveCoverID == 0 {
		return fmt.Errorf("%w: no active cover", ErrInvestExceedsCover)
	}

	expired, err := v.coverage.IsCoverExpired(ctx, v.state.ActiveCoverID)
	if err != nil {
		return fmt.Errorf("cover expiry check failed: %w", err)
	}
	if expired {
		return fmt.Errorf("%w: cover %d is expired", ErrInvestExceedsCover, v.state.ActiveCoverID)
	}

	coverAmount, err := v.coverage.ActiveCoverAmount(ctx, v.state.ActiveCoverID)
	if err != nil {
		return fmt.Errorf("cover amount query failed: %w", err)
	}
	if proposedInvestedValue.GT(coverAmount) {
		return fmt.Errorf("%w: invested value %s, cover amount %s",
			ErrInvestExceedsCover, proposedInvestedValue, coverAmount)
	}
	return nil
}

// BuyCover purchases or extends the vault's insurance position. While the
// existing cover is unexpired the purchase goes against the same identifier
// and only increases the covered amount; an expired cover is replaced by a
// fresh identifier. Operator only.
func (v *Vault) BuyCover(ctx context.Context, caller string, params coverage.BuyParams) (uint64, error) {
	if err := v.gate.RequireRole(caller, access.RoleOperator); err != nil {
		return 0, err
	}
	if err := v.gate.RequireActive(); err != nil {
		return 0, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	params.CoverID = 0
	if v.state.ActiveCoverID != 0 {
		expired, err := v.coverage.IsCoverExpired(ctx, v.state.ActiveCoverID)
		if err != nil {
			return 0, fmt.Errorf("cover expiry check failed: %w", err)
		}
		if !expired {
			params.CoverID = v.state.ActiveCoverID
		}
	}
	params.PayoutWallet = v.address

	coverID, err := v.coverage.BuyCover(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("cover purchase failed: %w", err)
	}

	replaced := v.state.ActiveCoverID != 0 && coverID != v.state.ActiveCoverID
	v.state.ActiveCoverID = coverID

	v.logger.Info().
		Uint64("coverId", coverID).
		Bool("replaced", replaced).
		Str("amount", params.Amount.String()).
		Msg("Cover position updated")
	return coverID, nil
}

// RedeemCover files a claim against the active cover. The written-off venue
// units leave the invested position, the payout lands in idle assets, and the
// rate snapshot is cleared since the post-payout position no longer relates to
// the prior observation. The cover identifier stays set: a cover can be
// claimed against multiple times. Operator only.
func (v *Vault) RedeemCover(ctx context.Context, caller string, incidentID, segmentID uint64, depeggedUnits sdkmath.Int) (sdkmath.Int, error) {
	if err := v.gate.RequireRole(caller, access.RoleOperator); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := v.gate.RequireActive(); err != nil {
		return sdkmath.ZeroInt(), err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state.ActiveCoverID == 0 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: no active cover", ErrInvestExceedsCover)
	}
	if depeggedUnits.IsNil() || !depeggedUnits.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}

	prior := v.state.clone()
	v.accrueManagementFee()

	// The bound must hold against the post-accrual position: accrual moves
	// units out of InvestedUnits, and writing off more than remains there
	// would drive it negative.
	if depeggedUnits.GT(v.state.InvestedUnits) {
		depegged, invested := depeggedUnits, v.state.InvestedUnits
		v.state = prior
		return sdkmath.ZeroInt(), fmt.Errorf("%w: depegged %s units, invested %s",
			ErrAccountingUnderflow, depegged, invested)
	}

	payout, assetUsed, err := v.coverage.RedeemCover(ctx, coverage.RedeemParams{
		IncidentID:    incidentID,
		CoverID:       v.state.ActiveCoverID,
		SegmentID:     segmentID,
		DepeggedUnits: depeggedUnits,
		PayoutAddress: v.address,
	})
	if err != nil {
		v.state = prior
		return sdkmath.ZeroInt(), fmt.Errorf("cover claim failed: %w", err)
	}

	v.state.InvestedUnits = v.state.InvestedUnits.Sub(depeggedUnits)
	v.state.IdleAssets = v.state.IdleAssets.Add(payout)
	v.state.LastObservedRate = nil

	v.logger.Warn().
		Uint64("coverId", v.state.ActiveCoverID).
		Uint64("incidentId", incidentID).
		Str("depeggedUnits", depeggedUnits.String()).
		Str("payout", payout.String()).
		Str("payoutAsset", assetUsed).
		Msg("Cover claim settled, ledger reconciled")
	return payout, nil
}
