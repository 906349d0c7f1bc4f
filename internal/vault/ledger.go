/*

This file contains the asset ledger: idle versus invested accounting, the total
managed assets figure, management-fee materialization, and the liquidity
waterfall that prefers idle funds over forcing a venue withdrawal.

*/

package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// valueOfUnits values venue units in base assets. settled selects the venue's
// settlement-accurate quote (PreviewRedeem) over the plain conversion.
func (v *Vault) valueOfUnits(ctx context.Context, units sdkmath.Int, settled bool) (sdkmath.Int, error) {
	if units.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	if settled {
		return v.venue.PreviewRedeem(ctx, units)
	}
	return v.venue.ConvertToAssets(ctx, units)
}

// totalManagedAssets returns idle assets plus the asset value of the invested
// position. With accountForPendingFee set, the accrued-but-unmaterialized
// management fee is netted out of the invested units first, so the figure
// matches what a post-accrual call would report.
func (v *Vault) totalManagedAssets(ctx context.Context, accountForPendingFee bool) (sdkmath.Int, error) {
	units := v.state.InvestedUnits
	if accountForPendingFee {
		units = units.Sub(v.pendingManagementFee())
	}
	value, err := v.valueOfUnits(ctx, units, false)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("venue valuation failed: %w", err)
	}
	return v.state.IdleAssets.Add(value), nil
}

// TotalAssets reports the vault's total managed assets, pending fee accounted.
func (v *Vault) TotalAssets(ctx context.Context) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalManagedAssets(ctx, true)
}

// accrueManagementFee materializes the pending management fee: the fee's venue
// units move from the invested position to the claimable share-fee pool and the
// accrual clock resets. No-op when the fee computes to zero, so truncated
// sub-unit accrual is carried forward rather than dropped. Must run before any
// operation that reads or mutates InvestedUnits in a fee-sensitive way.
func (v *Vault) accrueManagementFee() {
	fee := v.pendingManagementFee()
	if fee.IsZero() {
		return
	}
	v.state.InvestedUnits = v.state.InvestedUnits.Sub(fee)
	v.state.AccumulatedShareFees = v.state.AccumulatedShareFees.Add(fee)
	v.state.LastFeeAccrualTime = v.now()

	v.logger.Debug().
		Str("feeUnits", fee.String()).
		Str("investedUnits", v.state.InvestedUnits.String()).
		Msg("Management fee accrued")
}

// recordDeposit books a gross deposit: the net lands in idle, the fee in the
// asset fee pool. Returns the net amount.
func (v *Vault) recordDeposit(gross, fee sdkmath.Int) sdkmath.Int {
	net := gross.Sub(fee)
	v.state.IdleAssets = v.state.IdleAssets.Add(net)
	v.state.AccumulatedAssetFees = v.state.AccumulatedAssetFees.Add(fee)
	return net
}

// recordInvest moves idle assets into the venue and books the units received.
func (v *Vault) recordInvest(ctx context.Context, amount sdkmath.Int) (sdkmath.Int, error) {
	if v.state.IdleAssets.LT(amount) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: idle %s < invest %s", ErrInsufficientIdle, v.state.IdleAssets, amount)
	}
	units, err := v.venue.Deposit(ctx, amount, v.address)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("venue deposit failed: %w", err)
	}
	v.state.IdleAssets = v.state.IdleAssets.Sub(amount)
	v.state.InvestedUnits = v.state.InvestedUnits.Add(units)
	return units, nil
}

// recordUninvest redeems venue units back into idle assets.
func (v *Vault) recordUninvest(ctx context.Context, units sdkmath.Int) (sdkmath.Int, error) {
	if v.state.InvestedUnits.LT(units) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: invested %s < uninvest %s", ErrAccountingUnderflow, v.state.InvestedUnits, units)
	}
	assets, err := v.venue.Redeem(ctx, units, v.address, v.address)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("venue redeem failed: %w", err)
	}
	v.state.InvestedUnits = v.state.InvestedUnits.Sub(units)
	v.state.IdleAssets = v.state.IdleAssets.Add(assets)
	return assets, nil
}

// payOutAssets settles an asset payout of assetsNeeded to receiver through the
// liquidity waterfall: idle funds first, and only the shortfall is pulled out
// of the venue (paid to the receiver directly), minimizing venue-side exit
// costs. The venue is never touched when idle funds suffice.
func (v *Vault) payOutAssets(ctx context.Context, assetsNeeded sdkmath.Int, receiver string) error {
	if assetsNeeded.LTE(v.state.IdleAssets) {
		v.state.IdleAssets = v.state.IdleAssets.Sub(assetsNeeded)
		if err := v.custodian.TransferOut(ctx, receiver, assetsNeeded); err != nil {
			return fmt.Errorf("custody payout failed: %w", err)
		}
		return nil
	}

	shortfall := assetsNeeded.Sub(v.state.IdleAssets)
	idlePortion := v.state.IdleAssets

	unitsBurned, err := v.venue.Withdraw(ctx, shortfall, receiver, v.address)
	if err != nil {
		return fmt.Errorf("venue withdraw failed: %w", err)
	}
	if unitsBurned.GT(v.state.InvestedUnits) {
		return fmt.Errorf("%w: venue burned %s units, invested %s", ErrAccountingUnderflow, unitsBurned, v.state.InvestedUnits)
	}
	v.state.InvestedUnits = v.state.InvestedUnits.Sub(unitsBurned)
	v.state.IdleAssets = sdkmath.ZeroInt()

	if idlePortion.IsPositive() {
		if err := v.custodian.TransferOut(ctx, receiver, idlePortion); err != nil {
			return fmt.Errorf("custody payout failed: %w", err)
		}
	}
	return nil
}
