/*

This file contains the capacity guard: the managed-assets ceiling applied to
every deposit/mint, and the venue exchange-rate devaluation check applied to
every invest/uninvest.

*/

package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/shieldvault/ivm/internal/access"
)

// availableDepositCapacity returns the gross asset amount still depositable
// under the ceiling and the current total, pending fee accounted.
func (v *Vault) availableDepositCapacity(ctx context.Context) (available, currentTotal sdkmath.Int, err error) {
	currentTotal, err = v.totalManagedAssets(ctx, true)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if currentTotal.GTE(v.state.MaxManagedAssets) {
		return sdkmath.ZeroInt(), currentTotal, nil
	}
	return v.state.MaxManagedAssets.Sub(currentTotal), currentTotal, nil
}

// checkDepositCapacity rejects a gross deposit that would push total managed
// assets over the ceiling.
func (v *Vault) checkDepositCapacity(ctx context.Context, gross sdkmath.Int) error {
	available, currentTotal, err := v.availableDepositCapacity(ctx)
	if err != nil {
		return err
	}
	if gross.GT(available) {
		return fmt.Errorf("%w: gross %s, available %s of %s (current %s)",
			ErrDepositExceedsCapacity, gross, available, v.state.MaxManagedAssets, currentTotal)
	}
	return nil
}

// currentVenueRate samples the venue's assets-per-probe-unit exchange rate.
func (v *Vault) currentVenueRate(ctx context.Context) (sdkmath.LegacyDec, error) {
	assets, err := v.venue.ConvertToAssets(ctx, RateProbeUnits)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("venue rate probe failed: %w", err)
	}
	return sdkmath.LegacyNewDecFromInt(assets).QuoInt(RateProbeUnits), nil
}

// checkVenueRateDeviation samples the venue rate, rejects the operation if the
// rate dropped below the tolerance relative to the last snapshot, and on
// success overwrites the snapshot with the sampled rate. Each invest/uninvest
// therefore compares against the immediately preceding one. Appreciation is
// never rejected; only adverse movement trips the guard.
func (v *Vault) checkVenueRateDeviation(ctx context.Context) error {
	current, err := v.currentVenueRate(ctx)
	if err != nil {
		return err
	}

	if v.state.LastObservedRate != nil {
		tolerance := sdkmath.LegacyNewDecWithPrec(int64(v.state.RateDeviationToleranceBps), 4) // bps -> fraction
		floor := v.state.LastObservedRate.Mul(sdkmath.LegacyOneDec().Sub(tolerance))
		if current.LT(floor) {
			return fmt.Errorf("%w: rate %s below floor %s (last %s, tolerance %d bps)",
				ErrVenueBadRate, current, floor, v.state.LastObservedRate, v.state.RateDeviationToleranceBps)
		}
	}

	v.state.LastObservedRate = &current
	return nil
}

// MaxDeposit reports the gross assets an account may currently deposit.
func (v *Vault) MaxDeposit(ctx context.Context) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	available, _, err := v.availableDepositCapacity(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return available, nil
}

// MaxMint reports the shares an account may currently mint, derived from the
// remaining gross capacity net of the deposit fee.
func (v *Vault) MaxMint(ctx context.Context) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	available, _, err := v.availableDepositCapacity(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	basis, err := v.quoteBasis(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	net := available.Sub(v.computeDepositFee(available))
	return v.assetsToShares(net, basis, RoundDown), nil
}

// MaxWithdraw reports the assets owner could withdraw by burning their full
// share balance.
func (v *Vault) MaxWithdraw(ctx context.Context, owner string) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	basis, err := v.quoteBasis(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return v.sharesToAssets(v.state.balanceOf(owner), basis, RoundDown), nil
}

// MaxRedeem reports the shares owner may redeem: their full balance.
func (v *Vault) MaxRedeem(owner string) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.balanceOf(owner)
}

// SetMaxManagedAssets updates the managed-assets ceiling. Takes effect
// immediately, no timelock. Admin only.
func (v *Vault) SetMaxManagedAssets(caller string, limit sdkmath.Int) error {
	if err := v.gate.RequireRole(caller, access.RoleAdmin); err != nil {
		return err
	}
	if limit.IsNil() || limit.IsNegative() {
		return fmt.Errorf("%w: limit cannot be negative", ErrZeroAmount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.MaxManagedAssets = limit
	v.logger.Info().Str("limit", limit.String()).Msg("Managed-assets ceiling updated")
	return nil
}

// SetRateDeviationTolerance updates the venue rate deviation tolerance. Admin only.
func (v *Vault) SetRateDeviationTolerance(caller string, toleranceBps uint64) error {
	if err := v.gate.RequireRole(caller, access.RoleAdmin); err != nil {
		return err
	}
	if toleranceBps > BpsDenominator {
		return fmt.Errorf("%w: %d bps", ErrFeeOutOfBound, toleranceBps)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.RateDeviationToleranceBps = toleranceBps
	v.logger.Info().Uint64("toleranceBps", toleranceBps).Msg("Rate deviation tolerance updated")
	return nil
}
