/*

This file contains the exchange-rate engine converting between asset amounts and
share amounts. All conversions are integer multiply-then-divide with an explicit
rounding direction; the direction is always chosen against the acting party so
remaining holders are never diluted.

*/

package vault

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// Rounding selects the direction residues are resolved in a conversion.
type Rounding int

const (
	RoundDown Rounding = iota
	RoundUp
)

// mulDiv computes a * b / denom under the given rounding. denom must be positive.
func mulDiv(a, b, denom sdkmath.Int, rounding Rounding) sdkmath.Int {
	num := a.Mul(b)
	quo := num.Quo(denom)
	if rounding == RoundUp && !num.Mod(denom).IsZero() {
		quo = quo.AddRaw(1)
	}
	return quo
}

// assetsToShares converts an asset amount to shares against the given total
// managed assets basis. With zero supply (or zero input) the vault is on its
// initial 1:1 convention: the first depositor receives shares equal to assets
// regardless of residual dust, which removes the empty-vault share-price
// manipulation lever. A zero basis with live supply means all value was lost;
// the 1:1 convention applies there as well rather than dividing by zero.
func (v *Vault) assetsToShares(assets, totalAssetsBasis sdkmath.Int, rounding Rounding) sdkmath.Int {
	if v.state.TotalShareSupply.IsZero() || assets.IsZero() || totalAssetsBasis.IsZero() {
		return assets
	}
	return mulDiv(assets, v.state.TotalShareSupply, totalAssetsBasis, rounding)
}

// sharesToAssets converts a share amount to assets against the given total
// managed assets basis. Symmetric inverse of assetsToShares.
func (v *Vault) sharesToAssets(shares, totalAssetsBasis sdkmath.Int, rounding Rounding) sdkmath.Int {
	if v.state.TotalShareSupply.IsZero() || shares.IsZero() {
		return shares
	}
	return mulDiv(shares, totalAssetsBasis, v.state.TotalShareSupply, rounding)
}

// quoteBasis returns the conversion basis for read-only quotes: total managed
// assets with the pending management fee netted out, so quotes reflect fees
// accrued up to now without mutating state.
func (v *Vault) quoteBasis(ctx context.Context) (sdkmath.Int, error) {
	return v.totalManagedAssets(ctx, true)
}

// ConvertToShares quotes the shares corresponding to an asset amount at the
// current exchange rate, fee-exclusive, rounding down.
func (v *Vault) ConvertToShares(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	basis, err := v.quoteBasis(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return v.assetsToShares(assets, basis, RoundDown), nil
}

// ConvertToAssets quotes the assets corresponding to a share amount at the
// current exchange rate, fee-exclusive, rounding down.
func (v *Vault) ConvertToAssets(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	basis, err := v.quoteBasis(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return v.sharesToAssets(shares, basis, RoundDown), nil
}

// PreviewDeposit quotes the shares a deposit of gross assets would mint,
// deposit fee applied before conversion, rounding down.
func (v *Vault) PreviewDeposit(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	basis, err := v.quoteBasis(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	net := assets.Sub(v.computeDepositFee(assets))
	return v.assetsToShares(net, basis, RoundDown), nil
}

// PreviewMint quotes the gross assets required to mint exactly shares: the net
// asset requirement is converted rounding up, then grossed up through the
// deposit fee.
func (v *Vault) PreviewMint(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	basis, err := v.quoteBasis(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	net := v.sharesToAssets(shares, basis, RoundUp)
	return v.computeGrossFromNet(net)
}

// PreviewWithdraw quotes the shares a withdrawal of assets would burn, rounding
// up so the vault never under-charges shares for a given payout.
func (v *Vault) PreviewWithdraw(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	basis, err := v.quoteBasis(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return v.assetsToShares(assets, basis, RoundUp), nil
}

// PreviewRedeem quotes the assets a redemption of shares would pay, rounding
// down so the vault never over-pays.
func (v *Vault) PreviewRedeem(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	basis, err := v.quoteBasis(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return v.sharesToAssets(shares, basis, RoundDown), nil
}
