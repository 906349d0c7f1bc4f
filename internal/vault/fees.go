/*

This file contains the fee engine: deposit-fee and time-proportional
management-fee computation, the two-phase timelocked rate-update protocol, and
fee claiming. The management fee accrues continuously against invested units
and is materialized by the ledger's accrual step before any rate-sensitive
operation.

*/

package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/shieldvault/ivm/internal/access"
	"github.com/shieldvault/ivm/internal/types"
)

// managementFeeDenominator folds the bps denominator and the yearly accrual
// basis into a single divisor so the fee truncates exactly once.
var managementFeeDenominator = sdkmath.NewInt(BpsDenominator * SecondsPerYear)

// computeDepositFee returns the one-time charge on gross incoming assets,
// truncating: fee = gross * depositFeeRate / 10000.
func (v *Vault) computeDepositFee(gross sdkmath.Int) sdkmath.Int {
	if v.state.DepositFeeBps == 0 || !gross.IsPositive() {
		return sdkmath.ZeroInt()
	}
	return gross.Mul(sdkmath.NewIntFromUint64(v.state.DepositFeeBps)).Quo(sdkmath.NewInt(BpsDenominator))
}

// computeGrossFromNet inverts the deposit fee for the mint path, truncating:
// gross = net * 10000 / (10000 - depositFeeRate). A 100% deposit fee would
// divide by zero; such rates are rejected at proposal time, so hitting one
// here is a consistency fault.
func (v *Vault) computeGrossFromNet(net sdkmath.Int) (sdkmath.Int, error) {
	if v.state.DepositFeeBps >= BpsDenominator {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: deposit fee at 100%%", ErrFeeOutOfBound)
	}
	if v.state.DepositFeeBps == 0 || !net.IsPositive() {
		return net, nil
	}
	remainder := sdkmath.NewInt(BpsDenominator - int64(v.state.DepositFeeBps))
	return net.Mul(sdkmath.NewInt(BpsDenominator)).Quo(remainder), nil
}

// pendingManagementFee returns the accrued-but-unmaterialized management fee in
// venue units: principal * secondsSinceLastAccrual * rate / 10000 / secondsPerYear,
// truncating, clamped to the invested position.
func (v *Vault) pendingManagementFee() sdkmath.Int {
	if v.state.ManagementFeeBps == 0 || !v.state.InvestedUnits.IsPositive() {
		return sdkmath.ZeroInt()
	}
	elapsed := int64(v.now().Sub(v.state.LastFeeAccrualTime).Seconds())
	if elapsed <= 0 {
		return sdkmath.ZeroInt()
	}
	fee := v.state.InvestedUnits.
		Mul(sdkmath.NewInt(elapsed)).
		Mul(sdkmath.NewIntFromUint64(v.state.ManagementFeeBps)).
		Quo(managementFeeDenominator)
	if fee.GT(v.state.InvestedUnits) {
		return v.state.InvestedUnits
	}
	return fee
}

// ProposeFee registers a pending fee change of the given kind, effective after
// the timelock. Overwrites any existing proposal of that kind. Admin only.
// Deposit-fee proposals at exactly 100% are rejected: they would make the mint
// path's gross-up divide by zero.
func (v *Vault) ProposeFee(caller string, kind FeeKind, rateBps uint64) error {
	if err := v.gate.RequireRole(caller, access.RoleAdmin); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if rateBps > BpsDenominator {
		return fmt.Errorf("%w: %d bps", ErrFeeOutOfBound, rateBps)
	}
	if kind == FeeDeposit && rateBps == BpsDenominator {
		return fmt.Errorf("%w: deposit fee cannot reach 100%%", ErrFeeOutOfBound)
	}

	proposal := &FeeProposal{RateBps: rateBps, EffectiveAt: v.now().Add(FeeTimelock)}
	switch kind {
	case FeeDeposit:
		v.state.ProposedDepositFee = proposal
	case FeeManagement:
		v.state.ProposedManagementFee = proposal
	default:
		return fmt.Errorf("%w: unknown fee kind %q", ErrFeeOutOfBound, kind)
	}

	v.logger.Info().
		Str("kind", string(kind)).
		Uint64("rateBps", rateBps).
		Time("effectiveAt", proposal.EffectiveAt).
		Msg("Fee change proposed")
	return nil
}

// ApplyFee swaps a matured proposal in as the active rate. Before a management
// fee change takes effect, the accrued fee under the old rate is materialized
// so the new rate never applies retroactively. Admin only.
func (v *Vault) ApplyFee(caller string, kind FeeKind) (types.FeeRateChange, error) {
	if err := v.gate.RequireRole(caller, access.RoleAdmin); err != nil {
		return types.FeeRateChange{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var proposal *FeeProposal
	switch kind {
	case FeeDeposit:
		proposal = v.state.ProposedDepositFee
	case FeeManagement:
		proposal = v.state.ProposedManagementFee
	default:
		return types.FeeRateChange{}, fmt.Errorf("%w: unknown fee kind %q", ErrNoProposalFound, kind)
	}
	if proposal == nil {
		return types.FeeRateChange{}, fmt.Errorf("%w: %s", ErrNoProposalFound, kind)
	}
	if v.now().Before(proposal.EffectiveAt) {
		return types.FeeRateChange{}, fmt.Errorf("%w: effective at %s", ErrTimelockNotElapsed, proposal.EffectiveAt)
	}

	change := types.FeeRateChange{Kind: string(kind), NewBps: proposal.RateBps, AppliedAt: v.now()}
	switch kind {
	case FeeDeposit:
		change.OldBps = v.state.DepositFeeBps
		v.state.DepositFeeBps = proposal.RateBps
		v.state.ProposedDepositFee = nil
	case FeeManagement:
		// Materialize the period that ran under the old rate first.
		v.accrueManagementFee()
		change.OldBps = v.state.ManagementFeeBps
		v.state.ManagementFeeBps = proposal.RateBps
		v.state.ProposedManagementFee = nil
	}

	v.logger.Info().
		Str("kind", string(kind)).
		Uint64("oldBps", change.OldBps).
		Uint64("newBps", change.NewBps).
		Msg("Fee change applied")
	return change, nil
}

// ClaimFees transfers both accumulated fee pools to destination and zeroes
// them: the asset pool through the custodian, the venue-unit pool through the
// venue's unit ledger. Admin only.
func (v *Vault) ClaimFees(ctx context.Context, caller, destination string) (assetFees, shareFees sdkmath.Int, err error) {
	if err := v.gate.RequireRole(caller, access.RoleAdmin); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state.AccumulatedAssetFees.IsZero() && v.state.AccumulatedShareFees.IsZero() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), ErrNoFeesToClaim
	}

	assetFees = v.state.AccumulatedAssetFees
	shareFees = v.state.AccumulatedShareFees
	v.state.AccumulatedAssetFees = sdkmath.ZeroInt()
	v.state.AccumulatedShareFees = sdkmath.ZeroInt()

	if assetFees.IsPositive() {
		if err := v.custodian.TransferOut(ctx, destination, assetFees); err != nil {
			// Nothing has moved yet; both pools stay claimable.
			v.state.AccumulatedAssetFees = assetFees
			v.state.AccumulatedShareFees = shareFees
			return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("asset fee transfer failed: %w", err)
		}
	}
	if shareFees.IsPositive() {
		if err := v.venue.TransferUnits(ctx, destination, shareFees); err != nil {
			// The asset pool already settled; only the unit pool stays claimable.
			v.state.AccumulatedShareFees = shareFees
			return assetFees, sdkmath.ZeroInt(), fmt.Errorf("share fee transfer failed: %w", err)
		}
	}

	v.logger.Info().
		Str("destination", destination).
		Str("assetFees", assetFees.String()).
		Str("shareFees", shareFees.String()).
		Msg("Accumulated fees claimed")
	return assetFees, shareFees, nil
}
