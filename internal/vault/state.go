/*

This file contains the vault's accounting state and its lifecycle helpers.
All amounts are sdkmath.Int in base units of the vault asset or venue units;
all rates are basis points over a 10,000 denominator.

*/

package vault

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

const (
	// BpsDenominator is the fixed-point denominator for all fee and tolerance rates.
	BpsDenominator = 10_000

	// FeeTimelock is the mandatory waiting period between proposing and
	// applying a fee-rate change.
	FeeTimelock = 14 * 24 * time.Hour

	// SecondsPerYear is the accrual basis for the management fee.
	SecondsPerYear = 365 * 24 * 60 * 60
)

// RateProbeUnits is the unit quantity used to sample the venue's exchange rate.
// Probing with 1e6 units keeps sub-unit rate precision (ProvLabs-style scalar).
var RateProbeUnits = sdkmath.NewInt(1_000_000)

// FeeKind selects which of the two fee rates an operation addresses.
type FeeKind string

const (
	FeeDeposit    FeeKind = "deposit"
	FeeManagement FeeKind = "management"
)

// FeeProposal is a pending timelocked fee change. A nil proposal means none.
type FeeProposal struct {
	RateBps     uint64
	EffectiveAt time.Time
}

// State is the single vault instance's accounting state. It is created once at
// vault construction and mutated by every operation; it is never destroyed.
type State struct {
	// IdleAssets is the uninvested base-asset balance held in vault custody,
	// excluding the accumulated fee pool.
	IdleAssets sdkmath.Int
	// InvestedUnits is the venue-unit position representing deployed capital,
	// excluding the accumulated share-fee pool.
	InvestedUnits sdkmath.Int
	// TotalShareSupply is the outstanding vault share supply.
	TotalShareSupply sdkmath.Int
	// MaxManagedAssets is the ceiling on total managed assets. No timelock.
	MaxManagedAssets sdkmath.Int

	DepositFeeBps    uint64
	ManagementFeeBps uint64

	ProposedDepositFee    *FeeProposal
	ProposedManagementFee *FeeProposal

	// LastFeeAccrualTime is the last time management fees were materialized.
	LastFeeAccrualTime time.Time

	// AccumulatedAssetFees is the claimable fee pool in the base asset.
	AccumulatedAssetFees sdkmath.Int
	// AccumulatedShareFees is the claimable fee pool in venue units.
	AccumulatedShareFees sdkmath.Int

	// ActiveCoverID references the current insurance position; zero means none.
	ActiveCoverID uint64

	// LastObservedRate is the venue's assets-per-probe-unit snapshot used for
	// devaluation checks. Nil means no snapshot (initial state, or cleared
	// after a claim payout).
	LastObservedRate *sdkmath.LegacyDec

	// RateDeviationToleranceBps bounds adverse venue rate movement between
	// invest/uninvest calls.
	RateDeviationToleranceBps uint64

	shareBalances map[string]sdkmath.Int
}

// newState builds the initial state for a freshly deployed vault.
func newState(maxManagedAssets sdkmath.Int, depositFeeBps, managementFeeBps, rateTolBps uint64, now time.Time) State {
	return State{
		IdleAssets:                sdkmath.ZeroInt(),
		InvestedUnits:             sdkmath.ZeroInt(),
		TotalShareSupply:          sdkmath.ZeroInt(),
		MaxManagedAssets:          maxManagedAssets,
		DepositFeeBps:             depositFeeBps,
		ManagementFeeBps:          managementFeeBps,
		LastFeeAccrualTime:        now,
		AccumulatedAssetFees:      sdkmath.ZeroInt(),
		AccumulatedShareFees:      sdkmath.ZeroInt(),
		RateDeviationToleranceBps: rateTolBps,
		shareBalances:             make(map[string]sdkmath.Int),
	}
}

// clone deep-copies the state. Used for atomic rollback: every mutating
// operation snapshots the state up front and restores it on any error, so a
// failed operation never leaves partial mutations behind.
func (s *State) clone() State {
	out := *s
	if s.ProposedDepositFee != nil {
		p := *s.ProposedDepositFee
		out.ProposedDepositFee = &p
	}
	if s.ProposedManagementFee != nil {
		p := *s.ProposedManagementFee
		out.ProposedManagementFee = &p
	}
	if s.LastObservedRate != nil {
		r := *s.LastObservedRate
		out.LastObservedRate = &r
	}
	out.shareBalances = make(map[string]sdkmath.Int, len(s.shareBalances))
	for k, v := range s.shareBalances {
		out.shareBalances[k] = v
	}
	return out
}

// balanceOf returns the share balance of an account, zero if unknown.
func (s *State) balanceOf(account string) sdkmath.Int {
	if bal, ok := s.shareBalances[account]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

// mintShares credits shares to receiver and grows the supply.
func (s *State) mintShares(receiver string, shares sdkmath.Int) {
	s.shareBalances[receiver] = s.balanceOf(receiver).Add(shares)
	s.TotalShareSupply = s.TotalShareSupply.Add(shares)
}

// burnShares debits shares from owner and shrinks the supply.
func (s *State) burnShares(owner string, shares sdkmath.Int) error {
	bal := s.balanceOf(owner)
	if bal.LT(shares) {
		return ErrInsufficientShares
	}
	s.shareBalances[owner] = bal.Sub(shares)
	s.TotalShareSupply = s.TotalShareSupply.Sub(shares)
	return nil
}
