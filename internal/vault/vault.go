/*

This file contains the Vault type and its user-facing operations: the
deposit/mint/withdraw/redeem quartet with slippage-guarded variants, and the
operator-only invest/uninvest pair. Every operation is serialized behind one
mutex, materializes the management fee before touching the exchange rate, and
restores the prior state on any failure so a failed call never persists partial
mutations.

*/

package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/shieldvault/ivm/internal/access"
	"github.com/shieldvault/ivm/internal/coverage"
	"github.com/shieldvault/ivm/internal/custody"
	"github.com/shieldvault/ivm/internal/logger"
	"github.com/shieldvault/ivm/internal/types"
	"github.com/shieldvault/ivm/internal/utils"
	"github.com/shieldvault/ivm/internal/venue"
)

// Vault is the insured yield vault: share accounting over an underlying yield
// venue, with deposit and management fees and a cover-bounded invested position.
type Vault struct {
	mu     sync.Mutex
	logger zerolog.Logger

	venue     venue.Venue
	coverage  coverage.Service
	custodian custody.Custodian
	gate      access.Gate

	// address identifies the vault on the venue, coverage, and custody ledgers.
	address string

	state State

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// Config holds the collaborators and initial parameters for a new Vault.
type Config struct {
	Address                   string
	Venue                     venue.Venue
	Coverage                  coverage.Service
	Custodian                 custody.Custodian
	Gate                      access.Gate
	MaxManagedAssets          sdkmath.Int
	DepositFeeBps             uint64
	ManagementFeeBps          uint64
	RateDeviationToleranceBps uint64
	Now                       func() time.Time
}

// New creates a Vault with comprehensive validation of its dependencies.
func New(cfg Config) (*Vault, error) {
	if cfg.Address == "" {
		return nil, errors.New("vault address cannot be empty")
	}
	if cfg.Venue == nil {
		return nil, errors.New("venue cannot be nil")
	}
	if cfg.Coverage == nil {
		return nil, errors.New("coverage service cannot be nil")
	}
	if cfg.Custodian == nil {
		return nil, errors.New("custodian cannot be nil")
	}
	if cfg.Gate == nil {
		return nil, errors.New("access gate cannot be nil")
	}
	if cfg.MaxManagedAssets.IsNil() || cfg.MaxManagedAssets.IsNegative() {
		return nil, errors.New("max managed assets must be non-negative")
	}
	if cfg.DepositFeeBps >= BpsDenominator {
		return nil, fmt.Errorf("%w: initial deposit fee %d bps", ErrFeeOutOfBound, cfg.DepositFeeBps)
	}
	if cfg.ManagementFeeBps > BpsDenominator {
		return nil, fmt.Errorf("%w: initial management fee %d bps", ErrFeeOutOfBound, cfg.ManagementFeeBps)
	}
	if cfg.RateDeviationToleranceBps > BpsDenominator {
		return nil, fmt.Errorf("%w: rate tolerance %d bps", ErrFeeOutOfBound, cfg.RateDeviationToleranceBps)
	}

	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	v := &Vault{
		logger:    logger.GetForComponent("vault_core"),
		venue:     cfg.Venue,
		coverage:  cfg.Coverage,
		custodian: cfg.Custodian,
		gate:      cfg.Gate,
		address:   cfg.Address,
		state:     newState(cfg.MaxManagedAssets, cfg.DepositFeeBps, cfg.ManagementFeeBps, cfg.RateDeviationToleranceBps, nowFn()),
		now:       nowFn,
	}

	v.logger.Info().
		Str("address", cfg.Address).
		Str("maxManagedAssets", cfg.MaxManagedAssets.String()).
		Uint64("depositFeeBps", cfg.DepositFeeBps).
		Uint64("managementFeeBps", cfg.ManagementFeeBps).
		Msg("Vault initialized")
	return v, nil
}

// OpResult summarizes an executed operation for receipts and API responses.
type OpResult struct {
	Assets sdkmath.Int // gross assets moved (in for deposit/mint, out for withdraw/redeem)
	Shares sdkmath.Int // shares minted or burned
	Fee    sdkmath.Int // deposit fee charged, zero on the withdraw side
}

func zeroResult() OpResult {
	return OpResult{Assets: sdkmath.ZeroInt(), Shares: sdkmath.ZeroInt(), Fee: sdkmath.ZeroInt()}
}

// Deposit takes gross assets from caller and mints shares to receiver. The
// deposit fee comes off the gross amount before conversion; shares are
// converted rounding down.
func (v *Vault) Deposit(ctx context.Context, caller, receiver string, assets sdkmath.Int) (OpResult, error) {
	return v.deposit(ctx, caller, receiver, assets, nil)
}

// DepositWithMinShares is Deposit with a caller-supplied slippage bound: the
// operation fails if fewer than minShares would be minted.
func (v *Vault) DepositWithMinShares(ctx context.Context, caller, receiver string, assets, minShares sdkmath.Int) (OpResult, error) {
	return v.deposit(ctx, caller, receiver, assets, &minShares)
}

func (v *Vault) deposit(ctx context.Context, caller, receiver string, assets sdkmath.Int, minShares *sdkmath.Int) (OpResult, error) {
	if err := v.gate.RequireActive(); err != nil {
		return zeroResult(), err
	}
	if assets.IsNil() || !assets.IsPositive() {
		return zeroResult(), ErrZeroAmount
	}
	if receiver == "" {
		return zeroResult(), errors.New("receiver cannot be empty")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	prior := v.state.clone()
	v.accrueManagementFee()

	if err := v.checkDepositCapacity(ctx, assets); err != nil {
		v.state = prior
		return zeroResult(), err
	}

	basis, err := v.totalManagedAssets(ctx, false)
	if err != nil {
		v.state = prior
		return zeroResult(), err
	}

	fee := v.computeDepositFee(assets)
	net := assets.Sub(fee)
	shares := v.assetsToShares(net, basis, RoundDown)

	if minShares != nil && shares.LT(*minShares) {
		v.state = prior
		return zeroResult(), fmt.Errorf("%w: minted %s, minimum %s", ErrSlippageExceeded, shares, minShares)
	}

	v.recordDeposit(assets, fee)
	v.state.mintShares(receiver, shares)

	// Accounting settles before the external transfer; a transfer failure
	// rolls the whole call back.
	if err := v.custodian.TransferIn(ctx, caller, assets); err != nil {
		v.state = prior
		return zeroResult(), fmt.Errorf("asset transfer failed: %w", err)
	}

	v.logger.Info().
		Str("caller", caller).
		Str("receiver", receiver).
		Str("assets", assets.String()).
		Str("fee", fee.String()).
		Str("shares", shares.String()).
		Msg("Deposit settled")
	return OpResult{Assets: assets, Shares: shares, Fee: fee}, nil
}

// Mint charges caller whatever gross assets are required to mint exactly
// shares to receiver: the net requirement converts rounding up, then the
// deposit fee is grossed up on top.
func (v *Vault) Mint(ctx context.Context, caller, receiver string, shares sdkmath.Int) (OpResult, error) {
	return v.mint(ctx, caller, receiver, shares, nil)
}

// MintWithMaxAssets is Mint with a slippage bound: the operation fails if more
// than maxAssets would be charged.
func (v *Vault) MintWithMaxAssets(ctx context.Context, caller, receiver string, shares, maxAssets sdkmath.Int) (OpResult, error) {
	return v.mint(ctx, caller, receiver, shares, &maxAssets)
}

func (v *Vault) mint(ctx context.Context, caller, receiver string, shares sdkmath.Int, maxAssets *sdkmath.Int) (OpResult, error) {
	if err := v.gate.RequireActive(); err != nil {
		return zeroResult(), err
	}
	if shares.IsNil() || !shares.IsPositive() {
		return zeroResult(), ErrZeroAmount
	}
	if receiver == "" {
		return zeroResult(), errors.New("receiver cannot be empty")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	prior := v.state.clone()
	v.accrueManagementFee()

	basis, err := v.totalManagedAssets(ctx, false)
	if err != nil {
		v.state = prior
		return zeroResult(), err
	}

	net := v.sharesToAssets(shares, basis, RoundUp)
	gross, err := v.computeGrossFromNet(net)
	if err != nil {
		v.state = prior
		return zeroResult(), err
	}
	fee := gross.Sub(net)

	if maxAssets != nil && gross.GT(*maxAssets) {
		v.state = prior
		return zeroResult(), fmt.Errorf("%w: charged %s, maximum %s", ErrSlippageExceeded, gross, maxAssets)
	}
	if err := v.checkDepositCapacity(ctx, gross); err != nil {
		v.state = prior
		return zeroResult(), err
	}

	v.recordDeposit(gross, fee)
	v.state.mintShares(receiver, shares)

	if err := v.custodian.TransferIn(ctx, caller, gross); err != nil {
		v.state = prior
		return zeroResult(), fmt.Errorf("asset transfer failed: %w", err)
	}

	v.logger.Info().
		Str("caller", caller).
		Str("receiver", receiver).
		Str("gross", gross.String()).
		Str("fee", fee.String()).
		Str("shares", shares.String()).
		Msg("Mint settled")
	return OpResult{Assets: gross, Shares: shares, Fee: fee}, nil
}

// Withdraw pays exactly assets to receiver, burning the caller's shares
// rounding up so the vault never under-charges for a payout.
func (v *Vault) Withdraw(ctx context.Context, caller, receiver string, assets sdkmath.Int) (OpResult, error) {
	return v.withdraw(ctx, caller, receiver, assets, nil)
}

// WithdrawWithMaxShares is Withdraw with a slippage bound: the operation fails
// if more than maxShares would be burned.
func (v *Vault) WithdrawWithMaxShares(ctx context.Context, caller, receiver string, assets, maxShares sdkmath.Int) (OpResult, error) {
	return v.withdraw(ctx, caller, receiver, assets, &maxShares)
}

func (v *Vault) withdraw(ctx context.Context, caller, receiver string, assets sdkmath.Int, maxShares *sdkmath.Int) (OpResult, error) {
	if err := v.gate.RequireActive(); err != nil {
		return zeroResult(), err
	}
	if assets.IsNil() || !assets.IsPositive() {
		return zeroResult(), ErrZeroAmount
	}
	if receiver == "" {
		return zeroResult(), errors.New("receiver cannot be empty")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	prior := v.state.clone()
	v.accrueManagementFee()

	basis, err := v.totalManagedAssets(ctx, false)
	if err != nil {
		v.state = prior
		return zeroResult(), err
	}

	shares := v.assetsToShares(assets, basis, RoundUp)
	if maxShares != nil && shares.GT(*maxShares) {
		v.state = prior
		return zeroResult(), fmt.Errorf("%w: burned %s, maximum %s", ErrSlippageExceeded, shares, maxShares)
	}
	if err := v.state.burnShares(caller, shares); err != nil {
		v.state = prior
		return zeroResult(), err
	}

	if err := v.payOutAssets(ctx, assets, receiver); err != nil {
		v.state = prior
		return zeroResult(), err
	}

	v.logger.Info().
		Str("caller", caller).
		Str("receiver", receiver).
		Str("assets", assets.String()).
		Str("shares", shares.String()).
		Msg("Withdraw settled")
	return OpResult{Assets: assets, Shares: shares, Fee: sdkmath.ZeroInt()}, nil
}

// Redeem burns exactly shares from the caller and pays the resulting assets to
// receiver, converted rounding down so the vault never over-pays.
func (v *Vault) Redeem(ctx context.Context, caller, receiver string, shares sdkmath.Int) (OpResult, error) {
	return v.redeem(ctx, caller, receiver, shares, nil)
}

// RedeemWithMinAssets is Redeem with a slippage bound: the operation fails if
// fewer than minAssets would be paid out.
func (v *Vault) RedeemWithMinAssets(ctx context.Context, caller, receiver string, shares, minAssets sdkmath.Int) (OpResult, error) {
	return v.redeem(ctx, caller, receiver, shares, &minAssets)
}

func (v *Vault) redeem(ctx context.Context, caller, receiver string, shares sdkmath.Int, minAssets *sdkmath.Int) (OpResult, error) {
	if err := v.gate.RequireActive(); err != nil {
		return zeroResult(), err
	}
	if shares.IsNil() || !shares.IsPositive() {
		return zeroResult(), ErrZeroAmount
	}
	if receiver == "" {
		return zeroResult(), errors.New("receiver cannot be empty")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	prior := v.state.clone()
	v.accrueManagementFee()

	basis, err := v.totalManagedAssets(ctx, false)
	if err != nil {
		v.state = prior
		return zeroResult(), err
	}

	assets := v.sharesToAssets(shares, basis, RoundDown)
	if minAssets != nil && assets.LT(*minAssets) {
		v.state = prior
		return zeroResult(), fmt.Errorf("%w: paid %s, minimum %s", ErrSlippageExceeded, assets, minAssets)
	}
	if err := v.state.burnShares(caller, shares); err != nil {
		v.state = prior
		return zeroResult(), err
	}

	if assets.IsPositive() {
		if err := v.payOutAssets(ctx, assets, receiver); err != nil {
			v.state = prior
			return zeroResult(), err
		}
	}

	v.logger.Info().
		Str("caller", caller).
		Str("receiver", receiver).
		Str("assets", assets.String()).
		Str("shares", shares.String()).
		Msg("Redeem settled")
	return OpResult{Assets: assets, Shares: shares, Fee: sdkmath.ZeroInt()}, nil
}

// Invest deploys idle assets into the venue. The venue rate deviation check
// runs first, and the resulting invested value must stay within the active
// cover amount. Operator only.
func (v *Vault) Invest(ctx context.Context, caller string, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := v.gate.RequireRole(caller, access.RoleOperator); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := v.gate.RequireActive(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	prior := v.state.clone()
	v.accrueManagementFee()

	if err := v.checkVenueRateDeviation(ctx); err != nil {
		v.state = prior
		return sdkmath.ZeroInt(), err
	}

	investedValue, err := v.valueOfUnits(ctx, v.state.InvestedUnits, false)
	if err != nil {
		v.state = prior
		return sdkmath.ZeroInt(), fmt.Errorf("venue valuation failed: %w", err)
	}
	if err := v.assertInvestWithinCover(ctx, investedValue.Add(amount)); err != nil {
		v.state = prior
		return sdkmath.ZeroInt(), err
	}

	units, err := v.recordInvest(ctx, amount)
	if err != nil {
		v.state = prior
		return sdkmath.ZeroInt(), err
	}

	v.logger.Info().
		Str("caller", caller).
		Str("assets", amount.String()).
		Str("units", units.String()).
		Msg("Invest settled")
	return units, nil
}

// Uninvest redeems venue units back into idle assets. Subject to the same
// venue rate deviation check as Invest. Operator only.
func (v *Vault) Uninvest(ctx context.Context, caller string, units sdkmath.Int) (sdkmath.Int, error) {
	if err := v.gate.RequireRole(caller, access.RoleOperator); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := v.gate.RequireActive(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if units.IsNil() || !units.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	prior := v.state.clone()
	v.accrueManagementFee()

	if err := v.checkVenueRateDeviation(ctx); err != nil {
		v.state = prior
		return sdkmath.ZeroInt(), err
	}

	assets, err := v.recordUninvest(ctx, units)
	if err != nil {
		v.state = prior
		return sdkmath.ZeroInt(), err
	}

	v.logger.Info().
		Str("caller", caller).
		Str("units", units.String()).
		Str("assets", assets.String()).
		Msg("Uninvest settled")
	return assets, nil
}

// AccrueFees materializes the pending management fee. Exposed for the
// maintenance loop; every user operation accrues on its own.
func (v *Vault) AccrueFees() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accrueManagementFee()
}

// BalanceOf returns an account's share balance.
func (v *Vault) BalanceOf(account string) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.balanceOf(account)
}

// TotalShares returns the outstanding share supply.
func (v *Vault) TotalShares() sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.TotalShareSupply
}

// FeeRates returns the active deposit and management fee rates in bps.
func (v *Vault) FeeRates() (depositBps, managementBps uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.DepositFeeBps, v.state.ManagementFeeBps
}

// CoverExpired reports whether the active cover has expired. False with no
// active cover.
func (v *Vault) CoverExpired(ctx context.Context) (bool, error) {
	v.mu.Lock()
	coverID := v.state.ActiveCoverID
	v.mu.Unlock()

	if coverID == 0 {
		return false, nil
	}
	return v.coverage.IsCoverExpired(ctx, coverID)
}

// Snapshot captures the current accounting state for persistence and the API.
// assetPrecision is used only for the display share price.
func (v *Vault) Snapshot(ctx context.Context, assetPrecision int) (types.VaultSnapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	total, err := v.totalManagedAssets(ctx, true)
	if err != nil {
		return types.VaultSnapshot{}, err
	}

	snap := types.VaultSnapshot{
		Timestamp:            v.now().UTC(),
		IdleAssets:           v.state.IdleAssets,
		InvestedUnits:        v.state.InvestedUnits,
		TotalManagedAssets:   total,
		TotalShareSupply:     v.state.TotalShareSupply,
		AccumulatedAssetFees: v.state.AccumulatedAssetFees,
		AccumulatedShareFees: v.state.AccumulatedShareFees,
		DepositFeeBps:        v.state.DepositFeeBps,
		ManagementFeeBps:     v.state.ManagementFeeBps,
		ActiveCoverID:        v.state.ActiveCoverID,
	}

	if v.state.TotalShareSupply.IsPositive() {
		totalF, err := utils.SDKIntToFloat64(total, assetPrecision)
		if err != nil {
			return types.VaultSnapshot{}, err
		}
		supplyF, err := utils.SDKIntToFloat64(v.state.TotalShareSupply, assetPrecision)
		if err != nil {
			return types.VaultSnapshot{}, err
		}
		if supplyF > 0 {
			snap.SharePrice = totalF / supplyF
		}
	} else {
		snap.SharePrice = 1.0
	}

	return snap, nil
}
