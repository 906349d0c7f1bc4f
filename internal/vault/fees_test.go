package vault_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shieldvault/ivm/internal/access"
	"github.com/shieldvault/ivm/internal/vault"
)

func TestManagementFeeAccruesOverYear(t *testing.T) {
	opts := defaultOpts()
	opts.managementFeeBps = 5000 // 50% per year
	h := newHarness(t, opts)
	ctx := context.Background()

	h.depositAs(t, "alice", 1000)
	h.investAs(t, 1000)

	h.clock.Advance(365 * 24 * time.Hour)
	h.vault.AccrueFees()

	// 50% of 1000 invested units over exactly one year.
	snap, err := h.vault.Snapshot(ctx, 6)
	require.NoError(t, err)
	require.Equal(t, "500", snap.InvestedUnits.String())
	require.Equal(t, "500", snap.AccumulatedShareFees.String())

	// Share supply is untouched; holders are diluted through the exchange
	// rate instead.
	require.Equal(t, "1000", snap.TotalShareSupply.String())
	total, err := h.vault.TotalAssets(ctx)
	require.NoError(t, err)
	require.Equal(t, "500", total.String())
}

func TestManagementFeeOnlyOnInvested(t *testing.T) {
	opts := defaultOpts()
	opts.managementFeeBps = 5000
	h := newHarness(t, opts)
	ctx := context.Background()

	// All funds idle, nothing invested: no fee accrues.
	h.depositAs(t, "alice", 1000)
	h.clock.Advance(365 * 24 * time.Hour)
	h.vault.AccrueFees()

	snap, err := h.vault.Snapshot(ctx, 6)
	require.NoError(t, err)
	require.Equal(t, "0", snap.AccumulatedShareFees.String())
	require.Equal(t, "1000", snap.IdleAssets.String())
}

func TestManagementFeeTruncationCarriesForward(t *testing.T) {
	opts := defaultOpts()
	opts.managementFeeBps = 100 // 1% per year
	h := newHarness(t, opts)
	ctx := context.Background()

	h.depositAs(t, "alice", 1000)
	h.investAs(t, 1000)

	// One hour of a 1% yearly fee on 1000 units truncates to zero. The
	// accrual clock must not advance, or the sub-unit accrual would be lost.
	h.clock.Advance(time.Hour)
	h.vault.AccrueFees()
	snap, err := h.vault.Snapshot(ctx, 6)
	require.NoError(t, err)
	require.Equal(t, "0", snap.AccumulatedShareFees.String())

	// Completing the year from the original accrual time yields the full 10
	// units, not 10 minus the truncated hour.
	h.clock.Advance(365*24*time.Hour - time.Hour)
	h.vault.AccrueFees()
	snap, err = h.vault.Snapshot(ctx, 6)
	require.NoError(t, err)
	require.Equal(t, "10", snap.AccumulatedShareFees.String())
	require.Equal(t, "990", snap.InvestedUnits.String())
}

func TestSnapshotNetsOutPendingFee(t *testing.T) {
	opts := defaultOpts()
	opts.managementFeeBps = 5000
	h := newHarness(t, opts)
	ctx := context.Background()

	h.depositAs(t, "alice", 1000)
	h.investAs(t, 1000)
	h.clock.Advance(365 * 24 * time.Hour)

	// Without materializing, quotes already reflect the accrued fee.
	total, err := h.vault.TotalAssets(ctx)
	require.NoError(t, err)
	require.Equal(t, "500", total.String())

	assets, err := h.vault.ConvertToAssets(ctx, intVal(1000))
	require.NoError(t, err)
	require.Equal(t, "500", assets.String())
}

func TestProposeFeeRequiresAdmin(t *testing.T) {
	h := newHarness(t, defaultOpts())

	err := h.vault.ProposeFee(operatorAddr, vault.FeeDeposit, 100)
	require.ErrorIs(t, err, access.ErrUnauthorized)

	err = h.vault.ProposeFee(adminAddr, vault.FeeDeposit, 100)
	require.NoError(t, err)
}

func TestProposeFeeBounds(t *testing.T) {
	h := newHarness(t, defaultOpts())

	err := h.vault.ProposeFee(adminAddr, vault.FeeManagement, 10_001)
	require.ErrorIs(t, err, vault.ErrFeeOutOfBound)

	// A 100% deposit fee would break the mint gross-up; rejected at proposal
	// time. A 100% management fee is legal.
	err = h.vault.ProposeFee(adminAddr, vault.FeeDeposit, 10_000)
	require.ErrorIs(t, err, vault.ErrFeeOutOfBound)
	err = h.vault.ProposeFee(adminAddr, vault.FeeManagement, 10_000)
	require.NoError(t, err)
}

func TestApplyFeeTimelock(t *testing.T) {
	h := newHarness(t, defaultOpts())

	require.NoError(t, h.vault.ProposeFee(adminAddr, vault.FeeDeposit, 250))

	_, err := h.vault.ApplyFee(adminAddr, vault.FeeDeposit)
	require.ErrorIs(t, err, vault.ErrTimelockNotElapsed)

	h.clock.Advance(vault.FeeTimelock - time.Second)
	_, err = h.vault.ApplyFee(adminAddr, vault.FeeDeposit)
	require.ErrorIs(t, err, vault.ErrTimelockNotElapsed)

	h.clock.Advance(time.Second)
	change, err := h.vault.ApplyFee(adminAddr, vault.FeeDeposit)
	require.NoError(t, err)
	require.Equal(t, uint64(0), change.OldBps)
	require.Equal(t, uint64(250), change.NewBps)

	depBps, _ := h.vault.FeeRates()
	require.Equal(t, uint64(250), depBps)

	// The proposal is consumed.
	_, err = h.vault.ApplyFee(adminAddr, vault.FeeDeposit)
	require.ErrorIs(t, err, vault.ErrNoProposalFound)
}

func TestProposeFeeOverwritesPending(t *testing.T) {
	h := newHarness(t, defaultOpts())

	require.NoError(t, h.vault.ProposeFee(adminAddr, vault.FeeDeposit, 250))
	h.clock.Advance(vault.FeeTimelock)

	// Re-proposing restarts the timelock with the new rate.
	require.NoError(t, h.vault.ProposeFee(adminAddr, vault.FeeDeposit, 100))
	_, err := h.vault.ApplyFee(adminAddr, vault.FeeDeposit)
	require.ErrorIs(t, err, vault.ErrTimelockNotElapsed)

	h.clock.Advance(vault.FeeTimelock)
	change, err := h.vault.ApplyFee(adminAddr, vault.FeeDeposit)
	require.NoError(t, err)
	require.Equal(t, uint64(100), change.NewBps)
}

func TestApplyManagementFeeAccruesOldRateFirst(t *testing.T) {
	opts := defaultOpts()
	opts.managementFeeBps = 5000
	h := newHarness(t, opts)
	ctx := context.Background()

	h.depositAs(t, "alice", 1000)
	h.investAs(t, 1000)

	require.NoError(t, h.vault.ProposeFee(adminAddr, vault.FeeManagement, 0))

	// A full year passes before the change is applied. The year must be
	// charged at the old 50%, not retroactively at the new 0%.
	h.clock.Advance(365 * 24 * time.Hour)
	change, err := h.vault.ApplyFee(adminAddr, vault.FeeManagement)
	require.NoError(t, err)
	require.Equal(t, uint64(5000), change.OldBps)
	require.Equal(t, uint64(0), change.NewBps)

	snap, err := h.vault.Snapshot(ctx, 6)
	require.NoError(t, err)
	require.Equal(t, "500", snap.AccumulatedShareFees.String())
	require.Equal(t, uint64(0), snap.ManagementFeeBps)

	// No further accrual under the zero rate.
	h.clock.Advance(365 * 24 * time.Hour)
	h.vault.AccrueFees()
	snap, err = h.vault.Snapshot(ctx, 6)
	require.NoError(t, err)
	require.Equal(t, "500", snap.AccumulatedShareFees.String())
}

func TestClaimFees(t *testing.T) {
	opts := defaultOpts()
	opts.depositFeeBps = 500
	opts.managementFeeBps = 5000
	h := newHarness(t, opts)
	ctx := context.Background()

	h.depositAs(t, "alice", 10_000) // 500 asset fee, 9500 idle
	h.investAs(t, 9500)
	h.clock.Advance(365 * 24 * time.Hour)
	h.vault.AccrueFees() // 4750 unit fee

	require.ErrorIs(t, func() error {
		_, _, err := h.vault.ClaimFees(ctx, operatorAddr, "treasury")
		return err
	}(), access.ErrUnauthorized)

	assetFees, shareFees, err := h.vault.ClaimFees(ctx, adminAddr, "treasury")
	require.NoError(t, err)
	require.Equal(t, "500", assetFees.String())
	require.Equal(t, "4750", shareFees.String())

	// Asset pool left through custody, unit pool through the venue ledger.
	require.Equal(t, "treasury", h.custodian.lastOutTo)
	require.Equal(t, "500", h.custodian.lastOutAmount.String())
	require.Equal(t, "treasury", h.venue.lastTransferTo)
	require.Equal(t, "4750", h.venue.lastTransferUnits.String())

	// Both pools are zeroed; a second claim finds nothing.
	_, _, err = h.vault.ClaimFees(ctx, adminAddr, "treasury")
	require.ErrorIs(t, err, vault.ErrNoFeesToClaim)
}

func TestClaimFeesRestoresPoolsOnAssetTransferFailure(t *testing.T) {
	opts := defaultOpts()
	opts.depositFeeBps = 500
	h := newHarness(t, opts)
	ctx := context.Background()

	h.depositAs(t, "alice", 10_000)
	h.custodian.transferOutErr = errors.New("custody offline")

	_, _, err := h.vault.ClaimFees(ctx, adminAddr, "treasury")
	require.Error(t, err)

	// Nothing moved, so the pool stays claimable.
	h.custodian.transferOutErr = nil
	assetFees, _, err := h.vault.ClaimFees(ctx, adminAddr, "treasury")
	require.NoError(t, err)
	require.Equal(t, "500", assetFees.String())
}

func TestClaimFeesKeepsUnitPoolOnVenueFailure(t *testing.T) {
	opts := defaultOpts()
	opts.depositFeeBps = 500
	opts.managementFeeBps = 5000
	h := newHarness(t, opts)
	ctx := context.Background()

	h.depositAs(t, "alice", 10_000)
	h.investAs(t, 9500)
	h.clock.Advance(365 * 24 * time.Hour)
	h.vault.AccrueFees()

	h.venue.transferErr = errors.New("venue ledger offline")
	_, _, err := h.vault.ClaimFees(ctx, adminAddr, "treasury")
	require.Error(t, err)

	// The asset pool settled before the venue failure; only the unit pool
	// remains claimable.
	h.venue.transferErr = nil
	assetFees, shareFees, err := h.vault.ClaimFees(ctx, adminAddr, "treasury")
	require.NoError(t, err)
	require.Equal(t, "0", assetFees.String())
	require.Equal(t, "4750", shareFees.String())
}
