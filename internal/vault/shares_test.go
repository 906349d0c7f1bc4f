package vault_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// yieldHarness builds a vault with 1000 shares backed by 1500 assets, so
// conversions have a 3/2 exchange rate and rounding directions are observable.
func yieldHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, defaultOpts())
	h.depositAs(t, "alice", 1000)
	h.investAs(t, 1000)
	h.venue.setRate(3, 2)
	return h
}

func TestConvertRoundTripNeverFavorsCaller(t *testing.T) {
	h := yieldHarness(t)
	ctx := context.Background()

	// 100 assets at 3/2: 100 * 1000 / 1500 = 66.67 rounds down to 66 shares.
	shares, err := h.vault.ConvertToShares(ctx, intVal(100))
	require.NoError(t, err)
	require.Equal(t, "66", shares.String())

	// Converting those 66 shares back: 66 * 1500 / 1000 = 99, never more
	// than went in.
	assets, err := h.vault.ConvertToAssets(ctx, shares)
	require.NoError(t, err)
	require.Equal(t, "99", assets.String())
}

func TestPreviewDepositMatchesDeposit(t *testing.T) {
	opts := defaultOpts()
	opts.depositFeeBps = 300
	h := newHarness(t, opts)
	ctx := context.Background()

	h.depositAs(t, "seed", 1000)

	quoted, err := h.vault.PreviewDeposit(ctx, intVal(777))
	require.NoError(t, err)

	res, err := h.vault.Deposit(ctx, "alice", "alice", intVal(777))
	require.NoError(t, err)
	require.Equal(t, quoted.String(), res.Shares.String())
}

func TestPreviewMintMatchesMint(t *testing.T) {
	opts := defaultOpts()
	opts.depositFeeBps = 300
	h := newHarness(t, opts)
	ctx := context.Background()

	h.depositAs(t, "seed", 1000)

	quoted, err := h.vault.PreviewMint(ctx, intVal(321))
	require.NoError(t, err)

	res, err := h.vault.Mint(ctx, "alice", "alice", intVal(321))
	require.NoError(t, err)
	require.Equal(t, quoted.String(), res.Assets.String())
}

func TestPreviewWithdrawRoundsUp(t *testing.T) {
	h := yieldHarness(t)
	ctx := context.Background()

	// 100 assets at 3/2: 100 * 1000 / 1500 = 66.67 rounds UP to 67 shares,
	// so the vault never under-charges for a payout.
	shares, err := h.vault.PreviewWithdraw(ctx, intVal(100))
	require.NoError(t, err)
	require.Equal(t, "67", shares.String())

	res, err := h.vault.Withdraw(ctx, "alice", "alice", intVal(100))
	require.NoError(t, err)
	require.Equal(t, "67", res.Shares.String())
}

func TestPreviewRedeemRoundsDown(t *testing.T) {
	h := yieldHarness(t)
	ctx := context.Background()

	// 67 shares at 3/2: 67 * 1500 / 1000 = 100.5 rounds down to 100 assets.
	assets, err := h.vault.PreviewRedeem(ctx, intVal(67))
	require.NoError(t, err)
	require.Equal(t, "100", assets.String())

	res, err := h.vault.Redeem(ctx, "alice", "alice", intVal(67))
	require.NoError(t, err)
	require.Equal(t, "100", res.Assets.String())
}

func TestConvertOnEmptyVaultIsOneToOne(t *testing.T) {
	h := newHarness(t, defaultOpts())
	ctx := context.Background()

	shares, err := h.vault.ConvertToShares(ctx, intVal(12345))
	require.NoError(t, err)
	require.Equal(t, "12345", shares.String())

	assets, err := h.vault.ConvertToAssets(ctx, intVal(12345))
	require.NoError(t, err)
	require.Equal(t, "12345", assets.String())
}

func TestMaxMintReflectsDepositFee(t *testing.T) {
	opts := defaultOpts()
	opts.maxManaged = intVal(1000)
	opts.depositFeeBps = 500
	h := newHarness(t, opts)
	ctx := context.Background()

	// Full 1000 capacity, 5% of which the fee would consume.
	maxMint, err := h.vault.MaxMint(ctx)
	require.NoError(t, err)
	require.Equal(t, "950", maxMint.String())
}
