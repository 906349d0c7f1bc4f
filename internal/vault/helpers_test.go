package vault_test

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/shieldvault/ivm/internal/access"
	"github.com/shieldvault/ivm/internal/coverage"
	"github.com/shieldvault/ivm/internal/vault"
)

const (
	adminAddr    = "admin-1"
	operatorAddr = "operator-1"
)

func intVal(v int64) sdkmath.Int { return sdkmath.NewInt(v) }

// testClock is an injectable clock so fee accrual and timelocks are exact.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeVenue is a proportional in-memory venue. Its exchange rate is the
// rational rateNum/rateDen assets per unit, so tests can pick exact values.
type fakeVenue struct {
	rateNum sdkmath.Int
	rateDen sdkmath.Int

	depositErr  error
	redeemErr   error
	withdrawErr error
	convertErr  error
	transferErr error

	depositCalls  int
	redeemCalls   int
	withdrawCalls int

	lastWithdrawAssets   sdkmath.Int
	lastWithdrawReceiver string
	lastTransferTo       string
	lastTransferUnits    sdkmath.Int
}

func newFakeVenue() *fakeVenue {
	return &fakeVenue{rateNum: intVal(1), rateDen: intVal(1)}
}

// setRate changes the venue exchange rate to num/den assets per unit.
func (f *fakeVenue) setRate(num, den int64) {
	f.rateNum = intVal(num)
	f.rateDen = intVal(den)
}

func (f *fakeVenue) unitsFor(assets sdkmath.Int) sdkmath.Int {
	return assets.Mul(f.rateDen).Quo(f.rateNum)
}

func (f *fakeVenue) assetsFor(units sdkmath.Int) sdkmath.Int {
	return units.Mul(f.rateNum).Quo(f.rateDen)
}

func (f *fakeVenue) Deposit(_ context.Context, assets sdkmath.Int, _ string) (sdkmath.Int, error) {
	f.depositCalls++
	if f.depositErr != nil {
		return sdkmath.ZeroInt(), f.depositErr
	}
	return f.unitsFor(assets), nil
}

func (f *fakeVenue) Redeem(_ context.Context, units sdkmath.Int, _, _ string) (sdkmath.Int, error) {
	f.redeemCalls++
	if f.redeemErr != nil {
		return sdkmath.ZeroInt(), f.redeemErr
	}
	return f.assetsFor(units), nil
}

func (f *fakeVenue) Withdraw(_ context.Context, assets sdkmath.Int, receiver, _ string) (sdkmath.Int, error) {
	f.withdrawCalls++
	if f.withdrawErr != nil {
		return sdkmath.ZeroInt(), f.withdrawErr
	}
	f.lastWithdrawAssets = assets
	f.lastWithdrawReceiver = receiver
	return f.unitsFor(assets), nil
}

func (f *fakeVenue) ConvertToAssets(_ context.Context, units sdkmath.Int) (sdkmath.Int, error) {
	if f.convertErr != nil {
		return sdkmath.ZeroInt(), f.convertErr
	}
	return f.assetsFor(units), nil
}

func (f *fakeVenue) PreviewRedeem(_ context.Context, units sdkmath.Int) (sdkmath.Int, error) {
	if f.convertErr != nil {
		return sdkmath.ZeroInt(), f.convertErr
	}
	return f.assetsFor(units), nil
}

func (f *fakeVenue) TransferUnits(_ context.Context, to string, units sdkmath.Int) error {
	if f.transferErr != nil {
		return f.transferErr
	}
	f.lastTransferTo = to
	f.lastTransferUnits = units
	return nil
}

func (f *fakeVenue) Close() error { return nil }

// fakeCoverage hands out sequential cover identifiers and never escrows
// anything.
type fakeCoverage struct {
	nextCoverID  uint64
	expired      bool
	coverAmount  sdkmath.Int
	buyErr       error
	redeemErr    error
	expiredErr   error
	redeemPayout sdkmath.Int

	lastBuyParams    coverage.BuyParams
	lastRedeemParams coverage.RedeemParams
}

func newFakeCoverage() *fakeCoverage {
	return &fakeCoverage{
		nextCoverID:  7,
		coverAmount:  intVal(1_000_000),
		redeemPayout: sdkmath.ZeroInt(),
	}
}

func (f *fakeCoverage) BuyCover(_ context.Context, params coverage.BuyParams) (uint64, error) {
	if f.buyErr != nil {
		return 0, f.buyErr
	}
	f.lastBuyParams = params
	if params.CoverID != 0 {
		return params.CoverID, nil
	}
	id := f.nextCoverID
	f.nextCoverID++
	return id, nil
}

func (f *fakeCoverage) RedeemCover(_ context.Context, params coverage.RedeemParams) (sdkmath.Int, string, error) {
	if f.redeemErr != nil {
		return sdkmath.ZeroInt(), "", f.redeemErr
	}
	f.lastRedeemParams = params
	return f.redeemPayout, "usdc", nil
}

func (f *fakeCoverage) IsCoverExpired(_ context.Context, _ uint64) (bool, error) {
	if f.expiredErr != nil {
		return false, f.expiredErr
	}
	return f.expired, nil
}

func (f *fakeCoverage) ActiveCoverAmount(_ context.Context, _ uint64) (sdkmath.Int, error) {
	return f.coverAmount, nil
}

func (f *fakeCoverage) Close() error { return nil }

// fakeCustodian records asset movements instead of performing them.
type fakeCustodian struct {
	transferInErr  error
	transferOutErr error

	inCalls  int
	outCalls int

	lastInFrom    string
	lastInAmount  sdkmath.Int
	lastOutTo     string
	lastOutAmount sdkmath.Int
}

func newFakeCustodian() *fakeCustodian { return &fakeCustodian{} }

func (f *fakeCustodian) TransferIn(_ context.Context, from string, amount sdkmath.Int) error {
	f.inCalls++
	if f.transferInErr != nil {
		return f.transferInErr
	}
	f.lastInFrom = from
	f.lastInAmount = amount
	return nil
}

func (f *fakeCustodian) TransferOut(_ context.Context, to string, amount sdkmath.Int) error {
	f.outCalls++
	if f.transferOutErr != nil {
		return f.transferOutErr
	}
	f.lastOutTo = to
	f.lastOutAmount = amount
	return nil
}

func (f *fakeCustodian) Close() error { return nil }

// harness bundles a vault wired to fakes with an injected clock.
type harness struct {
	vault     *vault.Vault
	venue     *fakeVenue
	coverage  *fakeCoverage
	custodian *fakeCustodian
	gate      *access.Controller
	clock     *testClock
}

type harnessOpts struct {
	depositFeeBps    uint64
	managementFeeBps uint64
	maxManaged       sdkmath.Int
	rateTolBps       uint64
}

func defaultOpts() harnessOpts {
	return harnessOpts{
		maxManaged: intVal(1_000_000_000),
		rateTolBps: 500,
	}
}

func newHarness(t *testing.T, opts harnessOpts) *harness {
	t.Helper()

	ven := newFakeVenue()
	cov := newFakeCoverage()
	cus := newFakeCustodian()
	clk := newTestClock()

	gate, err := access.NewController(adminAddr, operatorAddr)
	require.NoError(t, err)

	v, err := vault.New(vault.Config{
		Address:                   "vault-under-test",
		Venue:                     ven,
		Coverage:                  cov,
		Custodian:                 cus,
		Gate:                      gate,
		MaxManagedAssets:          opts.maxManaged,
		DepositFeeBps:             opts.depositFeeBps,
		ManagementFeeBps:          opts.managementFeeBps,
		RateDeviationToleranceBps: opts.rateTolBps,
		Now:                       clk.Now,
	})
	require.NoError(t, err)

	return &harness{vault: v, venue: ven, coverage: cov, custodian: cus, gate: gate, clock: clk}
}

// depositAs runs a deposit that the test requires to succeed.
func (h *harness) depositAs(t *testing.T, account string, assets int64) vault.OpResult {
	t.Helper()
	res, err := h.vault.Deposit(context.Background(), account, account, intVal(assets))
	require.NoError(t, err)
	return res
}

// investAs buys cover when none is active yet and invests as the operator.
func (h *harness) investAs(t *testing.T, assets int64) sdkmath.Int {
	t.Helper()
	ctx := context.Background()
	if h.vault.ActiveCoverID() == 0 {
		_, err := h.vault.BuyCover(ctx, operatorAddr, coverage.BuyParams{
			CoverAsset: "usdc",
			Amount:     h.coverage.coverAmount,
			PeriodDays: 30,
			MaxPremium: intVal(10_000),
			ProductID:  1,
		})
		require.NoError(t, err)
	}
	units, err := h.vault.Invest(ctx, operatorAddr, intVal(assets))
	require.NoError(t, err)
	return units
}
