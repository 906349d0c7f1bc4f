package venue

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// Venue defines the interface to the underlying yield-generating venue.
// This interface abstracts away the specific venue implementation, allowing for
// different backends (live, simulation, test doubles). All amounts are in the
// venue's base asset; units are the venue's own share denomination. The venue is
// assumed proportional, non-negative, and monotonic in units.
type Venue interface {
	// Deposit places assets into the venue for receiver and returns the units minted.
	Deposit(ctx context.Context, assets sdkmath.Int, receiver string) (sdkmath.Int, error)

	// Redeem burns units owned by owner and pays the resulting assets to receiver.
	Redeem(ctx context.Context, units sdkmath.Int, receiver, owner string) (sdkmath.Int, error)

	// Withdraw pays exactly assets to receiver, burning whatever units of owner
	// that requires, and returns the units burned.
	Withdraw(ctx context.Context, assets sdkmath.Int, receiver, owner string) (sdkmath.Int, error)

	// ConvertToAssets quotes the current asset value of units without settling.
	ConvertToAssets(ctx context.Context, units sdkmath.Int) (sdkmath.Int, error)

	// PreviewRedeem quotes the assets a redemption of units would settle for,
	// net of any venue-side exit costs.
	PreviewRedeem(ctx context.Context, units sdkmath.Int) (sdkmath.Int, error)

	// TransferUnits moves units held by the vault to another venue account.
	// Used when claiming the share-denominated fee pool.
	TransferUnits(ctx context.Context, to string, units sdkmath.Int) error

	// Close cleans up any resources used by the venue client.
	Close() error
}
