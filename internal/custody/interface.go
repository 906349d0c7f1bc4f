package custody

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// Custodian defines the interface to the asset ledger holding the vault's base
// asset. The vault never touches raw balances; it instructs the custodian to
// move amounts between user accounts and vault custody.
type Custodian interface {
	// TransferIn pulls amount of the base asset from the given account into
	// vault custody. Fails if the account lacks funds or allowance.
	TransferIn(ctx context.Context, from string, amount sdkmath.Int) error

	// TransferOut pays amount of the base asset from vault custody to the
	// given account.
	TransferOut(ctx context.Context, to string, amount sdkmath.Int) error

	// Close cleans up any resources used by the custodian client.
	Close() error
}
