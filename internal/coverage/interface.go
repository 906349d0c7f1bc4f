package coverage

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// BuyParams describes a cover purchase or renewal. CoverID is zero for a fresh
// purchase; a non-zero CoverID asks the service to increase the existing cover.
type BuyParams struct {
	CoverID      uint64      `json:"cover_id,omitempty"`
	CoverAsset   string      `json:"cover_asset"`
	Amount       sdkmath.Int `json:"amount"`
	PeriodDays   uint32      `json:"period_days"`
	MaxPremium   sdkmath.Int `json:"max_premium"`
	ProductID    uint64      `json:"product_id"`
	PayoutWallet string      `json:"payout_wallet"`
}

// RedeemParams describes a claim against an active cover.
type RedeemParams struct {
	IncidentID    uint64      `json:"incident_id"`
	CoverID       uint64      `json:"cover_id"`
	SegmentID     uint64      `json:"segment_id"`
	DepeggedUnits sdkmath.Int `json:"depegged_units"`
	PayoutAddress string      `json:"payout_address"`
}

// Service defines the interface to the external coverage provider. The vault
// only tracks the returned cover identifier and the resulting amount movements;
// premium escrow and allocation mechanics live entirely on the provider side.
type Service interface {
	// BuyCover purchases or extends cover and returns the cover identifier.
	BuyCover(ctx context.Context, params BuyParams) (uint64, error)

	// RedeemCover files a claim and returns the payout amount and the asset it
	// was paid in.
	RedeemCover(ctx context.Context, params RedeemParams) (sdkmath.Int, string, error)

	// IsCoverExpired reports whether the cover's last segment has ended.
	IsCoverExpired(ctx context.Context, coverID uint64) (bool, error)

	// ActiveCoverAmount returns the currently insured amount for the cover.
	ActiveCoverAmount(ctx context.Context, coverID uint64) (sdkmath.Int, error)

	// Close cleans up any resources used by the coverage client.
	Close() error
}
