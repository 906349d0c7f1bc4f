package operator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/shieldvault/ivm/internal/logger"
	"github.com/shieldvault/ivm/internal/metrics"
	"github.com/shieldvault/ivm/internal/state"
	"github.com/shieldvault/ivm/internal/utils"
	"github.com/shieldvault/ivm/internal/vault"
)

// Operator runs the vault's periodic maintenance: management-fee accrual,
// cover-expiry monitoring, snapshot persistence, and gauge refresh. It never
// mutates anything a user operation would not; accrual is the same
// materialization every deposit or withdrawal performs on entry.
type Operator struct {
	logger         zerolog.Logger
	vault          *vault.Vault
	assetPrecision int
	cycleCount     int
}

// Config holds the configuration for creating a new Operator instance.
type Config struct {
	Vault          *vault.Vault
	AssetPrecision int
}

// New creates an Operator with dependency validation.
func New(cfg Config) (*Operator, error) {
	if cfg.Vault == nil {
		return nil, errors.New("vault cannot be nil")
	}
	if cfg.AssetPrecision < 0 || cfg.AssetPrecision > 18 {
		return nil, errors.New("asset precision must be between 0 and 18")
	}
	return &Operator{
		logger:         logger.GetForComponent("operator"),
		vault:          cfg.Vault,
		assetPrecision: cfg.AssetPrecision,
	}, nil
}

// RunLoop starts the maintenance loop with the specified interval.
func (o *Operator) RunLoop(ctx context.Context, interval time.Duration) {
	o.logger.Info().
		Dur("interval", interval).
		Msg("Starting maintenance loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first cycle immediately
	o.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			o.logger.Info().Msg("Maintenance loop stopped due to context cancellation")
			return
		case <-ticker.C:
			o.runCycle(ctx)
		}
	}
}

// runCycle performs one maintenance pass. Failures are logged and retried on
// the next tick; a cycle never takes the vault down.
func (o *Operator) runCycle(ctx context.Context) {
	o.cycleCount++
	o.logger.Info().Int("cycle", o.cycleCount).Msg("Maintenance cycle starting")

	o.vault.AccrueFees()

	expired, err := o.vault.CoverExpired(ctx)
	if err != nil {
		o.logger.Error().Err(err).Msg("Cover expiry check failed")
	} else if expired {
		o.logger.Warn().
			Uint64("coverId", o.vault.ActiveCoverID()).
			Msg("Active cover has expired; invest is blocked until cover is renewed")
	}

	snapshot, err := o.vault.Snapshot(ctx, o.assetPrecision)
	if err != nil {
		o.logger.Error().Err(err).Msg("Snapshot capture failed")
		return
	}

	if _, err := state.SaveVaultSnapshot(snapshot); err != nil {
		o.logger.Error().Err(err).Msg("Snapshot persistence failed")
	}

	if totalF, err := utils.SDKIntToFloat64(snapshot.TotalManagedAssets, o.assetPrecision); err == nil {
		metrics.TotalManagedAssets.Set(totalF)
	}
	if supplyF, err := utils.SDKIntToFloat64(snapshot.TotalShareSupply, o.assetPrecision); err == nil {
		metrics.TotalShareSupply.Set(supplyF)
	}
	if idleF, err := utils.SDKIntToFloat64(snapshot.IdleAssets, o.assetPrecision); err == nil {
		metrics.IdleAssets.Set(idleF)
	}
	metrics.SharePrice.Set(snapshot.SharePrice)
	metrics.MaintenanceCycles.Inc()

	o.logger.Info().
		Int("cycle", o.cycleCount).
		Str("totalManagedAssets", snapshot.TotalManagedAssets.String()).
		Str("shareSupply", snapshot.TotalShareSupply.String()).
		Msg("Maintenance cycle completed")
}
