// ./internal/state/snapshot_store.go
package state

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/shieldvault/ivm/internal/types"
)

// SaveVaultSnapshot persists one vault accounting snapshot.
func SaveVaultSnapshot(snapshot types.VaultSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO vault_snapshots (
			snapshot_timestamp, idle_assets, invested_units, total_managed_assets,
			total_share_supply, accumulated_asset_fees, accumulated_share_fees,
			deposit_fee_bps, management_fee_bps, active_cover_id, share_price
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err := DB.QueryRow(
		query,
		snapshot.Timestamp,
		snapshot.IdleAssets.String(), snapshot.InvestedUnits.String(), snapshot.TotalManagedAssets.String(),
		snapshot.TotalShareSupply.String(), snapshot.AccumulatedAssetFees.String(), snapshot.AccumulatedShareFees.String(),
		snapshot.DepositFeeBps, snapshot.ManagementFeeBps, snapshot.ActiveCoverID, snapshot.SharePrice,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save vault snapshot: %w", err)
	}

	log.Debug().
		Int64("snapshot_id", snapshotID).
		Str("total_managed_assets", snapshot.TotalManagedAssets.String()).
		Msg("Vault snapshot saved")
	return snapshotID, nil
}

// GetRecentSnapshots returns the most recent snapshots, newest first.
func GetRecentSnapshots(limit int) ([]types.VaultSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT snapshot_id, snapshot_timestamp, idle_assets, invested_units,
			total_managed_assets, total_share_supply,
			accumulated_asset_fees, accumulated_share_fees,
			deposit_fee_bps, management_fee_bps, active_cover_id, share_price
		FROM vault_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query vault snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.VaultSnapshot
	for rows.Next() {
		var (
			s                                            types.VaultSnapshot
			ts                                           time.Time
			idle, invested, total, supply, assetF, unitF string
		)
		if err := rows.Scan(
			&s.SnapshotID, &ts, &idle, &invested, &total, &supply,
			&assetF, &unitF, &s.DepositFeeBps, &s.ManagementFeeBps,
			&s.ActiveCoverID, &s.SharePrice,
		); err != nil {
			return nil, fmt.Errorf("failed to scan vault snapshot: %w", err)
		}
		s.Timestamp = ts

		var ok bool
		if s.IdleAssets, ok = sdkmath.NewIntFromString(idle); !ok {
			return nil, fmt.Errorf("invalid idle_assets %q in snapshot %d", idle, s.SnapshotID)
		}
		if s.InvestedUnits, ok = sdkmath.NewIntFromString(invested); !ok {
			return nil, fmt.Errorf("invalid invested_units %q in snapshot %d", invested, s.SnapshotID)
		}
		if s.TotalManagedAssets, ok = sdkmath.NewIntFromString(total); !ok {
			return nil, fmt.Errorf("invalid total_managed_assets %q in snapshot %d", total, s.SnapshotID)
		}
		if s.TotalShareSupply, ok = sdkmath.NewIntFromString(supply); !ok {
			return nil, fmt.Errorf("invalid total_share_supply %q in snapshot %d", supply, s.SnapshotID)
		}
		if s.AccumulatedAssetFees, ok = sdkmath.NewIntFromString(assetF); !ok {
			return nil, fmt.Errorf("invalid accumulated_asset_fees %q in snapshot %d", assetF, s.SnapshotID)
		}
		if s.AccumulatedShareFees, ok = sdkmath.NewIntFromString(unitF); !ok {
			return nil, fmt.Errorf("invalid accumulated_share_fees %q in snapshot %d", unitF, s.SnapshotID)
		}

		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot row iteration failed: %w", err)
	}

	return snapshots, nil
}

// SaveFeeRateChange records an applied fee-rate update.
func SaveFeeRateChange(change types.FeeRateChange) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO fee_rate_changes (kind, old_bps, new_bps, applied_at)
		VALUES ($1, $2, $3, $4)
		RETURNING change_id;
	`

	var changeID int64
	err := DB.QueryRow(query, change.Kind, change.OldBps, change.NewBps, change.AppliedAt).Scan(&changeID)
	if err != nil {
		return 0, fmt.Errorf("failed to save fee rate change: %w", err)
	}

	log.Info().
		Str("kind", change.Kind).
		Uint64("old_bps", change.OldBps).
		Uint64("new_bps", change.NewBps).
		Msg("Fee rate change recorded")
	return changeID, nil
}

// GetFeeRateHistory returns applied fee changes for a kind, newest first.
func GetFeeRateHistory(kind string, limit int) ([]types.FeeRateChange, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT change_id, kind, old_bps, new_bps, applied_at
		FROM fee_rate_changes
		WHERE kind = $1
		ORDER BY applied_at DESC
		LIMIT $2;
	`

	rows, err := DB.Query(query, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fee rate history: %w", err)
	}
	defer rows.Close()

	var changes []types.FeeRateChange
	for rows.Next() {
		var c types.FeeRateChange
		if err := rows.Scan(&c.ChangeID, &c.Kind, &c.OldBps, &c.NewBps, &c.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fee rate change: %w", err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fee rate change row iteration failed: %w", err)
	}

	return changes, nil
}
