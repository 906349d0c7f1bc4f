// ./internal/state/receipt_store.go
package state

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/shieldvault/ivm/internal/types"
)

// SaveOperationReceipt persists one operation receipt.
func SaveOperationReceipt(receipt types.OperationReceipt) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO operation_receipts (
			receipt_id, kind, caller, counterparty,
			assets_in, assets_out, shares_minted, shares_burned, fee_paid,
			success, message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING row_id;
	`

	var rowID int64
	err := DB.QueryRow(
		query,
		receipt.ReceiptID, string(receipt.Kind), receipt.Caller, receipt.Counterparty,
		receipt.AssetsIn.String(), receipt.AssetsOut.String(),
		receipt.SharesMinted.String(), receipt.SharesBurned.String(), receipt.FeePaid.String(),
		receipt.Success, receipt.Message, receipt.Timestamp,
	).Scan(&rowID)
	if err != nil {
		return 0, fmt.Errorf("failed to save operation receipt: %w", err)
	}

	log.Debug().
		Str("receipt_id", receipt.ReceiptID).
		Str("kind", string(receipt.Kind)).
		Bool("success", receipt.Success).
		Msg("Operation receipt saved")
	return rowID, nil
}

// GetRecentReceipts returns the most recent receipts, newest first.
func GetRecentReceipts(limit int) ([]types.OperationReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT receipt_id, kind, caller, COALESCE(counterparty, ''),
			assets_in, assets_out, shares_minted, shares_burned, fee_paid,
			success, COALESCE(message, ''), created_at
		FROM operation_receipts
		ORDER BY created_at DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.OperationReceipt
	for rows.Next() {
		var (
			r                                                    types.OperationReceipt
			kind                                                 string
			assetsIn, assetsOut, sharesMinted, sharesBurned, fee string
			createdAt                                            time.Time
		)
		if err := rows.Scan(
			&r.ReceiptID, &kind, &r.Caller, &r.Counterparty,
			&assetsIn, &assetsOut, &sharesMinted, &sharesBurned, &fee,
			&r.Success, &r.Message, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan operation receipt: %w", err)
		}
		r.Kind = types.OperationKind(kind)
		r.Timestamp = createdAt

		var ok bool
		if r.AssetsIn, ok = sdkmath.NewIntFromString(assetsIn); !ok {
			return nil, fmt.Errorf("invalid assets_in %q in receipt %s", assetsIn, r.ReceiptID)
		}
		if r.AssetsOut, ok = sdkmath.NewIntFromString(assetsOut); !ok {
			return nil, fmt.Errorf("invalid assets_out %q in receipt %s", assetsOut, r.ReceiptID)
		}
		if r.SharesMinted, ok = sdkmath.NewIntFromString(sharesMinted); !ok {
			return nil, fmt.Errorf("invalid shares_minted %q in receipt %s", sharesMinted, r.ReceiptID)
		}
		if r.SharesBurned, ok = sdkmath.NewIntFromString(sharesBurned); !ok {
			return nil, fmt.Errorf("invalid shares_burned %q in receipt %s", sharesBurned, r.ReceiptID)
		}
		if r.FeePaid, ok = sdkmath.NewIntFromString(fee); !ok {
			return nil, fmt.Errorf("invalid fee_paid %q in receipt %s", fee, r.ReceiptID)
		}

		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("receipt row iteration failed: %w", err)
	}

	return receipts, nil
}
