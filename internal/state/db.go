// ./internal/state/db.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS operation_receipts (
			row_id SERIAL PRIMARY KEY,
			receipt_id UUID NOT NULL UNIQUE,
			kind VARCHAR(32) NOT NULL,
			caller VARCHAR(128) NOT NULL,
			counterparty VARCHAR(128),
			assets_in NUMERIC(38, 0) NOT NULL DEFAULT 0,
			assets_out NUMERIC(38, 0) NOT NULL DEFAULT 0,
			shares_minted NUMERIC(38, 0) NOT NULL DEFAULT 0,
			shares_burned NUMERIC(38, 0) NOT NULL DEFAULT 0,
			fee_paid NUMERIC(38, 0) NOT NULL DEFAULT 0,
			success BOOLEAN NOT NULL,
			message TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_operation_receipts_kind_time ON operation_receipts(kind, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_operation_receipts_caller ON operation_receipts(caller, created_at DESC);

		CREATE TABLE IF NOT EXISTS vault_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			idle_assets NUMERIC(38, 0) NOT NULL,
			invested_units NUMERIC(38, 0) NOT NULL,
			total_managed_assets NUMERIC(38, 0) NOT NULL,
			total_share_supply NUMERIC(38, 0) NOT NULL,
			accumulated_asset_fees NUMERIC(38, 0) NOT NULL,
			accumulated_share_fees NUMERIC(38, 0) NOT NULL,
			deposit_fee_bps BIGINT NOT NULL,
			management_fee_bps BIGINT NOT NULL,
			active_cover_id BIGINT NOT NULL DEFAULT 0,
			share_price DECIMAL(20, 8) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_vault_snapshots_timestamp ON vault_snapshots(snapshot_timestamp DESC);

		CREATE TABLE IF NOT EXISTS fee_rate_changes (
			change_id SERIAL PRIMARY KEY,
			kind VARCHAR(16) NOT NULL,
			old_bps BIGINT NOT NULL,
			new_bps BIGINT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_fee_rate_changes_kind_time ON fee_rate_changes(kind, applied_at DESC);
	`

	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	log.Info().Msg("Database schema ensured successfully")
	return nil
}
