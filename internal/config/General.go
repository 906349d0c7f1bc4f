package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// VaultID is the identifier of the vault instance this IVM manages.
	VaultID uint64

	// AssetDenom is the base-asset denomination the vault accounts in.
	AssetDenom string
	// AssetPrecision is the number of decimal places of the base asset.
	AssetPrecision int

	// AdminAddress holds the admin role for fee/limit/pause operations.
	AdminAddress string
	// OperatorAddress holds the operator role for invest/uninvest/cover operations.
	OperatorAddress string

	// InitialDepositFeeBps is the deposit fee active at startup, in basis points.
	InitialDepositFeeBps uint64
	// InitialManagementFeeBps is the management fee active at startup, in basis points.
	InitialManagementFeeBps uint64
	// MaxManagedAssets is the initial ceiling on total managed assets, in base units.
	MaxManagedAssets string
	// RateDeviationToleranceBps is the maximum tolerated adverse venue rate movement.
	RateDeviationToleranceBps uint64

	// MaintenanceInterval is the operator cycle interval in seconds.
	MaintenanceIntervalSeconds uint64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	VaultID, err = getEnvAsUint64("IVM_VAULT_ID")
	if err != nil {
		return err
	}

	AssetDenom, err = getEnv("ASSET_DENOM")
	if err != nil {
		return err
	}

	AssetPrecision, err = getEnvAsInt("ASSET_PRECISION")
	if err != nil {
		return err
	}

	AdminAddress, err = getEnv("ADMIN_ADDRESS")
	if err != nil {
		return err
	}

	OperatorAddress, err = getEnv("OPERATOR_ADDRESS")
	if err != nil {
		return err
	}

	InitialDepositFeeBps, err = getEnvAsUint64("INITIAL_DEPOSIT_FEE_BPS")
	if err != nil {
		return err
	}

	InitialManagementFeeBps, err = getEnvAsUint64("INITIAL_MANAGEMENT_FEE_BPS")
	if err != nil {
		return err
	}

	MaxManagedAssets, err = getEnv("MAX_MANAGED_ASSETS")
	if err != nil {
		return err
	}

	RateDeviationToleranceBps, err = getEnvAsUint64("RATE_DEVIATION_TOLERANCE_BPS")
	if err != nil {
		return err
	}

	MaintenanceIntervalSeconds, err = getEnvAsUint64("MAINTENANCE_INTERVAL_SECONDS")
	if err != nil {
		return err
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Uint64("VaultID", VaultID).
		Str("AssetDenom", AssetDenom).
		Str("Admin", AdminAddress).
		Str("Operator", OperatorAddress).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as an int. Returns error if not set or invalid.
func getEnvAsInt(key string) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}
