package main

import (
	"context"
	"os"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/shieldvault/ivm/internal/access"
	"github.com/shieldvault/ivm/internal/config"
	"github.com/shieldvault/ivm/internal/coverage"
	"github.com/shieldvault/ivm/internal/custody"
	"github.com/shieldvault/ivm/internal/logger"
	"github.com/shieldvault/ivm/internal/operator"
	"github.com/shieldvault/ivm/internal/state"
	"github.com/shieldvault/ivm/internal/vault"
	"github.com/shieldvault/ivm/internal/venue"
	"github.com/shieldvault/ivm/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main is the entry point for the IVM system.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE"))
	log.Info().Msg("IVM Core Logic Starting...")

	// Initialize Database Connection (receipts, snapshots, fee history)
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Collaborator Clients (with Safety Switch) ---
	ivmMode := os.Getenv("IVM_MODE")
	if ivmMode != "live" {
		log.Fatal().Msg("IVM_MODE is not set to 'live'. Halting to prevent accidental execution. Set IVM_MODE=live to run.")
	}
	log.Warn().Msg("Initializing IVM in LIVE mode. Real asset movements will be executed.")

	vaultAddress := "ivm-vault-" + strconv.FormatUint(config.VaultID, 10)

	venueClient, err := venue.NewLiveVenue(config.VenueRPC)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize venue client")
	}
	defer venueClient.Close()

	coverageClient, err := coverage.NewLiveService(config.CoverageRPC)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize coverage client")
	}
	defer coverageClient.Close()

	custodian, err := custody.NewLiveCustodian(config.CustodyRPC, vaultAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize custody client")
	}
	defer custodian.Close()

	// --- 3. Vault Assembly with Dependency Injection ---
	gate, err := access.NewController(config.AdminAddress, config.OperatorAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize access controller")
	}

	maxManaged, ok := sdkmath.NewIntFromString(config.MaxManagedAssets)
	if !ok {
		log.Fatal().Str("value", config.MaxManagedAssets).Msg("MAX_MANAGED_ASSETS is not a valid integer")
	}

	ivmVault, err := vault.New(vault.Config{
		Address:                   vaultAddress,
		Venue:                     venueClient,
		Coverage:                  coverageClient,
		Custodian:                 custodian,
		Gate:                      gate,
		MaxManagedAssets:          maxManaged,
		DepositFeeBps:             config.InitialDepositFeeBps,
		ManagementFeeBps:          config.InitialManagementFeeBps,
		RateDeviationToleranceBps: config.RateDeviationToleranceBps,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vault instance")
	}
	log.Info().Str("address", vaultAddress).Msg("Vault instance created successfully")

	// --- 4. Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, ivmVault, gate, config.AssetPrecision)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting IVM web API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 5. Start Maintenance Loop ---
	maintainer, err := operator.New(operator.Config{
		Vault:          ivmVault,
		AssetPrecision: config.AssetPrecision,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create maintenance operator")
	}

	interval := time.Duration(config.MaintenanceIntervalSeconds) * time.Second
	log.Info().Str("interval", interval.String()).Msg("Starting IVM maintenance loop")

	ctx := context.Background()

	// Run the maintenance loop (this will run indefinitely)
	maintainer.RunLoop(ctx, interval)
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
