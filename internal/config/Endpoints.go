package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// VenueRPC is the JSON-RPC endpoint of the underlying yield venue.
	VenueRPC string
	// CoverageRPC is the JSON-RPC endpoint of the coverage service.
	CoverageRPC string
	// CustodyRPC is the JSON-RPC endpoint of the asset custody ledger.
	CustodyRPC string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	VenueRPC, err = getEnv("VENUE_RPC")
	if err != nil {
		return err
	}

	CoverageRPC, err = getEnv("COVERAGE_RPC")
	if err != nil {
		return err
	}

	CustodyRPC, err = getEnv("CUSTODY_RPC")
	if err != nil {
		return err
	}

	log.Debug().
		Str("VenueRPC", VenueRPC).
		Str("CoverageRPC", CoverageRPC).
		Str("CustodyRPC", CustodyRPC).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
