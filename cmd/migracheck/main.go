package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/stablerotor/rotor/internal/chain"
	"github.com/stablerotor/rotor/internal/config"
	"github.com/stablerotor/rotor/internal/logger"
	"github.com/stablerotor/rotor/internal/migration"
)

const RUN_TIMEOUT = 2 * time.Minute

// main runs one migration readiness pass and prints the JSON report. The
// exit code is the only failure signal: 1 if any check is FAIL, 0 otherwise.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadMigration()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load migration configuration")
	}

	catalog, err := config.LoadPools(config.PoolsFilePath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load pool catalog")
	}

	chainClient, err := chain.NewClient(chain.Options{RPCURL: cfg.RPCURL})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize RPC client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), RUN_TIMEOUT)
	defer cancel()

	monitor := migration.NewMonitor(cfg, chainClient, catalog)
	report := monitor.Run(ctx)

	// The report always prints in full, even on failure; automation reads
	// the exit code, operators read the JSON.
	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode migration report")
	}
	fmt.Println(string(encoded))

	if report.Failed() {
		os.Exit(1)
	}
}
