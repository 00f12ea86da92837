package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/stablerotor/rotor/internal/adapters"
	"github.com/stablerotor/rotor/internal/chain"
	"github.com/stablerotor/rotor/internal/config"
	"github.com/stablerotor/rotor/internal/logger"
	"github.com/stablerotor/rotor/internal/oracle"
	"github.com/stablerotor/rotor/internal/policy"
	"github.com/stablerotor/rotor/internal/state"
	"github.com/stablerotor/rotor/internal/web"
)

// main is the entry point for the rotation engine.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Rotor yield rotation engine starting...")

	// Initialize database connection
	dbCfg := state.DBConfig{
		Host: cfg.DBHost, Port: cfg.DBPort,
		User: cfg.DBUser, Password: cfg.DBPassword,
		DBName: cfg.DBName, SSLMode: cfg.DBSSLMode,
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load the pool catalog
	catalog, err := config.LoadPools(cfg.PoolsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load pool catalog")
	}

	// Initialize RPC client
	if cfg.RPCURL == "" {
		log.Fatal().Msg("NODE_RPC must be set; pool state is read on-chain even in dry run")
	}
	chainClient, err := chain.NewClient(chain.Options{RPCURL: cfg.RPCURL})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize RPC client")
	}

	// Initialize price oracle
	priceOracle := oracle.New(oracle.Options{
		BaseURL:        cfg.PriceFeedBaseURL,
		RequestTimeout: time.Duration(cfg.PriceTimeoutSeconds) * time.Second,
		StableSymbols:  cfg.StableSymbols,
	})

	// --- 2. Create engine with dependency injection ---
	if cfg.DryRun {
		log.Info().Msg("Running in DRY RUN mode. Decisions are computed and journaled only.")
	} else if !cfg.LiveArmed {
		log.Warn().Msg("Dry run off but live trading NOT armed. Requests are built and withheld.")
	} else {
		log.Warn().Msg("LIVE MODE ARMED. Built requests will reach the execution boundary.")
	}

	engine, err := policy.NewEngine(policy.Config{
		Runtime:  cfg,
		Catalog:  catalog,
		Registry: adapters.NewRegistry(chainClient),
		Prices:   priceOracle,
		Store:    policy.NewDBStore(),
		Executor: policy.NewLogExecutor(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create rotation engine")
	}

	// --- 3. Start web server ---
	webServer := web.NewWebServer(cfg, engine, priceOracle)
	go func() {
		log.Info().Str("port", cfg.WebPort).Str("url", "http://localhost:"+cfg.WebPort).Msg("Starting web dashboard")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 4. Run the decision loop until interrupted ---
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Dur("interval", cfg.ScanInterval).Msg("Starting decision loop")
	engine.RunLoop(ctx, cfg.ScanInterval)

	log.Info().Msg("Rotor stopped")
}
