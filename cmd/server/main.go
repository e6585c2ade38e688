// Package main is the entry point for the spin wheel service.
package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/xc9973/spinwheel-service/internal/config"
	"github.com/xc9973/spinwheel-service/internal/handler"
	"github.com/xc9973/spinwheel-service/internal/pkg/db"
	"github.com/xc9973/spinwheel-service/internal/pkg/lock"
	"github.com/xc9973/spinwheel-service/internal/repository"
	"github.com/xc9973/spinwheel-service/internal/reward"
	"github.com/xc9973/spinwheel-service/internal/server"
	"github.com/xc9973/spinwheel-service/internal/spin"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load .env if present without overwriting already-set variables
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	loc, err := cfg.Spin.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve spin timezone")
	}

	// Build the reward table; a table without positive total weight is a
	// startup-time fatal condition.
	table, err := reward.NewTable(rewardsFromConfig(cfg.Rewards))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid reward table")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize store and engine. The selector is shared by every request
	// goroutine, so it gets the top-level rand source, which is safe for
	// concurrent use; a *rand.Rand instance is not.
	store := repository.NewPostgresStore(dbPool.Pool)
	selector := reward.NewSelector(rand.Float64, cfg.Spin.CouponCodeLength)
	userLock := lock.NewUserLock()

	spinService := spin.NewService(store, table, selector, userLock, loc, cfg.Spin.CommitRetries)

	log.Info().
		Int("sectors", table.Len()).
		Float64("total_weight", table.TotalWeight()).
		Str("timezone", cfg.Spin.Timezone).
		Msg("Spin engine ready")

	// Build HTTP server
	spinHandler := handler.NewSpinHandler(spinService, cfg.Spin.HistoryLimit)
	srv := server.New(&cfg.Server, spinHandler, dbPool)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errChan:
		if err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
	log.Info().Msg("Server stopped gracefully")
}

// rewardsFromConfig maps configured sectors to reward table entries.
func rewardsFromConfig(entries []config.RewardConfig) []reward.Reward {
	rewards := make([]reward.Reward, 0, len(entries))
	for _, e := range entries {
		rewards = append(rewards, reward.Reward{
			Type:         e.Type,
			Value:        e.Value,
			CodeTemplate: e.CodeTemplate,
			Weight:       e.Weight,
			Label:        e.Label,
		})
	}
	return rewards
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create spin_states table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS spin_states (
			uid VARCHAR(255) PRIMARY KEY,
			free_spin_used BOOLEAN NOT NULL DEFAULT FALSE,
			last_free_spin_at TIMESTAMPTZ,
			bonus_spins BIGINT NOT NULL DEFAULT 0 CHECK (bonus_spins >= 0),
			version BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: spin_states table created")

	// Migration 2: Create wallets table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS wallets (
			uid VARCHAR(255) PRIMARY KEY,
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: wallets table created")

	// Migration 3: Create ledger_entries table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_entries (
			id UUID PRIMARY KEY,
			seq BIGSERIAL,
			uid VARCHAR(255) NOT NULL REFERENCES wallets(uid) ON DELETE CASCADE,
			delta BIGINT NOT NULL,
			resulting_balance BIGINT NOT NULL,
			reason VARCHAR(50) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_entries_uid_time ON ledger_entries(uid, created_at DESC, seq DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: ledger_entries table created")

	// Migration 4: Create spin_history table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS spin_history (
			id UUID PRIMARY KEY,
			seq BIGSERIAL,
			uid VARCHAR(255) NOT NULL,
			reward_type VARCHAR(20) NOT NULL,
			reward_value BIGINT NOT NULL DEFAULT 0,
			reward_code VARCHAR(64),
			reward_label VARCHAR(255) NOT NULL,
			sector_index INT NOT NULL,
			spin_kind VARCHAR(10) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_spin_history_uid_time ON spin_history(uid, created_at DESC, seq DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: spin_history table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
