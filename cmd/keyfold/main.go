package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/keyfold/keyfold/internal/clock"
	"github.com/keyfold/keyfold/internal/config"
	"github.com/keyfold/keyfold/internal/engine"
	"github.com/keyfold/keyfold/internal/events"
	"github.com/keyfold/keyfold/internal/keyring"
	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/internal/reaper"
	"github.com/keyfold/keyfold/internal/resolver"
	"github.com/keyfold/keyfold/internal/store"
	"github.com/keyfold/keyfold/internal/workers"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

const reaperInterval = 24 * time.Hour

func main() {
	printBuildInfo()

	log := logger.NewLogger("keyfold")
	cfg, err := config.GetStructuredConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewConnectSQLite(ctx, cfg.Vault.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error opening vault database")
	}
	defer func() { _ = db.Close() }()

	if err = db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("error migrating vault database")
	}

	syncTables := make([]store.SyncTable, 0, len(cfg.Tables))
	for _, t := range cfg.Tables {
		syncTables = append(syncTables, store.SyncTable{Name: t.Name, PKColumn: t.PK})
	}

	rows := store.NewRowRepository(db, syncTables, log)
	changes := store.NewChangeLogRepository(log)
	dirty := store.NewDirtyTableRepository(log)
	conflicts := store.NewConflictRepository(log)
	pending := store.NewPendingColumnRepository(log)
	backends := store.NewBackendRepository(log)
	keys := store.NewKeyRepository(db, log)

	clk, err := clock.New(ctx, store.NewClockStateRepository(db, log), log)
	if err != nil {
		log.Fatal().Err(err).Msg("error initializing vault clock")
	}

	res := resolver.New(db, clk, rows, changes, conflicts, pending, log)
	manager := keyring.NewManager(keyring.NewKeyChain(), keys, log)
	bus := events.NewBus()

	eng := engine.New(engine.Deps{
		DB:       db,
		Clock:    clk,
		Resolver: res,
		Keys:     manager,
		Backends: backends,
		Changes:  changes,
		Dirty:    dirty,
		Rows:     rows,
		Pending:  pending,
		Bus:      bus,
		Config:   cfg.Sync,
		Logger:   log,
	})

	eng.Start(ctx)
	defer eng.Stop()

	rp := reaper.New(db, rows, changes, cfg.Retention, log)
	group := workers.NewGroup(&workers.Periodic{
		Name:     "reaper",
		Interval: reaperInterval,
		Task:     rp.Cleanup,
		Logger:   log,
	})

	log.Info().
		Str("db", cfg.Vault.DB.DSN).
		Dur("sync_interval", cfg.Sync.Interval).
		Msg("keyfold sync engine running")

	group.Run(ctx)
	log.Info().Msg("keyfold sync engine stopped")
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
