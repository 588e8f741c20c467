package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stake-guard/internal/api"
	"stake-guard/internal/bankroll"
	"stake-guard/internal/behavior"
	"stake-guard/internal/events"
	"stake-guard/internal/guard"
	"stake-guard/internal/ledger"
	"stake-guard/internal/monitor"
	"stake-guard/pkg/config"
	"stake-guard/pkg/db"
	"stake-guard/pkg/i18n"
)

var buildVersion = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf(i18n.Get("ConfigLoadFailed"), err)
	}

	i18n.SetLanguage(i18n.Language(cfg.Language))
	log.Println(i18n.Get("Starting"))
	log.Printf(i18n.Get("ConfigLoaded"), cfg.Port)
	log.Printf(i18n.Get("UsingDBPath"), cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf(i18n.Get("DBInitFailed"), err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf(i18n.Get("DBMigrationsFailed"), err)
	}
	queries := database.Queries()

	// In-memory ledger seeded from DB
	store := ledger.NewStore(queries, cfg.LedgerCap)
	if err := store.Load(ctx); err != nil {
		log.Fatalf(i18n.Get("LedgerLoadFailed"), err)
	}

	rules, err := guard.NewManager(database.DB)
	if err != nil {
		log.Fatalf(i18n.Get("GuardManagerInitFailed"), err)
	}

	var presets []guard.Preset
	if cfg.RulePresetsPath != "" {
		presets, err = guard.LoadPresets(cfg.RulePresetsPath)
		if err != nil {
			log.Printf(i18n.Get("PresetLoadFailed"), err)
		}
	}

	cooldown := time.Duration(cfg.CooldownHours * float64(time.Hour))
	tracker := behavior.NewTracker(ctx, queries, cooldown)

	bank, err := bankroll.NewManager(ctx, queries, cfg.BankrollDefault)
	if err != nil {
		log.Fatalf(i18n.Get("DBInitFailed"), err)
	}

	metrics := monitor.NewGuardMetrics()

	mon := &monitor.Monitor{Bus: bus, Sink: monitor.LogSink{}}
	mon.Start(ctx)

	api.SetRateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst)
	server := api.NewServer(bus, database, rules, store, tracker, bank, metrics, presets,
		api.SystemMeta{
			Version:  buildVersion,
			Language: cfg.Language,
		},
	)
	// Backstop eviction for current-version snapshots that were never
	// superseded by an append.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				server.Snapshots.Cleanup(10 * time.Minute)
			}
		}
	}()

	go func() {
		log.Printf(i18n.Get("ServerListening"), cfg.Port)
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf(i18n.Get("APIServerError"), err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println(i18n.Get("ShuttingDown"))
}
