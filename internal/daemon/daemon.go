package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/perkly/perkly/internal/api"
	"github.com/perkly/perkly/internal/app/ledger"
	"github.com/perkly/perkly/internal/app/reporting"
	"github.com/perkly/perkly/internal/app/rules"
	"github.com/perkly/perkly/internal/app/tiers"
	"github.com/perkly/perkly/internal/domain"
	"github.com/perkly/perkly/internal/infra/memory"
	"github.com/perkly/perkly/internal/infra/sqlite"
)

// Store is everything the daemon needs from persistence: the ledger
// repository plus the admin and reporting surfaces. Both the sqlite and
// memory stores satisfy it.
type Store interface {
	domain.Repository
	domain.RuleStore
	domain.TierStore
	reporting.Store
}

// Run starts the loyalty daemon and blocks until SIGINT/SIGTERM.
func Run(cfg Config) error {
	store, closeStore, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	ruleSvc := rules.New(store)
	tierSvc := tiers.New(store)
	engine := ledger.New(store)
	reports := reporting.New(store)

	if cfg.Program.Seed {
		if err := seed(context.Background(), cfg.Program, ruleSvc, tierSvc); err != nil {
			return fmt.Errorf("seed program defaults: %w", err)
		}
	}

	server := api.NewServer(engine, ruleSvc, tierSvc, reports)
	if cfg.Metrics.Enabled {
		server.EnableMetrics()
	}

	httpSrv := &http.Server{
		Addr:              cfg.API.Addr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("perkly listening on %s", cfg.API.Addr())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

func openStore(cfg StorageConfig) (Store, func(), error) {
	if cfg.Memory {
		return memory.New(), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sqlite.Open(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { db.Close() }, nil
}

// seed installs the configured rule version and tier ladder into an empty
// store. A store with any rule version is left untouched: configuration
// changes after first boot are admin-API business.
func seed(ctx context.Context, cfg ProgramConfig, ruleSvc *rules.Service, tierSvc *tiers.Service) error {
	existing, err := ruleSvc.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	_, err = ruleSvc.Create(ctx, domain.RuleVersion{
		PointsPerCurrency:    cfg.PointsPerCurrency,
		EarningRoundMode:     domain.RoundMode(cfg.EarningRoundMode),
		RedemptionRate:       cfg.RedemptionRate,
		MaxRedemptionPercent: cfg.MaxRedemptionPercent,
		MinRedemptionPoints:  cfg.MinRedemptionPoints,
		AllowTierDowngrade:   cfg.AllowTierDowngrade,
		TierEvaluationBasis:  domain.EvaluationBasis(cfg.TierEvaluationBasis),
		IsActive:             true,
		Notes:                "seeded from config",
	})
	if err != nil {
		return err
	}

	for _, st := range cfg.SeedTiers {
		_, err := tierSvc.Create(ctx, domain.Tier{
			Code:             st.Code,
			Name:             st.Name,
			DisplayOrder:     st.DisplayOrder,
			MinPoints:        st.MinPoints,
			PointsMultiplier: st.PointsMultiplier,
			IsActive:         true,
		})
		if err != nil {
			return fmt.Errorf("seed tier %s: %w", st.Code, err)
		}
	}
	log.Printf("seeded program defaults: %d tiers, 1 rule version", len(cfg.SeedTiers))
	return nil
}
