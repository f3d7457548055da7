package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq" // Postgres Driver

	"github.com/proctorhq/examledger/pkg/config"
	"github.com/proctorhq/examledger/pkg/crypto"
	"github.com/proctorhq/examledger/pkg/events"
	"github.com/proctorhq/examledger/pkg/ledger"
	"github.com/proctorhq/examledger/pkg/observability"
	"github.com/proctorhq/examledger/pkg/store"
)

// loadConfig loads environment configuration, overlaid with the
// deployment profile named by LEDGER_PROFILE when one is set.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if cfg.ProfileCode != "" {
		profile, err := config.LoadProfile(cfg.ProfilesDir, cfg.ProfileCode)
		if err != nil {
			return nil, err
		}
		cfg.ApplyProfile(profile)
	}
	return cfg, nil
}

// openStore connects the block store from environment configuration:
// Postgres when DATABASE_URL is set, SQLite otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.BlockStore, func(), error) {
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		ps := store.NewPostgresStore(db)
		if err := ps.Init(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("init postgres store: %w", err)
		}
		return ps, func() { _ = db.Close() }, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0750); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	ss, err := store.OpenSQLiteStore(cfg.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return ss, func() { _ = ss.Close() }, nil
}

// openLedger wires a full ledger: store, payload validator, node name, and
// the file-backed keystore unless signing is disabled.
func openLedger(ctx context.Context, cfg *config.Config) (*ledger.Ledger, *crypto.Keystore, func(), error) {
	blockStore, closer, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	validator, err := events.NewValidator()
	if err != nil {
		closer()
		return nil, nil, nil, fmt.Errorf("init payload validator: %w", err)
	}

	l := ledger.New(blockStore).
		WithValidator(validator).
		WithNodeName(cfg.NodeName)

	var ks *crypto.Keystore
	if cfg.SigningEnabled {
		ks, err = crypto.OpenKeystore(cfg.KeystorePath)
		if err != nil {
			closer()
			return nil, nil, nil, fmt.Errorf("open keystore: %w", err)
		}
		l = l.WithSigner(ks.ActiveSigner())
	}

	if cfg.ObservabilityOn {
		obsCfg := observability.DefaultConfig()
		obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
		obsCfg.Environment = cfg.EnvironmentName
		obsCfg.SampleRate = cfg.TraceSampleRate
		obsCfg.Insecure = cfg.InsecureTransport

		obs, err := observability.New(ctx, obsCfg)
		if err != nil {
			closer()
			return nil, nil, nil, fmt.Errorf("init observability: %w", err)
		}
		l = l.WithObservability(obs)

		storeCloser := closer
		closer = func() {
			_ = obs.Shutdown(context.Background())
			storeCloser()
		}
	}

	return l, ks, closer, nil
}
