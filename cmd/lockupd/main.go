// lockupd: token lockup ledger node
//
// lockupd hosts the lockup program over a persistent accounts database,
// executes signed transactions submitted over JSON-RPC, journals every
// executed transaction and serves the ledger state.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortiblox/x1-lockup/pkg/accounts"
	"github.com/fortiblox/x1-lockup/pkg/config"
	"github.com/fortiblox/x1-lockup/pkg/journal"
	"github.com/fortiblox/x1-lockup/pkg/rpc"
	"github.com/fortiblox/x1-lockup/pkg/runtime"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/lockup"
)

// Version information
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

var (
	configPath  = flag.String("config", "config.yaml", "configuration file path")
	envPath     = flag.String("env", "", "optional dotenv file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

const gcInterval = 10 * time.Minute

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("lockupd %s (%s)\n", Version, GitCommit)
		os.Exit(0)
	}

	logger := logrus.StandardLogger().WithField("type", "lockupd")

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		logger.WithError(err).Error("failed to load config")
		os.Exit(1)
	}
	cfg.ConfigureLogger()

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("node failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logrus.Entry) error {
	logger.WithField("version", Version).Info("starting lockupd")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.WithField("signal", sig.String()).Info("shutting down")
		cancel()
	}()

	programID, err := cfg.ProgramID()
	if err != nil {
		return err
	}

	db, err := openAccounts(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("failed to close accounts database")
		}
	}()

	var jnl *journal.Journal
	if cfg.JournalActive() {
		journalConfig := journal.DefaultConfig(cfg.JournalFile())
		journalConfig.RetainEntries = cfg.JournalRetainEntries
		journalConfig.PruneInterval = cfg.JournalPruneInterval

		jnl, err = journal.Open(journalConfig)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer jnl.Close()
	}

	opts := []runtime.Option{
		runtime.WithConfig(runtime.Config{
			ComputeUnitLimit: cfg.ComputeUnitLimit,
			MaxInvokeDepth:   cfg.MaxInvokeDepth,
		}),
	}
	if jnl != nil {
		opts = append(opts, runtime.WithRecorder(jnl))
	}
	if programID != lockup.ProgramID {
		opts = append(opts, runtime.WithProgram(programID, lockup.NewProcessor()))
	}
	rt := runtime.New(db, runtime.SystemClock{}, opts...)

	rpcConfig := rpc.DefaultConfig()
	rpcConfig.Addr = cfg.ListenAddress
	rpcConfig.EnableCORS = cfg.EnableCORS
	rpcConfig.AllowedOrigins = cfg.AllowedOrigins
	rpcConfig.LogRequests = cfg.LogRequests
	rpcConfig.LockupProgramID = programID
	server := rpc.New(rpcConfig, rt, jnl)

	if jnl != nil {
		if err := jnl.Verify(); err != nil {
			logger.WithError(err).Error("journal verification failed")
			server.SetHealthy(false)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("rpc server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	select {
	case <-errCh:
	case <-shutdownCtx.Done():
		logger.Warn("rpc server did not stop within the grace period")
	}

	if cfg.SnapshotPath != "" {
		header, err := accounts.CreateSnapshotFile(db, cfg.SnapshotPath)
		if err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
		logger.WithFields(logrus.Fields{
			"path":     cfg.SnapshotPath,
			"sequence": header.Sequence,
			"accounts": header.AccountsCount,
		}).Info("wrote snapshot")
	}

	return db.Commit()
}

// openAccounts opens the accounts database and seeds an empty one from the
// configured snapshot.
func openAccounts(ctx context.Context, cfg *config.Config, logger *logrus.Entry) (accounts.DB, error) {
	var db accounts.DB
	if cfg.InMemory {
		db = accounts.NewMemoryDB()
	} else {
		badgerDB, err := accounts.NewBadgerDB(accounts.DefaultBadgerDBConfig(cfg.AccountsPath()))
		if err != nil {
			return nil, fmt.Errorf("failed to open accounts database: %w", err)
		}
		go runGC(ctx, badgerDB, logger)
		db = badgerDB
	}

	if cfg.SnapshotPath == "" {
		return db, nil
	}
	if _, err := os.Stat(cfg.SnapshotPath); os.IsNotExist(err) {
		return db, nil
	}

	count, err := db.AccountsCount()
	if err != nil {
		db.Close()
		return nil, err
	}
	if count > 0 {
		logger.WithField("accounts", count).Info("accounts database populated, skipping snapshot")
		return db, nil
	}

	header, err := accounts.LoadSnapshotFile(db, cfg.SnapshotPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"path":     cfg.SnapshotPath,
		"sequence": header.Sequence,
		"accounts": header.AccountsCount,
		"hash":     header.AccountsHash.String(),
	}).Info("loaded snapshot")

	return db, nil
}

func runGC(ctx context.Context, db *accounts.BadgerDB, logger *logrus.Entry) {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := db.RunGC(); err != nil {
				logger.WithError(err).Warn("accounts value log gc failed")
			}
		}
	}
}
