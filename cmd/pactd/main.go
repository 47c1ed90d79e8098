package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"pactnet/config"
	"pactnet/core/events"
	"pactnet/core/state"
	"pactnet/core/types"
	"pactnet/native/agreement"
	"pactnet/native/escrow"
	"pactnet/native/oracle"
	"pactnet/native/registry"
	"pactnet/native/report"
	"pactnet/native/token"
	"pactnet/observability/logging"
	"pactnet/observability/metrics"
	"pactnet/rpc"
	"pactnet/storage"
)

const shutdownTimeout = 10 * time.Second

var genesisAppliedKey = []byte("genesis/applied")

func main() {
	configPath := flag.String("config", "./config.toml", "path to the node configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Setup("pactd", cfg.Environment)

	vault, err := types.ParseAddress(cfg.Ledger.Vault)
	if err != nil {
		log.Fatalf("parse vault address: %v", err)
	}
	feeCollector, err := types.ParseAddress(cfg.Ledger.FeeCollector)
	if err != nil {
		log.Fatalf("parse fee collector address: %v", err)
	}
	owner, err := types.ParseAddress(cfg.Ledger.Owner)
	if err != nil {
		log.Fatalf("parse owner address: %v", err)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		log.Fatalf("open state database: %v", err)
	}
	defer db.Close()
	manager := state.NewManager(db)

	journal := events.NewJournal(cfg.JournalCapacity)
	emitter := events.Fanout{journal, metrics.NewEmitter(metrics.Settlement())}

	ledger := token.NewLedger(manager)
	ledger.SetEmitter(emitter)

	accounts := registry.NewRegistry(manager, ledger, new(big.Int).SetUint64(cfg.Ledger.RegistrationReward))
	accounts.SetEmitter(emitter)

	agreements, err := agreement.NewStore(manager, ledger, accounts, agreement.FeePolicy{
		Amount:      new(big.Int).SetUint64(cfg.Ledger.AgreementFee),
		BurnPercent: cfg.Ledger.BurnPercent,
		Collector:   feeCollector,
	})
	if err != nil {
		log.Fatalf("construct agreement store: %v", err)
	}
	agreements.SetEmitter(emitter)

	reports := report.NewLog(manager, agreements)
	reports.SetEmitter(emitter)

	engine, err := escrow.NewEngine(manager, agreements, escrow.Params{
		Vault:          vault,
		FeeCollector:   feeCollector,
		PlatformFeeBps: cfg.Ledger.PlatformFeeBps,
		ArbiterFeeBps:  cfg.Ledger.ArbiterFeeBps,
	})
	if err != nil {
		log.Fatalf("construct escrow engine: %v", err)
	}
	engine.SetEmitter(emitter)

	gateway := oracle.NewGateway(manager, engine, owner)
	gateway.SetEmitter(emitter)

	if err := applyGenesis(manager, cfg.Genesis.Native, logger); err != nil {
		log.Fatalf("apply genesis allocation: %v", err)
	}

	server := rpc.NewServer(rpc.Services{
		Ledger:     ledger,
		Registry:   accounts,
		Agreements: agreements,
		Reports:    reports,
		Escrows:    engine,
		Oracle:     gateway,
		Journal:    journal,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("rpc server listening",
			"address", cfg.ListenAddress,
			"network", cfg.NetworkName,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("rpc server failed", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// applyGenesis credits the configured native allocations exactly once per
// data directory.
func applyGenesis(manager *state.Manager, alloc map[string]string, logger *slog.Logger) error {
	if len(alloc) == 0 {
		return nil
	}
	var applied bool
	ok, err := manager.KVGet(genesisAppliedKey, &applied)
	if err != nil {
		return err
	}
	if ok && applied {
		return nil
	}
	for addrHex, amountStr := range alloc {
		addr, err := types.ParseAddress(addrHex)
		if err != nil {
			return fmt.Errorf("genesis account %q: %w", addrHex, err)
		}
		amount, parsed := new(big.Int).SetString(amountStr, 10)
		if !parsed || amount.Sign() < 0 {
			return fmt.Errorf("genesis amount %q for %q must be a non-negative decimal", amountStr, addrHex)
		}
		account, err := manager.GetAccount(addr)
		if err != nil {
			return err
		}
		account.BalanceNative = new(big.Int).Add(account.BalanceNative, amount)
		if err := manager.PutAccount(addr, account); err != nil {
			return err
		}
		logger.Info("genesis allocation applied", "account", addrHex, "amount", amount.String())
	}
	return manager.KVPut(genesisAppliedKey, true)
}
