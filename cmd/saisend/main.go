package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"saisen/config"
	"saisen/core"
	"saisen/history"
	"saisen/observability/logging"
	"saisen/rpc"
	"saisen/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("SAISEN_ENV"))
	logger := logging.Setup("saisend", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		panic(fmt.Sprintf("Failed to prepare data directory: %v", err))
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	hist, err := history.NewStore(filepath.Join(cfg.DataDir, "history.db"), nil)
	if err != nil {
		panic(fmt.Sprintf("Failed to open history store: %v", err))
	}
	defer hist.Close()

	node, err := core.NewNode(db, hist, core.Config{
		Symbol:                cfg.AssetSymbol,
		TokenName:             cfg.AssetName,
		Decimals:              cfg.AssetDecimals,
		RouterAddress:         cfg.RouterAddr(),
		Beneficiary:           cfg.BeneficiaryAddr(),
		Operator:              cfg.OperatorAddr(),
		MinimumAmount:         cfg.Minimum(),
		CollectibleBaseURI:    cfg.CollectibleBaseURI,
		TreasuryLowThreshold:  cfg.TreasuryLow(),
		TreasuryHighThreshold: cfg.TreasuryHigh(),
	}, logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to create node: %v", err))
	}

	rpcServer := rpc.NewServer(node)
	rpcErrCh := make(chan error, 1)
	go func() {
		rpcErrCh <- rpcServer.Start(cfg.ListenAddress)
		close(rpcErrCh)
	}()

	if err := waitForRPCStartup(cfg.ListenAddress, rpcErrCh, 5*time.Second); err != nil {
		logger.Error("RPC server failed to start", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("Offering router initialised and running",
		slog.String("listen", cfg.ListenAddress),
		slog.String("network", cfg.NetworkName),
		slog.String("asset", cfg.AssetSymbol))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Shutting down", slog.String("signal", sig.String()))
	case err, ok := <-rpcErrCh:
		if ok && err != nil {
			logger.Error("RPC server terminated", slog.Any("error", err))
			os.Exit(1)
		}
	}
}

func waitForRPCStartup(addr string, errCh <-chan error, timeout time.Duration) error {
	dialAddr := dialAddressFor(addr)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err, ok := <-errCh:
			if !ok || err == nil {
				return fmt.Errorf("RPC server exited before startup confirmation")
			}
			return err
		default:
		}

		conn, err := net.DialTimeout("tcp", dialAddr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case err, ok := <-errCh:
			if !ok || err == nil {
				return fmt.Errorf("RPC server exited before startup confirmation")
			}
			return err
		case <-ticker.C:
		case <-deadline.C:
			return fmt.Errorf("timed out waiting for RPC server to start on %s", addr)
		}
	}
}

func dialAddressFor(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
