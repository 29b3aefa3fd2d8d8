// main.go - Shield daemon entry point.
//
// shieldd hosts the staged Groth16 verification pool behind a small
// REST interface: proofs are submitted into slots, advanced one bounded
// round per call, and finalized into commitment-tree appends or
// nullifier insertions.
//
// Usage:
//   shieldd --config shieldd.json
//   shieldd digest deposit_vk.bin

package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"shield/internal/pool"
	"shield/internal/store"
	"shield/internal/vkey"
)

const version = "0.3.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "shieldd",
		Short:   "Staged Groth16 verification pool daemon",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "shieldd.json", "path to config file")

	cmd.AddCommand(&cobra.Command{
		Use:   "digest <key-file>",
		Short: "Print the SHA-256 digest of a serialized verifying key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%x\n", sha256.Sum256(raw))
			return nil
		},
	})
	return cmd
}

func loadKey(path string, digest [32]byte) (*vkey.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open verifying key: %w", err)
	}
	defer f.Close()
	return vkey.Load(f, digest)
}

func run(configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log := newLogger(cfg.LogLevel)

	poolCfg := pool.Config{
		Ceiling:     cfg.Ceiling,
		TreeDepth:   cfg.TreeDepth,
		RootHistory: cfg.RootHistory,
	}
	if cfg.DepositKeyPath != "" {
		digest, err := cfg.DepositDigest()
		if err != nil {
			return err
		}
		poolCfg.DepositKey, err = loadKey(cfg.DepositKeyPath, digest)
		if err != nil {
			return fmt.Errorf("deposit circuit: %w", err)
		}
	}
	if cfg.WithdrawKeyPath != "" {
		digest, err := cfg.WithdrawDigest()
		if err != nil {
			return err
		}
		poolCfg.WithdrawKey, err = loadKey(cfg.WithdrawKeyPath, digest)
		if err != nil {
			return fmt.Errorf("withdraw circuit: %w", err)
		}
	}

	st, err := store.Open(cfg.DataDir, cfg.InMemory, log)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	p, err := pool.New(st, poolCfg, log, pool.NewMetrics(reg))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newServer(p, reg, log).routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Stringer("signal", sig).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
