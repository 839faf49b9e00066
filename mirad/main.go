package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rhystmorgan/mira/internal/audit"
	"rhystmorgan/mira/internal/config"
	"rhystmorgan/mira/internal/logging"
	"rhystmorgan/mira/internal/server"
	"rhystmorgan/mira/internal/storage"
	"rhystmorgan/mira/internal/utils"
)

const shutdownTimeout = 5 * time.Second

var (
	configPath string
	addr       string
	backend    string
	dataFile   string
	journal    string
)

var rootCmd = &cobra.Command{
	Use:   "mirad",
	Short: "Data server for mira",
	Long: `mirad stores the mira contact list and serves it over HTTP.

  GET  /data     returns the stored JSON array
  POST /data     replaces it wholesale
  GET  /journal  lists recorded changes, when a journal file is configured

The list is kept in a JSON file (optionally encrypted with MIRA_PASSPHRASE)
or in SQLite.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/mira/config.yaml)")
	rootCmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides the config")
	rootCmd.Flags().StringVar(&backend, "backend", "", "Storage backend: file|sqlite")
	rootCmd.Flags().StringVar(&dataFile, "data", "", "Data file (file backend) or database (sqlite backend)")
	rootCmd.Flags().StringVar(&journal, "journal", "", "Journal file recording each change")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}

	if addr != "" {
		cfg.Server.Addr = addr
	}
	if backend != "" {
		cfg.Server.Backend = backend
	}
	if dataFile != "" {
		if cfg.Server.Backend == config.BackendSQLite {
			cfg.Server.SQLitePath = dataFile
		} else {
			cfg.Server.DataFile = dataFile
		}
	}
	if journal != "" {
		cfg.Server.JournalFile = journal
	}
	return cfg, cfg.Validate()
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, closer, err := logging.ToStderr(cfg.Log.Level, "")
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	store, err := storage.Open(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	var j *audit.Journal
	if cfg.Server.JournalFile != "" {
		j, err = audit.NewJournal(cfg.Server.JournalFile)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer j.Close()
	}

	srv, err := server.New(server.Config{Backend: store, Journal: j, Logger: logger})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	started := time.Now()

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Server.Addr, "backend", cfg.Server.Backend,
			"encrypted", cfg.Server.Passphrase.IsSet(), "journal", cfg.Server.JournalFile != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down", "uptime", utils.FormatDuration(time.Since(started)))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
