package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"rhystmorgan/mira/internal/app"
	"rhystmorgan/mira/internal/config"
	"rhystmorgan/mira/internal/logging"
	"rhystmorgan/mira/internal/remote"
	"rhystmorgan/mira/internal/store"
	"rhystmorgan/mira/internal/utils"
	"rhystmorgan/mira/internal/views"
)

var (
	configPath string
	origin     string
	format     string
	skipDups   bool
	dryRun     bool
)

var rootCmd = &cobra.Command{
	Use:   "mira",
	Short: "A small contact manager for the terminal",
	Long: `mira keeps a list of people: names, places, phone numbers, emails,
notes and when you last met. Contacts live on a data server (see mirad) and
are loaded once at startup; every change saves the whole list back.

Search with plain text, or start with = for an expression:
  =place == "Oslo" && len(email) > 0`,
	SilenceUsage: true,
	RunE:         runTUI,
}

var exportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Export contacts to JSON or CSV",
	Long:  "Export contacts to a file. Without a path a timestamped backup is written to the data directory; use - for stdout.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import contacts from JSON or CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialise the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("config file: %s\n", resolvedConfigPath())
		fmt.Printf("remote:      %s%s\n", cfg.Remote.Origin, cfg.Remote.Path)
		fmt.Printf("log file:    %s (%s)\n", cfg.Log.File, cfg.Log.Level)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolvedConfigPath()
		if path == "" {
			return fmt.Errorf("could not determine config directory")
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
		if err := config.Save(path, config.Default()); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/mira/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&origin, "origin", "", "Data server origin, overrides the config")

	exportCmd.Flags().StringVarP(&format, "format", "f", "", "Output format: json|csv (default from extension, else json)")
	importCmd.Flags().StringVarP(&format, "format", "f", "", "Input format: json|csv (default from extension)")
	importCmd.Flags().BoolVar(&skipDups, "skip-duplicates", false, "Skip contacts whose name already exists")
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be imported without saving")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(exportCmd, importCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.Path()
}

func loadConfig() (config.Config, error) {
	cfg, err := config.LoadFrom(resolvedConfigPath())
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	if origin != "" {
		cfg.Remote.Origin = origin
		if err := cfg.Validate(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func newStore(cfg config.Config, logger *slog.Logger) (*store.ContactStore, error) {
	client, err := remote.NewClient(remote.Config{
		Origin:     cfg.Remote.Origin,
		Path:       cfg.Remote.Path,
		Timeout:    cfg.Remote.Timeout,
		RetryCount: cfg.Remote.RetryCount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote: %w", err)
	}
	return store.New(client, store.WithLogger(logger)), nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, closer, err := logging.ToFile(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	s, err := newStore(cfg, logger)
	if err != nil {
		return err
	}

	ctl := app.New(s, app.Options{
		Timeout:  cfg.Remote.Timeout,
		Logger:   logger,
		PageSize: cfg.UI.PageSize,
	})
	defer ctl.Close()

	logger.Info("starting", "remote", cfg.Remote.Origin+cfg.Remote.Path)

	p := tea.NewProgram(views.NewAppModel(ctl, nil), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running application: %w", err)
	}
	return nil
}

// cliContext cancels on interrupt and bounds the whole command.
func cliContext(cfg config.Config) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, 4*cfg.Remote.Timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func cliLogger(cfg config.Config) (*slog.Logger, io.Closer, error) {
	return logging.ToStderr("warn", cfg.Log.File)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := cliLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	f, err := utils.ParseFormat(format, path)
	if err != nil {
		return err
	}

	s, err := newStore(cfg, logger)
	if err != nil {
		return err
	}
	ctx, cancel := cliContext(cfg)
	defer cancel()

	if err := s.Fetch(ctx); err != nil {
		return fmt.Errorf("failed to fetch contacts: %s", store.UserMessage(err))
	}

	exporter := utils.NewContactExporter(f)
	contacts := s.Serialize()

	if path == "-" {
		return exporter.Export(cmd.OutOrStdout(), contacts)
	}
	if path == "" {
		dir, err := utils.GetDefaultExportPath()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, utils.GenerateBackupFilename(f))
	}

	if err := exporter.ExportFile(path, contacts); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d contacts to %s\n", len(contacts), path)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := cliLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	f, err := utils.ParseFormat(format, args[0])
	if err != nil {
		return err
	}

	s, err := newStore(cfg, logger)
	if err != nil {
		return err
	}
	ctx, cancel := cliContext(cfg)
	defer cancel()

	if err := s.Fetch(ctx); err != nil {
		return fmt.Errorf("failed to fetch contacts: %s", store.UserMessage(err))
	}

	result, contacts, err := utils.NewContactImporter(f, skipDups).ImportFile(args[0], s.Serialize())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, e := range result.Errors {
		fmt.Fprintf(out, "error: %s\n", e.Error())
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}

	if len(contacts) == 0 {
		fmt.Fprintln(out, "Nothing to import")
		return nil
	}
	if dryRun {
		fmt.Fprintf(out, "Would import %d of %d contacts\n", result.ImportedContacts, result.TotalContacts)
		return nil
	}

	for _, fields := range contacts {
		s.Create(fields)
	}
	if err := s.Persist(ctx); err != nil {
		return fmt.Errorf("failed to save contacts: %s", store.UserMessage(err))
	}

	fmt.Fprintf(out, "Imported %d of %d contacts (%d skipped)\n",
		result.ImportedContacts, result.TotalContacts, result.SkippedContacts)
	return nil
}
