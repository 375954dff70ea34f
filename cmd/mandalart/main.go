package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pbaille/mandalart/internal/client"
	"github.com/pbaille/mandalart/internal/config"
	"github.com/pbaille/mandalart/internal/logger"
	"github.com/pbaille/mandalart/internal/store"
)

var (
	cfgFile string
	output  string
	baseURL string
	dbPath  string
	debug   bool

	cfg    *config.Config
	appLog *log.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "mandalart",
		Short:             "Mandalart goal chart with habit tracking",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: none, MANDALART_* env applies)")
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	cmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "API base URL")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (serve only)")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")

	cmd.AddCommand(epicCmd())
	cmd.AddCommand(habitCmd())
	cmd.AddCommand(tableCmd())
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(uiCmd())
	cmd.AddCommand(configCmd())
	return cmd
}

// setup resolves configuration, lets flags win, then builds the logger
func setup(cmd *cobra.Command, args []string) error {
	switch output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", output)
	}

	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		c.BaseURL = baseURL
	}
	if flags.Changed("db") {
		c.DBPath = dbPath
	}
	if flags.Changed("debug") {
		c.Debug = debug
	}
	cfg = c

	appLog, err = logger.New(logger.Config{Debug: cfg.Debug, Dir: cfg.LogDir})
	return err
}

func getClient() *client.Client {
	return client.New(client.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}, client.WithLogger(appLog))
}

func getStore() (*store.Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(cfg.DBPath)
}

func truncate(s string, max int) string {
	// Replace newlines with spaces for display
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}
