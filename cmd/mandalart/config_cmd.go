package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pbaille/mandalart/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or write configuration",
	}
	cmd.AddCommand(configInitCmd())
	cmd.AddCommand(configShowCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				path = config.DefaultPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return render(cfg, func(w io.Writer) {
				fmt.Fprintf(w, "base_url:        %s\n", cfg.BaseURL)
				fmt.Fprintf(w, "timeout:         %s\n", cfg.Timeout)
				fmt.Fprintf(w, "db_path:         %s\n", cfg.DBPath)
				fmt.Fprintf(w, "addr:            %s\n", cfg.Addr)
				fmt.Fprintf(w, "ui_addr:         %s\n", cfg.UIAddr)
				fmt.Fprintf(w, "allowed_origins: %v\n", cfg.AllowedOrigins)
				fmt.Fprintf(w, "rate_limit:      %g/s (burst %d)\n", cfg.RateLimit, cfg.RateBurst)
				fmt.Fprintf(w, "log_dir:         %s\n", cfg.LogDir)
				fmt.Fprintf(w, "debug:           %t\n", cfg.Debug)
			})
		},
	}
}
