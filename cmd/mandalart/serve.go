package main

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/pbaille/mandalart/internal/api"
	"github.com/pbaille/mandalart/internal/web"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			server := api.New(s, api.Options{
				Addr:           cfg.Addr,
				AllowedOrigins: cfg.AllowedOrigins,
				Logger:         appLog,
				Registry:       prometheus.NewRegistry(),
				RateLimit:      cfg.RateLimit,
				RateBurst:      cfg.RateBurst,
			})
			err = server.Run(cmd.Context())
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8000", "server address")
	return cmd
}

func uiCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Serve the mandalart chart in the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				cfg.UIAddr = addr
			}

			router := web.NewRouter(web.Routes(getClient(), appLog))
			err := web.Serve(cmd.Context(), cfg.UIAddr, router, appLog)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":5173", "UI address")
	return cmd
}
