package web

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pbaille/mandalart/internal/client"
)

// Route maps a static path to a view
type Route struct {
	Path string
	Name string
	View http.Handler
}

// Routes is the route table: the chart at the root and nothing else
func Routes(c *client.Client, logger *log.Logger) []Route {
	return []Route{
		{Path: "/", Name: "Home", View: NewTableView(c, logger)},
	}
}

// NewRouter serves each route at its exact path
func NewRouter(routes []Route) http.Handler {
	mux := http.NewServeMux()
	for _, r := range routes {
		pattern := "GET " + r.Path
		if r.Path == "/" {
			pattern += "{$}"
		}
		mux.Handle(pattern, r.View)
	}
	return mux
}

// Serve runs the router on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, h http.Handler, logger *log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting UI", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
