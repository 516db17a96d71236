package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/datallboy/gonntp/internal/api"
	"github.com/datallboy/gonntp/internal/indexer"
)

var (
	serveGroups   []string
	serveInterval time.Duration
	serveLast     int64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway, optionally syncing groups in the background",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Setup Signal Handling for Graceful Shutdown
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := openStore(ctx); err != nil {
			return err
		}

		e := echo.New()
		api.RegisterRoutes(e, appCtx)

		srv := &http.Server{
			Addr:              net.JoinHostPort("", appCtx.Config.Port),
			Handler:           e,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          log.New(appCtx.Logger, "http: ", 0),
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			appCtx.Logger.Info("Listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if len(serveGroups) > 0 {
			g.Go(func() error {
				syncLoop(gctx, indexer.New(appCtx), serveGroups, serveInterval, serveLast)
				return nil
			})
		}

		return g.Wait()
	},
}

// syncLoop archives groups every interval until ctx ends. Failures are
// logged and retried on the next tick.
func syncLoop(ctx context.Context, idx *indexer.Indexer, groups []string, interval time.Duration, last int64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := idx.SyncAll(ctx, groups, last); err != nil && ctx.Err() == nil {
			appCtx.Logger.Error("Background sync failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func init() {
	serveCmd.Flags().StringSliceVar(&serveGroups, "sync", nil, "groups to archive in the background")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 15*time.Minute, "background sync interval")
	serveCmd.Flags().Int64Var(&serveLast, "last", 1000, "limit a group's first sync to its newest N articles")
}
