package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/tmdb-ratelimit/internal/server"
	"github.com/user/tmdb-ratelimit/internal/tmdb"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP proxy",
		Long: `Start the HTTP proxy in front of TMDb with graceful shutdown support.

Requests under /api/movies are admitted by the rate limiter before reaching
TMDb. Limiter state is exposed under /ratelimit.

Ctrl+C (SIGINT) or SIGTERM shuts the server down gracefully.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	_ = opts.viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	if rt.cfg.TMDb.APIKey == "" {
		rt.logger.Warn("TMDB_API_KEY is not set, upstream calls will be rejected by TMDb")
	}

	srv := server.New(server.Options{
		Addr:         rt.cfg.Server.Addr,
		ReadTimeout:  rt.cfg.Server.ReadTimeout,
		WriteTimeout: rt.cfg.Server.WriteTimeout,
		Selection:    rt.selection,
		TMDb: tmdb.NewClient(tmdb.Options{
			APIKey:  rt.cfg.TMDb.APIKey,
			BaseURL: rt.cfg.TMDb.BaseURL,
			Timeout: rt.cfg.TMDb.Timeout,
			Logger:  rt.logger,
		}),
		Logger: rt.logger,
	})

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			rt.logger.Error("HTTP server failed", zap.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		rt.logger.Error("HTTP server shutdown failed", zap.Error(err))
		return err
	}

	rt.logger.Info("HTTP server stopped gracefully")
	return nil
}
