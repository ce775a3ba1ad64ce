package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/till/internal/api"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the POS sync service",
		Long: `Run the till service: the local HTTP API for the point-of-sale UI,
the connectivity monitor, and the periodic sync engine.

Example:
  till serve --config ./till.yaml
  TILL_BACKEND_URL=https://pos.example.com till serve`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, cmd)
		},
	}
	return cmd
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	a, err := openApp(opts, true)
	if err != nil {
		return err
	}
	defer a.close()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			a.logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	go a.monitor.Start(ctx)
	go a.engine.Run(ctx)

	if !opts.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	handler := api.NewHandler(a.engine, a.builder, a.queue, a.logger)
	api.InitRoutes(router, handler)

	srv := &http.Server{Addr: a.cfg.ListenAddr, Handler: router}

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info("serving UI API",
			zap.String("addr", a.cfg.ListenAddr),
			zap.String("storage", string(a.queue.Capability())))
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitCommandError, "HTTP server failed", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP shutdown", zap.Error(err))
	}

	a.logger.Info("stopped")
	return nil
}
