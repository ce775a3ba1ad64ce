package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/till/internal/connectivity"
	"github.com/roach88/till/internal/syncer"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Drain the pending-sale queue now",
		Long: `Force one drain of the pending-sale queue against the configured
backend, regardless of the periodic timer.

Exits 1 when the drain halted on a submission failure and sales remain
queued; exits 0 when the queue drained (or was already empty).

Example:
  till sync
  till sync --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, cmd)
		},
	}
	return cmd
}

func runSync(opts *RootOptions, cmd *cobra.Command) error {
	a, err := openApp(opts, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a.probeOnce(ctx)

	formatter := &OutputFormatter{Format: opts.Format, Writer: os.Stdout, Verbose: opts.Verbose}

	if a.monitor.Current() != connectivity.Online {
		_ = formatter.Error("E_OFFLINE", "no connection to the sales backend")
		return NewExitError(ExitFailure, "backend unreachable")
	}

	res, err := a.engine.ForceSync(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "drain failed", err)
	}

	if opts.Format == "json" {
		if err := formatter.Success(res); err != nil {
			return err
		}
	} else if err := formatter.Success(renderDrain(res)); err != nil {
		return err
	}

	// Records flagged failed (newly or previously) wait for manual retry;
	// only sales still pending count as an unfinished drain.
	if pending := res.Remaining - res.Failed - res.SkippedFailed; pending > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d sales still pending", pending))
	}
	return nil
}

// renderDrain renders the human-readable drain summary.
func renderDrain(r syncer.DrainResult) string {
	return fmt.Sprintf("Submitted: %d\nFailed:    %d\nRemaining: %d",
		r.Submitted, r.Failed, r.Remaining)
}
