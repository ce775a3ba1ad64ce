package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/till/internal/syncer"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, storage, and queue status",
		Long: `Probe the backend once and report the sync state: connectivity,
active storage engine, and pending/failed sale counts.

Example:
  till status
  till status --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
	return cmd
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
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

	status, err := a.engine.Status(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read status", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: os.Stdout, Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Success(status)
	}
	return formatter.Success(renderStatus(status))
}

// renderStatus renders the human-readable status block.
func renderStatus(s syncer.Status) string {
	var b strings.Builder

	state := "offline"
	if s.Online {
		state = "online"
	}
	syncing := "no"
	if s.Syncing {
		syncing = "yes"
	}
	lastSync := "never"
	if !s.LastSyncAt.IsZero() {
		lastSync = s.LastSyncAt.UTC().Format(time.RFC3339)
	}

	fmt.Fprintf(&b, "Connectivity:  %s\n", state)
	fmt.Fprintf(&b, "Syncing:       %s\n", syncing)
	fmt.Fprintf(&b, "Storage:       %s\n", s.Capability)
	fmt.Fprintf(&b, "Pending sales: %d\n", s.PendingCount)
	fmt.Fprintf(&b, "Failed sales:  %d\n", s.FailedCount)
	fmt.Fprintf(&b, "Last sync:     %s", lastSync)
	if s.LastError != "" {
		fmt.Fprintf(&b, "\nLast error:    %s", s.LastError)
	}
	return b.String()
}
