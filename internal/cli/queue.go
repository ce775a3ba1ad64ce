package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/till/internal/sale"
)

// NewQueueCommand creates the queue command and its subcommands.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the pending-sale queue",
		Long: `List the sales waiting to be synced, oldest first.

Subcommands return a rejected sale to the retry rotation or clear the
queue entirely.

Example:
  till queue
  till queue retry 0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b
  till queue clear`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueList(rootOpts, cmd)
		},
	}

	cmd.AddCommand(newQueueRetryCommand(rootOpts))
	cmd.AddCommand(newQueueClearCommand(rootOpts))
	return cmd
}

func runQueueList(opts *RootOptions, cmd *cobra.Command) error {
	a, err := openApp(opts, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmdContext(cmd)
	records, err := a.queue.PeekOrdered(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read queue", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: os.Stdout, Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Success(records)
	}
	return formatter.Success(renderQueue(records))
}

// renderQueue renders the queued sales as an aligned table.
func renderQueue(records []sale.Record) string {
	if len(records) == 0 {
		return "Queue is empty."
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RECEIPT\tCREATED AT\tSTATUS\tTOTAL\tOFFLINE ID")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.ReceiptNumber,
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.Status,
			rec.Payload.TotalAmount,
			rec.OfflineID,
		)
	}
	w.Flush()
	fmt.Fprintf(&b, "(%d sales queued)", len(records))
	return b.String()
}

func newQueueRetryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <offline-id>",
		Short: "Return a rejected sale to the retry rotation",
		Args:  cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.engine.Retry(cmdContext(cmd), args[0]); err != nil {
				return WrapExitError(ExitCommandError, "retry failed", err)
			}

			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: os.Stdout}
			return formatter.Success(fmt.Sprintf("Sale %s returned to pending.", args[0]))
		},
	}
}

func newQueueClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every queued sale",
		Long: `Remove every queued sale without submitting it. Unsynced sales are
lost permanently; meant for test resets, not day-to-day operation.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, false)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.queue.Clear(cmdContext(cmd))
			if err != nil {
				return WrapExitError(ExitCommandError, "clear failed", err)
			}

			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: os.Stdout}
			return formatter.Success(fmt.Sprintf("Cleared %d queued sales.", n))
		},
	}
}

// cmdContext returns the command's context, falling back to Background.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
