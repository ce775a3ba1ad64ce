package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/till/internal/money"
	"github.com/roach88/till/internal/sale"
)

// cartFile is the YAML document `till checkout` reads.
type cartFile struct {
	Items []struct {
		Product   int64   `yaml:"product"`
		Name      string  `yaml:"name"`
		Quantity  int     `yaml:"quantity"`
		UnitPrice float64 `yaml:"unit_price"`
		CostPrice float64 `yaml:"cost_price"`
	} `yaml:"items"`
	PaymentMethod string  `yaml:"payment_method"`
	Tender        float64 `yaml:"tender"`
}

// NewCheckoutCommand creates the checkout command.
func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout <cart.yaml>",
		Short: "Submit a sale from a cart file",
		Long: `Price the cart described in the YAML file and route it through the
sync engine: immediate submission when the backend is reachable,
otherwise a durable offline enqueue.

Cart file:
  items:
    - {product: 12, name: "Milk 500ml", quantity: 2, unit_price: 55.00}
  payment_method: cash
  tender: 200.00

Example:
  till checkout ./cart.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckout(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runCheckout(opts *RootOptions, cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read cart file", err)
	}

	var cart cartFile
	if err := yaml.Unmarshal(data, &cart); err != nil {
		return WrapExitError(ExitCommandError, "failed to parse cart file", err)
	}

	a, err := openApp(opts, false)
	if err != nil {
		return err
	}
	defer a.close()

	items := make([]sale.CartItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, sale.CartItem{
			ProductID:   it.Product,
			ProductName: it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   money.FromFloat(it.UnitPrice),
			CostPrice:   money.FromFloat(it.CostPrice),
		})
	}

	payload, err := a.builder.BuildPayload(items, sale.PaymentMethod(cart.PaymentMethod), money.FromFloat(cart.Tender))
	if err != nil {
		return WrapExitError(ExitFailure, "invalid cart", err)
	}

	ctx := cmdContext(cmd)
	a.probeOnce(ctx)

	outcome, err := a.engine.SubmitOrQueue(ctx, payload)
	if err != nil {
		return WrapExitError(ExitCommandError, "sale could not be saved", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: os.Stdout, Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Success(outcome)
	}

	msg := fmt.Sprintf("Sale %s saved offline - will sync later. Change due: %s",
		outcome.ReceiptNumber, payload.ChangeGiven)
	if outcome.Synced {
		msg = fmt.Sprintf("Sale %s completed. Change due: %s",
			outcome.ReceiptNumber, payload.ChangeGiven)
	}
	return formatter.Success(msg)
}
