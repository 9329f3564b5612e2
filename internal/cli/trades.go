package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"scalpExecutor/internal/domain"
	"scalpExecutor/internal/ports"
)

func newTradesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "Query recorded trades",
		Long: `Query trade records from the SQLite database.

Examples:
  scalpexecutor trades list --status SOLD --limit 20
  scalpexecutor trades show <trade-id>`,
	}
	cmd.AddCommand(newTradesListCmd(), newTradesShowCmd())
	return cmd
}

func newTradesListCmd() *cobra.Command {
	var (
		status string
		symbol string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent trades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := ports.TradeFilter{Symbol: strings.ToUpper(strings.TrimSpace(symbol)), Limit: limit}
			for _, part := range strings.Split(status, ",") {
				if part = strings.TrimSpace(part); part != "" {
					st := domain.TradeStatus(strings.ToUpper(part))
					if !st.Valid() {
						return fmt.Errorf("unknown status %q", part)
					}
					filter.Statuses = append(filter.Statuses, st)
				}
			}

			_, _, repo, err := openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			trades, total, err := repo.ListTrades(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("list trades: %w", err)
			}
			printTradeTable(cmd.OutOrStdout(), trades)
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d trades\n", len(trades), total)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "comma-separated statuses to include")
	cmd.Flags().StringVar(&symbol, "symbol", "", "only trades of this symbol")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of trades")
	return cmd
}

func newTradesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <trade-id>",
		Short: "Show the details of one trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, repo, err := openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			trade, err := repo.FindTradeByID(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get trade: %w", err)
			}
			if trade == nil {
				return fmt.Errorf("trade %s: %w", args[0], ports.ErrNotFound)
			}
			printTradeDetails(cmd.OutOrStdout(), trade)
			return nil
		},
	}
}

func printTradeTable(w io.Writer, trades []*domain.Trade) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSYMBOL\tSTATUS\tENTRY\tEXIT\tREASON\tPROFIT\tCREATED")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%.2f\t%s\n",
			t.ID, t.Symbol, t.Status,
			formatPrice(t.EntryPrice), formatPrice(t.ExitPrice),
			orDash(string(t.ExitReason)), t.Profit,
			t.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

func printTradeDetails(w io.Writer, t *domain.Trade) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(k string, v interface{}) { fmt.Fprintf(tw, "%s:\t%v\n", k, v) }

	row("ID", t.ID)
	row("Strategy", t.StrategyID)
	row("Symbol", t.Symbol)
	row("Status", t.Status)
	row("Requested", fmt.Sprintf("%s x %g", formatPrice(t.RequestedPrice), t.RequestedQuantity))
	if t.StopLoss != nil {
		row("Stop loss", formatPrice(*t.StopLoss))
	}
	if t.TakeProfit != nil {
		row("Take profit", formatPrice(*t.TakeProfit))
	}
	row("Holding", t.HoldingDuration)
	row("Exit mode", orDash(string(t.Metadata.ExitMode)))
	if !t.EntryTime.IsZero() {
		row("Entry", fmt.Sprintf("%s x %g at %s", formatPrice(t.EntryPrice), t.EntryQuantity, t.EntryTime.Format(time.RFC3339)))
	}
	if !t.ExitTime.IsZero() {
		row("Exit", fmt.Sprintf("%s at %s (%s)", formatPrice(t.ExitPrice), t.ExitTime.Format(time.RFC3339), t.ExitReason))
		row("Profit", fmt.Sprintf("%.2f", t.Profit))
	}
	if t.Metadata.Bracket != nil {
		row("Bracket", fmt.Sprintf("list=%d tp=%d sl=%d", t.Metadata.Bracket.OrderListID, t.Metadata.Bracket.TakeProfitOrderID, t.Metadata.Bracket.StopLossOrderID))
	}
	if t.Metadata.Error != "" {
		row("Error", t.Metadata.Error)
	}
	tw.Flush()
}

func formatPrice(p float64) string {
	if p == 0 {
		return "-"
	}
	return fmt.Sprintf("%.8g", p)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
