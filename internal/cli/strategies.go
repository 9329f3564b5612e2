package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"scalpExecutor/internal/domain"
)

type strategyFlags struct {
	id         string
	symbol     string
	timeframe  string
	confidence float64
	action     string
	price      float64
	quantity   float64
	stopLoss   float64
	takeProfit float64
}

func newStrategiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategies",
		Short: "Manage strategy records",
	}
	cmd.AddCommand(newStrategiesAddCmd())
	return cmd
}

func newStrategiesAddCmd() *cobra.Command {
	f := &strategyFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store a strategy signal that can later be executed",
		Example: `  scalpexecutor strategies add --symbol BTCUSDT --action BUY --price 50000 --quantity 0.01 --stop-loss 49000 --take-profit 51000
  scalpexecutor strategies add --id hold-1 --symbol ETHUSDT --action HOLD`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			strat, err := f.strategy(time.Now())
			if err != nil {
				return err
			}

			_, appLogger, repo, err := openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.CreateStrategy(cmd.Context(), strat); err != nil {
				return fmt.Errorf("store strategy: %w", err)
			}
			appLogger.Info(cmd.Context(), "Strategy stored", map[string]interface{}{"strategyID": strat.ID})
			fmt.Fprintln(cmd.OutOrStdout(), strat.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&f.id, "id", "", "strategy ID (generated when empty)")
	cmd.Flags().StringVar(&f.symbol, "symbol", "", "trading pair, e.g. BTCUSDT")
	cmd.Flags().StringVar(&f.timeframe, "timeframe", "1m", "timeframe the signal was generated on")
	cmd.Flags().Float64Var(&f.confidence, "confidence", 1, "signal confidence within [0, 1]")
	cmd.Flags().StringVar(&f.action, "action", "BUY", "BUY, SELL or HOLD")
	cmd.Flags().Float64Var(&f.price, "price", 0, "reference entry price")
	cmd.Flags().Float64Var(&f.quantity, "quantity", 0, "base asset quantity")
	cmd.Flags().Float64Var(&f.stopLoss, "stop-loss", 0, "stop-loss price (0 for none)")
	cmd.Flags().Float64Var(&f.takeProfit, "take-profit", 0, "take-profit price (0 for none)")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}

// strategy builds and validates the record described by the flags.
func (f *strategyFlags) strategy(now time.Time) (*domain.Strategy, error) {
	strat := &domain.Strategy{
		ID:         strings.TrimSpace(f.id),
		Symbol:     strings.ToUpper(strings.TrimSpace(f.symbol)),
		Timeframe:  f.timeframe,
		Confidence: f.confidence,
		Parameters: domain.StrategyParameters{
			Action:   domain.StrategyAction(strings.ToUpper(strings.TrimSpace(f.action))),
			Price:    f.price,
			Quantity: f.quantity,
		},
		CreatedAt: now,
	}
	if f.stopLoss > 0 {
		sl := f.stopLoss
		strat.Parameters.StopLoss = &sl
	}
	if f.takeProfit > 0 {
		tp := f.takeProfit
		strat.Parameters.TakeProfit = &tp
	}
	if err := strat.Validate(); err != nil {
		return nil, err
	}
	if strat.ID == "" {
		strat.ID = uuid.NewString()
	}
	return strat, nil
}
