package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"momentum-lens/internal/models"
	"momentum-lens/pkg/utils"
)

func addRunCommands(rootCmd *cobra.Command, app *App) {
	var currentFlags []string
	var execute bool

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler: decision cycles and fill sweeps at both windows",
		Long: `Schedules one decision cycle shortly after each execution window opens
(10:30 and 14:00 market time) and a fill sweep before the session close.
Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			holdings, err := parseHoldings(currentFlags)
			if err != nil {
				return err
			}

			scheduler := cron.New(cron.WithLocation(utils.ChinaLocation))

			cycle := func(window models.ExecutionWindow) func() {
				return func() {
					ctx := context.Background()
					result, err := app.Engine.RunCycle(ctx, holdings, execute)
					if err != nil {
						app.Logger.Error().Err(err).Str("window", string(window)).Msg("decision cycle failed")
						return
					}
					app.Logger.Info().
						Str("window", string(window)).
						Str("regime", string(result.Regime.Regime)).
						Bool("rotation_allowed", result.Decision.Allowed).
						Int("orders_placed", len(result.Orders)).
						Msg("decision cycle completed")

					if _, err := app.Engine.CheckFillStatus(ctx, window); err != nil {
						app.Logger.Error().Err(err).Str("window", string(window)).Msg("fill sweep failed")
					}
				}
			}

			// Weekday-only schedule; decision cycles run a few minutes
			// after each window opens, the final sweep before close.
			if _, err := scheduler.AddFunc("35 10 * * 1-5", cycle(models.WindowMorning)); err != nil {
				return err
			}
			if _, err := scheduler.AddFunc("5 14 * * 1-5", cycle(models.WindowAfternoon)); err != nil {
				return err
			}
			if _, err := scheduler.AddFunc("55 14 * * 1-5", func() {
				ctx := context.Background()
				for _, w := range []models.ExecutionWindow{models.WindowMorning, models.WindowAfternoon} {
					if _, err := app.Engine.CheckFillStatus(ctx, w); err != nil {
						app.Logger.Error().Err(err).Str("window", string(w)).Msg("closing fill sweep failed")
					}
				}
			}); err != nil {
				return err
			}

			scheduler.Start()
			defer scheduler.Stop()

			fmt.Println("Scheduler running. Press Ctrl+C to stop.")
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			fmt.Println("Stopping.")
			return nil
		},
	}

	runCmd.Flags().StringArrayVar(&currentFlags, "current", nil, `current holding, "code" or "code:weight" (repeatable)`)
	runCmd.Flags().BoolVar(&execute, "execute", false, "place limit orders for approved rotations")

	rootCmd.AddCommand(runCmd)
}
