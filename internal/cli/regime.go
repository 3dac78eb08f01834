package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"momentum-lens/internal/models"
)

func addRegimeCommands(rootCmd *cobra.Command, app *App) {
	regimeCmd := &cobra.Command{
		Use:   "regime",
		Short: "Classify the current market regime",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := app.Engine.AssessMarketRegime(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(os.Stdout).Encode(state)
			}

			printRegime(state, app.Config.UI.ColorEnabled)
			return nil
		},
	}

	rootCmd.AddCommand(regimeCmd)
}

func printRegime(state models.RegimeState, colorEnabled bool) {
	label := string(state.Regime)
	if colorEnabled {
		switch state.Regime {
		case models.RegimeTrend:
			label = color.GreenString(label)
		case models.RegimeBear:
			label = color.RedString(label)
		case models.RegimeChop:
			label = color.YellowString(label)
		default:
			label = color.WhiteString(label)
		}
	}

	fmt.Printf("Regime:        %s\n", label)
	fmt.Printf("MA200:         %.2f (distance %+.2f%%, 5d slope %+.2f%%)\n",
		state.MA200, state.MA200Distance, state.MA200Slope)
	fmt.Printf("ATR20/price:   %.2f%%\n", state.ATRRatio*100)
	fmt.Printf("Band days:     %d of trailing 30 within +/-3%% of MA200\n", state.BandDays)
	fmt.Printf("Trend lock:    confirmed=%v\n", state.TrendConfirmed)
	if len(state.ChopConditions) > 0 {
		fmt.Printf("Chop signals:  %v\n", state.ChopConditions)
	}

	yl := state.Yearline
	if yl.Unlocked && yl.UnlockDate != nil {
		fmt.Printf("Yearline:      unlocked since %s\n", yl.UnlockDate.Format("2006-01-02"))
	} else {
		fmt.Printf("Yearline:      locked (%d consecutive days above)\n", yl.AboveCount)
	}
}
