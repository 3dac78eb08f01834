package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"momentum-lens/internal/models"
	"momentum-lens/pkg/utils"
)

func addRotateCommands(rootCmd *cobra.Command, app *App) {
	var currentFlags []string
	var execute bool

	rotateCmd := &cobra.Command{
		Use:   "rotate",
		Short: "Evaluate a rotation through every gate, optionally placing orders",
		Long: `Runs one full decision cycle: regime classification, momentum ranking,
correlation substitution, and the anti-churn gate. With --execute an
approved rotation is turned into limit orders for the next window.

Current holdings are passed as repeated --current flags, either "code" or
"code:weight".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			holdings, err := parseHoldings(currentFlags)
			if err != nil {
				return err
			}

			result, err := app.Engine.RunCycle(cmd.Context(), holdings, execute)
			if err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(os.Stdout).Encode(result)
			}

			printRegime(result.Regime, app.Config.UI.ColorEnabled)
			fmt.Println()

			if len(result.Legs) > 0 {
				fmt.Print("Selected legs: ")
				codes := make([]string, len(result.Legs))
				for i, leg := range result.Legs {
					codes[i] = fmt.Sprintf("%s (%.2f)", leg.Code, leg.Score)
				}
				fmt.Println(strings.Join(codes, ", "))
			}

			verdict := "DENIED"
			if result.Decision.Allowed {
				verdict = "ALLOWED"
			}
			if app.Config.UI.ColorEnabled {
				if result.Decision.Allowed {
					verdict = color.GreenString(verdict)
				} else {
					verdict = color.RedString(verdict)
				}
			}
			fmt.Printf("Rotation:      %s\n", verdict)
			for _, reason := range result.Decision.Reasons {
				fmt.Printf("  - %s\n", reason)
			}

			if result.Plan != nil && result.Plan.Outgoing != "" {
				fmt.Printf("Plan:          %s -> %s (score %.2f -> %.2f)\n",
					result.Plan.Outgoing, result.Plan.Incoming,
					result.Plan.OldScore, result.Plan.NewScore)
			}

			for _, order := range result.Orders {
				fmt.Printf("Order:         %s %s x%d limit %.4f window %s expires %s\n",
					order.Side, order.Code, order.Quantity, order.LimitPrice,
					order.Window, order.ExpireTime.Format("2006-01-02 15:04"))
			}

			return nil
		},
	}

	rotateCmd.Flags().StringArrayVar(&currentFlags, "current", nil, `current holding, "code" or "code:weight" (repeatable)`)
	rotateCmd.Flags().BoolVar(&execute, "execute", false, "place limit orders for an approved rotation")

	rootCmd.AddCommand(rotateCmd)
}

func parseHoldings(flags []string) ([]models.Holding, error) {
	holdings := make([]models.Holding, 0, len(flags))
	for _, f := range flags {
		parts := strings.SplitN(f, ":", 2)
		h := models.Holding{Code: parts[0], EntryDate: time.Now().In(utils.ChinaLocation)}
		if len(parts) == 2 {
			if _, err := fmt.Sscanf(parts[1], "%f", &h.Weight); err != nil {
				return nil, fmt.Errorf("invalid holding %q: %w", f, err)
			}
		}
		holdings = append(holdings, h)
	}
	return holdings, nil
}
