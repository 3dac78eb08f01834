package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"momentum-lens/internal/models"
	"momentum-lens/pkg/utils"
)

func addOrderCommands(rootCmd *cobra.Command, app *App) {
	ordersCmd := &cobra.Command{
		Use:   "orders",
		Short: "List today's limit orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now().In(utils.ChinaLocation)
			list, err := app.Store.OrdersForDay(cmd.Context(), day)
			if err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(os.Stdout).Encode(list)
			}

			if len(list) == 0 {
				fmt.Println("No orders today.")
				return nil
			}
			for _, o := range list {
				fmt.Printf("%s  %-4s %-8s x%-7d limit %.4f  [%s]  %s\n",
					o.ID[:8], o.Side, o.Code, o.Quantity, o.LimitPrice, o.Window, o.Status)
			}
			return nil
		},
	}

	var windowFlag string
	fillCmd := &cobra.Command{
		Use:   "fill",
		Short: "Sweep fill status for one execution window",
		RunE: func(cmd *cobra.Command, args []string) error {
			window := models.ExecutionWindow(windowFlag)
			if window != models.WindowMorning && window != models.WindowAfternoon {
				return fmt.Errorf("invalid window %q: must be %s or %s",
					windowFlag, models.WindowMorning, models.WindowAfternoon)
			}

			updates, err := app.Engine.CheckFillStatus(cmd.Context(), window)
			if err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(os.Stdout).Encode(updates)
			}

			if len(updates) == 0 {
				fmt.Println("No status changes.")
				return nil
			}
			for _, u := range updates {
				switch u.Status {
				case models.OrderFilled:
					fmt.Printf("%s  %s FILLED x%d @ %.4f\n", u.OrderID[:8], u.Code, u.FilledQty, u.FillPrice)
				default:
					fmt.Printf("%s  %s %s\n", u.OrderID[:8], u.Code, u.Status)
				}
			}
			return nil
		},
	}
	fillCmd.Flags().StringVar(&windowFlag, "window", string(models.WindowMorning), "execution window (10:30 or 14:00)")

	cancelCmd := &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel a pending order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Orders.CancelOrder(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Order %s cancelled.\n", args[0])
			return nil
		},
	}

	ordersCmd.AddCommand(fillCmd, cancelCmd)
	rootCmd.AddCommand(ordersCmd)
}
