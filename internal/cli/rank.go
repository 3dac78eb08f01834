package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"momentum-lens/pkg/utils"
)

func addRankCommands(rootCmd *cobra.Command, app *App) {
	rankCmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank the candidate pool by momentum score",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			now := time.Now().In(utils.ChinaLocation)

			histories, err := app.Fetcher.FetchPrices(ctx,
				app.Config.Strategy.Candidates, now.AddDate(0, 0, -400), now)
			if err != nil {
				return err
			}

			ranked := app.Engine.RankCandidates(histories)

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(os.Stdout).Encode(ranked)
			}

			if len(ranked) == 0 {
				fmt.Println("No candidates with sufficient history.")
				return nil
			}

			header := fmt.Sprintf("%-5s %-8s %10s %10s %10s", "RANK", "CODE", "R60%", "R120%", "SCORE")
			if app.Config.UI.ColorEnabled {
				header = color.CyanString(header)
			}
			fmt.Println(header)

			topN := app.Config.Strategy.TopN
			for _, s := range ranked {
				line := fmt.Sprintf("%-5d %-8s %10.2f %10.2f %10.2f", s.Rank, s.Code, s.R60, s.R120, s.Score)
				if s.Rank <= topN && app.Config.UI.ColorEnabled {
					line = color.GreenString(line)
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	rootCmd.AddCommand(rankCmd)
}
