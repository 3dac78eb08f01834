// Package cli provides the command-line interface for the rotation tool.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"momentum-lens/internal/config"
	"momentum-lens/internal/data"
	"momentum-lens/internal/engine"
	"momentum-lens/internal/logging"
	"momentum-lens/internal/orders"
	"momentum-lens/internal/rotation"
	"momentum-lens/internal/store"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Store      store.Store
	Fetcher    data.Fetcher
	Controller *rotation.Controller
	Orders     *orders.Manager
	Engine     *engine.Engine
}

// NewRootCmd creates the root command for the CLI. A nil cfg is loaded in
// the persistent pre-run from the --config flag once cobra has parsed it.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "momentum-lens",
		Short: "Momentum Lens - ETF momentum rotation decision tool",
		Long: `Momentum Lens ranks a candidate ETF pool by momentum, gates rotations
behind a market-regime classifier and an anti-churn controller, and emits
IOPV-banded limit orders for the two daily execution windows.

Use 'momentum-lens help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			if app.Config == nil {
				cfgDir, _ := cmd.Flags().GetString("config")
				cfg, err := config.Load(cfgDir)
				if err != nil {
					return err
				}
				app.Config = cfg
			}
			return app.init(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.Store != nil {
				app.Store.Close()
			}
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/momentum-lens)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addRegimeCommands(rootCmd, app)
	addRankCommands(rootCmd, app)
	addRotateCommands(rootCmd, app)
	addOrderCommands(rootCmd, app)
	addRunCommands(rootCmd, app)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("momentum-lens %s\n", Version)
		},
	})

	return rootCmd
}

// init wires the store, fetcher, controller, order manager, and engine.
func (a *App) init(ctx context.Context) error {
	if a.Engine != nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.NewSQLiteStore(a.Config.Data.DBPath)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	a.Store = st

	a.Fetcher = data.NewEastMoneyFetcher(
		a.Config.Data.BaseURL,
		time.Duration(a.Config.Data.TimeoutSeconds)*time.Second,
		a.Logger,
	)

	controller, err := rotation.NewController(ctx, a.Config.AntiChurn, st, a.Logger)
	if err != nil {
		return fmt.Errorf("loading rotation history: %w", err)
	}
	a.Controller = controller

	adapter := orders.NewSimulatedAdapter(a.Config.Orders.FillProbability, 0)
	a.Orders = orders.NewManager(st, orders.NewFeeModel(a.Config.Fees), adapter, nil, a.Logger)

	a.Engine = engine.New(a.Config, a.Fetcher, st, controller, a.Orders, nil, a.Logger)
	return nil
}

// Execute runs the root command. Config loading is deferred to the
// persistent pre-run so the --config flag is honored.
func Execute() error {
	rootCmd := NewRootCmd(nil, logging.NewLogger())
	return rootCmd.Execute()
}
