// Package cmd defines and implements the CLI commands for the testimony-tracker executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/testimony-tracker/internal/config"
	"github.com/JakeFAU/testimony-tracker/internal/server"
	"github.com/JakeFAU/testimony-tracker/internal/testimony"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// Refresher is the set of refresh tasks the one-shot commands drive.
type Refresher interface {
	Update(ctx context.Context) error
	Prune(ctx context.Context) error
	Regenerate(ctx context.Context) error
	Snapshot() *testimony.Snapshot
}

// App defines the application interface that commands use, so tests can inject a fake.
type App interface {
	Run(ctx context.Context) error
	Close(ctx context.Context) error
	Logger() *zap.Logger
	Config() *config.Config
	Tasks() Refresher
}

// AppFactory builds the application from loaded configuration.
type AppFactory func(ctx context.Context, cfg *config.Config) (App, error)

type serverApp struct {
	*server.App
	cfg *config.Config
}

func (a serverApp) Config() *config.Config { return a.cfg }

func (a serverApp) Tasks() Refresher { return a.Refresher() }

func newServerApp(ctx context.Context, cfg *config.Config) (App, error) {
	app, err := server.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return serverApp{App: app, cfg: cfg}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd(newApp AppFactory) *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "testimony-tracker",
		Short: "Tracks public testimony on an Oregon Legislature bill.",
		Long: `testimony-tracker watches the OLIS public testimony listing for a bill,
counts support and opposition, downloads every testimony document, and
publishes the merged PDF and text alongside the live numbers.`,
		SilenceUsage: true,

		// Runs before every subcommand: config first, then the application services.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), &cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				return appInstance.Close(cmd.Context())
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON, or TOML)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newCountCmd())
	cmd.AddCommand(newMissingCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd(newServerApp).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
