package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nowplaying/internal/config"

	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newCommand(run).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "nowplaying:", err)
		os.Exit(1)
	}
}

func newCommand(action cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:  "nowplaying",
		Usage: "Show the track playing on Spotify and its album art on a local web page",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Directory containing app.env",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the web page, overrides PORT",
			},
			&cli.BoolFlag{
				Name:  "lan",
				Usage: "Make the page reachable from other computers on the local network",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log every poll cycle",
			},
		},
		Action: action,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	app := fx.New(
		fx.Supply(&cfg),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		AppOptions,
	)

	if err := app.Start(ctx); err != nil {
		return err
	}

	// Wait for interrupt signal
	<-ctx.Done()

	return app.Stop(context.Background())
}

// loadConfig reads app.env and the environment, then applies flag overrides.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.LoadConfig(cmd.String("config"))
	if err != nil {
		return cfg, err
	}

	if cmd.IsSet("port") {
		cfg.Port = cmd.String("port")
	}
	if cmd.IsSet("lan") {
		cfg.Lan = cmd.Bool("lan")
	}
	if cmd.IsSet("verbose") {
		cfg.Debug = cmd.Bool("verbose")
	}

	if err := cfg.LoadCredentials(); err != nil {
		return cfg, fmt.Errorf("%w (set SPOTIFY_ID and SPOTIFY_SECRET or provide %s)", err, cfg.CredentialsFile)
	}
	return cfg, nil
}
