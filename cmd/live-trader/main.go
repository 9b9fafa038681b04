// cmd/live-trader/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/selinkarabicakkk/trading-bot/internal/app"
	"github.com/selinkarabicakkk/trading-bot/internal/config"
	"github.com/selinkarabicakkk/trading-bot/pkg/logger"
)

func main() {
	var (
		cfgFile   string
		printConf bool
	)

	root := &cobra.Command{
		Use:          "live-trader",
		Short:        "Live trading signal stream client",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("config load error: %w", err)
			}
			if printConf {
				cfg.Print()
			}

			log, err := logger.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("logger init error: %w", err)
			}
			defer log.Sync()

			log.Info("starting live-trader",
				zap.String("service.name", cfg.ServiceName),
				zap.String("service.version", cfg.ServiceVersion),
				zap.String("config.path", cfgFile),
			)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := app.Run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("live-trader exited with error", zap.Error(err))
				return err
			}
			log.Info("live-trader shut down cleanly")
			return nil
		},
	}

	root.Flags().StringVar(&cfgFile, "config", "", "path to config file (env and defaults only when empty)")
	root.Flags().BoolVar(&printConf, "print-config", false, "print the effective configuration on start")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
