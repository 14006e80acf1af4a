package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/logger"
)

var (
	flagConfig string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "indexctl",
	Short:        "Build, switch and query edge index generations",
	SilenceUsage: true,
	Long: `indexctl operates on one index directory: it imports documents into the
journal, constructs the next generation, switches to it and runs searches
against the generation being served.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("cannot load config: %w", err)
		}
		logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (defaults and EI_* variables when empty)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
