package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pranavgnn/thirdeye/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "thirdeye",
	Short: "Citizen traffic violation reporting pipeline",
	Long:  "Analyzes road-scene photos with vision models, matches findings against the Indian traffic violation catalog, files reports, and replies to reporters over WhatsApp.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
