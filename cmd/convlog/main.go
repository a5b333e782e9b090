package main

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	// .env 可选
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "./configs/config.yaml"
	}

	root := &cobra.Command{
		Use:           "convlog",
		Short:         "Conversation log service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultPath, "config file path")

	root.AddCommand(
		newServeCmd(),
		newPurgeCmd(),
		newArchiveCmd(),
		newCleanupCmd(),
		newOptimizeCmd(),
		newStatsCmd(),
		newExportCmd(),
		newGateCmd(),
		newTokenCmd(),
	)
	return root
}
