package main

import (
	"fmt"
	"os"

	"ShelfLayoutServer/config"
	"ShelfLayoutServer/logger"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := RootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// RootCommand builds the CLI: serve runs the servers, analyze and ask work
// offline on a detections file.
func RootCommand() *cobra.Command {
	var configPath string
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:          "shelf-layout-server",
		Short:        "Shelf layout analysis and question answering server",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the yaml config file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shelf-layout-server %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
		},
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return logger.Init(cfg.Server.Mode)
	}
	rootCmd.PersistentPostRun = func(*cobra.Command, []string) {
		logger.Sync()
	}

	current := func() *config.Config { return cfg }
	rootCmd.AddCommand(
		serveCommand(current),
		analyzeCommand(current),
		askCommand(current),
		versionCmd,
	)
	return rootCmd
}
