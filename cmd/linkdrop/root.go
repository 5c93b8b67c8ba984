package main

import (
	"fmt"
	"os"

	"linkdrop/internal/config"
	"linkdrop/internal/logger"

	"github.com/spf13/cobra"
)

var cfgFile string
var verbose bool
var logFile string

// Loaded once per invocation by the root PersistentPreRun.
var (
	cfg  *config.Config
	ring *logger.Ring
)

var rootCmd = &cobra.Command{
	Use:   "linkdrop",
	Short: "Manage proxy profiles and pass them between devices on the local network",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
		if cfg.Log.Capacity > 0 {
			ring = logger.NewRing(cfg.Log.Capacity)
		}
		logger.Init(verbose, logFile, ring)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stdout (overwrites file)")
}
