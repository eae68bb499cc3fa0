package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/use-agent/buildharvest/config"
)

var browserBin string

var rootCmd = &cobra.Command{
	Use:          "buildharvest",
	Short:        "buildharvest archives the build logs around every status change on a CI dashboard.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&browserBin, "browser-bin", "", "Path to the Chromium binary (overrides HARVEST_BROWSER_BIN).")
	rootCmd.AddCommand(runCmd, scheduleCmd)
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig() *config.Config {
	cfg := config.Load()
	if browserBin != "" {
		cfg.Browser.BrowserBin = browserBin
	}
	return cfg
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
