package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/catalogd/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "catalogd",
	Short: "Service catalog server for Rana Electrical",
	Long: `catalogd serves the Rana Electrical service catalog: an admin API backed
by SQLite, a public services page that refreshes live when the catalog
changes, and a local mode that keeps the whole catalog in a single file.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultFile, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
