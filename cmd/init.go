package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/catalogd/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize catalogd configuration with an interactive wizard",
	Long:  `Runs an interactive wizard for the mode, port and default admin account and writes catalogd.yml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
