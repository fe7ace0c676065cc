package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PSPReverse/libpspproxy/pkg/config"
)

var configInitPath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "manage the psppdu configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configInitPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "output path (default: "+`$XDG_CONFIG_HOME/psppdu/config.yaml`+")")
}
