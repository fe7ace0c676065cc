// Package commands implements the psppdu CLI commands.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/PSPReverse/libpspproxy/cmd/psppdu/cmdutil"
)

var rootCmd = &cobra.Command{
	Use:   "psppdu",
	Short: "psppdu drives an AMD PSP over the remote PDU debug protocol",
	Long: `psppdu is the command-line client for libpspproxy: it connects to a
PSP debug stub over serial, TCP, or an EM100 flash ring buffer, and issues
SMN/memory register accesses, address-space transfers, code-module loads
and execution, and scratch allocations.

Use "psppdu [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cmdutil.Flags.Device, _ = cmd.Flags().GetString("device")
		cmdutil.Flags.ConfigPath, _ = cmd.Flags().GetString("config")
		cmdutil.Flags.Timeout, _ = cmd.Flags().GetDuration("timeout")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().String("device", "", "transport device uri (overrides config file)")
	rootCmd.PersistentFlags().String("config", "", "path to config file (default: $XDG_CONFIG_HOME/psppdu/config.yaml)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "connect handshake timeout (overrides config file)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format (table|json)")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(readSMNCmd)
	rootCmd.AddCommand(writeSMNCmd)
	rootCmd.AddCommand(readMemCmd)
	rootCmd.AddCommand(writeMemCmd)
	rootCmd.AddCommand(transferCmd)
	rootCmd.AddCommand(waitIRQCmd)
	rootCmd.AddCommand(codemodCmd)
	rootCmd.AddCommand(scratchCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
