package commands

import (
	"github.com/spf13/cobra"

	"github.com/PSPReverse/libpspproxy/cmd/psppdu/cmdutil"
)

var irqTimeoutMs int

var waitIRQCmd = &cobra.Command{
	Use:   "wait-irq",
	Short: "block for the next pending per-CCD IRQ/FIRQ change",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := cmdutil.Dial(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		state, ok, err := p.WaitForIrq(cmd.Context(), irqTimeoutMs)
		if err != nil {
			return err
		}
		return cmdutil.PrintOutput(cmd.OutOrStdout(), map[string]any{
			"ccd":       state.CCD,
			"irq":       state.IRQ,
			"firq":      state.FIRQ,
			"timed_out": !ok,
		})
	},
}

func init() {
	waitIRQCmd.Flags().IntVar(&irqTimeoutMs, "timeout-ms", 1000, "time to wait for a pending IRQ change, in milliseconds")
}
