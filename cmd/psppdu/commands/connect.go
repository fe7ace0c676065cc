package commands

import (
	"github.com/spf13/cobra"

	"github.com/PSPReverse/libpspproxy/cmd/psppdu/cmdutil"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "connect to the stub and print the reported topology",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := cmdutil.Dial(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		info, err := p.QueryInfo()
		if err != nil {
			return err
		}
		return cmdutil.PrintOutput(cmd.OutOrStdout(), map[string]any{
			"device":            cmdutil.Flags.Device,
			"cb_pdu_max":        info.CbPduMax,
			"scratch_start":     info.ScratchStart,
			"scratch_length":    info.ScratchLength,
			"c_sys_sockets":     info.CSysSockets,
			"c_ccds_per_socket": info.CCcdsPerSocket,
			"c_ccds":            info.CCcds,
		})
	},
}
