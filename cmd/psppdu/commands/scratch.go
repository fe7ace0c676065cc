package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PSPReverse/libpspproxy/cmd/psppdu/cmdutil"
)

var (
	scratchSize uint32
	scratchAddr string
)

var scratchCmd = &cobra.Command{
	Use:   "scratch",
	Short: "allocate and release spans in the stub's PSP scratch region",
}

var scratchAllocCmd = &cobra.Command{
	Use:   "alloc",
	Short: "reserve a span of PSP scratch space",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := cmdutil.Dial(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		addr, err := p.Alloc(scratchSize)
		if err != nil {
			return err
		}
		return cmdutil.PrintOutput(cmd.OutOrStdout(), map[string]any{
			"address": fmt.Sprintf("0x%x", addr), "bytes": scratchSize,
		})
	},
}

var scratchFreeCmd = &cobra.Command{
	Use:   "free",
	Short: "release a previously allocated scratch span",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(scratchAddr)
		if err != nil {
			return err
		}
		p, _, err := cmdutil.Dial(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		if err := p.Free(addr, scratchSize); err != nil {
			return err
		}
		return cmdutil.PrintOutput(cmd.OutOrStdout(), map[string]any{
			"address": fmt.Sprintf("0x%x", addr), "bytes": scratchSize,
		})
	},
}

func init() {
	scratchCmd.AddCommand(scratchAllocCmd)
	scratchCmd.AddCommand(scratchFreeCmd)

	scratchAllocCmd.Flags().Uint32Var(&scratchSize, "size", 0, "bytes to reserve")
	scratchAllocCmd.MarkFlagRequired("size")

	scratchFreeCmd.Flags().StringVar(&scratchAddr, "addr", "", "address returned by scratch alloc")
	scratchFreeCmd.Flags().Uint32Var(&scratchSize, "size", 0, "bytes originally reserved")
	scratchFreeCmd.MarkFlagRequired("addr")
	scratchFreeCmd.MarkFlagRequired("size")
}
