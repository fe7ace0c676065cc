package commands

import (
	"fmt"
	"os"

	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/PSPReverse/libpspproxy/cmd/psppdu/cmdutil"
	"github.com/PSPReverse/libpspproxy/internal/logger"
)

var (
	codemodCCD   uint32
	codemodFile  string
	codemodEntry string
)

var codemodCmd = &cobra.Command{
	Use:   "codemod",
	Short: "load and execute a code module on a CCD",
}

var codemodLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "load a code module's bytes onto a CCD's scratch region",
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(codemodFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", codemodFile, err)
		}
		p, _, err := cmdutil.Dial(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		if err := p.CodeModLoad(cmd.Context(), codemodCCD, code); err != nil {
			return err
		}
		return cmdutil.PrintOutput(cmd.OutOrStdout(), map[string]any{
			"ccd": codemodCCD, "bytes": len(code),
		})
	},
}

var codemodExecCmd = &cobra.Command{
	Use:   "exec",
	Short: "branch to a previously-loaded code module and wait for it to finish",
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := parseValue(codemodEntry)
		if err != nil {
			return err
		}
		p, ctx, err := cmdutil.Dial(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		// A run id distinguishes overlapping exec invocations in the log
		// stream; it has no protocol meaning, it just correlates lines.
		runID := xid.New().String()
		logger.InfoCtx(ctx, "code module exec starting", "run_id", runID, "ccd", codemodCCD, "entry", fmt.Sprintf("0x%x", entry))

		rc, err := p.CodeModExec(ctx, codemodCCD, entry)
		if err != nil {
			return err
		}
		return cmdutil.PrintOutput(cmd.OutOrStdout(), map[string]any{
			"ccd": codemodCCD, "run_id": runID, "rc": fmt.Sprintf("0x%x", rc),
		})
	},
}

func init() {
	codemodCmd.AddCommand(codemodLoadCmd)
	codemodCmd.AddCommand(codemodExecCmd)

	codemodLoadCmd.Flags().Uint32Var(&codemodCCD, "ccd", 0, "target CCD id")
	codemodLoadCmd.Flags().StringVar(&codemodFile, "file", "", "path to the code module binary")
	codemodLoadCmd.MarkFlagRequired("file")

	codemodExecCmd.Flags().Uint32Var(&codemodCCD, "ccd", 0, "target CCD id")
	codemodExecCmd.Flags().StringVar(&codemodEntry, "entry", "", "entry point, hex (0x...) or decimal")
	codemodExecCmd.MarkFlagRequired("entry")
}
