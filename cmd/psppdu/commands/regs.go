package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/PSPReverse/libpspproxy/cmd/psppdu/cmdutil"
)

var (
	regCCD    uint32
	regAddr   string
	regStride int
	regValue  string
)

func init() {
	for _, c := range []*cobra.Command{readSMNCmd, writeSMNCmd, readMemCmd, writeMemCmd} {
		c.Flags().Uint32Var(&regCCD, "ccd", 0, "target CCD id")
		c.Flags().StringVar(&regAddr, "addr", "", "register offset, hex (0x...) or decimal")
		c.Flags().IntVar(&regStride, "stride", 4, "access width in bytes: 1, 2, or 4")
	}
	for _, c := range []*cobra.Command{writeSMNCmd, writeMemCmd} {
		c.Flags().StringVar(&regValue, "value", "", "value to write, hex (0x...) or decimal")
	}
}

func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint32(v), nil
}

func parseValue(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return v, nil
}

var readSMNCmd = &cobra.Command{
	Use:   "read-smn",
	Short: "read a single SMN register",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(regAddr)
		if err != nil {
			return err
		}
		p, _, err := cmdutil.Dial(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		v, err := p.SmnRead(cmd.Context(), regCCD, addr, regStride)
		if err != nil {
			return err
		}
		return cmdutil.PrintOutput(cmd.OutOrStdout(), map[string]any{
			"ccd": regCCD, "address": fmt.Sprintf("0x%x", addr), "value": fmt.Sprintf("0x%x", v),
		})
	},
}

var writeSMNCmd = &cobra.Command{
	Use:   "write-smn",
	Short: "write a single SMN register",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(regAddr)
		if err != nil {
			return err
		}
		value, err := parseValue(regValue)
		if err != nil {
			return err
		}
		p, _, err := cmdutil.Dial(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		if err := p.SmnWrite(cmd.Context(), regCCD, addr, regStride, value); err != nil {
			return err
		}
		return cmdutil.PrintOutput(cmd.OutOrStdout(), map[string]any{
			"ccd": regCCD, "address": fmt.Sprintf("0x%x", addr), "value": fmt.Sprintf("0x%x", value),
		})
	},
}

var readMemCmd = &cobra.Command{
	Use:   "read-mem",
	Short: "read a single PSP SRAM register-width value",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(regAddr)
		if err != nil {
			return err
		}
		p, _, err := cmdutil.Dial(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		buf := make([]byte, regStride)
		if err := p.PspMemRead(cmd.Context(), regCCD, addr, buf); err != nil {
			return err
		}
		var v uint64
		for i := range buf {
			v |= uint64(buf[i]) << (8 * i)
		}
		return cmdutil.PrintOutput(cmd.OutOrStdout(), map[string]any{
			"ccd": regCCD, "address": fmt.Sprintf("0x%x", addr), "value": fmt.Sprintf("0x%x", v),
		})
	},
}

var writeMemCmd = &cobra.Command{
	Use:   "write-mem",
	Short: "write a single PSP SRAM register-width value",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(regAddr)
		if err != nil {
			return err
		}
		value, err := parseValue(regValue)
		if err != nil {
			return err
		}
		p, _, err := cmdutil.Dial(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		buf := make([]byte, regStride)
		for i := range buf {
			buf[i] = byte(value >> (8 * i))
		}
		if err := p.PspMemWrite(cmd.Context(), regCCD, addr, buf); err != nil {
			return err
		}
		return cmdutil.PrintOutput(cmd.OutOrStdout(), map[string]any{
			"ccd": regCCD, "address": fmt.Sprintf("0x%x", addr), "value": fmt.Sprintf("0x%x", value),
		})
	},
}
