package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/PSPReverse/libpspproxy/cmd/psppdu/cmdutil"
	"github.com/PSPReverse/libpspproxy/pkg/pspaddr"
	"github.com/PSPReverse/libpspproxy/pkg/proxy"
)

var (
	xferSpace     string
	xferCCD       uint32
	xferAddr      string
	xferCache     string
	xferLength    uint32
	xferFile      string
	xferDirection string
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "copy bytes between a file and psp-mem or x86-mem",
	Long: `transfer moves a byte range between stdin/stdout (or --file) and one of
the byte-addressable spaces the generic address transfer supports:
psp-mem (per-CCD SRAM) or x86-mem (physical memory, with an optional cache
mode). SMN and MMIO are register-width only and are not valid --space
values here; use read-smn/write-smn or read-mem/write-mem instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(xferAddr)
		if err != nil {
			return err
		}
		cache := pspaddr.CacheDefault
		switch xferCache {
		case "", "default":
			cache = pspaddr.CacheDefault
		case "uc":
			cache = pspaddr.CacheUC
		case "wb":
			cache = pspaddr.CacheWB
		case "wc":
			cache = pspaddr.CacheWC
		case "wt":
			cache = pspaddr.CacheWT
		default:
			return fmt.Errorf("invalid --cache %q: want default|uc|wb|wc|wt", xferCache)
		}

		p, _, err := cmdutil.Dial(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		switch xferDirection {
		case "read":
			if xferLength == 0 {
				return fmt.Errorf("--length is required for a read transfer")
			}
			buf := make([]byte, xferLength)
			if err := readSpace(cmd, p, xferSpace, xferCCD, addr, cache, buf); err != nil {
				return err
			}
			out, closeOut, err := openOutput(xferFile)
			if err != nil {
				return err
			}
			defer closeOut()
			if _, err := out.Write(buf); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
		case "write":
			in, closeIn, err := openInput(xferFile)
			if err != nil {
				return err
			}
			defer closeIn()
			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			if err := writeSpace(cmd, p, xferSpace, xferCCD, addr, cache, data); err != nil {
				return err
			}
			xferLength = uint32(len(data))
		default:
			return fmt.Errorf("invalid --direction %q: want read|write", xferDirection)
		}

		return cmdutil.PrintOutput(cmd.OutOrStdout(), map[string]any{
			"address": fmt.Sprintf("0x%x", addr), "bytes": xferLength,
		})
	},
}

func init() {
	transferCmd.Flags().StringVar(&xferSpace, "space", "psp-mem", "address space: psp-mem or x86-mem")
	transferCmd.Flags().Uint32Var(&xferCCD, "ccd", 0, "target CCD id (psp-mem only)")
	transferCmd.Flags().StringVar(&xferAddr, "addr", "", "starting address, hex (0x...) or decimal")
	transferCmd.Flags().StringVar(&xferCache, "cache", "default", "x86-mem cache mode: default|uc|wb|wc|wt")
	transferCmd.Flags().Uint32Var(&xferLength, "length", 0, "bytes to read (ignored for write)")
	transferCmd.Flags().StringVar(&xferFile, "file", "", "file to read from/write to; default stdin/stdout")
	transferCmd.Flags().StringVar(&xferDirection, "direction", "read", "read or write")
}

func readSpace(cmd *cobra.Command, p *proxy.Proxy, space string, ccd, addr uint32, cache pspaddr.CacheMode, buf []byte) error {
	switch space {
	case "psp-mem":
		return p.PspMemRead(cmd.Context(), ccd, addr, buf)
	case "x86-mem":
		return p.X86MemRead(cmd.Context(), uint64(addr), cache, buf)
	default:
		return fmt.Errorf("invalid --space %q: want psp-mem or x86-mem", space)
	}
}

func writeSpace(cmd *cobra.Command, p *proxy.Proxy, space string, ccd, addr uint32, cache pspaddr.CacheMode, data []byte) error {
	switch space {
	case "psp-mem":
		return p.PspMemWrite(cmd.Context(), ccd, addr, data)
	case "x86-mem":
		return p.X86MemWrite(cmd.Context(), uint64(addr), cache, data)
	default:
		return fmt.Errorf("invalid --space %q: want psp-mem or x86-mem", space)
	}
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}
