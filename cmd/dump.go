package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/smazurov/vop2ctl/internal/config"
	"github.com/smazurov/vop2ctl/internal/display"
	"github.com/smazurov/vop2ctl/internal/vop2"
	"github.com/spf13/cobra"
)

// CreateDumpCmd creates the register dump command.
func CreateDumpCmd() *cobra.Command {
	var (
		displayFile string
		blocks      []string
		nonZero     bool
		logLevel    string
		logJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the VOP2 registers",
		Long:  `Reads every register of the selected blocks (all by default) from the window named in display.toml. Nothing is written.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			initCLILogging(logLevel, logJSON)

			cfg, err := config.LoadDisplay(displayFile)
			if err != nil {
				return err
			}
			regs, err := display.OpenRegisters(cfg.Registers)
			if err != nil {
				return err
			}
			defer regs.Close()

			selected := vop2.Blocks()
			if len(blocks) > 0 {
				selected = selected[:0]
				for _, name := range blocks {
					b, err := vop2.ParseBlock(name)
					if err != nil {
						return err
					}
					selected = append(selected, b)
				}
			}

			variant, err := cfg.Variant()
			if err != nil {
				return err
			}
			d := vop2.New(regs.Surface, vop2.WithVariant(variant))
			return writeDump(cmd.OutOrStdout(), d, selected, nonZero)
		},
	}

	cmd.Flags().StringVarP(&displayFile, "display", "d", "display.toml", "Display configuration file")
	cmd.Flags().StringSliceVarP(&blocks, "block", "b", nil, "Blocks to dump (sysctrl, overlay, post0-3, esmart0-1)")
	cmd.Flags().BoolVar(&nonZero, "non-zero", false, "Skip registers that read zero")
	addLogFlags(cmd, &logLevel, &logJSON)
	return cmd
}

func writeDump(w io.Writer, d *vop2.Driver, blocks []vop2.Block, nonZero bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BLOCK\tOFFSET\tADDRESS\tVALUE")
	for _, b := range blocks {
		words, err := d.Snapshot(b)
		if err != nil {
			return err
		}
		for i, v := range words {
			if nonZero && v == 0 {
				continue
			}
			off := uint32(i * 4)
			fmt.Fprintf(tw, "%s\t0x%03x\t0x%04x\t0x%08x\n", b, off, b.Base()+off, v)
		}
	}
	return tw.Flush()
}
