package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/smazurov/vop2ctl/internal/devicetree"
	"github.com/smazurov/vop2ctl/internal/vop2"
	"github.com/spf13/cobra"
)

// CreateDetectCmd creates the device tree inspection command.
func CreateDetectCmd() *cobra.Command {
	var (
		path   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Show the board and VOP2 node from the device tree",
		Long:  `Reads the boot device tree and prints what variant = "auto" in display.toml would resolve to.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := devicetree.Load(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			fmt.Fprintf(out, "board:   %s\n", info.Model)
			if info.VOP == nil {
				return devicetree.ErrNoVOP
			}
			variant, err := vop2.ParseVariant(info.VOP.Compatible[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "vop:     %s (%s)\n", info.VOP.Path, info.VOP.Compatible[0])
			fmt.Fprintf(out, "variant: %s\n", variant.Name)
			fmt.Fprintf(out, "window:  0x%x + 0x%x\n", info.VOP.Base, info.VOP.Size)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "device-tree", devicetree.DefaultPath, "Flattened device tree blob")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
