package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/smazurov/vop2ctl/internal/panel"
	"github.com/spf13/cobra"
)

// CreatePanelCmd creates the panel description command.
func CreatePanelCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "panel [model]",
		Short: "Describe a supported panel",
		Long:  `Prints the timing, DSI link parameters, power sequence and DCS init table of a panel model.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				for _, name := range panel.Models() {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			name := panel.TH101MB31IG002.Name
			if len(args) == 1 {
				name = args[0]
			}
			m, err := panel.Lookup(name)
			if err != nil {
				return err
			}
			return describePanel(out, m)
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "List known panel models")
	return cmd
}

func describePanel(w io.Writer, m panel.Model) error {
	t := m.Timing
	fmt.Fprintf(w, "%s (%s)\n\n", m.Name, m.Compatible)
	fmt.Fprintf(w, "mode:   %s\n", t)
	fmt.Fprintf(w, "clock:  %d Hz\n", t.PixelClock)
	fmt.Fprintf(w, "h:      active %d  front %d  sync %d  back %d  total %d\n",
		t.HActive, t.HFrontPorch, t.HSyncLen, t.HBackPorch, t.HTotal())
	fmt.Fprintf(w, "v:      active %d  front %d  sync %d  back %d  total %d\n",
		t.VActive, t.VFrontPorch, t.VSyncLen, t.VBackPorch, t.VTotal())
	fmt.Fprintf(w, "dsi:    %s\n", m.DSI)
	fmt.Fprintf(w, "settle: %s\n\n", m.Settle)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POWER\tVALUE\tDELAY")
	for _, step := range m.Power {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", step.Pin, step.Value, step.Delay)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "STEP\tTYPE\tCMD\tPARAMS\tDELAY")
	for i, c := range m.Init {
		if len(c.Payload) == 0 {
			continue
		}
		params := make([]string, 0, len(c.Payload)-1)
		for _, p := range c.Payload[1:] {
			params = append(params, fmt.Sprintf("%02x", p))
		}
		fmt.Fprintf(tw, "%d\t0x%02x\t0x%02x\t%s\t%s\n",
			i, panel.DataType(c.Payload), c.Payload[0], strings.Join(params, " "), c.Delay)
	}
	fmt.Fprintf(tw, "\ninit total delay: %s\n", m.Init.Duration())
	return tw.Flush()
}
