package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/smazurov/vop2ctl/internal/config"
	"github.com/smazurov/vop2ctl/internal/display"
	"github.com/smazurov/vop2ctl/internal/logging"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// CreateApplyCmd creates the one-shot bring-up command.
func CreateApplyCmd() *cobra.Command {
	var (
		displayFile string
		simulate    bool
		logLevel    string
		logJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply display.toml once and exit",
		Long: `Probes the VOP2, programs the plane, timing and output routing from display.toml, ` +
			`commits, waits for the frame boundary when configured and initialises the panel. ` +
			`Use --simulate to run against an in-memory register model.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			initCLILogging(logLevel, logJSON)
			logger := logging.GetLogger("apply")

			cfg, err := config.LoadDisplay(displayFile)
			if err != nil {
				return err
			}
			if simulate {
				cfg.Registers.Simulate = true
			}

			regs, err := display.OpenRegisters(cfg.Registers)
			if err != nil {
				return err
			}
			defer regs.Close()

			variant, err := cfg.Variant()
			if err != nil {
				return err
			}
			svc := display.New(regs.Surface, append(regs.Options(), display.WithVariant(variant))...)
			defer svc.Close()

			// The simulated vblank runs until Apply returns.
			g, ctx := errgroup.WithContext(cmd.Context())
			simCtx, stopSim := context.WithCancel(ctx)
			if regs.Sim != nil {
				g.Go(func() error {
					regs.Sim.Run(simCtx, cfg.Registers.SimPeriod.Duration)
					return nil
				})
			}

			start := time.Now()
			var applied *display.Applied
			g.Go(func() error {
				defer stopSim()
				var applyErr error
				applied, applyErr = svc.Apply(ctx, cfg)
				return applyErr
			})
			if err := g.Wait(); err != nil {
				return err
			}
			logger.Debug("Bring-up finished", "elapsed", time.Since(start))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "output:   %s on port %d\n", applied.Output, applied.Port)
			fmt.Fprintf(out, "mode:     %s\n", applied.Mode)
			fmt.Fprintf(out, "plane:    %s %s\n", applied.Plane, applied.Format)
			fmt.Fprintf(out, "polarity: %s\n", applied.Polarity)
			fmt.Fprintf(out, "commit:   %s (latched: %t)\n", applied.Bits, applied.Latched)
			if applied.Panel != "" {
				fmt.Fprintf(out, "panel:    %s\n", applied.Panel)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&displayFile, "display", "d", "display.toml", "Display configuration file")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "Use the in-memory register model instead of /dev/mem")
	addLogFlags(cmd, &logLevel, &logJSON)
	return cmd
}

func addLogFlags(cmd *cobra.Command, level *string, json *bool) {
	cmd.Flags().StringVar(level, "log-level", "warn", "Logging level (debug, info, warn, error)")
	cmd.Flags().BoolVar(json, "log-json", false, "Log as JSON")
}

func initCLILogging(level string, json bool) {
	cfg := logging.Config{Level: level, Format: "text"}
	if json {
		cfg.Format = "json"
	}
	logging.Initialize(cfg)
}
