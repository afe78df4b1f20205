package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/vop2ctl/cmd"
	"github.com/smazurov/vop2ctl/internal/api"
	"github.com/smazurov/vop2ctl/internal/config"
	"github.com/smazurov/vop2ctl/internal/display"
	"github.com/smazurov/vop2ctl/internal/events"
	"github.com/smazurov/vop2ctl/internal/led"
	"github.com/smazurov/vop2ctl/internal/logging"
	"github.com/smazurov/vop2ctl/internal/metrics/exporters"
	"github.com/smazurov/vop2ctl/internal/panel"
	"github.com/smazurov/vop2ctl/internal/systemd"
)

// Options for the daemon - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"vop2ctl.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8091" toml:"server.port" env:"SERVER_PORT"`

	// Display settings
	DisplayFile     string `help:"Display pipeline file" default:"display.toml" toml:"display.config_file" env:"DISPLAY_CONFIG_FILE"`
	DisplayWatch    bool   `help:"Re-apply the display file when it changes" default:"true" toml:"display.watch" env:"DISPLAY_WATCH"`
	DisplaySimulate bool   `help:"Use the in-memory register model" default:"false" toml:"display.simulate" env:"DISPLAY_SIMULATE"`
	CommitTimeoutMs int    `help:"Default API commit wait in milliseconds" default:"100" toml:"display.commit_timeout_ms" env:"DISPLAY_COMMIT_TIMEOUT_MS"`

	// Metrics settings
	MetricsInterval string `help:"Metrics snapshot interval for SSE" default:"1s" toml:"metrics.interval" env:"METRICS_INTERVAL"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Features settings
	FeaturesLEDControl bool `help:"Enable LED control" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingVOP2    string `help:"Register driver logging level" default:"info" toml:"logging.vop2" env:"LOGGING_VOP2"`
	LoggingPanel   string `help:"Panel logging level" default:"info" toml:"logging.panel" env:"LOGGING_PANEL"`
	LoggingDisplay string `help:"Display service logging level" default:"info" toml:"logging.display" env:"LOGGING_DISPLAY"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP    string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			fmt.Fprintln(os.Stderr, "Failed to load config:", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"vop2":    opts.LoggingVOP2,
				"panel":   opts.LoggingPanel,
				"dsi":     opts.LoggingPanel,
				"display": opts.LoggingDisplay,
				"api":     opts.LoggingAPI,
				"http":    opts.LoggingHTTP,
			},
		})
		logger := logging.GetLogger("main")

		eventBus := events.New()
		logging.SetLogCallback(api.PublishLogs(eventBus))

		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))

		displayCfg, err := config.LoadDisplay(opts.DisplayFile)
		if err != nil {
			logger.Error("Failed to load display config", "path", opts.DisplayFile, "error", err)
			os.Exit(1)
		}
		if opts.DisplaySimulate {
			displayCfg.Registers.Simulate = true
		}
		variant, err := displayCfg.Variant()
		if err != nil {
			logger.Error("Unknown SoC variant", "error", err)
			os.Exit(1)
		}

		regs, err := display.OpenRegisters(displayCfg.Registers)
		if err != nil {
			logger.Error("Failed to map VOP2 registers", "device", displayCfg.Registers.Device, "error", err)
			os.Exit(1)
		}

		svcOpts := append(regs.Options(),
			display.WithEventBus(eventBus),
			display.WithVariant(variant),
			display.WithDSIHost(panel.NewLogHost(logging.GetLogger("dsi"))),
		)
		displayService := display.New(regs.Surface, svcOpts...)

		var ledManager *led.Manager
		var ledController led.Controller
		if opts.FeaturesLEDControl {
			logger.Info("LED control enabled, initializing")
			ledController = led.New(logger)
			ledManager = led.NewManager(ledController, eventBus, logger)
		}

		interval, err := time.ParseDuration(opts.MetricsInterval)
		if err != nil {
			logger.Warn("Invalid metrics interval, using default", "value", opts.MetricsInterval, "error", err)
			interval = exporters.DefaultInterval
		}
		sseExporter := exporters.NewSSEExporter(eventBus, interval)

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Display:           displayService,
			CommitTimeout:     time.Duration(opts.CommitTimeoutMs) * time.Millisecond,
			EventBus:          eventBus,
			LEDController:     ledController,
			PrometheusHandler: exporters.HTTPHandler(),
		})

		watcher := config.NewConfigWatcher(opts.DisplayFile, config.LoadDisplay, logging.GetLogger("config"),
			config.WithErrorHandler[config.DisplayConfig](func(err error) {
				logger.Warn("Display config reload rejected", "error", err)
			}))
		watcher.OnReload(func(cfg config.DisplayConfig) {
			notifier.Reloading()
			cfg.Registers.Simulate = displayCfg.Registers.Simulate
			applied, applyErr := displayService.Apply(context.Background(), cfg)
			eventBus.Publish(events.ConfigReloadedEvent{
				Path:      opts.DisplayFile,
				Timestamp: time.Now().Format(time.RFC3339),
			})
			if applyErr != nil {
				logger.Error("Re-apply failed", "error", applyErr)
				notifier.Ready("re-apply failed: " + applyErr.Error())
				return
			}
			notifier.Ready(summary(applied))
		})

		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			if regs.Sim != nil {
				logger.Info("Register simulation enabled", "period", displayCfg.Registers.SimPeriod.Duration)
				go regs.Sim.Run(ctx, displayCfg.Registers.SimPeriod.Duration)
			}
			if ledManager != nil {
				ledManager.Start()
			}
			sseExporter.Start(ctx)

			applied, applyErr := displayService.Apply(ctx, displayCfg)
			if applyErr != nil {
				// The API stays up so the pipeline can be inspected.
				logger.Error("Display bring-up failed", "error", applyErr)
				notifier.Ready("bring-up failed: " + applyErr.Error())
			} else {
				logger.Info("Display up", "mode", applied.Mode, "output", applied.Output, "port", applied.Port)
				notifier.Ready(summary(applied))
			}
			go notifier.Watchdog(ctx)

			if opts.DisplayWatch {
				if watchErr := watcher.Start(); watchErr != nil {
					logger.Warn("Failed to watch display config", "error", watchErr)
				}
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			notifier.Stopping()
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			sseExporter.Stop()
			if ledManager != nil {
				ledManager.Stop()
			}
			cancel()
			if closeErr := displayService.Close(); closeErr != nil {
				logger.Warn("Error releasing panel pins", "error", closeErr)
			}
			if closeErr := regs.Close(); closeErr != nil {
				logger.Warn("Error unmapping registers", "error", closeErr)
			}
		})
	})

	cli.Root().Use = "vop2ctl"
	cli.Root().Short = "RK356x VOP2 display pipeline daemon"
	cli.Root().AddCommand(cmd.CreateApplyCmd())
	cli.Root().AddCommand(cmd.CreateDumpCmd())
	cli.Root().AddCommand(cmd.CreatePanelCmd())
	cli.Root().AddCommand(cmd.CreateDetectCmd())

	cli.Run()
}

func summary(a *display.Applied) string {
	return fmt.Sprintf("%s on %s port %d", a.Mode, a.Output, a.Port)
}
