// Package logging provides per-module slog loggers for vop2ctl.
//
// Records go to stdout when it is a terminal, pipe or file, to the systemd
// journal when journald is listening, and to an in-memory history that
// backs the /api/logs/stream endpoint.
//
// Call Initialize once with the [logging] section of the configuration:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"vop2":  "debug",
//			"panel": "warn",
//		},
//	})
//
// then take a logger per package:
//
//	logger := logging.GetLogger("display")
//	logger.Info("Mode applied", "port", 0, "output", "mipi")
//
// A logger obtained before Initialize is cached and follows the configured
// level once Initialize runs.
//
// Journal entries carry SYSLOG_IDENTIFIER=vop2ctl and one upper-case field
// per attribute:
//
//	journalctl -t vop2ctl -f
//	journalctl -t vop2ctl MODULE=vop2 -p warning
package logging
