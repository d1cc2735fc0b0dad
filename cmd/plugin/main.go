// Command plugin is a development harness for internal/pluginengine: it
// drives the same Engine a real virtual-device framework integration
// would, but through pluginhost.DevDriver's simulated IO ticks instead of
// a real OS audio daemon. It is not the shipping plugin — the real
// integration lives behind the out-of-scope virtual-device framework
// named in spec.md §1/§9 — this is the harness used to exercise the
// engine end-to-end during development.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pushflx4/aggregate/internal/config"
	"github.com/pushflx4/aggregate/internal/handshake"
	"github.com/pushflx4/aggregate/internal/pluginengine"
	"github.com/pushflx4/aggregate/internal/pluginhost"
)

// devBufferBytes / devTickInterval pace the simulated IO ticks at a
// typical audio buffer size and callback rate.
const (
	devBufferBytes  = 512 * 8
	devTickInterval = 10 * time.Millisecond
)

func main() {
	serviceName := flag.String("service-name", handshake.ServiceName, "capability service name to connect to")
	cueEnabled := flag.Bool("cue", true, "declare the optional fifth (cue) stream")
	configFile := flag.String("config", "", "optional config file for tunables")
	logLevel := flag.String("log-level", "", "override the configured log level (none|error|warn|info|debug)")
	logFile := flag.String("log-file", "", "override the configured log file path")
	flag.Parse()

	cfg, err := config.Load(*configFile, config.Overrides{LogLevel: *logLevel, LogFile: *logFile, ServiceName: *serviceName})
	if err != nil {
		fmt.Fprintln(os.Stderr, "plugin: "+err.Error())
		os.Exit(1)
	}

	logFilePointer, err := config.ConfigureLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "plugin: configure logger: "+err.Error())
		os.Exit(1)
	}
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}

	engine := pluginengine.New(pluginengine.Config{
		ServiceName: cfg.ServiceName,
		CueEnabled:  *cueEnabled,
	})

	driver := pluginhost.NewDevDriver(engine, devBufferBytes, devTickInterval)
	if err := driver.Start(); err != nil {
		slog.Error("failed to start dev host", "err", err)
		os.Exit(1)
	}
	slog.Info("plugin dev harness started", "service", cfg.ServiceName, "streams", engine.StreamCount())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("plugin dev harness shutting down")
	driver.Stop()
	engine.Disconnect()
}
