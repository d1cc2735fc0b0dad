// Command helper is the daemon that owns the master and slave hardware
// devices, bridges their clocks, and hands the resulting shared region to
// the plugin over the capability handshake. It is the Go-native rebuild
// of original_source/helper/src/main.cpp.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pushflx4/aggregate/internal/config"
	"github.com/pushflx4/aggregate/internal/handshake"
	"github.com/pushflx4/aggregate/internal/helperengine"
)

func main() {
	pushUID := flag.String("push-uid", "", "CoreAudio UID of the master (clock) device")
	flx4UID := flag.String("flx4-uid", "", "CoreAudio UID of the slave device")
	configFile := flag.String("config", "", "optional config file for tunables beyond --push-uid/--flx4-uid")
	logLevel := flag.String("log-level", "", "override the configured log level (none|error|warn|info|debug)")
	logFile := flag.String("log-file", "", "override the configured log file path")
	flag.Parse()

	if *pushUID == "" || *flx4UID == "" {
		fmt.Fprintln(os.Stderr, "helper: --push-uid and --flx4-uid are both required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile, config.Overrides{LogLevel: *logLevel, LogFile: *logFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, "helper: "+err.Error())
		os.Exit(1)
	}

	logFilePointer, err := config.ConfigureLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "helper: configure logger: "+err.Error())
		os.Exit(1)
	}
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = handshake.ServiceName
	}

	server := handshake.NewServer(serviceName)
	layout, err := server.Start()
	if err != nil {
		slog.Error("failed to start capability handshake server", "err", err)
		os.Exit(1)
	}
	defer server.Stop()
	go server.Serve()

	engine, err := helperengine.New(layout, helperengine.Config{
		PushUID:           *pushUID,
		FLX4UID:           *flx4UID,
		NominalSampleRate: cfg.NominalSampleRate,
		CueProcessMatch:   cfg.CueProcessMatch,
		CueStreamIndex:    cfg.CueStreamIndex,
		ErrorHandler:      &helperengine.SlogErrorHandler{},
	})
	if err != nil {
		slog.Error("failed to construct engine", "err", err)
		os.Exit(1)
	}

	if err := engine.Start(); err != nil {
		slog.Error("failed to start engine", "err", err)
		os.Exit(1)
	}
	slog.Info("helper started", "push_uid", *pushUID, "flx4_uid", *flx4UID, "service", serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("helper shutting down")
	engine.Stop()
}
