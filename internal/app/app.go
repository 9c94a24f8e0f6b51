// Package app wires a match together: configuration, engine, log sink,
// transport, and the timed run/shutdown race.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	nethttp "net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	server "pipe-rush/server"
	"pipe-rush/server/eventlog"
	"pipe-rush/server/internal/codehub"
	servernet "pipe-rush/server/internal/net"
	"pipe-rush/server/internal/telemetry"
)

const shutdownGrace = 30 * time.Second

// Config carries the process-level settings, typically from CLI flags.
type Config struct {
	// Addr is the listen address for the HTTP transport.
	Addr string

	// ConfigPath points at a match config file; "-" reads stdin, empty
	// uses the compiled-in defaults.
	ConfigPath string

	// Users is the fixed roster; empty means an open roster.
	Users []string

	// SaveLog, when set, writes every log event to this file as JSONL.
	SaveLog string

	// SaveResults, when set, writes the final scores to this file.
	SaveResults string

	// ServeDir, when set, hosts static files at /.
	ServeDir string

	Logger telemetry.Logger
}

// Run plays one match from initialization to the final score snapshot.
// Under the competition platform a fatal error is reported through the
// summary file instead of being returned.
func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	if err := godotenv.Load(); err == nil {
		logger.Printf("loaded environment from .env")
	}

	hub, err := codehub.Detect()
	if err != nil {
		return err
	}
	if hub != nil {
		logger.Printf("detected competition platform, summary at %s", hub.SummaryPath)
	}

	if err := run(ctx, cfg, hub, logger); err != nil {
		if hub == nil {
			return err
		}
		logger.Printf("reporting fatal error to the platform: %v", err)
		if werr := hub.WriteErrors([]string{err.Error()}); werr != nil {
			return errors.Join(err, werr)
		}
		return nil
	}
	return nil
}

func run(ctx context.Context, cfg Config, hub *codehub.Config, logger telemetry.Logger) error {
	matchCfg := server.DefaultConfig()
	if cfg.ConfigPath != "" {
		var err error
		matchCfg, err = server.LoadConfig(cfg.ConfigPath)
		if err != nil {
			return err
		}
	}

	roster := cfg.Users
	saveLog := cfg.SaveLog
	serveDir := cfg.ServeDir
	enableLogs := true
	if hub != nil {
		roster = hub.Tokens()
		if hub.TimeToRun != nil {
			matchCfg.TimeToRun = hub.TimeToRun
		}
		saveLog = "game_log.jsonl"
		serveDir = ""
		enableLogs = false
	}

	engine := server.NewEngine(server.EngineConfig{
		Match:  matchCfg,
		Roster: roster,
		Logger: logger,
	})

	var (
		sink     *eventlog.JSONLSink
		sinkSub  *eventlog.Subscriber
		sinkDone chan struct{}
		logFile  *os.File
	)
	if saveLog != "" {
		file, err := os.Create(saveLog)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		logFile = file
		sink = eventlog.NewJSONLSink(file)
		if hub != nil {
			sink.Transform = hub.MapLogEntry
		}
		sinkSub = engine.Log().Subscribe()
		sinkDone = make(chan struct{})
		go func() {
			defer close(sinkDone)
			if err := sink.Drain(sinkSub); err != nil {
				logger.Printf("log sink error: %v", err)
			}
		}()
	}

	handler := servernet.NewHTTPHandler(engine, servernet.HTTPHandlerConfig{
		ServeDir:   serveDir,
		EnableLogs: enableLogs,
		Logger:     logger,
	})

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind server: %w", err)
	}
	logger.Printf("server listening on %s", listener.Addr())

	duration, hasDeadline := matchCfg.RunDuration()
	if err := serve(ctx, handler, listener, duration, hasDeadline, logger); err != nil {
		return err
	}

	if sinkSub != nil {
		engine.Log().Unsubscribe(sinkSub)
		<-sinkDone
		if err := sink.Close(); err != nil {
			logger.Printf("failed to flush game log: %v", err)
		}
		if err := logFile.Close(); err != nil {
			logger.Printf("failed to close game log: %v", err)
		}
	}

	results := engine.Snapshot()
	logger.Printf("results: %v", results)

	if cfg.SaveResults != "" {
		if err := writeResults(cfg.SaveResults, results); err != nil {
			return err
		}
	}
	if hub != nil {
		if err := hub.WriteGameLog(saveLog, hub.FromScores(results)); err != nil {
			return err
		}
	}
	return nil
}

// serve runs the transport and races it against the match deadline. The
// deadline (or an external cancellation) triggers a graceful stop: no new
// connections, in-flight requests run to completion. The transport
// finishing on its own is unexpected but non-fatal.
func serve(ctx context.Context, handler nethttp.Handler, listener net.Listener, duration time.Duration, hasDeadline bool, logger telemetry.Logger) error {
	srv := &nethttp.Server{Handler: handler}

	// In-flight collections already delay shutdown by their full wait;
	// idle keep-alive connections must not add to that.
	srv.SetKeepAlivesEnabled(false)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	var deadline <-chan time.Time
	if hasDeadline {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		deadline = timer.C
	} else {
		logger.Printf("no match duration configured, waiting for external shutdown")
	}

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		logger.Printf("server was shut down before the deadline was reached")
		return nil
	case <-deadline:
		logger.Printf("time is up, shutting down the server")
	case <-ctx.Done():
		logger.Printf("shutdown requested, stopping the server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Printf("server stopped")
	return nil
}

func writeResults(path string, results server.Results) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}
