/*
Copyright 2024 serialmux Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package cmd provides the CLI commands for serialmux using Cobra.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/serialmux/serialmux/config"
	"github.com/serialmux/serialmux/internal/api"
	"github.com/serialmux/serialmux/internal/serial"
)

var (
	// Version is the application version (set at build time).
	Version = "dev"
	// Commit is the git commit (set at build time).
	Commit = "none"
	// BuildDate is the build date (set at build time).
	BuildDate = "unknown"

	cfgFile string
	verbose bool
	mock    bool
)

// rootCmd starts the multiplexer server. Invocation matches spec.md §6:
// `serialmux [config.yaml]`, defaulting to config.yaml.
var rootCmd = &cobra.Command{
	Use:   "serialmux [config.yaml]",
	Short: "serialmux - serial port multiplexer",
	Long: `serialmux owns a set of serial ports and exposes each one to many
network clients at once: a broadcast of received bytes, a bounded mailbox
for writes, a per-port audit log, and a small HTTP control API.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (overrides the positional argument)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&mock, "mock", false, "back every enabled connection with an in-process mock device instead of real hardware")
}

func configPath(args []string) string {
	if cfgFile != "" {
		return cfgFile
	}
	if len(args) > 0 {
		return args[0]
	}
	return "config.yaml"
}

func initLogger() *charmlog.Logger {
	logger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	if verbose {
		logger.SetLevel(charmlog.DebugLevel)
	}
	return logger
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := initLogger()

	path := configPath(args)
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opener := serial.OpenRealPort
	if mock {
		opener = func(serial.PortConfig) (serial.Porter, error) {
			return serial.NewMockPort(serial.DeviceIoTSensor), nil
		}
	}

	registry := serial.NewRegistry(opener, logger)
	for _, conn := range cfg.SerialConnections {
		pc, err := conn.ToPortConfig()
		if err != nil {
			return fmt.Errorf("connection %q: %w", conn.Name, err)
		}
		if err := registry.Add(pc); err != nil {
			logger.Error("failed to open connection", "name", conn.Name, "err", err)
			continue
		}
		if pc.Enabled {
			logger.Info("connection open", "name", conn.Name, "port", pc.DevicePath)
		}
	}

	srv := api.NewServer(registry, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		logger.Info("routes",
			"endpoints", "GET /health, GET /api/connections, GET /api/connections/{name}, "+
				"POST /api/connections/{name}/send, GET /api/connections/{name}/stats, "+
				"GET /api/connections/{name}/ws")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		registry.Shutdown()
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}

	registry.Shutdown()
	logger.Info("shutdown complete")
	return nil
}
