// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/conductor-googleforms/internal/commands/shared"
	"github.com/tombee/conductor-googleforms/internal/mcp/server"
)

// NewCommand creates the mcp command
func NewCommand() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:     "mcp",
		Aliases: []string{"mcp-server"},
		Short:   "Serve the Google Forms operations as MCP tools",
		Long: `Start an MCP (Model Context Protocol) server over stdio that exposes every
Google Forms operation as a tool, plus googleforms_describe.

Each tool call runs one item through the node and returns its record as JSON.
Credentials are taken from the configuration file, environment variables or
the keychain, exactly as for 'run'.

Configuration example for an MCP client:
  {
    "mcpServers": {
      "googleforms": {
        "command": "conductor-googleforms",
        "args": ["mcp"]
      }
    }
  }

With --metrics-addr, request metrics are served in Prometheus format at
http://<addr>/metrics while the server runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPServer(cmd, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")

	return cmd
}

func runMCPServer(cmd *cobra.Command, metricsAddr string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := shared.NewRuntime(ctx, shared.RuntimeOptions{
		ConfigPath: shared.GetConfigPath(),
		Stderr:     cmd.ErrOrStderr(),
		Verbose:    shared.GetVerbose(),
	})
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	versionStr, _, _ := shared.GetVersion()
	srv, err := server.NewServer(server.ServerConfig{
		Version:  versionStr,
		Logger:   rt.Logger,
		Registry: rt.Registry,
	})
	if err != nil {
		return shared.NewExecutionError("failed to create MCP server", err)
	}

	if metricsAddr != "" {
		metrics, err := startMetricsServer(metricsAddr, rt.Provider.MetricsHandler(), rt.Logger)
		if err != nil {
			return shared.NewConfigError("failed to start metrics server", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metrics.Shutdown(shutdownCtx)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return shared.NewExecutionError("MCP server stopped", err)
		}
		return nil
	case <-ctx.Done():
		rt.Logger.Info("received shutdown signal")
		return nil
	}
}

// startMetricsServer serves handler at /metrics on addr until shut down.
func startMetricsServer(addr string, handler http.Handler, logger *slog.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))
	return srv, nil
}
