package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"persai/internal/agent"
	"persai/internal/auth"
	"persai/internal/config"
	"persai/internal/server"
	"persai/internal/tools"
	"persai/pkg/logging"
)

// serveConfigPath specifies a custom configuration directory path.
var serveConfigPath string

// serveMCPAddr enables the standalone MCP tool server on the given address.
var serveMCPAddr string

// serveMCPPrometheusURL is the fixed Prometheus endpoint the standalone MCP
// tools query.
var serveMCPPrometheusURL string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the persai backend server",
	Long: `Starts the persai HTTP API: session management, turn streaming, health
and metrics endpoints.

Configuration is read from config.yaml in the configuration directory
(default: ~/.config/persai) with PERSAI_* environment variables layered on
top. The file is watched and agent/server settings reload on change.

With --mcp-addr the same Prometheus tools the agent uses are additionally
exposed as an MCP server over streamable HTTP, so external MCP clients can
drive them directly. That mode queries a fixed endpoint (--mcp-prometheus-url)
without per-request credentials.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath := serveConfigPath
	if configPath == "" {
		var err error
		configPath, err = config.DefaultConfigPath()
		if err != nil {
			return err
		}
	}

	// The agent does not exist yet when the manager is built; the watcher
	// only starts below, after agentClient is assigned.
	var agentClient *agent.Agent
	manager, err := config.NewManager(configPath, func(c config.Config) {
		logging.Info("Serve", "Configuration change applied")
		if err := agentClient.Reconfigure(c.Agent); err != nil {
			logging.Error("Serve", err, "Reloaded agent configuration rejected, keeping previous")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg := manager.Get()

	refresher := auth.NewRefresher(nil)
	validator := auth.NewTokenValidator(refresher, auth.NewValidatorMetrics(prometheus.DefaultRegisterer))
	provider := tools.NewProvider(refresher)

	agentClient, err = agent.New(cfg.Agent, provider.Tools(), nil)
	if err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}

	if err := manager.Start(); err != nil {
		return err
	}
	defer manager.Stop()

	httpServer := server.New(manager, agentClient, validator, server.NewMetrics(prometheus.DefaultRegisterer))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return httpServer.Run(ctx)
	})

	if serveMCPAddr != "" {
		group.Go(func() error {
			return runToolServer(ctx, provider)
		})
	}

	return group.Wait()
}

// runToolServer serves the Prometheus tools over MCP streamable HTTP until
// ctx is cancelled.
func runToolServer(ctx context.Context, provider *tools.Provider) error {
	if serveMCPPrometheusURL == "" {
		return fmt.Errorf("--mcp-addr requires --mcp-prometheus-url")
	}

	mcpSrv := mcpserver.NewMCPServer(
		"persai-tools",
		rootCmd.Version,
		mcpserver.WithToolCapabilities(true),
	)
	mcpSrv.AddTools(provider.StandaloneTools(serveMCPPrometheusURL)...)

	streamableServer := mcpserver.NewStreamableHTTPServer(mcpSrv)

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Serve", "MCP tool server listening on %s", serveMCPAddr)
		errCh <- streamableServer.Start(serveMCPAddr)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("Serve", "Shutting down MCP tool server")
	return streamableServer.Shutdown(context.Background())
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Custom configuration directory path")
	serveCmd.Flags().StringVar(&serveMCPAddr, "mcp-addr", "", "Also serve the Prometheus tools over MCP on this address (e.g. localhost:8090)")
	serveCmd.Flags().StringVar(&serveMCPPrometheusURL, "mcp-prometheus-url", "", "Prometheus API endpoint for the standalone MCP tools")
}
