// Command server runs the tiefsee DeepSeek MCP server.
//
// Configuration via config file (see pkg/config) or environment variables:
//
//	DEEPSEEK_API_KEY                  - API credential (required)
//	DEEPSEEK_BASE_URL                 - API base URL (default: https://api.deepseek.com)
//	DEEPSEEK_REQUEST_TIMEOUT_MS       - whole-call timeout in milliseconds (default: 120000)
//	DEEPSEEK_DEFAULT_MODEL            - default model (default: deepseek-chat)
//	DEEPSEEK_FALLBACK_MODEL           - reasoner fallback target (default: deepseek-chat)
//	DEEPSEEK_ENABLE_REASONER_FALLBACK - enable reasoner fallback (default: true)
//	MCP_TRANSPORT                     - "stdio" or "streamable-http" (default: stdio)
//	MCP_HTTP_HOST / MCP_HTTP_PORT / MCP_HTTP_PATH - streamable-http listener settings
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhenke/tiefsee/pkg/config"
	"github.com/rhenke/tiefsee/pkg/deepseek"
	"github.com/rhenke/tiefsee/pkg/mcpserver"
	"github.com/rhenke/tiefsee/pkg/observability"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	smoke := flag.Bool("smoke", false, "run a live GET /models smoke test and exit")
	flag.Parse()

	if err := run(*configPath, *smoke); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, smoke bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	client := deepseek.NewClient(deepseek.Config{
		APIKey:                 cfg.DeepSeek.APIKey,
		BaseURL:                cfg.DeepSeek.BaseURL,
		Timeout:                cfg.DeepSeek.Timeout,
		DefaultModel:           cfg.DeepSeek.DefaultModel,
		EnableReasonerFallback: cfg.DeepSeek.EnableReasonerFallback,
		FallbackModel:          cfg.DeepSeek.FallbackModel,
	})
	defer client.Close()

	if smoke {
		return runSmoke(client)
	}

	server := mcpserver.New(client)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cfg.Server.Transport {
	case "streamable-http":
		return runStreamableHTTP(ctx, server, cfg)
	default:
		slog.Info("server starting", "transport", "stdio", "model", cfg.DeepSeek.DefaultModel)
		return server.Run(ctx, &mcp.StdioTransport{})
	}
}

// runStreamableHTTP serves the MCP server over the streamable HTTP
// transport, alongside a health endpoint and (optionally) Prometheus
// metrics.
func runStreamableHTTP(ctx context.Context, server *mcp.Server, cfg *config.Config) error {
	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, nil)

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.HTTPPath, observability.MetricsMiddleware(handler))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	if cfg.Observability.Metrics.Enabled {
		mux.Handle(cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	addr := cfg.Server.HTTPHost + ":" + strconv.Itoa(cfg.Server.HTTPPort)
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "transport", "streamable-http", "addr", addr, "path", cfg.Server.HTTPPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runSmoke performs a live /models call and prints the available model ids.
func runSmoke(client *deepseek.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	raw, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("smoke test failed: %w", err)
	}

	var models struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &models); err != nil {
		return fmt.Errorf("smoke test failed: parsing models response: %w", err)
	}

	fmt.Println("Smoke test OK. Available models:")
	for _, m := range models.Data {
		if m.ID != "" {
			fmt.Println("- " + m.ID)
		}
	}
	return nil
}
