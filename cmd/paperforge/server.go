package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/paperforge/paperforge/internal/api"
	"github.com/paperforge/paperforge/internal/config"
	"github.com/paperforge/paperforge/internal/genai"
	"github.com/paperforge/paperforge/internal/graph"
	"github.com/paperforge/paperforge/internal/pipeline"
	"github.com/paperforge/paperforge/internal/vector"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the paperforge server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running paperforge server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show paperforge system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "paperforge.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "paperforge version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, _ := cfg.SlogLevel() // validated by Load
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("paperforge is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("paperforge is already running on port %d", cfg.Port)
		return fmt.Errorf("server already running on port %d", cfg.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the graph store. Fall back to in-memory storage when the data
	// directory is unusable so the server still comes up, without persistence.
	store, err := graph.Open(cfg.DataDir)
	var graphStore graph.Store = store
	if err != nil {
		slog.Warn("opening graph store failed, falling back to in-memory storage", "data_dir", cfg.DataDir, "error", err)
		graphStore = graph.NewMemoryStore()
	}
	defer func() {
		if err := graphStore.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing graph store: %v\n", err)
		}
	}()

	graphSvc := graph.NewService(graphStore)

	// Build the extraction pipeline and semantic layer.
	gen := genai.New(cfg.APIKey)
	if gen.Configured() {
		slog.Info("generative backend configured", "model", cfg.GenModel, "embed_model", cfg.EmbedModel)
	} else {
		slog.Warn("no API key set, extraction runs in mock mode and semantic search is disabled")
	}
	embedder := vector.NewEmbedder(gen, cfg.EmbedModel)
	engine := vector.NewEngine(graphSvc, embedder)
	orch := pipeline.New(
		graphSvc,
		pipeline.NewExtractor(gen, cfg.GenModel),
		pipeline.NewExplainer(gen, cfg.GenModel),
		pipeline.NewQuizzer(gen, cfg.GenModel),
		pipeline.NewLog(),
		slog.Default(),
	)

	handler := api.NewHandler(api.Deps{
		Graph:        graphSvc,
		Vector:       engine,
		Orchestrator: orch,
		Token:        cfg.AuthToken,
		Logger:       slog.Default(),
	})
	if cfg.AuthToken == "" {
		slog.Warn("PAPERFORGE_AUTH_TOKEN not set, API is unauthenticated")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Graph:        graphSvc,
		Vector:       engine,
		Orchestrator: orch,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "paperforge listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("paperforge is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop paperforge (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to paperforge (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printField("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printField("Server", "running on port %d", cfg.Port)
		} else {
			printField("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if cfg.APIKey == "" {
		printField("Extraction", "mock mode (no API key)")
	} else {
		printField("Extraction", "enabled")
	}
	printField("Gen model", "%s", cfg.GenModel)
	printField("Embed model", "%s", cfg.EmbedModel)

	// Show graph size if the server is up.
	if running {
		statsResp, err := apiGet(client, serverURL+"/graph/stats", cfg.AuthToken)
		if err == nil {
			var stats graph.Stats
			if json.NewDecoder(statsResp.Body).Decode(&stats) == nil {
				printField("Concepts", "%d", stats.TotalConcepts)
				printField("Relations", "%d", stats.TotalRelations)
			}
			statsResp.Body.Close()
		}
	}

	printField("Data dir", "%s", cfg.DataDir)
	return nil
}

func apiGet(client *http.Client, url, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return client.Do(req)
}
