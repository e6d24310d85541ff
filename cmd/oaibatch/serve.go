package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalenz/oaibatch/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and MCP server (foreground)",
	Long: `Run the HTTP API and MCP server in the foreground.

The HTTP API binds to 127.0.0.1 and exposes the batch lifecycle as
REST endpoints. The MCP server speaks stdio, so agents can submit and
poll batch jobs as tools.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		debug, _ := cmd.Flags().GetBool("debug")
		return runServe(port, debug)
	},
}

func init() {
	serveCmd.Flags().Int("port", 8788, "port for the HTTP API")
	serveCmd.Flags().Bool("debug", false, "enable debug logging")
}

func runServe(port int, debug bool) error {
	fmt.Fprintf(os.Stderr, "oaibatch version %s\n", version)

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	mgr, cfg, err := newManager()
	if err != nil {
		return err
	}

	handler := api.NewHandler(api.Deps{Manager: mgr})
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Manager:                mgr,
		DefaultModel:           cfg.Model,
		DefaultMaxOutputTokens: cfg.MaxOutputTokens,
		DefaultReasoningEffort: cfg.ReasoningEffort,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP API listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		stdioSrv := server.NewStdioServer(mcpSrv)
		slog.Info("MCP server started (stdio transport)")
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
