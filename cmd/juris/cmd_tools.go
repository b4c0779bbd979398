// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

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

	"github.com/AleutianAI/Juris/services/orchestrator/tools"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

// version is reported to MCP clients.
var version = "0.1.0"

func runToolsServe(cmd *cobra.Command, args []string) error {
	// Logs go to stderr, so stdout stays free for the stdio transport.
	logger := setupLogging(logLevel, "text", "")
	defer logger.Close()

	mcpServer := tools.NewMCPServer(tools.NewDirectory(), version)

	if toolsHTTPAddr == "" {
		slog.Info("Serving MCP tools on stdio")
		return server.ServeStdio(mcpServer)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := server.NewStreamableHTTPServer(mcpServer)
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Serving MCP tools over streamable HTTP", "addr", toolsHTTPAddr)
		serverErr <- httpServer.Start(toolsHTTPAddr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	}
}
