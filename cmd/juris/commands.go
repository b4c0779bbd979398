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
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/Juris/pkg/logging"
	"github.com/AleutianAI/Juris/services/orchestrator/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	threadID     string
	jurisdiction string
	jsonOutput   bool

	toolsHTTPAddr string

	rootCmd = &cobra.Command{
		Use:           "juris",
		Short:         "Conversational legal information for Canadian tenancy, family and employment questions",
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe, // Defined in cmd_serve.go
	}

	chatCmd = &cobra.Command{
		Use:   "chat [message]",
		Short: "Run one conversation turn from the terminal",
		Long: `Runs a single turn through the router, research and response nodes
and prints the reply. Reuse --thread to continue a conversation.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runChat, // Defined in cmd_chat.go
	}

	toolsCmd = &cobra.Command{
		Use:   "tools",
		Short: "Form and referral tools",
	}
	toolsServeCmd = &cobra.Command{
		Use:   "serve",
		Short: "Expose the form and referral directory as an MCP server",
		Args:  cobra.NoArgs,
		RunE:  runToolsServe, // Defined in cmd_tools.go
	}

	schemaCmd = &cobra.Command{
		Use:   "schema",
		Short: "Manage the search backend schema",
	}
	schemaSyncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Create the LegalDocument class in Weaviate if it is missing",
		Args:  cobra.NoArgs,
		RunE:  runSchemaSync, // Defined in cmd_schema.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	chatCmd.Flags().StringVar(&threadID, "thread", "", "thread id to continue (default: a new thread)")
	chatCmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "explicit jurisdiction: ON, BC or AB")
	chatCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the raw chat response as JSON")

	toolsServeCmd.Flags().StringVar(&toolsHTTPAddr, "http", "", "serve streamable HTTP on this address instead of stdio")

	toolsCmd.AddCommand(toolsServeCmd)
	schemaCmd.AddCommand(schemaSyncCmd)
	rootCmd.AddCommand(serveCmd, chatCmd, toolsCmd, schemaCmd)
}

// loadConfig reads the configuration and installs the default logger.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger := setupLogging(cfg.Log.Level, cfg.Log.Format, cfg.Log.Dir)
	return cfg, func() { _ = logger.Close() }, nil
}

func setupLogging(level, format, dir string) *logging.Logger {
	lvl, ok := logging.ParseLevel(level)
	logger := logging.New(logging.Config{
		Level:   lvl,
		JSON:    strings.EqualFold(format, "json"),
		LogDir:  dir,
		Service: "juris",
	})
	slog.SetDefault(logger.Slog())
	if !ok && level != "" {
		slog.Warn("Unknown log level, using info", "level", level)
	}
	return logger
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
