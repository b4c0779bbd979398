// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator assembles the Juris conversational backend.
//
// New reads a validated config.Config and wires every collaborator of a
// turn: the LLM backend behind a shared rate limiter, the embedder and
// search backend, the form/referral tools, the badger-backed state store,
// the account service and the orchestration graph. The resulting Service
// exposes the gin engine for tests and the graph for in-process callers
// such as the CLI.
//
// # Usage
//
//	cfg, err := config.Load("juris.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := orchestrator.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Shutdown(context.Background())
//	log.Fatal(svc.Run())
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/AleutianAI/Juris/pkg/extensions"
	"github.com/AleutianAI/Juris/services/llm"
	"github.com/AleutianAI/Juris/services/orchestrator/auth"
	"github.com/AleutianAI/Juris/services/orchestrator/config"
	"github.com/AleutianAI/Juris/services/orchestrator/graph"
	"github.com/AleutianAI/Juris/services/orchestrator/handlers"
	"github.com/AleutianAI/Juris/services/orchestrator/middleware"
	"github.com/AleutianAI/Juris/services/orchestrator/observability"
	"github.com/AleutianAI/Juris/services/orchestrator/research"
	"github.com/AleutianAI/Juris/services/orchestrator/responder"
	"github.com/AleutianAI/Juris/services/orchestrator/routes"
	"github.com/AleutianAI/Juris/services/orchestrator/routing"
	"github.com/AleutianAI/Juris/services/orchestrator/search"
	"github.com/AleutianAI/Juris/services/orchestrator/statestore"
	"github.com/AleutianAI/Juris/services/orchestrator/storage/kv"
	"github.com/AleutianAI/Juris/services/orchestrator/tools"
	"github.com/AleutianAI/Juris/services/policy_engine"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ServiceName is reported to the tracer and the otelgin middleware.
const ServiceName = "juris-orchestrator"

// Service defines the lifecycle of the orchestrator.
//
// # Thread Safety
//
// Router and Graph are safe to use concurrently after New returns. Run
// blocks and should be called at most once; Shutdown may be called from
// another goroutine to stop it.
type Service interface {
	// Run serves HTTP on the configured port until Shutdown is called or
	// the listener fails. A clean shutdown returns nil.
	Run() error

	// Router returns the configured gin engine.
	Router() *gin.Engine

	// Graph returns the orchestration graph for in-process turns.
	Graph() *graph.Graph

	// Shutdown stops the HTTP server and releases the store, the MCP
	// connection and the tracer.
	Shutdown(ctx context.Context) error
}

type service struct {
	cfg    *config.Config
	opts   extensions.ServiceOptions
	router *gin.Engine
	server *http.Server
	graph  *graph.Graph

	db        *kv.DB
	closers   []func() error
	shutdowns []func(context.Context) error
}

// New wires a Service from cfg.
//
// # Description
//
// cfg is validated first, so a misconfigured backend fails here with a
// *config.ConfigurationError rather than on the first turn. Tracing is
// enabled only when telemetry.otlp_endpoint is set. opts may be nil; an
// AuthProvider or MessageFilter it carries replaces the built-in account
// service or policy-engine redaction respectively.
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Configuration errors or failures opening the store, the search
//     backend or the tool client. Anything already opened is released.
func New(cfg *config.Config, opts *extensions.ServiceOptions) (Service, error) {
	if cfg == nil {
		return nil, &config.ConfigurationError{Key: "config", Reason: "nil configuration"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &service{cfg: cfg}
	if opts != nil {
		s.opts = *opts
	}
	if err := s.init(); err != nil {
		_ = s.Shutdown(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *service) init() error {
	if s.cfg.Telemetry.OTLPEndpoint != "" {
		shutdown, err := initTracer(s.cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("initialize tracer: %w", err)
		}
		s.shutdowns = append(s.shutdowns, shutdown)
	}

	var metrics *observability.Metrics
	var gatherer prometheus.Gatherer
	if s.cfg.Telemetry.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(reg)
		gatherer = reg
	}

	dbCfg := kv.DefaultConfig(s.cfg.State.Path)
	if s.cfg.State.InMemory {
		dbCfg = kv.InMemoryConfig()
	}
	db, err := kv.Open(dbCfg)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	s.db = db

	client, embedder, err := NewLLM(s.cfg)
	if err != nil {
		return err
	}
	limited := llm.NewRateLimitedClient(client, s.cfg.LLM.RateLimit, s.cfg.LLM.Burst, s.cfg.LLM.Timeout)

	cached, err := search.NewCachedEmbedder(embedder, s.cfg.Embedding.CacheSize)
	if err != nil {
		return err
	}
	if metrics != nil {
		cached.OnHit = metrics.RecordCacheHit
	}

	searcher, err := NewSearcher(s.cfg, cached)
	if err != nil {
		return err
	}

	finder, err := s.newFinder()
	if err != nil {
		return err
	}

	filter := s.opts.MessageFilter
	if filter == nil && s.cfg.Policy.Redact {
		engine, err := policy_engine.NewPolicyEngine()
		if err != nil {
			return fmt.Errorf("initialize policy engine: %w", err)
		}
		filter = engine
	}

	store := statestore.NewBadgerStore(db, s.cfg.State.Timeout)
	locks := statestore.NewKeyedLocker()
	metrics.ObserveLockedThreads(locks.Len)

	router := routing.New(limited, routing.WithMetrics(metrics))
	dispatcher := research.NewDispatcher(searcher, finder, finder, research.Config{
		TopK:          s.cfg.Search.TopK,
		ExcerptChars:  s.cfg.Search.ExcerptChars,
		SearchTimeout: s.cfg.Search.Timeout,
		ToolTimeout:   s.cfg.Tools.Timeout,
	}, metrics)
	generator := responder.New(limited, metrics).
		WithParams(llm.GenerationParams{Temperature: llm.Float32(s.cfg.LLM.Temperature)})

	graphOpts := []graph.Option{graph.WithMetrics(metrics), graph.WithLocker(locks)}
	if filter != nil {
		graphOpts = append(graphOpts, graph.WithFilter(filter))
	}
	s.graph = graph.New(store, router, dispatcher, generator, graphOpts...)

	var accounts *auth.Service
	provider := s.opts.AuthProvider
	if provider == nil {
		accounts = auth.NewService(db, s.cfg.Auth.SessionTTL)
	}

	if s.cfg.Server.GinMode != "" {
		gin.SetMode(s.cfg.Server.GinMode)
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery(), middleware.RequestLogger(), otelgin.Middleware(ServiceName))
	routes.SetupRoutes(s.router, routes.Deps{
		Runner:       s.graph,
		Store:        store,
		Locks:        locks,
		AuthProvider: provider,
		Accounts:     accounts,
		Cookies:      handlers.CookieConfig{Secure: s.cfg.Auth.CookieSecure, MaxAge: s.cfg.Auth.SessionTTL},
		Metrics:      metrics,
		Gatherer:     gatherer,
		CORSOrigins:  s.cfg.Server.CORSOrigins,
	})
	s.server = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Orchestrator initialized",
		"llm_backend", s.cfg.LLM.Backend,
		"search_backend", s.cfg.Search.Backend,
		"tools_backend", s.cfg.Tools.Backend,
		"in_memory_state", s.cfg.State.InMemory,
		"redaction", filter != nil,
		"tracing", s.cfg.Telemetry.OTLPEndpoint != "")
	return nil
}

// NewLLM builds the generation client and the embedder for cfg. Anthropic
// has no embeddings API, so that backend embeds through OpenAI and needs
// an OpenAI key as well.
func NewLLM(cfg *config.Config) (llm.LLMClient, llm.Embedder, error) {
	switch cfg.LLM.Backend {
	case config.BackendOpenAI:
		c, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:         cfg.LLM.APIKey,
			Model:          cfg.LLM.Model,
			BaseURL:        cfg.LLM.BaseURL,
			EmbeddingModel: cfg.Embedding.Model,
			Timeout:        cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("initialize openai client: %w", err)
		}
		return c, c, nil
	case config.BackendAnthropic:
		c, err := llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
			Timeout: cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("initialize anthropic client: %w", err)
		}
		key := llm.ResolveSecret(os.Getenv("OPENAI_API_KEY"), "openai_api_key")
		if key == "" {
			return nil, nil, &config.ConfigurationError{Key: "embedding", Reason: "the anthropic backend embeds through OpenAI; set OPENAI_API_KEY"}
		}
		e, err := llm.NewOpenAIClient(llm.OpenAIConfig{APIKey: key, EmbeddingModel: cfg.Embedding.Model, Timeout: cfg.LLM.Timeout})
		if err != nil {
			return nil, nil, fmt.Errorf("initialize openai embedder: %w", err)
		}
		return c, e, nil
	case config.BackendOllama:
		c, err := llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			EmbeddingModel: cfg.Embedding.Model,
			Timeout:        cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("initialize ollama client: %w", err)
		}
		return c, c, nil
	default:
		return nil, nil, &config.ConfigurationError{Key: "llm.backend", Reason: fmt.Sprintf("unknown backend %q", cfg.LLM.Backend)}
	}
}

// NewSearcher opens the configured search backend.
func NewSearcher(cfg *config.Config, embedder llm.Embedder) (search.Searcher, error) {
	switch cfg.Search.Backend {
	case config.SearchWeaviate:
		w, err := search.NewWeaviateSearcher(search.WeaviateConfig{
			URL:       cfg.Search.WeaviateURL,
			APIKey:    cfg.Search.WeaviateAPIKey,
			ClassName: cfg.Search.Class,
		}, embedder)
		if err != nil {
			return nil, fmt.Errorf("initialize weaviate searcher: %w", err)
		}
		return w, nil
	case config.SearchChromem:
		c, err := search.NewChromemSearcher(search.ChromemConfig{
			Path:       cfg.Search.ChromemPath,
			Collection: cfg.Search.Class,
		}, embedder)
		if err != nil {
			return nil, fmt.Errorf("initialize chromem searcher: %w", err)
		}
		return c, nil
	default:
		return nil, &config.ConfigurationError{Key: "search.backend", Reason: fmt.Sprintf("unknown backend %q", cfg.Search.Backend)}
	}
}

func (s *service) newFinder() (tools.Finder, error) {
	if s.cfg.Tools.Backend != config.ToolsMCP {
		return tools.NewDirectory(), nil
	}
	c, err := tools.NewMCPClient(s.cfg.Tools.MCPURL)
	if err != nil {
		return nil, fmt.Errorf("initialize mcp tools client: %w", err)
	}
	s.closers = append(s.closers, c.Close)
	return c, nil
}

// initTracer exports spans over OTLP gRPC to endpoint and installs the
// provider globally. The returned function flushes and stops it.
func initTracer(endpoint string) (func(context.Context) error, error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(ServiceName)))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter))

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		err := provider.Shutdown(ctx)
		return errors.Join(err, conn.Close())
	}, nil
}

func (s *service) Run() error {
	slog.Info("Starting orchestrator server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", s.server.Addr, err)
	}
	return nil
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) Graph() *graph.Graph {
	return s.graph
}

func (s *service) Shutdown(ctx context.Context) error {
	var errs []error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
		}
	}
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close state store: %w", err))
		}
		s.db = nil
	}
	for _, shutdown := range s.shutdowns {
		if err := shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}
	s.shutdowns = nil
	return errors.Join(errs...)
}

var _ Service = (*service)(nil)
