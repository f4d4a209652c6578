package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/flarexio/ragblade"
	"github.com/flarexio/ragblade/embedding"
	"github.com/flarexio/ragblade/persistence"
	"github.com/flarexio/ragblade/vector"

	mcpE "github.com/flarexio/ragblade/mcp"
	httpT "github.com/flarexio/ragblade/transport/http"
	natsT "github.com/flarexio/ragblade/transport/nats"
)

func main() {
	cmd := &cli.Command{
		Name:  "ragblade",
		Usage: "RAGBlade retrieval-augmented question answering",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Path to the RAGBlade service",
			},
			&cli.BoolFlag{
				Name:  "log-production",
				Usage: "Use the production logger",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve queries over NATS and HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "nats",
						Usage:   "NATS server URL, empty to disable",
						Value:   "wss://nats.flarex.io",
						Sources: cli.EnvVars("NATS_URL"),
					},
					&cli.BoolFlag{
						Name:  "http",
						Usage: "Enable HTTP transport",
						Value: false,
					},
					&cli.StringFlag{
						Name:  "http-addr",
						Usage: "HTTP server address",
						Value: ":8080",
					},
					&cli.BoolFlag{
						Name:  "ingest",
						Usage: "Ingest the document root before serving",
					},
				},
				Action: serve,
			},
			{
				Name:  "ingest",
				Usage: "Read, chunk and index the document root",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "root",
						Usage: "Document root, overrides the configured one",
					},
					&cli.BoolFlag{
						Name:  "rebuild",
						Usage: "Drop and recreate the collection first",
					},
				},
				Action: ingest,
			},
			{
				Name:      "query",
				Usage:     "Answer a single question",
				ArgsUsage: "<question>",
				Action:    query,
			},
			{
				Name:   "stats",
				Usage:  "Describe the indexed collection",
				Action: stats,
			},
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

type app struct {
	path     string
	log      *zap.Logger
	registry *prometheus.Registry
	svc      ragblade.Service
}

func (a *app) Close() {
	if a.svc != nil {
		a.svc.Close()
	}

	a.log.Sync()
}

func setup(ctx context.Context, cmd *cli.Command) (*app, error) {
	path := cmd.String("path")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		path = filepath.Join(homeDir, ".flarex", "ragblade")
	}

	var log *zap.Logger
	var err error
	if cmd.Bool("log-production") {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(log)

	for _, env := range []string{filepath.Join(path, ".env"), ".env"} {
		if err := godotenv.Load(env); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("env file not loaded", zap.String("file", env), zap.Error(err))
		}
	}

	f, err := os.Open(filepath.Join(path, "config.yaml"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg ragblade.Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	if cfg.Documents != "" && !filepath.IsAbs(cfg.Documents) {
		cfg.Documents = filepath.Join(path, cfg.Documents)
	}

	if cfg.Vector.Path == "" {
		cfg.Vector.Path = filepath.Join(path, "vectors")
	}

	if cfg.Vector.DSN == "" {
		cfg.Vector.DSN = os.Getenv("RAGBLADE_PG_DSN")
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	db, err := persistence.New(ctx, cfg.Vector)
	if err != nil {
		return nil, err
	}

	store, err := vector.NewStore(ctx, db, cfg.Vector, embedder,
		vector.WithLogger(log),
	)
	if err != nil {
		db.Close()
		return nil, err
	}

	gen, err := ragblade.NewGenerator(cfg.Generator)
	if err != nil {
		store.Close()
		return nil, err
	}

	svc, err := ragblade.NewService(cfg, store, gen)
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc = ragblade.TracingMiddleware(otel.Tracer("github.com/flarexio/ragblade"))(svc)
	svc = ragblade.InstrumentingMiddleware(ragblade.NewMetrics(registry))(svc)
	svc = ragblade.LoggingMiddleware(log)(svc)

	log.Info("service ready",
		zap.String("path", path),
		zap.String("backend", string(cfg.Vector.Backend)),
		zap.String("collection", store.Name()),
		zap.String("embedding", embedder.Identity),
		zap.String("generator", string(cfg.Generator.Provider)),
	)

	return &app{
		path:     path,
		log:      log,
		registry: registry,
		svc:      svc,
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	log := a.log
	svc := a.svc

	if cmd.Bool("ingest") {
		if _, err := svc.Ingest(ctx, ragblade.IngestRequest{}); err != nil {
			return err
		}
	}

	endpoints := ragblade.MakeEndpoints(svc)

	// Add NATS Transport
	if natsURL := cmd.String("nats"); natsURL != "" {
		idBytes, err := os.ReadFile(filepath.Join(a.path, "id"))
		if err != nil {
			return err
		}

		edgeID := strings.TrimSpace(string(idBytes))

		nc, err := nats.Connect(natsURL,
			nats.Name("RAGBlade Server - "+edgeID),
			nats.UserCredentials(filepath.Join(a.path, "user.creds")),
		)

		if err != nil {
			return err
		}
		defer nc.Drain()

		srv, err := micro.AddService(nc, micro.Config{
			Name:    "ragblade",
			Version: "1.0.0",
		})

		if err != nil {
			return err
		}
		defer srv.Stop()

		topic := "edges." + edgeID + ".ragblade"

		root := srv.AddGroup(topic)
		natsT.AddEndpoints(root, *endpoints)

		log.Info("nats transport ready", zap.String("topic", topic))
	}

	if cmd.Bool("http") {
		r := gin.Default()
		httpT.AddRouters(r, *endpoints)
		httpT.AddMetricsRouter(r, a.registry)

		mcpEndpoints := make(map[mcp.MCPMethod]mcpE.MCPEndpoint)
		mcpEndpoints[mcp.MethodInitialize] = mcpE.InitializeEndpoint(svc)
		mcpEndpoints[mcp.MethodPing] = mcpE.PingEndpoint(svc)
		mcpEndpoints[mcp.MethodToolsList] = mcpE.ListToolsEndpoint(svc)
		mcpEndpoints[mcp.MethodToolsCall] = mcpE.CallToolEndpoint(svc)
		httpT.AddStreamableRouters(r, mcpEndpoints)

		httpSrv := &http.Server{
			Addr:    cmd.String("http-addr"),
			Handler: r,
		}

		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(err.Error())
			}
		}()

		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			httpSrv.Shutdown(ctx)
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sign := <-quit

	log.Info("graceful shutdown", zap.String("signal", sign.String()))
	return nil
}

func ingest(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.svc.Ingest(ctx, ragblade.IngestRequest{
		Root:    cmd.String("root"),
		Rebuild: cmd.Bool("rebuild"),
	})

	if report != nil {
		printJSON(report)
	}

	return err
}

func query(ctx context.Context, cmd *cli.Command) error {
	question := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return ragblade.ErrEmptyQuery
	}

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.svc.Query(ctx, ragblade.QueryRequest{Query: question})
	if err != nil {
		return err
	}

	fmt.Println(resp.Content)
	fmt.Printf("\nSource: %s (score %.3f)\n", resp.Source, resp.Score)

	if !resp.Success {
		return fmt.Errorf("generation failed: %s", resp.ErrorType)
	}

	return nil
}

func stats(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.svc.Stats(ctx)
	if err != nil {
		return err
	}

	printJSON(s)
	return nil
}

func printJSON(v any) {
	bs, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}

	fmt.Println(string(bs))
}
