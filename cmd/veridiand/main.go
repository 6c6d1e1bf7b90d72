// Command veridiand is the node daemon: it loads a NodeConfig, opens the
// configured storage backends, joins (or starts) the gossip cluster, and
// wires the actor runtime, semantic pipeline registry, extraction engine,
// and discovery session table behind an internal/service.Facade, exactly
// the way cmd/substrated wires its own subsystems.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/btcsuite/btclog/v2"
	"github.com/google/uuid"

	"github.com/latticeforge/veridian/internal/baselib/actor"
	"github.com/latticeforge/veridian/internal/build"
	"github.com/latticeforge/veridian/internal/cluster"
	"github.com/latticeforge/veridian/internal/config"
	"github.com/latticeforge/veridian/internal/discovery"
	"github.com/latticeforge/veridian/internal/engine"
	"github.com/latticeforge/veridian/internal/llm"
	"github.com/latticeforge/veridian/internal/metrics"
	"github.com/latticeforge/veridian/internal/pipeline"
	"github.com/latticeforge/veridian/internal/service"
	"github.com/latticeforge/veridian/internal/source/fsSource"
	"github.com/latticeforge/veridian/internal/storage"
	"github.com/latticeforge/veridian/internal/storage/metastore"
	"github.com/latticeforge/veridian/internal/storage/pgvectorstore"
)

func main() {
	var (
		configPath  = flag.String("config", "veridian.yaml", "Path to node config YAML file")
		logDir      = flag.String("log-dir", "", "Directory for log files (empty disables file logging)")
		maxLogFiles = flag.Int("max-log-files", build.DefaultMaxLogFiles, "Maximum number of rotated log files to keep")
		maxLogSize  = flag.Int("max-log-file-size", build.DefaultMaxLogFileSize, "Maximum log file size in MB before rotation")
		metricsAddr = flag.String("metrics-addr", ":9090", "Address to serve Prometheus /metrics on (empty disables it)")
	)
	flag.Parse()

	log.Printf("veridiand version %s", build.FullVersion())

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	var logRotator *build.RotatingLogWriter
	if *logDir != "" {
		logRotator = build.NewRotatingLogWriter()
		if err := logRotator.InitLogRotator(&build.LogRotatorConfig{
			LogDir:         *logDir,
			MaxLogFiles:    *maxLogFiles,
			MaxLogFileSize: *maxLogSize,
		}); err != nil {
			log.Printf("failed to init log rotator: %v (continuing without file logging)", err)
			logRotator = nil
		} else {
			defer logRotator.Close()
		}
	}

	var handlers []btclog.Handler
	handlers = append(handlers, btclog.NewDefaultHandler(os.Stderr))
	if logRotator != nil {
		handlers = append(handlers, btclog.NewDefaultHandler(logRotator))
	}
	combined := build.NewHandlerSet(handlers...)
	rootLogger := btclog.NewSLogger(combined)

	actor.UseLogger(rootLogger.WithPrefix("ACTR"))
	cluster.UseLogger(rootLogger.WithPrefix("CLUS"))
	pipeline.UseLogger(rootLogger.WithPrefix("PIPE"))
	engine.UseLogger(rootLogger.WithPrefix("ENGN"))
	discovery.UseLogger(rootLogger.WithPrefix("DISC"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received %v, shutting down (send again to force exit)", sig)
		cancel()

		sig = <-sigCh
		log.Printf("received %v again, forcing immediate exit", sig)
		os.Exit(1)
	}()

	actorSystem := actor.NewActorSystem()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := actorSystem.Shutdown(shutdownCtx); err != nil {
			log.Printf("actor system shutdown incomplete: %v", err)
		}
	}()

	metaStore, err := metastore.Open(metastore.Config{DataDir: cfg.DataDir}, slog.Default())
	if err != nil {
		log.Fatalf("failed to open metadata store: %v", err)
	}
	defer metaStore.Close()

	if cfg.NodeID == "" {
		if persisted, found, err := metaStore.Get(ctx, "node", metastore.NodeIDKey); err == nil && found {
			cfg.NodeID = string(persisted)
		} else {
			cfg.NodeID = uuid.NewString()
			if err := metaStore.Set(ctx, "node", metastore.NodeIDKey, []byte(cfg.NodeID)); err != nil {
				log.Printf("failed to persist generated node id: %v", err)
			}
		}
	}

	bindHost, bindPortStr, err := net.SplitHostPort(cfg.ListenAddress)
	if err != nil {
		log.Fatalf("invalid listen_address %q: %v", cfg.ListenAddress, err)
	}
	bindPort, err := strconv.Atoi(bindPortStr)
	if err != nil {
		log.Fatalf("invalid listen_address port %q: %v", cfg.ListenAddress, err)
	}

	registry, err := cluster.NewRegistry(cluster.RegistryConfig{
		NodeID:            cfg.NodeID,
		GenerationID:      uint64(time.Now().UnixNano()),
		BindAddr:          bindHost,
		BindPort:          bindPort,
		GRPCAdvertiseAddr: fmt.Sprintf("%s:%d", bindHost, cfg.GRPCPort),
	})
	if err != nil {
		log.Fatalf("failed to start cluster registry: %v", err)
	}
	metricsPublisher := cluster.NewMetricsPublisher(registry)

	var store storage.Storage
	for _, backend := range cfg.StorageBackends {
		if backend != config.StorageBackendPgvector {
			continue
		}
		pgStore, err := pgvectorstore.Open(ctx, pgvectorstore.Config{
			DSN: cfg.PostgresDSN,
		}, slog.Default())
		if err != nil {
			log.Fatalf("failed to open pgvector store: %v", err)
		}
		store = pgStore
	}

	model := llm.NewFixtureModel(512, 128, nil)

	ingestSource := fsSource.New(fsSource.Config{RootDir: cfg.DataDir + "/ingest"})
	extractor := engine.NewEngine(model, nil, engine.Config{})

	clock := actor.NewRealClock()
	pipelines := pipeline.NewSemanticService(clock, metricsPublisher)
	sessions := discovery.NewSessionTable(store, model)
	facade := service.NewFacade(pipelines, sessions)

	go pipelines.RunHeartbeatLoop(ctx, cfg.Heartbeat)

	if store != nil {
		if _, err := facade.StartPipeline(ctx, "default", pipeline.PipelineSettings{
			CollectionID: cfg.ClusterID,
			Source:       ingestSource,
			Model:        model,
			Extractor:    extractor,
			Storage:      store,
			BatchSize:    32,
		}); err != nil {
			log.Printf("failed to start default pipeline: %v", err)
		}
	} else {
		log.Printf("no pgvector storage backend configured, skipping default pipeline start-up")
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server error: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	log.Printf("veridiand node %s listening on %s (cluster %s)", cfg.NodeID, cfg.ListenAddress, cfg.ClusterID)

	<-ctx.Done()
	log.Println("veridiand shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if n := pipelines.ShutdownAll(shutdownCtx); n > 0 {
		log.Printf("broadcast shutdown to %d running pipeline(s)", n)
	}
}
