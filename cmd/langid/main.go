package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cisco7507/LangId-mr/pkg/api"
	"github.com/cisco7507/LangId-mr/pkg/asr"
	"github.com/cisco7507/LangId-mr/pkg/audio"
	"github.com/cisco7507/LangId-mr/pkg/cluster"
	"github.com/cisco7507/LangId-mr/pkg/config"
	"github.com/cisco7507/LangId-mr/pkg/gate"
	"github.com/cisco7507/LangId-mr/pkg/log"
	"github.com/cisco7507/LangId-mr/pkg/metrics"
	"github.com/cisco7507/LangId-mr/pkg/storage"
	"github.com/cisco7507/LangId-mr/pkg/translate"
	"github.com/cisco7507/LangId-mr/pkg/worker"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "langid",
	Short: "LangId - clustered English/French audio language identification",
	Long: `LangId accepts audio uploads, identifies whether the content is
English or French speech through a gated Whisper pipeline, and serves
results over HTTP. Nodes form a cluster: submissions round-robin across
peers and job reads follow the owner encoded in the job id.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"LangId version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	serveCmd.Flags().String("listen", ":8000", "HTTP listen address")
	serveCmd.Flags().String("cluster-config", "", "path to the cluster configuration file")
	serveCmd.Flags().String("data-dir", "", "directory for the job database and stored uploads (overrides DB_URL/STORAGE_DIR)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a LangId node",
	Long: `Run the full node: HTTP API, worker pool, cluster health loop and
metrics. Service settings are environment-driven; cluster topology comes
from the cluster configuration file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")
		clusterPath, _ := cmd.Flags().GetString("cluster-config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		return runServe(listen, clusterPath, dataDir)
	},
}

func runServe(listen, clusterPath, dataDir string) error {
	cfg := config.Load()
	if dataDir != "" {
		cfg.StorageDir = filepath.Join(dataDir, "storage")
		cfg.DBPath = filepath.Join(dataDir, "langid.db")
	}
	if err := log.InitWithFile(log.Config{Level: log.Level(cfg.LogLevel)}, cfg.LogDir); err != nil {
		return fmt.Errorf("failed to initialize logging: %v", err)
	}

	clCfg, err := cluster.LoadConfig(clusterPath)
	if err != nil {
		return err
	}
	log.WithNode(clCfg.SelfName).Info().
		Int("nodes", len(clCfg.Nodes)).
		Bool("round_robin", clCfg.EnableRoundRobin).
		Msg("cluster configuration loaded")

	store, err := storage.NewBoltStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open job store: %v", err)
	}
	defer store.Close()

	if cfg.WhisperModelPath == "" {
		return fmt.Errorf("WHISPER_MODEL_PATH is required")
	}
	engine, err := asr.NewWhisperEngine(cfg.WhisperModelPath)
	if err != nil {
		return err
	}
	defer engine.Close()

	events := metrics.NewQueue()
	go events.Run()

	decoder := audio.NewFFmpegDecoder()
	g := gate.New(engine, cfg.Gate, cfg.ProbeSeconds, events)

	var translator translate.Translator
	if cfg.TranslateEndpoint != "" {
		translator = translate.NewHTTPTranslator(cfg.TranslateEndpoint)
		log.WithComponent("translate").Info().
			Str("endpoint", cfg.TranslateEndpoint).
			Msg("translation enabled")
	}

	pipeline := worker.NewPipeline(store, decoder, g, engine, translator, cfg, events, clCfg.SelfName)
	pool := worker.NewPool(store, pipeline, cfg.MaxWorkers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	health := cluster.NewHealthMonitor(clCfg)
	health.Start()

	server := api.NewServer(api.Deps{
		Config:     cfg,
		Cluster:    clCfg,
		Store:      store,
		Router:     cluster.NewRouter(clCfg),
		Scheduler:  cluster.NewScheduler(clCfg),
		Health:     health,
		Aggregator: cluster.NewAggregator(clCfg, health),
		Gate:       g,
		Decoder:    decoder,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(listen); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithNode(clCfg.SelfName).Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		log.WithNode(clCfg.SelfName).Error().Err(err).Msg("http server failed")
	}

	// Stop intake first so workers finish their current job, then the
	// health loop, the HTTP surface and finally the metrics consumer.
	cancel()
	pool.Stop()
	health.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.WithComponent("api").Warn().Err(err).Msg("http shutdown incomplete")
	}
	events.Close()

	log.WithNode(clCfg.SelfName).Info().Msg("node stopped")
	return nil
}
