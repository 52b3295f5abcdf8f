package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/offsidezero/varcore/internal/adapters/cache"
	"github.com/offsidezero/varcore/internal/adapters/provider"
	"github.com/offsidezero/varcore/internal/app"
	"github.com/offsidezero/varcore/internal/config"
	"github.com/offsidezero/varcore/pkg/logger"
	"github.com/offsidezero/varcore/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second

	artifactPermission = 0600
)

func main() {
	// Disable default Go metrics collection; the custom registry carries
	// only pipeline metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	flag.Parse()

	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since the logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to sync logger: " + err.Error() + "\n")
		}
	}()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	manifests := flag.Args()
	if len(manifests) == 0 {
		os.Stderr.WriteString("usage: varcore [flags] clip-manifest.json...\n")
		return
	}

	// Wire the vision provider from configuration.
	vision := provider.NewHTTPProvider(cfg.ProviderURL,
		provider.WithModels(cfg.ProviderModels...),
		provider.WithMaxRetries(cfg.ProviderMaxRetries),
		provider.WithBackoffBase(time.Duration(cfg.ProviderBackoffMS)*time.Millisecond),
		provider.WithRequestTimeout(time.Duration(cfg.ProviderTimeoutMS)*time.Millisecond),
	)

	opts := []app.Option{
		app.WithLogger(loggerInstance),
		app.WithProvider(vision),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.EventQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithBatchSize(cfg.BatchSize),
		app.WithFrameRate(cfg.FrameRate),
		app.WithSlowFactor(cfg.SlowFactor),
		app.WithPlayDirection(cfg.Direction()),
		app.WithInvolvementRadius(cfg.InvolvementRadiusM),
		app.WithNaturalThreshold(cfg.NaturalThreshold),
		app.WithContactRadius(cfg.ContactRadiusM),
	}
	if cfg.ExcludeKeeper {
		opts = append(opts, app.WithKeeperExcluded())
	}
	if cfg.CachePath != "" {
		store, err := cache.NewStore(cfg.CachePath)
		if err != nil {
			os.Stderr.WriteString("failed to open analysis cache: " + err.Error() + "\n")
			return
		}
		opts = append(opts, app.WithCache(store))
	}

	analyzer := app.New(opts...)
	if err := analyzer.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start analyzer: " + err.Error() + "\n")
		return
	}
	defer analyzer.Stop()

	// Optional Prometheus listener.
	var srv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
		srv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		}
		go func() {
			loggerInstance.Info(ctx, "starting metrics server", logger.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				os.Stderr.WriteString("metrics server failed: " + err.Error() + "\n")
			}
		}()
	}

	failed := 0
	for _, path := range manifests {
		if ctx.Err() != nil {
			break
		}
		if err := analyzeManifest(ctx, analyzer, path); err != nil {
			loggerInstance.Error(ctx, "clip analysis failed",
				logger.String("manifest", path), logger.Error(err))
			failed++
		}
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			loggerInstance.Error(ctx, "metrics server shutdown failed", logger.Error(err))
		}
	}

	if failed > 0 {
		loggerInstance.Error(ctx, "analysis finished with failures", logger.Int("failed", failed))
		analyzer.Stop()
		_ = logger.Sync()
		os.Exit(1)
	}
}

// clipManifest describes one clip on disk: identity, frame rate and the
// camera-stable segments with their frame files.
type clipManifest struct {
	ID        string            `json:"id"`
	FrameRate float64           `json:"frame_rate"`
	Segments  []segmentManifest `json:"segments"`
}

type segmentManifest struct {
	ID     string          `json:"id"`
	Frames []frameManifest `json:"frames"`
}

type frameManifest struct {
	Index int64  `json:"index"`
	File  string `json:"file,omitempty"`
}

// analyzeManifest loads one clip manifest, runs the pipeline over it and
// writes the analysis artifact next to the manifest.
func analyzeManifest(ctx context.Context, analyzer *app.Analyzer, path string) error {
	clip, err := loadClip(path)
	if err != nil {
		return fmt.Errorf("loading clip manifest: %w", err)
	}

	result, err := analyzer.Analyze(ctx, clip)
	if err != nil {
		return err
	}

	out := artifactPath(path)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling analysis: %w", err)
	}
	if err := os.WriteFile(out, data, artifactPermission); err != nil {
		return fmt.Errorf("writing analysis artifact: %w", err)
	}

	logger.Get().Info(ctx, "analysis artifact written",
		logger.String("clip", clip.ID),
		logger.String("artifact", out),
		logger.Int("rulings", len(result.Rulings)),
		logger.Any("fromCache", result.FromCache),
	)
	return nil
}

// loadClip reads a manifest and resolves its frame files relative to the
// manifest's directory.
func loadClip(path string) (app.Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return app.Clip{}, err
	}
	var m clipManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return app.Clip{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if m.ID == "" {
		m.ID = stem(path)
	}

	base := filepath.Dir(path)
	clip := app.Clip{ID: m.ID, FrameRate: m.FrameRate}
	for _, seg := range m.Segments {
		s := app.Segment{ID: seg.ID}
		for _, f := range seg.Frames {
			frame := provider.Frame{Index: f.Index}
			if f.File != "" {
				jpeg, err := os.ReadFile(filepath.Join(base, f.File))
				if err != nil {
					return app.Clip{}, fmt.Errorf("reading frame %d of segment %s: %w", f.Index, seg.ID, err)
				}
				frame.JPEG = jpeg
			}
			s.Frames = append(s.Frames, frame)
		}
		clip.Segments = append(clip.Segments, s)
	}
	return clip, nil
}

// artifactPath derives <stem>_analysis.json next to the manifest.
func artifactPath(manifest string) string {
	dir := filepath.Dir(manifest)
	return filepath.Join(dir, stem(manifest)+"_analysis.json")
}

// stem is the manifest filename without directory or extension.
func stem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
