package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aldor007/easel/pkg/cache"
	"github.com/aldor007/easel/pkg/canvas"
	"github.com/aldor007/easel/pkg/config"
	"github.com/aldor007/easel/pkg/lock"
	"github.com/aldor007/easel/pkg/monitoring"
	"github.com/aldor007/easel/pkg/processor"
	"github.com/aldor007/easel/pkg/raster/goimage"
	"github.com/aldor007/easel/pkg/raster/vips"
	"github.com/aldor007/easel/pkg/recipe"
	"github.com/aldor007/easel/pkg/throttler"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// Version of easel
	Version = "0.1.0"
	// BANNER just fancy command line banner
	BANNER = `
  ___  __ _ ___  ___| |
 / _ \/ _' / __|/ _ \ |
|  __/ (_| \__ \  __/ |
 \___|\__,_|___/\___|_|
 Version: %s
`
)

var errMethodNotAllowed = errors.New("method not allowed")

type backendCloser func()

func createBackend(serverConfig config.Server) (canvas.Backend, *vips.IdleCleanup, backendCloser) {
	if serverConfig.Backend != "vips" {
		return goimage.NewBackend(), nil, func() {}
	}

	b := vips.NewBackend()
	idle := serverConfig.IdleCleanup
	if idle == nil {
		idle = &config.IdleCleanupCfg{}
	}

	cleanup := vips.NewIdleCleanup(idle.Enabled, idle.IdleTimeoutMin)
	cleanup.Start()
	return b, cleanup, cleanup.Stop
}

func renderOnce(ctx context.Context, cfg *config.Config, b canvas.Backend, in, out, presetName string) error {
	preset, ok := cfg.Preset(presetName)
	if !ok {
		return errors.Wrapf(processor.ErrUnknownPreset, "%q", presetName)
	}

	rec, err := recipe.Compile(preset)
	if err != nil {
		return err
	}

	return processor.RenderFile(ctx, b, in, out, rec)
}

func main() {
	configPath := flag.String("config", "configuration/config.yml", "Path to configuration")
	listenAddr := flag.String("listen", "", "Listen addr, overrides server.listen")
	inPath := flag.String("in", "", "Render single file instead of starting server")
	outPath := flag.String("out", "", "Output of single file render")
	presetName := flag.String("preset", "", "Preset used for single file render")
	flag.Parse()

	imgConfig := config.GetInstance()
	if err := imgConfig.Load(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	logger, err := monitoring.NewLogger(imgConfig.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to create logger: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)
	monitoring.RegisterLogger(logger)
	defer logger.Sync()

	b, cleanup, closeBackend := createBackend(imgConfig.Server)
	defer closeBackend()

	if *inPath != "" {
		if err := renderOnce(context.Background(), imgConfig, b, *inPath, *outPath, *presetName); err != nil {
			monitoring.Log().Error("easel render failed", zap.String("in", *inPath), zap.String("preset", *presetName), zap.Error(err))
			closeBackend()
			os.Exit(1)
		}
		return
	}

	if *listenAddr != "" {
		imgConfig.Server.Listen = *listenAddr
	}

	fmt.Printf(BANNER, "v"+Version)
	fmt.Printf("Config file %s listen addr %s internal addr %s\n", *configPath, imgConfig.Server.Listen, imgConfig.Server.InternalListen)

	reporter := monitoring.NewPrometheusReporter()
	if err := registerMetrics(reporter); err != nil {
		monitoring.Log().Fatal("easel unable to register metrics", zap.Error(err))
	}
	monitoring.RegisterReporter(reporter)

	recipes, err := recipe.CompileAll(imgConfig.Presets)
	if err != nil {
		monitoring.Log().Fatal("easel invalid presets", zap.Error(err))
	}

	serverConfig := imgConfig.Server
	rp := processor.NewRenderProcessor(serverConfig, b, recipes,
		cache.Create(serverConfig.Cache),
		lock.Create(serverConfig),
		throttler.NewBucketThrottlerBacklog(serverConfig.Concurrency, serverConfig.Backlog, time.Duration(serverConfig.BacklogTimeout)*time.Second))
	if cleanup != nil {
		rp.SetActivityTracker(cleanup)
	}

	timeout := time.Duration(serverConfig.RequestTimeout)*time.Second + 10*time.Second
	servers := []*http.Server{
		{
			Addr:         serverConfig.Listen,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
			Handler:      newRouter(rp, serverConfig.AccessLog),
		},
		{
			Addr:    serverConfig.InternalListen,
			Handler: newInternalRouter(),
		},
	}

	for _, s := range servers {
		go func(s *http.Server) {
			monitoring.Log().Info("easel listening", zap.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				monitoring.Log().Fatal("easel server error", zap.String("addr", s.Addr), zap.Error(err))
			}
		}(s)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	monitoring.Log().Info("easel shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, s := range servers {
		if err := s.Shutdown(ctx); err != nil {
			monitoring.Log().Error("easel forced shutdown", zap.String("addr", s.Addr), zap.Error(err))
		}
	}
}
