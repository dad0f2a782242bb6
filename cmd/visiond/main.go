// Command visiond runs the multi-camera vision server: it loads a
// configuration file, starts every configured camera and its pipelines
// against the process-wide registry, and exposes a Prometheus metrics
// endpoint alongside debug pprof handlers.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warpcomdev/asicamera2/internal/apriltag"
	"github.com/warpcomdev/asicamera2/internal/camera"
	"github.com/warpcomdev/asicamera2/internal/camera/fakedriver"
	"github.com/warpcomdev/asicamera2/internal/config"
	"github.com/warpcomdev/asicamera2/internal/framebuf"
	"github.com/warpcomdev/asicamera2/internal/metrics"
	"github.com/warpcomdev/asicamera2/internal/registry"
	"github.com/warpcomdev/asicamera2/internal/servicelog"
)

var startMetric = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "visiond_start_time_seconds",
	Help: "Unix timestamp at which the daemon started.",
})

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: visiond <config.toml>")
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := servicelog.New(servicelog.Config{
		Debug:   cfg.Debug,
		LogFile: cfg.LogFolder + "/visiond.log",
	})
	if err != nil {
		log.Fatalf("can't initialize logger: %v", err)
	}

	metricsRegistry := metrics.New(metrics.Config{
		Window:            cfg.MetricsWindow(),
		FPSWindow:         cfg.FPSWindow(),
		MemorySampleEvery: cfg.MemorySampleInterval(),
	})
	defer metricsRegistry.Close()
	prometheus.MustRegister(metrics.NewCollector(metricsRegistry))

	pipelineFactory := registry.NewPipelineFactory(func() apriltag.Detector {
		return apriltag.NullDetector{}
	}, logger)

	reg := registry.New(registry.Config{
		NewDriver:       defaultDriverFactory(),
		PipelineFactory: pipelineFactory,
		Metrics:         metricsRegistry,
		Logger:          logger,
		ReconnectDelay:  cfg.ReconnectDelay(),
		PoolConfig: framebuf.Config{
			InitialBuffers:    cfg.InitialBuffers,
			MaxBuffers:        cfg.MaxBuffers,
			HighWaterMark:     cfg.HighWaterMark,
			ShrinkIdleSeconds: cfg.ShrinkIdle().Seconds(),
		},
	})

	for _, cc := range cfg.Cameras {
		descriptor := registry.CameraDescriptor{
			Identifier:   cc.Identifier,
			CameraType:   cc.CameraType,
			Orientation:  cc.OrientationValue(),
			DepthEnabled: cc.DepthEnabled,
			Framerate:    cc.Framerate,
		}
		for _, pc := range cc.Pipelines {
			descriptor.Pipelines = append(descriptor.Pipelines, pc.PipelineDescriptor())
		}
		if err := reg.StartCamera(descriptor); err != nil {
			logger.Error("starting camera", servicelog.String("camera", cc.Identifier), servicelog.Error(err))
		}
	}

	startMetric.Set(float64(time.Now().Unix()))

	http.Handle("/metrics", promhttp.Handler())
	http.Handle("/debug", http.DefaultServeMux)

	srv := &http.Server{Addr: ":8080", Handler: http.DefaultServeMux}
	go func() {
		logger.Info("listening", servicelog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", servicelog.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	fmt.Println("shutting down")
	for _, cc := range cfg.Cameras {
		reg.StopCamera(cc.Identifier)
	}
}

// defaultDriverFactory wires the synthetic driver as the camera_type
// dispatch table: the teacher's ASI SDK binding (internal/driver/camera)
// exposes device info and control calls but no frame-acquisition entry
// point to adapt to camera.Driver, so it is not wired here (see
// DESIGN.md).
func defaultDriverFactory() camera.Factory {
	shape := framebuf.Shape{Height: 480, Width: 640, Channels: 1}
	return fakedriver.Factory(shape, 30)
}
