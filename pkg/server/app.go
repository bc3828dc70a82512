package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"Naly/internal/usecase"
	"Naly/pkg/config"
	xhttp "Naly/pkg/http"
	pkgkafka "Naly/pkg/kafka"
	applogger "Naly/pkg/logger"
)

// WeightLoader restores calibrated model weights at startup.
type WeightLoader interface {
	LoadWeights(ctx context.Context) error
}

type closer struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	weights     WeightLoader
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	calibration *usecase.CalibrationJob
	closers     []closer
	checks      []xhttp.ServerOption
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, handler xhttp.Handler, weights WeightLoader) *App {
	return &App{
		cfg:         cfg,
		log:         log.With("app"),
		httpHandler: handler,
		weights:     weights,
	}
}

// SetConsumer attaches the Kafka consumer and the market event handler.
func (a *App) SetConsumer(c *pkgkafka.Consumer, kh pkgkafka.MessageHandler) {
	a.consumer, a.kh = c, kh
}

// SetCalibration attaches the scheduled calibration job.
func (a *App) SetCalibration(job *usecase.CalibrationJob) { a.calibration = job }

// AddCloser registers a resource released on shutdown, in reverse order.
func (a *App) AddCloser(name string, c io.Closer) {
	a.closers = append(a.closers, closer{name: name, c: c})
}

// AddReadinessCheck adds a dependency check served on /readyz.
func (a *App) AddReadinessCheck(name string, check xhttp.CheckFunc) {
	a.checks = append(a.checks, xhttp.WithReadinessCheck(name, check))
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	if a.weights != nil {
		if err := a.weights.LoadWeights(ctx); err != nil {
			a.log.Warn("stored model weights not loaded, using configured weights", applogger.Error(err))
		}
	}

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithBodyLimit(a.cfg.Server.BodyLimit),
	}
	if len(a.cfg.Server.CORSOrigins) > 0 {
		opts = append(opts, xhttp.WithCORSOrigins(a.cfg.Server.CORSOrigins...))
	}
	a.httpServer = xhttp.NewServer(a.httpHandler, a.log, append(opts, a.checks...)...)

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.calibration != nil {
		if err := a.calibration.Start(); err != nil {
			a.log.Error("calibration schedule rejected", applogger.Error(err))
			return err
		}
		a.log.Info("calibration scheduled",
			applogger.String("schedule", a.cfg.Calibration.Schedule),
			applogger.Strings("tickers", a.cfg.Calibration.Tickers),
		)
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		a.shutdown()
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	a.shutdown()
	return nil
}

// shutdown gracefully stops all services.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.calibration != nil {
		a.calibration.Stop(ctx)
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		cl := a.closers[i]
		if err := cl.c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", cl.name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
}
