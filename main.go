package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ericogr/motor-pdm/pkg/config"
	"github.com/ericogr/motor-pdm/pkg/display"
	"github.com/ericogr/motor-pdm/pkg/display/console"
	"github.com/ericogr/motor-pdm/pkg/indicator"
	"github.com/ericogr/motor-pdm/pkg/inference"
	"github.com/ericogr/motor-pdm/pkg/metrics"
	"github.com/ericogr/motor-pdm/pkg/model"
	"github.com/ericogr/motor-pdm/pkg/monitor"
	"github.com/ericogr/motor-pdm/pkg/sensor"
	"github.com/ericogr/motor-pdm/pkg/warning"
)

func main() {
	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log, err := newLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("stopped", "err", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lv slog.Level
	if level != "" {
		if err := lv.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lv,
		TimeFormat: time.TimeOnly,
	})), nil
}

// run builds every component from cfg and blocks until ctx is done.
func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	mtr := metrics.New(reg)

	graph, err := loadGraph(cfg.ModelPath)
	if err != nil {
		return err
	}
	engine, err := inference.New(graph,
		inference.WithLogger(log),
		inference.WithObserver(mtr))
	if err != nil {
		return err
	}

	green, red, err := buildLEDs(cfg.LEDs, log)
	if err != nil {
		return err
	}
	defer func() {
		// Leave both LEDs dark once nothing drives them.
		_ = green.Set(false)
		_ = red.Set(false)
	}()

	opts := monitor.Options{
		Simulated:  cfg.Simulated,
		Rand:       rand.New(rand.NewSource(seed(cfg.Seed))),
		Classifier: engine,
		Machine:    warning.NewMachine(log),
		Green:      green,
		Blinker:    indicator.NewBlinker(red, cfg.BlinkInterval(), log),
		Display:    buildDisplay(cfg.Display, log),
		Observer:   mtr,
		Logger:     log,
		Interval:   cfg.Interval(),
		ScrollStep: time.Duration(cfg.Display.ScrollSpeedMs) * time.Millisecond,
	}
	if cfg.Simulated {
		if opts.Dataset, err = loadDataset(cfg.DatasetPath); err != nil {
			return err
		}
		log.Info("dataset loaded", "samples", opts.Dataset.Len())
	} else {
		facade, err := buildSensors(cfg, log, mtr.SensorError)
		if err != nil {
			return err
		}
		defer func() {
			if err := facade.Close(); err != nil {
				log.Warn("closing sensors", "err", err)
			}
		}()
		facade.Init()
		opts.Sensors = facade
	}

	mon, err := monitor.New(opts)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	if cfg.MetricsAddr != "" {
		wg.Go(func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg, log); err != nil {
				log.Error("metrics endpoint", "err", err)
			}
		})
	}
	return mon.Run(ctx)
}

func seed(s int64) int64 {
	if s == 0 {
		return time.Now().UnixNano()
	}
	return s
}

func loadGraph(path string) (model.Graph, error) {
	if path == "" {
		return model.Reference(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()
	g, err := model.Load(f)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return g, nil
}

func loadDataset(path string) (*sensor.Dataset, error) {
	if path == "" {
		return sensor.EmbeddedDataset(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	d, err := sensor.LoadDataset(f)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", path, err)
	}
	return d, nil
}

func buildSensors(cfg config.Config, log *slog.Logger, onError func(string, error)) (*sensor.Facade, error) {
	var (
		temp sensor.TemperatureSensor
		vib  sensor.VibrationSensor
	)
	switch cfg.SensorType {
	case "fake":
		temp = sensor.NewFakeTemperature(seed(cfg.Seed))
		vib = sensor.NewFakeVibration(seed(cfg.Seed) + 1)
	default:
		t, err := sensor.OpenADS1115Temperature(cfg.Temperature)
		if err != nil {
			return nil, fmt.Errorf("temperature sensor: %w", err)
		}
		v, err := sensor.OpenADXL345(cfg.Vibration, log)
		if err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("vibration sensor: %w", err)
		}
		temp, vib = t, v
	}
	return sensor.NewFacade(temp, vib, log, sensor.WithErrorHook(onError)), nil
}

func buildLEDs(cfg config.LEDConfig, log *slog.Logger) (green, red indicator.LED, err error) {
	if cfg.Backend == "console" {
		return indicator.NewLog("green", log), indicator.NewLog("red", log), nil
	}
	g, err := indicator.OpenGPIO(cfg.Green)
	if err != nil {
		return nil, nil, fmt.Errorf("green led: %w", err)
	}
	r, err := indicator.OpenGPIO(cfg.Red)
	if err != nil {
		return nil, nil, fmt.Errorf("red led: %w", err)
	}
	return g, r, nil
}

func buildDisplay(cfg config.DisplayConfig, log *slog.Logger) display.Display {
	switch cfg.Type {
	case "log":
		return display.NewLog(log)
	case "none":
		return display.None{}
	default:
		return console.New(cfg.Width)
	}
}
