package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericogr/motor-pdm/pkg/config"
	"github.com/ericogr/motor-pdm/pkg/display"
	"github.com/ericogr/motor-pdm/pkg/display/console"
	"github.com/ericogr/motor-pdm/pkg/indicator"
	"github.com/ericogr/motor-pdm/pkg/model"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(&buf, "warn")
	require.NoError(t, err)
	log.Info("hidden")
	log.Warn("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")

	_, err = newLogger(&buf, "loud")
	require.Error(t, err)
}

func TestBuildDisplay(t *testing.T) {
	log, _ := newLogger(&bytes.Buffer{}, "info")
	require.IsType(t, &console.Console{}, buildDisplay(config.DisplayConfig{Type: "console", Width: 8}, log))
	require.IsType(t, &display.Log{}, buildDisplay(config.DisplayConfig{Type: "log"}, log))
	require.IsType(t, display.None{}, buildDisplay(config.DisplayConfig{Type: "none"}, log))
}

func TestBuildConsoleLEDs(t *testing.T) {
	log, _ := newLogger(&bytes.Buffer{}, "info")
	green, red, err := buildLEDs(config.LEDConfig{Backend: "console"}, log)
	require.NoError(t, err)
	require.IsType(t, &indicator.Log{}, green)
	require.IsType(t, &indicator.Log{}, red)
}

func TestBuildFakeSensors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SensorType = "fake"
	cfg.Seed = 3
	log, _ := newLogger(&bytes.Buffer{}, "info")

	f, err := buildSensors(cfg, log, nil)
	require.NoError(t, err)
	f.Init()
	r := f.Read()
	require.InDelta(t, 25, r.Temperature, 3)
	require.NoError(t, f.Close())
}

func TestLoadGraph(t *testing.T) {
	g, err := loadGraph("")
	require.NoError(t, err)
	require.Equal(t, model.ReferenceInput, g.InputName())

	g, err = loadGraph(filepath.Join("pkg", "model", "testdata", "tiny.json"))
	require.NoError(t, err)
	require.NotNil(t, g)

	_, err = loadGraph(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDataset(t *testing.T) {
	d, err := loadDataset("")
	require.NoError(t, err)
	require.Positive(t, d.Len())

	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n"), 0o644))
	_, err = loadDataset(path)
	require.Error(t, err)
}

func TestRunSimulatedUntilCancelled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Simulated = true
	cfg.IntervalMs = 5
	cfg.BlinkIntervalMs = 5
	cfg.LEDs.Backend = "console"
	cfg.Display.Type = "none"
	cfg.Seed = 11

	var buf bytes.Buffer
	log, err := newLogger(&buf, "info")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = run(ctx, cfg, log)
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	require.Contains(t, buf.String(), "Initialising System UI...")
	require.Contains(t, buf.String(), "prediction check")
}
