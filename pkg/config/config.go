package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvSimulated selects the embedded dataset instead of the physical sensors.
const EnvSimulated = "SIMULATED_DATA"

// TemperatureConfig describes the LM35 wired to an ADS1115 input.
type TemperatureConfig struct {
	I2CBus           string  `json:"i2c_bus" yaml:"i2c_bus"`
	I2CAddress       int     `json:"i2c_address" yaml:"i2c_address"`
	Channel          int     `json:"channel" yaml:"channel"`
	SampleRate       int     `json:"sample_rate" yaml:"sample_rate"`
	ReferenceVolts   float64 `json:"reference_volts" yaml:"reference_volts"`
	CalibrationScale float64 `json:"calibration_scale" yaml:"calibration_scale"`
}

// VibrationConfig describes the ADXL345 on a 4-wire SPI port.
type VibrationConfig struct {
	SPIPort      string `json:"spi_port" yaml:"spi_port"`
	SpeedHz      int64  `json:"speed_hz" yaml:"speed_hz"`
	ProbeRetries int    `json:"probe_retries" yaml:"probe_retries"`
}

type LEDConfig struct {
	Backend string `json:"backend" yaml:"backend"` // gpio|console
	Green   string `json:"green" yaml:"green"`
	Red     string `json:"red" yaml:"red"`
}

type DisplayConfig struct {
	Type          string `json:"type" yaml:"type"` // console|log|none
	Width         int    `json:"width" yaml:"width"`
	ScrollSpeedMs int    `json:"scroll_speed_ms" yaml:"scroll_speed_ms"`
}

type Config struct {
	Simulated       bool              `json:"simulated" yaml:"simulated"`
	SensorType      string            `json:"sensor_type" yaml:"sensor_type"` // real|fake
	IntervalMs      int               `json:"interval_ms" yaml:"interval_ms"`
	BlinkIntervalMs int               `json:"blink_interval_ms" yaml:"blink_interval_ms"`
	Temperature     TemperatureConfig `json:"temperature" yaml:"temperature"`
	Vibration       VibrationConfig   `json:"vibration" yaml:"vibration"`
	LEDs            LEDConfig         `json:"leds" yaml:"leds"`
	Display         DisplayConfig     `json:"display" yaml:"display"`
	ModelPath       string            `json:"model_path" yaml:"model_path"`
	DatasetPath     string            `json:"dataset_path" yaml:"dataset_path"`
	MetricsAddr     string            `json:"metrics_addr" yaml:"metrics_addr"`
	LogLevel        string            `json:"log_level" yaml:"log_level"`
	Seed            int64             `json:"seed" yaml:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Simulated:       false,
		SensorType:      "real",
		IntervalMs:      2000,
		BlinkIntervalMs: 300,
		Temperature: TemperatureConfig{
			I2CBus:           "1",
			I2CAddress:       0x48,
			Channel:          0,
			SampleRate:       128,
			ReferenceVolts:   3.3,
			CalibrationScale: 48.9796,
		},
		Vibration: VibrationConfig{
			SPIPort:      "",
			SpeedHz:      5_000_000,
			ProbeRetries: 3,
		},
		LEDs: LEDConfig{
			Backend: "gpio",
			Green:   "GPIO17",
			Red:     "GPIO27",
		},
		Display: DisplayConfig{
			Type:          "console",
			Width:         8,
			ScrollSpeedMs: 175,
		},
		LogLevel: "info",
	}
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

func (c Config) BlinkInterval() time.Duration {
	return time.Duration(c.BlinkIntervalMs) * time.Millisecond
}

// LoadFromFlags loads configuration from the process command line and
// environment.
func LoadFromFlags() (Config, error) {
	return Load(flag.CommandLine, os.Args[1:], os.Getenv)
}

// Load reads an optional JSON or YAML config file and applies flag
// overrides. Flags override values present in the file, and the
// SIMULATED_DATA environment variable overrides the file but not the
// -simulated flag.
func Load(fs *flag.FlagSet, args []string, getenv func(string) string) (Config, error) {
	cfgPath := fs.String("config", "", "Path to JSON or YAML config file")
	flagSimulated := fs.String("simulated", "", "Use the embedded dataset instead of sensors (true|false)")
	flagSensorType := fs.String("sensor-type", "", "sensor type: real|fake")
	flagInterval := fs.Int("interval-ms", -1, "Acquisition period in ms")
	flagBlink := fs.Int("blink-interval-ms", -1, "Warning LED toggle period in ms")
	flagI2CBus := fs.String("i2c-bus", "", "I2C bus of the temperature ADC (e.g., '1' -> /dev/i2c-1)")
	flagI2CAddStr := fs.String("i2c-address", "", "I2C address of the temperature ADC (decimal or 0x hex)")
	flagADCChannel := fs.Int("adc-channel", -1, "ADS1115 input the LM35 is wired to")
	flagCalibration := fs.Float64("calibration", math.NaN(), "Temperature calibration scale (degC per normalized ADC unit)")
	flagSPIPort := fs.String("spi-port", "", "SPI port of the accelerometer (empty = first available)")
	flagGreen := fs.String("led-green", "", "GPIO name of the green LED")
	flagRed := fs.String("led-red", "", "GPIO name of the red LED")
	flagLEDBackend := fs.String("led-backend", "", "LED backend: gpio|console")
	flagDisplay := fs.String("display", "", "Display backend: console|log|none")
	flagModel := fs.String("model", "", "Path to an exported model JSON (empty = embedded)")
	flagDataset := fs.String("dataset", "", "Path to a labeled sample CSV (empty = embedded)")
	flagMetrics := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address (empty = disabled)")
	flagLogLevel := fs.String("log-level", "", "debug|info|warn|error")
	flagSeed := fs.Int64("seed", 0, "Seed for simulated sample selection (0 = time based)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()

	if *cfgPath != "" {
		if err := readFile(*cfgPath, &cfg); err != nil {
			return cfg, err
		}
	}

	if v := getenv(EnvSimulated); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvSimulated, err)
		}
		cfg.Simulated = b
	}
	if *flagSimulated != "" {
		b, err := parseBool(*flagSimulated)
		if err != nil {
			return cfg, fmt.Errorf("simulated: %w", err)
		}
		cfg.Simulated = b
	}
	if *flagSensorType != "" {
		cfg.SensorType = *flagSensorType
	}
	if *flagInterval != -1 {
		cfg.IntervalMs = *flagInterval
	}
	if *flagBlink != -1 {
		cfg.BlinkIntervalMs = *flagBlink
	}
	if *flagI2CBus != "" {
		cfg.Temperature.I2CBus = *flagI2CBus
	}
	if *flagI2CAddStr != "" {
		v, err := parseIntOrHex(*flagI2CAddStr)
		if err != nil {
			return cfg, fmt.Errorf("i2c-address: %w", err)
		}
		cfg.Temperature.I2CAddress = v
	}
	if *flagADCChannel != -1 {
		cfg.Temperature.Channel = *flagADCChannel
	}
	if !math.IsNaN(*flagCalibration) {
		cfg.Temperature.CalibrationScale = *flagCalibration
	}
	if *flagSPIPort != "" {
		cfg.Vibration.SPIPort = *flagSPIPort
	}
	if *flagGreen != "" {
		cfg.LEDs.Green = *flagGreen
	}
	if *flagRed != "" {
		cfg.LEDs.Red = *flagRed
	}
	if *flagLEDBackend != "" {
		cfg.LEDs.Backend = *flagLEDBackend
	}
	if *flagDisplay != "" {
		cfg.Display.Type = *flagDisplay
	}
	if *flagModel != "" {
		cfg.ModelPath = *flagModel
	}
	if *flagDataset != "" {
		cfg.DatasetPath = *flagDataset
	}
	if *flagMetrics != "" {
		cfg.MetricsAddr = *flagMetrics
	}
	if *flagLogLevel != "" {
		cfg.LogLevel = *flagLogLevel
	}
	if *flagSeed != 0 {
		cfg.Seed = *flagSeed
	}

	return cfg, cfg.Validate()
}

func readFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, cfg)
	default:
		err = json.Unmarshal(b, cfg)
	}
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

var validSampleRates = map[int]bool{8: true, 16: true, 32: true, 64: true, 128: true, 250: true, 475: true, 860: true}

// Validate checks values the program cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.IntervalMs <= 0 {
		errs = append(errs, errors.New("interval-ms must be > 0"))
	}
	if c.BlinkIntervalMs <= 0 {
		errs = append(errs, errors.New("blink-interval-ms must be > 0"))
	}
	switch c.SensorType {
	case "real", "fake":
	default:
		errs = append(errs, fmt.Errorf("unknown sensor type %q", c.SensorType))
	}
	if !validSampleRates[c.Temperature.SampleRate] {
		errs = append(errs, fmt.Errorf("unsupported ADS1115 sample rate %d", c.Temperature.SampleRate))
	}
	if c.Temperature.Channel < 0 || c.Temperature.Channel > 3 {
		errs = append(errs, fmt.Errorf("invalid ADC channel %d", c.Temperature.Channel))
	}
	if c.Temperature.ReferenceVolts <= 0 {
		errs = append(errs, errors.New("reference-volts must be > 0"))
	}
	switch c.LEDs.Backend {
	case "gpio", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown led backend %q", c.LEDs.Backend))
	}
	switch c.Display.Type {
	case "console", "log", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown display %q", c.Display.Type))
	}
	return errors.Join(errs...)
}

func parseIntOrHex(s string) (int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 0)
		return int(v), err
	}
	v, err := strconv.Atoi(s)
	return v, err
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
