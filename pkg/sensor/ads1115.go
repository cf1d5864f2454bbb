package sensor

import (
	"fmt"
	"time"

	"github.com/ericogr/motor-pdm/pkg/config"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	pointerConv   = 0x00
	pointerConfig = 0x01

	ads1115FullScale = 4.096
)

// ADS1115Temperature reads an LM35 wired to one input of an ADS1115 and
// converts it with T = scale * normalized, where normalized is the input
// voltage over the reference voltage clamped to [0, 1].
type ADS1115Temperature struct {
	dev        *i2c.Dev
	bus        i2c.BusCloser
	channel    int
	sampleRate int
	scale      float64
	reference  float64
	pgaFS      float64
}

// OpenADS1115Temperature initializes the host and opens the configured bus.
func OpenADS1115Temperature(cfg config.TemperatureConfig) (*ADS1115Temperature, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("open i2c: %w", err)
	}
	s := NewADS1115Temperature(bus, cfg)
	s.bus = bus
	return s, nil
}

// NewADS1115Temperature uses an already opened bus. Close does not close it.
func NewADS1115Temperature(bus i2c.Bus, cfg config.TemperatureConfig) *ADS1115Temperature {
	return &ADS1115Temperature{
		dev:        &i2c.Dev{Addr: uint16(cfg.I2CAddress), Bus: bus},
		channel:    cfg.Channel,
		sampleRate: cfg.SampleRate,
		scale:      cfg.CalibrationScale,
		reference:  cfg.ReferenceVolts,
		pgaFS:      ads1115FullScale,
	}
}

// Init probes the config register so a missing converter shows up at start.
func (s *ADS1115Temperature) Init() error {
	if _, _, err := s.configForChannel(s.channel, s.sampleRate); err != nil {
		return err
	}
	buf := make([]byte, 2)
	if err := s.dev.Tx([]byte{pointerConfig}, buf); err != nil {
		return fmt.Errorf("probe ads1115: %w", err)
	}
	return nil
}

func (s *ADS1115Temperature) ReadTemperature() (float64, error) {
	msb, lsb, err := s.configForChannel(s.channel, s.sampleRate)
	if err != nil {
		return 0, err
	}
	if err := s.dev.Tx([]byte{pointerConfig, msb, lsb}, nil); err != nil {
		return 0, fmt.Errorf("write config: %w", err)
	}
	time.Sleep(conversionDelay(s.sampleRate))
	readBuf := make([]byte, 2)
	if err := s.dev.Tx([]byte{pointerConv}, readBuf); err != nil {
		return 0, fmt.Errorf("read conv: %w", err)
	}
	raw := int16(readBuf[0])<<8 | int16(readBuf[1])
	return s.scale * s.normalize(raw), nil
}

func (s *ADS1115Temperature) normalize(raw int16) float64 {
	volts := float64(raw) * s.pgaFS / 32768.0
	n := volts / s.reference
	switch {
	case n < 0:
		return 0
	case n > 1:
		return 1
	}
	return n
}

func (s *ADS1115Temperature) Close() error {
	if s.bus != nil {
		return s.bus.Close()
	}
	return nil
}

func (s *ADS1115Temperature) configForChannel(channel, sampleRate int) (byte, byte, error) {
	var mux byte
	switch channel {
	case 0:
		mux = 0x4
	case 1:
		mux = 0x5
	case 2:
		mux = 0x6
	case 3:
		mux = 0x7
	default:
		return 0, 0, fmt.Errorf("invalid channel %d", channel)
	}
	// PGA: use ±4.096V -> bits 001
	pga := byte(0x1)
	var config uint16 = 0x8000 // OS = 1 (start single conversion)
	config |= uint16(mux) << 12
	config |= uint16(pga) << 9
	config |= 1 << 8 // single-shot mode
	config |= uint16(dataRateBits(sampleRate)) << 5
	// comparator default: disabled (bits 1:0 = 11)
	config |= 0x3
	return byte(config >> 8), byte(config & 0xFF), nil
}

func dataRateBits(sampleRate int) byte {
	switch sampleRate {
	case 8:
		return 0x0
	case 16:
		return 0x1
	case 32:
		return 0x2
	case 64:
		return 0x3
	case 250:
		return 0x5
	case 475:
		return 0x6
	case 860:
		return 0x7
	default:
		return 0x4 // 128 SPS
	}
}

func conversionDelay(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		sampleRate = 128
	}
	return time.Duration(1000/sampleRate+2) * time.Millisecond
}
