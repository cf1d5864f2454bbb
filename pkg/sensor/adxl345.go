package sensor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ericogr/motor-pdm/pkg/config"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// ADXL345 registers and values.
const (
	regDevID      = 0x00
	regBWRate     = 0x2C
	regPowerCtl   = 0x2D
	regDataFormat = 0x31
	regDataX0     = 0x32

	adxlDeviceID = 0xE5

	spiRead      = 0x80
	spiMultiByte = 0x40

	powerStandby = 0x00
	powerMeasure = 0x08

	formatFullRes16G = 0x0B // full resolution, ±16 g, 4 mg/LSB
	rate3200Hz       = 0x0F
)

// ADXL345 is a 3-axis accelerometer on a 4-wire SPI bus. When the device ID
// probe fails, reads return zeros instead of errors.
type ADXL345 struct {
	conn    conn.Conn
	port    spi.PortCloser
	retries int
	log     *slog.Logger

	mu      sync.Mutex
	present bool
}

// OpenADXL345 initializes the host and connects to the configured SPI port
// in mode 3.
func OpenADXL345(cfg config.VibrationConfig, log *slog.Logger) (*ADXL345, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("open spi: %w", err)
	}
	c, err := port.Connect(physic.Frequency(cfg.SpeedHz)*physic.Hertz, spi.Mode3, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("connect spi: %w", err)
	}
	s := NewADXL345(c, cfg.ProbeRetries, log)
	s.port = port
	return s, nil
}

// NewADXL345 uses an already connected bus. Close does not close it.
func NewADXL345(c conn.Conn, retries int, log *slog.Logger) *ADXL345 {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &ADXL345{conn: c, retries: retries, log: log}
}

// Init checks the device ID, then moves the device to standby, sets the data
// format and rate, and starts measuring. Bus errors during the probe are
// retried with backoff; a wrong ID is not.
func (s *ADXL345) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.present = false
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(20*time.Millisecond),
		backoff.WithMaxInterval(200*time.Millisecond),
	), uint64(max(s.retries, 0)))
	err := backoff.RetryNotify(func() error {
		id, err := s.readRegister(regDevID)
		if err != nil {
			return err
		}
		if id != adxlDeviceID {
			return backoff.Permanent(fmt.Errorf("%w: adxl345 reported 0x%02X, want 0x%02X", ErrDeviceID, id, adxlDeviceID))
		}
		return nil
	}, bo, func(err error, d time.Duration) {
		s.log.Warn("adxl345 probe failed, retrying", "err", err, "in", d)
	})
	if err != nil {
		return err
	}
	s.log.Info("adxl345 detected", "device_id", fmt.Sprintf("0x%02X", adxlDeviceID))

	for _, w := range [][2]byte{
		{regPowerCtl, powerStandby},
		{regDataFormat, formatFullRes16G},
		{regBWRate, rate3200Hz},
		{regPowerCtl, powerMeasure},
	} {
		if err := s.conn.Tx(w[:], nil); err != nil {
			return fmt.Errorf("write register 0x%02X: %w", w[0], err)
		}
	}
	s.present = true
	return nil
}

func (s *ADXL345) readRegister(reg byte) (byte, error) {
	w := []byte{spiRead | reg, 0}
	r := make([]byte, len(w))
	if err := s.conn.Tx(w, r); err != nil {
		return 0, fmt.Errorf("read register 0x%02X: %w", reg, err)
	}
	return r[1], nil
}

func (s *ADXL345) ReadVibration() ([3]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out [3]int
	if !s.present {
		return out, nil
	}
	w := make([]byte, 7)
	w[0] = spiRead | spiMultiByte | regDataX0
	r := make([]byte, len(w))
	if err := s.conn.Tx(w, r); err != nil {
		return out, fmt.Errorf("read axes: %w", err)
	}
	for i := range out {
		out[i] = signExtend13(uint16(r[1+2*i]) | uint16(r[2+2*i])<<8)
	}
	return out, nil
}

// Present reports whether the last Init found the device.
func (s *ADXL345) Present() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.present
}

func (s *ADXL345) Close() error {
	if s.port != nil {
		return s.port.Close()
	}
	return nil
}

// signExtend13 interprets the low 13 bits of v as two's complement.
func signExtend13(v uint16) int {
	v &= 0x1FFF
	if v&0x1000 != 0 {
		return int(v) - 0x2000
	}
	return int(v)
}
