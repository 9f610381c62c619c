package hardware

import (
	"context"
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/mfrc522"
	"periph.io/x/host/v3"
)

type PinNames struct {
	CardDetect string
	Stop       string
	HardStop   string
	Red        string
	Yellow     string
	Green      string
	Relay      string
	RFIDReset  string
	RFIDIRQ    string
}

type Config struct {
	Logger      *log.Logger
	Pins        PinNames
	SPIPort     string // "" selects the first registered port
	ReadTimeout time.Duration
	Retries     int
	RetryDelay  time.Duration
}

// Open initialises the host drivers, resolves the pins and brings up the
// card reader.  It retries up to cfg.Retries times and wraps the last
// failure in ErrHardwareInit.
func Open(ctx context.Context, cfg Config) (*Board, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 50 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Retries; attempt++ {
		b, err := open(cfg)
		if err == nil {
			return b, nil
		}
		lastErr = err
		cfg.Logger.Printf("hardware init attempt %d/%d: %v", attempt, cfg.Retries, err)

		if attempt == cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrHardwareInit, ctx.Err())
		case <-time.After(cfg.RetryDelay):
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrHardwareInit, lastErr)
}

func open(cfg Config) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}

	var pins Pins
	var rst gpio.PinOut
	var irq gpio.PinIn
	var err error
	if pins.CardDetect, err = lookup(cfg.Pins.CardDetect); err != nil {
		return nil, err
	}
	if pins.Stop, err = lookup(cfg.Pins.Stop); err != nil {
		return nil, err
	}
	if pins.HardStop, err = lookup(cfg.Pins.HardStop); err != nil {
		return nil, err
	}
	if pins.Red, err = lookup(cfg.Pins.Red); err != nil {
		return nil, err
	}
	if pins.Yellow, err = lookup(cfg.Pins.Yellow); err != nil {
		return nil, err
	}
	if pins.Green, err = lookup(cfg.Pins.Green); err != nil {
		return nil, err
	}
	if pins.Relay, err = lookup(cfg.Pins.Relay); err != nil {
		return nil, err
	}
	if rst, err = lookup(cfg.Pins.RFIDReset); err != nil {
		return nil, err
	}
	if irq, err = lookup(cfg.Pins.RFIDIRQ); err != nil {
		return nil, err
	}

	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("spi open %q: %w", cfg.SPIPort, err)
	}

	rfid, err := mfrc522.NewSPI(port, rst, irq)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("mfrc522: %w", err)
	}

	b, err := newBoard(cfg.Logger, pins, rfid, cfg.ReadTimeout, func() error {
		_ = rfid.Halt()
		return port.Close()
	})
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	cfg.Logger.Printf("hardware ready: rfid=%v spi=%v", rfid, port)
	return b, nil
}

func lookup(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	return p, nil
}
