// Package hardware binds the station to its GPIO pins and the MFRC522
// reader through periph.
package hardware

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/BrandonDHaskell/Portunus/station/internal/station/types"
)

var (
	ErrHardwareInit = errors.New("hardware init failed")
	ErrClosed       = errors.New("board closed")
)

// uidReader is the part of the MFRC522 driver the board uses.
type uidReader interface {
	ReadUID(timeout time.Duration) ([]byte, error)
	Halt() error
}

// Pins are the resolved GPIO lines.  Inputs are wired active low with the
// internal pull-up enabled.
type Pins struct {
	CardDetect gpio.PinIn
	Stop       gpio.PinIn
	HardStop   gpio.PinIn
	Red        gpio.PinOut
	Yellow     gpio.PinOut
	Green      gpio.PinOut
	Relay      gpio.PinOut
}

// Board implements the controller's Inputs, CardReader and Indicators.
type Board struct {
	logger      *log.Logger
	pins        Pins
	rfid        uidReader
	readTimeout time.Duration
	release     func() error

	mu     sync.Mutex
	closed bool
}

func newBoard(logger *log.Logger, pins Pins, rfid uidReader, readTimeout time.Duration, release func() error) (*Board, error) {
	if logger == nil {
		logger = log.Default()
	}

	for name, p := range map[string]gpio.PinIn{"card_detect": pins.CardDetect, "stop": pins.Stop} {
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("%w: %s input: %v", ErrHardwareInit, name, err)
		}
	}
	if err := pins.HardStop.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("%w: hard_stop input: %v", ErrHardwareInit, err)
	}

	b := &Board{
		logger:      logger,
		pins:        pins,
		rfid:        rfid,
		readTimeout: readTimeout,
		release:     release,
	}
	if err := b.Apply(types.OutputsFor(types.Standby)); err != nil {
		return nil, fmt.Errorf("%w: outputs: %v", ErrHardwareInit, err)
	}
	return b, nil
}

func (b *Board) CardPresent() bool { return b.pins.CardDetect.Read() == gpio.Low }

func (b *Board) StopPressed() bool { return b.pins.Stop.Read() == gpio.Low }

// ReadCardID makes one bounded read attempt.  Any failure yields
// types.NoCard so the caller treats it as a denial.
func (b *Board) ReadCardID() string {
	if b.rfid == nil {
		return types.NoCard
	}
	uid, err := b.rfid.ReadUID(b.readTimeout)
	if err != nil {
		b.logger.Printf("rfid read: %v", err)
		return types.NoCard
	}
	if err := b.rfid.Halt(); err != nil {
		b.logger.Printf("rfid halt: %v", err)
	}
	return types.FormatCardID(uid)
}

// Apply drives the indicators and the relay.  Every pin is written even if
// an earlier one fails.
func (b *Board) Apply(out types.Outputs) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return b.apply(out)
}

func (b *Board) apply(out types.Outputs) error {
	var errs []error
	for _, w := range []struct {
		name string
		pin  gpio.PinOut
		on   bool
	}{
		{"red", b.pins.Red, out.Red},
		{"yellow", b.pins.Yellow, out.Yellow},
		{"green", b.pins.Green, out.Green},
		{"relay", b.pins.Relay, out.Relay},
	} {
		if err := w.pin.Out(level(w.on)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", w.name, err))
		}
	}
	return errors.Join(errs...)
}

// Close drives the outputs to the Reset configuration and releases the SPI
// port.  Safe to call more than once.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	err := b.apply(types.OutputsFor(types.Reset))
	if b.release != nil {
		err = errors.Join(err, b.release())
	}
	return err
}

func level(on bool) gpio.Level {
	if on {
		return gpio.High
	}
	return gpio.Low
}
