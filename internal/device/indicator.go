package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/muurk/wifiled/internal/logging"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// LogIndicator reports indicator changes through the logger.
type LogIndicator struct{}

// SetIndicator implements Indicator.
func (LogIndicator) SetIndicator(on bool) error {
	logging.Info("LED changed", zap.Bool("on", on))
	return nil
}

// GPIOIndicator drives an LED on a GPIO pin through periph.io.
type GPIOIndicator struct {
	pin gpio.PinOut
}

var (
	hostOnce sync.Once
	hostErr  error
)

// NewGPIOIndicator initializes the host drivers and looks up the named pin,
// e.g. "GPIO2". The pin is driven low.
func NewGPIOIndicator(name string) (*GPIOIndicator, error) {
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})
	if hostErr != nil {
		return nil, fmt.Errorf("failed to initialize GPIO host drivers: %w", hostErr)
	}

	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("GPIO pin %q not found", name)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("failed to configure %s as output: %w", name, err)
	}
	logging.Info("GPIO indicator ready", zap.String("pin", p.Name()))
	return &GPIOIndicator{pin: p}, nil
}

// SetIndicator implements Indicator.
func (g *GPIOIndicator) SetIndicator(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	return g.pin.Out(level)
}

// Multi fans a value out to several indicators.
type Multi []Indicator

// SetIndicator implements Indicator. Every indicator is called; errors are joined.
func (m Multi) SetIndicator(on bool) error {
	var errs []error
	for _, ind := range m {
		if err := ind.SetIndicator(on); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
