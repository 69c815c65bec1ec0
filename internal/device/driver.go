package device

import (
	"context"
	"time"

	"github.com/muurk/wifiled/internal/logging"
	"go.uber.org/zap"
)

// DefaultDriverInterval is the polling cadence of a Driver.
const DefaultDriverInterval = 50 * time.Millisecond

// Indicator is the "set indicator on/off" capability of an LED driver.
type Indicator interface {
	SetIndicator(on bool) error
}

// Driver mirrors an LEDFlag onto an Indicator.
type Driver struct {
	flag      *LEDFlag
	indicator Indicator
	interval  time.Duration
}

// NewDriver creates a Driver polling flag every interval.
func NewDriver(flag *LEDFlag, indicator Indicator, interval time.Duration) *Driver {
	if interval <= 0 {
		interval = DefaultDriverInterval
	}
	return &Driver{flag: flag, indicator: indicator, interval: interval}
}

// Run applies the initial flag value, then polls until ctx is done. Indicator
// errors are logged and the value is retried on the next tick.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	applied := false
	var last bool

	for {
		on := d.flag.Load()
		if !applied || on != last {
			if err := d.indicator.SetIndicator(on); err != nil {
				logging.Warn("Failed to set indicator", zap.Bool("on", on), zap.Error(err))
			} else {
				applied, last = true, on
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
