package hardware

import (
	"context"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// edgePoll bounds each WaitForEdge call so the watcher notices
// cancellation.
const edgePoll = 200 * time.Millisecond

// WatchHardStop calls onStop for every falling edge on the hard-stop pin
// until ctx ends.  onStop runs on the watcher goroutine and must only set a
// flag.
func (b *Board) WatchHardStop(ctx context.Context, onStop func()) {
	pin := b.pins.HardStop
	for {
		if ctx.Err() != nil {
			return
		}
		if pin.WaitForEdge(edgePoll) && pin.Read() == gpio.Low {
			onStop()
		}
	}
}
