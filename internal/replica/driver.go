package replica

import "time"

// PeriodicDriver owns the two timers described in spec §4.5: try_ship at
// ShipInterval and garbage_collect every 10s. Each tick is posted to the
// replica's own inbox as an ordinary message rather than invoked as a
// direct call, so a tick is never reentrant with an in-flight handler
// (spec §9, "Open question — self-call to garbage_collect_deltas").
type PeriodicDriver struct {
	replica *Replica

	shipTicker *time.Ticker
	gcTicker   *time.Ticker

	stop chan struct{}
	done chan struct{}
}

const gcInterval = 10 * time.Second

// NewPeriodicDriver builds a driver for replica, firing try_ship every
// shipInterval (default 50ms when zero) and garbage_collect every 10s.
func NewPeriodicDriver(r *Replica, shipInterval time.Duration) *PeriodicDriver {
	if shipInterval <= 0 {
		shipInterval = 50 * time.Millisecond
	}
	return &PeriodicDriver{
		replica:    r,
		shipTicker: time.NewTicker(shipInterval),
		gcTicker:   time.NewTicker(gcInterval),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the driver's tick loop in its own goroutine until Stop is
// called.
func (d *PeriodicDriver) Start() {
	go func() {
		defer close(d.done)
		for {
			select {
			case <-d.shipTicker.C:
				d.replica.postTryShip()
			case <-d.gcTicker.C:
				d.replica.postGcTick()
			case <-d.stop:
				return
			}
		}
	}()
}

// Stop halts the timers and waits for the tick loop to exit. It does not
// stop the replica actor itself.
func (d *PeriodicDriver) Stop() {
	d.shipTicker.Stop()
	d.gcTicker.Stop()
	close(d.stop)
	<-d.done
}
