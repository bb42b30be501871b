// Package netstatus tracks connectivity reported by the transport and
// distinguishes transient blips from sustained outages.
package netstatus

import (
	"sync"
	"time"
)

// recoveryThreshold is how long connectivity must have been lost for
// the up edge to count as a recovery.
const recoveryThreshold = 60 * time.Second

// Detector is a small hysteresis state machine. Transports report
// status after each request; consumers poll Recovered to learn that a
// sustained outage just ended (typically to reconnect or re-resolve).
type Detector struct {
	now func() time.Time

	mu        sync.Mutex
	downSince time.Time
	recovered bool
}

// NewDetector creates a detector. now may be nil, in which case
// time.Now is used; tests inject a fake clock.
func NewDetector(now func() time.Time) *Detector {
	if now == nil {
		now = time.Now
	}

	return &Detector{now: now}
}

// ReportStatus records the outcome of a transport operation. An up
// report after more than recoveryThreshold of downtime arms the
// recovery edge; any up report clears the outage start.
func (d *Detector) ReportStatus(up bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if up {
		if !d.downSince.IsZero() && d.now().Sub(d.downSince) > recoveryThreshold {
			d.recovered = true
		}

		d.downSince = time.Time{}

		return
	}

	if d.downSince.IsZero() {
		d.downSince = d.now()
	}
}

// Recovered reports whether a sustained outage just ended. The edge is
// read-once: repeated calls without an intervening outage return false.
func (d *Detector) Recovered() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.recovered {
		d.recovered = false

		return true
	}

	return false
}

// Down reports whether the last status report was an outage. Unlike
// Recovered it does not consume any state, so it is safe for health
// endpoints to call.
func (d *Detector) Down() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return !d.downSince.IsZero()
}
