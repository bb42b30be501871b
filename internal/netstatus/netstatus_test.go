package netstatus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestDetector_ShortOutageIsNotRecovery(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	d := NewDetector(clock.now)

	d.ReportStatus(false)
	clock.advance(59 * time.Second)
	d.ReportStatus(true)

	assert.False(t, d.Recovered())
}

func TestDetector_SustainedOutageArmsRecovery(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	d := NewDetector(clock.now)

	d.ReportStatus(false)
	clock.advance(61 * time.Second)
	d.ReportStatus(true)

	assert.True(t, d.Recovered())
}

func TestDetector_RecoveryEdgeIsReadOnce(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	d := NewDetector(clock.now)

	d.ReportStatus(false)
	clock.advance(2 * time.Minute)
	d.ReportStatus(true)

	assert.True(t, d.Recovered())
	assert.False(t, d.Recovered())
}

func TestDetector_DownSinceKeepsFirstOutage(t *testing.T) {
	// Repeated down reports must not restart the outage clock.
	clock := &fakeClock{t: time.Unix(1000, 0)}
	d := NewDetector(clock.now)

	d.ReportStatus(false)
	clock.advance(40 * time.Second)
	d.ReportStatus(false)
	clock.advance(30 * time.Second)
	d.ReportStatus(true)

	assert.True(t, d.Recovered())
}

func TestDetector_UpWithoutOutage(t *testing.T) {
	d := NewDetector(nil)

	d.ReportStatus(true)

	assert.False(t, d.Recovered())
	assert.False(t, d.Down())
}

func TestDetector_Down(t *testing.T) {
	d := NewDetector(nil)

	d.ReportStatus(false)
	assert.True(t, d.Down())

	d.ReportStatus(true)
	assert.False(t, d.Down())
}
