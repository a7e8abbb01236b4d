package usb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventPumpIdleUntilDeviceOpened(t *testing.T) {
	drv := &fakeDriver{}
	p := newEventPump(drv)
	p.start()
	defer p.stop()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, drv.calls(), "pump must not call HandleEvents while deviceCount == 0")

	p.openDevice()
	assert.Eventually(t, func() bool { return drv.calls() > 0 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, p.count())

	p.closeDevice()
	assert.Equal(t, 0, p.count())
}

func TestEventPumpStopIsIdempotent(t *testing.T) {
	drv := &fakeDriver{}
	p := newEventPump(drv)
	p.start()
	p.stop()
	p.stop() // must not hang or panic
}

func TestEventPumpCloseDeviceNeverGoesNegative(t *testing.T) {
	drv := &fakeDriver{}
	p := newEventPump(drv)
	p.closeDevice()
	assert.Equal(t, 0, p.count())
}
