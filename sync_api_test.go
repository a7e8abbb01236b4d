package usb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handleWithEndpoint(ep EndpointDescriptor, ifaceNum uint8, ft func() *fakeTransfer) (*DeviceHandle, *fakeHandle) {
	cfg := singleAltConfig(1, ifaceNum, ep)
	fd := &fakeDevice{configs: []*ConfigDescriptor{cfg}, activeValue: 1}
	raw := newFakeHandle()
	if ft != nil {
		raw.allocHook = func(int) PlatformTransfer { return ft() }
	}
	d := newDevice(testManager(&fakeDriver{}), fd)
	return newDeviceHandle(d, raw), raw
}

func TestBulkInAutoClaimsOwningInterface(t *testing.T) {
	ep := EndpointDescriptor{Number: 1, Direction: DirectionIn}
	h, raw := handleWithEndpoint(ep, 3, func() *fakeTransfer {
		return &fakeTransfer{nextResult: CompletionResult{OK: true, ActualLength: 3}}
	})

	data, err := h.BulkIn(ep.Address(), 3, time.Second)
	require.NoError(t, err)
	assert.Len(t, data, 3)
	assert.True(t, h.isClaimed(3))
	assert.Equal(t, 1, raw.claimCalls)
}

func TestBulkInSurfacesTransferFailureKind(t *testing.T) {
	ep := EndpointDescriptor{Number: 1, Direction: DirectionIn}
	h, _ := handleWithEndpoint(ep, 0, func() *fakeTransfer {
		return &fakeTransfer{nextResult: CompletionResult{OK: false, Kind: KindPipe}}
	})

	_, err := h.BulkIn(ep.Address(), 3, time.Second)
	assert.Error(t, err)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindPipe, kind)
}

func TestIsoInSurfacesFirstBadPacketStatus(t *testing.T) {
	ep := EndpointDescriptor{Number: 2, Direction: DirectionIn}
	h, _ := handleWithEndpoint(ep, 0, func() *fakeTransfer {
		return &fakeTransfer{nextResult: CompletionResult{
			OK:        true,
			IsoActual: []int{4, 0},
			IsoStatus: []Kind{0, KindOverflow},
		}}
	})

	payloads, err := h.IsoIn(ep.Address(), 2, 4, time.Second)
	require.NotNil(t, payloads, "partial data is still returned alongside the error")
	assert.Error(t, err)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindOverflow, kind)
}

func TestIsoOutReturnsPerPacketActualLength(t *testing.T) {
	ep := EndpointDescriptor{Number: 2, Direction: DirectionOut}
	h, _ := handleWithEndpoint(ep, 0, func() *fakeTransfer {
		return &fakeTransfer{nextResult: CompletionResult{OK: true, IsoActual: []int{2, 2}}}
	})

	actual, err := h.IsoOut(ep.Address(), [][]byte{{1, 2}, {3, 4}}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, actual)
}

func TestFindOwningInterfaceNotFound(t *testing.T) {
	h, _ := handleWithEndpoint(EndpointDescriptor{Number: 1, Direction: DirectionIn}, 0, nil)
	_, err := h.findOwningInterface(0x85)
	assert.Error(t, err)
}
