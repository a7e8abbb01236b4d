package usb

import (
	"context"
	"time"
)

// findOwningInterface looks up which interface number owns endpoint
// address ep in the active configuration, so the sync API can auto-claim
// it per §4.H step 1.
func (h *DeviceHandle) findOwningInterface(ep uint8) (int, error) {
	cfg, err := h.dev.ActiveConfig()
	if err != nil {
		return 0, err
	}
	for num, alts := range cfg.AltSettings {
		for _, alt := range alts {
			for _, e := range alt.Endpoints {
				if e.Address() == ep {
					return int(num), nil
				}
			}
		}
	}
	return 0, &Error{Op: "find_owning_interface", Kind: KindNotFound}
}

func (h *DeviceHandle) ensureClaimed(ep uint8) error {
	n, err := h.findOwningInterface(ep)
	if err != nil {
		return err
	}
	return h.ClaimInterface(n)
}

func toCtx(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}

// ControlIn issues a synchronous control-in transfer, per §4.H.
func (h *DeviceHandle) ControlIn(setup ControlSetup, capacity int, timeout time.Duration) ([]byte, error) {
	t := newTransfer(h.raw, xferControl, 0)
	t.buildControl(DirectionIn, setup, nil, capacity, timeout)
	return h.runOne(t, timeout)
}

// ControlOut issues a synchronous control-out transfer, returning the
// number of bytes the driver reports as sent.
func (h *DeviceHandle) ControlOut(setup ControlSetup, payload []byte, timeout time.Duration) (int, error) {
	t := newTransfer(h.raw, xferControl, 0)
	t.buildControl(DirectionOut, setup, payload, 0, timeout)
	data, err := h.runOne(t, timeout)
	return len(data), err
}

// BulkIn issues a synchronous bulk-in transfer on endpoint ep, claiming its
// owning interface first if necessary.
func (h *DeviceHandle) BulkIn(ep uint8, capacity int, timeout time.Duration) ([]byte, error) {
	if err := h.ensureClaimed(ep); err != nil {
		return nil, err
	}
	t := newTransfer(h.raw, xferBulk, 0)
	t.buildBulk(ep, DirectionIn, nil, capacity, timeout, false)
	return h.runOne(t, timeout)
}

// BulkOut issues a synchronous bulk-out transfer, returning bytes sent.
func (h *DeviceHandle) BulkOut(ep uint8, payload []byte, timeout time.Duration) (int, error) {
	if err := h.ensureClaimed(ep); err != nil {
		return 0, err
	}
	t := newTransfer(h.raw, xferBulk, 0)
	t.buildBulk(ep, DirectionOut, payload, 0, timeout, false)
	data, err := h.runOne(t, timeout)
	return len(data), err
}

// InterruptIn issues a synchronous interrupt-in transfer.
func (h *DeviceHandle) InterruptIn(ep uint8, capacity int, timeout time.Duration) ([]byte, error) {
	if err := h.ensureClaimed(ep); err != nil {
		return nil, err
	}
	t := newTransfer(h.raw, xferInterrupt, 0)
	t.buildBulk(ep, DirectionIn, nil, capacity, timeout, true)
	return h.runOne(t, timeout)
}

// InterruptOut issues a synchronous interrupt-out transfer, returning bytes
// sent.
func (h *DeviceHandle) InterruptOut(ep uint8, payload []byte, timeout time.Duration) (int, error) {
	if err := h.ensureClaimed(ep); err != nil {
		return 0, err
	}
	t := newTransfer(h.raw, xferInterrupt, 0)
	t.buildBulk(ep, DirectionOut, payload, 0, timeout, true)
	data, err := h.runOne(t, timeout)
	return len(data), err
}

// IsoIn issues a synchronous isochronous-in transfer of numPackets packets
// of packetCapacity bytes each. Per §4.H, any non-complete per-packet
// status is surfaced as the whole call's error, the first such packet
// deciding the kind.
func (h *DeviceHandle) IsoIn(ep uint8, numPackets, packetCapacity int, timeout time.Duration) ([][]byte, error) {
	if err := h.ensureClaimed(ep); err != nil {
		return nil, err
	}
	t := newTransfer(h.raw, xferIso, numPackets)
	t.buildIso(ep, DirectionIn, nil, numPackets, packetCapacity, timeout)
	if err := t.submit(); err != nil {
		return nil, err
	}
	ctx, cancel := toCtx(timeout)
	defer cancel()
	res, err := t.wait(ctx)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, &Error{Op: "iso_in", Kind: res.Kind}
	}
	// Any packet whose status is not "complete" (zero value) decides the
	// whole call's error kind, the first such packet winning, per §4.H.
	for _, st := range res.IsoStatus {
		if st != 0 {
			return t.isoPayloads(res), &Error{Op: "iso_in", Kind: st}
		}
	}
	return t.isoPayloads(res), nil
}

// IsoOut issues a synchronous isochronous-out transfer of the given
// packets, returning each packet's actual_length.
func (h *DeviceHandle) IsoOut(ep uint8, packets [][]byte, timeout time.Duration) ([]int, error) {
	if err := h.ensureClaimed(ep); err != nil {
		return nil, err
	}
	t := newTransfer(h.raw, xferIso, len(packets))
	t.buildIso(ep, DirectionOut, packets, len(packets), 0, timeout)
	if err := t.submit(); err != nil {
		return nil, err
	}
	ctx, cancel := toCtx(timeout)
	defer cancel()
	res, err := t.wait(ctx)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, &Error{Op: "iso_out", Kind: res.Kind}
	}
	return res.IsoActual, nil
}

// runOne submits t, waits for completion bounded by timeout, and returns
// the completed payload or the failure kind, per §4.H steps 2-4.
func (h *DeviceHandle) runOne(t *Transfer, timeout time.Duration) ([]byte, error) {
	if err := t.submit(); err != nil {
		return nil, err
	}
	ctx, cancel := toCtx(timeout)
	defer cancel()
	res, err := t.wait(ctx)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, &Error{Op: "transfer", Kind: res.Kind}
	}
	return t.payload(res), nil
}
