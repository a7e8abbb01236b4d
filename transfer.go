package usb

import (
	"context"
	"sync/atomic"
	"time"
)

// transferKind distinguishes the four buffer/submit layouts a Transfer can
// take, per §4.G "Layout".
type transferKind int

const (
	xferControl transferKind = iota
	xferBulk
	xferInterrupt
	xferIso
)

// Transfer owns one submission's buffer, metadata, and completion signalling
// across the driver callback boundary, per §4.G. Between Submit and
// completion the driver logically owns the transfer; exactly one strong
// reference to the owner record exists, and its release is driven by the
// completion callback (or, on submit failure, immediately by the caller).
type Transfer struct {
	kind    transferKind
	slot    PlatformTransfer
	buf     []byte
	setup   int // leading setup-header length, nonzero only for control
	timeout time.Duration

	// isoLengths are the requested per-packet lengths passed to FillIso;
	// isoOffsets are their cumulative byte offsets within buf.
	isoLengths []int
	isoOffsets []int

	// done is the single-slot completion channel. Sent to exactly once,
	// by the completion callback; never closed (a dropped receiver is
	// not an error, per §9's oneshot-channel restatement).
	done chan CompletionResult

	// delivered guards against the completion callback firing twice and
	// against Cancel racing a just-delivered completion.
	delivered atomic.Bool
	result    CompletionResult
}

// newTransfer allocates the driver-side slot for kind and wraps it. handle
// must already have the owning interface claimed for non-control transfers,
// per §4.H step 1.
func newTransfer(h PlatformHandle, kind transferKind, numIsoPackets int) *Transfer {
	return &Transfer{
		kind: kind,
		slot: h.AllocTransfer(numIsoPackets),
		done: make(chan CompletionResult, 1),
	}
}

// buildControl lays out the 8-byte setup header followed by the payload
// region, per §4.G "Build". For an out-control, payload is copied in; for an
// in-control, capacity bytes are reserved and left zeroed.
func (t *Transfer) buildControl(dir Direction, setup ControlSetup, payload []byte, capacity int, timeout time.Duration) {
	length := capacity
	if dir == DirectionOut {
		length = len(payload)
	}
	t.buf = make([]byte, controlSetupSize+length)
	t.setup = controlSetupSize
	packSetup(t.buf, dir, setup, uint16(length))
	if dir == DirectionOut {
		copy(t.buf[controlSetupSize:], payload)
	}
	t.timeout = timeout
	t.slot.FillControl(t.buf, timeout)
}

// buildBulk lays out a flat payload buffer, used for both bulk and
// interrupt transfers (§4.G "Build": "set endpoint address... copy the
// payload for outbound").
func (t *Transfer) buildBulk(ep uint8, dir Direction, payload []byte, capacity int, timeout time.Duration, interrupt bool) {
	length := capacity
	if dir == DirectionOut {
		length = len(payload)
	}
	t.buf = make([]byte, length)
	if dir == DirectionOut {
		copy(t.buf, payload)
	}
	t.timeout = timeout
	addr := endpointAddress(ep, dir)
	if interrupt {
		t.slot.FillInterrupt(addr, t.buf, timeout)
	} else {
		t.slot.FillBulk(addr, t.buf, timeout)
	}
}

// buildIso lays out num_packets*packet_capacity for inbound, or the
// concatenation of the caller's packets for outbound, with a per-packet
// length table set before submit (§9's fixed policy for mixed-size
// iso-out packets).
func (t *Transfer) buildIso(ep uint8, dir Direction, packets [][]byte, numPackets, packetCapacity int, timeout time.Duration) {
	if dir == DirectionIn {
		t.isoLengths = make([]int, numPackets)
		for i := range t.isoLengths {
			t.isoLengths[i] = packetCapacity
		}
		t.buf = make([]byte, numPackets*packetCapacity)
	} else {
		t.isoLengths = make([]int, len(packets))
		total := 0
		for i, p := range packets {
			t.isoLengths[i] = len(p)
			total += len(p)
		}
		t.buf = make([]byte, 0, total)
		for _, p := range packets {
			t.buf = append(t.buf, p...)
		}
	}
	t.isoOffsets = make([]int, len(t.isoLengths))
	off := 0
	for i, l := range t.isoLengths {
		t.isoOffsets[i] = off
		off += l
	}
	t.timeout = timeout
	addr := endpointAddress(ep, dir)
	t.slot.FillIso(addr, t.buf, t.isoLengths, timeout)
}

// submit hands the transfer to the driver, per §4.G "Submit protocol". On
// immediate failure the slot is freed here since the driver never took
// ownership.
func (t *Transfer) submit() error {
	err := t.slot.Submit(t.onComplete)
	if err != nil {
		t.slot.Free()
		return err
	}
	return nil
}

// onComplete runs on the event pump thread (§4.G "Completion callback").
// It is installed exactly once per submit and is guaranteed by the driver
// to fire exactly once.
func (t *Transfer) onComplete(res CompletionResult) {
	if t.delivered.Swap(true) {
		return
	}
	t.result = res
	select {
	case t.done <- res:
	default:
		// The one-slot buffer already holds a result; drop this one. A
		// receiver that stopped waiting never blocks the send, since the
		// buffer keeps the result (a dropped receiver is not an error,
		// per §9).
	}
	t.slot.Free()
}

// wait suspends until completion or ctx is done. Suspension is
// cancellation-safe: dropping ctx does not race the driver, which still
// owns the transfer until its own completion callback fires (§5).
func (t *Transfer) wait(ctx context.Context) (CompletionResult, error) {
	select {
	case res := <-t.done:
		return res, nil
	case <-ctx.Done():
		return CompletionResult{}, ctx.Err()
	}
}

// cancel requests driver cancellation. Idempotent: once the transfer has
// already been delivered, this is a no-op returning KindNotFound (§4.G
// "Cancellation", invariant 5 of §8).
func (t *Transfer) cancel() error {
	if t.delivered.Load() {
		return &Error{Op: "cancel", Kind: KindNotFound}
	}
	return t.slot.Cancel()
}

// payload returns the data region for a completed transfer, per §4.G "Data
// access": control transfers skip the leading setup header; bulk/interrupt
// and iso use actual_length directly or per packet.
func (t *Transfer) payload(res CompletionResult) []byte {
	if t.kind == xferControl {
		return t.buf[t.setup : t.setup+res.ActualLength]
	}
	return t.buf[:res.ActualLength]
}

// isoPayloads slices the buffer per packet using each packet's own
// actual_length, per §4.G's iso data-access rule.
func (t *Transfer) isoPayloads(res CompletionResult) [][]byte {
	out := make([][]byte, len(t.isoOffsets))
	for i, off := range t.isoOffsets {
		actual := 0
		if i < len(res.IsoActual) {
			actual = res.IsoActual[i]
		}
		out[i] = t.buf[off : off+actual]
	}
	return out
}

// CancelToken lets any goroutine cancel an outstanding Transfer, per §4.G
// "Cancellation". Safe to call from a goroutine other than the one that
// submitted the transfer or the one awaiting it.
type CancelToken struct {
	t *Transfer
}

// Cancel issues the driver's cancel on the underlying transfer slot.
// Idempotent; a call after completion is a no-op returning KindNotFound.
func (c CancelToken) Cancel() error {
	return c.t.cancel()
}
