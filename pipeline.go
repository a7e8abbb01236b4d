package usb

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// cancelPollInterval is how often Close polls for every transfer to reach a
// terminal callback after cancellation, per §9's clarified open question
// (libusb has no synchronous "join this transfer" primitive).
const cancelPollInterval = 10 * time.Millisecond

// PipelineConfig parametrizes a PipelineEndpoint, per §4.I.
type PipelineConfig struct {
	Depth           int // N >= 1 transfers kept in flight
	PacketSize      int // bytes per transfer
	ChannelCapacity int // buffered deliveries
	Timeout         time.Duration
}

// PipelineEndpoint sustains maximum read throughput on a bulk or interrupt
// in endpoint by keeping Depth transfers in flight and delivering completed
// payloads over a bounded channel to one consumer, per §4.I.
//
// Ordering guarantee: deliveries preserve wire order only when Depth == 1;
// for Depth > 1 the driver may complete transfers out of submission order.
type PipelineEndpoint struct {
	h   *DeviceHandle
	ep  uint8
	cfg PipelineConfig

	deliveries chan []byte
	drain      *semaphore.Weighted // released once per transfer reaching terminal

	transfers []*Transfer
	cancelled atomic.Bool
}

// OpenPipelineIn claims ep's owning interface and starts cfg.Depth
// always-resubmitted transfers feeding a single delivery channel, per
// §4.I "Construction".
func (h *DeviceHandle) OpenPipelineIn(ep uint8, cfg PipelineConfig) (*PipelineEndpoint, error) {
	if cfg.Depth < 1 {
		cfg.Depth = 1
	}
	if err := h.ensureClaimed(ep); err != nil {
		return nil, err
	}

	p := &PipelineEndpoint{
		h:          h,
		ep:         ep,
		cfg:        cfg,
		deliveries: make(chan []byte, cfg.ChannelCapacity),
		drain:      semaphore.NewWeighted(int64(cfg.Depth)),
		transfers:  make([]*Transfer, cfg.Depth),
	}

	// Every in-flight transfer holds one unit of drain's capacity until
	// it reaches a terminal callback; Close() waits to reacquire all of
	// it, which only happens once every transfer has terminated.
	if err := p.drain.Acquire(context.Background(), int64(cfg.Depth)); err != nil {
		return nil, wrapErr("open_pipeline_in", KindOther, err)
	}

	for i := 0; i < cfg.Depth; i++ {
		t := newTransfer(h.raw, xferBulk, 0)
		t.buildBulk(ep, DirectionIn, nil, cfg.PacketSize, cfg.Timeout, false)
		p.transfers[i] = t
		if err := t.slot.Submit(p.onComplete(t)); err != nil {
			// This transfer and the ones not yet started never reach a
			// terminal callback: return their units so Close can drain.
			p.drain.Release(int64(cfg.Depth - i))
			t.slot.Free()
			p.transfers[i] = nil
			// best-effort: tear down what we already started.
			p.Close()
			return nil, err
		}
	}
	return p, nil
}

// onComplete builds the per-transfer completion handler described in §4.I.
func (p *PipelineEndpoint) onComplete(t *Transfer) func(CompletionResult) {
	return func(res CompletionResult) {
		if !res.OK {
			switch res.Kind {
			case KindPipe:
				if err := p.h.raw.ClearHalt(p.ep); err == nil {
					if err := t.slot.Submit(p.onComplete(t)); err == nil {
						return
					}
				}
			case KindCancelled, KindNoDevice:
				// terminal, no resubmit.
			default:
				// terminal, no resubmit.
			}
			p.drain.Release(1)
			return
		}

		buf := make([]byte, res.ActualLength)
		copy(buf, t.buf[:res.ActualLength])
		select {
		case p.deliveries <- buf:
		default:
			// Channel full: drop this delivery rather than block the
			// event pump, per §4.I's backpressure policy.
			Log.Begin().Error("pipeline ep 0x%02x: delivery channel full, dropping %d bytes", p.ep, len(buf)).Flush()
		}

		if p.cancelled.Load() {
			p.drain.Release(1)
			return
		}

		if err := t.slot.Submit(p.onComplete(t)); err != nil {
			p.drain.Release(1)
		}
	}
}

// Next returns the next delivered payload, or ok=false if the pipeline has
// been closed and drained.
func (p *PipelineEndpoint) Next(ctx context.Context) (data []byte, ok bool) {
	select {
	case b, open := <-p.deliveries:
		return b, open
	case <-ctx.Done():
		return nil, false
	}
}

// Close cancels every in-flight transfer and blocks until each has reached
// a terminal callback before returning, per §4.I "Cancellation / drop" and
// invariant 7 of §8.
func (p *PipelineEndpoint) Close() {
	p.cancelled.Store(true)
	for _, t := range p.transfers {
		if t != nil {
			_ = t.cancel()
		}
	}
	ctx := context.Background()
	for {
		acquireCtx, cancel := context.WithTimeout(ctx, cancelPollInterval)
		err := p.drain.Acquire(acquireCtx, int64(p.cfg.Depth))
		cancel()
		if err == nil {
			close(p.deliveries)
			return
		}
	}
}
