/**
 * @description
 * The bridge gate answers one question: can the wallet's key-value store be
 * reached right now? Every flow that touches persisted wallet state asks it once
 * before reading or submitting. The gate performs a single bounded check and
 * never retries on its own; retry policy belongs to the caller.
 *
 * @dependencies
 * - internal/store: the backend probe.
 * - internal/domain: ErrBridgeUnavailable.
 */

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/transfa/wallet-service/internal/domain"
	"github.com/transfa/wallet-service/internal/store"
)

// DefaultWait bounds a single readiness probe.
const DefaultWait = 3 * time.Second

// Gate reports whether the storage bridge is usable.
// (false, nil) means "not ready yet"; a non-nil error wraps domain.ErrBridgeUnavailable.
type Gate interface {
	AwaitReady(ctx context.Context) (bool, error)
}

// GateFunc adapts a function to the Gate interface.
type GateFunc func(ctx context.Context) (bool, error)

func (f GateFunc) AwaitReady(ctx context.Context) (bool, error) {
	return f(ctx)
}

// Always is a Gate that is permanently ready.
var Always Gate = GateFunc(func(context.Context) (bool, error) { return true, nil })

// ProbeGate pings a storage backend once, bounded by Wait.
type ProbeGate struct {
	probe store.Pinger
	wait  time.Duration
}

// NewProbeGate creates a gate over probe. A non-positive wait falls back to DefaultWait.
func NewProbeGate(probe store.Pinger, wait time.Duration) *ProbeGate {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &ProbeGate{probe: probe, wait: wait}
}

func (g *ProbeGate) AwaitReady(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if g.probe == nil {
		return false, fmt.Errorf("%w: no storage probe configured", domain.ErrBridgeUnavailable)
	}

	probeCtx, cancel := context.WithTimeout(ctx, g.wait)
	defer cancel()

	err := g.probe.Ping(probeCtx)
	if err == nil {
		return true, nil
	}
	// The caller going away is not a bridge fault.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		log.Printf("level=warn component=bridge msg=\"storage probe timed out\" wait=%s", g.wait)
		return false, nil
	}
	log.Printf("level=warn component=bridge msg=\"storage probe failed\" err=%v", err)
	return false, fmt.Errorf("%w: %v", domain.ErrBridgeUnavailable, err)
}
