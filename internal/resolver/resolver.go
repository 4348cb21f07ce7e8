/**
 * @description
 * The resolver reads the wallet's own address from the client store. The native
 * side may still be writing it when a screen opens, so a missing value is retried
 * a bounded number of times at a fixed interval. The bridge itself is checked once
 * per chain: an unavailable bridge aborts immediately.
 *
 * Only the newest chain is live. Starting a new resolution cancels the previous
 * one, and only the newest chain may publish its result to Current().
 *
 * @dependencies
 * - internal/bridge: readiness gate.
 * - internal/store: key-value reads.
 */

package resolver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/transfa/wallet-service/internal/bridge"
	"github.com/transfa/wallet-service/internal/domain"
	"github.com/transfa/wallet-service/internal/store"
)

var (
	// ErrResolutionSuperseded is returned to the caller of a chain replaced by a newer Resolve.
	ErrResolutionSuperseded = errors.New("address resolution superseded")
	// ErrResolverClosed is returned once the resolver has been torn down.
	ErrResolverClosed = errors.New("address resolver closed")
)

// Policy bounds a resolution chain.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultPolicy reads up to three times, one second apart.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Interval: time.Second}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Interval < 0 {
		p.Interval = def.Interval
	}
	return p
}

// Resolver resolves and caches the wallet identity of one client.
type Resolver struct {
	gate    bridge.Gate
	storage store.Storage
	policy  Policy

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelCauseFunc
	closed     bool
	resolved   bool
	address    domain.WalletAddress
}

func New(gate bridge.Gate, storage store.Storage, policy Policy) *Resolver {
	if gate == nil {
		gate = bridge.Always
	}
	return &Resolver{
		gate:    gate,
		storage: storage,
		policy:  policy.normalized(),
	}
}

// Resolve runs one resolution chain. An exhausted chain returns
// domain.PlaceholderAddress with a nil error.
func (r *Resolver) Resolve(ctx context.Context) (domain.WalletAddress, domain.BridgeReadiness, error) {
	chainCtx, generation, err := r.start(ctx)
	if err != nil {
		return domain.PlaceholderAddress, domain.BridgeReadiness{}, err
	}
	defer r.finish(generation)

	readiness := domain.BridgeReadiness{}

	ready, err := r.gate.AwaitReady(chainCtx)
	if err != nil {
		if cause := chainCause(chainCtx); cause != nil {
			return domain.PlaceholderAddress, readiness, cause
		}
		if !errors.Is(err, domain.ErrBridgeUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrBridgeUnavailable, err)
		}
		return domain.PlaceholderAddress, readiness, err
	}
	if !ready {
		return domain.PlaceholderAddress, readiness, domain.ErrBridgeUnavailable
	}
	readiness.Ready = true

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		readiness.Attempts = attempt

		value, ok, err := r.storage.Read(chainCtx, domain.KeyWalletAddress)
		if cause := chainCause(chainCtx); cause != nil {
			return domain.PlaceholderAddress, readiness, cause
		}
		if err != nil {
			log.Printf("level=warn component=resolver msg=\"wallet address read failed\" attempt=%d err=%v", attempt, err)
			ok = false
		}
		if ok && acceptable(value) {
			address := domain.WalletAddress(value)
			if !r.commit(generation, address, true) {
				return domain.PlaceholderAddress, readiness, ErrResolutionSuperseded
			}
			return address, readiness, nil
		}

		if attempt == r.policy.MaxAttempts {
			break
		}
		timer := time.NewTimer(r.policy.Interval)
		select {
		case <-chainCtx.Done():
			timer.Stop()
			return domain.PlaceholderAddress, readiness, chainCause(chainCtx)
		case <-timer.C:
		}
	}

	log.Printf("level=info component=resolver msg=\"wallet address unresolved\" attempts=%d", readiness.Attempts)
	if !r.commit(generation, "", false) {
		return domain.PlaceholderAddress, readiness, ErrResolutionSuperseded
	}
	return domain.PlaceholderAddress, readiness, nil
}

// Current returns the last address published by a completed chain, or the
// placeholder when none has resolved.
func (r *Resolver) Current() (domain.WalletAddress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.resolved {
		return domain.PlaceholderAddress, false
	}
	return r.address, true
}

// Forget drops the cached identity, e.g. after logout.
func (r *Resolver) Forget() {
	r.mu.Lock()
	r.resolved = false
	r.address = ""
	r.mu.Unlock()
}

// Close abandons any pending chain. Later calls to Resolve fail with ErrResolverClosed.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.resolved = false
	r.address = ""
	if r.cancel != nil {
		r.cancel(ErrResolverClosed)
		r.cancel = nil
	}
}

func (r *Resolver) start(ctx context.Context) (context.Context, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, 0, ErrResolverClosed
	}
	if r.cancel != nil {
		r.cancel(ErrResolutionSuperseded)
	}
	chainCtx, cancel := context.WithCancelCause(ctx)
	r.generation++
	r.cancel = cancel
	return chainCtx, r.generation, nil
}

func (r *Resolver) finish(generation uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation == generation && r.cancel != nil {
		r.cancel(nil)
		r.cancel = nil
	}
}

func (r *Resolver) commit(generation uint64, address domain.WalletAddress, resolved bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.generation != generation {
		return false
	}
	r.resolved = resolved
	r.address = address
	return true
}

func chainCause(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return context.Cause(ctx)
}

// acceptable mirrors what the wallet client considers a stored identity.
func acceptable(value string) bool {
	return value != "" && domain.WalletAddress(value) != domain.PlaceholderAddress && len(value) > 2
}
