/**
 * @description
 * This file contains the core business logic of the wallet-service. The `Service`
 * keeps one transfer session per wallet client and exposes the identity and
 * payment-code operations the wallet screens call.
 *
 * Key features:
 * - Every client gets its own storage namespace, draft slot, address resolver and
 *   transfer orchestrator, created on first use.
 * - Sessions idle for longer than the configured TTL are evicted by the sweeper,
 *   except while a transfer is being submitted.
 * - Notices raised by an orchestrator are logged and published to RabbitMQ.
 *
 * @dependencies
 * - internal/bridge, internal/resolver, internal/draft, internal/transfer: session parts.
 * - internal/store: the shared storage backend.
 * - pkg/rabbitmq: event publication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/transfa/wallet-service/internal/bridge"
	"github.com/transfa/wallet-service/internal/domain"
	"github.com/transfa/wallet-service/internal/draft"
	"github.com/transfa/wallet-service/internal/paycode"
	"github.com/transfa/wallet-service/internal/resolver"
	"github.com/transfa/wallet-service/internal/store"
	"github.com/transfa/wallet-service/internal/transfer"
	"github.com/transfa/wallet-service/pkg/rabbitmq"
)

var (
	// ErrMissingClientID is returned when an operation is called without a client identity.
	ErrMissingClientID = errors.New("client id is required")
	// ErrIdentityUnresolved is returned when the caller's own wallet address is not known yet.
	ErrIdentityUnresolved = errors.New("wallet address not resolved")
)

// DefaultSessionIdleTTL is how long an untouched session is kept.
const DefaultSessionIdleTTL = 30 * time.Minute

// Options tunes the sessions created by the Service.
type Options struct {
	ResolvePolicy  resolver.Policy
	SubmitTimeout  time.Duration
	SessionIdleTTL time.Duration
}

type clientSession struct {
	clientID     string
	storage      store.Storage
	drafts       *draft.Store
	resolver     *resolver.Resolver
	orchestrator *transfer.Orchestrator
	lastSeen     time.Time
}

// Service provides the wallet-service use cases.
type Service struct {
	storage   store.Storage
	gate      bridge.Gate
	submitter transfer.Submitter
	publisher rabbitmq.Publisher
	opts      Options
	now       func() time.Time

	mu      sync.Mutex
	clients map[string]*clientSession
}

// NewService creates a new wallet service instance.
func NewService(storage store.Storage, gate bridge.Gate, submitter transfer.Submitter, publisher rabbitmq.Publisher, opts Options) *Service {
	if gate == nil {
		gate = bridge.Always
	}
	if publisher == nil {
		publisher = &rabbitmq.EventProducerFallback{}
	}
	if opts.SessionIdleTTL <= 0 {
		opts.SessionIdleTTL = DefaultSessionIdleTTL
	}
	return &Service{
		storage:   storage,
		gate:      gate,
		submitter: submitter,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
		clients:   make(map[string]*clientSession),
	}
}

// session returns the client's session, creating it on first use.
func (s *Service) session(clientID string) (*clientSession, error) {
	id := strings.TrimSpace(clientID)
	if id == "" {
		return nil, ErrMissingClientID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cs, ok := s.clients[id]; ok {
		cs.lastSeen = s.now()
		return cs, nil
	}

	scoped := store.Scoped(s.storage, id)
	drafts := draft.NewStore(scoped)
	res := resolver.New(s.gate, scoped, s.opts.ResolvePolicy)
	cs := &clientSession{
		clientID: id,
		storage:  scoped,
		drafts:   drafts,
		resolver: res,
		orchestrator: transfer.New(transfer.Deps{
			Drafts:        drafts,
			Resolver:      res,
			Gate:          s.gate,
			Submitter:     s.submitter,
			Notifier:      newEventNotifier(id, s.publisher),
			SubmitTimeout: s.opts.SubmitTimeout,
		}),
		lastSeen: s.now(),
	}
	s.clients[id] = cs
	log.Printf("level=info component=app msg=\"session created\" client_id=%s", id)
	return cs, nil
}

// Transfers returns the transfer orchestrator of a client.
func (s *Service) Transfers(clientID string) (*transfer.Orchestrator, error) {
	cs, err := s.session(clientID)
	if err != nil {
		return nil, err
	}
	return cs.orchestrator, nil
}

// ResolveAddress resolves the client's own wallet address. An unresolved
// identity is reported as the placeholder with a nil error. An identity resolved
// earlier in the session is returned from the resolver cache.
func (s *Service) ResolveAddress(ctx context.Context, clientID string) (domain.WalletAddress, domain.BridgeReadiness, error) {
	cs, err := s.session(clientID)
	if err != nil {
		return domain.PlaceholderAddress, domain.BridgeReadiness{}, err
	}
	if address, ok := cs.resolver.Current(); ok {
		return address, domain.BridgeReadiness{Ready: true}, nil
	}
	return cs.resolver.Resolve(ctx)
}

// BindWallet records the wallet address of a client after wallet creation or recovery.
func (s *Service) BindWallet(ctx context.Context, clientID string, address domain.WalletAddress) error {
	if !address.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidAddress, address)
	}
	cs, err := s.session(clientID)
	if err != nil {
		return err
	}
	if err := cs.storage.Write(ctx, domain.KeyWalletAddress, address.String()); err != nil {
		return fmt.Errorf("store wallet address: %w", err)
	}
	cs.resolver.Forget()
	log.Printf("level=info component=app msg=\"wallet bound\" client_id=%s wallet=%s", cs.clientID, address.Short())
	return nil
}

// ForgetWallet logs the client out: the stored identity, key material and draft
// are cleared and the session is dropped.
func (s *Service) ForgetWallet(ctx context.Context, clientID string) error {
	cs, err := s.session(clientID)
	if err != nil {
		return err
	}
	err = cs.orchestrator.Logout(ctx, func(ctx context.Context) error {
		for _, key := range []string{domain.KeyWalletAddress, domain.KeyPrivateKey} {
			if err := cs.storage.Write(ctx, key, ""); err != nil {
				return fmt.Errorf("clear %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.clients[cs.clientID] == cs {
		delete(s.clients, cs.clientID)
	}
	s.mu.Unlock()

	log.Printf("level=info component=app msg=\"wallet forgotten\" client_id=%s", cs.clientID)
	return nil
}

// EncodePaymentCode renders the client's own payment code. A nil amount yields an
// identity code; an explicit amount must be usable.
func (s *Service) EncodePaymentCode(ctx context.Context, clientID string, amount *domain.Amount) (string, error) {
	address, _, err := s.ResolveAddress(ctx, clientID)
	if err != nil {
		return "", err
	}
	if address.IsPlaceholder() {
		return "", ErrIdentityUnresolved
	}

	var requested domain.Amount
	if amount != nil {
		if !amount.Usable() {
			return "", fmt.Errorf("%w: %q", domain.ErrInvalidAmount, *amount)
		}
		requested = *amount
	}
	return paycode.Encode(address, requested)
}

// DecodePaymentCode parses scanned text without touching any session.
func (s *Service) DecodePaymentCode(text string) (domain.PaymentPayload, error) {
	return paycode.Decode(text)
}

// Prefill returns the persisted draft so a send form can be refilled.
func (s *Service) Prefill(ctx context.Context, clientID string) (domain.DraftTransaction, error) {
	cs, err := s.session(clientID)
	if err != nil {
		return domain.DraftTransaction{}, err
	}
	return cs.drafts.Load(ctx), nil
}

// EvictIdle closes sessions not used for longer than the idle TTL. Sessions with
// a submission in flight are kept. It returns the number of evicted sessions.
func (s *Service) EvictIdle() int {
	cutoff := s.now().Add(-s.opts.SessionIdleTTL)

	s.mu.Lock()
	var evicted []*clientSession
	for id, cs := range s.clients {
		if cs.lastSeen.After(cutoff) {
			continue
		}
		if cs.orchestrator.Snapshot().Phase == domain.PhaseSubmitting {
			continue
		}
		delete(s.clients, id)
		evicted = append(evicted, cs)
	}
	s.mu.Unlock()

	for _, cs := range evicted {
		cs.orchestrator.Close()
	}
	if len(evicted) > 0 {
		log.Printf("level=info component=app msg=\"idle sessions evicted\" count=%d", len(evicted))
	}
	return len(evicted)
}

// SessionCount reports the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close tears down every session.
func (s *Service) Close() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[string]*clientSession)
	s.mu.Unlock()

	for _, cs := range clients {
		cs.orchestrator.Close()
	}
}
