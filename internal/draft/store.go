package draft

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/transfa/wallet-service/internal/domain"
	"github.com/transfa/wallet-service/internal/store"
)

// Store owns the single persisted draft slot of one wallet client. Both fields
// are written together; a later Save overwrites an earlier one.
type Store struct {
	storage store.Storage
	mu      sync.Mutex
}

func NewStore(storage store.Storage) *Store {
	return &Store{storage: storage}
}

// Save persists draft, replacing whatever was stored before.
func (s *Store) Save(ctx context.Context, draft domain.DraftTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, draft.Recipient.String(), draft.Amount.String())
}

// Load returns the persisted draft. Missing fields, and fields that could not be
// read, come back as empty strings.
func (s *Store) Load(ctx context.Context) domain.DraftTransaction {
	return domain.DraftTransaction{
		Recipient: domain.WalletAddress(s.read(ctx, domain.KeySenderWalletAddress)),
		Amount:    domain.Amount(s.read(ctx, domain.KeySendingAmount)),
	}
}

// Reset clears both fields. Clearing an already empty slot is a no-op.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, "", "")
}

func (s *Store) write(ctx context.Context, recipient, amount string) error {
	if err := s.storage.Write(ctx, domain.KeySenderWalletAddress, recipient); err != nil {
		return fmt.Errorf("write %s: %w", domain.KeySenderWalletAddress, err)
	}
	if err := s.storage.Write(ctx, domain.KeySendingAmount, amount); err != nil {
		return fmt.Errorf("write %s: %w", domain.KeySendingAmount, err)
	}
	return nil
}

func (s *Store) read(ctx context.Context, key string) string {
	value, ok, err := s.storage.Read(ctx, key)
	if err != nil {
		log.Printf("level=warn component=draft msg=\"draft field read failed\" key=%s err=%v", key, err)
		return ""
	}
	if !ok {
		return ""
	}
	return value
}
