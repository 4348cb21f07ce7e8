/**
 * @description
 * This file defines the key-value storage contract the wallet-service depends on.
 * The wallet client (or its native bridge) persists its identity and in-flight
 * transfer fields under well-known keys; this service only reads and writes them
 * through the `Storage` interface, so the backing engine (memory, Redis, Postgres,
 * SQLite) can be swapped without touching the business logic.
 *
 * @dependencies
 * - context, errors, strings: Standard Go libraries.
 */

package store

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyKey is returned when a caller passes a blank key.
var ErrEmptyKey = errors.New("storage key must not be empty")

// Storage is the read/write contract of the client's durable key-value store.
// Read reports ok=false when the key has never been written.
type Storage interface {
	Read(ctx context.Context, key string) (value string, ok bool, err error)
	Write(ctx context.Context, key, value string) error
}

// Pinger is implemented by backends that can report their own availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend is a Storage that can also be probed and closed.
type Backend interface {
	Storage
	Pinger
	Close() error
}

// scoped namespaces every key with a client identifier.
type scoped struct {
	inner     Storage
	namespace string
}

// Scoped returns a Storage whose keys are prefixed with namespace. Each wallet
// client gets its own namespace so drafts and identities never mix.
func Scoped(inner Storage, namespace string) Storage {
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		return inner
	}
	return &scoped{inner: inner, namespace: ns}
}

func (s *scoped) key(key string) string {
	return s.namespace + ":" + key
}

func (s *scoped) Read(ctx context.Context, key string) (string, bool, error) {
	if strings.TrimSpace(key) == "" {
		return "", false, ErrEmptyKey
	}
	return s.inner.Read(ctx, s.key(key))
}

func (s *scoped) Write(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	return s.inner.Write(ctx, s.key(key), value)
}
