package lock

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/example/beacon/internal/ports/secondary"
)

const (
	// DefaultSessionTTL is the lease TTL in seconds; a crashed holder
	// releases its locks once it expires.
	DefaultSessionTTL = 10
	// DefaultPrefix is the etcd key prefix for tick locks.
	DefaultPrefix = "/beacon/ticks"

	dialTimeout   = 5 * time.Second
	unlockTimeout = 5 * time.Second
)

// EtcdLocker serializes ticks across beacon replicas sharing one database.
type EtcdLocker struct {
	client  *clientv3.Client
	session *concurrency.Session
	prefix  string
	// Mutexes created from one session share its lease key, so two local
	// goroutines would both "hold" the same etcd mutex. The local lock
	// keeps a single in-process holder per key.
	local  *KeyLock
	logger *slog.Logger
}

// NewEtcdLocker connects to etcd and opens a session with the given TTL in seconds.
func NewEtcdLocker(endpoints []string, prefix string, ttl int, logger *slog.Logger) (*EtcdLocker, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("etcd endpoints cannot be empty")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	session, err := concurrency.NewSession(client, concurrency.WithTTL(ttl))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create etcd session with TTL %d: %w", ttl, err)
	}

	logger.Info("etcd tick lock ready", "endpoints", endpoints, "prefix", prefix, "ttl", ttl)

	return &EtcdLocker{
		client:  client,
		session: session,
		prefix:  prefix,
		local:   NewKeyLock(),
		logger:  logger,
	}, nil
}

// Lock acquires the local key lock, then the etcd mutex for key.
func (l *EtcdLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	mutex := concurrency.NewMutex(l.session, path.Join(l.prefix, key))
	if err := mutex.Lock(ctx); err != nil {
		unlockLocal()
		return nil, fmt.Errorf("failed to acquire etcd lock for %s: %w", key, err)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()
		if err := mutex.Unlock(ctx); err != nil {
			l.logger.Warn("failed to release etcd lock", "key", key, "error", err)
		}
		unlockLocal()
	}, nil
}

// Close ends the session, releasing any held locks, and closes the client.
func (l *EtcdLocker) Close() error {
	if err := l.session.Close(); err != nil {
		l.client.Close()
		return fmt.Errorf("failed to close etcd session: %w", err)
	}
	return l.client.Close()
}

// Ensure EtcdLocker implements the interface.
var _ secondary.TickLocker = (*EtcdLocker)(nil)
