package senderlist

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/encryptgate/threat-engine/internal/core"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// List is an in-memory sender allow/deny list. Entries are matched on the
// full normalized address; entries of the form "@domain" match every
// sender in that domain.
type List struct {
	mu      sync.RWMutex
	entries map[string]*core.SenderListEntry
	logger  *zap.Logger
}

// New creates an empty sender list
func New(logger *zap.Logger) *List {
	return &List{
		entries: make(map[string]*core.SenderListEntry),
		logger:  logger,
	}
}

// NewSeeded creates a sender list pre-populated from configuration
func NewSeeded(addresses []string, reason string, logger *zap.Logger) *List {
	l := New(logger)
	now := time.Now()
	for _, addr := range addresses {
		key := normalize(addr)
		if key == "" {
			continue
		}
		l.entries[key] = &core.SenderListEntry{
			ID:        uuid.NewString(),
			Email:     key,
			Reason:    reason,
			Actor:     "config",
			Timestamp: now,
		}
	}
	if len(l.entries) > 0 && logger != nil {
		logger.Info("Seeded sender list", zap.Int("entries", len(l.entries)))
	}
	return l
}

// Add inserts or replaces a list entry
func (l *List) Add(_ context.Context, entry *core.SenderListEntry) error {
	key := normalize(entry.Email)
	if key == "" {
		return core.ErrInvalidEmail
	}

	stored := *entry
	stored.Email = key
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[key] = &stored
	return nil
}

// Remove deletes an entry by address
func (l *List) Remove(_ context.Context, email string) error {
	key := normalize(email)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[key]; !ok {
		return core.ErrNotFound
	}
	delete(l.entries, key)
	return nil
}

// Contains reports whether the sender or its domain is listed
func (l *List) Contains(_ context.Context, email string) (bool, error) {
	key := normalize(email)

	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.entries[key]; ok {
		return true, nil
	}
	if at := strings.LastIndex(key, "@"); at >= 0 {
		if _, ok := l.entries[key[at:]]; ok {
			return true, nil
		}
	}
	return false, nil
}

// Entries returns a snapshot of all list entries
func (l *List) Entries(_ context.Context) ([]*core.SenderListEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*core.SenderListEntry, 0, len(l.entries))
	for _, e := range l.entries {
		copied := *e
		out = append(out, &copied)
	}
	return out, nil
}

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
