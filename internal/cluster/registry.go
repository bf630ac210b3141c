package cluster

import (
	"context"
	"sync"
	"time"

	"github.com/whisprlabs/whisprgate/internal/model"
	"github.com/whisprlabs/whisprgate/internal/pkg/apperrors"
)

// PendingComputation tracks one reserved dispatch slot.
type PendingComputation struct {
	Offset   uint64
	User     model.Address
	QueuedAt time.Time
}

// OffsetRegistry owns computation-offset uniqueness: a dispatch must reserve
// its offset before anything else happens, and exactly one caller per key
// ever wins. Without the explicit registry a duplicate offset would only
// surface as corrupted callback correlation.
type OffsetRegistry interface {
	Reserve(ctx context.Context, offset uint64, user model.Address) error
	Release(ctx context.Context, offset uint64) error
	Pending(ctx context.Context, offset uint64) (*PendingComputation, bool)
}

// MemoryRegistry is the in-process registry, used standalone and as the
// fallback when Redis is not configured.
type MemoryRegistry struct {
	mu      sync.Mutex
	pending map[uint64]*PendingComputation
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{pending: make(map[uint64]*PendingComputation)}
}

func (r *MemoryRegistry) Reserve(ctx context.Context, offset uint64, user model.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[offset]; ok {
		return apperrors.New(apperrors.ErrDuplicateOffset, "computation offset already in use", nil)
	}
	r.pending[offset] = &PendingComputation{
		Offset:   offset,
		User:     user,
		QueuedAt: time.Now().UTC(),
	}
	return nil
}

func (r *MemoryRegistry) Release(ctx context.Context, offset uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, offset)
	return nil
}

func (r *MemoryRegistry) Pending(ctx context.Context, offset uint64) (*PendingComputation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[offset]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}
