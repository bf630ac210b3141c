package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/whisprlabs/whisprgate/internal/model"
	"github.com/whisprlabs/whisprgate/internal/pkg/apperrors"
)

// In-memory stores, used when no database is configured and throughout the
// tests. Same contracts as the Postgres repos.

type MemoryLimitRepo struct {
	mu      sync.RWMutex
	configs map[model.Address]*model.LimitConfig
}

func NewMemoryLimitRepo() *MemoryLimitRepo {
	return &MemoryLimitRepo{configs: make(map[model.Address]*model.LimitConfig)}
}

func (r *MemoryLimitRepo) Upsert(ctx context.Context, cfg *model.LimitConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.configs[cfg.Address]; ok {
		existing.Limit = cfg.Limit
		existing.UpdatedAt = cfg.UpdatedAt
		return nil
	}
	cp := *cfg
	r.configs[cfg.Address] = &cp
	return nil
}

func (r *MemoryLimitRepo) GetByOwner(ctx context.Context, owner model.Address) (*model.LimitConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[model.DeriveLimitAddress(owner)]
	if !ok {
		return nil, apperrors.New(apperrors.ErrMissingLimitConfig, "no limit config stored for owner", nil)
	}
	cp := *cfg
	return &cp, nil
}

type MemorySwapRepo struct {
	mu     sync.RWMutex
	states map[model.Address]*model.SwapState
}

func NewMemorySwapRepo() *MemorySwapRepo {
	return &MemorySwapRepo{states: make(map[model.Address]*model.SwapState)}
}

func (r *MemorySwapRepo) Create(ctx context.Context, st *model.SwapState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.states[st.Address]; ok {
		return apperrors.New(apperrors.ErrDuplicateOffset, "swap record already exists for offset", nil)
	}
	cp := *st
	r.states[st.Address] = &cp
	return nil
}

func (r *MemorySwapRepo) Get(ctx context.Context, user model.Address, offset uint64) (*model.SwapState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.states[model.DeriveSwapAddress(user, offset)]
	if !ok {
		return nil, apperrors.NewNotFound("swap record not found")
	}
	cp := *st
	return &cp, nil
}

func (r *MemorySwapRepo) UpdateStatus(ctx context.Context, user model.Address, offset uint64, status model.SwapStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[model.DeriveSwapAddress(user, offset)]
	if !ok {
		return apperrors.NewNotFound("swap record not found")
	}
	st.Status = status
	return nil
}

func (r *MemorySwapRepo) Delete(ctx context.Context, user model.Address, offset uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, model.DeriveSwapAddress(user, offset))
	return nil
}

func (r *MemorySwapRepo) ListByUser(ctx context.Context, user model.Address, limit int) ([]*model.SwapState, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.SwapState
	for _, st := range r.states {
		if st.User == user {
			cp := *st
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type MemoryEventRepo struct {
	mu      sync.RWMutex
	records []*model.EventRecord
}

func NewMemoryEventRepo() *MemoryEventRepo {
	return &MemoryEventRepo{}
}

func (r *MemoryEventRepo) Insert(ctx context.Context, rec *model.EventRecord) error {
	if rec == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.ID == rec.ID {
			return nil
		}
	}
	cp := *rec
	r.records = append(r.records, &cp)
	return nil
}

func (r *MemoryEventRepo) List(ctx context.Context, user model.Address, limit int) ([]*model.EventRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.EventRecord
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := r.records[i]
		if !user.IsZero() && rec.User != user {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}
