package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/dashstream/internal/domain/model"
	"github.com/hszk-dev/dashstream/internal/domain/repository"
	"github.com/hszk-dev/dashstream/internal/infrastructure/metrics"
)

// DefaultRetention is how long a job stays visible after reaching a terminal state.
const DefaultRetention = time.Hour

// entry is one registry record. expiresAt is zero while the job is Pending.
type entry struct {
	status    model.Status
	expiresAt time.Time
}

// MemoryJobRegistry implements repository.JobRegistry in process memory.
// Expired entries are hidden on read and removed by Sweep.
type MemoryJobRegistry struct {
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]entry
}

// Compile-time verification that MemoryJobRegistry implements JobRegistry.
var _ repository.JobRegistry = (*MemoryJobRegistry)(nil)

// MemoryOption configures a MemoryJobRegistry.
type MemoryOption func(*MemoryJobRegistry)

// WithRetention sets the retention window for terminal entries.
func WithRetention(d time.Duration) MemoryOption {
	return func(r *MemoryJobRegistry) {
		if d > 0 {
			r.retention = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(r *MemoryJobRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger used by the sweeper.
func WithLogger(logger *slog.Logger) MemoryOption {
	return func(r *MemoryJobRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewMemoryJobRegistry creates an empty in-memory registry.
func NewMemoryJobRegistry(opts ...MemoryOption) *MemoryJobRegistry {
	r := &MemoryJobRegistry{
		retention: DefaultRetention,
		now:       time.Now,
		logger:    slog.Default(),
		entries:   make(map[uuid.UUID]entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Set records status for the job.
func (r *MemoryJobRegistry) Set(ctx context.Context, id uuid.UUID, status model.Status) error {
	if !status.IsValid() {
		recordOp(metrics.RegistryOpSet, metrics.RegistryStatusRejected, metrics.RegistryBackendMemory)
		return fmt.Errorf("%w: unknown status %q", model.ErrInvalidTransition, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	current, ok := r.lookup(id, now)
	if ok && current.status.IsTerminal() {
		recordOp(metrics.RegistryOpSet, metrics.RegistryStatusRejected, metrics.RegistryBackendMemory)
		return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, current.status, status)
	}

	e := entry{status: status}
	if status.IsTerminal() {
		e.expiresAt = now.Add(r.retention)
	}
	r.entries[id] = e

	recordOp(metrics.RegistryOpSet, metrics.RegistryStatusSuccess, metrics.RegistryBackendMemory)
	return nil
}

// Get returns the current status of the job.
// Returns repository.ErrJobNotFound for unknown and expired ids alike.
func (r *MemoryJobRegistry) Get(ctx context.Context, id uuid.UUID) (model.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.lookup(id, r.now())
	if !ok {
		recordOp(metrics.RegistryOpGet, metrics.RegistryStatusNotFound, metrics.RegistryBackendMemory)
		return "", repository.ErrJobNotFound
	}

	recordOp(metrics.RegistryOpGet, metrics.RegistryStatusSuccess, metrics.RegistryBackendMemory)
	return e.status, nil
}

// Evict removes the job immediately.
func (r *MemoryJobRegistry) Evict(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()

	recordOp(metrics.RegistryOpEvict, metrics.RegistryStatusSuccess, metrics.RegistryBackendMemory)
	return nil
}

// Sweep deletes every entry whose retention window has passed and returns how many were removed.
func (r *MemoryJobRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, e := range r.entries {
		if e.expired(now) {
			delete(r.entries, id)
			removed++
		}
	}

	if removed > 0 {
		metrics.RegistryEvictionsTotal.WithLabelValues(metrics.RegistryBackendMemory).Add(float64(removed))
	}
	recordOp(metrics.RegistryOpSweep, metrics.RegistryStatusSuccess, metrics.RegistryBackendMemory)
	return removed
}

// Run sweeps every interval until ctx is cancelled.
func (r *MemoryJobRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("evicted expired jobs", slog.Int("count", n))
			}
		}
	}
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (r *MemoryJobRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// lookup returns the live entry for id, deleting it when expired. Caller holds mu.
func (r *MemoryJobRegistry) lookup(id uuid.UUID, now time.Time) (entry, bool) {
	e, ok := r.entries[id]
	if !ok {
		return entry{}, false
	}
	if e.expired(now) {
		delete(r.entries, id)
		metrics.RegistryEvictionsTotal.WithLabelValues(metrics.RegistryBackendMemory).Inc()
		return entry{}, false
	}
	return e, true
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func recordOp(op, status, backend string) {
	metrics.RegistryOperationsTotal.WithLabelValues(op, status, backend).Inc()
}
