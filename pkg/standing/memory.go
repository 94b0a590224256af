package standing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
)

type (
	slot struct {
		current atomic.Pointer[model.CachedResult]
		stale   atomic.Bool
		// previous results, newest first
		history []*model.CachedResult
		histMu  sync.Mutex
	}
	MemoryStore struct {
		slots      sync.Map // seriesID -> *slot
		maxHistory int
		now        func() time.Time
	}
	MemoryOption func(*MemoryStore)
)

var _ Store = (*MemoryStore)(nil)

func WithMaxHistory(n int) MemoryOption {
	return func(m *MemoryStore) {
		m.maxHistory = n
	}
}

func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		m.now = now
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	ret := &MemoryStore{maxHistory: 10, now: time.Now}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (m *MemoryStore) slot(seriesID int) *slot {
	s, _ := m.slots.LoadOrStore(seriesID, &slot{})
	return s.(*slot)
}

func (m *MemoryStore) GetCurrent(ctx context.Context, seriesID int) (*model.CachedResult, error) {
	if c := m.slot(seriesID).current.Load(); c != nil {
		return c, nil
	}
	return nil, ErrNoCurrent
}

func (m *MemoryStore) Publish(
	ctx context.Context,
	seriesID int,
	payload *model.SeriesStanding,
) (*model.CachedResult, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	next := &model.CachedResult{
		ID:        id,
		SeriesID:  seriesID,
		Payload:   payload,
		IsCurrent: true,
		CreatedAt: m.now(),
	}
	s := m.slot(seriesID)
	prev := s.current.Swap(next)
	s.stale.Store(false)
	if prev != nil {
		old := *prev
		old.IsCurrent = false
		s.histMu.Lock()
		s.history = append([]*model.CachedResult{&old}, s.history...)
		if len(s.history) > m.maxHistory {
			s.history = s.history[:m.maxHistory]
		}
		s.histMu.Unlock()
	}
	return next, nil
}

func (m *MemoryStore) Invalidate(ctx context.Context, seriesID int) error {
	m.slot(seriesID).stale.Store(true)
	return nil
}

// IsStale reports true for series without a current result
func (m *MemoryStore) IsStale(ctx context.Context, seriesID int) (bool, error) {
	s := m.slot(seriesID)
	return s.current.Load() == nil || s.stale.Load(), nil
}

// History returns previously current results, newest first
func (m *MemoryStore) History(ctx context.Context, seriesID, limit int) ([]*model.CachedResult, error) {
	s := m.slot(seriesID)
	s.histMu.Lock()
	defer s.histMu.Unlock()
	n := len(s.history)
	if limit > 0 {
		n = min(n, limit)
	}
	ret := make([]*model.CachedResult, n)
	copy(ret, s.history[:n])
	return ret, nil
}
