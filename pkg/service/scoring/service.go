// Package scoring drives standing computations for series.
//
// A series standing is Stale, Computing or Current. Computations for the same
// series are single-flight: concurrent callers share the in-flight result.
// An invalidation that arrives while a computation is running causes one more
// computation before the result is published as current.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing"
	"github.com/mpapenbr/regatta-scoring-go/pkg/standing"
	"github.com/mpapenbr/regatta-scoring-go/pkg/utils/cache"
	"github.com/mpapenbr/regatta-scoring-go/pkg/utils/cache/loadercache"
)

type (
	SeriesProvider interface {
		LoadSeriesInput(ctx context.Context, seriesID int) (*model.SeriesInput, error)
		// SeriesIDsByScoringSystem includes series of child systems
		SeriesIDsByScoringSystem(ctx context.Context, systemID int) ([]int, error)
	}
	ScoringSystemProvider interface {
		LoadScoringSystem(ctx context.Context, id int) (*model.ScoringSystem, error)
	}
	// PublishHook is called after a new current standing was published
	PublishHook func(ctx context.Context, result *model.CachedResult)

	seriesState struct {
		generation uint64
		computing  bool
	}

	Service struct {
		seriesProvider SeriesProvider
		systemProvider ScoringSystemProvider
		systemTTL      time.Duration
		systems        cache.Cache[int, model.ScoringSystem]
		store          standing.Store
		group          singleflight.Group
		mu             sync.Mutex
		states         map[int]*seriesState
		workers        int
		maxAttempts    int
		hooks          []PublishHook
		metrics        *serviceMetrics
		l              *log.Logger
	}
	Option func(*Service)
)

var ErrNotConfigured = errors.New("service not configured")

func WithSeriesProvider(p SeriesProvider) Option {
	return func(s *Service) {
		s.seriesProvider = p
	}
}

// WithScoringSystemProvider configures where scoring systems are loaded from.
// Loaded systems are cached for ttl.
func WithScoringSystemProvider(p ScoringSystemProvider, ttl time.Duration) Option {
	return func(s *Service) {
		s.systemProvider = p
		s.systemTTL = ttl
	}
}

func WithStore(store standing.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithWorkers limits the number of parallel computations in RecomputeAll
func WithWorkers(n int) Option {
	return func(s *Service) {
		s.workers = n
	}
}

// WithMaxAttempts limits the recomputations caused by invalidations during a
// running computation.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		s.maxAttempts = n
	}
}

func WithPublishHook(h PublishHook) Option {
	return func(s *Service) {
		s.hooks = append(s.hooks, h)
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		s.l = l
	}
}

func NewService(opts ...Option) *Service {
	ret := &Service{
		store:       standing.NewMemoryStore(),
		states:      make(map[int]*seriesState),
		workers:     4,
		maxAttempts: 3,
		systemTTL:   5 * time.Minute,
		l:           log.Default().Named("service.scoring"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.systems = loadercache.New(
		loadercache.WithLoader[int, model.ScoringSystem](ret.loadSystem),
		loadercache.WithExpiration[int, model.ScoringSystem](ret.systemTTL),
		loadercache.WithLogger[int, model.ScoringSystem](ret.l.Named("cache")),
	)
	ret.metrics = newServiceMetrics(ret.l)
	return ret
}

func (s *Service) loadSystem(ctx context.Context, id int) (*model.ScoringSystem, error) {
	if s.systemProvider == nil {
		return nil, fmt.Errorf("%w: no scoring system provider", ErrNotConfigured)
	}
	return s.systemProvider.LoadScoringSystem(ctx, id)
}

func (s *Service) state(seriesID int) *seriesState {
	st, ok := s.states[seriesID]
	if !ok {
		st = &seriesState{}
		s.states[seriesID] = st
	}
	return st
}

func (s *Service) generation(seriesID int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state(seriesID).generation
}

func (s *Service) setComputing(seriesID int, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(seriesID).computing = v
}

// Standing returns the current standing, computing it if the series is stale
func (s *Service) Standing(ctx context.Context, seriesID int) (*model.CachedResult, error) {
	stale, err := s.store.IsStale(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if !stale {
		ret, err := s.store.GetCurrent(ctx, seriesID)
		if err == nil {
			return ret, nil
		}
		if !errors.Is(err, standing.ErrNoCurrent) {
			return nil, err
		}
	}
	return s.Recompute(ctx, seriesID)
}

// Recompute computes and publishes the standing of a series.
// Concurrent calls for the same series share one computation.
func (s *Service) Recompute(ctx context.Context, seriesID int) (*model.CachedResult, error) {
	// the computation must not be aborted by the caller that started it
	detached := context.WithoutCancel(ctx)
	v, err, shared := s.group.Do(strconv.Itoa(seriesID), func() (any, error) {
		return s.compute(detached, seriesID)
	})
	if shared {
		s.l.Debug("joined computation", log.Int("seriesId", seriesID))
	}
	if err != nil {
		return nil, err
	}
	return v.(*model.CachedResult), nil
}

func (s *Service) compute(ctx context.Context, seriesID int) (*model.CachedResult, error) {
	s.setComputing(seriesID, true)
	defer s.setComputing(seriesID, false)

	for attempt := 1; ; attempt++ {
		gen := s.generation(seriesID)
		start := time.Now()
		result, err := s.computeOnce(ctx, seriesID)
		s.metrics.record(ctx, time.Since(start), err)
		if err != nil {
			s.l.Warn("computation failed",
				log.Int("seriesId", seriesID), log.ErrorField(err))
			if invErr := s.store.Invalidate(ctx, seriesID); invErr != nil {
				s.l.Error("could not mark series stale",
					log.Int("seriesId", seriesID), log.ErrorField(invErr))
			}
			return nil, err
		}
		changed := s.generation(seriesID) != gen
		if changed && attempt < s.maxAttempts {
			s.l.Debug("input changed during computation, recomputing",
				log.Int("seriesId", seriesID), log.Int("attempt", attempt))
			continue
		}
		ret, err := s.store.Publish(ctx, seriesID, result)
		if err != nil {
			return nil, err
		}
		if changed || s.generation(seriesID) != gen {
			if err := s.store.Invalidate(ctx, seriesID); err != nil {
				return nil, err
			}
		}
		s.l.Info("standing published",
			log.Int("seriesId", seriesID),
			log.String("id", ret.ID.String()),
			log.Int("competitors", len(result.Competitors)))
		for _, h := range s.hooks {
			h(ctx, ret)
		}
		return ret, nil
	}
}

func (s *Service) computeOnce(ctx context.Context, seriesID int) (*model.SeriesStanding, error) {
	if s.seriesProvider == nil {
		return nil, fmt.Errorf("%w: no series provider", ErrNotConfigured)
	}
	input, err := s.seriesProvider.LoadSeriesInput(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	system, err := s.systems.Get(ctx, input.Series.ScoringSystemID)
	if err != nil {
		return nil, err
	}
	var parent *model.ScoringSystem
	if system.ParentID != nil {
		if parent, err = s.systems.Get(ctx, *system.ParentID); err != nil {
			return nil, err
		}
	}
	p := processing.NewProcessor(
		processing.WithScoringSystem(system, parent),
		processing.WithLogger(s.l.Named("processing")),
	)
	return p.Compute(input)
}

// Invalidate marks the standing of a series as stale. It is idempotent.
func (s *Service) Invalidate(ctx context.Context, seriesID int) error {
	s.mu.Lock()
	s.state(seriesID).generation++
	s.mu.Unlock()
	return s.store.Invalidate(ctx, seriesID)
}

// InvalidateScoringSystem drops the cached scoring system and invalidates all
// series using it. The ids of the affected series are returned.
func (s *Service) InvalidateScoringSystem(ctx context.Context, systemID int) ([]int, error) {
	s.systems.Invalidate(ctx, systemID)
	if s.seriesProvider == nil {
		return nil, fmt.Errorf("%w: no series provider", ErrNotConfigured)
	}
	ids, err := s.seriesProvider.SeriesIDsByScoringSystem(ctx, systemID)
	if err != nil {
		return nil, err
	}
	errs := make([]error, 0)
	for _, id := range ids {
		if err := s.Invalidate(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return ids, errors.Join(errs...)
}

func (s *Service) State(ctx context.Context, seriesID int) (model.StandingState, error) {
	s.mu.Lock()
	computing := s.state(seriesID).computing
	s.mu.Unlock()
	if computing {
		return model.StandingComputing, nil
	}
	stale, err := s.store.IsStale(ctx, seriesID)
	if err != nil {
		return "", err
	}
	if stale {
		return model.StandingStale, nil
	}
	return model.StandingCurrent, nil
}

func (s *Service) History(ctx context.Context, seriesID, limit int) ([]*model.CachedResult, error) {
	return s.store.History(ctx, seriesID, limit)
}

// RecomputeAll recomputes the given series in parallel.
// A failing series does not stop the others, all errors are returned joined.
func (s *Service) RecomputeAll(ctx context.Context, seriesIDs []int) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(max(1, s.workers))
	for _, id := range seriesIDs {
		g.Go(func() error {
			if _, err := s.Recompute(ctx, id); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("series %d: %w", id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
