// Package rest exposes series standings and the administration of results
// and scoring systems over HTTP.
package rest

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/notify"
	"github.com/mpapenbr/regatta-scoring-go/pkg/utils"
	"github.com/mpapenbr/regatta-scoring-go/pkg/utils/broadcast"
)

type (
	StandingService interface {
		Standing(ctx context.Context, seriesID int) (*model.CachedResult, error)
		Recompute(ctx context.Context, seriesID int) (*model.CachedResult, error)
		Invalidate(ctx context.Context, seriesID int) error
		State(ctx context.Context, seriesID int) (model.StandingState, error)
		History(ctx context.Context, seriesID, limit int) ([]*model.CachedResult, error)
		InvalidateScoringSystem(ctx context.Context, systemID int) ([]int, error)
	}
	// ResultWriter changes race results. Each method returns the affected series.
	ResultWriter interface {
		UpsertResult(ctx context.Context, row *model.RaceResultRow) (int, error)
		DeleteResult(ctx context.Context, raceID, competitorID int) (int, error)
		UpdateRaceState(ctx context.Context, raceID int, state model.RaceState) (int, error)
	}
	// ScoringSystemWriter changes scoring systems and their codes.
	// Implementations validate the resulting code library before storing.
	ScoringSystemWriter interface {
		UpdateScoringSystem(ctx context.Context, system *model.ScoringSystem) error
		UpsertCode(ctx context.Context, systemID int, code *model.ScoreCode) error
		DeleteCode(ctx context.Context, systemID int, name string) error
	}
	ChangePublisher interface {
		PublishSeriesChanged(seriesID int, reason string) error
		PublishScoringSystemChanged(systemID int, reason string) error
	}
	// SummaryReader returns the last published summary of a series
	SummaryReader interface {
		LoadSummary(ctx context.Context, seriesID int) (*notify.Summary, error)
	}

	Server struct {
		service        StandingService
		writer         ResultWriter
		systemWriter   ScoringSystemWriter
		summaries      SummaryReader
		publisher      ChangePublisher
		adminToken     string
		// sha256 of adminToken
		adminTokenHash string
		updates        broadcast.BroadcastServer[*model.CachedResult]
		l              *log.Logger
	}
	Option func(*Server)
)

func WithStandingService(s StandingService) Option {
	return func(srv *Server) {
		srv.service = s
	}
}

// WithResultWriter enables the endpoints that modify race results
func WithResultWriter(w ResultWriter) Option {
	return func(srv *Server) {
		srv.writer = w
	}
}

// WithScoringSystemWriter enables the endpoints that modify scoring systems
func WithScoringSystemWriter(w ScoringSystemWriter) Option {
	return func(srv *Server) {
		srv.systemWriter = w
	}
}

func WithSummaryReader(r SummaryReader) Option {
	return func(srv *Server) {
		srv.summaries = r
	}
}

func WithChangePublisher(p ChangePublisher) Option {
	return func(srv *Server) {
		srv.publisher = p
	}
}

// WithAdminToken protects all modifying endpoints.
// An empty token leaves them unprotected.
func WithAdminToken(token string) Option {
	return func(srv *Server) {
		srv.adminToken = token
	}
}

// WithUpdates enables streaming of newly published standings
func WithUpdates(b broadcast.BroadcastServer[*model.CachedResult]) Option {
	return func(srv *Server) {
		srv.updates = b
	}
}

func WithLogger(l *log.Logger) Option {
	return func(srv *Server) {
		srv.l = l
	}
}

func NewServer(opts ...Option) *Server {
	ret := &Server{
		l: log.Default().Named("rest"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.adminToken != "" {
		ret.adminTokenHash = utils.HashToken(ret.adminToken)
	}
	return ret
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.healthz)
	r.Route("/series/{id}", func(r chi.Router) {
		r.Get("/standing", s.getStanding)
		r.Get("/state", s.getState)
		r.Get("/history", s.getHistory)
		if s.updates != nil {
			r.Get("/events", s.streamStandings)
		}
		if s.summaries != nil {
			r.Get("/summary", s.getSummary)
		}
		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/invalidate", s.postInvalidate)
			r.Post("/recompute", s.postRecompute)
		})
	})
	if s.writer != nil {
		r.Route("/races/{raceId}", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Put("/state", s.putRaceState)
			r.Put("/results/{competitorId}", s.putResult)
			r.Delete("/results/{competitorId}", s.deleteResult)
		})
	}
	if s.systemWriter != nil {
		r.Route("/scoring-systems/{id}", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Put("/", s.putScoringSystem)
			r.Put("/codes/{name}", s.putCode)
			r.Delete("/codes/{name}", s.deleteCode)
		})
	}
	return r
}
