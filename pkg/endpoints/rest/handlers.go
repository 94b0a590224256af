package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
)

var errBadRequest = errors.New("bad request")

type (
	stateResponse struct {
		SeriesID int                 `json:"seriesId"`
		State    model.StandingState `json:"state"`
	}
	raceStateRequest struct {
		State model.RaceState `json:"state"`
	}
	resultRequest struct {
		Place *int             `json:"place,omitempty"`
		Code  string           `json:"code,omitempty"`
		Value *decimal.Decimal `json:"value,omitempty"`
	}
)

func intParam(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", errBadRequest, name)
	}
	return v, nil
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, &problem{Error: err.Error()})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStanding(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		s.badRequest(w, err)
		return
	}
	res, err := s.service.Standing(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		s.badRequest(w, err)
		return
	}
	state, err := s.service.State(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &stateResponse{SeriesID: id, State: state})
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		s.badRequest(w, err)
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			s.badRequest(w, fmt.Errorf("%w: invalid limit", errBadRequest))
			return
		}
	}
	res, err := s.service.History(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		s.badRequest(w, err)
		return
	}
	summary, err := s.summaries.LoadSummary(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) postInvalidate(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if err := s.service.Invalidate(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.announce(id, "invalidate")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postRecompute(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		s.badRequest(w, err)
		return
	}
	res, err := s.service.Recompute(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) putRaceState(w http.ResponseWriter, r *http.Request) {
	raceID, err := intParam(r, "raceId")
	if err != nil {
		s.badRequest(w, err)
		return
	}
	var req raceStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, err)
		return
	}
	switch req.State {
	case model.RaceStateRaced, model.RaceStatePreliminary,
		model.RaceStateScheduled, model.RaceStateAbandoned:
	default:
		s.badRequest(w, fmt.Errorf("%w: unknown race state %q", errBadRequest, req.State))
		return
	}
	seriesID, err := s.writer.UpdateRaceState(r.Context(), raceID, req.State)
	s.afterWrite(w, r, seriesID, err, "race state")
}

func (s *Server) putResult(w http.ResponseWriter, r *http.Request) {
	raceID, err := intParam(r, "raceId")
	if err != nil {
		s.badRequest(w, err)
		return
	}
	competitorID, err := intParam(r, "competitorId")
	if err != nil {
		s.badRequest(w, err)
		return
	}
	var req resultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, err)
		return
	}
	row := &model.RaceResultRow{
		RaceID:       raceID,
		CompetitorID: competitorID,
		Place:        req.Place,
		Code:         req.Code,
		Value:        req.Value,
	}
	if !row.Entered() {
		s.badRequest(w, fmt.Errorf("%w: place or code required", errBadRequest))
		return
	}
	if row.Place != nil && *row.Place <= 0 {
		s.badRequest(w, fmt.Errorf("%w: place must be positive", errBadRequest))
		return
	}
	seriesID, err := s.writer.UpsertResult(r.Context(), row)
	s.afterWrite(w, r, seriesID, err, "result")
}

func (s *Server) deleteResult(w http.ResponseWriter, r *http.Request) {
	raceID, err := intParam(r, "raceId")
	if err != nil {
		s.badRequest(w, err)
		return
	}
	competitorID, err := intParam(r, "competitorId")
	if err != nil {
		s.badRequest(w, err)
		return
	}
	seriesID, err := s.writer.DeleteResult(r.Context(), raceID, competitorID)
	s.afterWrite(w, r, seriesID, err, "result deleted")
}

// afterWrite marks the series stale once its input was changed
//nolint:whitespace // can't make both editor and linter happy
func (s *Server) afterWrite(
	w http.ResponseWriter, r *http.Request, seriesID int, err error, reason string,
) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.service.Invalidate(r.Context(), seriesID); err != nil {
		s.writeError(w, err)
		return
	}
	s.announce(seriesID, reason)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) announce(seriesID int, reason string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSeriesChanged(seriesID, reason); err != nil {
		s.l.Warn("could not publish series change",
			log.Int("seriesId", seriesID), log.ErrorField(err))
	}
}
