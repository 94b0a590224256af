package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/notify"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/util"
	"github.com/mpapenbr/regatta-scoring-go/pkg/repository"
	ssrepos "github.com/mpapenbr/regatta-scoring-go/pkg/repository/scoringsystem"
	"github.com/mpapenbr/regatta-scoring-go/pkg/service/scoring"
	"github.com/mpapenbr/regatta-scoring-go/pkg/standing"
)

type (
	problem struct {
		Error   string          `json:"error"`
		Details []problemDetail `json:"details,omitempty"`
	}
	// problemDetail points to the result row that could not be scored
	problemDetail struct {
		RaceID       int    `json:"raceId"`
		CompetitorID int    `json:"competitorId"`
		Code         string `json:"code,omitempty"`
		Reason       string `json:"reason"`
	}
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNoData),
		errors.Is(err, standing.ErrNoCurrent),
		errors.Is(err, notify.ErrNoSummary):
		return http.StatusNotFound
	case errors.Is(err, scoring.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case util.IsConfigError(err),
		errors.Is(err, ssrepos.ErrNestedParent):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func problemFor(err error) *problem {
	ret := &problem{Error: err.Error()}
	for _, re := range util.ResolutionErrors(err) {
		ret.Details = append(ret.Details, problemDetail{
			RaceID:       re.RaceID,
			CompetitorID: re.CompetitorID,
			Code:         re.Code,
			Reason:       re.Err.Error(),
		})
	}
	return ret
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.l.Error("request failed", log.ErrorField(err))
	}
	writeJSON(w, status, problemFor(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // nothing left to do on error
	json.NewEncoder(w).Encode(v)
}
