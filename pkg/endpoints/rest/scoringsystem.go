package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
)

func (s *Server) putScoringSystem(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		s.badRequest(w, err)
		return
	}
	var system model.ScoringSystem
	if err := json.NewDecoder(r.Body).Decode(&system); err != nil {
		s.badRequest(w, err)
		return
	}
	system.ID = id
	err = s.systemWriter.UpdateScoringSystem(r.Context(), &system)
	s.afterSystemWrite(w, r, id, err, "scoring system")
}

func (s *Server) putCode(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		s.badRequest(w, err)
		return
	}
	name, err := codeParam(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	var code model.ScoreCode
	if err := json.NewDecoder(r.Body).Decode(&code); err != nil {
		s.badRequest(w, err)
		return
	}
	code.Name = name
	code.ReferencedCode = strings.ToUpper(strings.TrimSpace(code.ReferencedCode))
	err = s.systemWriter.UpsertCode(r.Context(), id, &code)
	s.afterSystemWrite(w, r, id, err, "code "+name)
}

func (s *Server) deleteCode(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		s.badRequest(w, err)
		return
	}
	name, err := codeParam(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	err = s.systemWriter.DeleteCode(r.Context(), id, name)
	s.afterSystemWrite(w, r, id, err, "code "+name+" deleted")
}

func codeParam(r *http.Request) (string, error) {
	name := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "name")))
	if name == "" {
		return "", fmt.Errorf("%w: invalid code name", errBadRequest)
	}
	return name, nil
}

// afterSystemWrite drops the cached system and marks all series using it stale
//
//nolint:whitespace // can't make both editor and linter happy
func (s *Server) afterSystemWrite(
	w http.ResponseWriter, r *http.Request, systemID int, err error, reason string,
) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	ids, err := s.service.InvalidateScoringSystem(r.Context(), systemID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.l.Info("scoring system changed",
		log.Int("systemId", systemID),
		log.String("reason", reason),
		log.Int("series", len(ids)))
	if s.publisher != nil {
		if err := s.publisher.PublishScoringSystemChanged(systemID, reason); err != nil {
			s.l.Warn("could not publish scoring system change",
				log.Int("systemId", systemID), log.ErrorField(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
