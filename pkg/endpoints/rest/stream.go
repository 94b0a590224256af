package rest

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mpapenbr/regatta-scoring-go/log"
)

// streamStandings sends each standing published for the series as a
// server-sent event until the client disconnects.
func (s *Server) streamStandings(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		s.badRequest(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError,
			&problem{Error: "streaming not supported"})
		return
	}
	ch := s.updates.Subscribe()
	defer s.updates.CancelSubscription(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	l := s.l.With(log.Int("seriesId", id))
	l.Debug("stream started")
	for {
		select {
		case <-r.Context().Done():
			l.Debug("stream closed by client")
			return
		case res, ok := <-ch:
			if !ok {
				return
			}
			if res.SeriesID != id {
				continue
			}
			data, err := json.Marshal(res)
			if err != nil {
				l.Error("could not marshal standing", log.ErrorField(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: standing\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
