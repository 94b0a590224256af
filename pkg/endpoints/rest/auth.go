package rest

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/utils"
)

const tokenHeader = "api-token"

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		got := utils.HashToken(r.Header.Get(tokenHeader))
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.adminTokenHash)) != 1 {
			s.l.Warn("permission denied",
				log.String("path", r.URL.Path),
				log.String("remote", r.RemoteAddr))
			writeJSON(w, http.StatusForbidden, &problem{Error: "permission denied"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.l.Debug("request",
			log.String("method", r.Method),
			log.String("path", r.URL.Path),
			log.Int("status", ww.Status()),
			log.Duration("duration", time.Since(start)),
			log.String("requestId", middleware.GetReqID(r.Context())))
	})
}
