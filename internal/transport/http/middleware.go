package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jia-app/billingservice/internal/billing/domain"
	"github.com/jia-app/billingservice/internal/log"
	"github.com/jia-app/billingservice/internal/metrics"
	"github.com/jia-app/billingservice/internal/tracing"
)

type ctxKey int

const sessionUserKey ctxKey = iota

// sessionUser returns the resolved viewer identity, empty when the request
// carries no valid session.
func sessionUser(ctx context.Context) domain.UserID {
	if id, ok := ctx.Value(sessionUserKey).(domain.UserID); ok {
		return id
	}
	return ""
}

// requestID tags every request with an id for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(log.WithRequestID(r.Context(), id)))
	})
}

// traced wraps the request in a span.
func (s *Server) traced(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.StartSpan(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// measured records request counts and latency. The route pattern is only
// known after routing, so labels are read once the handler returns; it keeps
// the label set bounded where the raw path would not be.
func (s *Server) measured(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// withSession resolves the viewer identity from a Bearer session token when
// one is present. Requests without a token continue unauthenticated.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if s.sessions == nil || header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := s.sessions.Validate(token)
		if err != nil {
			log.Debug(r.Context(), "Rejected session token", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), sessionUserKey, userID)
		ctx = log.WithUserID(ctx, string(userID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireSession rejects requests without a resolved viewer identity.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sessionUser(r.Context()) == "" {
			writeError(w, r, domain.NewNotAuthenticatedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}
