package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mohammed-shakir/h3-elevations/internal/composer"
	"github.com/mohammed-shakir/h3-elevations/internal/core/observability"
	"github.com/mohammed-shakir/h3-elevations/internal/engine"
	"github.com/mohammed-shakir/h3-elevations/internal/resolver"
)

const maxBodyBytes = 1 << 20

// ElevationEngine runs one normalized request through lookup and
// population triggering.
type ElevationEngine interface {
	Resolve(ctx context.Context, p resolver.Payload) (engine.Result, error)
}

// HandleElevations decodes one elevation request, runs it through the
// engine and writes the composed envelope. Rejections come back as plain
// text with a 400; a store failure is the only 5xx this handler produces.
func HandleElevations(logger *slog.Logger, eng ElevationEngine, comp *composer.Composer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, "/elevations", sw.code, time.Since(start).Seconds())
		}()

		var p resolver.Payload
		if err := json.NewDecoder(http.MaxBytesReader(sw, r.Body, maxBodyBytes)).Decode(&p); err != nil {
			observability.IncRejected("malformed")
			http.Error(sw, "request body must be a JSON object", http.StatusBadRequest)
			return
		}

		res, err := eng.Resolve(r.Context(), p)
		if err != nil {
			var rerr *resolver.Error
			if errors.As(err, &rerr) {
				observability.IncRejected(rerr.Kind.String())
				http.Error(sw, rerr.Error(), http.StatusBadRequest)
				return
			}
			logger.ErrorContext(r.Context(), "elevation lookup failed", "err", err)
			http.Error(sw, "elevation store unavailable", http.StatusBadGateway)
			return
		}

		env := comp.Build(res.Set, res.Available, res.Unavailable)
		sw.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(sw).Encode(env); err != nil {
			logger.ErrorContext(r.Context(), "encode response", "err", err)
		}
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
