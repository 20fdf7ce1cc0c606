package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// scrapeRecorder captures what the metrics handler wrote
type scrapeRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *scrapeRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *scrapeRecorder) Write(p []byte) (int, error) {
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

// observeScrapes counts every request against the route it matched and
// logs it at debug level.
func (s *HTTPServer) observeScrapes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &scrapeRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := routeTemplate(r)
		s.metricsManager.GetPrometheusMetrics().RecordHTTPRequest(r.Method, route, strconv.Itoa(rec.status), elapsed)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"route":       route,
			"status":      rec.status,
			"bytes":       rec.bytes,
			"duration":    elapsed,
			"remote_addr": r.RemoteAddr,
		}).Debug("Metrics request served")
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}
