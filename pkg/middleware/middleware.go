// Package middleware holds the chi middleware shared by the HTTP surface:
// auth, CORS, access logging, panic recovery, Prometheus metrics, and
// OpenTelemetry tracing.
package middleware

import (
	"encoding/json"
	"net/http"
)

const (
	headerCorrelationID = "X-Correlation-ID"
	headerUserID        = "X-User-ID"
)

// statusRecorder wraps http.ResponseWriter so middleware can report the
// status code and body size after the handler returns. The first explicit
// WriteHeader wins; an implicit body write counts as 200.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// writeCode emits the minimal JSON error shape middleware responds with when
// it rejects a request before the handler chain runs.
func writeCode(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}
