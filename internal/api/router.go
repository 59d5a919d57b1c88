package api

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/middleware"
)

// NewRouter builds the HTTP handler with all routes and middleware.
//
// Route table:
//
//	POST   /api/v1/encode             → payload to sentences
//	POST   /api/v1/decode             → sentences to payload
//	GET    /api/v1/dictionary         → fingerprint, counts and capacities
//	GET    /api/v1/transcripts        → recent transcripts
//	GET    /api/v1/transcripts/{id}   → one transcript
//	GET    /health/live               → liveness
//	GET    /health/ready              → readiness (runs checker)
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Metrics → Timeout → handler
func NewRouter(h *Handler, checker *health.Checker, m *metrics.Metrics, timeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mux.HandleFunc("POST /api/v1/encode", h.Encode)
	mux.HandleFunc("POST /api/v1/decode", h.Decode)
	mux.HandleFunc("GET /api/v1/dictionary", h.Dictionary)
	mux.HandleFunc("GET /api/v1/transcripts", h.ListTranscripts)
	mux.HandleFunc("GET /api/v1/transcripts/{id}", h.GetTranscript)

	var chain http.Handler = mux
	if timeout > 0 {
		chain = pkgmw.Timeout(timeout)(chain)
	}
	if m != nil {
		chain = pkgmw.Metrics(m)(chain)
	}
	chain = pkgmw.CORS(pkgmw.DefaultCORSConfig())(chain)
	chain = pkgmw.RequestID(chain)

	return chain
}
