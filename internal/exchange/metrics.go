package exchange

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const MetricsPath = "/metrics"

// Result labels of requestsTotal.
const (
	resultAccepted   = "accepted"
	resultBadRequest = "bad_request"
	resultRejected   = "rejected"
	resultNotFound   = "not_found"
	resultError      = "error"
)

var (
	// requestsTotal counts share requests by outcome
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkdrop_exchange_requests_total",
		Help: "Total number of exchange requests by result",
	}, []string{"result"})

	// sendsTotal counts outgoing transfers by outcome
	sendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkdrop_exchange_sends_total",
		Help: "Total number of exchange sends by result",
	}, []string{"result"})
)

// MetricsHandler serves the process metrics at MetricsPath. It is meant for a
// separate, usually loopback, listener rather than the share session.
func MetricsHandler() http.Handler {
	r := chi.NewRouter()
	r.Handle(MetricsPath, promhttp.Handler())
	return r
}
