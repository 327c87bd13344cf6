// Package metrics exposes prometheus metrics for the login flow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lineauth"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// Registry is the registry all lineauth metrics are registered with.
var Registry = prometheus.NewRegistry()

var (
	authentications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authentications_total",
		Help:      "Completed callbacks, by result and failure kind.",
	}, []string{"result", "kind"})

	idTokenVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "id_token_verifications_total",
		Help:      "ID token verification calls, by result.",
	}, []string{"result"})

	outboundRequests = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "outbound_request_duration_seconds",
		Help:      "Latency of requests to the identity provider.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"client", "host", "method", "code"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		authentications,
		idTokenVerifications,
		outboundRequests,
	)
}

// RecordAuthentication counts a finished callback. kind is empty on success.
func RecordAuthentication(result, kind string) {
	authentications.WithLabelValues(result, kind).Inc()
}

// RecordIDTokenVerification counts an ID token verification outcome.
func RecordIDTokenVerification(result string) {
	idTokenVerifications.WithLabelValues(result).Inc()
}

// Handler serves the metrics in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// HTTPMetricsRoundTripper wraps base and records the duration of every
// outbound request under the given client name.
func HTTPMetricsRoundTripper(client string, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		start := time.Now()
		res, err := base.RoundTrip(req)
		code := "error"
		if res != nil {
			code = strconv.Itoa(res.StatusCode)
		}
		outboundRequests.WithLabelValues(client, req.URL.Host, req.Method, code).
			Observe(time.Since(start).Seconds())
		return res, err
	})
}
