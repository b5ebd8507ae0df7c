// Package metrics provides a Prometheus-backed seasurf.Observer. It lives in
// a standalone package so applications that do not want the Prometheus
// dependency in their binary never import it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts guard events. Plug into seasurf.Config.Observer.
type Recorder struct {
	denials *prometheus.CounterVec
	issued  prometheus.Counter
}

// New creates a Recorder and registers its collectors on reg (or the default
// registerer if nil). Double registration is tolerated so tests can build
// several recorders against the default registry.
func New(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seasurf_denials_total",
			Help: "Requests rejected by CSRF validation, by reason.",
		}, []string{"reason"}),
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seasurf_tokens_issued_total",
			Help: "Fresh CSRF tokens bound to sessions.",
		}),
	}

	for _, c := range []prometheus.Collector{r.denials, r.issued} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return r, nil
}

// Denied increments the denial counter for reason.
func (r *Recorder) Denied(reason string) {
	r.denials.WithLabelValues(reason).Inc()
}

// TokenIssued increments the issuance counter.
func (r *Recorder) TokenIssued() {
	r.issued.Inc()
}
