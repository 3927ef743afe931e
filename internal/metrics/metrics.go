package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var validationTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "license_validation_total",
		Help: "Validation requests by verdict.",
	},
	[]string{"verdict"},
)

func ObserveValidation(verdict string) {
	validationTotal.WithLabelValues(verdict).Inc()
}
