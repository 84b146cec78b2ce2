package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/itchan-dev/blog/shared/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const readyTimeout = 2 * time.Second

var dependencyUp = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "blog",
		Name:      "dependency_up",
		Help:      "1 when the last readiness check of the dependency succeeded",
	},
	[]string{"dependency"},
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// DependencyCheck is one named readiness check, e.g. the database or the upload root.
type DependencyCheck struct {
	Name    string
	Checker HealthChecker
}

// Health only tells that the process serves requests.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Ready answers 503 naming the first dependency that fails. Every check
// runs so the gauges reflect the current state of all of them.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failed := ""
	for _, check := range h.checks {
		if err := check.Checker.Ping(ctx); err != nil {
			dependencyUp.WithLabelValues(check.Name).Set(0)
			logger.Log.Warn("readiness check failed", "dependency", check.Name, "error", err)
			if failed == "" {
				failed = check.Name
			}
			continue
		}
		dependencyUp.WithLabelValues(check.Name).Set(1)
	}

	if failed != "" {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(failed + " unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
