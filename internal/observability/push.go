package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// pushJob is the Pushgateway job label for export runs.
const pushJob = "rise_hydromet_export"

// Push sends the gatherer's metrics to a Prometheus Pushgateway. Batch runs
// exit before a scraper would see them, so they are pushed once at the end.
func Push(url string, g prometheus.Gatherer) error {
	if err := push.New(url, pushJob).Gatherer(g).Push(); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
