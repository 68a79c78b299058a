package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the Pushgateway job name for batch runs.
const PushJob = "weather_station_etl"

// Push sends the pipeline metrics to a Pushgateway, replacing the previous
// push for the same job and instance.
func Push(ctx context.Context, url, instance string, m *Metrics) error {
	pusher := push.New(url, PushJob).Grouping("instance", instance)
	for _, c := range m.Collectors() {
		pusher = pusher.Collector(c)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
