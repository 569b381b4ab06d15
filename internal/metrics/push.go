package metrics

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the Pushgateway job name used for index runs.
const PushJob = "media_index"

// Push sends the default registry to a Prometheus Pushgateway, grouped by
// host so several indexers can share one gateway.
func Push(ctx context.Context, url string) error {
	return pushGatherer(ctx, url, prometheus.DefaultGatherer)
}

func pushGatherer(ctx context.Context, url string, g prometheus.Gatherer) error {
	instance, err := os.Hostname()
	if err != nil || instance == "" {
		instance = "unknown"
	}

	err = push.New(url, PushJob).
		Gatherer(g).
		Grouping("instance", instance).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
