package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// JobName is the Pushgateway job label used for pushed metrics.
const JobName = "jobsubmit"

// Push sends everything gathered by gatherer to the Pushgateway at url,
// replacing metrics previously pushed under the same job and grouping.
func Push(ctx context.Context, url string, gatherer prometheus.Gatherer, grouping map[string]string) error {
	p := push.New(url, JobName).Gatherer(gatherer)
	for name, value := range grouping {
		p = p.Grouping(name, value)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
