package padel

import (
	"context"
	"time"

	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/prometheus"
)

type instrumentedClient struct {
	next    Client
	metrics *prometheus.FeaturizerMetrics
}

// Instrument wraps c so every call is counted and timed.  A nil metrics
// returns c unchanged.
func Instrument(c Client, metrics *prometheus.FeaturizerMetrics) Client {
	if metrics == nil {
		return c
	}
	return &instrumentedClient{next: c, metrics: metrics}
}

func (c *instrumentedClient) FromSMILES(ctx context.Context, smiles []string, opts Options) ([]Record, error) {
	start := time.Now()
	recs, err := c.next.FromSMILES(ctx, smiles, opts)
	c.metrics.RecordPadelCall(len(smiles), time.Since(start), err)
	return recs, err
}
