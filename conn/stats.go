package conn

import (
	metrics "github.com/rcrowley/go-metrics"
)

type stats struct {
	activations       metrics.Counter
	closures          metrics.Counter
	segmentsSubmitted metrics.Counter
	bytesSubmitted    metrics.Counter
	bytesReceived     metrics.Counter
	polls             metrics.Counter
	staleRejections   metrics.Counter
	timeouts          metrics.Counter
}

func newStats() *stats {
	r := metrics.DefaultRegistry

	return &stats{
		activations: metrics.NewRegisteredCounter(
			"gsm.conn.Activations", r),
		closures: metrics.NewRegisteredCounter(
			"gsm.conn.Closures", r),
		segmentsSubmitted: metrics.NewRegisteredCounter(
			"gsm.conn.SegmentsSubmitted", r),
		bytesSubmitted: metrics.NewRegisteredCounter(
			"gsm.conn.BytesSubmitted", r),
		bytesReceived: metrics.NewRegisteredCounter(
			"gsm.conn.BytesReceived", r),
		polls: metrics.NewRegisteredCounter(
			"gsm.conn.Polls", r),
		staleRejections: metrics.NewRegisteredCounter(
			"gsm.conn.StaleRejections", r),
		timeouts: metrics.NewRegisteredCounter(
			"gsm.conn.Timeouts", r)}
}
