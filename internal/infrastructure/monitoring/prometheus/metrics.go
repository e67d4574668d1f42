package prometheus

import (
	"strconv"
	"time"
)

// FeaturizerMetrics are the metrics exported by the featurizer processes.
type FeaturizerMetrics struct {
	// external program
	PadelCallsTotal     CounterVec
	PadelCallDuration   HistogramVec
	PadelMoleculesTotal CounterVec

	// featurization
	MoleculesFeaturizedTotal CounterVec
	BatchValidationFailures  CounterVec
	FeaturizerReady          GaugeVec

	// feature stores
	StoreAccessTotal CounterVec

	// surfaces
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	GRPCRequestsTotal   CounterVec
	GRPCRequestDuration HistogramVec
	JobsTotal           CounterVec
	JobDuration         HistogramVec
}

var (
	DefaultHTTPDurationBuckets  = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultPadelDurationBuckets = []float64{.5, 1, 2, 5, 10, 20, 30, 60, 120, 300, 600}
)

// NewFeaturizerMetrics registers the featurizer metrics on collector.
func NewFeaturizerMetrics(collector MetricsCollector) *FeaturizerMetrics {
	return &FeaturizerMetrics{
		PadelCallsTotal:     collector.RegisterCounter("padel_calls_total", "PaDEL-Descriptor invocations", "status"),
		PadelCallDuration:   collector.RegisterHistogram("padel_call_duration_seconds", "PaDEL-Descriptor call duration", DefaultPadelDurationBuckets, "status"),
		PadelMoleculesTotal: collector.RegisterCounter("padel_molecules_total", "Molecules sent to PaDEL-Descriptor"),

		MoleculesFeaturizedTotal: collector.RegisterCounter("molecules_featurized_total", "Molecules converted to feature rows", "featurizer"),
		BatchValidationFailures:  collector.RegisterCounter("batch_validation_failures_total", "Transform calls rejected because a row failed", "featurizer"),
		FeaturizerReady:          collector.RegisterGauge("featurizer_ready", "1 once the descriptor schema is known", "featurizer"),

		StoreAccessTotal: collector.RegisterCounter("store_access_total", "Feature store lookups", "store", "result"),

		HTTPRequestsTotal:   collector.RegisterCounter("http_requests_total", "HTTP requests", "method", "route", "status_code"),
		HTTPRequestDuration: collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "route"),
		GRPCRequestsTotal:   collector.RegisterCounter("grpc_requests_total", "gRPC requests", "service", "method", "code"),
		GRPCRequestDuration: collector.RegisterHistogram("grpc_request_duration_seconds", "gRPC request duration", DefaultHTTPDurationBuckets, "service", "method"),
		JobsTotal:           collector.RegisterCounter("jobs_total", "Featurize jobs consumed", "status"),
		JobDuration:         collector.RegisterHistogram("job_duration_seconds", "Featurize job duration", DefaultPadelDurationBuckets, "status"),
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordPadelCall records one call to the external program.
func (m *FeaturizerMetrics) RecordPadelCall(molecules int, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := statusLabel(err)
	m.PadelCallsTotal.WithLabelValues(status).Inc()
	m.PadelCallDuration.WithLabelValues(status).Observe(d.Seconds())
	m.PadelMoleculesTotal.WithLabelValues().Add(float64(molecules))
}

// RecordFeaturized counts rows produced by a featurizer.
func (m *FeaturizerMetrics) RecordFeaturized(featurizer string, n int) {
	if m == nil {
		return
	}
	m.MoleculesFeaturizedTotal.WithLabelValues(featurizer).Add(float64(n))
}

func (m *FeaturizerMetrics) RecordBatchValidationFailure(featurizer string) {
	if m == nil {
		return
	}
	m.BatchValidationFailures.WithLabelValues(featurizer).Inc()
}

func (m *FeaturizerMetrics) SetReady(featurizer string, ready bool) {
	if m == nil {
		return
	}
	v := 0.0
	if ready {
		v = 1
	}
	m.FeaturizerReady.WithLabelValues(featurizer).Set(v)
}

// RecordStoreAccess adds hits and misses for one lookup.  A failed lookup
// counts every key as an error.
func (m *FeaturizerMetrics) RecordStoreAccess(store string, hits, misses int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.StoreAccessTotal.WithLabelValues(store, "error").Add(float64(hits + misses))
		return
	}
	m.StoreAccessTotal.WithLabelValues(store, "hit").Add(float64(hits))
	m.StoreAccessTotal.WithLabelValues(store, "miss").Add(float64(misses))
}

func (m *FeaturizerMetrics) RecordHTTPRequest(method, route string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordGRPCRequest counts one unary call or stream by its status code.
func (m *FeaturizerMetrics) RecordGRPCRequest(service, method, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.GRPCRequestsTotal.WithLabelValues(service, method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(service, method).Observe(d.Seconds())
}

func (m *FeaturizerMetrics) RecordJob(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := statusLabel(err)
	m.JobsTotal.WithLabelValues(status).Inc()
	m.JobDuration.WithLabelValues(status).Observe(d.Seconds())
}

//Personal.AI order the ending
