package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector mirrors a Registry's snapshot as prometheus metrics, so a
// host binary can mount promhttp.Handler() without the core depending on
// net/http or owning the scrape endpoint itself.
type Collector struct {
	registry *Registry

	queueDepth       *prometheus.Desc
	queueUtilization *prometheus.Desc
	totalDrops       *prometheus.Desc
	dropsPerMinute   *prometheus.Desc
	latencyP50       *prometheus.Desc
	latencyP95       *prometheus.Desc
	latencyMax       *prometheus.Desc
	fps              *prometheus.Desc
	residentMemory   *prometheus.Desc
}

// NewCollector wraps registry for export via prometheus.Registerer.
func NewCollector(registry *Registry) *Collector {
	pipelineLabels := []string{"pipeline_id"}
	latencyLabels := []string{"pipeline_id", "series"}
	return &Collector{
		registry: registry,
		queueDepth: prometheus.NewDesc(
			"visiond_queue_depth", "Current per-pipeline frame queue depth.", pipelineLabels, nil),
		queueUtilization: prometheus.NewDesc(
			"visiond_queue_utilization_ratio", "Current queue depth as a fraction of capacity.", pipelineLabels, nil),
		totalDrops: prometheus.NewDesc(
			"visiond_frames_dropped_total", "Total frames dropped for a pipeline.", pipelineLabels, nil),
		dropsPerMinute: prometheus.NewDesc(
			"visiond_drops_per_minute", "Windowed drop rate per pipeline.", pipelineLabels, nil),
		latencyP50: prometheus.NewDesc(
			"visiond_latency_p50_ms", "p50 latency in milliseconds by series.", latencyLabels, nil),
		latencyP95: prometheus.NewDesc(
			"visiond_latency_p95_ms", "p95 latency in milliseconds by series.", latencyLabels, nil),
		latencyMax: prometheus.NewDesc(
			"visiond_latency_max_ms", "max latency in milliseconds by series.", latencyLabels, nil),
		fps: prometheus.NewDesc(
			"visiond_fps", "Instantaneous processed-frame rate per pipeline.", pipelineLabels, nil),
		residentMemory: prometheus.NewDesc(
			"visiond_resident_memory_bytes", "Process resident set size.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queueDepth
	ch <- c.queueUtilization
	ch <- c.totalDrops
	ch <- c.dropsPerMinute
	ch <- c.latencyP50
	ch <- c.latencyP95
	ch <- c.latencyMax
	ch <- c.fps
	ch <- c.residentMemory
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, snap := range c.registry.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(snap.QueueDepth), snap.PipelineID)
		ch <- prometheus.MustNewConstMetric(c.queueUtilization, prometheus.GaugeValue, snap.QueueUtilization, snap.PipelineID)
		ch <- prometheus.MustNewConstMetric(c.totalDrops, prometheus.CounterValue, float64(snap.TotalDrops), snap.PipelineID)
		ch <- prometheus.MustNewConstMetric(c.dropsPerMinute, prometheus.GaugeValue, snap.DropsPerMinute, snap.PipelineID)
		ch <- prometheus.MustNewConstMetric(c.fps, prometheus.GaugeValue, snap.FPS, snap.PipelineID)

		c.collectLatency(ch, snap.PipelineID, "total", snap.TotalLatencyMS)
		c.collectLatency(ch, snap.PipelineID, "queue_wait", snap.QueueWaitLatencyMS)
		c.collectLatency(ch, snap.PipelineID, "processing", snap.ProcessingLatencyMS)
	}
	ch <- prometheus.MustNewConstMetric(c.residentMemory, prometheus.GaugeValue, float64(c.registry.ResidentMemoryBytes()))
}

func (c *Collector) collectLatency(ch chan<- prometheus.Metric, pipelineID, series string, stats LatencyStats) {
	ch <- prometheus.MustNewConstMetric(c.latencyP50, prometheus.GaugeValue, stats.P50, pipelineID, series)
	ch <- prometheus.MustNewConstMetric(c.latencyP95, prometheus.GaugeValue, stats.P95, pipelineID, series)
	ch <- prometheus.MustNewConstMetric(c.latencyMax, prometheus.GaugeValue, stats.Max, pipelineID, series)
}

var _ prometheus.Collector = (*Collector)(nil)
