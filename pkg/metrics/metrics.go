// Package metrics exposes lab generation statistics to Prometheus.
package metrics

import (
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/psaab/frrlab/pkg/lab"
)

// labCollector implements prometheus.Collector over the most recent
// lab.Stats handed to Observe.
type labCollector struct {
	mu    sync.RWMutex
	lab   string
	stats *lab.Stats

	machines        *prometheus.Desc
	machinesByKind  *prometheus.Desc
	blocks          *prometheus.Desc
	lans            *prometheus.Desc
	bgpRouters      *prometheus.Desc
	bgpSessions     *prometheus.Desc
	warnings        *prometheus.Desc
	files           *prometheus.Desc
	bytes           *prometheus.Desc
	durationSeconds *prometheus.Desc
}

// Collector is the registered collector. Observe replaces the stats it
// reports.
type Collector struct {
	c *labCollector
}

// New creates a collector with nothing observed yet.
func New() *Collector {
	labels := []string{"lab"}
	return &Collector{c: &labCollector{
		machines: prometheus.NewDesc(
			"frrlab_machines",
			"Machines declared in the lab description.",
			labels, nil,
		),
		machinesByKind: prometheus.NewDesc(
			"frrlab_machines_by_kind",
			"Machines per base kind.",
			[]string{"lab", "kind"}, nil,
		),
		blocks: prometheus.NewDesc(
			"frrlab_blocks",
			"Blocks (AS and IGP groups).",
			labels, nil,
		),
		lans: prometheus.NewDesc(
			"frrlab_lans",
			"Declared LANs.",
			labels, nil,
		),
		bgpRouters: prometheus.NewDesc(
			"frrlab_bgp_routers",
			"Routers with a resolved BGP configuration.",
			labels, nil,
		),
		bgpSessions: prometheus.NewDesc(
			"frrlab_bgp_sessions",
			"Distinct BGP sessions inferred from shared LANs.",
			labels, nil,
		),
		warnings: prometheus.NewDesc(
			"frrlab_warnings",
			"Non-fatal findings about the description.",
			labels, nil,
		),
		files: prometheus.NewDesc(
			"frrlab_rendered_files",
			"Files in the rendered lab tree.",
			labels, nil,
		),
		bytes: prometheus.NewDesc(
			"frrlab_rendered_bytes",
			"Total size of the rendered lab tree.",
			labels, nil,
		),
		durationSeconds: prometheus.NewDesc(
			"frrlab_generate_duration_seconds",
			"Wall time of the last parse, resolve and render run.",
			labels, nil,
		),
	}}
}

// Observe records the stats of a finished run.
func (c *Collector) Observe(name string, s *lab.Stats) {
	c.c.mu.Lock()
	c.c.lab = name
	c.c.stats = s
	c.c.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) { c.c.Describe(ch) }

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) { c.c.Collect(ch) }

func (c *labCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.machines
	ch <- c.machinesByKind
	ch <- c.blocks
	ch <- c.lans
	ch <- c.bgpRouters
	ch <- c.bgpSessions
	ch <- c.warnings
	ch <- c.files
	ch <- c.bytes
	ch <- c.durationSeconds
}

func (c *labCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	name, s := c.lab, c.stats
	c.mu.RUnlock()
	if s == nil {
		return
	}

	gauge := func(d *prometheus.Desc, v int) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), name)
	}
	gauge(c.machines, s.Machines)
	gauge(c.blocks, s.Blocks)
	gauge(c.lans, s.LANs)
	gauge(c.bgpRouters, s.BGPRouters)
	gauge(c.bgpSessions, s.BGPSessions)
	gauge(c.warnings, s.Warnings)
	gauge(c.files, s.Files)
	gauge(c.bytes, s.Bytes)
	ch <- prometheus.MustNewConstMetric(c.durationSeconds, prometheus.GaugeValue,
		s.Duration.Seconds(), name)

	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		ch <- prometheus.MustNewConstMetric(c.machinesByKind, prometheus.GaugeValue,
			float64(s.ByKind[k]), name, k)
	}
}

// Registry returns an isolated registry holding only c.
func (c *Collector) Registry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, fmt.Errorf("register lab collector: %w", err)
	}
	return reg, nil
}

// WriteFile exports the stats of one run in node-exporter textfile format.
func WriteFile(path, name string, s *lab.Stats) error {
	c := New()
	c.Observe(name, s)
	reg, err := c.Registry()
	if err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
