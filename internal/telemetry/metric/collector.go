package metric

import "github.com/prometheus/client_golang/prometheus"

// StatsSource reports point-in-time sizes read at scrape time.
type StatsSource interface {
	Len() int
}

// Collector exports the size of the key space and the user directory.
type Collector struct {
	keys  StatsSource
	users StatsSource

	keysDesc  *prometheus.Desc
	usersDesc *prometheus.Desc
}

// NewCollector creates a collector over keys and users. Either may be nil.
func NewCollector(keys, users StatsSource) *Collector {
	return &Collector{
		keys:  keys,
		users: users,
		keysDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "keys"),
			"Number of keys in the store.", nil, nil),
		usersDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "users", "registered"),
			"Number of registered users.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keysDesc
	ch <- c.usersDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.keys != nil {
		ch <- prometheus.MustNewConstMetric(c.keysDesc, prometheus.GaugeValue, float64(c.keys.Len()))
	}
	if c.users != nil {
		ch <- prometheus.MustNewConstMetric(c.usersDesc, prometheus.GaugeValue, float64(c.users.Len()))
	}
}

// LenFunc adapts a function to StatsSource.
type LenFunc func() int

// Len implements StatsSource.
func (f LenFunc) Len() int { return f() }
