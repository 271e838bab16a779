package pebblestore

import (
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports engine internals of an open store.
type Collector struct {
	db *pebble.DB

	compactions   *prometheus.Desc
	compactDebt   *prometheus.Desc
	memtableSize  *prometheus.Desc
	memtableCount *prometheus.Desc
	walFiles      *prometheus.Desc
	walSize       *prometheus.Desc
	walBytesIn    *prometheus.Desc
	diskUsage     *prometheus.Desc
}

func desc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName("objgraph", "pebble", name), help, nil, nil)
}

// NewCollector returns a collector for s. Register it after Open and
// unregister it before Close.
func NewCollector(s *Store) *Collector {
	return &Collector{
		db:            s.db,
		compactions:   desc("compactions_total", "Compactions performed."),
		compactDebt:   desc("compaction_debt_bytes", "Estimated bytes left to compact."),
		memtableSize:  desc("memtable_size_bytes", "Bytes allocated by memtables."),
		memtableCount: desc("memtables", "Live memtables."),
		walFiles:      desc("wal_files", "Live WAL files."),
		walSize:       desc("wal_size_bytes", "Size of live WAL data."),
		walBytesIn:    desc("wal_bytes_in_total", "Logical bytes written to the WAL."),
		diskUsage:     desc("disk_usage_bytes", "Total disk space used by the store."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.compactions
	ch <- c.compactDebt
	ch <- c.memtableSize
	ch <- c.memtableCount
	ch <- c.walFiles
	ch <- c.walSize
	ch <- c.walBytesIn
	ch <- c.diskUsage
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.db.Metrics()

	ch <- prometheus.MustNewConstMetric(c.compactions, prometheus.CounterValue, float64(m.Compact.Count))
	ch <- prometheus.MustNewConstMetric(c.compactDebt, prometheus.GaugeValue, float64(m.Compact.EstimatedDebt))
	ch <- prometheus.MustNewConstMetric(c.memtableSize, prometheus.GaugeValue, float64(m.MemTable.Size))
	ch <- prometheus.MustNewConstMetric(c.memtableCount, prometheus.GaugeValue, float64(m.MemTable.Count))
	ch <- prometheus.MustNewConstMetric(c.walFiles, prometheus.GaugeValue, float64(m.WAL.Files))
	ch <- prometheus.MustNewConstMetric(c.walSize, prometheus.GaugeValue, float64(m.WAL.Size))
	ch <- prometheus.MustNewConstMetric(c.walBytesIn, prometheus.CounterValue, float64(m.WAL.BytesIn))
	ch <- prometheus.MustNewConstMetric(c.diskUsage, prometheus.GaugeValue, float64(m.DiskSpaceUsage()))
}
