package metrics

import (
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
)

// PebbleCollector exports compaction, memtable and WAL figures of the
// pebble engine on every scrape.
type PebbleCollector struct {
	db *pebble.DB

	compactionCount         *prometheus.Desc
	compactionEstimatedDebt *prometheus.Desc
	compactionInProgress    *prometheus.Desc

	memtableSize  *prometheus.Desc
	memtableCount *prometheus.Desc

	walFiles        *prometheus.Desc
	walSize         *prometheus.Desc
	walBytesIn      *prometheus.Desc
	walBytesWritten *prometheus.Desc

	diskUsage *prometheus.Desc
}

func desc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pebble", name), help, nil, nil)
}

func NewPebbleCollector(db *pebble.DB) *PebbleCollector {
	return &PebbleCollector{
		db: db,

		compactionCount:         desc("compaction_count_total", "Total number of compactions performed"),
		compactionEstimatedDebt: desc("compaction_estimated_debt_bytes", "Estimated number of bytes that need to be compacted to reach a stable state"),
		compactionInProgress:    desc("compaction_in_progress_bytes", "Number of bytes being compacted currently"),

		memtableSize:  desc("memtable_size_bytes", "Current size of the memtable in bytes"),
		memtableCount: desc("memtable_count", "Current count of memtables"),

		walFiles:        desc("wal_files", "Number of live WAL files"),
		walSize:         desc("wal_size_bytes", "Size of live WAL data in bytes"),
		walBytesIn:      desc("wal_bytes_in_total", "Total logical bytes written to the WAL"),
		walBytesWritten: desc("wal_bytes_written_total", "Total physical bytes written to the WAL"),

		diskUsage: desc("disk_usage_bytes", "Total disk space used by the store"),
	}
}

func (pc *PebbleCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pc.compactionCount
	ch <- pc.compactionEstimatedDebt
	ch <- pc.compactionInProgress
	ch <- pc.memtableSize
	ch <- pc.memtableCount
	ch <- pc.walFiles
	ch <- pc.walSize
	ch <- pc.walBytesIn
	ch <- pc.walBytesWritten
	ch <- pc.diskUsage
}

func (pc *PebbleCollector) Collect(ch chan<- prometheus.Metric) {
	m := pc.db.Metrics()

	ch <- prometheus.MustNewConstMetric(pc.compactionCount, prometheus.CounterValue, float64(m.Compact.Count))
	ch <- prometheus.MustNewConstMetric(pc.compactionEstimatedDebt, prometheus.GaugeValue, float64(m.Compact.EstimatedDebt))
	ch <- prometheus.MustNewConstMetric(pc.compactionInProgress, prometheus.GaugeValue, float64(m.Compact.InProgressBytes))

	ch <- prometheus.MustNewConstMetric(pc.memtableSize, prometheus.GaugeValue, float64(m.MemTable.Size))
	ch <- prometheus.MustNewConstMetric(pc.memtableCount, prometheus.GaugeValue, float64(m.MemTable.Count))

	ch <- prometheus.MustNewConstMetric(pc.walFiles, prometheus.GaugeValue, float64(m.WAL.Files))
	ch <- prometheus.MustNewConstMetric(pc.walSize, prometheus.GaugeValue, float64(m.WAL.Size))
	ch <- prometheus.MustNewConstMetric(pc.walBytesIn, prometheus.CounterValue, float64(m.WAL.BytesIn))
	ch <- prometheus.MustNewConstMetric(pc.walBytesWritten, prometheus.CounterValue, float64(m.WAL.BytesWritten))

	ch <- prometheus.MustNewConstMetric(pc.diskUsage, prometheus.GaugeValue, float64(m.DiskSpaceUsage()))
}
