package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
)

type ProcessMetrics struct {
	started    time.Time
	Uptime     prometheus.Gauge
	HeapBytes  prometheus.Gauge
	Goroutines prometheus.Gauge
	GCPause    prometheus.Gauge
	CPUPercent prometheus.Gauge
}

func newProcessMetrics(s subsystem) *ProcessMetrics {
	return &ProcessMetrics{
		started:    time.Now(),
		Uptime:     s.gauge("uptime_seconds", "Seconds since the process started"),
		HeapBytes:  s.gauge("heap_alloc_bytes", "Bytes of allocated heap objects"),
		Goroutines: s.gauge("goroutines", "Live goroutines"),
		GCPause:    s.gauge("gc_pause_seconds_total", "Cumulative GC stop-the-world pause"),
		CPUPercent: s.gauge("cpu_usage_percent", "Host CPU utilization"),
	}
}

func (p *ProcessMetrics) Refresh() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	p.Uptime.Set(time.Since(p.started).Seconds())
	p.HeapBytes.Set(float64(mem.HeapAlloc))
	p.Goroutines.Set(float64(runtime.NumGoroutine()))
	p.GCPause.Set(time.Duration(mem.PauseTotalNs).Seconds())

	// cpu.Percent with a zero interval compares against the previous call
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		p.CPUPercent.Set(pct[0])
	}
}
