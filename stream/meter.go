package stream

import (
	"context"
	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/tripd/common"
	"log/slog"
	"sync"
	"time"
)

// TickMeter counts items and bytes passing through a stream
// and logs the running rates on an interval.
type TickMeter struct {
	name     string
	interval time.Duration
	started  time.Time
	ticker   *time.Ticker
	done     chan struct{}
	once     sync.Once

	reg        metrics.Registry
	count      metrics.Counter
	size       metrics.Counter
	countMeter metrics.Meter
	sizeMeter  metrics.Meter
}

// NewTickMeter starts a meter named name. An interval <= 0 disables periodic logging.
// Stop must be called to release it.
func NewTickMeter(name string, interval time.Duration) *TickMeter {
	// Enable metrics package.
	// Won't work without this global setting.
	metrics.Enabled = true

	reg := metrics.NewRegistry()
	m := &TickMeter{
		name:       name,
		reg:        reg,
		interval:   interval,
		started:    time.Now(),
		done:       make(chan struct{}),
		count:      metrics.NewCounter(),
		size:       metrics.NewCounter(),
		countMeter: metrics.NewMeter(),
		sizeMeter:  metrics.NewMeter(),
	}
	for name, metric := range map[string]interface{}{
		"count.count": m.count,
		"size.count":  m.size,
		"count.meter": m.countMeter,
		"size.meter":  m.sizeMeter,
	} {
		if err := reg.Register(name, metric); err != nil {
			panic(err)
		}
	}
	if interval > 0 {
		m.ticker = time.NewTicker(interval)
		go m.run()
	}
	return m
}

// Mark records n items totalling size bytes.
func (m *TickMeter) Mark(n int64, size int64) {
	m.count.Inc(n)
	m.size.Inc(size)
	m.countMeter.Mark(n)
	m.sizeMeter.Mark(size)
}

// Count returns the number of items marked so far.
func (m *TickMeter) Count() int64 {
	return m.count.Snapshot().Count()
}

// Bytes returns the number of bytes marked so far.
func (m *TickMeter) Bytes() int64 {
	return m.size.Snapshot().Count()
}

func (m *TickMeter) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.ticker.C:
			m.log(slog.LevelInfo, "Reading")
		}
	}
}

func (m *TickMeter) log(level slog.Level, msg string) {
	countSnap := m.countMeter.Snapshot()
	sizeSnap := m.sizeMeter.Snapshot()
	slog.Log(context.Background(), level, msg, "name", m.name,
		"n", humanize.Comma(m.Count()),
		"ips", common.DecimalToFixed(countSnap.Rate1(), 0),
		"bps", humanize.Bytes(uint64(sizeSnap.Rate1())),
		"total.bytes", humanize.Bytes(uint64(m.Bytes())),
		"running", time.Since(m.started).Round(time.Millisecond))
}

// Stop ends periodic logging and logs the totals once, at Info level for
// a periodic meter and at Debug otherwise. It is safe to call more than once.
func (m *TickMeter) Stop() {
	if m == nil {
		return
	}
	m.once.Do(func() {
		close(m.done)
		if m.ticker != nil {
			m.ticker.Stop()
		}
		m.countMeter.Stop()
		m.sizeMeter.Stop()
		level := slog.LevelDebug
		if m.interval > 0 {
			level = slog.LevelInfo
		}
		m.log(level, "Read")
	})
}
