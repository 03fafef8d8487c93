// Package metrics implements the node-local metrics tracker: cumulative
// counts updated with atomic increments, and rolling averages updated
// under a short lock, since an atomic can't average.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// recentLogCapacity bounds the in-memory log buffer GetMetrics exposes
// through RecentLogs: enough to see the last few queries' activity
// without retaining an unbounded history.
const recentLogCapacity = 50

// Tracker accumulates per-node counters and rolling timing averages,
// exposed verbatim through the GetMetrics RPC.
type Tracker struct {
	admitted  uint64
	rejected  uint64
	completed uint64
	failed    uint64

	dataFilesLoaded uint64

	mu           sync.Mutex
	avgLocalScan movingAverage
	avgEndToEnd  movingAverage

	logMu sync.Mutex
	logs  []string
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{}
}

func (t *Tracker) IncAdmitted()  { atomic.AddUint64(&t.admitted, 1) }
func (t *Tracker) IncRejected()  { atomic.AddUint64(&t.rejected, 1) }
func (t *Tracker) IncCompleted() { atomic.AddUint64(&t.completed, 1) }
func (t *Tracker) IncFailed()    { atomic.AddUint64(&t.failed, 1) }

// SetDataFilesLoaded records how many shard files this node's store loaded
// at startup.
func (t *Tracker) SetDataFilesLoaded(n uint64) {
	atomic.StoreUint64(&t.dataFilesLoaded, n)
}

// ObserveLocalScan records one local-scan duration sample. Loss of a
// single sample under contention is acceptable; the short
// lock makes corruption impossible.
func (t *Tracker) ObserveLocalScan(d time.Duration) {
	t.mu.Lock()
	t.avgLocalScan.observe(d)
	t.mu.Unlock()
}

// ObserveEndToEnd records one end-to-end query duration sample.
func (t *Tracker) ObserveEndToEnd(d time.Duration) {
	t.mu.Lock()
	t.avgEndToEnd.observe(d)
	t.mu.Unlock()
}

// AddLog appends one line to the recent-activity buffer, dropping the
// oldest line once the buffer is full. Callers pass already-formatted
// messages; Tracker does no formatting of its own.
func (t *Tracker) AddLog(line string) {
	t.logMu.Lock()
	defer t.logMu.Unlock()
	t.logs = append(t.logs, line)
	if len(t.logs) > recentLogCapacity {
		t.logs = t.logs[len(t.logs)-recentLogCapacity:]
	}
}

// RecentLogs returns the most recent maxLines entries from the buffer, in
// chronological order.
func (t *Tracker) RecentLogs(maxLines int) []string {
	t.logMu.Lock()
	defer t.logMu.Unlock()
	if maxLines <= 0 || len(t.logs) == 0 {
		return nil
	}
	if maxLines > len(t.logs) {
		maxLines = len(t.logs)
	}
	out := make([]string, maxLines)
	copy(out, t.logs[len(t.logs)-maxLines:])
	return out
}

// Snapshot is the point-in-time state returned by GetMetrics.
type Snapshot struct {
	Admitted            uint64
	Rejected            uint64
	Completed           uint64
	Failed              uint64
	DataFilesLoaded     uint64
	AvgLocalScanMillis  float64
	AvgEndToEndMillis   float64
}

// Snapshot returns the current counters and rolling averages.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	local := t.avgLocalScan.value()
	e2e := t.avgEndToEnd.value()
	t.mu.Unlock()

	return Snapshot{
		Admitted:           atomic.LoadUint64(&t.admitted),
		Rejected:           atomic.LoadUint64(&t.rejected),
		Completed:          atomic.LoadUint64(&t.completed),
		Failed:             atomic.LoadUint64(&t.failed),
		DataFilesLoaded:    atomic.LoadUint64(&t.dataFilesLoaded),
		AvgLocalScanMillis: float64(local.Milliseconds()),
		AvgEndToEndMillis:  float64(e2e.Milliseconds()),
	}
}

// movingAverage is a simple exponential moving average over durations -
// O(1) memory, no windowing buffer to manage.
type movingAverage struct {
	initialized bool
	avg         time.Duration
}

const emaWeight = 0.2

func (m *movingAverage) observe(d time.Duration) {
	if !m.initialized {
		m.avg = d
		m.initialized = true
		return
	}
	m.avg = time.Duration(float64(m.avg)*(1-emaWeight) + float64(d)*emaWeight)
}

func (m *movingAverage) value() time.Duration {
	return m.avg
}
