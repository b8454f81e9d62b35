// Package metrics records page navigation latency.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Recorder collects navigation timings. It is safe for concurrent use.
type Recorder struct {
	mu sync.Mutex

	total  int64
	errors int64

	// Latency histogram (in microseconds for precision)
	histogram *hdrhistogram.Histogram
	pages     map[string]*pageMetrics
}

type pageMetrics struct {
	total     int64
	errors    int64
	histogram *hdrhistogram.Histogram
}

func newHistogram() *hdrhistogram.Histogram {
	// 1us to 60s range, 3 significant digits
	return hdrhistogram.New(minLatencyUs, maxLatencyUs, 3)
}

func NewRecorder() *Recorder {
	return &Recorder{
		histogram: newHistogram(),
		pages:     make(map[string]*pageMetrics),
	}
}

// Record records one navigation to page. Failed navigations count towards
// the error total but not the latency histogram.
func (r *Recorder) Record(page string, duration time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pm, ok := r.pages[page]
	if !ok {
		pm = &pageMetrics{histogram: newHistogram()}
		r.pages[page] = pm
	}

	r.total++
	pm.total++
	if err != nil {
		r.errors++
		pm.errors++
		return
	}

	latencyUs := clamp(duration.Microseconds())
	_ = r.histogram.RecordValue(latencyUs)
	_ = pm.histogram.RecordValue(latencyUs)
}

func clamp(us int64) int64 {
	if us < minLatencyUs {
		return minLatencyUs
	}
	if us > maxLatencyUs {
		return maxLatencyUs
	}
	return us
}

// Summary is a point-in-time view of a Recorder.
type Summary struct {
	Navigations int64
	Errors      int64

	P50  time.Duration
	P95  time.Duration
	P99  time.Duration
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration

	// Pages is sorted by page.
	Pages []PageSummary
}

type PageSummary struct {
	Page        string
	Navigations int64
	Errors      int64
	P50         time.Duration
	P95         time.Duration
	Max         time.Duration
}

// Summary returns the current latency summary.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{
		Navigations: r.total,
		Errors:      r.errors,
		P50:         us(r.histogram.ValueAtQuantile(50)),
		P95:         us(r.histogram.ValueAtQuantile(95)),
		P99:         us(r.histogram.ValueAtQuantile(99)),
		Min:         us(r.histogram.Min()),
		Max:         us(r.histogram.Max()),
		Mean:        time.Duration(r.histogram.Mean()) * time.Microsecond,
	}

	for page, pm := range r.pages {
		s.Pages = append(s.Pages, PageSummary{
			Page:        page,
			Navigations: pm.total,
			Errors:      pm.errors,
			P50:         us(pm.histogram.ValueAtQuantile(50)),
			P95:         us(pm.histogram.ValueAtQuantile(95)),
			Max:         us(pm.histogram.Max()),
		})
	}
	sort.Slice(s.Pages, func(i, j int) bool { return s.Pages[i].Page < s.Pages[j].Page })

	return s
}

// Merge adds every recorded value of other into r.
func (r *Recorder) Merge(other *Recorder) {
	if other == nil || other == r {
		return
	}
	other.mu.Lock()
	defer other.mu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total += other.total
	r.errors += other.errors
	r.histogram.Merge(other.histogram)
	for page, opm := range other.pages {
		pm, ok := r.pages[page]
		if !ok {
			pm = &pageMetrics{histogram: newHistogram()}
			r.pages[page] = pm
		}
		pm.total += opm.total
		pm.errors += opm.errors
		pm.histogram.Merge(opm.histogram)
	}
}

func us(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
