package workload

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/ssargent/freyjabench/pkg/binding"
)

// OpStats aggregates the outcomes of one operation type
type OpStats struct {
	Count        int64
	Statuses     map[binding.Status]int64
	TotalLatency time.Duration
	MaxLatency   time.Duration
}

// AverageLatency returns the mean latency, or zero when nothing ran
func (s *OpStats) AverageLatency() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Count)
}

// Summary is the result of a load or run phase
type Summary struct {
	RunID   string
	Phase   string
	Elapsed time.Duration
	Ops     map[string]*OpStats

	mutex sync.Mutex
}

func newSummary(runID, phase string) *Summary {
	return &Summary{
		RunID: runID,
		Phase: phase,
		Ops:   make(map[string]*OpStats),
	}
}

// record adds one operation outcome. Used by per-worker tallies, which are
// not shared, so no locking here.
func (s *Summary) record(op string, status binding.Status, d time.Duration) {
	stats, ok := s.Ops[op]
	if !ok {
		stats = &OpStats{Statuses: make(map[binding.Status]int64)}
		s.Ops[op] = stats
	}
	stats.Count++
	stats.Statuses[status]++
	stats.TotalLatency += d
	if d > stats.MaxLatency {
		stats.MaxLatency = d
	}
}

// merge folds a worker tally into s
func (s *Summary) merge(other *Summary) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for op, o := range other.Ops {
		stats, ok := s.Ops[op]
		if !ok {
			stats = &OpStats{Statuses: make(map[binding.Status]int64)}
			s.Ops[op] = stats
		}
		stats.Count += o.Count
		stats.TotalLatency += o.TotalLatency
		if o.MaxLatency > stats.MaxLatency {
			stats.MaxLatency = o.MaxLatency
		}
		for status, n := range o.Statuses {
			stats.Statuses[status] += n
		}
	}
}

// Total returns the number of operations across all types
func (s *Summary) Total() int64 {
	var total int64
	for _, stats := range s.Ops {
		total += stats.Count
	}
	return total
}

// Count returns how many op operations finished with status
func (s *Summary) Count(op string, status binding.Status) int64 {
	stats, ok := s.Ops[op]
	if !ok {
		return 0
	}
	return stats.Statuses[status]
}

// Throughput returns operations per second
func (s *Summary) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Total()) / s.Elapsed.Seconds()
}

// Write prints the summary as a table
func (s *Summary) Write(w io.Writer) error {
	fmt.Fprintf(w, "[%s] run %s: %d ops in %s (%.1f ops/sec)\n",
		s.Phase, s.RunID, s.Total(), s.Elapsed.Round(time.Millisecond), s.Throughput())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tCOUNT\tOK\tERROR\tNOT_IMPLEMENTED\tAVG\tMAX")

	ops := make([]string, 0, len(s.Ops))
	for op := range s.Ops {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	for _, op := range ops {
		stats := s.Ops[op]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			op,
			stats.Count,
			stats.Statuses[binding.StatusOK],
			stats.Statuses[binding.StatusError],
			stats.Statuses[binding.StatusNotImplemented],
			stats.AverageLatency(),
			stats.MaxLatency)
	}
	return tw.Flush()
}
