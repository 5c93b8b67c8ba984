package probe

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"
)

const errTimeout = "Timeout"

// Stats aggregates probe outcomes across profiles. Safe for concurrent use.
type Stats struct {
	mu sync.Mutex

	latencies        []time.Duration
	successByAttempt map[int]int
	totalSuccess     int

	errorCounts map[string]int
	totalErrors int
}

func NewStats() *Stats {
	return &Stats{
		successByAttempt: make(map[int]int),
		errorCounts:      make(map[string]int),
	}
}

func (s *Stats) RecordSuccess(attempt int, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latencies = append(s.latencies, latency)
	s.successByAttempt[attempt]++
	s.totalSuccess++
}

func (s *Stats) RecordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalErrors++
	s.errorCounts[classify(err)]++
}

func classify(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return errTimeout
	case strings.Contains(msg, "refused"):
		return "Conn Refused"
	case strings.Contains(msg, "reset"):
		return "Conn Reset"
	case strings.Contains(msg, "EOF"):
		return "EOF / Empty"
	case strings.Contains(msg, "no such host"):
		return "DNS Error"
	case strings.Contains(msg, "status"):
		return "Bad Status"
	default:
		return "Unknown"
	}
}

// Summary is a point-in-time copy of the aggregated numbers.
type Summary struct {
	Successes        int
	Failures         int
	Average          time.Duration
	P50              time.Duration
	P90              time.Duration
	SuccessByAttempt map[int]int
	Errors           map[string]int
}

func (s *Stats) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		Successes:        s.totalSuccess,
		Failures:         s.totalErrors,
		SuccessByAttempt: make(map[int]int, len(s.successByAttempt)),
		Errors:           make(map[string]int, len(s.errorCounts)),
	}
	for k, v := range s.successByAttempt {
		sum.SuccessByAttempt[k] = v
	}
	for k, v := range s.errorCounts {
		sum.Errors[k] = v
	}

	if n := len(s.latencies); n > 0 {
		sorted := append([]time.Duration(nil), s.latencies...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		sum.P50 = sorted[n/2]
		sum.P90 = sorted[int(float64(n)*0.9)]
		sum.Average = average(sorted)
	}
	return sum
}

// Report writes a dashboard of the summary to w.
func (s *Stats) Report(w io.Writer) {
	sum := s.Summary()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\n📊 \033[1mPROBE REPORT\033[0m")
	fmt.Fprintln(tw, "────────────────────────────────────────")

	if sum.Successes > 0 {
		fmt.Fprintln(tw, "\033[1;36m[ LATENCY ]\033[0m\t")
		fmt.Fprintf(tw, "  Avg:\t%v\n", sum.Average.Round(time.Millisecond))
		fmt.Fprintf(tw, "  p50 (Median):\t%v\n", sum.P50.Round(time.Millisecond))
		fmt.Fprintf(tw, "  p90 (Slowest 10%%):\t%v\n", sum.P90.Round(time.Millisecond))
		fmt.Fprintln(tw, "\t")

		fmt.Fprintln(tw, "\033[1;36m[ RETRIES ]\033[0m\t")
		var attempts []int
		for k := range sum.SuccessByAttempt {
			attempts = append(attempts, k)
		}
		sort.Ints(attempts)
		for _, a := range attempts {
			count := sum.SuccessByAttempt[a]
			pct := float64(count) / float64(sum.Successes) * 100
			fmt.Fprintf(tw, "  Succeeded on Try %d:\t%d (%.1f%%)\n", a+1, count, pct)
		}
		fmt.Fprintln(tw, "\t")
	}

	fmt.Fprintln(tw, "\033[1;36m[ ERRORS ]\033[0m\t")
	fmt.Fprintf(tw, "  Total Failures:\t%d\n", sum.Failures)
	var kinds []string
	for k := range sum.Errors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(tw, "  %s:\t%d\n", k, sum.Errors[k])
	}

	tw.Flush()
}

func average(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return time.Duration(int64(sum) / int64(len(d)))
}
