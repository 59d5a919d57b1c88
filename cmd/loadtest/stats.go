package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var errMismatch = errors.New("decoded payload differs from the original")

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	mismatchCount atomic.Int64
	bytesSent     atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

// RecordRoundTrip counts one encode/decode round trip. Only successful
// round trips contribute latencies.
func (s *Stats) RecordRoundTrip(duration time.Duration, statusCode, payloadBytes int, err error) {
	s.totalRequests.Add(1)

	if statusCode != 0 {
		s.statusCodesMu.Lock()
		if _, ok := s.statusCodes[statusCode]; !ok {
			s.statusCodes[statusCode] = &atomic.Int64{}
		}
		s.statusCodes[statusCode].Add(1)
		s.statusCodesMu.Unlock()
	}

	if err != nil {
		s.errorCount.Add(1)
		if errors.Is(err, errMismatch) {
			s.mismatchCount.Add(1)
		}
		return
	}
	s.successCount.Add(1)
	s.bytesSent.Add(int64(payloadBytes))

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()
}

// printReport writes the summary and reports whether the run is healthy:
// at least one round trip and no mismatches.
func printReport(w io.Writer, stats *Stats, duration time.Duration) bool {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	failed := stats.errorCount.Load()
	mismatches := stats.mismatchCount.Load()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Round Trips:     %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", success)
	fmt.Fprintf(w, "Errors:          %d\n", failed)
	fmt.Fprintf(w, "Mismatches:      %d\n", mismatches)

	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(failed)/float64(total)*100)
		fmt.Fprintf(w, "Round Trips/sec: %.2f\n", float64(total)/duration.Seconds())
		fmt.Fprintf(w, "Payload KiB/sec: %.2f\n", float64(stats.bytesSent.Load())/1024/duration.Seconds())
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency (encode + decode) ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", avg)
		fmt.Fprintf(w, "P50:    %s\n", percentile(latencies, 50))
		fmt.Fprintf(w, "P90:    %s\n", percentile(latencies, 90))
		fmt.Fprintf(w, "P99:    %s\n", percentile(latencies, 99))
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	switch {
	case total == 0:
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: No round trips completed. Is the service running?")
		return false
	case mismatches > 0:
		fmt.Fprintln(w)
		fmt.Fprintln(w, "FAILURE: some payloads did not survive the round trip.")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
