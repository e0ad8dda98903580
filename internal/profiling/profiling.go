package profiling

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Per-tick timing buckets for the coordinator loop.

var (
	mu         sync.Mutex
	tickTotals = make(map[string]time.Duration)
	allTotals  = make(map[string]time.Duration)
	ticks      int64
)

// Track returns a stop function that records the elapsed time under name.
// Usage: defer profiling.Track("meshing.RunOnce")()
func Track(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		mu.Lock()
		tickTotals[name] += d
		allTotals[name] += d
		mu.Unlock()
	}
}

// ResetTick clears the current tick buckets. Call at the start of each tick.
func ResetTick() {
	mu.Lock()
	clear(tickTotals)
	ticks++
	mu.Unlock()
}

// Snapshot returns a copy of the current tick buckets.
func Snapshot() map[string]time.Duration {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]time.Duration, len(tickTotals))
	for k, v := range tickTotals {
		out[k] = v
	}
	return out
}

// SumWithPrefix adds up the current tick buckets whose name starts with prefix.
func SumWithPrefix(prefix string) time.Duration {
	mu.Lock()
	defer mu.Unlock()
	var sum time.Duration
	for k, v := range tickTotals {
		if strings.HasPrefix(k, prefix) {
			sum += v
		}
	}
	return sum
}

// Average returns the mean time per tick spent in name since start.
func Average(name string) time.Duration {
	mu.Lock()
	defer mu.Unlock()
	if ticks == 0 {
		return allTotals[name]
	}
	return allTotals[name] / time.Duration(ticks)
}

// TopN formats the n largest buckets of the current tick.
// Example: "meshing.RunOnce:4.2ms, world.Drain:2.1ms"
func TopN(n int) string {
	ss := Snapshot()
	type pair struct {
		name string
		dur  time.Duration
	}
	list := make([]pair, 0, len(ss))
	for k, v := range ss {
		list = append(list, pair{name: k, dur: v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].dur == list[j].dur {
			return list[i].name < list[j].name
		}
		return list[i].dur > list[j].dur
	})
	n = min(n, len(list))
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, list[i].name+":"+formatMs(list[i].dur))
	}
	return strings.Join(parts, ", ")
}

// formatMs keeps one decimal and drops a trailing ".0".
func formatMs(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000.0
	s := strconv.FormatFloat(ms, 'f', 1, 64)
	s = strings.TrimSuffix(s, ".0")
	return s + "ms"
}
