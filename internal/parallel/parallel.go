// Package parallel splits independent per-row or per-feature work across
// goroutines.
package parallel

import (
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults based on the number of physical cores,
// falling back to the logical CPU count when it cannot be detected.
func DefaultConfig() Config {
	n := cpuid.CPU.PhysicalCores
	if n <= 0 || n > runtime.NumCPU() {
		n = runtime.NumCPU()
	}
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// Range calls f(start, end) over disjoint chunks covering [0, n).
// Chunks run concurrently when cfg allows it; f must only touch the items
// of its own chunk.
func Range(n int, f func(start, end int), cfg Config) {
	if n <= 0 {
		return
	}
	workers := cfg.NumWorkers
	if !cfg.Enabled || workers < 2 || n < 2*cfg.MinChunkSize {
		f(0, n)
		return
	}

	chunk := max((n+workers-1)/workers, cfg.MinChunkSize)
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			f(s, e)
		}(start, end)
	}
	wg.Wait()
}

// For executes f(i) for i in [0, n).
func For(n int, f func(i int), cfg Config) {
	Range(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	}, cfg)
}
