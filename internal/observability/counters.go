package observability

import (
	"fmt"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Stage identifies one pipeline stage kind for counter bookkeeping.
type Stage int

const (
	StageInput Stage = iota
	StageRead
	StageDecode
	StageFilter
	StageEncode
	StageMux
	StageOutput
	numStages
)

func (s Stage) String() string {
	switch s {
	case StageInput:
		return "input"
	case StageRead:
		return "read"
	case StageDecode:
		return "decode"
	case StageFilter:
		return "filter"
	case StageEncode:
		return "encode"
	case StageMux:
		return "mux"
	case StageOutput:
		return "output"
	default:
		return "unknown"
	}
}

type counter struct {
	count    atomic.Uint64
	lastNano atomic.Int64
}

// Counters tracks per-stage activity counts and last-activity times
// across every source and destination in a running Pipeline. Safe for
// concurrent use by the source goroutines and destination goroutines
// that share it.
type Counters struct {
	stages [numStages]counter
}

// New builds an empty Counters.
func New() *Counters { return &Counters{} }

// Bump records one unit of activity on stage, timestamped now.
func (c *Counters) Bump(s Stage) {
	if c == nil {
		return
	}
	c.stages[s].count.Add(1)
	c.stages[s].lastNano.Store(time.Now().UnixNano())
}

// Dump writes the current counters and a snapshot of host/process
// statistics to w, the way SIGUSR1 handling does in main.
func (c *Counters) Dump(w io.Writer) {
	fmt.Fprintln(w, "--- icecast-hls counters ---")
	if c != nil {
		for s := Stage(0); s < numStages; s++ {
			st := &c.stages[s]
			count := st.count.Load()
			last := st.lastNano.Load()
			lastStr := "never"
			if last != 0 {
				lastStr = time.Unix(0, last).UTC().Format(time.RFC3339Nano)
			}
			fmt.Fprintf(w, "%-8s count=%d last=%s\n", s, count, lastStr)
		}
	}

	fmt.Fprintf(w, "goroutines=%d\n", runtime.NumGoroutine())

	if hi, err := host.Info(); err == nil {
		fmt.Fprintf(w, "host=%s uptime=%ds\n", hi.Hostname, hi.Uptime)
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		fmt.Fprintf(w, "cpu=%.1f%%\n", pct[0])
	}
	if la, err := load.Avg(); err == nil {
		fmt.Fprintf(w, "load=%.2f,%.2f,%.2f\n", la.Load1, la.Load5, la.Load15)
	}
	if mi, err := mem.VirtualMemory(); err == nil {
		fmt.Fprintf(w, "mem=%dMiB/%dMiB(%.1f%%)\n", mi.Used/1024/1024, mi.Total/1024/1024, mi.UsedPercent)
	}
}
