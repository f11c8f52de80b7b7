// Package diag provides the kernel's diagnostic surface: a distinct-call-path
// detector for de-duplicating noisy fatal logs, adapted from biscuit's
// caller.Distinct_caller_t, and a memory-occupancy profile snapshot built on
// biscuit's github.com/google/pprof/profile dependency.
package diag

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/google/pprof/profile"
)

// DistinctCaller tracks which call chains have already produced a fatal
// diagnostic, so a tight retry loop hitting the same fault over and over
// doesn't flood the character sink with identical traces. Renamed from
// biscuit's Distinct_caller_t/_pchash but otherwise the same poor-man's
// hash-of-return-addresses scheme.
type DistinctCaller struct {
	mu      sync.Mutex
	Enabled bool
	seen    map[uintptr]bool
}

// Distinct reports whether the call chain invoking it (three frames up, so
// that Distinct's own frame and its caller's immediate wrapper are skipped)
// has not been seen before, returning a formatted trace the first time.
func (dc *DistinctCaller) Distinct() (bool, string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if !dc.Enabled {
		return false, ""
	}
	if dc.seen == nil {
		dc.seen = make(map[uintptr]bool)
	}

	var pcs []uintptr
	for sz, got := 30, 30; got >= sz; sz *= 2 {
		pcs = make([]uintptr, sz)
		got = runtime.Callers(3, pcs)
		if got == 0 {
			return false, ""
		}
		pcs = pcs[:got]
	}
	h := hashPCs(pcs)
	if dc.seen[h] {
		return false, ""
	}
	dc.seen[h] = true

	frames := runtime.CallersFrames(pcs)
	var out string
	for {
		fr, more := frames.Next()
		if out == "" {
			out = fmt.Sprintf("%s (%s:%d)\n", fr.Function, fr.File, fr.Line)
		} else {
			out += fmt.Sprintf("\t%s (%s:%d)\n", fr.Function, fr.File, fr.Line)
		}
		if !more || fr.Function == "runtime.goexit" {
			break
		}
	}
	return true, out
}

// Len reports how many distinct call chains have been recorded.
func (dc *DistinctCaller) Len() int {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return len(dc.seen)
}

func hashPCs(pcs []uintptr) uintptr {
	var h uintptr
	for _, pc := range pcs {
		h ^= pc*1103515245 + 12345
	}
	return h
}

// Occupancy is one task's contribution to a captured profile: its pid and
// how many pages its heap currently has committed.
type Occupancy struct {
	Pid   int
	Pages int64
}

// CaptureProfile builds a pprof profile.Profile with one sample per task,
// sample type "pages_in_use"/"pages". hostTID, if non-zero, annotates the
// profile with the OS thread the capture ran on — purely advisory, useful
// for lining a snapshot up against `perf`/`strace` output on the host
// process; zero (the non-Linux default) omits the annotation entirely.
func CaptureProfile(occ []Occupancy, hostTID int) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "pages_in_use", Unit: "pages"},
		},
		DefaultSampleType: "pages_in_use",
		PeriodType:        &profile.ValueType{Type: "snapshot", Unit: "pages"},
		Period:            1,
	}
	if hostTID != 0 {
		p.Comments = append(p.Comments, fmt.Sprintf("captured on host thread %d", hostTID))
	}
	for _, o := range occ {
		p.Sample = append(p.Sample, &profile.Sample{
			Value: []int64{o.Pages},
			Label: map[string][]string{
				"pid": {fmt.Sprintf("%d", o.Pid)},
			},
		})
	}
	return p
}
