// Package trace provides execution tracing for debugging: a package-
// level, mutex-guarded, glob-filterable tracer over an io.Writer
// (stderr by default). Retargeted from the teacher's verb-call tracing
// to this module's call/suspend/halt tracepoints — the mechanism
// (filtered, mutex-guarded, writer-backed) is unchanged.
package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Tracer logs interpreter tracepoints, filtered by unit name glob.
type Tracer struct {
	enabled bool
	filters []string
	writer  io.Writer
	mu      sync.Mutex
}

// Global tracer instance
var globalTracer *Tracer

// Init initializes the global tracer
func Init(enabled bool, filters []string, writer io.Writer) {
	if writer == nil {
		writer = os.Stderr
	}
	globalTracer = &Tracer{
		enabled: enabled,
		filters: filters,
		writer:  writer,
	}
}

// IsEnabled returns whether tracing is enabled
func IsEnabled() bool {
	if globalTracer == nil {
		return false
	}
	return globalTracer.enabled
}

// matchesFilter checks if a unit name matches any of the filter patterns
func (t *Tracer) matchesFilter(unitName string) bool {
	if len(t.filters) == 0 {
		return true // No filters = trace everything
	}

	for _, pattern := range t.filters {
		if matched, _ := filepath.Match(pattern, unitName); matched {
			return true
		}
	}
	return false
}

// Call logs a function call by item hash.
func (t *Tracer) Call(unitName string, hash uint64, argCount int) {
	if !t.enabled || !t.matchesFilter(unitName) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.writer, "[TRACE] CALL %s:%#x argc=%d\n", unitName, hash, argCount)
}

// Return logs a function return value.
func (t *Tracer) Return(unitName string, result string) {
	if !t.enabled || !t.matchesFilter(unitName) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.writer, "[TRACE] RETURN %s => %s\n", unitName, result)
}

// Suspend logs a VM suspending on await/yield.
func (t *Tracer) Suspend(unitName, kind string, ip int) {
	if !t.enabled || !t.matchesFilter(unitName) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.writer, "[TRACE] SUSPEND %s %s @%d\n", unitName, kind, ip)
}

// Halt logs a terminal halt (exited or error).
func (t *Tracer) Halt(unitName, kind, detail string) {
	if !t.enabled || !t.matchesFilter(unitName) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if detail != "" {
		fmt.Fprintf(t.writer, "[TRACE] HALT %s %s: %s\n", unitName, kind, detail)
	} else {
		fmt.Fprintf(t.writer, "[TRACE] HALT %s %s\n", unitName, kind)
	}
}

// Global convenience functions

// Call logs a function call using the global tracer
func Call(unitName string, hash uint64, argCount int) {
	if globalTracer != nil {
		globalTracer.Call(unitName, hash, argCount)
	}
}

// Return logs a function return using the global tracer
func Return(unitName string, result string) {
	if globalTracer != nil {
		globalTracer.Return(unitName, result)
	}
}

// Suspend logs a suspend event using the global tracer
func Suspend(unitName, kind string, ip int) {
	if globalTracer != nil {
		globalTracer.Suspend(unitName, kind, ip)
	}
}

// Halt logs a halt event using the global tracer
func Halt(unitName, kind, detail string) {
	if globalTracer != nil {
		globalTracer.Halt(unitName, kind, detail)
	}
}
