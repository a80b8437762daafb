// Package logging persists the output of a run: every console line, each
// rendered failure and a summary, under a per-run directory.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"
)

const (
	RunDirectoryPrefix = "testrun-" // Standardized prefix for run directories

	FailuresFilename = "failures.log"
	OutputFilename   = "all.log"
	SummaryFilename  = "summary.log"
)

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(path string) (*AsyncFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100),
	}
	af.wg.Add(1)
	go af.processQueue()
	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file is closed")
	}
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	af.queue <- dataCopy
	return nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()
	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		}
	}
}

// Close stops the async writer and closes the file
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	af.wg.Wait()
	return af.file.Close()
}

// Summary describes a finished run.
type Summary struct {
	Bundler  string
	Browsers []string
	ExitCode int
	Duration time.Duration
	Failures int
}

// RunLog writes the logs of one run into <baseDir>/testrun-<runID>. Colour
// codes are stripped from everything it writes.
type RunLog struct {
	baseDir string
	logDir  string
	runID   string

	output   *AsyncFile
	failures *AsyncFile

	mu       sync.Mutex
	count    int
	closed   bool
	closeErr error
}

// NewRunLog creates the run directory and opens its log files.
func NewRunLog(baseDir, runID string) (*RunLog, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", logDir, err)
	}

	output, err := NewAsyncFile(filepath.Join(logDir, OutputFilename))
	if err != nil {
		return nil, err
	}
	failures, err := NewAsyncFile(filepath.Join(logDir, FailuresFilename))
	if err != nil {
		_ = output.Close()
		return nil, err
	}
	return &RunLog{
		baseDir:  baseDir,
		logDir:   logDir,
		runID:    runID,
		output:   output,
		failures: failures,
	}, nil
}

func (l *RunLog) RunID() string { return l.runID }

// Dir is the run directory.
func (l *RunLog) Dir() string { return l.logDir }

// RecordOutput appends a console line to all.log.
func (l *RunLog) RecordOutput(line string) error {
	return l.output.Write([]byte(stripansi.Strip(line) + "\n"))
}

// RecordFailure appends a rendered failure to failures.log, separated from
// the previous one by a rule.
func (l *RunLog) RecordFailure(rendered string) error {
	l.mu.Lock()
	l.count++
	n := l.count
	l.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "=== failure %d ===\n", n)
	b.WriteString(strings.Trim(stripansi.Strip(rendered), "\n"))
	b.WriteString("\n\n")
	return l.failures.Write([]byte(b.String()))
}

// Failures is the number of failures recorded so far.
func (l *RunLog) Failures() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// WriteSummary writes summary.log, replacing any earlier summary.
func (l *RunLog) WriteSummary(s Summary) error {
	status := "PASS"
	if s.ExitCode != 0 {
		status = "FAIL"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Run ID:    %s\n", l.runID)
	fmt.Fprintf(&b, "Status:    %s\n", status)
	fmt.Fprintf(&b, "Exit code: %d\n", s.ExitCode)
	if s.Bundler != "" {
		fmt.Fprintf(&b, "Bundler:   %s\n", s.Bundler)
	}
	if len(s.Browsers) > 0 {
		fmt.Fprintf(&b, "Browsers:  %s\n", strings.Join(s.Browsers, ", "))
	}
	fmt.Fprintf(&b, "Duration:  %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Failures:  %d\n", s.Failures)

	path := filepath.Join(l.logDir, SummaryFilename)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	return nil
}

// Close flushes and closes the log files. It is safe to call more than once.
func (l *RunLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return l.closeErr
	}
	l.closed = true
	outErr := l.output.Close()
	failErr := l.failures.Close()
	if outErr != nil {
		l.closeErr = outErr
	} else {
		l.closeErr = failErr
	}
	return l.closeErr
}
