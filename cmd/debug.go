package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// DebugLogger provides unified debug message handling for console and an
// optional log file
type DebugLogger struct {
	enabled bool // Per-frame diagnostics
	verbose bool // Per-candidate diagnostics
	console io.Writer

	mu            sync.Mutex
	file          *os.File
	writeQueue    chan string
	workerStopped sync.WaitGroup
}

// NewDebugLogger creates a logger writing to console. When logPath is set,
// every message is also appended to that file by a background writer.
func NewDebugLogger(enabled, verbose bool, console io.Writer, logPath string) (*DebugLogger, error) {
	dl := &DebugLogger{
		enabled: enabled || verbose,
		verbose: verbose,
		console: console,
	}

	if logPath != "" {
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", logPath, err)
		}
		dl.file = file
		dl.writeQueue = make(chan string, 256)
		dl.workerStopped.Add(1)
		go dl.fileWriteWorker()
	}

	return dl, nil
}

func (dl *DebugLogger) format(component, message string) string {
	return fmt.Sprintf("[%s][%s] %s\n", time.Now().Format("15:04:05.000"), component, message)
}

// logMsg always outputs; used for lifecycle messages and errors
func (dl *DebugLogger) logMsg(component, message string) {
	line := dl.format(component, message)

	dl.mu.Lock()
	defer dl.mu.Unlock()

	io.WriteString(dl.console, line)
	if dl.writeQueue != nil {
		select {
		case dl.writeQueue <- line:
		default:
			// Queue full, drop message to prevent blocking the frame loop
		}
	}
}

// debugMsg outputs only in debug mode
func (dl *DebugLogger) debugMsg(component, message string) {
	if !dl.enabled {
		return
	}
	dl.logMsg(component, message)
}

// debugMsgVerbose outputs only in verbose debug mode
func (dl *DebugLogger) debugMsgVerbose(component, message string) {
	if !dl.verbose {
		return
	}
	dl.logMsg(component, message)
}

func (dl *DebugLogger) fileWriteWorker() {
	defer dl.workerStopped.Done()
	for line := range dl.writeQueue {
		if _, err := dl.file.WriteString(line); err != nil {
			dl.mu.Lock()
			fmt.Fprintf(dl.console, "[DEBUG_LOGGER] Failed to write log file: %v\n", err)
			dl.mu.Unlock()
		}
	}
}

// Close flushes and closes the log file
func (dl *DebugLogger) Close() error {
	dl.mu.Lock()
	queue := dl.writeQueue
	dl.writeQueue = nil
	dl.mu.Unlock()

	if queue == nil {
		return nil
	}
	close(queue)
	dl.workerStopped.Wait()
	return dl.file.Close()
}
