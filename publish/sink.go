package publish

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// Global debug function for publish package
var debugMsgFunc func(string, string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

// Default table and key the robot reads targeting output from
const (
	DefaultTable = "Targeting"
	DefaultKey   = "targets"
)

// Sink receives one output string per processed frame. Implementations must
// pass the string through unchanged.
type Sink interface {
	Publish(output string) error
}

// Table is a named in-process key-value store holding the latest value per key
type Table struct {
	name   string
	mu     sync.RWMutex
	values map[string]string
}

// NewTable creates an empty table
func NewTable(name string) *Table {
	return &Table{
		name:   name,
		values: make(map[string]string),
	}
}

// Name returns the table name
func (t *Table) Name() string {
	return t.name
}

// PutString stores value under key, replacing any previous value
func (t *Table) PutString(key, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.values[key] = value
}

// GetString returns the value under key and whether one was ever stored
func (t *Table) GetString(key string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.values[key]
	return v, ok
}

// TableSink publishes by overwriting one key of a table
type TableSink struct {
	table *Table
	key   string
}

// NewTableSink creates a sink writing to table[key]
func NewTableSink(table *Table, key string) *TableSink {
	return &TableSink{table: table, key: key}
}

// Publish implements Sink
func (ts *TableSink) Publish(output string) error {
	ts.table.PutString(ts.key, output)
	return nil
}

// UDPSink sends every output as a single datagram. An empty output is sent as
// an empty datagram so listeners see "no target" instead of a stale value.
type UDPSink struct {
	conn net.Conn
}

// NewUDPSink dials addr ("host:port")
func NewUDPSink(addr string) (*UDPSink, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP %s: %w", addr, err)
	}
	debugMsg("PUBLISH", fmt.Sprintf("Publishing datagrams to %s", conn.RemoteAddr()))
	return &UDPSink{conn: conn}, nil
}

// Publish implements Sink
func (us *UDPSink) Publish(output string) error {
	if _, err := us.conn.Write([]byte(output)); err != nil {
		return fmt.Errorf("UDP publish failed: %w", err)
	}
	return nil
}

// Close closes the socket
func (us *UDPSink) Close() error {
	return us.conn.Close()
}

// WriterSink writes one output per line
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing to w
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Publish implements Sink
func (ws *WriterSink) Publish(output string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	_, err := io.WriteString(ws.w, output+"\n")
	return err
}

// Multi publishes to every sink, even when an earlier one fails, and returns
// the joined errors.
type Multi []Sink

// Publish implements Sink
func (m Multi) Publish(output string) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(output); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
