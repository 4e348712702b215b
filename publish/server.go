package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// TableServer serves tables read-only over HTTP. GET /<table>/<key> returns the
// latest value as plain text; an empty body means "no target". Keys that were
// never written return 404.
type TableServer struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewTableServer creates a server exposing the given tables by name
func NewTableServer(tables ...*Table) *TableServer {
	ts := &TableServer{tables: make(map[string]*Table)}
	for _, t := range tables {
		ts.tables[t.Name()] = t
	}
	return ts
}

func (ts *TableServer) table(name string) *Table {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.tables[name]
}

// ServeMux returns the handler routes
func (ts *TableServer) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{table}/{key}", ts.valueHandler)
	return mux
}

func (ts *TableServer) valueHandler(w http.ResponseWriter, r *http.Request) {
	table := ts.table(r.PathValue("table"))
	if table == nil {
		http.Error(w, "Unknown table", http.StatusNotFound)
		return
	}
	value, ok := table.GetString(r.PathValue("key"))
	if !ok {
		http.Error(w, "No value published", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	io.WriteString(w, value)
}

// Serve accepts connections on listener until ctx is cancelled, then shuts the
// server down. It returns nil after a clean shutdown.
func (ts *TableServer) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           ts.ServeMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	served := make(chan error, 1)
	go func() {
		served <- server.Serve(listener)
	}()
	debugMsg("PUBLISH", fmt.Sprintf("Serving tables on http://%s", listener.Addr()))

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("table server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("table server shutdown: %w", err)
	}
	debugMsg("PUBLISH", "Table server stopped")
	return nil
}
