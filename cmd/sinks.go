package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"towertracker/config"
	"towertracker/overlay"
	"towertracker/publish"
)

// buildSink assembles the configured sinks. The returned closer releases any
// network resources.
func buildSink(c *config.Config, table *publish.Table) (publish.Sink, func(), error) {
	sinks := publish.Multi{publish.NewTableSink(table, c.Publish.Key)}
	closers := []io.Closer{}

	if c.Publish.UDPAddr != "" {
		udp, err := publish.NewUDPSink(c.Publish.UDPAddr)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, udp)
		closers = append(closers, udp)
	}
	if c.Publish.Stdout {
		sinks = append(sinks, publish.NewWriterSink(os.Stdout))
	}

	closeAll := func() {
		for _, cl := range closers {
			cl.Close()
		}
	}
	return sinks, closeAll, nil
}

// serveTable starts the HTTP table server on the configured address. The
// returned stop function shuts it down and waits for it to finish.
func serveTable(ctx context.Context, c *config.Config, table *publish.Table) (net.Addr, func() error, error) {
	listener, err := net.Listen("tcp", c.Publish.Listen)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", c.Publish.Listen, err)
	}

	serveCtx, cancel := context.WithCancel(ctx)
	served := make(chan error, 1)
	go func() {
		served <- publish.NewTableServer(table).Serve(serveCtx, listener)
	}()

	stop := func() error {
		cancel()
		return <-served
	}
	return listener.Addr(), stop, nil
}

// buildObservers assembles the configured debug observers
func buildObservers(c *config.Config) (overlay.Observers, func(), error) {
	var observers overlay.Observers
	closeAll := func() {}

	if c.Debug.JPGPath != "" {
		rec, err := overlay.NewJPEGRecorder(c.Debug.JPGPath, c.Debug.JPGEvery, c.Debug.JPGAll)
		if err != nil {
			return nil, nil, fmt.Errorf("debug JPEG recorder: %w", err)
		}
		observers = append(observers, rec)
	}
	if c.Debug.Display {
		viewer := overlay.NewViewer()
		observers = append(observers, viewer)
		closeAll = func() { viewer.Close() }
	}
	return observers, closeAll, nil
}
